// Package authapitest provides an in-memory authentication service speaking
// the same JSON protocol as the real backend. It backs the authapi and engine
// tests, the CLI tests, and the runnable examples.
package authapitest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/MrEthical07/authflow/authapi"
	"github.com/MrEthical07/authflow/jwt"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

const (
	MessageRegistered     = "Usuario registrado correctamente"
	MessageMissingFields  = "Faltan campos obligatorios"
	MessageDuplicateEmail = "El correo ya está registrado"
	MessageBadCredentials = "Credenciales inválidas"
	MessageLoggedIn       = "Login exitoso"

	// DefaultTokenSecret is the HS256 secret of the default token manager.
	DefaultTokenSecret = "authapitest-secret-authapitest-secret"
)

const (
	opLogin    = "login"
	opRegister = "register"

	defaultTokenIssuer = "authapitest"
	maxRequestBody     = 64 << 10
)

type account struct {
	id       int
	name     string
	lastName string
	email    string
	hash     []byte
}

// Service is the fake backend. The zero value is not usable; call New.
type Service struct {
	router *mux.Router
	tokens *jwt.Manager
	logger *slog.Logger
	cost   int

	mu         sync.Mutex
	accounts   map[string]*account
	nextID     int
	forced     map[string][]int
	omitToken  bool
	requestIDs []string
}

// Option customizes a Service.
type Option func(*Service)

// WithTokenManager replaces the HS256 manager used to mint login tokens.
func WithTokenManager(m *jwt.Manager) Option {
	return func(s *Service) {
		if m != nil {
			s.tokens = m
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBcryptCost sets the password hashing cost. Defaults to bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

// New builds a Service with no accounts.
func New(opts ...Option) *Service {
	s := &Service{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		cost:     bcrypt.MinCost,
		accounts: make(map[string]*account),
		forced:   make(map[string][]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tokens == nil {
		m, err := jwt.NewManager(jwt.Config{
			SigningMethod: jwt.MethodHS256,
			PrivateKey:    []byte(DefaultTokenSecret),
			Issuer:        defaultTokenIssuer,
		})
		if err != nil {
			panic(err)
		}
		s.tokens = m
	}

	r := mux.NewRouter()
	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	})
	s.router = r
	return s
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if id := r.Header.Get(authapi.RequestIDHeader); id != "" {
		s.requestIDs = append(s.requestIDs, id)
	}
	s.mu.Unlock()
	s.router.ServeHTTP(w, r)
}

// AddAccount registers an account directly and returns its id.
func (s *Service) AddAccount(name, lastName, email, password string) (int, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(name, lastName, email, hash), nil
}

// FailNext makes the next call to op ("login" or "register") answer status
// with an empty body. Calls queue in order.
func (s *Service) FailNext(op string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced[op] = append(s.forced[op], status)
}

// OmitToken makes successful logins answer without a token.
func (s *Service) OmitToken(omit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitToken = omit
}

// RequestIDs returns the X-Request-ID values seen so far.
func (s *Service) RequestIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requestIDs...)
}

func (s *Service) insertLocked(name, lastName, email string, hash []byte) int {
	s.nextID++
	s.accounts[normalizeEmail(email)] = &account{
		id:       s.nextID,
		name:     name,
		lastName: lastName,
		email:    email,
		hash:     hash,
	}
	return s.nextID
}

func (s *Service) takeForced(op string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.forced[op]
	if len(queue) == 0 {
		return 0, false
	}
	s.forced[op] = queue[1:]
	return queue[0], true
}

func (s *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	if status, ok := s.takeForced(opRegister); ok {
		w.WriteHeader(status)
		return
	}

	var req authapi.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if blank(req.Name, req.LastName, req.Email, req.Password) {
		writeJSON(w, http.StatusBadRequest, authapi.RegisterResponse{Success: boolPtr(false), Message: MessageMissingFields})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		s.logger.Error("hash password", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	if _, exists := s.accounts[normalizeEmail(req.Email)]; exists {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, authapi.RegisterResponse{Success: boolPtr(false), Message: MessageDuplicateEmail})
		return
	}
	id := s.insertLocked(req.Name, req.LastName, req.Email, hash)
	s.mu.Unlock()

	s.logger.Info("account registered", "user_id", id)
	writeJSON(w, http.StatusCreated, authapi.RegisterResponse{Success: boolPtr(true), Message: MessageRegistered})
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	if status, ok := s.takeForced(opLogin); ok {
		w.WriteHeader(status)
		return
	}

	var req authapi.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if blank(req.Email, req.Password) {
		writeJSON(w, http.StatusBadRequest, authapi.LoginResponse{Success: boolPtr(false), Message: MessageMissingFields})
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[normalizeEmail(req.Email)]
	omit := s.omitToken
	s.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(req.Password)) != nil {
		writeJSON(w, http.StatusBadRequest, authapi.LoginResponse{Success: boolPtr(false), Message: MessageBadCredentials})
		return
	}

	resp := authapi.LoginResponse{
		Success: boolPtr(true),
		Message: MessageLoggedIn,
		User:    &authapi.User{ID: acct.id, Name: acct.name, Email: acct.email},
	}
	if !omit {
		token, err := s.tokens.Issue(strconv.Itoa(acct.id), acct.email, acct.name)
		if err != nil {
			s.logger.Error("issue token", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp.Token = token
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "JSON inválido"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func boolPtr(v bool) *bool { return &v }

// Server is a Service listening on a loopback httptest server.
type Server struct {
	*Service
	URL string

	srv *httptest.Server
}

// NewServer starts a Service on a random loopback port.
func NewServer(opts ...Option) *Server {
	svc := New(opts...)
	srv := httptest.NewServer(svc)
	return &Server{Service: svc, URL: srv.URL, srv: srv}
}

func (s *Server) Close() {
	s.srv.Close()
}
