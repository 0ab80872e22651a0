package authflow

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/MrEthical07/authflow/authapi"
	"github.com/MrEthical07/authflow/authapi/authapitest"
)

type fakeService struct {
	login    func(context.Context, authapi.LoginRequest) (*authapi.LoginResponse, error)
	register func(context.Context, authapi.RegisterRequest) (*authapi.RegisterResponse, error)
}

func (f *fakeService) Login(ctx context.Context, req authapi.LoginRequest) (*authapi.LoginResponse, error) {
	return f.login(ctx, req)
}

func (f *fakeService) Register(ctx context.Context, req authapi.RegisterRequest) (*authapi.RegisterResponse, error) {
	return f.register(ctx, req)
}

type blankError struct{}

func (blankError) Error() string { return "" }

func newServerEngine(t *testing.T, cfg Config) (*Engine, *authapitest.Server) {
	t.Helper()

	srv := authapitest.NewServer()
	t.Cleanup(srv.Close)

	cfg.Service.BaseURL = srv.URL
	engine, err := New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, srv
}

func newFakeServiceEngine(t *testing.T, svc AuthService, opts ...func(*Builder)) *Engine {
	t.Helper()

	b := New().WithService(svc)
	for _, opt := range opts {
		opt(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func TestRegisterThenLogin(t *testing.T) {
	engine, _ := newServerEngine(t, DefaultConfig())
	ctx := context.Background()

	err := engine.Register(ctx, RegisterInput{Name: "Ana", LastName: "Rojas", Email: "ana@example.com", Password: "Passw0rd!"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	expectState(t, engine, StateSuccess, authapitest.MessageRegistered)
	if _, ok := engine.LoggedEmail(); ok {
		t.Fatal("register must not log in")
	}

	if err := engine.Login(ctx, "ana@example.com", "Passw0rd!"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	expectState(t, engine, StateSuccess, "Login exitoso")

	email, ok := engine.LoggedEmail()
	if !ok || email != "ana@example.com" {
		t.Fatalf("expected logged email, got %q %v", email, ok)
	}
	session := engine.Session()
	if session == nil || session.Token == "" {
		t.Fatalf("expected session with token, got %+v", session)
	}
	if session.User == nil || session.User.ID != 1 || session.User.Name != "Ana" {
		t.Fatalf("unexpected user %+v", session.User)
	}
	if session.Claims == nil || session.Claims.Email != "ana@example.com" || session.Claims.Subject != "1" {
		t.Fatalf("expected decoded claims, got %+v", session.Claims)
	}
}

func TestLoginVerifiesTokenWhenConfigured(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Token.SigningMethod = "hs256"
	cfg.Token.Key = []byte(authapitest.DefaultTokenSecret)
	cfg.Token.Issuer = "authapitest"
	engine, srv := newServerEngine(t, cfg)
	if _, err := srv.AddAccount("Ana", "Rojas", "ana@example.com", "Passw0rd!"); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}

	if err := engine.Login(context.Background(), "ana@example.com", "Passw0rd!"); err != nil {
		t.Fatalf("Login: %v", err)
	}
}

func TestLoginRejectsForgedToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Token.SigningMethod = "hs256"
	cfg.Token.Key = []byte("some-other-secret-some-other-secret")
	engine, srv := newServerEngine(t, cfg)
	if _, err := srv.AddAccount("Ana", "Rojas", "ana@example.com", "Passw0rd!"); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}

	err := engine.Login(context.Background(), "ana@example.com", "Passw0rd!")
	if !errors.Is(err, ErrTokenRejected) {
		t.Fatalf("expected ErrTokenRejected, got %v", err)
	}
	expectState(t, engine, StateError, "El token recibido no es válido.")
	if _, ok := engine.LoggedEmail(); ok {
		t.Fatal("rejected token must not log in")
	}
}

func TestLoginAcceptsOpaqueToken(t *testing.T) {
	engine := newFakeServiceEngine(t, &fakeService{
		login: func(context.Context, authapi.LoginRequest) (*authapi.LoginResponse, error) {
			return &authapi.LoginResponse{Token: "opaque-session-token"}, nil
		},
	})

	if err := engine.Login(context.Background(), "a@b.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if s := engine.Session(); s == nil || s.Token != "opaque-session-token" || s.Claims != nil {
		t.Fatalf("unexpected session %+v", s)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	engine, _ := newServerEngine(t, DefaultConfig())

	err := engine.Login(context.Background(), "nobody@example.com", "wrong")
	if !errors.Is(err, ErrServiceBadRequest) {
		t.Fatalf("expected ErrServiceBadRequest, got %v", err)
	}
	expectState(t, engine, StateError, "Credenciales inválidas (400)")

	var se *ServiceError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected ServiceError with status, got %#v", err)
	}
}

func TestServiceStatusMapping(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
		login    string
		register string
	}{
		{http.StatusBadRequest, ErrServiceBadRequest, "Credenciales inválidas (400)", "Solicitud inválida (400)"},
		{http.StatusNotFound, ErrServiceNotFound, "Ruta de login no encontrada (404)", "Ruta de registro no encontrada (404)"},
		{http.StatusInternalServerError, ErrServiceFault, "Error interno del servidor (500)", "Error interno del servidor (500)"},
		{http.StatusBadGateway, ErrServiceStatus, "Error HTTP 502", "Error HTTP 502"},
		{http.StatusUnauthorized, ErrServiceStatus, "Error HTTP 401", "Error HTTP 401"},
	}

	engine, srv := newServerEngine(t, DefaultConfig())
	ctx := context.Background()

	for _, tc := range tests {
		srv.FailNext("login", tc.status)
		err := engine.Login(ctx, "a@b.com", "pw")
		if !errors.Is(err, tc.sentinel) {
			t.Fatalf("login %d: expected %v, got %v", tc.status, tc.sentinel, err)
		}
		expectState(t, engine, StateError, tc.login)

		srv.FailNext("register", tc.status)
		err = engine.Register(ctx, RegisterInput{Name: "A", LastName: "B", Email: "a@b.com", Password: "pw"})
		if !errors.Is(err, tc.sentinel) {
			t.Fatalf("register %d: expected %v, got %v", tc.status, tc.sentinel, err)
		}
		expectState(t, engine, StateError, tc.register)
	}
}

func TestServiceStatusMappingInEnglish(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Messages.Language = "en"
	engine, srv := newServerEngine(t, cfg)

	srv.FailNext("login", http.StatusServiceUnavailable)
	_ = engine.Login(context.Background(), "a@b.com", "pw")
	expectState(t, engine, StateError, "HTTP error 503")
}

func TestLoginWithoutTokenFails(t *testing.T) {
	engine, srv := newServerEngine(t, DefaultConfig())
	if _, err := srv.AddAccount("Ana", "Rojas", "ana@example.com", "Passw0rd!"); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}
	srv.OmitToken(true)

	err := engine.Login(context.Background(), "ana@example.com", "Passw0rd!")
	if !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}
	// the service message is passed through as-is
	expectState(t, engine, StateError, authapitest.MessageLoggedIn)
	if _, ok := engine.LoggedEmail(); ok {
		t.Fatal("tokenless login must not set the session")
	}
}

func TestLoginBlankTokenDefaultMessage(t *testing.T) {
	for _, token := range []string{"", "   "} {
		engine := newFakeServiceEngine(t, &fakeService{
			login: func(context.Context, authapi.LoginRequest) (*authapi.LoginResponse, error) {
				return &authapi.LoginResponse{Token: token}, nil
			},
		})

		if err := engine.Login(context.Background(), "a@b.com", "pw"); !errors.Is(err, ErrTokenMissing) {
			t.Fatalf("expected ErrTokenMissing, got %v", err)
		}
		expectState(t, engine, StateError, "Token no recibido desde el servidor")
	}
}

func TestTransportErrorsPassThrough(t *testing.T) {
	engine := newFakeServiceEngine(t, &fakeService{
		login: func(context.Context, authapi.LoginRequest) (*authapi.LoginResponse, error) {
			return nil, errors.New("dial tcp 10.0.2.2:8080: connect: connection refused")
		},
		register: func(context.Context, authapi.RegisterRequest) (*authapi.RegisterResponse, error) {
			return nil, errors.New("read: connection reset by peer")
		},
	})
	ctx := context.Background()

	err := engine.Login(ctx, "a@b.com", "pw")
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	expectState(t, engine, StateError, "dial tcp 10.0.2.2:8080: connect: connection refused")

	err = engine.Register(ctx, RegisterInput{Email: "a@b.com"})
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	expectState(t, engine, StateError, "read: connection reset by peer")
}

func TestEmptyFailureMessagesUseDefaults(t *testing.T) {
	engine := newFakeServiceEngine(t, &fakeService{
		login: func(context.Context, authapi.LoginRequest) (*authapi.LoginResponse, error) {
			return nil, blankError{}
		},
		register: func(context.Context, authapi.RegisterRequest) (*authapi.RegisterResponse, error) {
			return nil, blankError{}
		},
	})
	ctx := context.Background()

	_ = engine.Login(ctx, "a@b.com", "pw")
	expectState(t, engine, StateError, "Error al iniciar sesión")

	_ = engine.Register(ctx, RegisterInput{Email: "a@b.com"})
	expectState(t, engine, StateError, "Error desconocido")
}

func TestRegisterDefaultSuccessMessage(t *testing.T) {
	engine := newFakeServiceEngine(t, &fakeService{
		register: func(context.Context, authapi.RegisterRequest) (*authapi.RegisterResponse, error) {
			return &authapi.RegisterResponse{}, nil
		},
	})

	if err := engine.Register(context.Background(), RegisterInput{Email: "a@b.com"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	expectState(t, engine, StateSuccess, "Registro exitoso")
}

func TestLoginWithoutServiceIsNotReady(t *testing.T) {
	engine, err := New().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	if err := engine.Login(context.Background(), "a@b.com", "pw"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	expectState(t, engine, StateError, "Error al iniciar sesión")
}

func TestLogoutClearsSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	sink := NewChannelSink(8)

	engine := newFakeServiceEngine(t, &fakeService{
		login: func(context.Context, authapi.LoginRequest) (*authapi.LoginResponse, error) {
			return &authapi.LoginResponse{Token: "t"}, nil
		},
	}, func(b *Builder) { b.WithConfig(cfg).WithAuditSink(sink) })

	engine.Logout()
	if got := engine.MetricsSnapshot().Counters[MetricLogout]; got != 0 {
		t.Fatalf("logout without session must not count, got %d", got)
	}

	if err := engine.Login(context.Background(), "a@b.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	engine.Logout()

	if _, ok := engine.LoggedEmail(); ok {
		t.Fatal("expected no session after logout")
	}
	if engine.Session() != nil {
		t.Fatal("expected nil session after logout")
	}
	expectState(t, engine, StateIdle, "")
	if got := engine.MetricsSnapshot().Counters[MetricLogout]; got != 1 {
		t.Fatalf("expected one logout, got %d", got)
	}

	engine.Close()
	for _, want := range []string{auditEventLoginSuccess, auditEventLogout} {
		select {
		case ev := <-sink.Events():
			if ev.EventType != want || ev.Subject != "a@b.com" {
				t.Fatalf("expected %s for a@b.com, got %+v", want, ev)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s not delivered", want)
		}
	}
}

func TestLoginFailureAudited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	sink := NewChannelSink(8)

	srv := authapitest.NewServer()
	defer srv.Close()
	cfg.Service.BaseURL = srv.URL

	engine, err := New().WithConfig(cfg).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	_ = engine.Login(context.Background(), "nobody@example.com", "wrong")
	engine.Close()

	select {
	case ev := <-sink.Events():
		if ev.EventType != auditEventLoginFailure || ev.Success || ev.Error != string(auditErrServiceBadRequest) {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestLoginObservesServiceLatency(t *testing.T) {
	engine := newFakeServiceEngine(t, &fakeService{
		login: func(context.Context, authapi.LoginRequest) (*authapi.LoginResponse, error) {
			return &authapi.LoginResponse{Token: "t"}, nil
		},
	}, func(b *Builder) { b.WithLatencyHistograms(true) })

	if err := engine.Login(context.Background(), "a@b.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	snap := engine.MetricsSnapshot()
	var total uint64
	for _, v := range snap.Histograms[MetricServiceLatency] {
		total += v
	}
	if total != 1 || snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("expected one observation and one success, got %v %v", snap.Histograms, snap.Counters)
	}
}

// A slow first login that resolves after a second one began overwrites the
// second's in-flight state. There is no cancellation.
func TestOverlappingLoginsAreLatestWins(t *testing.T) {
	started := make(chan string, 2)
	release := map[string]chan struct{}{
		"slow@b.com": make(chan struct{}),
		"fast@b.com": make(chan struct{}),
	}

	engine := newFakeServiceEngine(t, &fakeService{
		login: func(_ context.Context, req authapi.LoginRequest) (*authapi.LoginResponse, error) {
			started <- req.Email
			<-release[req.Email]
			if req.Email == "slow@b.com" {
				return nil, &authapi.StatusError{Op: "login", StatusCode: http.StatusInternalServerError}
			}
			return &authapi.LoginResponse{Token: "t"}, nil
		},
	})
	ctx := context.Background()

	slowDone := make(chan error, 1)
	go func() { slowDone <- engine.Login(ctx, "slow@b.com", "pw") }()
	<-started

	fastDone := make(chan error, 1)
	go func() { fastDone <- engine.Login(ctx, "fast@b.com", "pw") }()
	<-started
	expectState(t, engine, StateLoading, "")

	close(release["slow@b.com"])
	if err := <-slowDone; !errors.Is(err, ErrServiceFault) {
		t.Fatalf("expected ErrServiceFault, got %v", err)
	}
	// the second login is still in flight but its Loading is gone
	expectState(t, engine, StateError, "Error interno del servidor (500)")

	close(release["fast@b.com"])
	if err := <-fastDone; err != nil {
		t.Fatalf("fast login: %v", err)
	}
	expectState(t, engine, StateSuccess, "Login exitoso")
	if email, _ := engine.LoggedEmail(); email != "fast@b.com" {
		t.Fatalf("expected fast@b.com, got %q", email)
	}
}
