package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects how tokens are signed and verified.
type SigningMethod string

const (
	// MethodNone decodes claims without checking the signature.
	MethodNone SigningMethod = ""
	// MethodEd25519 verifies EdDSA tokens with a public key.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 verifies HMAC-SHA256 tokens with a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

var (
	// ErrNotJWT is returned when the token is not a three-part JWT at all.
	// Opaque service tokens produce it; callers decide whether that is fatal.
	ErrNotJWT = errors.New("token is not a JWT")
	// ErrSigningDisabled is returned by Issue on a Manager without a private key.
	ErrSigningDisabled = errors.New("token signing not configured")
)

// Config describes a Manager.
type Config struct {
	SigningMethod SigningMethod
	// PrivateKey is the HS256 secret or the Ed25519 private key (raw or PEM).
	// It is only required for Issue, except with HS256 where it also verifies.
	PrivateKey []byte
	// PublicKey is the Ed25519 verification key (raw or PEM).
	PublicKey []byte
	Issuer    string
	Audience  string
	Leeway    time.Duration
	// TTL is the lifetime of tokens created by Issue.
	TTL time.Duration
}

// Claims is the subset of the service token the client cares about.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Manager decodes, verifies and optionally issues tokens.
// A Manager is immutable and safe for concurrent use.
type Manager struct {
	config    Config
	verifyKey any
	signKey   any
}

// NewManager validates cfg and parses its keys.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.TTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	cfg.SigningMethod = SigningMethod(strings.ToLower(strings.TrimSpace(string(cfg.SigningMethod))))

	m := &Manager{config: cfg}
	switch cfg.SigningMethod {
	case MethodNone:
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
		m.verifyKey = cfg.PrivateKey
		m.signKey = cfg.PrivateKey
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.signKey = priv
			if len(cfg.PublicKey) == 0 {
				m.verifyKey = priv.Public()
			}
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			m.verifyKey = pub
		}
		if m.verifyKey == nil {
			return nil, errors.New("ed25519 requires public key")
		}
	default:
		return nil, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}
	return m, nil
}

// Verifying reports whether Inspect checks signatures.
func (m *Manager) Verifying() bool {
	return m != nil && m.config.SigningMethod != MethodNone
}

// Inspect returns the claims of token. When the Manager verifies, an invalid
// signature, wrong algorithm, expired token or issuer/audience mismatch is an
// error. Otherwise the claims are decoded as-is.
func (m *Manager) Inspect(token string) (*Claims, error) {
	if strings.Count(token, ".") != 2 {
		return nil, ErrNotJWT
	}

	if !m.Verifying() {
		claims := &Claims{}
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotJWT, err)
		}
		return claims, nil
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.verifyKey, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Issue signs a token for subject. Used by test servers and demos.
func (m *Manager) Issue(subject, email, name string) (string, error) {
	if m == nil || m.signKey == nil {
		return "", ErrSigningDisabled
	}
	ttl := m.config.TTL
	if ttl == 0 {
		ttl = time.Hour
	}

	now := time.Now()
	claims := Claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	return jwt.NewWithClaims(m.method(), claims).SignedString(m.signKey)
}

func (m *Manager) method() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
