package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func TestInspectDecodesWithoutVerification(t *testing.T) {
	issuer, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("secret-secret-secret-secret")})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := issuer.Issue("42", "a@b.com", "Ana")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	m, err := NewManager(Config{})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if m.Verifying() {
		t.Fatal("expected decode-only manager")
	}
	claims, err := m.Inspect(token)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if claims.Subject != "42" || claims.Email != "a@b.com" || claims.Name != "Ana" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestInspectRejectsOpaqueToken(t *testing.T) {
	m, err := NewManager(Config{})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	for _, token := range []string{"", "opaque-session-token", "a.b", "a.b.c.d"} {
		if _, err := m.Inspect(token); !errors.Is(err, ErrNotJWT) {
			t.Fatalf("expected ErrNotJWT for %q, got %v", token, err)
		}
	}
	if _, err := m.Inspect("not.a.jwt"); !errors.Is(err, ErrNotJWT) {
		t.Fatalf("expected malformed segments to be ErrNotJWT, got %v", err)
	}
}

func TestInspectVerifiesEd25519(t *testing.T) {
	pub, priv := newEdKeys(t)
	issuer, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv, Issuer: "authsvc", TTL: time.Minute})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	verifier, err := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: pub, Issuer: "authsvc"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	token, err := issuer.Issue("7", "c@d.com", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Inspect(token); err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}

	otherPub, _ := newEdKeys(t)
	stranger, err := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: otherPub})
	if err != nil {
		t.Fatalf("new stranger: %v", err)
	}
	if _, err := stranger.Inspect(token); err == nil {
		t.Fatal("expected signature from another key to be rejected")
	}
}

func TestInspectRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Inspect(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestInspectRejectsExpiredAndMissingExpiry(t *testing.T) {
	secret := []byte("secret-secret-secret-secret")
	m, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: secret})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	expired := Claims{RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-time.Minute))}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, expired).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Inspect(token); !errors.Is(err, gjwt.ErrTokenExpired) {
		t.Fatalf("expected expired token error, got %v", err)
	}

	token, err = gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{}).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Inspect(token); err == nil {
		t.Fatal("expected token without exp to be rejected")
	}
}

func TestNewManagerValidation(t *testing.T) {
	cases := []Config{
		{SigningMethod: MethodHS256},
		{SigningMethod: MethodEd25519},
		{SigningMethod: MethodEd25519, PublicKey: []byte("short")},
		{SigningMethod: "rs256"},
		{Leeway: 5 * time.Minute},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected config error", i)
		}
	}

	m, err := NewManager(Config{})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := m.Issue("1", "", ""); !errors.Is(err, ErrSigningDisabled) {
		t.Fatalf("expected ErrSigningDisabled, got %v", err)
	}
}

// FuzzInspect feeds arbitrary strings to a verifying manager.
// Goal: no panics; invalid inputs must be rejected with errors.
func FuzzInspect(f *testing.F) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		f.Fatal(err)
	}
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub, Leeway: 30 * time.Second})
	if err != nil {
		f.Fatal(err)
	}
	valid, err := m.Issue("uid1", "a@b.com", "Ana")
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJub25lIn0.eyJ1aWQiOiJ0ZXN0In0.")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := m.Inspect(input)
		if err != nil {
			return
		}
		if claims == nil {
			t.Fatal("Inspect returned nil claims without error")
		}
	})
}
