package authflow

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config controls an Engine. Start from DefaultConfig and override fields.
//
// Config values are copied into the Engine by Build and treated as immutable
// afterwards.
type Config struct {
	Service       ServiceConfig
	PasswordReset PasswordResetConfig
	Token         TokenConfig
	Messages      MessagesConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
SERVICE CONFIG
====================================
*/

// ServiceConfig locates the remote authentication service. It is only used
// when the Builder is not given an AuthService explicitly.
type ServiceConfig struct {
	BaseURL string
	Timeout time.Duration
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig controls the one-time-code reset protocol.
type PasswordResetConfig struct {
	// CodeTTL is the validity window of a generated code.
	CodeTTL time.Duration
	// ExpiredRetention keeps an expired session in the store this long past
	// CodeTTL so verification still answers "expired" instead of "no code".
	ExpiredRetention  time.Duration
	MinPasswordLength int
	// RequireVerified makes FinishReset refuse unless the current code was
	// verified first.
	RequireVerified bool
	RedisPrefix     string
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls inspection of the login token. With an empty
// SigningMethod claims are decoded when possible and never verified.
type TokenConfig struct {
	SigningMethod string // "", "hs256" or "ed25519"
	Key           []byte // HS256 secret or Ed25519 public key
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
MESSAGES CONFIG
====================================
*/

// MessagesConfig selects the language of user-facing messages.
type MessagesConfig struct {
	Language string
}

/*
====================================
AUDIT CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration matching the reference client: a
// 60 second five digit code, an eight character minimum and Spanish messages.
func DefaultConfig() Config {
	return Config{
		Service: ServiceConfig{
			Timeout: 15 * time.Second,
		},
		PasswordReset: PasswordResetConfig{
			CodeTTL:           60 * time.Second,
			ExpiredRetention:  10 * time.Minute,
			MinPasswordLength: 8,
			RequireVerified:   false,
			RedisPrefix:       "afr",
		},
		Messages: MessagesConfig{
			Language: "es",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Key = cloneBytes(cfg.Token.Key)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first inconsistency in c.
func (c *Config) Validate() error {
	if c.Service.BaseURL != "" {
		u, err := url.Parse(c.Service.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("Service BaseURL must be an absolute http(s) URL")
		}
	}
	if c.Service.Timeout < 0 {
		return errors.New("Service Timeout must be >= 0")
	}

	if c.PasswordReset.CodeTTL <= 0 {
		return errors.New("PasswordReset CodeTTL must be > 0")
	}
	if c.PasswordReset.CodeTTL > time.Hour {
		return errors.New("PasswordReset CodeTTL must be <= 1h")
	}
	if c.PasswordReset.ExpiredRetention < 0 {
		return errors.New("PasswordReset ExpiredRetention must be >= 0")
	}
	if c.PasswordReset.MinPasswordLength < 1 {
		return errors.New("PasswordReset MinPasswordLength must be >= 1")
	}
	if strings.ContainsAny(c.PasswordReset.RedisPrefix, " \t\r\n") {
		return errors.New("PasswordReset RedisPrefix must not contain whitespace")
	}

	switch strings.ToLower(strings.TrimSpace(c.Token.SigningMethod)) {
	case "":
		if len(c.Token.Key) > 0 {
			return errors.New("Token Key requires a SigningMethod")
		}
	case "hs256", "ed25519":
		if len(c.Token.Key) == 0 {
			return errors.New("Token SigningMethod requires Key")
		}
	default:
		return errors.New("unsupported Token SigningMethod")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}
	return nil
}
