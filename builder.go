package authflow

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/authflow/authapi"
	"github.com/MrEthical07/authflow/internal/audit"
	"github.com/MrEthical07/authflow/internal/messages"
	"github.com/MrEthical07/authflow/internal/stores"
	"github.com/MrEthical07/authflow/jwt"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. Configure it once, call Build, and discard it.
type Builder struct {
	config Config

	service    AuthService
	resetStore stores.ResetStore
	redis      redis.UniversalClient
	resetKey   string

	auditSink AuditSink
	logger    *slog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithService sets the authentication backend. Without it Build dials
// Config.Service.BaseURL, and with neither Login and Register fail with
// ErrEngineNotReady.
func (b *Builder) WithService(svc AuthService) *Builder {
	b.service = svc
	return b
}

// WithResetStore overrides where reset sessions live. It takes precedence
// over WithRedis.
func (b *Builder) WithResetStore(store stores.ResetStore) *Builder {
	b.resetStore = store
	return b
}

// WithRedis keeps reset sessions in Redis under PasswordReset.RedisPrefix.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithResetKey names the reset session. Engines sharing a store and key share
// one session; the default is a random key per Engine.
func (b *Builder) WithResetKey(key string) *Builder {
	b.resetKey = key
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now. Expiry checks and audit timestamps read it.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	catalog, err := messages.NewCatalog(cfg.Messages.Language)
	if err != nil {
		return nil, err
	}

	method := jwt.SigningMethod(strings.ToLower(strings.TrimSpace(cfg.Token.SigningMethod)))
	jwtCfg := jwt.Config{
		SigningMethod: method,
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
	}
	switch method {
	case jwt.MethodHS256:
		jwtCfg.PrivateKey = cloneBytes(cfg.Token.Key)
	case jwt.MethodEd25519:
		jwtCfg.PublicKey = cloneBytes(cfg.Token.Key)
	}
	tokens, err := jwt.NewManager(jwtCfg)
	if err != nil {
		return nil, err
	}

	service := b.service
	if service == nil && cfg.Service.BaseURL != "" {
		client, err := authapi.NewClient(cfg.Service.BaseURL, authapi.WithTimeout(cfg.Service.Timeout))
		if err != nil {
			return nil, fmt.Errorf("service client: %w", err)
		}
		service = client
	}

	store := b.resetStore
	if store == nil {
		if b.redis != nil {
			store = stores.NewRedisResetStore(b.redis, cfg.PasswordReset.RedisPrefix)
		} else {
			store = stores.NewMemoryResetStore()
		}
	}

	resetKey := strings.TrimSpace(b.resetKey)
	if resetKey == "" {
		resetKey = uuid.NewString()
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:  cloneConfig(cfg),
		service: service,
		tokens:  tokens,
		catalog: catalog,
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		now:     now,
		machine: NewMachine(),
	}
	engine.reset = &ResetController{
		engine: engine,
		store:  store,
		key:    resetKey,
		cfg:    cfg.PasswordReset,
	}

	logger.Debug("authflow engine built",
		"service", service != nil,
		"redis", b.redis != nil && b.resetStore == nil,
		"strict_reset", cfg.PasswordReset.RequireVerified,
		"token_verify", tokens.Verifying(),
		"language", cfg.Messages.Language,
	)

	b.built = true

	return engine, nil
}
