package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/internal/logging"
	promexport "github.com/MrEthical07/authflow/metrics/export/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var version = "dev"

// errReported means the failure was already shown to the user.
var errReported = errors.New("failure reported")

// Keys shared by flags, the config file and AUTHFLOW_* environment variables.
const (
	keyServiceURL     = "service.base_url"
	keyServiceTimeout = "service.timeout"
	keyCodeTTL        = "reset.code_ttl"
	keyRetention      = "reset.expired_retention"
	keyMinPassword    = "reset.min_password_length"
	keyStrict         = "reset.require_verified"
	keyRedisAddr      = "reset.redis_addr"
	keyRedisPrefix    = "reset.redis_prefix"
	keyResetKey       = "reset.key"
	keyLanguage       = "messages.language"
	keyTokenMethod    = "token.signing_method"
	keyTokenKey       = "token.key"
	keyTokenIssuer    = "token.issuer"
	keyAudit          = "audit.enabled"
	keyMetricsAddr    = "metrics.addr"
	keyLogLevel       = "log.level"
	keyLogFormat      = "log.format"

	cliResetKey = "cli"
)

type app struct {
	v *viper.Viper

	stdin  io.Reader
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer

	// readPassword reads a secret without echo when stdin is a terminal.
	readPassword func(prompt string) (string, error)

	logger  *slog.Logger
	engine  *authflow.Engine
	closers []func()
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		v:      viper.New(),
		stdin:  stdin,
		in:     bufio.NewReader(stdin),
		out:    stdout,
		errOut: stderr,
	}
	a.readPassword = a.defaultReadPassword

	var cfgFile string

	cmd := &cobra.Command{
		Use:           "authflow",
		Short:         "Client-side login, registration and password reset",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig(cfgFile)
		},
	}
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	defaults := authflow.DefaultConfig()
	a.v.SetDefault(keyServiceTimeout, defaults.Service.Timeout)
	a.v.SetDefault(keyCodeTTL, defaults.PasswordReset.CodeTTL)
	a.v.SetDefault(keyRetention, defaults.PasswordReset.ExpiredRetention)
	a.v.SetDefault(keyMinPassword, defaults.PasswordReset.MinPasswordLength)
	a.v.SetDefault(keyRedisPrefix, defaults.PasswordReset.RedisPrefix)
	a.v.SetDefault(keyLanguage, defaults.Messages.Language)
	a.v.SetDefault(keyLogLevel, "warn")
	a.v.SetDefault(keyLogFormat, "text")

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.authflow.yaml)")
	pf.String("service-url", "", "base URL of the authentication service")
	pf.String("lang", defaults.Messages.Language, "language of user-facing messages (es, en)")
	pf.Bool("strict", false, "require a verified code before the password can be changed")
	pf.String("redis-addr", "", "keep the reset session in Redis at this address")
	pf.String("reset-key", "", "reset session key (default \"cli\" with Redis)")
	pf.Bool("audit", false, "write audit events as JSON lines to stderr")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address while running")
	pf.String("log-level", "warn", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")

	for key, flag := range map[string]string{
		keyServiceURL:  "service-url",
		keyLanguage:    "lang",
		keyStrict:      "strict",
		keyRedisAddr:   "redis-addr",
		keyResetKey:    "reset-key",
		keyAudit:       "audit",
		keyMetricsAddr: "metrics-addr",
		keyLogLevel:    "log-level",
		keyLogFormat:   "log-format",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	cmd.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newResetCmd(a),
		newFakeServerCmd(a),
	)
	return cmd
}

func (a *app) loadConfig(cfgFile string) error {
	if cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(home)
		}
		a.v.AddConfigPath(".")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(".authflow")
	}

	a.v.SetEnvPrefix("AUTHFLOW")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return fmt.Errorf("read config: %w", err)
		}
	}

	level, err := logging.ParseLevel(a.v.GetString(keyLogLevel))
	if err != nil {
		return err
	}
	a.logger = logging.Setup("authflow", version, a.v.GetString(keyLogFormat), level, a.errOut)
	return nil
}

func (a *app) config() authflow.Config {
	cfg := authflow.DefaultConfig()
	cfg.Service.BaseURL = strings.TrimSpace(a.v.GetString(keyServiceURL))
	cfg.Service.Timeout = a.v.GetDuration(keyServiceTimeout)
	cfg.PasswordReset.CodeTTL = a.v.GetDuration(keyCodeTTL)
	cfg.PasswordReset.ExpiredRetention = a.v.GetDuration(keyRetention)
	cfg.PasswordReset.MinPasswordLength = a.v.GetInt(keyMinPassword)
	cfg.PasswordReset.RequireVerified = a.v.GetBool(keyStrict)
	cfg.PasswordReset.RedisPrefix = a.v.GetString(keyRedisPrefix)
	cfg.Messages.Language = a.v.GetString(keyLanguage)
	cfg.Token.SigningMethod = a.v.GetString(keyTokenMethod)
	if key := a.v.GetString(keyTokenKey); key != "" {
		cfg.Token.Key = []byte(key)
	}
	cfg.Token.Issuer = a.v.GetString(keyTokenIssuer)
	cfg.Audit.Enabled = a.v.GetBool(keyAudit)
	return cfg
}

// open builds the engine for one command. Call close when done.
func (a *app) open(ctx context.Context) error {
	b := authflow.New().WithConfig(a.config()).WithLogger(a.logger)

	if addr := a.v.GetString(keyRedisAddr); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return fmt.Errorf("redis %s: %w", addr, err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })

		key := a.v.GetString(keyResetKey)
		if key == "" {
			key = cliResetKey
		}
		b.WithRedis(rdb).WithResetKey(key)
	} else if key := a.v.GetString(keyResetKey); key != "" {
		b.WithResetKey(key)
	}

	if a.v.GetBool(keyAudit) {
		b.WithAuditSink(authflow.NewJSONWriterSink(a.errOut))
	}

	engine, err := b.Build()
	if err != nil {
		a.close()
		return err
	}
	a.engine = engine
	a.closers = append(a.closers, engine.Close)

	if addr := a.v.GetString(keyMetricsAddr); addr != "" {
		if err := a.serveMetrics(addr); err != nil {
			a.close()
			return err
		}
	}
	return nil
}

func (a *app) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promexport.Handler(promexport.NewCollector(a.engine)))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", ln.Addr().String())

	// registered before engine.Close so the last scrape still sees the engine
	a.closers = append([]func(){func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}}, a.closers...)
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// report prints and drains the terminal state left by the last operation.
func (a *app) report() (authflow.Outcome, error) {
	out, ok := a.engine.TakeResult()
	if !ok {
		return out, nil
	}
	fmt.Fprintln(a.out, out.Message)
	if !out.Success {
		return out, errReported
	}
	return out, nil
}

func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label+": ")
	line, err := a.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) defaultReadPassword(label string) (string, error) {
	f, ok := a.stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return a.prompt(label)
	}

	fmt.Fprint(a.out, label+": ")
	pw, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(a.out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
