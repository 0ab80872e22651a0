package authflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authflow/authapi"
	"github.com/MrEthical07/authflow/internal/flows"
	"github.com/MrEthical07/authflow/internal/messages"
	"github.com/MrEthical07/authflow/jwt"
)

// User is the account profile returned by a successful login, when the
// service includes one.
type User struct {
	ID    int
	Name  string
	Email string
}

// SessionInfo describes the logged-in identity. It is a display marker, not a
// credential store: nothing here survives the process.
type SessionInfo struct {
	Email      string
	Token      string
	User       *User
	Claims     *jwt.Claims
	LoggedInAt time.Time
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Name     string
	LastName string
	Email    string
	Password string
}

const (
	opLogin    = "login"
	opRegister = "register"
)

// Login authenticates against the service. The machine goes through Loading
// to Success("Login exitoso") or to Error with the mapped reason, and the
// same failure is returned. A reply without a token is a failure even when
// the service reported success.
func (e *Engine) Login(ctx context.Context, email, password string) error {
	e.machine.Begin()

	var claims *jwt.Claims
	deps := e.loginFlowDeps()
	deps.InspectToken = func(token string) error {
		c, err := e.inspectToken(token)
		if err != nil {
			return err
		}
		claims = c
		return nil
	}

	reply, err := flows.RunLogin(ctx, email, password, deps)
	if err != nil {
		msg := e.loginFailureMessage(reply, err)
		e.logger.InfoContext(ctx, "login failed", "reason", string(auditErrorCode(err)))
		e.machine.FailWith(err, msg)
		return err
	}

	info := &SessionInfo{
		Email:      email,
		Token:      reply.Token,
		Claims:     claims,
		LoggedInAt: e.now(),
	}
	if reply.User != nil {
		info.User = &User{ID: reply.User.ID, Name: reply.User.Name, Email: reply.User.Email}
	}

	e.mu.Lock()
	e.session = info
	e.mu.Unlock()

	e.machine.Succeed(e.text(messages.LoginSuccess, nil))
	return nil
}

// Register creates an account. On success the service message is surfaced,
// or "Registro exitoso" when the service sent none. Register does not log in.
func (e *Engine) Register(ctx context.Context, in RegisterInput) error {
	e.machine.Begin()

	reply, err := flows.RunRegister(ctx, flows.RegisterInput{
		Name:     in.Name,
		LastName: in.LastName,
		Email:    in.Email,
		Password: in.Password,
	}, e.loginFlowDeps())
	if err != nil {
		e.logger.InfoContext(ctx, "register failed", "reason", string(auditErrorCode(err)))
		e.machine.FailWith(err, e.serviceMessage(opRegister, err))
		return err
	}

	msg := strings.TrimSpace(reply.Message)
	if msg == "" {
		msg = e.text(messages.RegisterSuccess, nil)
	}
	e.machine.Succeed(msg)
	return nil
}

// Logout forgets the logged-in identity and returns the machine to Idle.
func (e *Engine) Logout() {
	e.mu.Lock()
	prev := e.session
	e.session = nil
	e.mu.Unlock()

	e.machine.Reset()

	if prev == nil {
		return
	}
	e.metricInc(MetricLogout)
	e.emitAudit(context.Background(), auditEventLogout, true, prev.Email, "", nil, nil)
}

// LoggedEmail returns the email of the current session.
func (e *Engine) LoggedEmail() (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.session == nil {
		return "", false
	}
	return e.session.Email, true
}

// Session returns a copy of the current session, or nil.
func (e *Engine) Session() *SessionInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.session == nil {
		return nil
	}
	s := *e.session
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return &s
}

func (e *Engine) inspectToken(token string) (*jwt.Claims, error) {
	claims, err := e.tokens.Inspect(token)
	if err == nil {
		return claims, nil
	}
	if !e.tokens.Verifying() {
		// opaque service tokens are accepted as-is
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrTokenRejected, err)
}

func (e *Engine) loginFailureMessage(reply flows.LoginReply, err error) string {
	switch {
	case errors.Is(err, ErrTokenMissing):
		if msg := strings.TrimSpace(reply.Message); msg != "" {
			return msg
		}
		return e.text(messages.TokenMissing, nil)
	case errors.Is(err, ErrTokenRejected):
		return e.text(messages.TokenRejected, nil)
	default:
		return e.serviceMessage(opLogin, err)
	}
}

// serviceMessage maps a service failure to the text shown to the user.
func (e *Engine) serviceMessage(op string, err error) string {
	var se *ServiceError
	if !errors.As(err, &se) {
		if errors.Is(err, ErrEngineNotReady) {
			return e.defaultFailure(op)
		}
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			return msg
		}
		return e.defaultFailure(op)
	}

	switch {
	case errors.Is(se, ErrServiceBadRequest):
		if op == opLogin {
			return e.text(messages.LoginBadRequest, nil)
		}
		return e.text(messages.RegisterBadRequest, nil)
	case errors.Is(se, ErrServiceNotFound):
		if op == opLogin {
			return e.text(messages.LoginNotFound, nil)
		}
		return e.text(messages.RegisterNotFound, nil)
	case errors.Is(se, ErrServiceFault):
		return e.text(messages.ServiceFault, nil)
	case errors.Is(se, ErrServiceStatus):
		return e.text(messages.ServiceStatus, map[string]any{"Status": se.StatusCode})
	}

	if msg := strings.TrimSpace(se.Error()); msg != "" {
		return msg
	}
	return e.defaultFailure(op)
}

func (e *Engine) defaultFailure(op string) string {
	if op == opLogin {
		return e.text(messages.LoginFailed, nil)
	}
	return e.text(messages.RegisterFailed, nil)
}

func (e *Engine) loginFlowDeps() flows.LoginDeps {
	deps := flows.LoginDeps{
		Now:           e.now,
		MetricInc:     func(id int) { e.metricInc(MetricID(id)) },
		MetricObserve: func(id int, d time.Duration) { e.metricObserve(MetricID(id), d) },
		EmitAudit:     e.emitAudit,
		Metrics: flows.LoginMetrics{
			LoginSuccess:    int(MetricLoginSuccess),
			LoginFailure:    int(MetricLoginFailure),
			RegisterSuccess: int(MetricRegisterSuccess),
			RegisterFailure: int(MetricRegisterFailure),
			ServiceLatency:  int(MetricServiceLatency),
		},
		Events: flows.LoginEvents{
			LoginSuccess:    auditEventLoginSuccess,
			LoginFailure:    auditEventLoginFailure,
			RegisterSuccess: auditEventRegisterSuccess,
			RegisterFailure: auditEventRegisterFailure,
		},
		Errors: flows.LoginErrors{
			EngineNotReady: ErrEngineNotReady,
			TokenMissing:   ErrTokenMissing,
		},
	}

	svc := e.service
	if svc == nil {
		return deps
	}

	deps.CallLogin = func(ctx context.Context, email, password string) (flows.LoginReply, error) {
		resp, err := svc.Login(ctx, authapi.LoginRequest{Email: email, Password: password})
		if err != nil {
			return flows.LoginReply{}, wrapServiceError(opLogin, err)
		}
		if resp == nil {
			return flows.LoginReply{}, nil
		}
		reply := flows.LoginReply{Token: resp.Token, Message: resp.Message}
		if resp.User != nil {
			reply.User = &flows.LoginUser{ID: resp.User.ID, Name: resp.User.Name, Email: resp.User.Email}
		}
		return reply, nil
	}
	deps.CallRegister = func(ctx context.Context, in flows.RegisterInput) (flows.RegisterReply, error) {
		resp, err := svc.Register(ctx, authapi.RegisterRequest{
			Name:     in.Name,
			LastName: in.LastName,
			Email:    in.Email,
			Password: in.Password,
		})
		if err != nil {
			return flows.RegisterReply{}, wrapServiceError(opRegister, err)
		}
		if resp == nil {
			return flows.RegisterReply{}, nil
		}
		return flows.RegisterReply{Message: resp.Message}, nil
	}
	return deps
}
