package flows

import (
	"context"
	"strings"
	"time"
)

type LoginUser struct {
	ID    int
	Name  string
	Email string
}

// LoginReply is the service answer as seen by the flow.
type LoginReply struct {
	Token   string
	Message string
	User    *LoginUser
}

type RegisterInput struct {
	Name     string
	LastName string
	Email    string
	Password string
}

type RegisterReply struct {
	Message string
}

type LoginMetrics struct {
	LoginSuccess    int
	LoginFailure    int
	RegisterSuccess int
	RegisterFailure int
	ServiceLatency  int
}

type LoginEvents struct {
	LoginSuccess    string
	LoginFailure    string
	RegisterSuccess string
	RegisterFailure string
}

type LoginErrors struct {
	EngineNotReady error
	TokenMissing   error
}

type LoginDeps struct {
	CallLogin    func(context.Context, string, string) (LoginReply, error)
	CallRegister func(context.Context, RegisterInput) (RegisterReply, error)
	InspectToken func(string) error

	Now           func() time.Time
	MetricInc     func(int)
	MetricObserve func(int, time.Duration)
	EmitAudit     func(ctx context.Context, event string, success bool, email, flowID string, err error, metadata func() map[string]string)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin calls the service and accepts the reply only if it carries a
// non-blank token that InspectToken (when set) does not reject. The reply is
// returned even on failure so the caller can surface the service message.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (LoginReply, error) {
	normalizeLoginDeps(&deps)

	if deps.CallLogin == nil {
		return LoginReply{}, deps.Errors.EngineNotReady
	}

	started := deps.Now()
	reply, err := deps.CallLogin(ctx, email, password)
	deps.MetricObserve(deps.Metrics.ServiceLatency, deps.Now().Sub(started))
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, email, "", err, nil)
		return LoginReply{}, err
	}

	if strings.TrimSpace(reply.Token) == "" {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, email, "", deps.Errors.TokenMissing, func() map[string]string {
			return map[string]string{
				"reason": "token_missing",
			}
		})
		return reply, deps.Errors.TokenMissing
	}

	if deps.InspectToken != nil {
		if err := deps.InspectToken(reply.Token); err != nil {
			deps.MetricInc(deps.Metrics.LoginFailure)
			deps.EmitAudit(ctx, deps.Events.LoginFailure, false, email, "", err, func() map[string]string {
				return map[string]string{
					"reason": "token_rejected",
				}
			})
			return reply, err
		}
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, email, "", nil, nil)
	return reply, nil
}

func RunRegister(ctx context.Context, in RegisterInput, deps LoginDeps) (RegisterReply, error) {
	normalizeLoginDeps(&deps)

	if deps.CallRegister == nil {
		return RegisterReply{}, deps.Errors.EngineNotReady
	}

	started := deps.Now()
	reply, err := deps.CallRegister(ctx, in)
	deps.MetricObserve(deps.Metrics.ServiceLatency, deps.Now().Sub(started))
	if err != nil {
		deps.MetricInc(deps.Metrics.RegisterFailure)
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, in.Email, "", err, nil)
		return RegisterReply{}, err
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.RegisterSuccess, true, in.Email, "", nil, nil)
	return reply, nil
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.MetricObserve == nil {
		deps.MetricObserve = func(int, time.Duration) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.Errors.EngineNotReady == nil {
		deps.Errors.EngineNotReady = errLoginFlowNotReady
	}
}
