package authflow

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/MrEthical07/authflow/internal"
	"github.com/MrEthical07/authflow/internal/flows"
	"github.com/MrEthical07/authflow/internal/messages"
	"github.com/MrEthical07/authflow/internal/stores"
	"github.com/google/uuid"
)

// ResetTicket is the result of StartReset. Code is the plaintext one-time
// code; it is shown to the user through the success message and is not kept
// anywhere else.
type ResetTicket struct {
	FlowID    string
	Email     string
	Code      string
	ExpiresAt time.Time
}

// ResetController runs the three-step password recovery: request a code,
// verify it, set a new password. It holds at most one session and reports
// every step through the Engine's Machine.
//
// Starting a new reset replaces the previous session without error
// (latest-wins). Expiry is judged against the clock when a code is checked;
// nothing runs in the background.
type ResetController struct {
	engine *Engine
	store  stores.ResetStore
	key    string
	cfg    PasswordResetConfig

	mu sync.Mutex
}

// StartReset generates a five digit code for email and succeeds with a
// message embedding it. A blank email fails with ErrEmailRequired and leaves
// any existing session untouched.
func (r *ResetController) StartReset(ctx context.Context, email string) (ResetTicket, error) {
	if r == nil || r.engine == nil {
		return ResetTicket{}, ErrEngineNotReady
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.engine.machine
	m.Begin()

	ticket, err := flows.RunStartPasswordReset(ctx, email, r.flowDeps())
	if err != nil {
		r.engine.logger.WarnContext(ctx, "password reset start failed", "reason", string(auditErrorCode(err)))
		m.FailWith(err, r.failureMessage(err))
		return ResetTicket{}, err
	}

	r.engine.logger.DebugContext(ctx, "password reset started", "flow_id", ticket.FlowID)
	m.Succeed(r.engine.catalog.Plural(messages.ResetCodeSent, r.ttlMinutes(), map[string]any{
		"Code": ticket.Code,
	}))
	return ResetTicket{
		FlowID:    ticket.FlowID,
		Email:     ticket.Email,
		Code:      ticket.Code,
		ExpiresAt: ticket.ExpiresAt,
	}, nil
}

// VerifyCode checks input against the active code. The result is also
// reported as Success or Error on the Machine. A wrong or expired code keeps
// the session, and a correct code may be verified again.
func (r *ResetController) VerifyCode(ctx context.Context, input string) bool {
	if r == nil || r.engine == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.engine.machine
	if _, err := flows.RunVerifyPasswordResetCode(ctx, input, r.flowDeps()); err != nil {
		m.FailWith(err, r.failureMessage(err))
		return false
	}
	m.Succeed(r.engine.text(messages.ResetCodeVerified, nil))
	return true
}

// FinishReset ends the session once newPassword has at least
// MinPasswordLength characters. No credential is changed anywhere. A short
// password fails with ErrPasswordPolicy and keeps the session. With
// RequireVerified an unverified or missing session fails instead.
func (r *ResetController) FinishReset(ctx context.Context, newPassword string) error {
	if r == nil || r.engine == nil {
		return ErrEngineNotReady
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.engine.machine
	m.Begin()

	record, err := flows.RunFinishPasswordReset(ctx, newPassword, r.flowDeps())
	if err != nil {
		m.FailWith(err, r.failureMessage(err))
		return err
	}

	r.engine.logger.DebugContext(ctx, "password reset finished", "flow_id", record.FlowID, "verified", record.Verified)
	m.Succeed(r.engine.text(messages.PasswordChanged, nil))
	return nil
}

// Email returns the address of the current session. Screens after the first
// step must go back to email entry when it reports false.
func (r *ResetController) Email(ctx context.Context) (string, bool) {
	record, ok := r.current(ctx)
	if !ok || record.Email == "" {
		return "", false
	}
	return record.Email, true
}

// Active reports whether an unexpired code is outstanding.
func (r *ResetController) Active(ctx context.Context) bool {
	record, ok := r.current(ctx)
	if !ok {
		return false
	}
	return r.engine.now().UnixMilli() <= record.ExpiresAt
}

// Verified reports whether the current code has been verified.
func (r *ResetController) Verified(ctx context.Context) bool {
	record, ok := r.current(ctx)
	return ok && record.Verified
}

func (r *ResetController) current(ctx context.Context) (*stores.ResetRecord, bool) {
	if r == nil || r.store == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	record, err := r.store.Get(ctx, r.key)
	if err != nil {
		return nil, false
	}
	return record, true
}

func (r *ResetController) ttlMinutes() int {
	n := int(math.Round(r.cfg.CodeTTL.Minutes()))
	if n < 1 {
		n = 1
	}
	return n
}

func (r *ResetController) failureMessage(err error) string {
	e := r.engine
	switch {
	case errors.Is(err, ErrEmailRequired):
		return e.text(messages.EmailRequired, nil)
	case errors.Is(err, ErrResetNoCode):
		return e.text(messages.ResetNoCode, nil)
	case errors.Is(err, ErrResetCodeExpired):
		return e.text(messages.ResetCodeExpired, nil)
	case errors.Is(err, ErrResetCodeMismatch):
		return e.text(messages.ResetCodeMismatch, nil)
	case errors.Is(err, ErrResetNotVerified):
		return e.text(messages.ResetNotVerified, nil)
	case errors.Is(err, ErrPasswordPolicy):
		return e.text(messages.PasswordTooShort, map[string]any{"Min": r.cfg.MinPasswordLength})
	default:
		return e.text(messages.ResetUnavailable, nil)
	}
}

func (r *ResetController) flowDeps() flows.PasswordResetDeps {
	e := r.engine
	store := r.store

	return flows.PasswordResetDeps{
		Key:               r.key,
		CodeTTL:           r.cfg.CodeTTL,
		RecordTTL:         r.cfg.CodeTTL + r.cfg.ExpiredRetention,
		MinPasswordLength: r.cfg.MinPasswordLength,
		RequireVerified:   r.cfg.RequireVerified,

		Now:          e.now,
		NewFlowID:    uuid.NewString,
		GenerateCode: internal.NewResetCode,
		HashCode:     internal.HashResetCode,
		CodeMatches:  internal.ResetCodeMatches,

		SaveRecord: func(ctx context.Context, key string, rec flows.PasswordResetRecord, ttl time.Duration) error {
			return store.Save(ctx, key, &stores.ResetRecord{
				FlowID:    rec.FlowID,
				Email:     rec.Email,
				CodeHash:  rec.CodeHash,
				ExpiresAt: rec.ExpiresAt,
				CreatedAt: rec.CreatedAt,
				Verified:  rec.Verified,
			}, ttl)
		},
		GetRecord: func(ctx context.Context, key string) (flows.PasswordResetRecord, error) {
			rec, err := store.Get(ctx, key)
			if err != nil {
				return flows.PasswordResetRecord{}, err
			}
			return flows.PasswordResetRecord{
				FlowID:    rec.FlowID,
				Email:     rec.Email,
				CodeHash:  rec.CodeHash,
				ExpiresAt: rec.ExpiresAt,
				CreatedAt: rec.CreatedAt,
				Verified:  rec.Verified,
			}, nil
		},
		MarkVerified: store.MarkVerified,
		DeleteRecord: store.Delete,
		IsStoreNotFound: func(err error) bool {
			return errors.Is(err, stores.ErrResetNotFound)
		},

		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitAudit,

		Metrics: flows.PasswordResetMetrics{
			ResetStart:         int(MetricResetStart),
			ResetStartRejected: int(MetricResetStartRejected),
			ResetVerifySuccess: int(MetricResetVerifySuccess),
			ResetVerifyFailure: int(MetricResetVerifyFailure),
			ResetCodeExpired:   int(MetricResetCodeExpired),
			ResetFinishSuccess: int(MetricResetFinishSuccess),
			ResetFinishFailure: int(MetricResetFinishFailure),
		},
		Events: flows.PasswordResetEvents{
			ResetRequest: auditEventResetRequest,
			ResetVerify:  auditEventResetVerify,
			ResetConfirm: auditEventResetConfirm,
		},
		Errors: flows.PasswordResetErrors{
			EngineNotReady:   ErrEngineNotReady,
			EmailRequired:    ErrEmailRequired,
			NoCode:           ErrResetNoCode,
			CodeExpired:      ErrResetCodeExpired,
			CodeMismatch:     ErrResetCodeMismatch,
			NotVerified:      ErrResetNotVerified,
			PasswordPolicy:   ErrPasswordPolicy,
			StoreUnavailable: ErrResetStoreUnavailable,
		},
	}
}
