package flows

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

type PasswordResetRecord struct {
	FlowID    string
	Email     string
	CodeHash  [32]byte
	ExpiresAt int64
	CreatedAt int64
	Verified  bool
}

// PasswordResetTicket is what StartReset hands back to the caller. Code is the
// plaintext one-time code; it is never persisted.
type PasswordResetTicket struct {
	FlowID    string
	Email     string
	Code      string
	ExpiresAt time.Time
}

type PasswordResetMetrics struct {
	ResetStart         int
	ResetStartRejected int
	ResetVerifySuccess int
	ResetVerifyFailure int
	ResetCodeExpired   int
	ResetFinishSuccess int
	ResetFinishFailure int
}

type PasswordResetEvents struct {
	ResetRequest string
	ResetVerify  string
	ResetConfirm string
}

type PasswordResetErrors struct {
	EngineNotReady   error
	EmailRequired    error
	NoCode           error
	CodeExpired      error
	CodeMismatch     error
	NotVerified      error
	PasswordPolicy   error
	StoreUnavailable error
}

type PasswordResetDeps struct {
	Key               string
	CodeTTL           time.Duration
	RecordTTL         time.Duration
	MinPasswordLength int
	RequireVerified   bool

	Now          func() time.Time
	NewFlowID    func() string
	GenerateCode func() (string, error)
	HashCode     func(string) [32]byte
	CodeMatches  func([32]byte, string) bool

	SaveRecord      func(context.Context, string, PasswordResetRecord, time.Duration) error
	GetRecord       func(context.Context, string) (PasswordResetRecord, error)
	MarkVerified    func(context.Context, string, string) error
	DeleteRecord    func(context.Context, string) error
	IsStoreNotFound func(error) bool

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, email, flowID string, err error, metadata func() map[string]string)

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

// RunStartPasswordReset replaces any record under deps.Key with a fresh code
// for email. A blank email is rejected before anything is written.
func RunStartPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) (PasswordResetTicket, error) {
	normalizePasswordResetDeps(&deps)

	if deps.SaveRecord == nil || deps.GenerateCode == nil || deps.HashCode == nil {
		return PasswordResetTicket{}, deps.Errors.EngineNotReady
	}
	if strings.TrimSpace(email) == "" {
		deps.MetricInc(deps.Metrics.ResetStartRejected)
		deps.EmitAudit(ctx, deps.Events.ResetRequest, false, "", "", deps.Errors.EmailRequired, func() map[string]string {
			return map[string]string{
				"reason": "empty_email",
			}
		})
		return PasswordResetTicket{}, deps.Errors.EmailRequired
	}

	code, err := deps.GenerateCode()
	if err != nil {
		return PasswordResetTicket{}, errors.Join(deps.Errors.StoreUnavailable, err)
	}

	now := deps.Now()
	expiresAt := now.Add(deps.CodeTTL)
	flowID := deps.NewFlowID()

	record := PasswordResetRecord{
		FlowID:    flowID,
		Email:     email,
		CodeHash:  deps.HashCode(code),
		ExpiresAt: expiresAt.UnixMilli(),
		CreatedAt: now.UnixMilli(),
	}
	if err := deps.SaveRecord(ctx, deps.Key, record, deps.RecordTTL); err != nil {
		deps.EmitAudit(ctx, deps.Events.ResetRequest, false, email, flowID, deps.Errors.StoreUnavailable, nil)
		return PasswordResetTicket{}, errors.Join(deps.Errors.StoreUnavailable, err)
	}

	deps.MetricInc(deps.Metrics.ResetStart)
	deps.EmitAudit(ctx, deps.Events.ResetRequest, true, email, flowID, nil, nil)

	return PasswordResetTicket{
		FlowID:    flowID,
		Email:     email,
		Code:      code,
		ExpiresAt: time.UnixMilli(expiresAt.UnixMilli()),
	}, nil
}

// RunVerifyPasswordResetCode checks input against the active record. Expiry is
// strict: a check at exactly ExpiresAt still passes. Failed checks never
// discard the record.
func RunVerifyPasswordResetCode(ctx context.Context, input string, deps PasswordResetDeps) (PasswordResetRecord, error) {
	normalizePasswordResetDeps(&deps)

	if deps.GetRecord == nil || deps.MarkVerified == nil || deps.CodeMatches == nil {
		return PasswordResetRecord{}, deps.Errors.EngineNotReady
	}

	record, err := deps.GetRecord(ctx, deps.Key)
	if err != nil {
		if deps.IsStoreNotFound(err) {
			deps.MetricInc(deps.Metrics.ResetVerifyFailure)
			deps.EmitAudit(ctx, deps.Events.ResetVerify, false, "", "", deps.Errors.NoCode, nil)
			return PasswordResetRecord{}, deps.Errors.NoCode
		}
		return PasswordResetRecord{}, errors.Join(deps.Errors.StoreUnavailable, err)
	}

	if deps.Now().UnixMilli() > record.ExpiresAt {
		deps.MetricInc(deps.Metrics.ResetCodeExpired)
		deps.MetricInc(deps.Metrics.ResetVerifyFailure)
		deps.EmitAudit(ctx, deps.Events.ResetVerify, false, record.Email, record.FlowID, deps.Errors.CodeExpired, nil)
		return record, deps.Errors.CodeExpired
	}

	if !deps.CodeMatches(record.CodeHash, input) {
		deps.MetricInc(deps.Metrics.ResetVerifyFailure)
		deps.EmitAudit(ctx, deps.Events.ResetVerify, false, record.Email, record.FlowID, deps.Errors.CodeMismatch, nil)
		return record, deps.Errors.CodeMismatch
	}

	if err := deps.MarkVerified(ctx, deps.Key, record.FlowID); err != nil {
		if deps.IsStoreNotFound(err) {
			// replaced or removed between read and write
			deps.MetricInc(deps.Metrics.ResetVerifyFailure)
			return PasswordResetRecord{}, deps.Errors.NoCode
		}
		return record, errors.Join(deps.Errors.StoreUnavailable, err)
	}
	record.Verified = true

	deps.MetricInc(deps.Metrics.ResetVerifySuccess)
	deps.EmitAudit(ctx, deps.Events.ResetVerify, true, record.Email, record.FlowID, nil, nil)
	return record, nil
}

// RunFinishPasswordReset ends the reset session once the new password passes
// the length policy. Without RequireVerified no prior verification is needed
// and a missing session is not an error.
func RunFinishPasswordReset(ctx context.Context, newPassword string, deps PasswordResetDeps) (PasswordResetRecord, error) {
	normalizePasswordResetDeps(&deps)

	if deps.DeleteRecord == nil || deps.GetRecord == nil {
		return PasswordResetRecord{}, deps.Errors.EngineNotReady
	}

	if utf8.RuneCountInString(newPassword) < deps.MinPasswordLength {
		deps.MetricInc(deps.Metrics.ResetFinishFailure)
		deps.EmitAudit(ctx, deps.Events.ResetConfirm, false, "", "", deps.Errors.PasswordPolicy, func() map[string]string {
			return map[string]string{
				"reason": "password_too_short",
			}
		})
		return PasswordResetRecord{}, deps.Errors.PasswordPolicy
	}

	var record PasswordResetRecord
	found := true
	current, err := deps.GetRecord(ctx, deps.Key)
	switch {
	case err == nil:
		record = current
	case deps.IsStoreNotFound(err):
		found = false
	default:
		return PasswordResetRecord{}, errors.Join(deps.Errors.StoreUnavailable, err)
	}

	if deps.RequireVerified {
		if !found {
			deps.MetricInc(deps.Metrics.ResetFinishFailure)
			deps.EmitAudit(ctx, deps.Events.ResetConfirm, false, "", "", deps.Errors.NoCode, nil)
			return PasswordResetRecord{}, deps.Errors.NoCode
		}
		if !record.Verified {
			deps.MetricInc(deps.Metrics.ResetFinishFailure)
			deps.EmitAudit(ctx, deps.Events.ResetConfirm, false, record.Email, record.FlowID, deps.Errors.NotVerified, nil)
			return record, deps.Errors.NotVerified
		}
	}

	if err := deps.DeleteRecord(ctx, deps.Key); err != nil {
		return record, errors.Join(deps.Errors.StoreUnavailable, err)
	}

	deps.MetricInc(deps.Metrics.ResetFinishSuccess)
	deps.EmitAudit(ctx, deps.Events.ResetConfirm, true, record.Email, record.FlowID, nil, func() map[string]string {
		return map[string]string{
			"verified": boolString(record.Verified),
		}
	})
	return record, nil
}

func normalizePasswordResetDeps(deps *PasswordResetDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewFlowID == nil {
		deps.NewFlowID = func() string { return "" }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.IsStoreNotFound == nil {
		deps.IsStoreNotFound = func(error) bool { return false }
	}
	if deps.Errors.EngineNotReady == nil {
		deps.Errors.EngineNotReady = errResetFlowNotReady
	}
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
