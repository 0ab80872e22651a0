package authflow

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess    = "login_success"
	auditEventLoginFailure    = "login_failure"
	auditEventRegisterSuccess = "register_success"
	auditEventRegisterFailure = "register_failure"
	auditEventLogout          = "logout"
	auditEventResetRequest    = "password_reset_request"
	auditEventResetVerify     = "password_reset_verify"
	auditEventResetConfirm    = "password_reset_confirm"
)

// AuditErrorCode is the stable, low-cardinality form of an error stored in
// AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrEmailRequired      AuditErrorCode = "email_required"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrResetNoCode        AuditErrorCode = "reset_no_code"
	auditErrResetExpired       AuditErrorCode = "reset_expired"
	auditErrResetMismatch      AuditErrorCode = "reset_mismatch"
	auditErrResetNotVerified   AuditErrorCode = "reset_not_verified"
	auditErrTokenMissing       AuditErrorCode = "token_missing"
	auditErrTokenRejected      AuditErrorCode = "token_rejected"
	auditErrServiceBadRequest  AuditErrorCode = "service_bad_request"
	auditErrServiceNotFound    AuditErrorCode = "service_not_found"
	auditErrServiceFault       AuditErrorCode = "service_fault"
	auditErrServiceStatus      AuditErrorCode = "service_status"
	auditErrServiceUnavailable AuditErrorCode = "service_unavailable"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject string,
	flowID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Subject:   subject,
		FlowID:    flowID,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrEmailRequired):
		return auditErrEmailRequired
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrResetNoCode):
		return auditErrResetNoCode
	case errors.Is(err, ErrResetCodeExpired):
		return auditErrResetExpired
	case errors.Is(err, ErrResetCodeMismatch):
		return auditErrResetMismatch
	case errors.Is(err, ErrResetNotVerified):
		return auditErrResetNotVerified
	case errors.Is(err, ErrTokenMissing):
		return auditErrTokenMissing
	case errors.Is(err, ErrTokenRejected):
		return auditErrTokenRejected
	case errors.Is(err, ErrServiceBadRequest):
		return auditErrServiceBadRequest
	case errors.Is(err, ErrServiceNotFound):
		return auditErrServiceNotFound
	case errors.Is(err, ErrServiceFault):
		return auditErrServiceFault
	case errors.Is(err, ErrServiceStatus):
		return auditErrServiceStatus
	case errors.Is(err, ErrServiceUnavailable):
		return auditErrServiceUnavailable
	case errors.Is(err, ErrResetStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
