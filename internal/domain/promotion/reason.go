package promotion

import (
	"errors"
	"fmt"
)

// Reason is the failure-reason taxonomy surfaced on terminal outcomes.
type Reason string

const (
	// Input errors: rejected before any state mutation.
	ReasonInvalidFormat   Reason = "InvalidFormat"
	ReasonAmbiguousTenant Reason = "AmbiguousTenant"

	// Precondition errors: rejected before any state mutation.
	ReasonUnknownTenant       Reason = "UnknownTenant"
	ReasonAlreadyIsolated     Reason = "AlreadyIsolated"
	ReasonPromotionInProgress Reason = "PromotionInProgress"

	// Provisioning errors: occur after the promoting lock is taken.
	ReasonCredentialIssuanceFailed Reason = "CredentialIssuanceFailed"
	ReasonStoreCreationFailed      Reason = "StoreCreationFailed"
	ReasonDataMigrationFailed      Reason = "DataMigrationFailed"
	ReasonRoutingConfigFailed      Reason = "RoutingConfigFailed"
	ReasonDeploymentFailed         Reason = "DeploymentFailed"

	// Verification errors: infrastructure exists but is not trusted.
	ReasonVerificationFailed Reason = "PostPromotionVerificationFailed"
)

// StepFailureReason maps a provisioning step to its failure reason code.
func StepFailureReason(name StepName) Reason {
	switch name {
	case StepCredentialIssuance:
		return ReasonCredentialIssuanceFailed
	case StepStoreCreation:
		return ReasonStoreCreationFailed
	case StepDataMigration:
		return ReasonDataMigrationFailed
	case StepRoutingConfig:
		return ReasonRoutingConfigFailed
	case StepDeployment:
		return ReasonDeploymentFailed
	default:
		return ""
	}
}

// Error is a failure carrying its taxonomy reason.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a reason code.
func NewError(reason Reason, err error) *Error {
	return &Error{Reason: reason, Err: err}
}

// Errorf builds a reason-coded error from a format string.
func Errorf(reason Reason, format string, args ...any) *Error {
	return &Error{Reason: reason, Err: fmt.Errorf(format, args...)}
}

// ReasonOf extracts the reason code from err, or "" if err carries none.
func ReasonOf(err error) Reason {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return ""
}
