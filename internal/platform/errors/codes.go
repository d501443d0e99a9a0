// Package errors provides structured error handling for the camp engine.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Authorization errors
	CodeUnauthorized Code = "UNAUTHORIZED"

	// Camp lifecycle errors
	CodeCampNameEmpty            Code = "CAMP_NAME_EMPTY"
	CodeCampOrganizerEmpty       Code = "CAMP_ORGANIZER_EMPTY"
	CodeCampInvalidDeposit       Code = "CAMP_INVALID_DEPOSIT"
	CodeCampInvalidCapacity      Code = "CAMP_INVALID_CAPACITY"
	CodeCampInvalidSchedule      Code = "CAMP_INVALID_SCHEDULE"
	CodeCampInvalidLevelCount    Code = "CAMP_INVALID_LEVEL_COUNT"
	CodeInvalidState             Code = "CAMP_INVALID_STATE"
	CodePrematureEvaluation      Code = "CAMP_PREMATURE_EVALUATION"
	CodeCredentialNotProvisioned Code = "CAMP_CREDENTIAL_NOT_PROVISIONED"

	// Escrow errors
	CodeCampFull             Code = "ESCROW_CAMP_FULL"
	CodeDuplicateParticipant Code = "ESCROW_DUPLICATE_PARTICIPANT"
	CodeInsufficientFunds    Code = "ESCROW_INSUFFICIENT_FUNDS"
	CodeAlreadyRefunded      Code = "ESCROW_ALREADY_REFUNDED"
	CodeNotEligible          Code = "ESCROW_NOT_ELIGIBLE"
	CodeOrganizerCannotJoin  Code = "ESCROW_ORGANIZER_CANNOT_JOIN"

	// Credential errors
	CodeAlreadyIssued         Code = "CREDENTIAL_ALREADY_ISSUED"
	CodeInvalidCredential     Code = "CREDENTIAL_INVALID"
	CodeCredentialExpired     Code = "CREDENTIAL_EXPIRED"
	CodeCredentialModeFixed   Code = "CREDENTIAL_MODE_FIXED"
	CodeCredentialEmptySeed   Code = "CREDENTIAL_EMPTY_SEED"
	CodeCredentialLevelBounds Code = "CREDENTIAL_LEVEL_OUT_OF_BOUNDS"

	// Identity errors
	CodeInvalidAddress     Code = "IDENTITY_INVALID_ADDRESS"
	CodeInvalidCallerToken Code = "IDENTITY_INVALID_CALLER_TOKEN"

	// Storage errors
	CodeNotFound          Code = "NOT_FOUND"
	CodeLedgerUnavailable Code = "LEDGER_UNAVAILABLE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeCampNameEmpty,
		CodeCampOrganizerEmpty,
		CodeCampInvalidDeposit,
		CodeCampInvalidCapacity,
		CodeCampInvalidSchedule,
		CodeCampInvalidLevelCount,
		CodeCredentialEmptySeed,
		CodeCredentialLevelBounds,
		CodeInvalidCredential,
		CodeInvalidAddress:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeInvalidState,
		CodePrematureEvaluation,
		CodeCredentialNotProvisioned,
		CodeCampFull,
		CodeInsufficientFunds,
		CodeAlreadyRefunded,
		CodeNotEligible,
		CodeOrganizerCannotJoin,
		CodeAlreadyIssued,
		CodeCredentialExpired,
		CodeCredentialModeFixed:
		return codes.FailedPrecondition

	// PermissionDenied - caller is not allowed to perform the operation
	case CodeUnauthorized:
		return codes.PermissionDenied

	// Unauthenticated - caller identity could not be established
	case CodeInvalidCallerToken:
		return codes.Unauthenticated

	// AlreadyExists - unique resource constraint
	case CodeDuplicateParticipant:
		return codes.AlreadyExists

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	// Unavailable - durable ledger rejected or timed out the append
	case CodeLedgerUnavailable:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}

// Retryable reports whether a caller may retry the operation unchanged.
// PREMATURE_EVALUATION and CREDENTIAL_INVALID are locally recoverable;
// LEDGER_UNAVAILABLE is retryable with backoff because the engine guarantees
// no partial mutation occurred before it was returned.
func (c Code) Retryable() bool {
	switch c {
	case CodePrematureEvaluation, CodeInvalidCredential, CodeLedgerUnavailable:
		return true
	default:
		return false
	}
}
