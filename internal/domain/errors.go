package domain

import (
	"errors"
	"fmt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors: compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Round errors
var (
	// ErrRoundNotFound is returned when no round matches the given period.
	ErrRoundNotFound = errors.New("round not found")

	// ErrRoundNotOpen is returned when a round is expected to accept wagers
	// (or to be closed) but is in another state.
	ErrRoundNotOpen = errors.New("round is not open")

	// ErrRoundNotDrawn is returned when settlement is requested for a round
	// that has no outcome yet.
	ErrRoundNotDrawn = errors.New("round has no outcome")

	// ErrConcurrencyConflict is returned when a round is already being settled
	// or has been settled. Callers treat it as a successful no-op.
	ErrConcurrencyConflict = errors.New("round is already settling or settled")

	// ErrOutcomeMismatch is returned when a settlement is requested with an
	// outcome different from the one already recorded for the round.
	ErrOutcomeMismatch = errors.New("outcome differs from the recorded draw")
)

// Wager errors
var (
	// ErrWagerNotFound is returned when no wager matches the given id.
	ErrWagerNotFound = errors.New("wager not found")

	// ErrWagerNotSettled is returned when a rebate is requested for a wager
	// that has not been settled yet.
	ErrWagerNotSettled = errors.New("wager is not settled")

	// ErrUnrecognizedCategory is the reason recorded for wagers whose
	// category is not part of the canonical set.
	ErrUnrecognizedCategory = errors.New("unrecognized category")
)

// Agent / policy / ledger errors
var (
	// ErrAgentNotFound is returned when no agent matches the given id.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrMemberNotFound is returned when no member matches the given id.
	ErrMemberNotFound = errors.New("member not found")

	// ErrPolicyNotFound is returned when no control policy matches the given id.
	ErrPolicyNotFound = errors.New("control policy not found")

	// ErrEntryNotFound is returned when no commission ledger entry matches.
	ErrEntryNotFound = errors.New("commission entry not found")

	// ErrAlreadyReversed is returned when a commission entry already has a
	// compensating reversal.
	ErrAlreadyReversed = errors.New("commission entry already reversed")

	// ErrWalletNotFound is returned when no wallet exists for the owner.
	ErrWalletNotFound = errors.New("wallet not found")
)

// Auth errors
var (
	// ErrUnauthorized is returned when a valid token is not present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the operator lacks the required role.
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrTokenInvalid is returned when a token cannot be parsed or its
	// signature does not match.
	ErrTokenInvalid = errors.New("token is invalid")
)

// ──────────────────────────────────────────────────────────────────────────────
// Typed errors: inspect with errors.As()
// ──────────────────────────────────────────────────────────────────────────────

// ValidationError describes a malformed wager category or selector. It is
// contained to the single wager: the wager settles as lost with Reason.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// InvariantViolation is a structural error (duplicate outcome values,
// commission over cap, child rate above parent). It aborts the whole
// operation and is never auto-corrected.
type InvariantViolation struct {
	Invariant string
	Detail    string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation (%s): %s", e.Invariant, e.Detail)
}

// ChainIntegrityError reports a broken agent ancestry. Distribution is
// truncated at the break; the wager's settlement is unaffected.
type ChainIntegrityError struct {
	AgentID  string
	ParentID string
}

func (e *ChainIntegrityError) Error() string {
	return fmt.Sprintf("agent %s references missing parent %s", e.AgentID, e.ParentID)
}

// Invariant names used in InvariantViolation.Invariant.
const (
	InvariantPermutation   = "outcome_permutation"
	InvariantCommissionCap = "commission_cap"
	InvariantChainCeiling  = "chain_ceiling"
	InvariantAgentCycle    = "agent_cycle"
)

func newInvariant(invariant, format string, args ...any) *InvariantViolation {
	return &InvariantViolation{Invariant: invariant, Detail: fmt.Sprintf(format, args...)}
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

var notFoundErrors = []error{
	ErrRoundNotFound,
	ErrWagerNotFound,
	ErrAgentNotFound,
	ErrMemberNotFound,
	ErrPolicyNotFound,
	ErrEntryNotFound,
	ErrWalletNotFound,
}

// IsNotFound returns true when err (or any error in its chain) is one of the
// domain "not found" errors.
func IsNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict returns true for errors that represent a state conflict.
func IsConflict(err error) bool {
	conflictErrors := []error{
		ErrConcurrencyConflict,
		ErrRoundNotOpen,
		ErrAlreadyReversed,
		ErrOutcomeMismatch,
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsInvariantViolation reports whether err carries an InvariantViolation.
func IsInvariantViolation(err error) bool {
	var iv *InvariantViolation
	return errors.As(err, &iv)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
