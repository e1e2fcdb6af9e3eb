package domain

import "errors"

var (
	// ErrNotFound is returned when no market exists for the requested uid.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for inputs with a bad shape or range.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidStateTransition is returned when an operation's status
	// precondition is violated, e.g. updating a market after activation.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrConflict is returned when a conditional status update found the
	// row already moved by a concurrent transition.
	ErrConflict = errors.New("concurrent state transition")

	// Signature failures. Never retried and never logged with the
	// signature material itself.
	ErrInvalidSignature = errors.New("invalid signature")
	ErrSignatureExpired = errors.New("signature expired")
	ErrSignerMismatch   = errors.New("signer does not match author")

	// ErrAuthorizationMismatch means a receipt's sender differs from the
	// market author; the reconciler reverts the market on seeing it.
	ErrAuthorizationMismatch = errors.New("transaction sender is not the market author")

	// ErrReceiptNotFound means the transaction is not yet mined. The
	// caller leaves state unchanged and retries on the next pass.
	ErrReceiptNotFound = errors.New("transaction receipt not available")
	// ErrChainUnavailable wraps transient chain RPC failures.
	ErrChainUnavailable = errors.New("chain rpc unavailable")

	// ErrLockHeld means a distributed lock is already held elsewhere.
	ErrLockHeld = errors.New("lock already held")
)
