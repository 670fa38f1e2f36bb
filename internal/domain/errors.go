package domain

import (
	"errors"
	"fmt"
)

// ─── Error Classes ──────────────────────────────────────────────────────────
// Every error the core returns belongs to one class. Callers branch with
// errors.Is on the class, never on message text.

var (
	// ErrValidation: the request is malformed or violates a precondition.
	// Nothing was mutated.
	ErrValidation = errors.New("validation failed")

	// ErrReferential: a delete was blocked by a reference. Nothing was mutated.
	ErrReferential = errors.New("blocked by reference")

	// ErrNotFound: a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStorage: the record store failed.
	ErrStorage = errors.New("storage failure")
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────

var (
	// Ledger
	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", ErrValidation)
	ErrInvalidQuantity   = fmt.Errorf("%w: quantity must be positive", ErrValidation)
	ErrInvalidAmount     = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrInvalidTxType     = fmt.Errorf("%w: unknown transaction type", ErrValidation)

	// Records
	ErrProductNotFound     = fmt.Errorf("product %w", ErrNotFound)
	ErrPartyNotFound       = fmt.Errorf("party %w", ErrNotFound)
	ErrCategoryNotFound    = fmt.Errorf("category %w", ErrNotFound)
	ErrCurrencyNotFound    = fmt.Errorf("currency %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)

	// Currency table
	ErrNoBaseCurrency   = fmt.Errorf("%w: no base currency defined", ErrValidation)
	ErrDuplicateSymbol  = fmt.Errorf("%w: currency symbol already exists", ErrValidation)
	ErrInvalidRate      = fmt.Errorf("%w: rate must be positive", ErrValidation)
	ErrBaseRequired     = fmt.Errorf("%w: set another currency as base instead of clearing it", ErrValidation)
	ErrMissingSymbol    = fmt.Errorf("%w: currency symbol is required", ErrValidation)
	ErrInvalidPartyType = fmt.Errorf("%w: party type must be debtor or creditor", ErrValidation)
	ErrMissingName      = fmt.Errorf("%w: name is required", ErrValidation)

	// Referential guards
	ErrCategoryInUse        = fmt.Errorf("%w: category still has products", ErrReferential)
	ErrPartyHasTransactions = fmt.Errorf("%w: party has transactions", ErrReferential)
	ErrBaseCurrencyDelete   = fmt.Errorf("%w: base currency cannot be deleted", ErrReferential)
)

// StorageError wraps a failed record store operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes every StorageError match ErrStorage.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Storage wraps err as a StorageError unless it is nil or already
// classified (not-found results pass through unchanged).
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// Class returns the class name of err for metrics and logs.
func Class(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrReferential):
		return "referential"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStorage):
		return "storage"
	default:
		return "unknown"
	}
}
