// Package ledger implements the student reward economy: coin balances,
// Pokémon collections, and the operations that mutate them.
package ledger

import "errors"

// Sentinel errors returned by reward operations. Callers match them with
// errors.Is; everything else coming out of an operation is an internal
// failure that was already retried.
var (
	// ErrStoreUnavailable means the primary store could not be reached even
	// after retries, and the fallback (if applicable) could not serve either.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInsufficientFunds means a debit would have taken the balance
	// negative. No coins were deducted.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrStudentNotFound means the referenced student does not exist.
	ErrStudentNotFound = errors.New("student not found")

	// ErrPokemonNotFound means the referenced catalog entry does not exist.
	ErrPokemonNotFound = errors.New("pokemon not found")

	// ErrEntryNotFound means the collection entry to remove does not exist.
	ErrEntryNotFound = errors.New("collection entry not found")

	// ErrRefundFailed means a purchase deducted coins, failed to award the
	// Pokémon, and then failed to restore the coins. The student's balance
	// has diverged and needs manual correction.
	ErrRefundFailed = errors.New("refund failed after purchase error")
)
