package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/pokeayman/pokeayman/internal/model"
)

// BalanceStore is the balance side of the primary store. Implementations
// must perform the arithmetic store-side in a single atomic statement;
// DebitCoins returns ErrInsufficientFunds without any partial effect when
// the balance is too low.
type BalanceStore interface {
	GetBalance(studentID int64) (*model.StudentBalance, error)
	CreditCoins(studentID int64, amount int) (*model.StudentBalance, error)
	DebitCoins(studentID int64, amount int) (*model.StudentBalance, error)
}

// CollectionStore is the collection side of the primary store. DeleteEntry
// returns ErrEntryNotFound when the entry does not exist.
type CollectionStore interface {
	InsertEntry(studentID int64, pokemonID string, source model.Source) (*model.CollectionEntry, error)
	DeleteEntry(entryID string) error
	ListByStudent(studentID int64) ([]model.CollectionEntry, error)
}

// Catalog looks up the immutable reference data. GetPokemon returns
// (nil, nil) for an unknown id.
type Catalog interface {
	GetPokemon(id string) (*model.Pokemon, error)
	RandomPokemon() (*model.Pokemon, error)
}

// Notifier delivers informational side effects. Implementations must not
// block on delivery and must swallow their own failures; a reward
// operation's outcome never depends on notification delivery.
type Notifier interface {
	Send(recipientID int64, title, message, kind string)
}

// Fallback is the degraded-mode store consulted when the primary store is
// unreachable. Writes applied here are queued and later replayed against
// the primary by Reconcile; the fallback is never a source of truth.
type Fallback interface {
	Seed(balance model.StudentBalance) error
	GetBalance(studentID int64) (*model.StudentBalance, bool)
	CreditCoins(studentID int64, amount int) (*model.StudentBalance, error)
	DebitCoins(studentID int64, amount int) (*model.StudentBalance, error)
	RefundCoins(studentID int64, amount int) (*model.StudentBalance, error)
	AddEntry(studentID int64, pokemonID string, source model.Source) (*model.CollectionEntry, error)
	PendingOps() []PendingOp
	MarkReplayed(n int) error
}

// PendingOp is one write captured while degraded, waiting to be replayed.
type PendingOp struct {
	Kind      string       `json:"kind"` // "credit", "debit", "add_entry"
	StudentID int64        `json:"student_id"`
	Amount    int          `json:"amount,omitempty"`
	PokemonID string       `json:"pokemon_id,omitempty"`
	Source    model.Source `json:"source,omitempty"`
	At        time.Time    `json:"at"`
}

const (
	OpCredit   = "credit"
	OpDebit    = "debit"
	OpAddEntry = "add_entry"
)

const (
	retryAttempts = 3
	retryBase     = 100 * time.Millisecond
)

// Service implements the reward operations against a primary store with a
// degraded-mode fallback.
type Service struct {
	balances    BalanceStore
	collections CollectionStore
	catalog     Catalog
	fallback    Fallback
	notifier    Notifier
	logger      *slog.Logger
}

func NewService(balances BalanceStore, collections CollectionStore, catalog Catalog, fallback Fallback, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		balances:    balances,
		collections: collections,
		catalog:     catalog,
		fallback:    fallback,
		notifier:    notifier,
		logger:      logger,
	}
}

// taxonomyError reports whether err is a definitive outcome rather than a
// transient store failure. Definitive outcomes are never retried and never
// trigger the fallback.
func taxonomyError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrStudentNotFound) ||
		errors.Is(err, ErrPokemonNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrRefundFailed)
}

// withRetry runs fn up to retryAttempts times with exponential backoff,
// retrying only transient store failures.
func withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(retryAttempts-1, retry.NewExponential(retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil || taxonomyError(err) {
			return err
		}
		return retry.RetryableError(err)
	})
}

// GetBalance reads the student's balance from the primary store, consulting
// the fallback only when the primary is unreachable.
func (s *Service) GetBalance(ctx context.Context, studentID int64) (*model.StudentBalance, error) {
	var balance *model.StudentBalance
	err := withRetry(ctx, func() error {
		var err error
		balance, err = s.balances.GetBalance(studentID)
		return err
	})
	if err == nil {
		s.seedFallback(balance)
		return balance, nil
	}
	if taxonomyError(err) {
		return nil, err
	}

	if b, ok := s.fallback.GetBalance(studentID); ok {
		s.logger.Warn("serving balance from fallback store", "student_id", studentID, "error", err)
		return b, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// AwardCoins adds amount to the student's balance. The write is a single
// store-side increment, so from the caller's perspective it is either fully
// visible or not applied at all.
func (s *Service) AwardCoins(ctx context.Context, studentID int64, amount int, reason string) (*model.StudentBalance, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("award amount must be positive, got %d", amount)
	}

	var balance *model.StudentBalance
	err := withRetry(ctx, func() error {
		var err error
		balance, err = s.balances.CreditCoins(studentID, amount)
		return err
	})
	if err != nil {
		if taxonomyError(err) {
			return nil, err
		}
		balance, err = s.creditDegraded(studentID, amount, err)
		if err != nil {
			return nil, err
		}
	} else {
		s.seedFallback(balance)
	}

	s.notifier.Send(studentID, "Coins Awarded", fmt.Sprintf("You received %d coins (%s).", amount, reason), "coins_awarded")
	return balance, nil
}

// RemoveCoins deducts amount and grows the lifetime spent total. Fails with
// ErrInsufficientFunds, leaving the balance untouched, when coins < amount.
func (s *Service) RemoveCoins(ctx context.Context, studentID int64, amount int) (*model.StudentBalance, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("remove amount must be positive, got %d", amount)
	}

	var balance *model.StudentBalance
	err := withRetry(ctx, func() error {
		var err error
		balance, err = s.balances.DebitCoins(studentID, amount)
		return err
	})
	if err != nil {
		if taxonomyError(err) {
			return nil, err
		}
		balance, err = s.debitDegraded(studentID, amount, err)
		if err != nil {
			return nil, err
		}
	} else {
		s.seedFallback(balance)
	}

	return balance, nil
}

// AwardPokemon creates a new collection entry for the student. The catalog
// id is verified first; duplicate species are allowed, so every successful
// call creates a distinct entry.
func (s *Service) AwardPokemon(ctx context.Context, studentID int64, pokemonID string, source model.Source) (*model.CollectionEntry, error) {
	if !model.ValidSource(source) {
		return nil, fmt.Errorf("invalid source %q", source)
	}

	pokemon, err := s.lookupPokemon(ctx, pokemonID)
	if err != nil {
		return nil, err
	}

	var entry *model.CollectionEntry
	err = withRetry(ctx, func() error {
		var err error
		entry, err = s.collections.InsertEntry(studentID, pokemonID, source)
		return err
	})
	if err != nil {
		if taxonomyError(err) {
			return nil, err
		}
		// Primary write failed after a successful catalog check; record the
		// award in the fallback and queue it for replay.
		entry, err = s.fallback.AddEntry(studentID, pokemonID, source)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		s.logger.Warn("recorded pokemon award in fallback store", "student_id", studentID, "pokemon_id", pokemonID)
	}

	s.notifier.Send(studentID, "New Pokémon!", fmt.Sprintf("%s joined your collection.", pokemon.Name), "pokemon_awarded")
	return entry, nil
}

// RemovePokemon deletes a collection entry. A second remove of the same
// entry returns ErrEntryNotFound and changes nothing.
func (s *Service) RemovePokemon(ctx context.Context, entryID string) error {
	err := withRetry(ctx, func() error {
		return s.collections.DeleteEntry(entryID)
	})
	if err == nil || taxonomyError(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// PurchasePokemon deducts the catalog price, then awards the Pokémon.
// Deduct-then-award: a failed award after a confirmed deduction is
// recoverable by refunding, whereas an unpaid award is not. If the
// compensating refund itself fails the caller gets ErrRefundFailed — real,
// uncorrected divergence is surfaced, never swallowed.
func (s *Service) PurchasePokemon(ctx context.Context, studentID int64, pokemonID string) (*model.CollectionEntry, *model.StudentBalance, error) {
	pokemon, err := s.lookupPokemon(ctx, pokemonID)
	if err != nil {
		return nil, nil, err
	}

	return s.buy(ctx, studentID, pokemon, model.SourceShopPurchase, pokemon.Price)
}

// OpenMysteryBall deducts the configured price and awards one uniformly
// random catalog Pokémon.
func (s *Service) OpenMysteryBall(ctx context.Context, studentID int64, price int) (*model.CollectionEntry, *model.StudentBalance, error) {
	var pokemon *model.Pokemon
	err := withRetry(ctx, func() error {
		var err error
		pokemon, err = s.catalog.RandomPokemon()
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if pokemon == nil {
		return nil, nil, ErrPokemonNotFound
	}

	return s.buy(ctx, studentID, pokemon, model.SourceMysteryBall, price)
}

func (s *Service) buy(ctx context.Context, studentID int64, pokemon *model.Pokemon, source model.Source, price int) (*model.CollectionEntry, *model.StudentBalance, error) {
	var balance *model.StudentBalance
	var err error
	if price > 0 {
		balance, err = s.RemoveCoins(ctx, studentID, price)
	} else {
		balance, err = s.GetBalance(ctx, studentID)
	}
	if err != nil {
		return nil, nil, err
	}

	var entry *model.CollectionEntry
	err = withRetry(ctx, func() error {
		var err error
		entry, err = s.collections.InsertEntry(studentID, pokemon.ID, source)
		return err
	})
	if err != nil {
		if price > 0 {
			return nil, nil, s.refund(ctx, studentID, price, err)
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.notifier.Send(studentID, "New Pokémon!", fmt.Sprintf("%s joined your collection.", pokemon.Name), "pokemon_awarded")
	return entry, balance, nil
}

// refund compensates a failed award after a confirmed deduction. When the
// primary cannot take the credit the compensation goes through the
// fallback: a debit still sitting in the replay queue is cancelled before
// it can ever charge the primary, and a deduction the primary already
// applied gets a queued credit that restores it on replay.
func (s *Service) refund(ctx context.Context, studentID int64, price int, cause error) error {
	var balance *model.StudentBalance
	err := withRetry(ctx, func() error {
		var err error
		balance, err = s.balances.CreditCoins(studentID, price)
		return err
	})
	if err == nil {
		s.seedFallback(balance)
	} else if !taxonomyError(err) {
		if _, ferr := s.fallback.RefundCoins(studentID, price); ferr == nil {
			s.logger.Warn("refunded coins through fallback store",
				"student_id", studentID, "amount", price, "cause", cause)
			err = nil
		} else {
			err = fmt.Errorf("%v; fallback refund: %v", err, ferr)
		}
	}
	if err != nil {
		s.logger.Error("refund failed, balance has diverged",
			"student_id", studentID, "amount", price, "cause", cause, "refund_error", err)
		return fmt.Errorf("%w: deducted %d coins, award failed (%v), refund failed (%v)", ErrRefundFailed, price, cause, err)
	}

	s.logger.Warn("purchase failed after deduction, coins refunded", "student_id", studentID, "amount", price, "cause", cause)
	s.notifier.Send(studentID, "Purchase Refunded", fmt.Sprintf("Your purchase failed; %d coins were returned.", price), "refund")
	return fmt.Errorf("%w: award failed after deduction, coins refunded: %v", ErrStoreUnavailable, cause)
}

// ListCollection returns the student's collection, newest first.
func (s *Service) ListCollection(ctx context.Context, studentID int64) ([]model.CollectionEntry, error) {
	var entries []model.CollectionEntry
	err := withRetry(ctx, func() error {
		var err error
		entries, err = s.collections.ListByStudent(studentID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return entries, nil
}

func (s *Service) lookupPokemon(ctx context.Context, pokemonID string) (*model.Pokemon, error) {
	var pokemon *model.Pokemon
	err := withRetry(ctx, func() error {
		var err error
		pokemon, err = s.catalog.GetPokemon(pokemonID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if pokemon == nil {
		return nil, ErrPokemonNotFound
	}
	return pokemon, nil
}

// seedFallback refreshes the cached copy of a balance just read or written
// on the primary. A seeding failure only costs the cache, never the
// operation.
func (s *Service) seedFallback(balance *model.StudentBalance) {
	if balance == nil {
		return
	}
	if err := s.fallback.Seed(*balance); err != nil {
		s.logger.Warn("failed to seed fallback store", "student_id", balance.StudentID, "error", err)
	}
}

func (s *Service) creditDegraded(studentID int64, amount int, cause error) (*model.StudentBalance, error) {
	balance, err := s.fallback.CreditCoins(studentID, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, cause)
	}
	s.logger.Warn("credited coins in fallback store", "student_id", studentID, "amount", amount, "cause", cause)
	return balance, nil
}

func (s *Service) debitDegraded(studentID int64, amount int, cause error) (*model.StudentBalance, error) {
	balance, err := s.fallback.DebitCoins(studentID, amount)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, cause)
	}
	s.logger.Warn("debited coins in fallback store", "student_id", studentID, "amount", amount, "cause", cause)
	return balance, nil
}
