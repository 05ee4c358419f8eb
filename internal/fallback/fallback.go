// Package fallback is the degraded-mode store consulted when the primary
// sqlite store is unreachable. It keeps one serialized record per student
// ({studentId, pokemons, coins, spentCoins}) in a JSON file, plus a queue of
// the writes applied while degraded so they can be replayed against the
// primary once it recovers. It is strictly a cache, never a source of truth.
package fallback

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pokeayman/pokeayman/internal/ledger"
	"github.com/pokeayman/pokeayman/internal/model"
)

// record is the serialized per-student state.
type record struct {
	StudentID  int64                   `json:"studentId"`
	Pokemons   []model.CollectionEntry `json:"pokemons"`
	Coins      int                     `json:"coins"`
	SpentCoins int                     `json:"spentCoins"`
}

type fileState struct {
	Records []record           `json:"records"`
	Pending []ledger.PendingOp `json:"pending"`
}

// Store is a file-backed fallback store. All methods are safe for
// concurrent use.
type Store struct {
	mu      sync.Mutex
	path    string
	records map[int64]*record
	pending []ledger.PendingOp
}

// Open loads the fallback file at path, creating an empty store if the file
// does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{
		path:    path,
		records: make(map[int64]*record),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fallback file: %w", err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse fallback file: %w", err)
	}
	for i := range state.Records {
		r := state.Records[i]
		s.records[r.StudentID] = &r
	}
	s.pending = state.Pending
	return s, nil
}

// flush writes the current state atomically (temp file + rename). Caller
// holds the lock.
func (s *Store) flush() error {
	state := fileState{Pending: s.pending}
	for _, r := range s.records {
		state.Records = append(state.Records, *r)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fallback state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create fallback dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write fallback file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace fallback file: %w", err)
	}
	return nil
}

// getOrCreate returns the student's record, initializing coins to zero on
// first touch. Caller holds the lock.
func (s *Store) getOrCreate(studentID int64) *record {
	r, ok := s.records[studentID]
	if !ok {
		r = &record{StudentID: studentID}
		s.records[studentID] = r
	}
	return r
}

// Seed caches a balance read from the primary store so it is available if
// the primary later becomes unreachable. It never queues a pending op, and
// it leaves the record alone while the student still has queued writes: a
// primary read taken before those replay is stale and must not regress the
// degraded balance.
func (s *Store) Seed(balance model.StudentBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range s.pending {
		if op.StudentID == balance.StudentID {
			return nil
		}
	}

	r := s.getOrCreate(balance.StudentID)
	r.Coins = balance.Coins
	r.SpentCoins = balance.SpentCoins
	return s.flush()
}

// GetBalance returns the cached balance for the student, and whether one
// exists.
func (s *Store) GetBalance(studentID int64) (*model.StudentBalance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[studentID]
	if !ok {
		return nil, false
	}
	return &model.StudentBalance{StudentID: studentID, Coins: r.Coins, SpentCoins: r.SpentCoins}, true
}

// CreditCoins applies a degraded-mode credit and queues it for replay.
func (s *Store) CreditCoins(studentID int64, amount int) (*model.StudentBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.getOrCreate(studentID)
	r.Coins += amount
	s.pending = append(s.pending, ledger.PendingOp{
		Kind:      ledger.OpCredit,
		StudentID: studentID,
		Amount:    amount,
		At:        time.Now().UTC(),
	})
	if err := s.flush(); err != nil {
		return nil, err
	}
	return &model.StudentBalance{StudentID: studentID, Coins: r.Coins, SpentCoins: r.SpentCoins}, nil
}

// DebitCoins applies a degraded-mode debit and queues it for replay. The
// non-negative balance invariant holds even while degraded.
func (s *Store) DebitCoins(studentID int64, amount int) (*model.StudentBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[studentID]
	if !ok || r.Coins < amount {
		return nil, ledger.ErrInsufficientFunds
	}
	r.Coins -= amount
	r.SpentCoins += amount
	s.pending = append(s.pending, ledger.PendingOp{
		Kind:      ledger.OpDebit,
		StudentID: studentID,
		Amount:    amount,
		At:        time.Now().UTC(),
	})
	if err := s.flush(); err != nil {
		return nil, err
	}
	return &model.StudentBalance{StudentID: studentID, Coins: r.Coins, SpentCoins: r.SpentCoins}, nil
}

// RefundCoins compensates a failed purchase whose refund could not reach
// the primary. A debit for the same student and amount still waiting in the
// replay queue is cancelled together with its cached effect, so nothing is
// ever charged; otherwise the coins are credited and queued, so the replay
// restores them on the primary.
func (s *Store) RefundCoins(studentID int64, amount int) (*model.StudentBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.getOrCreate(studentID)
	for i := len(s.pending) - 1; i >= 0; i-- {
		op := s.pending[i]
		if op.Kind == ledger.OpDebit && op.StudentID == studentID && op.Amount == amount {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			r.Coins += amount
			r.SpentCoins -= amount
			if err := s.flush(); err != nil {
				return nil, err
			}
			return &model.StudentBalance{StudentID: studentID, Coins: r.Coins, SpentCoins: r.SpentCoins}, nil
		}
	}

	r.Coins += amount
	s.pending = append(s.pending, ledger.PendingOp{
		Kind:      ledger.OpCredit,
		StudentID: studentID,
		Amount:    amount,
		At:        time.Now().UTC(),
	})
	if err := s.flush(); err != nil {
		return nil, err
	}
	return &model.StudentBalance{StudentID: studentID, Coins: r.Coins, SpentCoins: r.SpentCoins}, nil
}

// AddEntry records a degraded-mode Pokémon award and queues it for replay.
// The replayed insert gets a fresh id from the primary store; the id
// assigned here only identifies the cached copy.
func (s *Store) AddEntry(studentID int64, pokemonID string, source model.Source) (*model.CollectionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := model.CollectionEntry{
		ID:        uuid.NewString(),
		StudentID: studentID,
		PokemonID: pokemonID,
		Source:    source,
		AwardedAt: time.Now().UTC(),
	}
	r := s.getOrCreate(studentID)
	r.Pokemons = append(r.Pokemons, entry)
	s.pending = append(s.pending, ledger.PendingOp{
		Kind:      ledger.OpAddEntry,
		StudentID: studentID,
		PokemonID: pokemonID,
		Source:    source,
		At:        entry.AwardedAt,
	})
	if err := s.flush(); err != nil {
		return nil, err
	}
	return &entry, nil
}

// PendingOps returns a copy of the replay queue, oldest first.
func (s *Store) PendingOps() []ledger.PendingOp {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops := make([]ledger.PendingOp, len(s.pending))
	copy(ops, s.pending)
	return ops
}

// MarkReplayed removes the first n ops from the replay queue.
func (s *Store) MarkReplayed(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n >= len(s.pending) {
		s.pending = nil
	} else {
		s.pending = append([]ledger.PendingOp(nil), s.pending[n:]...)
	}
	return s.flush()
}
