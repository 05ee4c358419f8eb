package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/pokeayman/pokeayman/internal/ledger"
	"github.com/pokeayman/pokeayman/internal/model"
)

type CollectionStore struct {
	db *sql.DB
}

func NewCollectionStore(db *sql.DB) *CollectionStore {
	return &CollectionStore{db: db}
}

const entryCols = `id, student_id, pokemon_id, source, awarded_at`

func scanEntry(scanner interface{ Scan(...any) error }) (*model.CollectionEntry, error) {
	var e model.CollectionEntry
	err := scanner.Scan(&e.ID, &e.StudentID, &e.PokemonID, &e.Source, &e.AwardedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// InsertEntry records a new ownership instance. Every call creates a fresh
// entry with its own id; owning duplicates of a species is allowed.
func (s *CollectionStore) InsertEntry(studentID int64, pokemonID string, source model.Source) (*model.CollectionEntry, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO collection_entries (id, student_id, pokemon_id, source) VALUES (?, ?, ?, ?)`,
		id, studentID, pokemonID, source,
	)
	if err != nil {
		return nil, fmt.Errorf("insert collection entry: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+entryCols+` FROM collection_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err != nil {
		return nil, fmt.Errorf("get collection entry: %w", err)
	}
	return e, nil
}

func (s *CollectionStore) GetEntry(entryID string) (*model.CollectionEntry, error) {
	row := s.db.QueryRow(`SELECT `+entryCols+` FROM collection_entries WHERE id = ?`, entryID)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get collection entry: %w", err)
	}
	return e, nil
}

func (s *CollectionStore) DeleteEntry(entryID string) error {
	result, err := s.db.Exec(`DELETE FROM collection_entries WHERE id = ?`, entryID)
	if err != nil {
		return fmt.Errorf("delete collection entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if affected == 0 {
		return ledger.ErrEntryNotFound
	}
	return nil
}

// ListByStudent returns the student's collection, newest first.
func (s *CollectionStore) ListByStudent(studentID int64) ([]model.CollectionEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+entryCols+` FROM collection_entries WHERE student_id = ? ORDER BY awarded_at DESC, id DESC`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list collection: %w", err)
	}
	defer rows.Close()

	var entries []model.CollectionEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan collection entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// CollectionAggregate is the per-student rollup the ranking computation needs.
type CollectionAggregate struct {
	Count int
	Value int
}

// AggregateByStudent returns entry count and summed catalog price per
// student, for every student that owns at least one entry.
func (s *CollectionStore) AggregateByStudent() (map[int64]CollectionAggregate, error) {
	rows, err := s.db.Query(
		`SELECT ce.student_id, COUNT(*), COALESCE(SUM(pc.price), 0)
		 FROM collection_entries ce
		 JOIN pokemon_catalog pc ON pc.id = ce.pokemon_id
		 GROUP BY ce.student_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate collections: %w", err)
	}
	defer rows.Close()

	agg := make(map[int64]CollectionAggregate)
	for rows.Next() {
		var studentID int64
		var a CollectionAggregate
		if err := rows.Scan(&studentID, &a.Count, &a.Value); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		agg[studentID] = a
	}
	return agg, rows.Err()
}
