package store

import (
	"database/sql"
	"fmt"

	"github.com/pokeayman/pokeayman/internal/model"
)

type CatalogStore struct {
	db *sql.DB
}

func NewCatalogStore(db *sql.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

const catalogCols = `id, name, image_url, type_primary, type_secondary, rarity, price`

func scanPokemon(scanner interface{ Scan(...any) error }) (*model.Pokemon, error) {
	var p model.Pokemon
	err := scanner.Scan(&p.ID, &p.Name, &p.ImageURL, &p.TypePrimary, &p.TypeSecondary, &p.Rarity, &p.Price)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Import inserts catalog entries, skipping any id that is already present.
// The catalog is reference data; existing rows are never modified.
func (s *CatalogStore) Import(pokemon []model.Pokemon) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	var inserted int
	for _, p := range pokemon {
		result, err := tx.Exec(
			`INSERT INTO pokemon_catalog (id, name, image_url, type_primary, type_secondary, rarity, price)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			p.ID, p.Name, p.ImageURL, p.TypePrimary, p.TypeSecondary, p.Rarity, p.Price,
		)
		if err != nil {
			return 0, fmt.Errorf("import pokemon %q: %w", p.ID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("import rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return inserted, nil
}

func (s *CatalogStore) GetPokemon(id string) (*model.Pokemon, error) {
	row := s.db.QueryRow(`SELECT `+catalogCols+` FROM pokemon_catalog WHERE id = ?`, id)
	p, err := scanPokemon(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pokemon: %w", err)
	}
	return p, nil
}

// RandomPokemon returns one uniformly random catalog entry.
func (s *CatalogStore) RandomPokemon() (*model.Pokemon, error) {
	row := s.db.QueryRow(`SELECT ` + catalogCols + ` FROM pokemon_catalog ORDER BY RANDOM() LIMIT 1`)
	p, err := scanPokemon(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("random pokemon: %w", err)
	}
	return p, nil
}

func (s *CatalogStore) List() ([]model.Pokemon, error) {
	rows, err := s.db.Query(`SELECT ` + catalogCols + ` FROM pokemon_catalog ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	defer rows.Close()

	var pokemon []model.Pokemon
	for rows.Next() {
		p, err := scanPokemon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pokemon: %w", err)
		}
		pokemon = append(pokemon, *p)
	}
	return pokemon, rows.Err()
}
