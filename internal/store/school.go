package store

import (
	"database/sql"
	"fmt"

	"github.com/pokeayman/pokeayman/internal/model"
)

type SchoolStore struct {
	db *sql.DB
}

func NewSchoolStore(db *sql.DB) *SchoolStore {
	return &SchoolStore{db: db}
}

func (s *SchoolStore) CreateSchool(name string) (*model.School, error) {
	result, err := s.db.Exec(`INSERT INTO schools (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert school: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetSchool(id)
}

func (s *SchoolStore) GetSchool(id int64) (*model.School, error) {
	var sc model.School
	err := s.db.QueryRow(`SELECT id, name, created_at FROM schools WHERE id = ?`, id).
		Scan(&sc.ID, &sc.Name, &sc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get school: %w", err)
	}
	return &sc, nil
}

func (s *SchoolStore) ListSchools() ([]model.School, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at FROM schools ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	defer rows.Close()

	var schools []model.School
	for rows.Next() {
		var sc model.School
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan school: %w", err)
		}
		schools = append(schools, sc)
	}
	return schools, rows.Err()
}

func (s *SchoolStore) CreateClass(schoolID int64, name string) (*model.Class, error) {
	result, err := s.db.Exec(`INSERT INTO classes (school_id, name) VALUES (?, ?)`, schoolID, name)
	if err != nil {
		return nil, fmt.Errorf("insert class: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetClass(id)
}

func (s *SchoolStore) GetClass(id int64) (*model.Class, error) {
	var c model.Class
	err := s.db.QueryRow(`SELECT id, school_id, name, created_at FROM classes WHERE id = ?`, id).
		Scan(&c.ID, &c.SchoolID, &c.Name, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get class: %w", err)
	}
	return &c, nil
}

func (s *SchoolStore) ListClasses(schoolID int64) ([]model.Class, error) {
	rows, err := s.db.Query(
		`SELECT id, school_id, name, created_at FROM classes WHERE school_id = ? ORDER BY name ASC`,
		schoolID,
	)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()

	var classes []model.Class
	for rows.Next() {
		var c model.Class
		if err := rows.Scan(&c.ID, &c.SchoolID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}
