package store

import (
	"database/sql"
	"fmt"

	"github.com/pokeayman/pokeayman/internal/ledger"
	"github.com/pokeayman/pokeayman/internal/model"
)

type StudentStore struct {
	db *sql.DB
}

func NewStudentStore(db *sql.DB) *StudentStore {
	return &StudentStore{db: db}
}

const studentCols = `id, class_id, school_id, name, coins, spent_coins, created_at, updated_at`

func scanStudent(scanner interface{ Scan(...any) error }) (*model.Student, error) {
	var s model.Student
	err := scanner.Scan(&s.ID, &s.ClassID, &s.SchoolID, &s.Name, &s.Coins, &s.SpentCoins, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *StudentStore) Create(classID, schoolID int64, name string) (*model.Student, error) {
	result, err := s.db.Exec(
		`INSERT INTO students (class_id, school_id, name) VALUES (?, ?, ?)`,
		classID, schoolID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("insert student: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *StudentStore) GetByID(id int64) (*model.Student, error) {
	row := s.db.QueryRow(`SELECT `+studentCols+` FROM students WHERE id = ?`, id)
	st, err := scanStudent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	return st, nil
}

func (s *StudentStore) ListByClass(classID int64) ([]model.Student, error) {
	return s.list(`SELECT `+studentCols+` FROM students WHERE class_id = ? ORDER BY name ASC`, classID)
}

func (s *StudentStore) ListBySchool(schoolID int64) ([]model.Student, error) {
	return s.list(`SELECT `+studentCols+` FROM students WHERE school_id = ? ORDER BY name ASC`, schoolID)
}

func (s *StudentStore) ListAll() ([]model.Student, error) {
	return s.list(`SELECT ` + studentCols + ` FROM students ORDER BY name ASC`)
}

func (s *StudentStore) list(query string, args ...any) ([]model.Student, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, *st)
	}
	return students, rows.Err()
}

// --- Balance methods ---

func (s *StudentStore) GetBalance(studentID int64) (*model.StudentBalance, error) {
	var b model.StudentBalance
	b.StudentID = studentID
	err := s.db.QueryRow(`SELECT coins, spent_coins FROM students WHERE id = ?`, studentID).
		Scan(&b.Coins, &b.SpentCoins)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &b, nil
}

// CreditCoins adds amount to the student's balance in a single statement.
// The arithmetic happens store-side so concurrent credits never lose updates.
func (s *StudentStore) CreditCoins(studentID int64, amount int) (*model.StudentBalance, error) {
	result, err := s.db.Exec(
		`UPDATE students SET coins = coins + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		amount, studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("credit coins: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("credit coins rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ledger.ErrStudentNotFound
	}
	return s.GetBalance(studentID)
}

// DebitCoins deducts amount and grows spent_coins in one conditional
// statement. The `coins >= ?` guard makes the insufficient-funds check and
// the deduction a single atomic step; zero rows affected means the guard
// failed (or the student does not exist) and nothing changed.
func (s *StudentStore) DebitCoins(studentID int64, amount int) (*model.StudentBalance, error) {
	result, err := s.db.Exec(
		`UPDATE students
		 SET coins = coins - ?, spent_coins = spent_coins + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND coins >= ?`,
		amount, amount, studentID, amount,
	)
	if err != nil {
		return nil, fmt.Errorf("debit coins: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("debit coins rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := s.db.QueryRow(`SELECT 1 FROM students WHERE id = ?`, studentID).Scan(&exists); err == sql.ErrNoRows {
			return nil, ledger.ErrStudentNotFound
		} else if err != nil {
			return nil, fmt.Errorf("check student exists: %w", err)
		}
		return nil, ledger.ErrInsufficientFunds
	}
	return s.GetBalance(studentID)
}
