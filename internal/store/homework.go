package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pokeayman/pokeayman/internal/model"
)

// ErrAlreadyReviewed is returned when a submission review is attempted on a
// submission that has already left the pending state.
var ErrAlreadyReviewed = errors.New("submission already reviewed")

type HomeworkStore struct {
	db *sql.DB
}

func NewHomeworkStore(db *sql.DB) *HomeworkStore {
	return &HomeworkStore{db: db}
}

const homeworkCols = `id, class_id, title, description, coin_reward, due_at, created_at`

func scanHomework(scanner interface{ Scan(...any) error }) (*model.Homework, error) {
	var h model.Homework
	var dueAt sql.NullTime
	err := scanner.Scan(&h.ID, &h.ClassID, &h.Title, &h.Description, &h.CoinReward, &dueAt, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	if dueAt.Valid {
		h.DueAt = &dueAt.Time
	}
	return &h, nil
}

func (s *HomeworkStore) Create(classID int64, title, description string, coinReward int, dueAt *time.Time) (*model.Homework, error) {
	var due sql.NullTime
	if dueAt != nil {
		due = sql.NullTime{Time: dueAt.UTC(), Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO homeworks (class_id, title, description, coin_reward, due_at) VALUES (?, ?, ?, ?, ?)`,
		classID, title, description, coinReward, due,
	)
	if err != nil {
		return nil, fmt.Errorf("insert homework: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *HomeworkStore) GetByID(id int64) (*model.Homework, error) {
	row := s.db.QueryRow(`SELECT `+homeworkCols+` FROM homeworks WHERE id = ?`, id)
	h, err := scanHomework(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get homework: %w", err)
	}
	return h, nil
}

func (s *HomeworkStore) ListByClass(classID int64) ([]model.Homework, error) {
	rows, err := s.db.Query(
		`SELECT `+homeworkCols+` FROM homeworks WHERE class_id = ? ORDER BY created_at DESC`,
		classID,
	)
	if err != nil {
		return nil, fmt.Errorf("list homeworks: %w", err)
	}
	defer rows.Close()

	var homeworks []model.Homework
	for rows.Next() {
		h, err := scanHomework(rows)
		if err != nil {
			return nil, fmt.Errorf("scan homework: %w", err)
		}
		homeworks = append(homeworks, *h)
	}
	return homeworks, rows.Err()
}

// --- Submission methods ---

const submissionCols = `id, homework_id, student_id, status, submitted_at, reviewed_at`

func scanSubmission(scanner interface{ Scan(...any) error }) (*model.HomeworkSubmission, error) {
	var sub model.HomeworkSubmission
	var reviewedAt sql.NullTime
	err := scanner.Scan(&sub.ID, &sub.HomeworkID, &sub.StudentID, &sub.Status, &sub.SubmittedAt, &reviewedAt)
	if err != nil {
		return nil, err
	}
	if reviewedAt.Valid {
		sub.ReviewedAt = &reviewedAt.Time
	}
	return &sub, nil
}

// Submit records a student's submission. A student may submit each homework
// once; resubmission is rejected by the unique constraint.
func (s *HomeworkStore) Submit(homeworkID, studentID int64) (*model.HomeworkSubmission, error) {
	result, err := s.db.Exec(
		`INSERT INTO homework_submissions (homework_id, student_id) VALUES (?, ?)`,
		homeworkID, studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetSubmission(id)
}

func (s *HomeworkStore) GetSubmission(id int64) (*model.HomeworkSubmission, error) {
	row := s.db.QueryRow(`SELECT `+submissionCols+` FROM homework_submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

func (s *HomeworkStore) ListSubmissions(homeworkID int64) ([]model.HomeworkSubmission, error) {
	rows, err := s.db.Query(
		`SELECT `+submissionCols+` FROM homework_submissions WHERE homework_id = ? ORDER BY submitted_at ASC`,
		homeworkID,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []model.HomeworkSubmission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// ReviewSubmission moves a pending submission to approved or rejected. The
// pending guard in the statement ensures a submission is reviewed at most
// once, so a coin reward is never paid twice.
func (s *HomeworkStore) ReviewSubmission(id int64, status model.SubmissionStatus) (*model.HomeworkSubmission, error) {
	result, err := s.db.Exec(
		`UPDATE homework_submissions
		 SET status = ?, reviewed_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'pending'`,
		status, id,
	)
	if err != nil {
		return nil, fmt.Errorf("review submission: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("review rows affected: %w", err)
	}
	if affected == 0 {
		sub, err := s.GetSubmission(id)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, sql.ErrNoRows
		}
		return nil, ErrAlreadyReviewed
	}
	return s.GetSubmission(id)
}
