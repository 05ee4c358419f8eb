package model

import "time"

type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

type Homework struct {
	ID          int64      `json:"id"`
	ClassID     int64      `json:"class_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CoinReward  int        `json:"coin_reward"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type HomeworkSubmission struct {
	ID          int64            `json:"id"`
	HomeworkID  int64            `json:"homework_id"`
	StudentID   int64            `json:"student_id"`
	Status      SubmissionStatus `json:"status"`
	SubmittedAt time.Time        `json:"submitted_at"`
	ReviewedAt  *time.Time       `json:"reviewed_at,omitempty"`
}
