package model

import "time"

type Student struct {
	ID         int64     `json:"id"`
	ClassID    int64     `json:"class_id"`
	SchoolID   int64     `json:"school_id"`
	Name       string    `json:"name"`
	Coins      int       `json:"coins"`
	SpentCoins int       `json:"spent_coins"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StudentBalance is the coin state of one student: the spendable balance plus
// the lifetime total ever deducted. SpentCoins only grows.
type StudentBalance struct {
	StudentID  int64 `json:"student_id"`
	Coins      int   `json:"coins"`
	SpentCoins int   `json:"spent_coins"`
}
