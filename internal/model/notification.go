package model

import "time"

type Notification struct {
	ID          int64     `json:"id"`
	RecipientID int64     `json:"recipient_id"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Kind        string    `json:"kind"`
	CreatedAt   time.Time `json:"created_at"`
}

// PushSubscription is one browser push endpoint registered by a student
// device.
type PushSubscription struct {
	ID        int64     `json:"id"`
	StudentID int64     `json:"student_id"`
	Endpoint  string    `json:"endpoint"`
	P256dhKey string    `json:"p256dh_key"`
	AuthKey   string    `json:"auth_key"`
	CreatedAt time.Time `json:"created_at"`
}
