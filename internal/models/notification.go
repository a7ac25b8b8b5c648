package models

import "time"

// NotificationType categorises a notification.
type NotificationType string

const (
	NotificationEnrollment  NotificationType = "ENROLLMENT"
	NotificationReservation NotificationType = "RESERVATION"
	NotificationPayment     NotificationType = "PAYMENT"
	NotificationReminder    NotificationType = "REMINDER"
	NotificationSystem      NotificationType = "SYSTEM"
)

// Notification is an in-app message for one user.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Title     string           `db:"title" json:"title"`
	Message   string           `db:"message" json:"message"`
	Type      NotificationType `db:"type" json:"type"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter captures notification listing criteria.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
