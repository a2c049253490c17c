package domain

import "time"

// Recipient is an addressable Telegram user known to the service.
// Blocked and Unreachable are channel-level flags: once set, the recipient
// is excluded from every subsequent campaign, not just the one that set it.
type Recipient struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	ChatID       int64     `gorm:"uniqueIndex;not null" json:"chat_id"`
	FirstName    string    `json:"first_name"`
	Username     string    `json:"username"`
	Blocked      bool      `gorm:"not null;default:false" json:"blocked"`
	Unreachable  bool      `gorm:"not null;default:false" json:"unreachable"`
	RegisteredAt time.Time `json:"registered_at"`
}

// DisplayName returns the name denormalized onto outcome rows for audit.
func (r Recipient) DisplayName() string {
	if r.Username != "" {
		return "@" + r.Username
	}
	return r.FirstName
}

// BookingStatus is the lifecycle state of a booking. Only completed
// bookings count for the no_completed_booking segment.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking links a recipient to a booking they made through the bot.
type Booking struct {
	ID          int64         `gorm:"primaryKey" json:"id"`
	RecipientID int64         `gorm:"index;not null" json:"recipient_id"`
	Status      BookingStatus `gorm:"not null" json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}
