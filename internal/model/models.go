package model

import "time"

// Account is a registered chat user. ChatID is the stable identifier the
// transport hands us (the WhatsApp number for Twilio).
type Account struct {
	ID        uint   `gorm:"primaryKey"`
	ChatID    string `gorm:"uniqueIndex;not null"`
	Username  string `gorm:"not null"`
	CreatedAt time.Time

	Deadlines []Deadline `gorm:"constraint:OnDelete:CASCADE"`
	Messages  []Message  `gorm:"constraint:OnDelete:CASCADE"`
}

// Deadline is a named task with a due date. Description is unique per
// account; the handlers check before insert/rename.
type Deadline struct {
	ID          uint      `gorm:"primaryKey"`
	AccountID   uint      `gorm:"index;not null"`
	Description string    `gorm:"type:text;not null"`
	DueDate     time.Time `gorm:"not null"`
	CreatedAt   time.Time

	Reminders []Reminder `gorm:"constraint:OnDelete:CASCADE"`
}

// Reminder is a scheduled notification for a deadline. At most one reminder
// per (deadline, remind_at) pair.
type Reminder struct {
	ID         uint      `gorm:"primaryKey"`
	DeadlineID uint      `gorm:"index;not null"`
	RemindAt   time.Time `gorm:"index;not null"`
}

// Message is one conversational turn, append-only per account.
type Message struct {
	ID        uint      `gorm:"primaryKey"`
	AccountID uint      `gorm:"index;not null"`
	Text      string    `gorm:"type:text;not null"`
	FromUser  bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}
