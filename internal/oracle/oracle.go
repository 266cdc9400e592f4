// Package oracle defines the natural-language extraction surface the bot
// depends on. Any backend that can classify a conversation and pull
// structured fields out of it satisfies Oracle; the OpenAI client in this
// package is the production implementation.
package oracle

import (
	"context"
	"errors"
	"time"

	"duebot/internal/model"
)

// ErrContract is wrapped by every error caused by a backend returning a
// payload outside the agreed shape. Callers treat these as fatal for the
// turn rather than guessing at a meaning.
var ErrContract = errors.New("oracle contract violation")

// Action is what the user wants done.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionNone   Action = "none"
)

// Target is what the action applies to.
type Target string

const (
	TargetDeadline Target = "deadline"
	TargetReminder Target = "reminder"
	TargetNone     Target = "none"
)

// Intent is the classification of a conversation's latest request.
type Intent struct {
	Action Action
	Target Target
}

// DeadlineCreation holds the fields extracted for a new deadline. DueDate is
// nil until the user has supplied one; Confirmed is true only once the user
// has explicitly agreed to the proposed values.
type DeadlineCreation struct {
	Description string
	DueDate     *time.Time
	Confirmed   bool
}

// FetchInfo narrows a read request: an optional description and an optional
// due-date window.
type FetchInfo struct {
	Description string
	Start       *time.Time
	End         *time.Time
}

// DeadlineUpdate holds the replacement values for an update. A zero
// NewDescription / nil NewDueDate means "keep the old value".
type DeadlineUpdate struct {
	NewDescription string
	NewDueDate     *time.Time
	Confirmed      bool
}

// Deletion is the resolved set of deadline IDs slated for removal.
type Deletion struct {
	IDs       []uint
	Confirmed bool
}

// ReminderCreation holds the timestamp for a new reminder.
type ReminderCreation struct {
	At        *time.Time
	Confirmed bool
}

// ReminderUpdate identifies an existing reminder by its old timestamp and
// carries the replacement.
type ReminderUpdate struct {
	OldAt     *time.Time
	NewAt     *time.Time
	Confirmed bool
}

// ReminderDeletion identifies the reminder to remove; a nil At means every
// upcoming reminder of the deadline.
type ReminderDeletion struct {
	At        *time.Time
	Confirmed bool
}

// Oracle is the full extraction surface. Each call is one request/response
// round-trip over the rolling conversation context.
type Oracle interface {
	ClassifyIntent(ctx context.Context, msgs []model.Message) (Intent, error)
	ExtractDeadlineCreation(ctx context.Context, msgs []model.Message) (DeadlineCreation, error)
	ExtractFetchInfo(ctx context.Context, message string) (FetchInfo, error)
	FilterDeadlines(ctx context.Context, candidates []model.Deadline, description string) ([]uint, error)
	ExtractDeadlineReference(ctx context.Context, msgs []model.Message) (string, error)
	ExtractUpdateInfo(ctx context.Context, msgs []model.Message) (DeadlineUpdate, error)
	ExtractDeleteIDs(ctx context.Context, candidates []model.Deadline, msgs []model.Message) (Deletion, error)
	ExtractReminderCreation(ctx context.Context, msgs []model.Message) (ReminderCreation, error)
	ExtractReminderUpdate(ctx context.Context, msgs []model.Message) (ReminderUpdate, error)
	ExtractReminderDeletion(ctx context.Context, msgs []model.Message) (ReminderDeletion, error)
	Converse(ctx context.Context, msgs []model.Message, username string) (string, error)
}
