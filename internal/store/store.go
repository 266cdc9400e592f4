// Package store is the persistence surface consumed by the bot core. Every
// method is a single round-trip (or a single transaction) against the GORM
// database; the bot issues at most one mutating call per committed workflow
// step.
package store

import (
	"errors"
	"fmt"
	"time"

	"duebot/internal/model"

	"gorm.io/gorm"
)

// Open date-range bounds fall back to these sentinels, wide enough to mean
// "all time" for any realistic deadline.
var (
	RangeStartSentinel = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	RangeEndSentinel   = time.Date(2100, 12, 30, 0, 0, 0, 0, time.UTC)
)

// ContextWindow is how many recent messages make up the oracle context.
const ContextWindow = 10

// Store wraps the GORM handle with the query surface the bot needs.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DueReminder is one row of the delivery sweep: which chat to notify about
// which deadline.
type DueReminder struct {
	ChatID      string
	Description string
	DueDate     time.Time
}

// DeadlineReminders groups a deadline's upcoming reminder times.
type DeadlineReminders struct {
	Description string
	Times       []time.Time
}

// AccountByChatID returns the account for a chat identifier, or nil when the
// user has not onboarded yet.
func (s *Store) AccountByChatID(chatID string) (*model.Account, error) {
	var account model.Account
	err := s.db.Where("chat_id = ?", chatID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch account: %w", err)
	}
	return &account, nil
}

// AccountExists reports whether a chat identifier has a registered account.
func (s *Store) AccountExists(chatID string) (bool, error) {
	account, err := s.AccountByChatID(chatID)
	return account != nil, err
}

// CreateAccount registers a new account for a chat identifier.
func (s *Store) CreateAccount(username, chatID string) error {
	account := model.Account{ChatID: chatID, Username: username}
	if err := s.db.Create(&account).Error; err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// DeleteAccount removes an account and everything it owns.
func (s *Store) DeleteAccount(chatID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var account model.Account
		err := tx.Where("chat_id = ?", chatID).First(&account).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var deadlineIDs []uint
		if err := tx.Model(&model.Deadline{}).
			Where("account_id = ?", account.ID).
			Pluck("id", &deadlineIDs).Error; err != nil {
			return err
		}
		if len(deadlineIDs) > 0 {
			if err := tx.Where("deadline_id IN ?", deadlineIDs).Delete(&model.Reminder{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", deadlineIDs).Delete(&model.Deadline{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("account_id = ?", account.ID).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&account).Error
	})
}

func (s *Store) accountID(chatID string) (uint, error) {
	account, err := s.AccountByChatID(chatID)
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, fmt.Errorf("no account for chat %s", chatID)
	}
	return account.ID, nil
}

// AppendMessage records one conversational turn for an account.
func (s *Store) AppendMessage(chatID, text string, fromUser bool) error {
	accountID, err := s.accountID(chatID)
	if err != nil {
		return err
	}
	msg := model.Message{AccountID: accountID, Text: text, FromUser: fromUser}
	if err := s.db.Create(&msg).Error; err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// RecentMessages returns the last limit messages for an account, oldest
// first, so they can be replayed as oracle context in order.
func (s *Store) RecentMessages(chatID string, limit int) ([]model.Message, error) {
	accountID, err := s.accountID(chatID)
	if err != nil {
		return nil, err
	}

	var messages []model.Message
	if err := s.db.Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// DeadlineExists reports whether the account already has a deadline with
// this exact description.
func (s *Store) DeadlineExists(chatID, description string) (bool, error) {
	accountID, err := s.accountID(chatID)
	if err != nil {
		return false, err
	}

	var count int64
	if err := s.db.Model(&model.Deadline{}).
		Where("account_id = ? AND description = ?", accountID, description).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("deadline exists: %w", err)
	}
	return count > 0, nil
}

// CreateDeadline inserts a deadline and returns its generated identifier.
func (s *Store) CreateDeadline(chatID, description string, dueDate time.Time) (uint, error) {
	accountID, err := s.accountID(chatID)
	if err != nil {
		return 0, err
	}

	deadline := model.Deadline{AccountID: accountID, Description: description, DueDate: dueDate}
	if err := s.db.Create(&deadline).Error; err != nil {
		return 0, fmt.Errorf("create deadline: %w", err)
	}
	return deadline.ID, nil
}

// DeadlinesInRange returns the account's deadlines whose due date falls in
// [start, end], ordered by due date. Nil bounds widen to the sentinels.
func (s *Store) DeadlinesInRange(chatID string, start, end *time.Time) ([]model.Deadline, error) {
	accountID, err := s.accountID(chatID)
	if err != nil {
		return nil, err
	}

	from := RangeStartSentinel
	if start != nil {
		from = *start
	}
	to := RangeEndSentinel
	if end != nil {
		to = *end
	}

	var deadlines []model.Deadline
	if err := s.db.Where("account_id = ? AND due_date >= ? AND due_date <= ?", accountID, from, to).
		Order("due_date ASC").
		Find(&deadlines).Error; err != nil {
		return nil, fmt.Errorf("fetch deadlines: %w", err)
	}
	return deadlines, nil
}

// DeadlinesByIDs fetches deadlines by identifier, ordered by due date.
func (s *Store) DeadlinesByIDs(ids []uint) ([]model.Deadline, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var deadlines []model.Deadline
	if err := s.db.Where("id IN ?", ids).
		Order("due_date ASC").
		Find(&deadlines).Error; err != nil {
		return nil, fmt.Errorf("fetch deadlines by ids: %w", err)
	}
	return deadlines, nil
}

// UpdateDeadline overwrites description and/or due date; nil keeps the
// stored value, mirroring a COALESCE update.
func (s *Store) UpdateDeadline(id uint, description *string, dueDate *time.Time) error {
	updates := map[string]any{}
	if description != nil {
		updates["description"] = *description
	}
	if dueDate != nil {
		updates["due_date"] = *dueDate
	}
	if len(updates) == 0 {
		return nil
	}
	if err := s.db.Model(&model.Deadline{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("update deadline: %w", err)
	}
	return nil
}

// DeleteDeadlines removes the deadlines (and, by ownership, their reminders)
// and returns the deleted rows for the confirmation reply.
func (s *Store) DeleteDeadlines(ids []uint) ([]model.Deadline, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var deleted []model.Deadline
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id IN ?", ids).
			Order("due_date ASC").
			Find(&deleted).Error; err != nil {
			return err
		}
		if err := tx.Where("deadline_id IN ?", ids).Delete(&model.Reminder{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&model.Deadline{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("delete deadlines: %w", err)
	}
	return deleted, nil
}

// CreateReminder schedules a reminder for a deadline.
func (s *Store) CreateReminder(deadlineID uint, at time.Time) error {
	reminder := model.Reminder{DeadlineID: deadlineID, RemindAt: at}
	if err := s.db.Create(&reminder).Error; err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

// UpdateReminder moves a reminder to a new timestamp.
func (s *Store) UpdateReminder(reminderID uint, at time.Time) error {
	if err := s.db.Model(&model.Reminder{}).
		Where("id = ?", reminderID).
		Update("remind_at", at).Error; err != nil {
		return fmt.Errorf("update reminder: %w", err)
	}
	return nil
}

// DeleteReminder removes a single reminder.
func (s *Store) DeleteReminder(reminderID uint) error {
	if err := s.db.Delete(&model.Reminder{}, reminderID).Error; err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	return nil
}

// Reminder looks up the reminder at an exact timestamp for a deadline, or
// nil when none is scheduled there.
func (s *Store) Reminder(deadlineID uint, at time.Time) (*model.Reminder, error) {
	var reminder model.Reminder
	err := s.db.Where("deadline_id = ? AND remind_at = ?", deadlineID, at).First(&reminder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch reminder: %w", err)
	}
	return &reminder, nil
}

// UpcomingReminders returns a deadline's reminders strictly after now,
// ascending.
func (s *Store) UpcomingReminders(deadlineID uint, now time.Time) ([]model.Reminder, error) {
	var reminders []model.Reminder
	if err := s.db.Where("deadline_id = ? AND remind_at > ?", deadlineID, now).
		Order("remind_at ASC").
		Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("fetch upcoming reminders: %w", err)
	}
	return reminders, nil
}

// DeleteUpcomingReminders removes every reminder of a deadline scheduled
// after now and reports how many were removed.
func (s *Store) DeleteUpcomingReminders(deadlineID uint, now time.Time) (int64, error) {
	result := s.db.Where("deadline_id = ? AND remind_at > ?", deadlineID, now).Delete(&model.Reminder{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete upcoming reminders: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// RemindersDueAt returns delivery rows for every reminder whose timestamp
// falls inside the minute starting at windowStart.
func (s *Store) RemindersDueAt(windowStart time.Time) ([]DueReminder, error) {
	windowEnd := windowStart.Add(time.Minute)

	var due []DueReminder
	if err := s.db.Model(&model.Reminder{}).
		Select("accounts.chat_id AS chat_id, deadlines.description AS description, deadlines.due_date AS due_date").
		Joins("JOIN deadlines ON deadlines.id = reminders.deadline_id").
		Joins("JOIN accounts ON accounts.id = deadlines.account_id").
		Where("reminders.remind_at >= ? AND reminders.remind_at < ?", windowStart, windowEnd).
		Order("accounts.chat_id, deadlines.due_date ASC").
		Scan(&due).Error; err != nil {
		return nil, fmt.Errorf("fetch due reminders: %w", err)
	}
	return due, nil
}

// RemindersForDeadlines groups the upcoming reminder times of each listed
// deadline under its description. Deadlines with no upcoming reminders are
// omitted.
func (s *Store) RemindersForDeadlines(ids []uint, now time.Time) ([]DeadlineReminders, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	type row struct {
		DeadlineID  uint
		Description string
		RemindAt    time.Time
	}
	var rows []row
	if err := s.db.Model(&model.Reminder{}).
		Select("reminders.deadline_id AS deadline_id, deadlines.description AS description, reminders.remind_at AS remind_at").
		Joins("JOIN deadlines ON deadlines.id = reminders.deadline_id").
		Where("reminders.deadline_id IN ? AND reminders.remind_at >= ?", ids, now).
		Order("deadlines.due_date ASC, reminders.remind_at ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch reminders for deadlines: %w", err)
	}

	var grouped []DeadlineReminders
	index := map[uint]int{}
	for _, r := range rows {
		i, ok := index[r.DeadlineID]
		if !ok {
			i = len(grouped)
			index[r.DeadlineID] = i
			grouped = append(grouped, DeadlineReminders{Description: r.Description})
		}
		grouped[i].Times = append(grouped[i].Times, r.RemindAt)
	}
	return grouped, nil
}
