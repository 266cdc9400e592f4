package bot

import "time"

// A deadline's default reminder fires at 08:00 one day before the due date,
// and only exists while that moment is still in the future. The two
// functions below re-establish that invariant after a create or a due-date
// change.

const defaultReminderHour = 8

func defaultReminderTime(dueDate time.Time) time.Time {
	morning := time.Date(dueDate.Year(), dueDate.Month(), dueDate.Day(),
		defaultReminderHour, 0, 0, 0, dueDate.Location())
	return morning.AddDate(0, 0, -1)
}

// ensureDefaultReminder schedules the default reminder for a new deadline.
// Returns the scheduled time, or nil when the slot has already passed.
func (b *Bot) ensureDefaultReminder(deadlineID uint, dueDate time.Time) (*time.Time, error) {
	at := defaultReminderTime(dueDate)
	if !at.After(b.now()) {
		return nil, nil
	}
	if err := b.store.CreateReminder(deadlineID, at); err != nil {
		return nil, err
	}
	return &at, nil
}

// resyncDefaultReminder moves, creates, or removes the default reminder
// after the due date changed from oldDue to newDue. Returns the reminder
// time now in effect, or nil when none remains.
func (b *Bot) resyncDefaultReminder(deadlineID uint, oldDue, newDue time.Time) (*time.Time, error) {
	oldAt := defaultReminderTime(oldDue)
	newAt := defaultReminderTime(newDue)

	existing, err := b.store.Reminder(deadlineID, oldAt)
	if err != nil {
		return nil, err
	}

	if newAt.After(b.now()) {
		if existing != nil {
			if err := b.store.UpdateReminder(existing.ID, newAt); err != nil {
				return nil, err
			}
		} else if err := b.store.CreateReminder(deadlineID, newAt); err != nil {
			return nil, err
		}
		return &newAt, nil
	}

	if existing != nil {
		if err := b.store.DeleteReminder(existing.ID); err != nil {
			return nil, err
		}
	}
	return nil, nil
}
