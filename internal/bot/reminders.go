package bot

import (
	"context"
	"fmt"

	"duebot/internal/model"
)

const msgPastTime = "That time is already in the past. Give me a future date and time."

// ownerDeadline resolves the deadline a reminder workflow operates on and
// fetches its row for use in replies.
func (b *Bot) ownerDeadline(ctx context.Context, t *turn) (*model.Deadline, string, error) {
	ref, err := b.oracle.ExtractDeadlineReference(ctx, t.msgs)
	if err != nil {
		return nil, "", err
	}
	id, failure, err := b.resolveDeadline(ctx, t.chatID, ref)
	if err != nil || failure != "" {
		return nil, failure, err
	}

	rows, err := b.store.DeadlinesByIDs([]uint{id})
	if err != nil {
		return nil, "", err
	}
	if len(rows) == 0 {
		return nil, "", fmt.Errorf("resolved deadline %d not found", id)
	}
	return &rows[0], "", nil
}

// createReminder schedules an explicit reminder for one deadline.
func (b *Bot) createReminder(ctx context.Context, t *turn) (Reply, error) {
	deadline, failure, err := b.ownerDeadline(ctx, t)
	if err != nil {
		return Reply{}, err
	}
	if failure != "" {
		return text("%s", failure)
	}

	rc, err := b.oracle.ExtractReminderCreation(ctx, t.msgs)
	if err != nil {
		return Reply{}, err
	}
	if rc.At == nil {
		return text("When should I remind you about %q? Give me a date and time.",
			deadline.Description)
	}
	if !rc.At.After(b.now()) {
		return text(msgPastTime)
	}

	existing, err := b.store.Reminder(deadline.ID, *rc.At)
	if err != nil {
		return Reply{}, err
	}
	if existing != nil {
		return text("You already have a reminder for %q at %s.",
			deadline.Description, rc.At.Format(dateTimeLayout))
	}

	if !rc.Confirmed {
		return text("I'll remind you about %q on %s. Shall I go ahead?",
			deadline.Description, rc.At.Format(dateTimeLayout))
	}

	if err := b.store.CreateReminder(deadline.ID, *rc.At); err != nil {
		return Reply{}, err
	}
	return text("Done. I'll remind you about %q on %s.",
		deadline.Description, rc.At.Format(dateTimeLayout))
}

// readReminders lists upcoming reminders, for one described deadline or for
// all of them. Matching several deadlines is fine here.
func (b *Bot) readReminders(ctx context.Context, t *turn) (Reply, error) {
	ref, err := b.oracle.ExtractDeadlineReference(ctx, t.msgs)
	if err != nil {
		return Reply{}, err
	}

	all, err := b.store.DeadlinesInRange(t.chatID, nil, nil)
	if err != nil {
		return Reply{}, err
	}
	if len(all) == 0 {
		return text("You have no deadlines yet.")
	}

	var ids []uint
	if ref == "" {
		for _, d := range all {
			ids = append(ids, d.ID)
		}
	} else {
		ids, err = b.oracle.FilterDeadlines(ctx, all, ref)
		if err != nil {
			return Reply{}, err
		}
		if len(ids) == 0 {
			return text(msgNoMatch)
		}
	}

	groups, err := b.store.RemindersForDeadlines(ids, b.now())
	if err != nil {
		return Reply{}, err
	}
	if len(groups) == 0 {
		return text("There are no upcoming reminders for that.")
	}
	return mono("Here are your upcoming reminders:\n" + renderReminderTable(groups))
}

// updateReminder moves an existing reminder, identified by its current
// timestamp, to a new one.
func (b *Bot) updateReminder(ctx context.Context, t *turn) (Reply, error) {
	deadline, failure, err := b.ownerDeadline(ctx, t)
	if err != nil {
		return Reply{}, err
	}
	if failure != "" {
		return text("%s", failure)
	}

	ru, err := b.oracle.ExtractReminderUpdate(ctx, t.msgs)
	if err != nil {
		return Reply{}, err
	}
	if ru.OldAt == nil {
		return text("Which reminder for %q should I move? Give me its current date and time.",
			deadline.Description)
	}
	if ru.NewAt == nil {
		return text("What should the new date and time be?")
	}
	if !ru.NewAt.After(b.now()) {
		return text(msgPastTime)
	}

	existing, err := b.store.Reminder(deadline.ID, *ru.OldAt)
	if err != nil {
		return Reply{}, err
	}
	if existing == nil {
		return text("There is no reminder for %q at %s.",
			deadline.Description, ru.OldAt.Format(dateTimeLayout))
	}

	collision, err := b.store.Reminder(deadline.ID, *ru.NewAt)
	if err != nil {
		return Reply{}, err
	}
	if collision != nil {
		return text("You already have a reminder for %q at %s.",
			deadline.Description, ru.NewAt.Format(dateTimeLayout))
	}

	if !ru.Confirmed {
		return text("I'll move the reminder for %q from %s to %s. Shall I go ahead?",
			deadline.Description, ru.OldAt.Format(dateTimeLayout), ru.NewAt.Format(dateTimeLayout))
	}

	if err := b.store.UpdateReminder(existing.ID, *ru.NewAt); err != nil {
		return Reply{}, err
	}
	return text("Done. The reminder for %q is now set for %s.",
		deadline.Description, ru.NewAt.Format(dateTimeLayout))
}

// deleteReminder removes one reminder by timestamp, or every upcoming
// reminder of the deadline when no timestamp was given.
func (b *Bot) deleteReminder(ctx context.Context, t *turn) (Reply, error) {
	deadline, failure, err := b.ownerDeadline(ctx, t)
	if err != nil {
		return Reply{}, err
	}
	if failure != "" {
		return text("%s", failure)
	}

	rd, err := b.oracle.ExtractReminderDeletion(ctx, t.msgs)
	if err != nil {
		return Reply{}, err
	}

	if rd.At == nil {
		upcoming, err := b.store.UpcomingReminders(deadline.ID, b.now())
		if err != nil {
			return Reply{}, err
		}
		if len(upcoming) == 0 {
			return text("There are no upcoming reminders for %q.", deadline.Description)
		}
		if !rd.Confirmed {
			return text("I'll delete all %d upcoming reminder(s) for %q. Shall I go ahead?",
				len(upcoming), deadline.Description)
		}
		n, err := b.store.DeleteUpcomingReminders(deadline.ID, b.now())
		if err != nil {
			return Reply{}, err
		}
		return text("Deleted %d reminder(s) for %q.", n, deadline.Description)
	}

	if !rd.At.After(b.now()) {
		return text(msgPastTime)
	}

	existing, err := b.store.Reminder(deadline.ID, *rd.At)
	if err != nil {
		return Reply{}, err
	}
	if existing == nil {
		return text("There is no reminder for %q at %s.",
			deadline.Description, rd.At.Format(dateTimeLayout))
	}

	if !rd.Confirmed {
		return text("I'll delete the reminder for %q at %s. Shall I go ahead?",
			deadline.Description, rd.At.Format(dateTimeLayout))
	}

	if err := b.store.DeleteReminder(existing.ID); err != nil {
		return Reply{}, err
	}
	return text("Deleted the reminder for %q at %s.",
		deadline.Description, rd.At.Format(dateTimeLayout))
}
