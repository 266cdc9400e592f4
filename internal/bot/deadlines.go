package bot

import (
	"context"
	"fmt"
	"time"
)

// createDeadline implements the deadline creation workflow: extract the
// draft from the conversation, ask for anything missing, preview, and only
// insert once the user has confirmed.
func (b *Bot) createDeadline(ctx context.Context, t *turn) (Reply, error) {
	draft, err := b.oracle.ExtractDeadlineCreation(ctx, t.msgs)
	if err != nil {
		return Reply{}, err
	}

	if draft.Description == "" {
		return text("What should I call this deadline?")
	}
	if draft.DueDate == nil {
		return text("When is %q due? Give me a date.", draft.Description)
	}
	if !draft.Confirmed {
		return text("I'll create the deadline %q due on %s. Shall I go ahead?",
			draft.Description, draft.DueDate.Format(dateLayout))
	}

	exists, err := b.store.DeadlineExists(t.chatID, draft.Description)
	if err != nil {
		return Reply{}, err
	}
	if exists {
		return text("You already have a deadline called %q.", draft.Description)
	}

	id, err := b.store.CreateDeadline(t.chatID, draft.Description, *draft.DueDate)
	if err != nil {
		return Reply{}, err
	}

	reminderAt, err := b.ensureDefaultReminder(id, *draft.DueDate)
	if err != nil {
		return Reply{}, err
	}

	reply := fmt.Sprintf("Created the deadline %q due on %s.",
		draft.Description, draft.DueDate.Format(dateLayout))
	if reminderAt != nil {
		reply += fmt.Sprintf(" I'll remind you on %s.", reminderAt.Format(dateTimeLayout))
	}
	return text("%s", reply)
}

// readDeadlines lists deadlines, optionally narrowed by a due-date window
// and/or a description. Unlike update and delete, a description matching
// several deadlines is fine here.
func (b *Bot) readDeadlines(ctx context.Context, t *turn) (Reply, error) {
	latest := t.msgs[len(t.msgs)-1].Text
	info, err := b.oracle.ExtractFetchInfo(ctx, latest)
	if err != nil {
		return Reply{}, err
	}

	deadlines, err := b.store.DeadlinesInRange(t.chatID, info.Start, info.End)
	if err != nil {
		return Reply{}, err
	}
	if len(deadlines) == 0 {
		if info.Start != nil || info.End != nil {
			return text("You have no deadlines in that period.")
		}
		return text("You have no deadlines yet.")
	}

	if info.Description == "" {
		return mono("Here are your deadlines:\n" + renderDeadlineTable(deadlines))
	}

	ids, err := b.oracle.FilterDeadlines(ctx, deadlines, info.Description)
	if err != nil {
		return Reply{}, err
	}
	if len(ids) == 0 {
		return text(msgNoMatch)
	}

	matched, err := b.store.DeadlinesByIDs(ids)
	if err != nil {
		return Reply{}, err
	}
	return mono("Here is what I found:\n" + renderDeadlineTable(matched))
}

// updateDeadline renames a deadline and/or moves its due date, resolving
// the target to exactly one deadline first. A due-date change also
// re-synchronizes the default reminder.
func (b *Bot) updateDeadline(ctx context.Context, t *turn) (Reply, error) {
	ref, err := b.oracle.ExtractDeadlineReference(ctx, t.msgs)
	if err != nil {
		return Reply{}, err
	}
	id, failure, err := b.resolveDeadline(ctx, t.chatID, ref)
	if err != nil {
		return Reply{}, err
	}
	if failure != "" {
		return text("%s", failure)
	}

	rows, err := b.store.DeadlinesByIDs([]uint{id})
	if err != nil {
		return Reply{}, err
	}
	if len(rows) == 0 {
		return Reply{}, fmt.Errorf("resolved deadline %d not found", id)
	}
	current := rows[0]

	upd, err := b.oracle.ExtractUpdateInfo(ctx, t.msgs)
	if err != nil {
		return Reply{}, err
	}
	if upd.NewDescription == "" && upd.NewDueDate == nil {
		return text("What should change for %q? Give me a new description or a new due date.",
			current.Description)
	}

	newDescription := current.Description
	if upd.NewDescription != "" {
		newDescription = upd.NewDescription
	}
	newDueDate := current.DueDate
	if upd.NewDueDate != nil {
		newDueDate = *upd.NewDueDate
	}

	if !upd.Confirmed {
		return text("I'll change %q (due %s) to %q (due %s). Shall I go ahead?",
			current.Description, current.DueDate.Format(dateLayout),
			newDescription, newDueDate.Format(dateLayout))
	}

	if newDescription != current.Description {
		exists, err := b.store.DeadlineExists(t.chatID, newDescription)
		if err != nil {
			return Reply{}, err
		}
		if exists {
			return text("You already have a deadline called %q.", newDescription)
		}
	}

	var descPtr *string
	if newDescription != current.Description {
		descPtr = &newDescription
	}
	var duePtr *time.Time
	if !newDueDate.Equal(current.DueDate) {
		duePtr = &newDueDate
	}
	if err := b.store.UpdateDeadline(id, descPtr, duePtr); err != nil {
		return Reply{}, err
	}

	reply := fmt.Sprintf("Updated the deadline: %q due on %s.",
		newDescription, newDueDate.Format(dateLayout))
	if duePtr != nil {
		reminderAt, err := b.resyncDefaultReminder(id, current.DueDate, newDueDate)
		if err != nil {
			return Reply{}, err
		}
		if reminderAt != nil {
			reply += fmt.Sprintf(" I'll remind you on %s.", reminderAt.Format(dateTimeLayout))
		}
	}
	return text("%s", reply)
}

// deleteDeadlines removes the deadlines the user picked out of their full
// list. The oracle does the natural-language-to-ID matching here, given
// every stored deadline.
func (b *Bot) deleteDeadlines(ctx context.Context, t *turn) (Reply, error) {
	all, err := b.store.DeadlinesInRange(t.chatID, nil, nil)
	if err != nil {
		return Reply{}, err
	}
	if len(all) == 0 {
		return text("You have no deadlines yet.")
	}

	del, err := b.oracle.ExtractDeleteIDs(ctx, all, t.msgs)
	if err != nil {
		return Reply{}, err
	}
	if len(del.IDs) == 0 {
		return text(msgNoMatch)
	}

	if !del.Confirmed {
		slated, err := b.store.DeadlinesByIDs(del.IDs)
		if err != nil {
			return Reply{}, err
		}
		return mono("I'll delete these deadlines:\n" + renderDeadlineTable(slated) +
			"\nShall I go ahead?")
	}

	deleted, err := b.store.DeleteDeadlines(del.IDs)
	if err != nil {
		return Reply{}, err
	}
	return mono(fmt.Sprintf("Deleted %d deadline(s):\n", len(deleted)) +
		renderDeadlineTable(deleted))
}
