package bot

import (
	"context"

	"duebot/internal/model"
)

const (
	msgNothingToMatch = "You don't have any deadlines yet, so there is nothing to match."
	msgNoMatch        = "No deadlines matched your query."
	msgAmbiguous      = "That matches more than one deadline. Could you be more specific?"
	msgWhichDeadline  = "Which deadline do you mean? Please name it."
)

// filterDeadlines fetches all of the account's deadlines and asks the
// oracle which of them the description refers to. The candidate list is
// returned alongside so callers can distinguish "no deadlines at all" from
// "none matched".
func (b *Bot) filterDeadlines(ctx context.Context, chatID, description string) (ids []uint, candidates []model.Deadline, err error) {
	candidates, err = b.store.DeadlinesInRange(chatID, nil, nil)
	if err != nil || len(candidates) == 0 {
		return nil, candidates, err
	}
	ids, err = b.oracle.FilterDeadlines(ctx, candidates, description)
	return ids, candidates, err
}

// resolveDeadline narrows a free-text description to exactly one deadline.
// A non-empty failure string is the user-facing reply for the 0-match,
// many-match, and missing-description cases; no error is raised for those
// since the user can correct them on the next turn.
func (b *Bot) resolveDeadline(ctx context.Context, chatID, description string) (id uint, failure string, err error) {
	if description == "" {
		return 0, msgWhichDeadline, nil
	}

	ids, candidates, err := b.filterDeadlines(ctx, chatID, description)
	if err != nil {
		return 0, "", err
	}
	if len(candidates) == 0 {
		return 0, msgNothingToMatch, nil
	}

	switch len(ids) {
	case 0:
		return 0, msgNoMatch, nil
	case 1:
		return ids[0], "", nil
	default:
		return 0, msgAmbiguous, nil
	}
}
