package bot

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Delivery is one outbound reminder notification.
type Delivery struct {
	ChatID string
	Body   string
}

// DeliverDueReminders collects every reminder due in the minute containing
// now, grouped per account. The window is truncated to the minute so a
// sweep re-run within the same minute claims the same rows instead of
// drifting onto new ones.
func (b *Bot) DeliverDueReminders(now time.Time) ([]Delivery, error) {
	window := now.Truncate(time.Minute)
	due, err := b.store.RemindersDueAt(window)
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}

	var deliveries []Delivery
	index := map[string]int{}
	for _, r := range due {
		line := fmt.Sprintf("Reminder: %q is due on %s.", r.Description, r.DueDate.Format(dateLayout))
		i, ok := index[r.ChatID]
		if !ok {
			index[r.ChatID] = len(deliveries)
			deliveries = append(deliveries, Delivery{ChatID: r.ChatID, Body: line})
			continue
		}
		deliveries[i].Body += "\n" + line
	}
	return deliveries, nil
}

// runSweep is the cron entry point: collect due reminders and push them out
// over WhatsApp. Send failures are logged per recipient and do not stop the
// rest of the batch.
func (b *Bot) runSweep() {
	deliveries, err := b.DeliverDueReminders(b.now())
	if err != nil {
		b.logger.Error("reminder sweep failed", zap.Error(err))
		return
	}

	for _, d := range deliveries {
		if err := b.twilio.SendWhatsAppMessage(d.ChatID, d.Body); err != nil {
			b.logger.Error("reminder delivery failed",
				zap.Error(err),
				zap.String("chat_id", d.ChatID),
				zap.Int("lines", strings.Count(d.Body, "\n")+1))
		}
	}
}

// StartScheduler registers the minute sweep and starts the scheduler loop.
func (b *Bot) StartScheduler() error {
	if _, err := b.cron.AddFunc("* * * * *", b.runSweep); err != nil {
		return err
	}
	b.cron.Start()
	return nil
}

// StopScheduler stops the cron scheduler gracefully.
func (b *Bot) StopScheduler() {
	ctx := b.cron.Stop()
	<-ctx.Done()
}
