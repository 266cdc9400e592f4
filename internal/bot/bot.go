// Package bot holds the dialogue controller: it turns free-form chat
// messages into deadline and reminder operations. Every mutation goes
// through a propose-then-confirm exchange, and a deadline's default reminder
// (08:00 the day before it is due) is kept in step with its due date.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"duebot/internal/config"
	"duebot/internal/model"
	"duebot/internal/oracle"
	"duebot/internal/store"
	"duebot/internal/twilio"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	msgNoAccount  = "You don't have an account yet. Send \"/start <username>\" to create one."
	msgTurnFailed = "Sorry, something went wrong on my end. Please try again."
)

// Reply is the outcome of one conversational turn. Monospace marks replies
// containing a table, so the transport can render them in a fixed-width
// block.
type Reply struct {
	Text      string
	Monospace bool
}

func text(format string, args ...any) (Reply, error) {
	return Reply{Text: fmt.Sprintf(format, args...)}, nil
}

func mono(s string) (Reply, error) {
	return Reply{Text: s, Monospace: true}, nil
}

// turn carries everything a handler needs for one message: the account, the
// rolling context window, and the new message at its end.
type turn struct {
	chatID   string
	username string
	msgs     []model.Message
}

type route struct {
	target oracle.Target
	action oracle.Action
}

type handlerFunc func(ctx context.Context, t *turn) (Reply, error)

// Bot coordinates the entity store, the intent oracle, reminder delivery,
// and the sweep scheduler.
type Bot struct {
	cfg    *config.Config
	store  *store.Store
	oracle oracle.Oracle
	twilio *twilio.Client
	cron   *cron.Cron
	logger *zap.Logger
	locks  *accountLocks
	routes map[route]handlerFunc
	now    func() time.Time
}

// New creates a fully configured Bot instance.
func New(cfg *config.Config, st *store.Store, orc oracle.Oracle, twilioClient *twilio.Client, logger *zap.Logger) *Bot {
	b := &Bot{
		cfg:    cfg,
		store:  st,
		oracle: orc,
		twilio: twilioClient,
		cron:   cron.New(cron.WithLocation(cfg.LocalTimezone)),
		logger: logger,
		locks:  newAccountLocks(),
		now:    time.Now,
	}
	b.routes = map[route]handlerFunc{
		{oracle.TargetDeadline, oracle.ActionCreate}: b.createDeadline,
		{oracle.TargetDeadline, oracle.ActionRead}:   b.readDeadlines,
		{oracle.TargetDeadline, oracle.ActionUpdate}: b.updateDeadline,
		{oracle.TargetDeadline, oracle.ActionDelete}: b.deleteDeadlines,
		{oracle.TargetReminder, oracle.ActionCreate}: b.createReminder,
		{oracle.TargetReminder, oracle.ActionRead}:   b.readReminders,
		{oracle.TargetReminder, oracle.ActionUpdate}: b.updateReminder,
		{oracle.TargetReminder, oracle.ActionDelete}: b.deleteReminder,
	}
	return b
}

// ProcessMessage runs one conversational turn to completion. Turns for the
// same account are serialized: confirmation is re-derived from the message
// log each turn, so two interleaved turns could otherwise race the
// propose-confirm exchange.
func (b *Bot) ProcessMessage(ctx context.Context, chatID, message string) (Reply, error) {
	unlock := b.locks.lock(chatID)
	defer unlock()

	account, err := b.store.AccountByChatID(chatID)
	if err != nil {
		return Reply{}, err
	}
	if account == nil {
		return Reply{Text: msgNoAccount}, nil
	}

	history, err := b.store.RecentMessages(chatID, store.ContextWindow)
	if err != nil {
		return Reply{}, err
	}
	if err := b.store.AppendMessage(chatID, message, true); err != nil {
		return Reply{}, err
	}

	t := &turn{
		chatID:   chatID,
		username: account.Username,
		msgs:     append(history, model.Message{Text: message, FromUser: true}),
	}

	intent, err := b.oracle.ClassifyIntent(ctx, t.msgs)
	if err != nil {
		return Reply{}, err
	}
	b.logger.Debug("intent classified",
		zap.String("chat_id", chatID),
		zap.String("action", string(intent.Action)),
		zap.String("target", string(intent.Target)))

	handler, ok := b.routes[route{intent.Target, intent.Action}]
	if !ok {
		handler = b.converse
	}

	reply, err := handler(ctx, t)
	if err != nil {
		return Reply{}, err
	}
	if reply.Text == "" {
		return Reply{}, fmt.Errorf("handler for %s/%s produced no reply", intent.Target, intent.Action)
	}

	if err := b.store.AppendMessage(chatID, reply.Text, false); err != nil {
		return Reply{}, err
	}
	return reply, nil
}

// converse is the fallback for anything that is not a deadline or reminder
// operation.
func (b *Bot) converse(ctx context.Context, t *turn) (Reply, error) {
	answer, err := b.oracle.Converse(ctx, t.msgs, t.username)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: answer}, nil
}

// accountLocks serializes turns per account. Cross-account turns never
// share state and may run concurrently.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *accountLocks) lock(chatID string) func() {
	l.mu.Lock()
	m, ok := l.locks[chatID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[chatID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
