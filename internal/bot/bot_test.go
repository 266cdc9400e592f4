package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"duebot/internal/config"
	"duebot/internal/model"
	"duebot/internal/oracle"
	"duebot/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testNow anchors every clock comparison in the suite.
var testNow = time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

// fakeOracle returns scripted extractions so workflows can be driven
// without a language model.
type fakeOracle struct {
	intent    oracle.Intent
	creation  oracle.DeadlineCreation
	fetch     oracle.FetchInfo
	filterIDs []uint
	reference string
	update    oracle.DeadlineUpdate
	deletion  oracle.Deletion
	remCreate oracle.ReminderCreation
	remUpdate oracle.ReminderUpdate
	remDelete oracle.ReminderDeletion
	converse  string
}

var _ oracle.Oracle = (*fakeOracle)(nil)

func (f *fakeOracle) ClassifyIntent(context.Context, []model.Message) (oracle.Intent, error) {
	return f.intent, nil
}

func (f *fakeOracle) ExtractDeadlineCreation(context.Context, []model.Message) (oracle.DeadlineCreation, error) {
	return f.creation, nil
}

func (f *fakeOracle) ExtractFetchInfo(context.Context, string) (oracle.FetchInfo, error) {
	return f.fetch, nil
}

func (f *fakeOracle) FilterDeadlines(context.Context, []model.Deadline, string) ([]uint, error) {
	return f.filterIDs, nil
}

func (f *fakeOracle) ExtractDeadlineReference(context.Context, []model.Message) (string, error) {
	return f.reference, nil
}

func (f *fakeOracle) ExtractUpdateInfo(context.Context, []model.Message) (oracle.DeadlineUpdate, error) {
	return f.update, nil
}

func (f *fakeOracle) ExtractDeleteIDs(context.Context, []model.Deadline, []model.Message) (oracle.Deletion, error) {
	return f.deletion, nil
}

func (f *fakeOracle) ExtractReminderCreation(context.Context, []model.Message) (oracle.ReminderCreation, error) {
	return f.remCreate, nil
}

func (f *fakeOracle) ExtractReminderUpdate(context.Context, []model.Message) (oracle.ReminderUpdate, error) {
	return f.remUpdate, nil
}

func (f *fakeOracle) ExtractReminderDeletion(context.Context, []model.Message) (oracle.ReminderDeletion, error) {
	return f.remDelete, nil
}

func (f *fakeOracle) Converse(context.Context, []model.Message, string) (string, error) {
	return f.converse, nil
}

func newTestBot(t *testing.T, orc oracle.Oracle) (*Bot, *store.Store, *gorm.DB) {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_fk=1", name, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Account{}, &model.Deadline{}, &model.Reminder{}, &model.Message{},
	))

	st := store.New(db)
	b := New(&config.Config{LocalTimezone: time.UTC}, st, orc, nil, zap.NewNop())
	b.now = func() time.Time { return testNow }
	return b, st, db
}

func messageCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&model.Message{}).Count(&count).Error)
	return count
}

func deadlineCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&model.Deadline{}).Count(&count).Error)
	return count
}

func reminderCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&model.Reminder{}).Count(&count).Error)
	return count
}

func TestProcessMessageRequiresAccount(t *testing.T) {
	t.Parallel()
	b, _, db := newTestBot(t, &fakeOracle{})

	reply, err := b.ProcessMessage(context.Background(), "chat-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, msgNoAccount, reply.Text)
	assert.EqualValues(t, 0, messageCount(t, db), "nothing is logged before onboarding")
}

func TestProcessMessagePersistsBothTurns(t *testing.T) {
	t.Parallel()
	fake := &fakeOracle{
		intent:   oracle.Intent{Action: oracle.ActionNone, Target: oracle.TargetNone},
		converse: "Hi Alex, how can I help?",
	}
	b, st, _ := newTestBot(t, fake)
	require.NoError(t, st.CreateAccount("alex", "chat-1"))

	reply, err := b.ProcessMessage(context.Background(), "chat-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi Alex, how can I help?", reply.Text)

	msgs, err := st.RecentMessages("chat-1", store.ContextWindow)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].FromUser)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.False(t, msgs[1].FromUser)
	assert.Equal(t, reply.Text, msgs[1].Text)
}

func TestUnmappedIntentFallsBackToConversation(t *testing.T) {
	t.Parallel()
	fake := &fakeOracle{
		// create/none is not a routable pair
		intent:   oracle.Intent{Action: oracle.ActionCreate, Target: oracle.TargetNone},
		converse: "I can track deadlines and reminders for you.",
	}
	b, st, _ := newTestBot(t, fake)
	require.NoError(t, st.CreateAccount("alex", "chat-1"))

	reply, err := b.ProcessMessage(context.Background(), "chat-1", "do something")
	require.NoError(t, err)
	assert.Equal(t, fake.converse, reply.Text)
}
