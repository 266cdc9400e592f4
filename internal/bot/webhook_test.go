package bot

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"duebot/internal/oracle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postWebhook(t *testing.T, b *Bot, from, body string) string {
	t.Helper()

	form := url.Values{}
	form.Set("From", from)
	form.Set("Body", body)
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	b.Handler().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	payload, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "application/xml", res.Header.Get("Content-Type"))
	return string(payload)
}

func TestWebhookOnboarding(t *testing.T) {
	t.Parallel()
	fake := &fakeOracle{
		intent:   oracle.Intent{Action: oracle.ActionNone, Target: oracle.TargetNone},
		converse: "Hello!",
	}
	b, st, _ := newTestBot(t, fake)

	// A message before onboarding points at /start.
	out := postWebhook(t, b, "whatsapp:+6591234567", "hello")
	assert.Contains(t, out, "/start")

	out = postWebhook(t, b, "whatsapp:+6591234567", "/start alex")
	assert.Contains(t, out, "Welcome alex!")

	exists, err := st.AccountExists("+6591234567")
	require.NoError(t, err)
	assert.True(t, exists)

	out = postWebhook(t, b, "whatsapp:+6591234567", "/start alex")
	assert.Contains(t, out, "already created an account")

	out = postWebhook(t, b, "whatsapp:+6591234567", "hello")
	assert.Contains(t, out, "Hello!")
}

func TestWebhookWrapsTablesInMonospaceBlock(t *testing.T) {
	t.Parallel()
	fake := &fakeOracle{
		intent: oracle.Intent{Action: oracle.ActionRead, Target: oracle.TargetDeadline},
	}
	b, st, _ := newTestBot(t, fake)
	require.NoError(t, st.CreateAccount("alex", "+6591234567"))
	_, err := st.CreateDeadline("+6591234567", "Report", testNow.AddDate(0, 1, 0))
	require.NoError(t, err)

	out := postWebhook(t, b, "whatsapp:+6591234567", "show my deadlines")
	assert.Contains(t, out, "```")
	assert.Contains(t, out, "Report")
}

func TestWebhookRejectsEmptyMessage(t *testing.T) {
	t.Parallel()
	b, _, _ := newTestBot(t, &fakeOracle{})

	out := postWebhook(t, b, "whatsapp:+6591234567", "   ")
	assert.Contains(t, out, "I need a message to work with")
}
