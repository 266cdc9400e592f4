package oracle

import (
	"testing"
	"time"

	"duebot/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	t.Parallel()

	var payload struct {
		Action string `json:"action"`
		Target string `json:"target"`
	}
	require.NoError(t, decodePayload(`{"action": "create", "target": "deadline"}`, &payload))
	assert.Equal(t, "create", payload.Action)

	// Models like wrapping JSON in fences; tolerate it.
	fenced := "```json\n{\"action\": \"read\", \"target\": \"reminder\"}\n```"
	require.NoError(t, decodePayload(fenced, &payload))
	assert.Equal(t, "read", payload.Action)
	assert.Equal(t, "reminder", payload.Target)

	err := decodePayload("I cannot help with that.", &payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContract)
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	got, err := parseDate("2025-03-01", time.UTC)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))

	got, err = parseDate("  ", time.UTC)
	require.NoError(t, err)
	assert.Nil(t, got, "empty means field not supplied")

	_, err = parseDate("first of march", time.UTC)
	assert.ErrorIs(t, err, ErrContract)
}

func TestParseDateTime(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"2025-02-28 08:00", "2025-02-28T08:00", "2025-02-28 08:00:00"} {
		got, err := parseDateTime(raw, time.UTC)
		require.NoError(t, err, raw)
		require.NotNil(t, got)
		assert.True(t, got.Equal(time.Date(2025, 2, 28, 8, 0, 0, 0, time.UTC)), raw)
	}

	got, err := parseDateTime("", time.UTC)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseDateTime("tomorrow morning", time.UTC)
	assert.ErrorIs(t, err, ErrContract)
}

func TestOnlyKnownIDs(t *testing.T) {
	t.Parallel()

	candidates := []model.Deadline{{ID: 1}, {ID: 2}, {ID: 3}}
	// Hallucinated and duplicated IDs are dropped.
	assert.Equal(t, []uint{2, 1}, onlyKnownIDs([]uint{2, 99, 1, 2}, candidates))
	assert.Nil(t, onlyKnownIDs([]uint{7, 8}, candidates))
	assert.Nil(t, onlyKnownIDs(nil, candidates))
}

func TestPromptsEmbedded(t *testing.T) {
	t.Parallel()

	for _, name := range []string{
		"intent", "conversation",
		"deadline_create", "deadline_fetch", "deadline_filter",
		"deadline_reference", "deadline_update", "deadline_delete",
		"reminder_create", "reminder_update", "reminder_delete",
	} {
		assert.NotEmpty(t, prompt(name), name)
	}
}

func TestCandidateList(t *testing.T) {
	t.Parallel()

	out := candidateList([]model.Deadline{
		{ID: 4, Description: "Report", DueDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
	})
	assert.Contains(t, out, "4: Report (due 2025-03-01)")
}
