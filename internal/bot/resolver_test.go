package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDeadlinePolicy(t *testing.T) {
	t.Parallel()
	fake := &fakeOracle{}
	b, st, _ := newTestBot(t, fake)
	require.NoError(t, st.CreateAccount("alex", "chat-1"))

	// Missing description.
	_, failure, err := b.resolveDeadline(context.Background(), "chat-1", "")
	require.NoError(t, err)
	assert.Equal(t, msgWhichDeadline, failure)

	// Empty candidate set.
	_, failure, err = b.resolveDeadline(context.Background(), "chat-1", "the report")
	require.NoError(t, err)
	assert.Equal(t, msgNothingToMatch, failure)

	id1, err := st.CreateDeadline("chat-1", "Report", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	id2, err := st.CreateDeadline("chat-1", "Tax return", time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// Zero matches.
	fake.filterIDs = nil
	_, failure, err = b.resolveDeadline(context.Background(), "chat-1", "the essay")
	require.NoError(t, err)
	assert.Equal(t, msgNoMatch, failure)

	// Exactly one match resolves.
	fake.filterIDs = []uint{id1}
	id, failure, err := b.resolveDeadline(context.Background(), "chat-1", "the report")
	require.NoError(t, err)
	assert.Empty(t, failure)
	assert.Equal(t, id1, id)

	// More than one match is ambiguous.
	fake.filterIDs = []uint{id1, id2}
	_, failure, err = b.resolveDeadline(context.Background(), "chat-1", "my stuff")
	require.NoError(t, err)
	assert.Equal(t, msgAmbiguous, failure)
}
