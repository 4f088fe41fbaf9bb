package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/encounter/core"
)

var _ core.MemoryStore = (*Store)(nil)

func newTestStore(t *testing.T, optFns ...func(o *Options)) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.db")
	s, err := New(path, optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func rec(i int) core.ConversationRecord {
	return core.NewConversationRecord([]string{"naval", "feynman"}, []core.DialogueTurn{
		{SpeakerID: "naval", Text: fmt.Sprintf("turn %d", i)},
	}, time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC), 0)
}

func TestStore_AppendRecentCap(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, func(o *Options) { o.Cap = 3 })

	recs, err := s.Recent(ctx, core.NewPairKey("naval", "feynman"))
	require.NoError(t, err)
	assert.Empty(t, recs)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, rec(i)))
	}

	recs, err = s.Recent(ctx, core.NewPairKey("feynman", "naval"))
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "turn 2", recs[0].Turns[0].Text)
	assert.Equal(t, "turn 4", recs[2].Turns[0].Text)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 4, 0, 0, time.UTC), recs[2].Timestamp)
	assert.Equal(t, []string{"naval", "feynman"}, recs[2].ParticipantIDs)

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM conversations").Scan(&count))
	assert.Equal(t, 3, count, "older rows are deleted")
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s, path := newTestStore(t)
	require.NoError(t, s.Append(ctx, rec(1)))
	require.NoError(t, s.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	recs, err := reopened.Recent(ctx, core.NewPairKey("naval", "feynman"))
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	keys, err := reopened.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.PairKey{"feynman-naval"}, keys)
}
