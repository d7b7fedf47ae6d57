package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
)

func TestPageLimits_Clamp(t *testing.T) {
	tests := []struct {
		name             string
		limits           pageLimits
		page, perPage    int
		wantPage, wantPP int
	}{
		{"defaults", liveLimits, 0, 0, 1, 10},
		{"live capped at 10", liveLimits, 2, 50, 2, 10},
		{"closed allows 100", closedLimits, 1, 100, 1, 100},
		{"closed capped", closedLimits, 1, 500, 1, 100},
		{"owner default 5", ownerLimits, -3, -1, 1, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, perPage := tt.limits.clamp(tt.page, tt.perPage)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPP, perPage)
		})
	}
}

func TestEngine_Listings(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	quiet, _ := f.createPoll(t, "alice", "a", "b")
	busy, busyDetail := f.createPoll(t, "alice", "a", "b")
	closed, _ := f.createPoll(t, "bob", "a", "b")
	for _, v := range []string{"v1", "v2"} {
		_, err := f.engine.CastVote(ctx, busy, v, busyDetail.Options[0].ID)
		require.NoError(t, err)
	}
	require.NoError(t, f.engine.ClosePoll(ctx, closed, "bob"))

	live, err := f.engine.ListLive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, live.Polls, 2)
	assert.Equal(t, busy, live.Polls[0].ID)
	assert.Equal(t, quiet, live.Polls[1].ID)
	assert.Equal(t, int64(2), live.TotalPolls)
	assert.Equal(t, int64(1), live.TotalPages)
	assert.Equal(t, 10, live.PerPage)

	done, err := f.engine.ListClosed(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, done.Polls, 1)
	assert.Equal(t, closed, done.Polls[0].ID)

	mine, err := f.engine.ListByOwner(ctx, "alice", domain.SortByVotes, true, 1, 1)
	require.NoError(t, err)
	require.Len(t, mine.Polls, 1)
	assert.Equal(t, quiet, mine.Polls[0].ID)
	assert.Equal(t, int64(2), mine.TotalPages)

	empty, err := f.engine.ListByOwner(ctx, "nobody", domain.SortByCreatedAt, false, 1, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty.Polls)
	assert.Zero(t, empty.TotalPages)
}
