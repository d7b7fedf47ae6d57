package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedPoll(t *testing.T, s *Store, id, owner string, optionIDs ...string) {
	t.Helper()
	opts := make([]domain.Option, 0, len(optionIDs))
	for _, oid := range optionIDs {
		opts = append(opts, domain.Option{ID: oid, Text: "text-" + oid})
	}
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx domain.Stores) error {
		if err := tx.Options().InsertOptions(ctx, opts, t0); err != nil {
			return err
		}
		return tx.Polls().InsertPoll(ctx, &domain.Poll{
			ID: id, Title: "poll " + id, OwnerID: owner, OptionIDs: optionIDs,
			IsOpen: true, Voters: map[string]struct{}{}, CreatedAt: t0, UpdatedAt: t0,
		})
	})
	require.NoError(t, err)
}

func TestWithinTx_RollbackDiscardsEveryWrite(t *testing.T) {
	s := NewStore()
	boom := errors.New("boom")

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx domain.Stores) error {
		require.NoError(t, tx.Options().InsertOptions(ctx, []domain.Option{{ID: "a"}, {ID: "b"}}, t0))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.OptionCount())
}

func TestWithinTx_InjectedCommitFailure(t *testing.T) {
	s := NewStore()
	seedPoll(t, s, "p1", "alice", "a", "b")
	s.FailNext("Commit", errors.New("disk full"))

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx domain.Stores) error {
		added, err := tx.Polls().AddVoter(ctx, "p1", "bob", t0)
		require.True(t, added)
		return err
	})
	require.Error(t, err)

	p, err := s.Polls().GetPoll(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, p.HasVoted("bob"))
}

func TestWithinTx_UncommittedWritesInvisible(t *testing.T) {
	s := NewStore()
	seedPoll(t, s, "p1", "alice", "a", "b")

	inside := make(chan struct{})
	proceed := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.WithinTx(context.Background(), func(ctx context.Context, tx domain.Stores) error {
			if _, err := tx.Polls().AddVoter(ctx, "p1", "bob", t0); err != nil {
				return err
			}
			if _, err := tx.Options().IncrementVotes(ctx, "a"); err != nil {
				return err
			}
			close(inside)
			<-proceed
			return nil
		})
	}()

	<-inside
	p, err := s.Polls().GetPoll(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, p.HasVoted("bob"))
	opts, err := s.Options().GetOptions(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), opts["a"].VotesCount)

	close(proceed)
	require.NoError(t, <-done)

	opts, err = s.Options().GetOptions(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), opts["a"].VotesCount)
}

func TestNestedTx_Rejected(t *testing.T) {
	s := NewStore()
	err := s.WithinTx(context.Background(), func(ctx context.Context, _ domain.Stores) error {
		return s.WithinTx(ctx, func(context.Context, domain.Stores) error { return nil })
	})
	assert.ErrorIs(t, err, errNestedTx)
}

func TestAddVoter_Conditions(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedPoll(t, s, "p1", "alice", "a", "b")

	added, err := s.Polls().AddVoter(ctx, "p1", "bob", t0)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.Polls().AddVoter(ctx, "p1", "bob", t0)
	require.NoError(t, err)
	assert.False(t, added, "duplicate voter must not match")

	ok, err := s.Polls().SetOpen(ctx, "p1", "alice", false, t0)
	require.NoError(t, err)
	require.True(t, ok)

	added, err = s.Polls().AddVoter(ctx, "p1", "carol", t0)
	require.NoError(t, err)
	assert.False(t, added, "closed poll must not match")

	added, err = s.Polls().AddVoter(ctx, "missing", "carol", t0)
	require.NoError(t, err)
	assert.False(t, added)
}

func TestOwnerConditionalWrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedPoll(t, s, "p1", "alice", "a", "b")

	ok, err := s.Polls().SetOpen(ctx, "p1", "mallory", false, t0)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Polls().ResetPoll(ctx, "p1", "mallory", t0)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Polls().DeletePoll(ctx, "p1", "mallory")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Polls().DeletePoll(ctx, "p1", "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Polls().GetPoll(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrPollNotFound)
}

func TestAddVoter_ConcurrentSameVoter(t *testing.T) {
	s := NewStore()
	seedPoll(t, s, "p1", "alice", "a", "b")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := s.Polls().AddVoter(context.Background(), "p1", "bob", t0)
			if err == nil && added {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestIncrementVotes_NoLostUpdates(t *testing.T) {
	s := NewStore()
	seedPoll(t, s, "p1", "alice", "a", "b")

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithinTx(context.Background(), func(ctx context.Context, tx domain.Stores) error {
				if _, err := tx.Polls().LockPoll(ctx, "p1"); err != nil {
					return err
				}
				_, err := tx.Options().IncrementVotes(ctx, "a")
				return err
			})
		}()
	}
	wg.Wait()

	opts, err := s.Options().GetOptions(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, int64(50), opts["a"].VotesCount)
}

func TestLockPoll_RespectsContext(t *testing.T) {
	s := NewStore()
	seedPoll(t, s, "p1", "alice", "a", "b")

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.WithinTx(context.Background(), func(ctx context.Context, tx domain.Stores) error {
			_, err := tx.Polls().LockPoll(ctx, "p1")
			close(holding)
			<-release
			return err
		})
	}()
	<-holding
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.WithinTx(ctx, func(ctx context.Context, tx domain.Stores) error {
		_, err := tx.Polls().LockPoll(ctx, "p1")
		return err
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResetPoll_ClearsVotersAndReopens(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedPoll(t, s, "p1", "alice", "a", "b")
	_, _ = s.Polls().AddVoter(ctx, "p1", "bob", t0)
	_, _ = s.Polls().SetOpen(ctx, "p1", "alice", false, t0)

	ok, err := s.Polls().ResetPoll(ctx, "p1", "alice", t0.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	p, err := s.Polls().GetPoll(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, p.IsOpen)
	assert.Zero(t, p.TotalVoters())
	assert.Equal(t, t0.Add(time.Minute), p.UpdatedAt)
}

func TestListPolls_FilterSortPaginate(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedPoll(t, s, "p1", "alice", "a1", "b1")
	seedPoll(t, s, "p2", "alice", "a2", "b2")
	seedPoll(t, s, "p3", "bob", "a3", "b3")
	for _, v := range []string{"x", "y"} {
		_, _ = s.Polls().AddVoter(ctx, "p2", v, t0)
	}
	_, _ = s.Polls().AddVoter(ctx, "p3", "x", t0)
	_, _ = s.Polls().SetOpen(ctx, "p1", "alice", false, t0)

	open := true
	page, err := s.Polls().ListPolls(ctx, domain.PollQuery{Open: &open, SortBy: domain.SortByVotes, Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.Len(t, page.Polls, 2)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, "p2", page.Polls[0].ID)
	assert.Equal(t, int64(2), page.Polls[0].TotalVotes)
	assert.Len(t, page.Polls[0].Options, 2)

	page, err = s.Polls().ListPolls(ctx, domain.PollQuery{OwnerID: "alice", SortBy: domain.SortByTitle, Ascending: true, Page: 2, PerPage: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Polls, 1)
	assert.Equal(t, "p2", page.Polls[0].ID)

	page, err = s.Polls().ListPolls(ctx, domain.PollQuery{Page: 5, PerPage: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Polls)
	assert.Equal(t, int64(3), page.Total)
}

func TestDeleteOrphanOptions(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedPoll(t, s, "p1", "alice", "a", "b")
	require.NoError(t, s.Options().InsertOptions(ctx, []domain.Option{{ID: "old"}}, t0))
	require.NoError(t, s.Options().InsertOptions(ctx, []domain.Option{{ID: "fresh"}}, t0.Add(time.Hour)))

	n, err := s.Options().DeleteOrphanOptions(ctx, t0.Add(time.Minute), true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 4, s.OptionCount())

	n, err = s.Options().DeleteOrphanOptions(ctx, t0.Add(time.Minute), false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 3, s.OptionCount())
}

func TestFailNext_FiresOnce(t *testing.T) {
	s := NewStore()
	s.FailNext("GetPoll", errors.New("timeout"))

	_, err := s.Polls().GetPoll(context.Background(), "p1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrPollNotFound)

	_, err = s.Polls().GetPoll(context.Background(), "p1")
	assert.ErrorIs(t, err, domain.ErrPollNotFound)
}

func TestPollLocks_ReleasedAfterTransactions(t *testing.T) {
	s := NewStore()
	seedPoll(t, s, "p1", "alice", "o1", "o2")
	ctx := context.Background()

	for i := range 50 {
		added, err := s.Polls().AddVoter(ctx, fmt.Sprintf("made-up-%d", i), "bob", t0)
		require.NoError(t, err)
		assert.False(t, added)
	}
	added, err := s.Polls().AddVoter(ctx, "p1", "bob", t0)
	require.NoError(t, err)
	assert.True(t, added)
	ok, err := s.Polls().DeletePoll(ctx, "p1", "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Zero(t, s.lockCount())
}

func TestPollLocks_WaiterKeepsLockAlive(t *testing.T) {
	s := NewStore()
	seedPoll(t, s, "p1", "alice", "o1")

	locked := make(chan struct{})
	unlock := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.WithinTx(context.Background(), func(ctx context.Context, tx domain.Stores) error {
			if _, err := tx.Polls().LockPoll(ctx, "p1"); err != nil {
				return err
			}
			close(locked)
			<-unlock
			return nil
		})
	}()
	<-locked

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.WithinTx(ctx, func(ctx context.Context, tx domain.Stores) error {
		_, err := tx.Polls().LockPoll(ctx, "p1")
		return err
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, s.lockCount(), "the holder still owns the lock")

	close(unlock)
	require.NoError(t, <-done)
	assert.Zero(t, s.lockCount())
}
