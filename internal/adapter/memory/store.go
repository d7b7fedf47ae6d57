// Package memory provides a process-local implementation of the poll and option stores.
//
// Transactions stage their writes on private copies and apply them on commit. A transaction
// that touches a poll holds that poll's lock until it finishes, which gives the same
// guarantees as a row lock: writers on one poll are serialized, different polls proceed in
// parallel, and readers outside a transaction only ever see committed state.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
)

var errNestedTx = errors.New("memory: nested transactions are not supported")

type Store struct {
	mu      sync.RWMutex
	polls   map[string]*domain.Poll
	options map[string]domain.Option
	locks   map[string]*pollLock

	faultMu sync.Mutex
	faults  map[string]error
}

var _ domain.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		polls:   make(map[string]*domain.Poll),
		options: make(map[string]domain.Option),
		locks:   make(map[string]*pollLock),
		faults:  make(map[string]error),
	}
}

// FailNext makes the next call of the named store operation (e.g. "InsertPoll",
// "IncrementVotes") return err. Used to exercise rollback paths.
func (s *Store) FailNext(op string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[op] = err
}

func (s *Store) fault(op string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	err, ok := s.faults[op]
	if !ok {
		return nil
	}
	delete(s.faults, op)
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Store) Polls() domain.PollStore     { return autoCommit{s} }
func (s *Store) Options() domain.OptionStore { return autoCommit{s} }

type txKey struct{}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Stores) error) error {
	if _, ok := ctx.Value(txKey{}).(*tx); ok {
		return errNestedTx
	}

	t := newTx(s)
	defer t.release()

	if err := fn(context.WithValue(ctx, txKey{}, t), t); err != nil {
		return err
	}
	if err := s.fault("Commit"); err != nil {
		return err
	}
	t.commit()
	return nil
}

// pollLock is a per-poll mutex. It stays in Store.locks only while some transaction
// holds it or waits for it.
type pollLock struct {
	ch   chan struct{}
	refs int
}

func (s *Store) acquireRef(pollID string) *pollLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[pollID]
	if !ok {
		l = &pollLock{ch: make(chan struct{}, 1)}
		s.locks[pollID] = l
	}
	l.refs++
	return l
}

func (s *Store) releaseRef(pollID string, l *pollLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, pollID)
	}
}

func (s *Store) lockCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.locks)
}

func (s *Store) committedPoll(pollID string) (*domain.Poll, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.polls[pollID]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

func (s *Store) committedOption(optionID string) (domain.Option, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.options[optionID]
	return o, ok
}

// tx stages writes; a nil entry in polls or a deleted entry in options marks a removal.
type tx struct {
	s          *Store
	held       map[string]*pollLock
	polls      map[string]*domain.Poll
	options    map[string]domain.Option
	delOptions map[string]struct{}
}

func newTx(s *Store) *tx {
	return &tx{
		s:          s,
		held:       make(map[string]*pollLock),
		polls:      make(map[string]*domain.Poll),
		options:    make(map[string]domain.Option),
		delOptions: make(map[string]struct{}),
	}
}

func (t *tx) Polls() domain.PollStore     { return t }
func (t *tx) Options() domain.OptionStore { return t }

func (t *tx) lock(ctx context.Context, pollID string) error {
	if _, ok := t.held[pollID]; ok {
		return nil
	}
	l := t.s.acquireRef(pollID)
	select {
	case l.ch <- struct{}{}:
		t.held[pollID] = l
		// A copy read before the lock was taken may be stale.
		delete(t.polls, pollID)
		return nil
	case <-ctx.Done():
		t.s.releaseRef(pollID, l)
		return fmt.Errorf("waiting for poll lock: %w", ctx.Err())
	}
}

func (t *tx) release() {
	for id, l := range t.held {
		<-l.ch
		t.s.releaseRef(id, l)
		delete(t.held, id)
	}
}

func (t *tx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for id, p := range t.polls {
		if p == nil {
			delete(t.s.polls, id)
			continue
		}
		t.s.polls[id] = p
	}
	for id, o := range t.options {
		t.s.options[id] = o
	}
	for id := range t.delOptions {
		delete(t.s.options, id)
	}
}

// poll returns the staged copy of a poll, loading it from committed state on first use.
func (t *tx) poll(pollID string) (*domain.Poll, bool) {
	if p, ok := t.polls[pollID]; ok {
		return p, p != nil
	}
	p, ok := t.s.committedPoll(pollID)
	if !ok {
		return nil, false
	}
	t.polls[pollID] = p
	return p, true
}

func (t *tx) option(optionID string) (domain.Option, bool) {
	if _, gone := t.delOptions[optionID]; gone {
		return domain.Option{}, false
	}
	if o, ok := t.options[optionID]; ok {
		return o, true
	}
	return t.s.committedOption(optionID)
}

func (t *tx) InsertPoll(ctx context.Context, poll *domain.Poll) error {
	if err := t.s.fault("InsertPoll"); err != nil {
		return err
	}
	if err := t.lock(ctx, poll.ID); err != nil {
		return err
	}
	if _, exists := t.poll(poll.ID); exists {
		return fmt.Errorf("insert poll %s: duplicate id", poll.ID)
	}
	t.polls[poll.ID] = poll.Clone()
	return nil
}

func (t *tx) GetPoll(_ context.Context, pollID string) (*domain.Poll, error) {
	if err := t.s.fault("GetPoll"); err != nil {
		return nil, err
	}
	p, ok := t.poll(pollID)
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	return p.Clone(), nil
}

func (t *tx) LockPoll(ctx context.Context, pollID string) (*domain.Poll, error) {
	if err := t.lock(ctx, pollID); err != nil {
		return nil, err
	}
	return t.GetPoll(ctx, pollID)
}

func (t *tx) AddVoter(ctx context.Context, pollID, voterID string, at time.Time) (bool, error) {
	if err := t.s.fault("AddVoter"); err != nil {
		return false, err
	}
	if err := t.lock(ctx, pollID); err != nil {
		return false, err
	}
	p, ok := t.poll(pollID)
	if !ok || !p.IsOpen || p.HasVoted(voterID) {
		return false, nil
	}
	p.Voters[voterID] = struct{}{}
	p.UpdatedAt = at
	return true, nil
}

func (t *tx) SetOpen(ctx context.Context, pollID, ownerID string, open bool, at time.Time) (bool, error) {
	if err := t.s.fault("SetOpen"); err != nil {
		return false, err
	}
	if err := t.lock(ctx, pollID); err != nil {
		return false, err
	}
	p, ok := t.poll(pollID)
	if !ok || p.OwnerID != ownerID {
		return false, nil
	}
	p.IsOpen = open
	p.UpdatedAt = at
	return true, nil
}

func (t *tx) ResetPoll(ctx context.Context, pollID, ownerID string, at time.Time) (bool, error) {
	if err := t.s.fault("ResetPoll"); err != nil {
		return false, err
	}
	if err := t.lock(ctx, pollID); err != nil {
		return false, err
	}
	p, ok := t.poll(pollID)
	if !ok || p.OwnerID != ownerID {
		return false, nil
	}
	p.Voters = make(map[string]struct{})
	p.IsOpen = true
	p.UpdatedAt = at
	return true, nil
}

func (t *tx) DeletePoll(ctx context.Context, pollID, ownerID string) (bool, error) {
	if err := t.s.fault("DeletePoll"); err != nil {
		return false, err
	}
	if err := t.lock(ctx, pollID); err != nil {
		return false, err
	}
	p, ok := t.poll(pollID)
	if !ok || p.OwnerID != ownerID {
		return false, nil
	}
	t.polls[pollID] = nil
	return true, nil
}

func (t *tx) ListPolls(ctx context.Context, q domain.PollQuery) (domain.PollPage, error) {
	return t.s.listPolls(ctx, q)
}

func (t *tx) Ping(context.Context) error { return nil }

func (t *tx) InsertOptions(_ context.Context, options []domain.Option, at time.Time) error {
	if err := t.s.fault("InsertOptions"); err != nil {
		return err
	}
	for _, o := range options {
		if _, exists := t.option(o.ID); exists {
			return fmt.Errorf("insert option %s: duplicate id", o.ID)
		}
		o.CreatedAt = at
		t.options[o.ID] = o
	}
	return nil
}

func (t *tx) GetOptions(_ context.Context, optionIDs []string) (map[string]domain.Option, error) {
	if err := t.s.fault("GetOptions"); err != nil {
		return nil, err
	}
	out := make(map[string]domain.Option, len(optionIDs))
	for _, id := range optionIDs {
		if o, ok := t.option(id); ok {
			out[id] = o
		}
	}
	return out, nil
}

func (t *tx) IncrementVotes(_ context.Context, optionID string) (bool, error) {
	if err := t.s.fault("IncrementVotes"); err != nil {
		return false, err
	}
	o, ok := t.option(optionID)
	if !ok {
		return false, nil
	}
	o.VotesCount++
	t.options[optionID] = o
	return true, nil
}

func (t *tx) ResetVotes(_ context.Context, optionIDs []string) error {
	if err := t.s.fault("ResetVotes"); err != nil {
		return err
	}
	for _, id := range optionIDs {
		if o, ok := t.option(id); ok {
			o.VotesCount = 0
			t.options[id] = o
		}
	}
	return nil
}

func (t *tx) DeleteOptions(_ context.Context, optionIDs []string) error {
	if err := t.s.fault("DeleteOptions"); err != nil {
		return err
	}
	for _, id := range optionIDs {
		delete(t.options, id)
		t.delOptions[id] = struct{}{}
	}
	return nil
}

func (t *tx) DeleteOrphanOptions(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error) {
	return t.s.deleteOrphans(ctx, cutoff, dryRun)
}

// autoCommit runs every write in its own transaction and serves reads from committed state.
type autoCommit struct{ s *Store }

func (a autoCommit) run(ctx context.Context, fn func(t *tx) error) error {
	return a.s.WithinTx(ctx, func(ctx context.Context, stores domain.Stores) error {
		return fn(stores.(*tx))
	})
}

func (a autoCommit) InsertPoll(ctx context.Context, poll *domain.Poll) error {
	return a.run(ctx, func(t *tx) error { return t.InsertPoll(ctx, poll) })
}

func (a autoCommit) GetPoll(_ context.Context, pollID string) (*domain.Poll, error) {
	if err := a.s.fault("GetPoll"); err != nil {
		return nil, err
	}
	p, ok := a.s.committedPoll(pollID)
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	return p, nil
}

func (a autoCommit) LockPoll(ctx context.Context, pollID string) (*domain.Poll, error) {
	return a.GetPoll(ctx, pollID)
}

func (a autoCommit) AddVoter(ctx context.Context, pollID, voterID string, at time.Time) (added bool, err error) {
	err = a.run(ctx, func(t *tx) error {
		added, err = t.AddVoter(ctx, pollID, voterID, at)
		return err
	})
	return added, err
}

func (a autoCommit) SetOpen(ctx context.Context, pollID, ownerID string, open bool, at time.Time) (ok bool, err error) {
	err = a.run(ctx, func(t *tx) error {
		ok, err = t.SetOpen(ctx, pollID, ownerID, open, at)
		return err
	})
	return ok, err
}

func (a autoCommit) ResetPoll(ctx context.Context, pollID, ownerID string, at time.Time) (ok bool, err error) {
	err = a.run(ctx, func(t *tx) error {
		ok, err = t.ResetPoll(ctx, pollID, ownerID, at)
		return err
	})
	return ok, err
}

func (a autoCommit) DeletePoll(ctx context.Context, pollID, ownerID string) (ok bool, err error) {
	err = a.run(ctx, func(t *tx) error {
		ok, err = t.DeletePoll(ctx, pollID, ownerID)
		return err
	})
	return ok, err
}

func (a autoCommit) ListPolls(ctx context.Context, q domain.PollQuery) (domain.PollPage, error) {
	return a.s.listPolls(ctx, q)
}

func (a autoCommit) Ping(context.Context) error { return nil }

func (a autoCommit) InsertOptions(ctx context.Context, options []domain.Option, at time.Time) error {
	return a.run(ctx, func(t *tx) error { return t.InsertOptions(ctx, options, at) })
}

func (a autoCommit) GetOptions(_ context.Context, optionIDs []string) (map[string]domain.Option, error) {
	if err := a.s.fault("GetOptions"); err != nil {
		return nil, err
	}
	out := make(map[string]domain.Option, len(optionIDs))
	for _, id := range optionIDs {
		if o, ok := a.s.committedOption(id); ok {
			out[id] = o
		}
	}
	return out, nil
}

func (a autoCommit) IncrementVotes(ctx context.Context, optionID string) (ok bool, err error) {
	err = a.run(ctx, func(t *tx) error {
		ok, err = t.IncrementVotes(ctx, optionID)
		return err
	})
	return ok, err
}

func (a autoCommit) ResetVotes(ctx context.Context, optionIDs []string) error {
	return a.run(ctx, func(t *tx) error { return t.ResetVotes(ctx, optionIDs) })
}

func (a autoCommit) DeleteOptions(ctx context.Context, optionIDs []string) error {
	return a.run(ctx, func(t *tx) error { return t.DeleteOptions(ctx, optionIDs) })
}

func (a autoCommit) DeleteOrphanOptions(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error) {
	return a.s.deleteOrphans(ctx, cutoff, dryRun)
}

func (s *Store) deleteOrphans(_ context.Context, cutoff time.Time, dryRun bool) (int64, error) {
	if err := s.fault("DeleteOrphanOptions"); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	referenced := make(map[string]struct{})
	for _, p := range s.polls {
		for _, id := range p.OptionIDs {
			referenced[id] = struct{}{}
		}
	}

	var n int64
	for id, o := range s.options {
		if _, ok := referenced[id]; ok || !o.CreatedAt.Before(cutoff) {
			continue
		}
		n++
		if !dryRun {
			delete(s.options, id)
		}
	}
	return n, nil
}

func (s *Store) listPolls(_ context.Context, q domain.PollQuery) (domain.PollPage, error) {
	if err := s.fault("ListPolls"); err != nil {
		return domain.PollPage{}, err
	}

	s.mu.RLock()
	details := make([]domain.PollDetail, 0, len(s.polls))
	for _, p := range s.polls {
		if q.Open != nil && p.IsOpen != *q.Open {
			continue
		}
		if q.OwnerID != "" && p.OwnerID != q.OwnerID {
			continue
		}
		byID := make(map[string]domain.Option, len(p.OptionIDs))
		for _, id := range p.OptionIDs {
			if o, ok := s.options[id]; ok {
				byID[id] = o
			}
		}
		details = append(details, domain.NewPollDetail(p, byID))
	}
	s.mu.RUnlock()

	slices.SortFunc(details, comparePolls(q.SortBy, q.Ascending))

	page := domain.PollPage{Total: int64(len(details))}
	start := min(q.Offset(), len(details))
	end := min(start+q.PerPage, len(details))
	page.Polls = slices.Clone(details[start:end])
	return page, nil
}

func comparePolls(sortBy domain.PollSort, asc bool) func(a, b domain.PollDetail) int {
	return func(a, b domain.PollDetail) int {
		var c int
		switch sortBy {
		case domain.SortByVotes:
			c = cmp.Compare(a.TotalVotes, b.TotalVotes)
		case domain.SortByUpdatedAt:
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		case domain.SortByTitle:
			c = strings.Compare(a.Title, b.Title)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if !asc {
			c = -c
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		return c
	}
}

// Snapshot returns committed copies of every poll, keyed by id.
func (s *Store) Snapshot() map[string]*domain.Poll {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*domain.Poll, len(s.polls))
	for id, p := range s.polls {
		out[id] = p.Clone()
	}
	return out
}

// OptionCount reports how many option records are committed.
func (s *Store) OptionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.options)
}
