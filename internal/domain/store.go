package domain

import (
	"context"
	"time"
)

// OptionStore persists option records. Counts only change through IncrementVotes and ResetVotes.
type OptionStore interface {
	InsertOptions(ctx context.Context, options []Option, at time.Time) error
	GetOptions(ctx context.Context, optionIDs []string) (map[string]Option, error)
	// IncrementVotes adds one vote and reports whether the option existed.
	IncrementVotes(ctx context.Context, optionID string) (bool, error)
	ResetVotes(ctx context.Context, optionIDs []string) error
	DeleteOptions(ctx context.Context, optionIDs []string) error
	// DeleteOrphanOptions removes options created before cutoff that no poll references.
	// With dryRun set it only counts them.
	DeleteOrphanOptions(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error)
}

// PollStore persists poll records. Every mutation is a conditional write that reports
// whether a record matched, so callers can tell a lost race from success.
type PollStore interface {
	InsertPoll(ctx context.Context, poll *Poll) error
	GetPoll(ctx context.Context, pollID string) (*Poll, error)
	// LockPoll reads the poll and, inside a transaction, holds it against concurrent
	// close/reset/delete until commit. Concurrent voters are not serialized.
	LockPoll(ctx context.Context, pollID string) (*Poll, error)
	// AddVoter records voterID only if the poll is open and the voter is absent.
	AddVoter(ctx context.Context, pollID, voterID string, at time.Time) (bool, error)
	SetOpen(ctx context.Context, pollID, ownerID string, open bool, at time.Time) (bool, error)
	// ResetPoll clears every voter and reopens the poll.
	ResetPoll(ctx context.Context, pollID, ownerID string, at time.Time) (bool, error)
	DeletePoll(ctx context.Context, pollID, ownerID string) (bool, error)
	ListPolls(ctx context.Context, q PollQuery) (PollPage, error)
	Ping(ctx context.Context) error
}

// Stores is a pair of poll and option stores bound to the same session.
type Stores interface {
	Polls() PollStore
	Options() OptionStore
}

// Store is the persistent store. WithinTx runs fn as one atomic unit: if fn returns
// an error, nothing fn wrote is kept.
type Store interface {
	Stores
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error
}

// PollEvents receives notifications after successful poll mutations.
type PollEvents interface {
	PollChanged(ctx context.Context, pollID string)
	PollDeleted(ctx context.Context, pollID string)
}

type PollSort string

const (
	SortByVotes     PollSort = "votes"
	SortByCreatedAt PollSort = "created_at"
	SortByUpdatedAt PollSort = "updated_at"
	SortByTitle     PollSort = "title"
)

// ParsePollSort falls back to created_at for unknown values.
func ParsePollSort(s string) PollSort {
	switch PollSort(s) {
	case SortByVotes, SortByCreatedAt, SortByUpdatedAt, SortByTitle:
		return PollSort(s)
	default:
		return SortByCreatedAt
	}
}

type PollQuery struct {
	Open      *bool
	OwnerID   string
	SortBy    PollSort
	Ascending bool
	Page      int
	PerPage   int
}

func (q PollQuery) Offset() int {
	return (q.Page - 1) * q.PerPage
}

type PollPage struct {
	Polls []PollDetail
	Total int64
}
