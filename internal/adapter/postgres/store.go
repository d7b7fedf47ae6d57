package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/metrics"
	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
)

// dbtx is satisfied by both the pool and a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL implementation of domain.Store.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.StoreMetrics
	queries
}

var _ domain.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool, m *metrics.StoreMetrics) *Store {
	return &Store{
		pool:    pool,
		metrics: m,
		queries: queries{db: pool, ping: pool.Ping},
	}
}

// WithinTx runs fn in a read committed transaction. Row locks taken by LockPoll are held
// until fn returns.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Stores) error) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, queries{db: tx, ping: s.pool.Ping})
	})
	if err != nil {
		s.metrics.TxRollbacks.Inc()
	}
	return err
}

// queries binds both stores to one session.
type queries struct {
	db   dbtx
	ping func(context.Context) error
}

func (q queries) Polls() domain.PollStore     { return pollStore(q) }
func (q queries) Options() domain.OptionStore { return optionStore(q) }

type pollStore queries

func (r pollStore) Ping(ctx context.Context) error {
	return r.ping(ctx)
}

func (r pollStore) InsertPoll(ctx context.Context, p *domain.Poll) error {
	_, err := r.db.Exec(ctx, qInsertPoll, p.ID, p.Title, p.OwnerID, p.OptionIDs, p.IsOpen, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert poll %s: %w", p.ID, err)
	}
	return nil
}

func (r pollStore) GetPoll(ctx context.Context, pollID string) (*domain.Poll, error) {
	return r.readPoll(ctx, qGetPoll, pollID)
}

func (r pollStore) LockPoll(ctx context.Context, pollID string) (*domain.Poll, error) {
	return r.readPoll(ctx, qLockPoll, pollID)
}

func (r pollStore) readPoll(ctx context.Context, query, pollID string) (*domain.Poll, error) {
	var p domain.Poll
	err := r.db.QueryRow(ctx, query, pollID).Scan(&p.ID, &p.Title, &p.OwnerID, &p.OptionIDs, &p.IsOpen, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get poll %s: %w", pollID, err)
	}

	rows, err := r.db.Query(ctx, qGetVoters, pollID)
	if err != nil {
		return nil, fmt.Errorf("get voters %s: %w", pollID, err)
	}
	voters, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("get voters %s: %w", pollID, err)
	}

	p.Voters = make(map[string]struct{}, len(voters))
	for _, v := range voters {
		p.Voters[v] = struct{}{}
	}
	return &p, nil
}

func (r pollStore) AddVoter(ctx context.Context, pollID, voterID string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, qAddVoter, pollID, voterID, at)
	if err != nil {
		return false, fmt.Errorf("add voter to %s: %w", pollID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r pollStore) SetOpen(ctx context.Context, pollID, ownerID string, open bool, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, qSetOpen, pollID, ownerID, open, at)
	if err != nil {
		return false, fmt.Errorf("set open on %s: %w", pollID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r pollStore) ResetPoll(ctx context.Context, pollID, ownerID string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, qReopenPoll, pollID, ownerID, at)
	if err != nil {
		return false, fmt.Errorf("reopen %s: %w", pollID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if _, err := r.db.Exec(ctx, qClearVoters, pollID); err != nil {
		return false, fmt.Errorf("clear voters of %s: %w", pollID, err)
	}
	return true, nil
}

func (r pollStore) DeletePoll(ctx context.Context, pollID, ownerID string) (bool, error) {
	tag, err := r.db.Exec(ctx, qDeletePoll, pollID, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete poll %s: %w", pollID, err)
	}
	return tag.RowsAffected() == 1, nil
}

var listOrder = map[domain.PollSort]string{
	domain.SortByVotes:     "total_votes",
	domain.SortByCreatedAt: "created_at",
	domain.SortByUpdatedAt: "updated_at",
	domain.SortByTitle:     "title",
}

func (r pollStore) ListPolls(ctx context.Context, q domain.PollQuery) (domain.PollPage, error) {
	var total int64
	if err := r.db.QueryRow(ctx, qCountPolls, q.Open, q.OwnerID).Scan(&total); err != nil {
		return domain.PollPage{}, fmt.Errorf("count polls: %w", err)
	}

	column, ok := listOrder[q.SortBy]
	if !ok {
		column = listOrder[domain.SortByCreatedAt]
	}
	direction := "DESC"
	if q.Ascending {
		direction = "ASC"
	}
	query := fmt.Sprintf("%s\nORDER BY %s %s, p.id ASC\nLIMIT $3 OFFSET $4", qListPolls, column, direction)

	rows, err := r.db.Query(ctx, query, q.Open, q.OwnerID, q.PerPage, q.Offset())
	if err != nil {
		return domain.PollPage{}, fmt.Errorf("list polls: %w", err)
	}

	type listed struct {
		poll  domain.Poll
		votes int64
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (listed, error) {
		var l listed
		err := row.Scan(&l.poll.ID, &l.poll.Title, &l.poll.OwnerID, &l.poll.OptionIDs, &l.poll.IsOpen,
			&l.poll.CreatedAt, &l.poll.UpdatedAt, &l.votes)
		return l, err
	})
	if err != nil {
		return domain.PollPage{}, fmt.Errorf("list polls: %w", err)
	}

	var optionIDs []string
	for _, it := range items {
		optionIDs = append(optionIDs, it.poll.OptionIDs...)
	}
	byID, err := optionStore(r).GetOptions(ctx, optionIDs)
	if err != nil {
		return domain.PollPage{}, err
	}

	page := domain.PollPage{Polls: make([]domain.PollDetail, 0, len(items)), Total: total}
	for _, it := range items {
		d := domain.NewPollDetail(&it.poll, byID)
		d.TotalVotes = it.votes
		page.Polls = append(page.Polls, d)
	}
	return page, nil
}

type optionStore queries

func (r optionStore) InsertOptions(ctx context.Context, options []domain.Option, at time.Time) error {
	ids := make([]string, len(options))
	texts := make([]string, len(options))
	for i, o := range options {
		ids[i] = o.ID
		texts[i] = o.Text
	}
	if _, err := r.db.Exec(ctx, qInsertOptions, ids, texts, at); err != nil {
		return fmt.Errorf("insert %d options: %w", len(options), err)
	}
	return nil
}

func (r optionStore) GetOptions(ctx context.Context, optionIDs []string) (map[string]domain.Option, error) {
	out := make(map[string]domain.Option, len(optionIDs))
	if len(optionIDs) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx, qGetOptions, optionIDs)
	if err != nil {
		return nil, fmt.Errorf("get options: %w", err)
	}
	options, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Option, error) {
		var o domain.Option
		err := row.Scan(&o.ID, &o.Text, &o.VotesCount, &o.CreatedAt)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("get options: %w", err)
	}

	for _, o := range options {
		out[o.ID] = o
	}
	return out, nil
}

func (r optionStore) IncrementVotes(ctx context.Context, optionID string) (bool, error) {
	tag, err := r.db.Exec(ctx, qIncrementVotes, optionID)
	if err != nil {
		return false, fmt.Errorf("increment votes of %s: %w", optionID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r optionStore) ResetVotes(ctx context.Context, optionIDs []string) error {
	if _, err := r.db.Exec(ctx, qResetVotes, optionIDs); err != nil {
		return fmt.Errorf("reset votes: %w", err)
	}
	return nil
}

func (r optionStore) DeleteOptions(ctx context.Context, optionIDs []string) error {
	if len(optionIDs) == 0 {
		return nil
	}
	if _, err := r.db.Exec(ctx, qDeleteOptions, optionIDs); err != nil {
		return fmt.Errorf("delete options: %w", err)
	}
	return nil
}

func (r optionStore) DeleteOrphanOptions(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error) {
	if dryRun {
		var n int64
		if err := r.db.QueryRow(ctx, qCountOrphanOptions, cutoff).Scan(&n); err != nil {
			return 0, fmt.Errorf("count orphan options: %w", err)
		}
		return n, nil
	}

	tag, err := r.db.Exec(ctx, qDeleteOrphanOptions, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete orphan options: %w", err)
	}
	return tag.RowsAffected(), nil
}
