package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/metrics"
	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type pollDoc struct {
	ID        string    `bson:"_id"`
	Title     string    `bson:"title"`
	OwnerID   string    `bson:"owner_id"`
	OptionIDs []string  `bson:"option_ids"`
	IsOpen    bool      `bson:"is_open"`
	Voters    []string  `bson:"voters"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d pollDoc) toDomain() *domain.Poll {
	p := &domain.Poll{
		ID:        d.ID,
		Title:     d.Title,
		OwnerID:   d.OwnerID,
		OptionIDs: d.OptionIDs,
		IsOpen:    d.IsOpen,
		Voters:    make(map[string]struct{}, len(d.Voters)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, v := range d.Voters {
		p.Voters[v] = struct{}{}
	}
	return p
}

type optionDoc struct {
	ID         string    `bson:"_id"`
	Text       string    `bson:"text"`
	VotesCount int64     `bson:"votes_count"`
	CreatedAt  time.Time `bson:"created_at"`
}

// Store is the MongoDB implementation of domain.Store.
type Store struct {
	client  *mongo.Client
	metrics *metrics.StoreMetrics
	collections
}

var _ domain.Store = (*Store)(nil)

func NewStore(client *mongo.Client, database string, m *metrics.StoreMetrics) *Store {
	db := client.Database(database)
	return &Store{
		client:  client,
		metrics: m,
		collections: collections{
			client:  client,
			polls:   db.Collection(pollsCollection),
			options: db.Collection(optionsCollection),
		},
	}
}

// WithinTx runs fn in a multi-document transaction. On a transient write conflict the
// driver runs fn again from the start, so fn re-reads everything it checks.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Stores) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(context.WithoutCancel(ctx))

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc, s.collections)
	})
	if err != nil {
		s.metrics.TxRollbacks.Inc()
	}
	return err
}

// collections binds both stores to the same database. The session, if any, travels in ctx.
type collections struct {
	client  *mongo.Client
	polls   *mongo.Collection
	options *mongo.Collection
}

func (c collections) Polls() domain.PollStore     { return pollStore(c) }
func (c collections) Options() domain.OptionStore { return optionStore(c) }

type pollStore collections

func (r pollStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func (r pollStore) InsertPoll(ctx context.Context, p *domain.Poll) error {
	doc := pollDoc{
		ID:        p.ID,
		Title:     p.Title,
		OwnerID:   p.OwnerID,
		OptionIDs: p.OptionIDs,
		IsOpen:    p.IsOpen,
		Voters:    []string{},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if _, err := r.polls.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert poll %s: %w", p.ID, err)
	}
	return nil
}

func (r pollStore) GetPoll(ctx context.Context, pollID string) (*domain.Poll, error) {
	var doc pollDoc
	err := r.polls.FindOne(ctx, bson.M{"_id": pollID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get poll %s: %w", pollID, err)
	}
	return doc.toDomain(), nil
}

// LockPoll is a transactional read. Every mutation writes the poll document, so a close
// racing a vote surfaces as a write conflict and one of the two transactions is retried.
func (r pollStore) LockPoll(ctx context.Context, pollID string) (*domain.Poll, error) {
	return r.GetPoll(ctx, pollID)
}

func (r pollStore) AddVoter(ctx context.Context, pollID, voterID string, at time.Time) (bool, error) {
	filter := bson.M{"_id": pollID, "is_open": true, "voters": bson.M{"$ne": voterID}}
	update := bson.M{
		"$addToSet": bson.M{"voters": voterID},
		"$set":      bson.M{"updated_at": at},
	}
	res, err := r.polls.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("add voter to %s: %w", pollID, err)
	}
	return res.ModifiedCount == 1, nil
}

func (r pollStore) SetOpen(ctx context.Context, pollID, ownerID string, open bool, at time.Time) (bool, error) {
	res, err := r.polls.UpdateOne(ctx,
		bson.M{"_id": pollID, "owner_id": ownerID},
		bson.M{"$set": bson.M{"is_open": open, "updated_at": at}})
	if err != nil {
		return false, fmt.Errorf("set open on %s: %w", pollID, err)
	}
	return res.MatchedCount == 1, nil
}

func (r pollStore) ResetPoll(ctx context.Context, pollID, ownerID string, at time.Time) (bool, error) {
	res, err := r.polls.UpdateOne(ctx,
		bson.M{"_id": pollID, "owner_id": ownerID},
		bson.M{"$set": bson.M{"is_open": true, "voters": []string{}, "updated_at": at}})
	if err != nil {
		return false, fmt.Errorf("reset poll %s: %w", pollID, err)
	}
	return res.MatchedCount == 1, nil
}

func (r pollStore) DeletePoll(ctx context.Context, pollID, ownerID string) (bool, error) {
	res, err := r.polls.DeleteOne(ctx, bson.M{"_id": pollID, "owner_id": ownerID})
	if err != nil {
		return false, fmt.Errorf("delete poll %s: %w", pollID, err)
	}
	return res.DeletedCount == 1, nil
}

var sortFields = map[domain.PollSort]string{
	domain.SortByVotes:     "total_votes",
	domain.SortByCreatedAt: "created_at",
	domain.SortByUpdatedAt: "updated_at",
	domain.SortByTitle:     "title",
}

func (r pollStore) ListPolls(ctx context.Context, q domain.PollQuery) (domain.PollPage, error) {
	match := bson.M{}
	if q.Open != nil {
		match["is_open"] = *q.Open
	}
	if q.OwnerID != "" {
		match["owner_id"] = q.OwnerID
	}

	total, err := r.polls.CountDocuments(ctx, match)
	if err != nil {
		return domain.PollPage{}, fmt.Errorf("count polls: %w", err)
	}

	field, ok := sortFields[q.SortBy]
	if !ok {
		field = sortFields[domain.SortByCreatedAt]
	}
	direction := -1
	if q.Ascending {
		direction = 1
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$addFields", Value: bson.M{"total_votes": bson.M{"$size": "$voters"}}}},
		{{Key: "$sort", Value: bson.D{{Key: field, Value: direction}, {Key: "_id", Value: 1}}}},
		{{Key: "$skip", Value: int64(q.Offset())}},
		{{Key: "$limit", Value: int64(q.PerPage)}},
	}
	cur, err := r.polls.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.PollPage{}, fmt.Errorf("list polls: %w", err)
	}
	var docs []pollDoc
	if err := cur.All(ctx, &docs); err != nil {
		return domain.PollPage{}, fmt.Errorf("list polls: %w", err)
	}

	var optionIDs []string
	for _, d := range docs {
		optionIDs = append(optionIDs, d.OptionIDs...)
	}
	byID, err := optionStore(r).GetOptions(ctx, optionIDs)
	if err != nil {
		return domain.PollPage{}, err
	}

	page := domain.PollPage{Polls: make([]domain.PollDetail, 0, len(docs)), Total: total}
	for _, d := range docs {
		page.Polls = append(page.Polls, domain.NewPollDetail(d.toDomain(), byID))
	}
	return page, nil
}

type optionStore collections

func (r optionStore) InsertOptions(ctx context.Context, opts []domain.Option, at time.Time) error {
	docs := make([]any, len(opts))
	for i, o := range opts {
		docs[i] = optionDoc{ID: o.ID, Text: o.Text, CreatedAt: at}
	}
	if _, err := r.options.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert %d options: %w", len(opts), err)
	}
	return nil
}

func (r optionStore) GetOptions(ctx context.Context, optionIDs []string) (map[string]domain.Option, error) {
	out := make(map[string]domain.Option, len(optionIDs))
	if len(optionIDs) == 0 {
		return out, nil
	}

	cur, err := r.options.Find(ctx, bson.M{"_id": bson.M{"$in": optionIDs}})
	if err != nil {
		return nil, fmt.Errorf("get options: %w", err)
	}
	var docs []optionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("get options: %w", err)
	}

	for _, d := range docs {
		out[d.ID] = domain.Option{ID: d.ID, Text: d.Text, VotesCount: d.VotesCount, CreatedAt: d.CreatedAt}
	}
	return out, nil
}

func (r optionStore) IncrementVotes(ctx context.Context, optionID string) (bool, error) {
	res, err := r.options.UpdateOne(ctx, bson.M{"_id": optionID}, bson.M{"$inc": bson.M{"votes_count": 1}})
	if err != nil {
		return false, fmt.Errorf("increment votes of %s: %w", optionID, err)
	}
	return res.MatchedCount == 1, nil
}

func (r optionStore) ResetVotes(ctx context.Context, optionIDs []string) error {
	_, err := r.options.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": optionIDs}},
		bson.M{"$set": bson.M{"votes_count": 0}})
	if err != nil {
		return fmt.Errorf("reset votes: %w", err)
	}
	return nil
}

func (r optionStore) DeleteOptions(ctx context.Context, optionIDs []string) error {
	if len(optionIDs) == 0 {
		return nil
	}
	if _, err := r.options.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": optionIDs}}); err != nil {
		return fmt.Errorf("delete options: %w", err)
	}
	return nil
}

func (r optionStore) DeleteOrphanOptions(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"created_at": bson.M{"$lt": cutoff}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         pollsCollection,
			"localField":   "_id",
			"foreignField": "option_ids",
			"as":           "owners",
		}}},
		{{Key: "$match", Value: bson.M{"owners": bson.M{"$size": 0}}}},
		{{Key: "$project", Value: bson.M{"_id": 1}}},
	}
	cur, err := r.options.Aggregate(ctx, pipeline, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return 0, fmt.Errorf("find orphan options: %w", err)
	}
	var orphans []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &orphans); err != nil {
		return 0, fmt.Errorf("find orphan options: %w", err)
	}
	if dryRun || len(orphans) == 0 {
		return int64(len(orphans)), nil
	}

	ids := make([]string, len(orphans))
	for i, o := range orphans {
		ids[i] = o.ID
	}
	res, err := r.options.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}, "created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("delete orphan options: %w", err)
	}
	return res.DeletedCount, nil
}
