package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/metrics"
	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
)

// Engine runs the poll lifecycle. Every mutation is one store transaction and,
// once committed, is reported to the PollEvents exactly once.
type Engine struct {
	store   domain.Store
	events  domain.PollEvents
	clock   clockwork.Clock
	newID   IDFunc
	metrics *metrics.PollMetrics
}

func NewEngine(store domain.Store, events domain.PollEvents, clock clockwork.Clock, newID IDFunc, m *metrics.PollMetrics) *Engine {
	if newID == nil {
		newID = NanoID
	}
	return &Engine{
		store:   store,
		events:  events,
		clock:   clock,
		newID:   newID,
		metrics: m,
	}
}

// CreatePoll stores the options and the poll that references them in one transaction.
func (e *Engine) CreatePoll(ctx context.Context, title, ownerID string, optionTexts []string) (string, error) {
	title = strings.TrimSpace(title)
	switch {
	case title == "":
		return "", fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	case ownerID == "":
		return "", fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	case len(optionTexts) < domain.MinOptions:
		return "", fmt.Errorf("%w: a poll needs at least %d options", domain.ErrInvalidInput, domain.MinOptions)
	}

	options := make([]domain.Option, 0, len(optionTexts))
	optionIDs := make([]string, 0, len(optionTexts))
	for i, text := range optionTexts {
		text = strings.TrimSpace(text)
		if text == "" {
			return "", fmt.Errorf("%w: option %d is empty", domain.ErrInvalidInput, i+1)
		}
		id, err := e.newID()
		if err != nil {
			return "", err
		}
		options = append(options, domain.Option{ID: id, Text: text})
		optionIDs = append(optionIDs, id)
	}

	pollID, err := e.newID()
	if err != nil {
		return "", err
	}

	now := e.clock.Now()
	poll := &domain.Poll{
		ID:        pollID,
		Title:     title,
		OwnerID:   ownerID,
		OptionIDs: optionIDs,
		IsOpen:    true,
		Voters:    make(map[string]struct{}),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = e.store.WithinTx(ctx, func(ctx context.Context, tx domain.Stores) error {
		if err := tx.Options().InsertOptions(ctx, options, now); err != nil {
			return fmt.Errorf("insert options: %w", err)
		}
		if err := tx.Polls().InsertPoll(ctx, poll); err != nil {
			return fmt.Errorf("insert poll: %w", err)
		}
		return nil
	})
	if err != nil {
		e.observe("create", err)
		return "", storeError("create poll", err)
	}

	e.observe("create", nil)
	slog.InfoContext(ctx, "Poll created", "poll_id", pollID, "owner", ownerID, "options", len(options))
	e.notifyChanged(ctx, pollID)
	return pollID, nil
}

// GetPoll returns the poll with its options expanded and whether requesterID has voted.
// An empty requester counts as having voted so previews never offer a ballot.
func (e *Engine) GetPoll(ctx context.Context, pollID, requesterID string) (domain.PollDetail, bool, error) {
	poll, err := e.store.Polls().GetPoll(ctx, pollID)
	if err != nil {
		return domain.PollDetail{}, false, storeError("get poll", err)
	}
	byID, err := e.store.Options().GetOptions(ctx, poll.OptionIDs)
	if err != nil {
		return domain.PollDetail{}, false, storeError("get options", err)
	}
	for _, id := range poll.OptionIDs {
		if _, ok := byID[id]; !ok {
			slog.WarnContext(ctx, "Poll references a missing option", "poll_id", pollID, "option_id", id)
		}
	}

	hasVoted := requesterID == "" || poll.HasVoted(requesterID)
	return domain.NewPollDetail(poll, byID), hasVoted, nil
}

// CastVote records one vote. Expected refusals come back as a rejected outcome with a nil error.
func (e *Engine) CastVote(ctx context.Context, pollID, voterID, optionID string) (domain.VoteOutcome, error) {
	if voterID == "" {
		return domain.VoteOutcome{}, fmt.Errorf("%w: voter is required", domain.ErrInvalidInput)
	}

	start := e.clock.Now()
	var outcome domain.VoteOutcome
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx domain.Stores) error {
		poll, err := tx.Polls().LockPoll(ctx, pollID)
		if err != nil {
			return err
		}

		switch {
		case !poll.IsOpen:
			outcome = domain.Rejected(domain.RejectClosed)
			return nil
		case !poll.HasOption(optionID):
			outcome = domain.Rejected(domain.RejectInvalidOption)
			return nil
		case poll.HasVoted(voterID):
			outcome = domain.Rejected(domain.RejectAlreadyVoted)
			return nil
		}

		added, err := tx.Polls().AddVoter(ctx, pollID, voterID, e.clock.Now())
		if err != nil {
			return fmt.Errorf("add voter: %w", err)
		}
		if !added {
			outcome = domain.Rejected(domain.RejectConflict)
			return nil
		}

		found, err := tx.Options().IncrementVotes(ctx, optionID)
		if err != nil {
			return fmt.Errorf("increment votes: %w", err)
		}
		if !found {
			return fmt.Errorf("increment votes: option %s is missing", optionID)
		}

		outcome = domain.Accepted()
		return nil
	})
	e.metrics.VoteDuration.Observe(e.clock.Since(start).Seconds())
	if err != nil {
		e.observe("vote", err)
		return domain.VoteOutcome{}, storeError("cast vote", err)
	}

	if !outcome.Accepted {
		e.metrics.VoteOutcomes.WithLabelValues(string(outcome.Reason)).Inc()
		slog.DebugContext(ctx, "Vote rejected", "poll_id", pollID, "reason", outcome.Reason)
		return outcome, nil
	}

	e.metrics.VoteOutcomes.WithLabelValues("accepted").Inc()
	e.observe("vote", nil)
	e.notifyChanged(ctx, pollID)
	return outcome, nil
}

// IsOwner reports whether requesterID owns the poll. Any lookup failure reads as false.
func (e *Engine) IsOwner(ctx context.Context, pollID, requesterID string) bool {
	if requesterID == "" {
		return false
	}
	poll, err := e.store.Polls().GetPoll(ctx, pollID)
	if err != nil {
		if !errors.Is(err, domain.ErrPollNotFound) {
			slog.WarnContext(ctx, "Owner lookup failed", "poll_id", pollID, "error", err)
		}
		return false
	}
	return poll.OwnerID == requesterID
}

// ClosePoll stops a poll from accepting votes.
func (e *Engine) ClosePoll(ctx context.Context, pollID, requesterID string) error {
	if !e.IsOwner(ctx, pollID, requesterID) {
		e.observe("close", domain.ErrNotOwner)
		return domain.ErrNotOwner
	}

	err := e.store.WithinTx(ctx, func(ctx context.Context, tx domain.Stores) error {
		ok, err := tx.Polls().SetOpen(ctx, pollID, requesterID, false, e.clock.Now())
		if err != nil {
			return fmt.Errorf("set open: %w", err)
		}
		if !ok {
			return domain.ErrPollNotFound
		}
		return nil
	})
	e.observe("close", err)
	if err != nil {
		return storeError("close poll", err)
	}

	slog.InfoContext(ctx, "Poll closed", "poll_id", pollID)
	e.notifyChanged(ctx, pollID)
	return nil
}

// ResetPoll zeroes every count, forgets every voter and reopens the poll.
// Option ids are kept so the poll never passes through an empty state.
func (e *Engine) ResetPoll(ctx context.Context, pollID, requesterID string) error {
	if !e.IsOwner(ctx, pollID, requesterID) {
		e.observe("reset", domain.ErrNotOwner)
		return domain.ErrNotOwner
	}

	err := e.store.WithinTx(ctx, func(ctx context.Context, tx domain.Stores) error {
		// option ids never change after creation, so a plain read is enough here
		poll, err := tx.Polls().GetPoll(ctx, pollID)
		if err != nil {
			return err
		}
		ok, err := tx.Polls().ResetPoll(ctx, pollID, requesterID, e.clock.Now())
		if err != nil {
			return fmt.Errorf("reset poll: %w", err)
		}
		if !ok {
			return domain.ErrPollNotFound
		}
		if err := tx.Options().ResetVotes(ctx, poll.OptionIDs); err != nil {
			return fmt.Errorf("reset votes: %w", err)
		}
		return nil
	})
	e.observe("reset", err)
	if err != nil {
		return storeError("reset poll", err)
	}

	slog.InfoContext(ctx, "Poll reset", "poll_id", pollID)
	e.notifyChanged(ctx, pollID)
	return nil
}

// DeletePoll removes the poll. Its options are removed afterwards on a best-effort basis;
// leftovers are reclaimed by the OptionJanitor.
func (e *Engine) DeletePoll(ctx context.Context, pollID, requesterID string) error {
	if !e.IsOwner(ctx, pollID, requesterID) {
		e.observe("delete", domain.ErrNotOwner)
		return domain.ErrNotOwner
	}

	var optionIDs []string
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx domain.Stores) error {
		poll, err := tx.Polls().GetPoll(ctx, pollID)
		if err != nil {
			return err
		}
		ok, err := tx.Polls().DeletePoll(ctx, pollID, requesterID)
		if err != nil {
			return fmt.Errorf("delete poll: %w", err)
		}
		if !ok {
			return domain.ErrPollNotFound
		}
		optionIDs = poll.OptionIDs
		return nil
	})
	e.observe("delete", err)
	if err != nil {
		return storeError("delete poll", err)
	}

	if err := e.store.Options().DeleteOptions(ctx, optionIDs); err != nil {
		slog.WarnContext(ctx, "Failed to delete options of deleted poll", "poll_id", pollID, "options", len(optionIDs), "error", err)
	}

	slog.InfoContext(ctx, "Poll deleted", "poll_id", pollID)
	e.notifyDeleted(ctx, pollID)
	return nil
}

// The request context may end before the event is handled.
func (e *Engine) notifyChanged(ctx context.Context, pollID string) {
	e.events.PollChanged(context.WithoutCancel(ctx), pollID)
}

func (e *Engine) notifyDeleted(ctx context.Context, pollID string) {
	e.events.PollDeleted(context.WithoutCancel(ctx), pollID)
}

func (e *Engine) observe(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotOwner):
		result = "not_owner"
	case errors.Is(err, domain.ErrPollNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	e.metrics.Operations.WithLabelValues(op, result).Inc()
}

// storeError keeps domain errors as they are and marks everything else as a store failure.
func storeError(op string, err error) error {
	if errors.Is(err, domain.ErrPollNotFound) || errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrNotOwner) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
