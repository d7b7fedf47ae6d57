package app

import (
	"context"
	"log/slog"

	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
)

// Projector derives results views from committed store state.
type Projector struct {
	store domain.Stores
}

func NewProjector(store domain.Stores) *Projector {
	return &Projector{store: store}
}

// ComputeResults tallies a poll. Options that have disappeared are logged and left out.
func (p *Projector) ComputeResults(ctx context.Context, pollID string) (domain.ResultsView, error) {
	poll, err := p.store.Polls().GetPoll(ctx, pollID)
	if err != nil {
		return domain.ResultsView{}, storeError("compute results", err)
	}

	byID, err := p.store.Options().GetOptions(ctx, poll.OptionIDs)
	if err != nil {
		return domain.ResultsView{}, storeError("compute results", err)
	}

	options := make([]domain.Option, 0, len(poll.OptionIDs))
	for _, id := range poll.OptionIDs {
		opt, ok := byID[id]
		if !ok {
			slog.WarnContext(ctx, "Option missing while computing results", "poll_id", pollID, "option_id", id)
			continue
		}
		options = append(options, opt)
	}

	return domain.NewResultsView(poll.ID, poll.Title, options), nil
}
