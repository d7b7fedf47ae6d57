package domain

import "context"

type OptionResult struct {
	Text            string  `json:"text"`
	VotesCount      int64   `json:"votes_count"`
	VotesPercentage float64 `json:"votes_percentage"`
}

// ResultsView is the read model of a poll's tally. It is derived, never persisted.
type ResultsView struct {
	PollID     string         `json:"id"`
	Title      string         `json:"title"`
	TotalVotes int64          `json:"total_votes"`
	Options    []OptionResult `json:"options"`
}

// NewResultsView computes totals and percentages for the given options in order.
// Percentages are 0 when nobody has voted.
func NewResultsView(pollID, title string, options []Option) ResultsView {
	var total int64
	for _, o := range options {
		total += o.VotesCount
	}

	view := ResultsView{
		PollID:     pollID,
		Title:      title,
		TotalVotes: total,
		Options:    make([]OptionResult, 0, len(options)),
	}
	for _, o := range options {
		pct := 0.0
		if total > 0 {
			pct = float64(o.VotesCount) / float64(total) * 100
		}
		view.Options = append(view.Options, OptionResult{
			Text:            o.Text,
			VotesCount:      o.VotesCount,
			VotesPercentage: pct,
		})
	}
	return view
}

// ResultsCache holds recently computed results views. Implementations treat failures as misses.
type ResultsCache interface {
	Get(ctx context.Context, pollID string) (ResultsView, bool)
	// Set stores view, replacing whatever is cached.
	Set(ctx context.Context, view ResultsView)
	// Fill stores view only if nothing is cached for the poll, so a slow read never
	// overwrites a fresher view published after a vote.
	Fill(ctx context.Context, view ResultsView)
	Invalidate(ctx context.Context, pollID string)
}
