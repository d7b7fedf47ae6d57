package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewResultsView_NoVotes(t *testing.T) {
	view := NewResultsView("p1", "Lunch", []Option{
		{ID: "a", Text: "Pizza"},
		{ID: "b", Text: "Sushi"},
	})

	assert.Equal(t, int64(0), view.TotalVotes)
	for _, o := range view.Options {
		assert.Equal(t, 0.0, o.VotesPercentage)
	}
}

func TestNewResultsView_Percentages(t *testing.T) {
	view := NewResultsView("p1", "Lunch", []Option{
		{ID: "a", Text: "Pizza", VotesCount: 1},
		{ID: "b", Text: "Sushi", VotesCount: 2},
		{ID: "c", Text: "Tacos", VotesCount: 0},
	})

	assert.Equal(t, int64(3), view.TotalVotes)
	assert.InDelta(t, 33.333, view.Options[0].VotesPercentage, 0.001)
	assert.InDelta(t, 66.666, view.Options[1].VotesPercentage, 0.001)
	assert.Equal(t, 0.0, view.Options[2].VotesPercentage)

	var sum float64
	for _, o := range view.Options {
		sum += o.VotesPercentage
	}
	assert.InDelta(t, 100.0, sum, 1e-9)
}

func TestNewResultsView_KeepsOptionOrder(t *testing.T) {
	view := NewResultsView("p1", "Lunch", []Option{
		{ID: "b", Text: "Sushi", VotesCount: 0},
		{ID: "a", Text: "Pizza", VotesCount: 1},
	})

	assert.Equal(t, "Sushi", view.Options[0].Text)
	assert.Equal(t, "Pizza", view.Options[1].Text)
	assert.Equal(t, 100.0, view.Options[1].VotesPercentage)
}

func TestPollClone_IsDeep(t *testing.T) {
	p := &Poll{ID: "p1", OptionIDs: []string{"a", "b"}, Voters: map[string]struct{}{"bob": {}}}
	c := p.Clone()

	c.OptionIDs[0] = "z"
	c.Voters["carol"] = struct{}{}

	assert.Equal(t, "a", p.OptionIDs[0])
	assert.False(t, p.HasVoted("carol"))
	assert.True(t, c.HasVoted("bob"))
}

func TestParsePollSort(t *testing.T) {
	assert.Equal(t, SortByVotes, ParsePollSort("votes"))
	assert.Equal(t, SortByTitle, ParsePollSort("title"))
	assert.Equal(t, SortByCreatedAt, ParsePollSort("bogus"))
	assert.Equal(t, SortByCreatedAt, ParsePollSort(""))
}
