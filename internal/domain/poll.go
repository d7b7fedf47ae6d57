package domain

import (
	"slices"
	"time"
)

// MinOptions is the smallest number of options a poll may carry.
const MinOptions = 2

type Option struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	VotesCount int64     `json:"votes_count"`
	CreatedAt  time.Time `json:"-"`
}

// Poll is the persisted poll record. Voters is a set keyed by voter identifier.
type Poll struct {
	ID        string
	Title     string
	OwnerID   string
	OptionIDs []string
	IsOpen    bool
	Voters    map[string]struct{}
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Poll) HasOption(optionID string) bool {
	return slices.Contains(p.OptionIDs, optionID)
}

func (p *Poll) HasVoted(voterID string) bool {
	_, ok := p.Voters[voterID]
	return ok
}

func (p *Poll) TotalVoters() int {
	return len(p.Voters)
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (p *Poll) Clone() *Poll {
	c := *p
	c.OptionIDs = slices.Clone(p.OptionIDs)
	c.Voters = make(map[string]struct{}, len(p.Voters))
	for v := range p.Voters {
		c.Voters[v] = struct{}{}
	}
	return &c
}

// PollDetail is a poll with its options expanded in option_ids order.
type PollDetail struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	OwnerID    string    `json:"owner_id"`
	Options    []Option  `json:"options"`
	IsOpen     bool      `json:"is_open"`
	TotalVotes int64     `json:"total_votes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewPollDetail joins a poll with the options that could be resolved.
// Options missing from byID are skipped.
func NewPollDetail(p *Poll, byID map[string]Option) PollDetail {
	d := PollDetail{
		ID:         p.ID,
		Title:      p.Title,
		OwnerID:    p.OwnerID,
		Options:    make([]Option, 0, len(p.OptionIDs)),
		IsOpen:     p.IsOpen,
		TotalVotes: int64(p.TotalVoters()),
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	for _, id := range p.OptionIDs {
		if opt, ok := byID[id]; ok {
			d.Options = append(d.Options, opt)
		}
	}
	return d
}

// RejectReason explains why a vote was not accepted.
type RejectReason string

const (
	RejectClosed        RejectReason = "closed"
	RejectInvalidOption RejectReason = "invalid_option"
	RejectAlreadyVoted  RejectReason = "already_voted"
	RejectConflict      RejectReason = "conflict"
)

// VoteOutcome is the result of a vote attempt that reached the poll.
// Rejections are expected outcomes, not errors.
type VoteOutcome struct {
	Accepted bool         `json:"accepted"`
	Reason   RejectReason `json:"reason,omitempty"`
}

func Accepted() VoteOutcome { return VoteOutcome{Accepted: true} }

func Rejected(reason RejectReason) VoteOutcome {
	return VoteOutcome{Accepted: false, Reason: reason}
}
