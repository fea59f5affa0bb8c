package models

import "time"

type BidStatus string

const (
	BidPending     BidStatus = "pending"
	BidConsidering BidStatus = "considering"
	BidAccepted    BidStatus = "accepted"
	BidRejected    BidStatus = "rejected"
)

func ValidBidStatus(s BidStatus) bool {
	switch s {
	case BidPending, BidConsidering, BidAccepted, BidRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible from s.
func (s BidStatus) Terminal() bool {
	return s == BidAccepted || s == BidRejected
}

// bidTransitions lists every allowed status change. Anything absent is refused.
var bidTransitions = map[BidStatus][]BidStatus{
	BidPending:     {BidConsidering, BidAccepted, BidRejected},
	BidConsidering: {BidAccepted, BidRejected},
}

func CanTransitionBid(from, to BidStatus) bool {
	for _, s := range bidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Bid struct {
	Id                 string    `json:"id"`
	MissionId          string    `json:"missionId"`
	ContractorId       string    `json:"contractorId"`
	Quote              float64   `json:"quote"`
	Message            string    `json:"message"`
	Status             BidStatus `json:"status"`
	Cost               Credits   `json:"cost"`
	ViewedByContractor bool      `json:"viewedByContractor"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"-"`
}
