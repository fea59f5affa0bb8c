package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Credits is an amount of bid credit in hundredths, so 1.00 credit is 100.
type Credits int64

const (
	OneCredit     Credits = 100
	MinBidCost    Credits = 25
	MaxBidCost    Credits = 100
	unverifiedFee Credits = 25
)

func (c Credits) Float() float64 {
	return float64(c) / float64(OneCredit)
}

func (c Credits) String() string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/OneCredit, c%OneCredit)
}

func (c Credits) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Credits) UnmarshalJSON(data []byte) error {
	parsed, err := ParseCredits(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCredits reads a decimal amount such as "0.25" or "3". Precision beyond
// hundredths is rejected rather than rounded.
func ParseCredits(s string) (Credits, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: malformed credit amount %q", ErrInvalidInput, s)
	}
	scaled := math.Round(f * float64(OneCredit))
	if math.Abs(scaled-f*float64(OneCredit)) > 1e-6 {
		return 0, fmt.Errorf("%w: credit amount %q has more than two decimal places", ErrInvalidInput, s)
	}
	return Credits(scaled), nil
}

var priorityCost = map[Priority]Credits{
	PriorityLow:    25,
	PriorityMedium: 50,
	PriorityHigh:   100,
}

// Refundable reports whether a bid's cost may be returned: the bid lost, or
// the mission closed without hiring it. An accepted bid is never refunded.
func Refundable(bid BidStatus, mission MissionStatus) bool {
	if bid == BidAccepted {
		return false
	}
	return bid == BidRejected || mission.Closed()
}

// CreditCost is the price of one bid on a mission with the given priority
// posted by a homeowner of the given verification tier. The result always
// lies in [MinBidCost, MaxBidCost].
func CreditCost(priority Priority, tier VerificationTier) Credits {
	cost, ok := priorityCost[priority]
	if !ok {
		cost = MaxBidCost
	}
	if tier != TierVerified {
		cost += unverifiedFee
	}
	return min(max(cost, MinBidCost), MaxBidCost)
}

type EntryKind string

const (
	EntryGrant  EntryKind = "grant"
	EntryDebit  EntryKind = "debit"
	EntryRefund EntryKind = "refund"
)

type CreditAccount struct {
	ContractorId string    `json:"contractorId"`
	Balance      Credits   `json:"balance"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type CreditEntry struct {
	Id           string    `json:"id"`
	ContractorId string    `json:"contractorId"`
	BidId        string    `json:"bidId,omitempty"`
	Kind         EntryKind `json:"kind"`
	Amount       Credits   `json:"amount"`
	BalanceAfter Credits   `json:"balanceAfter"`
	CreatedAt    time.Time `json:"createdAt"`
}

type RefundPolicy string

const (
	RefundNone    RefundPolicy = "none"
	RefundOnClose RefundPolicy = "on_close"
)

func ValidRefundPolicy(p RefundPolicy) bool {
	return p == RefundNone || p == RefundOnClose
}
