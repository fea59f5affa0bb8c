package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrForbidden            = errors.New("actor does not have permission for this operation")
	ErrNoMission            = errors.New("requested mission does not exist")
	ErrMissionClosed        = errors.New("mission is not open for bids")
	ErrNoBid                = errors.New("requested bid does not exist")
	ErrNoReview             = errors.New("requested review does not exist")
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrDuplicateBid         = errors.New("contractor already bid on this mission")
	ErrInvalidTransition    = errors.New("status change is not allowed from current state")
	ErrConfirmationRequired = errors.New("another bid is already under consideration, confirmation required")
	ErrMessageLimitReached  = errors.New("wait for a reply before sending another message")
	ErrReviewNotEligible    = errors.New("review is not allowed for this mission and contractor")
)

// ConfirmationRequiredError names the bid that would be demoted if the
// caller confirms the switch.
type ConfirmationRequiredError struct {
	CurrentBidId string
}

func (e *ConfirmationRequiredError) Error() string {
	return fmt.Sprintf("%s: bid %s", ErrConfirmationRequired, e.CurrentBidId)
}

func (e *ConfirmationRequiredError) Is(target error) bool {
	return target == ErrConfirmationRequired
}

// InvalidTransitionError reports a refused bid or mission status change.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
