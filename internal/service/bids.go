package service

import (
	"context"
	"fmt"
	"math"

	"homebids/internal/models"
)

//// Bids

// SubmitBid spends the contractor's credit and creates a pending bid on an
// open mission. message, when not empty, opens the conversation.
func (s *Service) SubmitBid(ctx context.Context, actor models.Actor, missionId string, quote float64, message string) (bid models.Bid, err error) {
	defer func() { bidsSubmitted.WithLabelValues(resultLabel(err)).Inc() }()

	if !actor.IsContractor() {
		return models.Bid{}, fmt.Errorf("service.Service.SubmitBid: %w", models.ErrForbidden)
	}
	if err = validateQuote(quote); err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.SubmitBid: %w", err)
	}

	bid, err = s.repo.SubmitBid(ctx, models.Bid{
		MissionId:    missionId,
		ContractorId: actor.Id,
		Quote:        quote,
		Message:      message,
	})
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.SubmitBid: %w", err)
	}

	creditsDebited.Add(bid.Cost.Float())
	s.log.InfoContext(ctx, "bid submitted", "bid", bid.Id, "mission", bid.MissionId, "cost", bid.Cost.String())
	return bid, nil
}

// validateQuote accepts positive amounts with at most two decimal places.
func validateQuote(quote float64) error {
	if math.IsNaN(quote) || math.IsInf(quote, 0) || quote <= 0 {
		return fmt.Errorf("%w: quote must be positive", models.ErrInvalidInput)
	}
	cents := quote * 100
	if math.Abs(cents-math.Round(cents)) > 1e-6 {
		return fmt.Errorf("%w: quote has more than two decimal places", models.ErrInvalidInput)
	}
	return nil
}

// MarkConsidering puts a bid under consideration. If another bid on the same
// mission is already considered, the switch needs confirm; the returned
// *models.Bid is the bid that was demoted, if any.
func (s *Service) MarkConsidering(ctx context.Context, actor models.Actor, bidId string, confirm bool) (models.Bid, *models.Bid, error) {
	_, err := s.bidForOwner(ctx, actor, bidId)
	if err != nil {
		return models.Bid{}, nil, fmt.Errorf("service.Service.MarkConsidering: %w", err)
	}

	bid, demoted, err := s.repo.SwitchConsidering(ctx, bidId, confirm)
	if err != nil {
		return models.Bid{}, nil, fmt.Errorf("service.Service.MarkConsidering: %w", err)
	}

	bidTransitions.WithLabelValues(string(models.BidConsidering)).Inc()
	if demoted != nil {
		bidTransitions.WithLabelValues(string(demoted.Status)).Inc()
		s.log.InfoContext(ctx, "considered bid switched", "bid", bid.Id, "demoted", demoted.Id)
	}
	return bid, demoted, nil
}

// AcceptBid accepts a pending or considered bid. Other bids on the mission
// are left alone unless the sibling rejection policy is on.
func (s *Service) AcceptBid(ctx context.Context, actor models.Actor, bidId string) (models.Bid, error) {
	return s.transition(ctx, actor, bidId, models.BidAccepted, s.policy.AcceptRejectsSiblings)
}

func (s *Service) RejectBid(ctx context.Context, actor models.Actor, bidId string) (models.Bid, error) {
	return s.transition(ctx, actor, bidId, models.BidRejected, false)
}

func (s *Service) transition(ctx context.Context, actor models.Actor, bidId string, status models.BidStatus, rejectSiblings bool) (models.Bid, error) {
	_, err := s.bidForOwner(ctx, actor, bidId)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.transition: %s: %w", status, err)
	}

	bid, err := s.repo.TransitionBid(ctx, bidId, status, rejectSiblings)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.transition: %s: %w", status, err)
	}

	bidTransitions.WithLabelValues(string(status)).Inc()
	s.log.InfoContext(ctx, "bid status changed", "bid", bid.Id, "status", bid.Status)
	return bid, nil
}

// MarkViewed records that the contractor has seen the homeowner's reaction
// to their bid.
func (s *Service) MarkViewed(ctx context.Context, actor models.Actor, bidId string) (models.Bid, error) {
	bid, err := s.repo.GetBid(ctx, bidId)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.MarkViewed: %w", err)
	}
	if !actor.IsContractor() || bid.ContractorId != actor.Id {
		return models.Bid{}, fmt.Errorf("service.Service.MarkViewed: %w", models.ErrForbidden)
	}

	bid, err = s.repo.MarkBidViewed(ctx, bidId)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.MarkViewed: %w", err)
	}
	return bid, nil
}

// GetBid returns a bid to the contractor who made it or to the mission owner.
func (s *Service) GetBid(ctx context.Context, actor models.Actor, bidId string) (models.Bid, error) {
	bid, err := s.repo.GetBid(ctx, bidId)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.GetBid: %w", err)
	}

	if actor.IsContractor() {
		if bid.ContractorId != actor.Id {
			return models.Bid{}, fmt.Errorf("service.Service.GetBid: %w", models.ErrForbidden)
		}
		return bid, nil
	}

	_, err = s.missionOwnedBy(ctx, actor, bid.MissionId)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.GetBid: %w", err)
	}
	return bid, nil
}

func (s *Service) ListMissionBids(ctx context.Context, actor models.Actor, missionId string, limit, offset int) ([]models.Bid, error) {
	limit, offset, err := pageParams(limit, offset)
	if err != nil {
		return nil, fmt.Errorf("service.Service.ListMissionBids: %w", err)
	}

	_, err = s.missionOwnedBy(ctx, actor, missionId)
	if err != nil {
		return nil, fmt.Errorf("service.Service.ListMissionBids: %w", err)
	}

	bids, err := s.repo.GetBids(ctx, limit, offset, missionId, "")
	if err != nil {
		return nil, fmt.Errorf("service.Service.ListMissionBids: %w", err)
	}
	return bids, nil
}

func (s *Service) ListContractorBids(ctx context.Context, actor models.Actor, limit, offset int) ([]models.Bid, error) {
	limit, offset, err := pageParams(limit, offset)
	if err != nil {
		return nil, fmt.Errorf("service.Service.ListContractorBids: %w", err)
	}
	if !actor.IsContractor() {
		return nil, fmt.Errorf("service.Service.ListContractorBids: %w", models.ErrForbidden)
	}

	bids, err := s.repo.GetBids(ctx, limit, offset, "", actor.Id)
	if err != nil {
		return nil, fmt.Errorf("service.Service.ListContractorBids: %w", err)
	}
	return bids, nil
}
