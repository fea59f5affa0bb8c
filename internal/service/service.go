package service

import (
	"context"
	"fmt"
	"log/slog"

	"homebids/internal/config"
	"homebids/internal/models"
	"homebids/internal/repository"
)

// Repository is the persistence the service needs. *repository.Repository
// implements it against postgres.
type Repository interface {
	AddMission(ctx context.Context, m models.Mission) (models.Mission, error)
	GetMission(ctx context.Context, id string) (models.Mission, error)
	GetMissions(ctx context.Context, limit, offset int, ownerId string, status models.MissionStatus) ([]models.Mission, error)
	UpdateMissionStatus(ctx context.Context, id string, status models.MissionStatus, refundOpenBids bool) (models.Mission, []models.CreditEntry, error)

	SubmitBid(ctx context.Context, bid models.Bid) (models.Bid, error)
	GetBid(ctx context.Context, id string) (models.Bid, error)
	GetBidByPair(ctx context.Context, missionId, contractorId string) (models.Bid, error)
	GetBids(ctx context.Context, limit, offset int, missionId, contractorId string) ([]models.Bid, error)
	TransitionBid(ctx context.Context, id string, status models.BidStatus, rejectSiblings bool) (models.Bid, error)
	SwitchConsidering(ctx context.Context, id string, confirm bool) (models.Bid, *models.Bid, error)
	MarkBidViewed(ctx context.Context, id string) (models.Bid, error)

	GetCreditAccount(ctx context.Context, contractorId string) (models.CreditAccount, error)
	GrantCredits(ctx context.Context, contractorId string, amount models.Credits) (models.CreditEntry, error)
	RefundBid(ctx context.Context, bidId string) (models.CreditEntry, bool, error)
	GetCreditEntries(ctx context.Context, contractorId string, limit, offset int) ([]models.CreditEntry, error)

	SendMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessages(ctx context.Context, missionId, contractorId string) ([]models.Message, error)
	MarkMessagesRead(ctx context.Context, missionId, contractorId string, reader models.Role) (int64, error)

	AddReview(ctx context.Context, review models.Review) (models.Review, error)
	GetReview(ctx context.Context, id string) (models.Review, error)
	DeleteReview(ctx context.Context, id string) error
	GetReviews(ctx context.Context, limit, offset int, contractorId, missionId string) ([]models.Review, error)
	GetExternalReviews(ctx context.Context, limit, offset int, contractorId string) ([]models.Review, error)

	GetRatingStats(ctx context.Context, contractorId string) (repository.RatingStats, error)
	AllRatingStats(ctx context.Context) ([]repository.RatingStats, error)
	SaveExternalSnapshot(ctx context.Context, ratings []models.ExternalRating, reviews []models.Review) error
}

type Service struct {
	repo   Repository
	policy config.PolicyConfig
	log    *slog.Logger
}

func NewService(repo Repository, policy config.PolicyConfig) (*Service, error) {
	if len(policy.RefundPolicy) == 0 {
		policy.RefundPolicy = string(models.RefundNone)
	}
	if !models.ValidRefundPolicy(models.RefundPolicy(policy.RefundPolicy)) {
		return nil, fmt.Errorf("service.NewService: %w: refund policy %q", models.ErrInvalidInput, policy.RefundPolicy)
	}

	return &Service{
		repo:   repo,
		policy: policy,
		log:    slog.Default().With("component", "service"),
	}, nil
}

//// Service

// missionOwnedBy loads a mission and checks that actor is its homeowner.
func (s *Service) missionOwnedBy(ctx context.Context, actor models.Actor, missionId string) (models.Mission, error) {
	if !actor.IsHomeowner() {
		return models.Mission{}, models.ErrForbidden
	}

	mission, err := s.repo.GetMission(ctx, missionId)
	if err != nil {
		return mission, err
	}
	if mission.OwnerId != actor.Id {
		return models.Mission{}, models.ErrForbidden
	}
	return mission, nil
}

// bidForOwner loads a bid and checks that actor owns the bid's mission.
func (s *Service) bidForOwner(ctx context.Context, actor models.Actor, bidId string) (models.Bid, error) {
	if !actor.IsHomeowner() {
		return models.Bid{}, models.ErrForbidden
	}

	bid, err := s.repo.GetBid(ctx, bidId)
	if err != nil {
		return bid, err
	}

	_, err = s.missionOwnedBy(ctx, actor, bid.MissionId)
	if err != nil {
		return models.Bid{}, err
	}
	return bid, nil
}

func pageParams(limit, offset int) (int, int, error) {
	if limit < 0 || offset < 0 {
		return 0, 0, fmt.Errorf("%w: limit and offset must not be negative", models.ErrInvalidInput)
	}
	return limit, offset, nil
}
