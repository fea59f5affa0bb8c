package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"homebids/internal/models"

	"github.com/google/uuid"
)

//// Reviews

// CreateReview lets the mission owner rate a contractor whose bid on the
// mission was accepted. Each pair can be reviewed once.
func (s *Service) CreateReview(ctx context.Context, actor models.Actor, missionId, contractorId string, rating int, comment string) (models.Review, error) {
	if !models.ValidRating(rating) {
		return models.Review{}, fmt.Errorf("service.Service.CreateReview: %w: rating must be between %d and %d", models.ErrInvalidInput, models.MinRating, models.MaxRating)
	}

	_, err := s.missionOwnedBy(ctx, actor, missionId)
	if err != nil {
		return models.Review{}, fmt.Errorf("service.Service.CreateReview: %w", err)
	}

	review, err := s.repo.AddReview(ctx, models.Review{
		MissionId:    missionId,
		ContractorId: contractorId,
		AuthorId:     actor.Id,
		Rating:       rating,
		Comment:      strings.TrimSpace(comment),
	})
	if err != nil {
		return models.Review{}, fmt.Errorf("service.Service.CreateReview: %w", err)
	}

	reviewsCreated.Inc()
	return review, nil
}

// DeleteReview removes a review on behalf of its author. The bid and the
// credit ledger are not touched.
func (s *Service) DeleteReview(ctx context.Context, actor models.Actor, reviewId string) error {
	review, err := s.repo.GetReview(ctx, reviewId)
	if err != nil {
		return fmt.Errorf("service.Service.DeleteReview: %w", err)
	}
	if review.AuthorId != actor.Id {
		return fmt.Errorf("service.Service.DeleteReview: %w", models.ErrForbidden)
	}

	err = s.repo.DeleteReview(ctx, reviewId)
	if err != nil {
		return fmt.Errorf("service.Service.DeleteReview: %w", err)
	}
	return nil
}

func (s *Service) GetContractorRatings(ctx context.Context, contractorId string) (models.ContractorRatings, error) {
	stats, err := s.repo.GetRatingStats(ctx, contractorId)
	if err != nil {
		return models.ContractorRatings{}, fmt.Errorf("service.Service.GetContractorRatings: %w", err)
	}
	return stats.Combine(), nil
}

// ListContractorReviews returns platform and external reviews together,
// newest first.
func (s *Service) ListContractorReviews(ctx context.Context, contractorId string, limit, offset int) ([]models.Review, error) {
	limit, offset, err := pageParams(limit, offset)
	if err != nil {
		return nil, fmt.Errorf("service.Service.ListContractorReviews: %w", err)
	}

	// both pools are read up to offset+limit and paged after merging
	fetch := 0
	if limit > 0 {
		fetch = offset + limit
	}

	platform, err := s.repo.GetReviews(ctx, fetch, 0, contractorId, "")
	if err != nil {
		return nil, fmt.Errorf("service.Service.ListContractorReviews: %w", err)
	}
	external, err := s.repo.GetExternalReviews(ctx, fetch, 0, contractorId)
	if err != nil {
		return nil, fmt.Errorf("service.Service.ListContractorReviews: %w", err)
	}

	reviews := append(platform, external...)
	slices.SortStableFunc(reviews, func(a, b models.Review) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if offset >= len(reviews) {
		return []models.Review{}, nil
	}
	reviews = reviews[offset:]
	if limit > 0 && limit < len(reviews) {
		reviews = reviews[:limit]
	}
	return reviews, nil
}

// RankContractors orders rated contractors by combined average, then by the
// number of reviews behind it.
func (s *Service) RankContractors(ctx context.Context, limit int) ([]models.ContractorRatings, error) {
	if limit < 0 {
		return nil, fmt.Errorf("service.Service.RankContractors: %w: negative limit", models.ErrInvalidInput)
	}

	stats, err := s.repo.AllRatingStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.Service.RankContractors: %w", err)
	}

	ranking := make([]models.ContractorRatings, 0, len(stats))
	for _, st := range stats {
		r := st.Combine()
		if r.CombinedAverage != nil {
			ranking = append(ranking, r)
		}
	}

	slices.SortFunc(ranking, func(a, b models.ContractorRatings) int {
		if c := cmp.Compare(*b.CombinedAverage, *a.CombinedAverage); c != 0 {
			return c
		}
		if c := cmp.Compare(b.TotalCount(), a.TotalCount()); c != 0 {
			return c
		}
		return strings.Compare(a.ContractorId, b.ContractorId)
	})

	if limit > 0 && limit < len(ranking) {
		ranking = ranking[:limit]
	}
	return ranking, nil
}

// ImportExternalSnapshot stores one snapshot of the external review feed.
// Aggregates are taken as given; raw reviews are kept for display only.
func (s *Service) ImportExternalSnapshot(ctx context.Context, ratings []models.ExternalRating, reviews []models.Review) error {
	for _, r := range ratings {
		if err := uuid.Validate(r.ContractorId); err != nil {
			return fmt.Errorf("service.Service.ImportExternalSnapshot: %w: contractor id %q", models.ErrInvalidInput, r.ContractorId)
		}
		if r.Count < 0 || r.Average < 0 || r.Average > models.MaxRating || (r.Count > 0 && r.Average < models.MinRating) {
			return fmt.Errorf("service.Service.ImportExternalSnapshot: %w: rating %.2f/%d for %s", models.ErrInvalidInput, r.Average, r.Count, r.ContractorId)
		}
	}
	for _, r := range reviews {
		if len(r.Id) == 0 || !models.ValidRating(r.Rating) {
			return fmt.Errorf("service.Service.ImportExternalSnapshot: %w: review %q", models.ErrInvalidInput, r.Id)
		}
		if err := uuid.Validate(r.ContractorId); err != nil {
			return fmt.Errorf("service.Service.ImportExternalSnapshot: %w: contractor id %q", models.ErrInvalidInput, r.ContractorId)
		}
	}

	err := s.repo.SaveExternalSnapshot(ctx, ratings, reviews)
	if err != nil {
		return fmt.Errorf("service.Service.ImportExternalSnapshot: %w", err)
	}

	externalSnapshotContractors.Set(float64(len(ratings)))
	s.log.InfoContext(ctx, "external snapshot imported", "contractors", len(ratings), "reviews", len(reviews))
	return nil
}
