package service

import (
	"context"
	"fmt"
	"strings"

	"homebids/internal/models"
)

//// Missions

// CreateMission stores a homeowner's mission intake. The owner is always the
// calling actor and a new mission always starts open.
func (s *Service) CreateMission(ctx context.Context, actor models.Actor, mission models.Mission) (models.Mission, error) {
	if !actor.IsHomeowner() {
		return models.Mission{}, fmt.Errorf("service.Service.CreateMission: %w", models.ErrForbidden)
	}

	if len(mission.OwnerTier) == 0 {
		mission.OwnerTier = models.TierUnverified
	}

	err := validateMission(mission)
	if err != nil {
		return models.Mission{}, fmt.Errorf("service.Service.CreateMission: %w", err)
	}

	mission.OwnerId = actor.Id
	mission.Status = models.MissionOpen
	mission, err = s.repo.AddMission(ctx, mission)
	if err != nil {
		return models.Mission{}, fmt.Errorf("service.Service.CreateMission: %w", err)
	}

	s.log.InfoContext(ctx, "mission created", "mission", mission.Id, "priority", mission.Priority)
	return mission, nil
}

func validateMission(m models.Mission) error {
	if len(strings.TrimSpace(m.Title)) == 0 || len(strings.TrimSpace(m.Service)) == 0 {
		return fmt.Errorf("%w: title and service are required", models.ErrInvalidInput)
	}
	if !models.ValidPriority(m.Priority) {
		return fmt.Errorf("%w: priority %q", models.ErrInvalidInput, m.Priority)
	}
	if !models.ValidHiringLikelihood(m.HiringLikelihood) {
		return fmt.Errorf("%w: hiring likelihood %q", models.ErrInvalidInput, m.HiringLikelihood)
	}
	if !models.ValidVerificationTier(m.OwnerTier) {
		return fmt.Errorf("%w: owner tier %q", models.ErrInvalidInput, m.OwnerTier)
	}
	if len(m.Images) > models.MaxMissionImages {
		return fmt.Errorf("%w: at most %d images", models.ErrInvalidInput, models.MaxMissionImages)
	}
	return nil
}

// GetMission returns a mission to its owner or to any contractor.
func (s *Service) GetMission(ctx context.Context, actor models.Actor, missionId string) (models.Mission, error) {
	mission, err := s.repo.GetMission(ctx, missionId)
	if err != nil {
		return models.Mission{}, fmt.Errorf("service.Service.GetMission: %w", err)
	}

	if actor.IsHomeowner() && mission.OwnerId != actor.Id {
		return models.Mission{}, fmt.Errorf("service.Service.GetMission: %w", models.ErrForbidden)
	}
	return mission, nil
}

// ListMissions returns the homeowner's own missions, or the open missions a
// contractor can bid on.
func (s *Service) ListMissions(ctx context.Context, actor models.Actor, limit, offset int, status models.MissionStatus) ([]models.Mission, error) {
	limit, offset, err := pageParams(limit, offset)
	if err != nil {
		return nil, fmt.Errorf("service.Service.ListMissions: %w", err)
	}
	if len(status) > 0 && !models.ValidMissionStatus(status) {
		return nil, fmt.Errorf("service.Service.ListMissions: %w: status %q", models.ErrInvalidInput, status)
	}

	owner := ""
	if actor.IsHomeowner() {
		owner = actor.Id
	} else {
		status = models.MissionOpen
	}

	missions, err := s.repo.GetMissions(ctx, limit, offset, owner, status)
	if err != nil {
		return nil, fmt.Errorf("service.Service.ListMissions: %w", err)
	}
	return missions, nil
}

// SetMissionStatus moves the owner's mission along its lifecycle. Under the
// on_close refund policy, closing the mission refunds every bid on it that
// was not accepted.
func (s *Service) SetMissionStatus(ctx context.Context, actor models.Actor, missionId string, status models.MissionStatus) (models.Mission, []models.CreditEntry, error) {
	if !models.ValidMissionStatus(status) {
		return models.Mission{}, nil, fmt.Errorf("service.Service.SetMissionStatus: %w: status %q", models.ErrInvalidInput, status)
	}

	_, err := s.missionOwnedBy(ctx, actor, missionId)
	if err != nil {
		return models.Mission{}, nil, fmt.Errorf("service.Service.SetMissionStatus: %w", err)
	}

	refund := models.RefundPolicy(s.policy.RefundPolicy) == models.RefundOnClose
	mission, refunds, err := s.repo.UpdateMissionStatus(ctx, missionId, status, refund)
	if err != nil {
		return models.Mission{}, nil, fmt.Errorf("service.Service.SetMissionStatus: %w", err)
	}

	for _, entry := range refunds {
		creditsRefunded.Add(entry.Amount.Float())
	}
	s.log.InfoContext(ctx, "mission status changed", "mission", mission.Id, "status", mission.Status, "refunds", len(refunds))

	return mission, refunds, nil
}
