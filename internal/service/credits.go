package service

import (
	"context"
	"fmt"

	"homebids/internal/models"

	"github.com/google/uuid"
)

//// Credits

// GrantCredits tops up a contractor's balance. It is an operator action and
// takes no actor.
func (s *Service) GrantCredits(ctx context.Context, contractorId string, amount models.Credits) (models.CreditEntry, error) {
	if err := uuid.Validate(contractorId); err != nil {
		return models.CreditEntry{}, fmt.Errorf("service.Service.GrantCredits: %w: contractor id: %w", models.ErrInvalidInput, err)
	}
	if amount <= 0 {
		return models.CreditEntry{}, fmt.Errorf("service.Service.GrantCredits: %w: amount must be positive", models.ErrInvalidInput)
	}

	entry, err := s.repo.GrantCredits(ctx, contractorId, amount)
	if err != nil {
		return models.CreditEntry{}, fmt.Errorf("service.Service.GrantCredits: %w", err)
	}

	s.log.InfoContext(ctx, "credits granted", "contractor", contractorId, "amount", amount.String(), "balance", entry.BalanceAfter.String())
	return entry, nil
}

func (s *Service) GetBalance(ctx context.Context, actor models.Actor) (models.CreditAccount, error) {
	if !actor.IsContractor() {
		return models.CreditAccount{}, fmt.Errorf("service.Service.GetBalance: %w", models.ErrForbidden)
	}

	account, err := s.repo.GetCreditAccount(ctx, actor.Id)
	if err != nil {
		return models.CreditAccount{}, fmt.Errorf("service.Service.GetBalance: %w", err)
	}
	return account, nil
}

func (s *Service) ListLedger(ctx context.Context, actor models.Actor, limit, offset int) ([]models.CreditEntry, error) {
	limit, offset, err := pageParams(limit, offset)
	if err != nil {
		return nil, fmt.Errorf("service.Service.ListLedger: %w", err)
	}
	if !actor.IsContractor() {
		return nil, fmt.Errorf("service.Service.ListLedger: %w", models.ErrForbidden)
	}

	entries, err := s.repo.GetCreditEntries(ctx, actor.Id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("service.Service.ListLedger: %w", err)
	}
	return entries, nil
}

// RefundBid returns a bid's credit cost to its contractor. Only the mission
// owner may release it, and only for a rejected bid or a bid left over on a
// closed mission. Repeated calls return the original refund entry.
func (s *Service) RefundBid(ctx context.Context, actor models.Actor, bidId string) (models.CreditEntry, error) {
	_, err := s.bidForOwner(ctx, actor, bidId)
	if err != nil {
		return models.CreditEntry{}, fmt.Errorf("service.Service.RefundBid: %w", err)
	}

	entry, created, err := s.repo.RefundBid(ctx, bidId)
	if err != nil {
		return models.CreditEntry{}, fmt.Errorf("service.Service.RefundBid: %w", err)
	}

	if created {
		creditsRefunded.Add(entry.Amount.Float())
		s.log.InfoContext(ctx, "bid refunded", "bid", bidId, "amount", entry.Amount.String())
	}
	return entry, nil
}
