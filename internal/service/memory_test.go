package service

import (
	"context"
	"sync"
	"time"

	"homebids/internal/models"
	"homebids/internal/repository"

	"github.com/google/uuid"
)

// memoryRepo is an in-memory Repository with the same rules the postgres
// repository enforces through transactions and constraints.
type memoryRepo struct {
	mu sync.Mutex

	missions map[string]models.Mission
	bids     map[string]models.Bid
	balances map[string]models.Credits
	entries  []models.CreditEntry
	messages []models.Message
	reviews  map[string]models.Review
	reviewed map[[2]string]bool
	external map[string]models.ExternalRating
	extRevs  map[string]models.Review

	// failAfterDebit makes SubmitBid fail once the debit is computed
	failAfterDebit error
	clock          time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		missions: make(map[string]models.Mission),
		bids:     make(map[string]models.Bid),
		balances: make(map[string]models.Credits),
		reviews:  make(map[string]models.Review),
		reviewed: make(map[[2]string]bool),
		external: make(map[string]models.ExternalRating),
		extRevs:  make(map[string]models.Review),
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memoryRepo) now() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memoryRepo) AddMission(ctx context.Context, mission models.Mission) (models.Mission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mission.Id = uuid.NewString()
	mission.Status = models.MissionOpen
	mission.CreatedAt = m.now()
	mission.UpdatedAt = mission.CreatedAt
	m.missions[mission.Id] = mission
	return mission, nil
}

func (m *memoryRepo) GetMission(ctx context.Context, id string) (models.Mission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mission, ok := m.missions[id]
	if !ok {
		return mission, models.ErrNoMission
	}
	return mission, nil
}

func (m *memoryRepo) GetMissions(ctx context.Context, limit, offset int, ownerId string, status models.MissionStatus) ([]models.Mission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.Mission
	for _, mission := range m.missions {
		if len(ownerId) > 0 && mission.OwnerId != ownerId {
			continue
		}
		if len(status) > 0 && mission.Status != status {
			continue
		}
		result = append(result, mission)
	}
	return page(result, limit, offset), nil
}

func (m *memoryRepo) UpdateMissionStatus(ctx context.Context, id string, status models.MissionStatus, refundOpenBids bool) (models.Mission, []models.CreditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mission, ok := m.missions[id]
	if !ok {
		return mission, nil, models.ErrNoMission
	}
	if !models.CanTransitionMission(mission.Status, status) {
		return mission, nil, &models.InvalidTransitionError{From: string(mission.Status), To: string(status)}
	}
	mission.Status = status
	m.missions[id] = mission

	var refunds []models.CreditEntry
	if refundOpenBids && status.Closed() {
		for _, bid := range m.bids {
			if bid.MissionId != id || bid.Status == models.BidAccepted {
				continue
			}
			if entry, created := m.refund(bid); created {
				refunds = append(refunds, entry)
			}
		}
	}
	return mission, refunds, nil
}

func (m *memoryRepo) SubmitBid(ctx context.Context, bid models.Bid) (models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mission, ok := m.missions[bid.MissionId]
	if !ok {
		return bid, models.ErrNoMission
	}
	if mission.Status != models.MissionOpen {
		return bid, models.ErrMissionClosed
	}
	for _, b := range m.bids {
		if b.MissionId == bid.MissionId && b.ContractorId == bid.ContractorId {
			return bid, models.ErrDuplicateBid
		}
	}

	bid.Cost = models.CreditCost(mission.Priority, mission.OwnerTier)
	balance := m.balances[bid.ContractorId]
	if balance < bid.Cost {
		return bid, models.ErrInsufficientCredits
	}
	if m.failAfterDebit != nil {
		return bid, m.failAfterDebit
	}

	m.balances[bid.ContractorId] = balance - bid.Cost
	bid.Id = uuid.NewString()
	bid.Status = models.BidPending
	bid.CreatedAt = m.now()
	m.bids[bid.Id] = bid
	m.addEntry(models.CreditEntry{ContractorId: bid.ContractorId, BidId: bid.Id, Kind: models.EntryDebit, Amount: -bid.Cost})

	if len(bid.Message) > 0 {
		m.messages = append(m.messages, models.Message{
			Id:           uuid.NewString(),
			MissionId:    bid.MissionId,
			ContractorId: bid.ContractorId,
			SenderId:     bid.ContractorId,
			SenderRole:   models.RoleContractor,
			Content:      bid.Message,
			CreatedAt:    m.now(),
		})
	}
	return bid, nil
}

func (m *memoryRepo) GetBid(ctx context.Context, id string) (models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bid, ok := m.bids[id]
	if !ok {
		return bid, models.ErrNoBid
	}
	return bid, nil
}

func (m *memoryRepo) GetBidByPair(ctx context.Context, missionId, contractorId string) (models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.bidByPair(missionId, contractorId)
}

func (m *memoryRepo) bidByPair(missionId, contractorId string) (models.Bid, error) {
	for _, bid := range m.bids {
		if bid.MissionId == missionId && bid.ContractorId == contractorId {
			return bid, nil
		}
	}
	return models.Bid{}, models.ErrNoBid
}

func (m *memoryRepo) GetBids(ctx context.Context, limit, offset int, missionId, contractorId string) ([]models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.Bid
	for _, bid := range m.bids {
		if len(missionId) > 0 && bid.MissionId != missionId {
			continue
		}
		if len(contractorId) > 0 && bid.ContractorId != contractorId {
			continue
		}
		result = append(result, bid)
	}
	return page(result, limit, offset), nil
}

func (m *memoryRepo) TransitionBid(ctx context.Context, id string, status models.BidStatus, rejectSiblings bool) (models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bid, ok := m.bids[id]
	if !ok {
		return bid, models.ErrNoBid
	}
	if !models.CanTransitionBid(bid.Status, status) {
		return bid, &models.InvalidTransitionError{From: string(bid.Status), To: string(status)}
	}

	if status == models.BidAccepted {
		mission := m.missions[bid.MissionId]
		if mission.Status.Closed() {
			return bid, models.ErrMissionClosed
		}
		if m.refunded(id) {
			return bid, &models.InvalidTransitionError{From: string(models.EntryRefund), To: string(status)}
		}
		if mission.Status == models.MissionOpen {
			mission.Status = models.MissionInProgress
			m.missions[mission.Id] = mission
		}
		if rejectSiblings {
			for sid, sibling := range m.bids {
				if sibling.MissionId == bid.MissionId && sid != id && !sibling.Status.Terminal() {
					sibling.Status = models.BidRejected
					m.bids[sid] = sibling
				}
			}
		}
	}

	bid.Status = status
	m.bids[id] = bid
	return bid, nil
}

func (m *memoryRepo) SwitchConsidering(ctx context.Context, id string, confirm bool) (models.Bid, *models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.bids[id]
	if !ok {
		return target, nil, models.ErrNoBid
	}
	if m.missions[target.MissionId].Status.Closed() {
		return target, nil, models.ErrMissionClosed
	}
	if target.Status == models.BidConsidering {
		return target, nil, nil
	}
	if !models.CanTransitionBid(target.Status, models.BidConsidering) {
		return target, nil, &models.InvalidTransitionError{From: string(target.Status), To: string(models.BidConsidering)}
	}

	var demoted *models.Bid
	for sid, other := range m.bids {
		if other.MissionId != target.MissionId || other.Status != models.BidConsidering {
			continue
		}
		if !confirm {
			return models.Bid{}, nil, &models.ConfirmationRequiredError{CurrentBidId: sid}
		}
		other.Status = models.BidRejected
		m.bids[sid] = other
		demoted = &other
	}

	target.Status = models.BidConsidering
	m.bids[id] = target
	return target, demoted, nil
}

func (m *memoryRepo) MarkBidViewed(ctx context.Context, id string) (models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bid, ok := m.bids[id]
	if !ok {
		return bid, models.ErrNoBid
	}
	bid.ViewedByContractor = true
	m.bids[id] = bid
	return bid, nil
}

func (m *memoryRepo) GetCreditAccount(ctx context.Context, contractorId string) (models.CreditAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return models.CreditAccount{ContractorId: contractorId, Balance: m.balances[contractorId]}, nil
}

func (m *memoryRepo) GrantCredits(ctx context.Context, contractorId string, amount models.Credits) (models.CreditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.balances[contractorId] += amount
	return m.addEntry(models.CreditEntry{ContractorId: contractorId, Kind: models.EntryGrant, Amount: amount}), nil
}

func (m *memoryRepo) RefundBid(ctx context.Context, bidId string) (models.CreditEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bid, ok := m.bids[bidId]
	if !ok {
		return models.CreditEntry{}, false, models.ErrNoBid
	}
	if !models.Refundable(bid.Status, m.missions[bid.MissionId].Status) {
		return models.CreditEntry{}, false, &models.InvalidTransitionError{From: string(bid.Status), To: string(models.EntryRefund)}
	}
	entry, created := m.refund(bid)
	return entry, created, nil
}

func (m *memoryRepo) refunded(bidId string) bool {
	for _, e := range m.entries {
		if e.BidId == bidId && e.Kind == models.EntryRefund {
			return true
		}
	}
	return false
}

func (m *memoryRepo) refund(bid models.Bid) (models.CreditEntry, bool) {
	for _, e := range m.entries {
		if e.BidId == bid.Id && e.Kind == models.EntryRefund {
			return e, false
		}
	}
	m.balances[bid.ContractorId] += bid.Cost
	return m.addEntry(models.CreditEntry{ContractorId: bid.ContractorId, BidId: bid.Id, Kind: models.EntryRefund, Amount: bid.Cost}), true
}

func (m *memoryRepo) addEntry(entry models.CreditEntry) models.CreditEntry {
	entry.Id = uuid.NewString()
	entry.BalanceAfter = m.balances[entry.ContractorId]
	entry.CreatedAt = m.now()
	m.entries = append(m.entries, entry)
	return entry
}

func (m *memoryRepo) GetCreditEntries(ctx context.Context, contractorId string, limit, offset int) ([]models.CreditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.CreditEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].ContractorId == contractorId {
			result = append(result, m.entries[i])
		}
	}
	return page(result, limit, offset), nil
}

func (m *memoryRepo) SendMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bid, err := m.bidByPair(msg.MissionId, msg.ContractorId)
	if err != nil {
		return msg, err
	}

	var last models.Role
	for _, existing := range m.messages {
		if existing.MissionId == msg.MissionId && existing.ContractorId == msg.ContractorId {
			last = existing.SenderRole
		}
	}
	if !models.CanSend(msg.SenderRole, last, bid.Status) {
		return msg, models.ErrMessageLimitReached
	}

	msg.Id = uuid.NewString()
	msg.CreatedAt = m.now()
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *memoryRepo) GetMessages(ctx context.Context, missionId, contractorId string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.Message
	for _, msg := range m.messages {
		if msg.MissionId == missionId && msg.ContractorId == contractorId {
			result = append(result, msg)
		}
	}
	return result, nil
}

func (m *memoryRepo) MarkMessagesRead(ctx context.Context, missionId, contractorId string, reader models.Role) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	now := m.now()
	for i := range m.messages {
		msg := &m.messages[i]
		if msg.MissionId == missionId && msg.ContractorId == contractorId && msg.SenderRole != reader && msg.ReadAt == nil {
			msg.ReadAt = &now
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) AddReview(ctx context.Context, review models.Review) (models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bid, err := m.bidByPair(review.MissionId, review.ContractorId)
	if err != nil || bid.Status != models.BidAccepted {
		return review, models.ErrReviewNotEligible
	}
	pair := [2]string{review.MissionId, review.ContractorId}
	if m.reviewed[pair] {
		return review, models.ErrReviewNotEligible
	}
	m.reviewed[pair] = true

	review.Id = uuid.NewString()
	review.Source = models.SourcePlatform
	review.CreatedAt = m.now()
	m.reviews[review.Id] = review
	return review, nil
}

func (m *memoryRepo) GetReview(ctx context.Context, id string) (models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	review, ok := m.reviews[id]
	if !ok {
		return review, models.ErrNoReview
	}
	return review, nil
}

func (m *memoryRepo) DeleteReview(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reviews[id]; !ok {
		return models.ErrNoReview
	}
	delete(m.reviews, id)
	return nil
}

func (m *memoryRepo) GetReviews(ctx context.Context, limit, offset int, contractorId, missionId string) ([]models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.Review
	for _, r := range m.reviews {
		if len(contractorId) > 0 && r.ContractorId != contractorId {
			continue
		}
		if len(missionId) > 0 && r.MissionId != missionId {
			continue
		}
		result = append(result, r)
	}
	return page(result, limit, offset), nil
}

func (m *memoryRepo) GetExternalReviews(ctx context.Context, limit, offset int, contractorId string) ([]models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.Review
	for _, r := range m.extRevs {
		if r.ContractorId == contractorId {
			result = append(result, r)
		}
	}
	return page(result, limit, offset), nil
}

func (m *memoryRepo) GetRatingStats(ctx context.Context, contractorId string) (repository.RatingStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.ratingStats(contractorId), nil
}

func (m *memoryRepo) ratingStats(contractorId string) repository.RatingStats {
	stats := repository.RatingStats{ContractorId: contractorId, External: m.external[contractorId]}
	for _, r := range m.reviews {
		if r.ContractorId == contractorId {
			stats.PlatformSum += r.Rating
			stats.PlatformCount++
		}
	}
	return stats
}

func (m *memoryRepo) AllRatingStats(ctx context.Context) ([]repository.RatingStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool)
	for _, r := range m.reviews {
		seen[r.ContractorId] = true
	}
	for id := range m.external {
		seen[id] = true
	}

	var result []repository.RatingStats
	for id := range seen {
		result = append(result, m.ratingStats(id))
	}
	return result, nil
}

func (m *memoryRepo) SaveExternalSnapshot(ctx context.Context, ratings []models.ExternalRating, reviews []models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range ratings {
		m.external[r.ContractorId] = r
	}
	for _, r := range reviews {
		r.Source = models.SourceExternal
		m.extRevs[r.Id] = r
	}
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
