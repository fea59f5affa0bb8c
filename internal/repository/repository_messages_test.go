package repository

import (
	"context"
	"errors"
	"testing"

	"homebids/internal/models"

	"github.com/brianvoe/gofakeit/v7"
)

func TestMessages(t *testing.T) {
	ctx := context.Background()
	repo := OpenTestRepo(t)
	defer repo.Close()

	owner := gofakeit.UUID()
	mission := AddTestMission(t, repo, owner, models.PriorityLow, models.TierVerified)
	contractor := gofakeit.UUID()
	GrantTestCredits(t, repo, contractor, models.OneCredit)
	bid := SubmitTestBid(t, repo, mission.Id, contractor)

	fromContractor := models.Message{MissionId: mission.Id, ContractorId: contractor, SenderId: contractor, SenderRole: models.RoleContractor, Content: gofakeit.Blurb()}
	fromOwner := models.Message{MissionId: mission.Id, ContractorId: contractor, SenderId: owner, SenderRole: models.RoleHomeowner, Content: gofakeit.Blurb()}

	// the bid message already counts as the contractor's turn
	_, err := repo.SendMessage(ctx, fromContractor)
	if !errors.Is(err, models.ErrMessageLimitReached) {
		t.Fatalf("Expected %v, got %v", models.ErrMessageLimitReached, err)
	}

	for i := 0; i < 2; i++ {
		if _, err = repo.SendMessage(ctx, fromOwner); err != nil {
			t.Fatalf("Homeowner should never be throttled: %v", err)
		}
	}

	if _, err = repo.SendMessage(ctx, fromContractor); err != nil {
		t.Fatalf("Contractor should be able to answer: %v", err)
	}

	n, err := repo.MarkMessagesRead(ctx, mission.Id, contractor, models.RoleHomeowner)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Expected homeowner to read 2 contractor messages, got %d", n)
	}

	messages, err := repo.GetMessages(ctx, mission.Id, contractor)
	if err != nil {
		t.Fatal(err)
	}
	conv := models.Conversation{MissionId: mission.Id, ContractorId: contractor, BidStatus: bid.Status, Messages: messages}
	conv.Derive()
	if len(messages) != 4 || conv.UnreadHomeowner != 0 || conv.UnreadContractor != 2 {
		t.Errorf("Unexpected conversation state: %d messages, unread %d/%d", len(messages), conv.UnreadHomeowner, conv.UnreadContractor)
	}

	// acceptance lifts the alternation rule
	_, err = repo.TransitionBid(ctx, bid.Id, models.BidAccepted, false)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, err = repo.SendMessage(ctx, fromContractor); err != nil {
			t.Fatalf("Contractor should write freely after acceptance: %v", err)
		}
	}

	_, err = repo.SendMessage(ctx, models.Message{MissionId: mission.Id, ContractorId: gofakeit.UUID(), SenderId: owner, SenderRole: models.RoleHomeowner, Content: "hi"})
	if !errors.Is(err, models.ErrNoBid) {
		t.Errorf("Expected %v for a conversation without bid, got %v", models.ErrNoBid, err)
	}
}

func TestMessagesRejectedBid(t *testing.T) {
	ctx := context.Background()
	repo := OpenTestRepo(t)
	defer repo.Close()

	owner := gofakeit.UUID()
	mission := AddTestMission(t, repo, owner, models.PriorityLow, models.TierVerified)
	contractor := gofakeit.UUID()
	GrantTestCredits(t, repo, contractor, models.OneCredit)
	bid, err := repo.SubmitBid(ctx, models.Bid{MissionId: mission.Id, ContractorId: contractor, Quote: 10, Message: "hello"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = repo.TransitionBid(ctx, bid.Id, models.BidRejected, false)
	if err != nil {
		t.Fatal(err)
	}

	contractorMsg := models.Message{MissionId: mission.Id, ContractorId: contractor, SenderId: contractor, SenderRole: models.RoleContractor, Content: "please"}

	_, err = repo.SendMessage(ctx, contractorMsg)
	if !errors.Is(err, models.ErrMessageLimitReached) {
		t.Errorf("Expected %v right after the contractor's own message, got %v", models.ErrMessageLimitReached, err)
	}

	_, err = repo.SendMessage(ctx, models.Message{MissionId: mission.Id, ContractorId: contractor, SenderId: owner, SenderRole: models.RoleHomeowner, Content: "why?"})
	if err != nil {
		t.Fatalf("Homeowner should still be able to write: %v", err)
	}

	_, err = repo.SendMessage(ctx, contractorMsg)
	if err != nil {
		t.Errorf("Contractor should be able to answer on a rejected bid after a reply: %v", err)
	}
}
