package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"homebids/internal/controller"
	"homebids/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubService answers every call with the configured error, or a fixed
// value built from its arguments.
type stubService struct {
	err     error
	actor   models.Actor
	confirm bool
}

func (s *stubService) CreateMission(ctx context.Context, actor models.Actor, mission models.Mission) (models.Mission, error) {
	s.actor = actor
	mission.Id = uuid.NewString()
	mission.OwnerId = actor.Id
	mission.Status = models.MissionOpen
	return mission, s.err
}

func (s *stubService) GetMission(ctx context.Context, actor models.Actor, missionId string) (models.Mission, error) {
	return models.Mission{Id: missionId}, s.err
}

func (s *stubService) ListMissions(ctx context.Context, actor models.Actor, limit, offset int, status models.MissionStatus) ([]models.Mission, error) {
	return nil, s.err
}

func (s *stubService) SetMissionStatus(ctx context.Context, actor models.Actor, missionId string, status models.MissionStatus) (models.Mission, []models.CreditEntry, error) {
	return models.Mission{Id: missionId, Status: status}, nil, s.err
}

func (s *stubService) SubmitBid(ctx context.Context, actor models.Actor, missionId string, quote float64, message string) (models.Bid, error) {
	return models.Bid{Id: uuid.NewString(), MissionId: missionId, ContractorId: actor.Id, Quote: quote, Cost: 50, Status: models.BidPending}, s.err
}

func (s *stubService) MarkConsidering(ctx context.Context, actor models.Actor, bidId string, confirm bool) (models.Bid, *models.Bid, error) {
	s.confirm = confirm
	return models.Bid{Id: bidId, Status: models.BidConsidering}, nil, s.err
}

func (s *stubService) AcceptBid(ctx context.Context, actor models.Actor, bidId string) (models.Bid, error) {
	return models.Bid{Id: bidId, Status: models.BidAccepted}, s.err
}

func (s *stubService) RejectBid(ctx context.Context, actor models.Actor, bidId string) (models.Bid, error) {
	return models.Bid{Id: bidId, Status: models.BidRejected}, s.err
}

func (s *stubService) MarkViewed(ctx context.Context, actor models.Actor, bidId string) (models.Bid, error) {
	return models.Bid{Id: bidId, ViewedByContractor: true}, s.err
}

func (s *stubService) GetBid(ctx context.Context, actor models.Actor, bidId string) (models.Bid, error) {
	return models.Bid{Id: bidId}, s.err
}

func (s *stubService) ListMissionBids(ctx context.Context, actor models.Actor, missionId string, limit, offset int) ([]models.Bid, error) {
	return nil, s.err
}

func (s *stubService) ListContractorBids(ctx context.Context, actor models.Actor, limit, offset int) ([]models.Bid, error) {
	return nil, s.err
}

func (s *stubService) GetBalance(ctx context.Context, actor models.Actor) (models.CreditAccount, error) {
	return models.CreditAccount{ContractorId: actor.Id, Balance: 150}, s.err
}

func (s *stubService) ListLedger(ctx context.Context, actor models.Actor, limit, offset int) ([]models.CreditEntry, error) {
	return nil, s.err
}

func (s *stubService) RefundBid(ctx context.Context, actor models.Actor, bidId string) (models.CreditEntry, error) {
	return models.CreditEntry{BidId: bidId, Kind: models.EntryRefund}, s.err
}

func (s *stubService) GetConversation(ctx context.Context, actor models.Actor, key models.ConversationKey) (models.Conversation, error) {
	return models.Conversation{MissionId: key.MissionId, ContractorId: key.ContractorId}, s.err
}

func (s *stubService) CanSend(ctx context.Context, actor models.Actor, key models.ConversationKey) (bool, []models.Message, error) {
	return true, nil, s.err
}

func (s *stubService) SendMessage(ctx context.Context, actor models.Actor, key models.ConversationKey, content string) (models.Message, error) {
	return models.Message{Content: content, SenderRole: actor.Role}, s.err
}

func (s *stubService) MarkRead(ctx context.Context, actor models.Actor, key models.ConversationKey) (int64, error) {
	return 3, s.err
}

func (s *stubService) CreateReview(ctx context.Context, actor models.Actor, missionId, contractorId string, rating int, comment string) (models.Review, error) {
	return models.Review{MissionId: missionId, ContractorId: contractorId, Rating: rating}, s.err
}

func (s *stubService) DeleteReview(ctx context.Context, actor models.Actor, reviewId string) error {
	return s.err
}

func (s *stubService) GetContractorRatings(ctx context.Context, contractorId string) (models.ContractorRatings, error) {
	return models.ContractorRatings{ContractorId: contractorId}, s.err
}

func (s *stubService) ListContractorReviews(ctx context.Context, contractorId string, limit, offset int) ([]models.Review, error) {
	return nil, s.err
}

func (s *stubService) RankContractors(ctx context.Context, limit int) ([]models.ContractorRatings, error) {
	return nil, s.err
}

func doRequest(t *testing.T, h http.Handler, method, path, body string, actor *models.Actor) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if actor != nil {
		req.Header.Set(controller.HeaderActorId, actor.Id)
		req.Header.Set(controller.HeaderActorRole, string(actor.Role))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPing(t *testing.T) {
	h := NewRouter(controller.NewController(&stubService{}))

	rec := doRequest(t, h, http.MethodGet, "/api/ping", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = doRequest(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActorHeaders(t *testing.T) {
	h := NewRouter(controller.NewController(&stubService{}))

	rec := doRequest(t, h, http.MethodGet, "/api/credits/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/credits/balance", "", &models.Actor{Id: "not-a-uuid", Role: models.RoleContractor})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/credits/balance", "", &models.Actor{Id: uuid.NewString(), Role: "admin"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/credits/balance", "", &models.Actor{Id: uuid.NewString(), Role: models.RoleContractor})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"balance":1.50`)
}

func TestNewMission(t *testing.T) {
	stub := &stubService{}
	h := NewRouter(controller.NewController(stub))
	owner := models.Actor{Id: uuid.NewString(), Role: models.RoleHomeowner}

	body := `{"title":"Fix roof","service":"roofing","postalCode":"75001","priority":"high","hiringLikelihood":"ready_to_hire","images":["a.jpg"]}`
	rec := doRequest(t, h, http.MethodPost, "/api/missions", body, &owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, owner.Id, stub.actor.Id)

	var mission models.Mission
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mission))
	assert.Equal(t, models.PriorityHigh, mission.Priority)
	assert.Equal(t, owner.Id, mission.OwnerId)

	rec = doRequest(t, h, http.MethodPost, "/api/missions", `{"title":"Fix roof","priority":"urgent"}`, &owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/missions", `{`, &owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBidRoutes(t *testing.T) {
	stub := &stubService{}
	h := NewRouter(controller.NewController(stub))
	c := models.Actor{Id: uuid.NewString(), Role: models.RoleContractor}
	missionId, bidId := uuid.NewString(), uuid.NewString()

	rec := doRequest(t, h, http.MethodPost, "/api/missions/"+missionId+"/bids", `{"quote":120.5,"message":"hi"}`, &c)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"cost":0.50`)

	rec = doRequest(t, h, http.MethodPost, "/api/missions/"+missionId+"/bids", `{"quote":0}`, &c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/missions/not-a-uuid/bids", `{"quote":1}`, &c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPut, "/api/bids/"+bidId+"/considering?confirm=true", "", &c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, stub.confirm)

	rec = doRequest(t, h, http.MethodPut, "/api/bids/"+bidId+"/considering?confirm=maybe", "", &c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, path := range []string{"/accept", "/reject", "/viewed"} {
		rec = doRequest(t, h, http.MethodPut, "/api/bids/"+bidId+path, "", &c)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/bids/my", "", &c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", rec.Body.String())
}

func TestServiceErrors(t *testing.T) {
	c := models.Actor{Id: uuid.NewString(), Role: models.RoleContractor}
	bidId := uuid.NewString()

	tests := []struct {
		err  error
		code int
	}{
		{models.ErrInsufficientCredits, http.StatusPaymentRequired},
		{models.ErrDuplicateBid, http.StatusConflict},
		{&models.InvalidTransitionError{From: "accepted", To: "rejected"}, http.StatusConflict},
		{models.ErrMissionClosed, http.StatusConflict},
		{models.ErrMessageLimitReached, http.StatusTooManyRequests},
		{models.ErrReviewNotEligible, http.StatusUnprocessableEntity},
		{models.ErrForbidden, http.StatusForbidden},
		{models.ErrNoBid, http.StatusNotFound},
		{models.ErrNoMission, http.StatusNotFound},
		{models.ErrInvalidInput, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		h := NewRouter(controller.NewController(&stubService{err: tt.err}))
		rec := doRequest(t, h, http.MethodPut, "/api/bids/"+bidId+"/accept", "", &c)
		assert.Equal(t, tt.code, rec.Code, tt.err.Error())
	}
}

func TestConfirmationRequiredResponse(t *testing.T) {
	current := uuid.NewString()
	h := NewRouter(controller.NewController(&stubService{err: &models.ConfirmationRequiredError{CurrentBidId: current}}))
	owner := models.Actor{Id: uuid.NewString(), Role: models.RoleHomeowner}

	rec := doRequest(t, h, http.MethodPut, "/api/bids/"+uuid.NewString()+"/considering", "", &owner)
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp controller.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, current, resp.CurrentBidId)
}

func TestConversationRoutes(t *testing.T) {
	h := NewRouter(controller.NewController(&stubService{}))
	owner := models.Actor{Id: uuid.NewString(), Role: models.RoleHomeowner}
	base := "/api/missions/" + uuid.NewString() + "/conversations/" + uuid.NewString()

	rec := doRequest(t, h, http.MethodGet, base, "", &owner)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, base+"/can_send", "", &owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"canSend":true,"messages":[]}`, rec.Body.String())

	rec = doRequest(t, h, http.MethodPost, base+"/messages", `{"content":"When can you start?"}`, &owner)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, h, http.MethodPost, base+"/messages", `{"content":""}`, &owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPut, base+"/read", "", &owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"marked":3}`, rec.Body.String())
}

func TestReviewRoutes(t *testing.T) {
	h := NewRouter(controller.NewController(&stubService{}))
	owner := models.Actor{Id: uuid.NewString(), Role: models.RoleHomeowner}
	contractorId := uuid.NewString()

	rec := doRequest(t, h, http.MethodPost, "/api/missions/"+uuid.NewString()+"/reviews", `{"contractorId":"`+contractorId+`","rating":5}`, &owner)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, h, http.MethodPost, "/api/missions/"+uuid.NewString()+"/reviews", `{"contractorId":"`+contractorId+`","rating":9}`, &owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodDelete, "/api/reviews/"+uuid.NewString(), "", &owner)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/contractors/"+contractorId+"/ratings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"combinedAverage":null`)

	rec = doRequest(t, h, http.MethodGet, "/api/contractors/ranking?limit=5", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/contractors/ranking?limit=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
