package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"homebids/internal/models"

	"github.com/google/uuid"
)

// Identity headers set by the gateway in front of the service.
const (
	HeaderActorId   = "X-Actor-Id"
	HeaderActorRole = "X-Actor-Role"
)

type Service interface {
	CreateMission(ctx context.Context, actor models.Actor, mission models.Mission) (models.Mission, error)
	GetMission(ctx context.Context, actor models.Actor, missionId string) (models.Mission, error)
	ListMissions(ctx context.Context, actor models.Actor, limit, offset int, status models.MissionStatus) ([]models.Mission, error)
	SetMissionStatus(ctx context.Context, actor models.Actor, missionId string, status models.MissionStatus) (models.Mission, []models.CreditEntry, error)

	SubmitBid(ctx context.Context, actor models.Actor, missionId string, quote float64, message string) (models.Bid, error)
	MarkConsidering(ctx context.Context, actor models.Actor, bidId string, confirm bool) (models.Bid, *models.Bid, error)
	AcceptBid(ctx context.Context, actor models.Actor, bidId string) (models.Bid, error)
	RejectBid(ctx context.Context, actor models.Actor, bidId string) (models.Bid, error)
	MarkViewed(ctx context.Context, actor models.Actor, bidId string) (models.Bid, error)
	GetBid(ctx context.Context, actor models.Actor, bidId string) (models.Bid, error)
	ListMissionBids(ctx context.Context, actor models.Actor, missionId string, limit, offset int) ([]models.Bid, error)
	ListContractorBids(ctx context.Context, actor models.Actor, limit, offset int) ([]models.Bid, error)

	GetBalance(ctx context.Context, actor models.Actor) (models.CreditAccount, error)
	ListLedger(ctx context.Context, actor models.Actor, limit, offset int) ([]models.CreditEntry, error)
	RefundBid(ctx context.Context, actor models.Actor, bidId string) (models.CreditEntry, error)

	GetConversation(ctx context.Context, actor models.Actor, key models.ConversationKey) (models.Conversation, error)
	CanSend(ctx context.Context, actor models.Actor, key models.ConversationKey) (bool, []models.Message, error)
	SendMessage(ctx context.Context, actor models.Actor, key models.ConversationKey, content string) (models.Message, error)
	MarkRead(ctx context.Context, actor models.Actor, key models.ConversationKey) (int64, error)

	CreateReview(ctx context.Context, actor models.Actor, missionId, contractorId string, rating int, comment string) (models.Review, error)
	DeleteReview(ctx context.Context, actor models.Actor, reviewId string) error
	GetContractorRatings(ctx context.Context, contractorId string) (models.ContractorRatings, error)
	ListContractorReviews(ctx context.Context, contractorId string, limit, offset int) ([]models.Review, error)
	RankContractors(ctx context.Context, limit int) ([]models.ContractorRatings, error)
}

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// GET /api/ping
func (c *Controller) Ping(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

//// Missions

// POST /api/missions
func (c *Controller) NewMission(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}

	req, err := ParseNewMissionReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	mission, err := c.service.CreateMission(r.Context(), actor, req.Mission())
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.writeJSON(w, http.StatusCreated, mission)
}

// GET /api/missions
func (c *Controller) ListMissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	limit, offset, ok := c.page(w, r.URL.Query())
	if !ok {
		return
	}

	missions, err := c.service.ListMissions(r.Context(), actor, limit, offset, models.MissionStatus(r.URL.Query().Get("status")))
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, nonNil(missions))
}

// GET /api/missions/{missionId}
func (c *Controller) GetMission(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	missionId, ok := c.pathId(w, r, "missionId")
	if !ok {
		return
	}

	mission, err := c.service.GetMission(r.Context(), actor, missionId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, mission)
}

// PUT /api/missions/{missionId}/status
func (c *Controller) SetMissionStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	missionId, ok := c.pathId(w, r, "missionId")
	if !ok {
		return
	}

	status := models.MissionStatus(r.URL.Query().Get("status"))
	if !models.ValidMissionStatus(status) {
		c.errorResponse(w, http.StatusBadRequest, "empty or invalid status supplied")
		return
	}

	mission, refunds, err := c.service.SetMissionStatus(r.Context(), actor, missionId, status)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, MissionStatusResp{Mission: mission, Refunds: nonNil(refunds)})
}

//// Bids

// POST /api/missions/{missionId}/bids
func (c *Controller) NewBid(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	missionId, ok := c.pathId(w, r, "missionId")
	if !ok {
		return
	}

	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}

	req, err := ParseNewBidReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	bid, err := c.service.SubmitBid(r.Context(), actor, missionId, req.Quote, req.Message)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.writeJSON(w, http.StatusCreated, bid)
}

// GET /api/missions/{missionId}/bids
func (c *Controller) MissionBids(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	missionId, ok := c.pathId(w, r, "missionId")
	if !ok {
		return
	}

	limit, offset, ok := c.page(w, r.URL.Query())
	if !ok {
		return
	}

	bids, err := c.service.ListMissionBids(r.Context(), actor, missionId, limit, offset)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, nonNil(bids))
}

// GET /api/bids/my
func (c *Controller) MyBids(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	limit, offset, ok := c.page(w, r.URL.Query())
	if !ok {
		return
	}

	bids, err := c.service.ListContractorBids(r.Context(), actor, limit, offset)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, nonNil(bids))
}

// GET /api/bids/{bidId}
func (c *Controller) GetBid(w http.ResponseWriter, r *http.Request) {
	c.bidAction(w, r, c.service.GetBid)
}

// PUT /api/bids/{bidId}/considering
func (c *Controller) ConsiderBid(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	bidId, ok := c.pathId(w, r, "bidId")
	if !ok {
		return
	}

	confirm := false
	if str := r.URL.Query().Get("confirm"); len(str) > 0 {
		var err error
		confirm, err = strconv.ParseBool(str)
		if err != nil {
			c.errorResponse(w, http.StatusBadRequest, "invalid value of 'confirm' query parameter: "+str)
			return
		}
	}

	bid, demoted, err := c.service.MarkConsidering(r.Context(), actor, bidId, confirm)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, ConsideringResp{Bid: bid, Demoted: demoted})
}

// PUT /api/bids/{bidId}/accept
func (c *Controller) AcceptBid(w http.ResponseWriter, r *http.Request) {
	c.bidAction(w, r, c.service.AcceptBid)
}

// PUT /api/bids/{bidId}/reject
func (c *Controller) RejectBid(w http.ResponseWriter, r *http.Request) {
	c.bidAction(w, r, c.service.RejectBid)
}

// PUT /api/bids/{bidId}/viewed
func (c *Controller) ViewBid(w http.ResponseWriter, r *http.Request) {
	c.bidAction(w, r, c.service.MarkViewed)
}

// POST /api/bids/{bidId}/refund
func (c *Controller) RefundBid(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	bidId, ok := c.pathId(w, r, "bidId")
	if !ok {
		return
	}

	entry, err := c.service.RefundBid(r.Context(), actor, bidId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, entry)
}

func (c *Controller) bidAction(w http.ResponseWriter, r *http.Request, action func(context.Context, models.Actor, string) (models.Bid, error)) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	bidId, ok := c.pathId(w, r, "bidId")
	if !ok {
		return
	}

	bid, err := action(r.Context(), actor, bidId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, bid)
}

//// Conversations

// GET /api/missions/{missionId}/conversations/{contractorId}
func (c *Controller) GetConversation(w http.ResponseWriter, r *http.Request) {
	actor, key, ok := c.conversationKey(w, r)
	if !ok {
		return
	}

	conv, err := c.service.GetConversation(r.Context(), actor, key)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, conv)
}

// GET /api/missions/{missionId}/conversations/{contractorId}/can_send
func (c *Controller) CanSend(w http.ResponseWriter, r *http.Request) {
	actor, key, ok := c.conversationKey(w, r)
	if !ok {
		return
	}

	canSend, messages, err := c.service.CanSend(r.Context(), actor, key)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, CanSendResp{CanSend: canSend, Messages: nonNil(messages)})
}

// POST /api/missions/{missionId}/conversations/{contractorId}/messages
func (c *Controller) SendMessage(w http.ResponseWriter, r *http.Request) {
	actor, key, ok := c.conversationKey(w, r)
	if !ok {
		return
	}

	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}

	req, err := ParseNewMessageReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := c.service.SendMessage(r.Context(), actor, key, req.Content)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.writeJSON(w, http.StatusCreated, msg)
}

// PUT /api/missions/{missionId}/conversations/{contractorId}/read
func (c *Controller) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, key, ok := c.conversationKey(w, r)
	if !ok {
		return
	}

	n, err := c.service.MarkRead(r.Context(), actor, key)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, MarkReadResp{Marked: n})
}

func (c *Controller) conversationKey(w http.ResponseWriter, r *http.Request) (models.Actor, models.ConversationKey, bool) {
	actor, ok := c.actor(w, r)
	if !ok {
		return actor, models.ConversationKey{}, false
	}

	missionId, ok := c.pathId(w, r, "missionId")
	if !ok {
		return actor, models.ConversationKey{}, false
	}

	contractorId, ok := c.pathId(w, r, "contractorId")
	if !ok {
		return actor, models.ConversationKey{}, false
	}

	return actor, models.ConversationKey{MissionId: missionId, ContractorId: contractorId}, true
}

//// Credits

// GET /api/credits/balance
func (c *Controller) Balance(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	account, err := c.service.GetBalance(r.Context(), actor)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, account)
}

// GET /api/credits/ledger
func (c *Controller) Ledger(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	limit, offset, ok := c.page(w, r.URL.Query())
	if !ok {
		return
	}

	entries, err := c.service.ListLedger(r.Context(), actor, limit, offset)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, nonNil(entries))
}

//// Reviews

// POST /api/missions/{missionId}/reviews
func (c *Controller) NewReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	missionId, ok := c.pathId(w, r, "missionId")
	if !ok {
		return
	}

	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}

	req, err := ParseNewReviewReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	review, err := c.service.CreateReview(r.Context(), actor, missionId, req.ContractorId, req.Rating, req.Comment)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.writeJSON(w, http.StatusCreated, review)
}

// DELETE /api/reviews/{reviewId}
func (c *Controller) DeleteReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	reviewId, ok := c.pathId(w, r, "reviewId")
	if !ok {
		return
	}

	err := c.service.DeleteReview(r.Context(), actor, reviewId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GET /api/contractors/{contractorId}/ratings
func (c *Controller) ContractorRatings(w http.ResponseWriter, r *http.Request) {
	contractorId, ok := c.pathId(w, r, "contractorId")
	if !ok {
		return
	}

	ratings, err := c.service.GetContractorRatings(r.Context(), contractorId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, ratings)
}

// GET /api/contractors/{contractorId}/reviews
func (c *Controller) ContractorReviews(w http.ResponseWriter, r *http.Request) {
	contractorId, ok := c.pathId(w, r, "contractorId")
	if !ok {
		return
	}

	limit, offset, ok := c.page(w, r.URL.Query())
	if !ok {
		return
	}

	reviews, err := c.service.ListContractorReviews(r.Context(), contractorId, limit, offset)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, nonNil(reviews))
}

// GET /api/contractors/ranking
func (c *Controller) Ranking(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit, err := c.getQueryInt(query, "limit")
	if err != nil || limit < 0 {
		c.errorResponse(w, http.StatusBadRequest, "invalid value of 'limit' query parameter: "+query.Get("limit"))
		return
	}

	ranking, err := c.service.RankContractors(r.Context(), limit)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, nonNil(ranking))
}

// Service

type ErrorResponse struct {
	Reason       string `json:"reason"`
	CurrentBidId string `json:"currentBidId,omitempty"`
}

// actor reads the caller identity from the request headers.
func (c *Controller) actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	id := r.Header.Get(HeaderActorId)
	if err := uuid.Validate(id); err != nil {
		c.errorResponse(w, http.StatusUnauthorized, "missing or invalid "+HeaderActorId+" header")
		return models.Actor{}, false
	}

	role := models.Role(r.Header.Get(HeaderActorRole))
	if !models.ValidRole(role) {
		c.errorResponse(w, http.StatusUnauthorized, "missing or invalid "+HeaderActorRole+" header")
		return models.Actor{}, false
	}

	return models.Actor{Id: id, Role: role}, true
}

func (c *Controller) pathId(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	id := r.PathValue(key)
	if err := uuid.Validate(id); err != nil {
		c.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("empty or invalid %s supplied", key))
		return "", false
	}
	return id, true
}

func (c *Controller) page(w http.ResponseWriter, query url.Values) (int, int, bool) {
	limit, err := c.getQueryInt(query, "limit")
	if err != nil || limit < 0 {
		c.errorResponse(w, http.StatusBadRequest, "invalid value of 'limit' query parameter: "+query.Get("limit"))
		return 0, 0, false
	}

	offset, err := c.getQueryInt(query, "offset")
	if err != nil || offset < 0 {
		c.errorResponse(w, http.StatusBadRequest, "invalid value of 'offset' query parameter: "+query.Get("offset"))
		return 0, 0, false
	}

	return limit, offset, true
}

func (c *Controller) getQueryInt(query url.Values, key string) (int, error) {
	strs, ok := query[key]
	if ok && len(strs) > 0 {
		return strconv.Atoi(strs[0])
	}
	return 0, nil
}

func (c *Controller) errorResponse(w http.ResponseWriter, status int, text string) {
	c.writeError(w, status, ErrorResponse{Reason: text})
}

func (c *Controller) writeError(w http.ResponseWriter, status int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("controller.Controller.writeError", "error", err)
		return
	}

	_, err = w.Write(data)
	if err != nil {
		slog.Error("controller.Controller.writeError", "error", err)
		return
	}
}

func (c *Controller) serviceErrorResponse(w http.ResponseWriter, err error) {
	var confirmErr *models.ConfirmationRequiredError

	switch {
	case errors.As(err, &confirmErr):
		c.writeError(w, http.StatusConflict, ErrorResponse{
			Reason:       "another bid is already under consideration, repeat with confirm=true to switch",
			CurrentBidId: confirmErr.CurrentBidId,
		})
	case errors.Is(err, models.ErrInvalidInput):
		c.errorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrForbidden):
		c.errorResponse(w, http.StatusForbidden, "actor has no permission for requested action")
	case errors.Is(err, models.ErrNoMission):
		c.errorResponse(w, http.StatusNotFound, "requested mission does not exist")
	case errors.Is(err, models.ErrNoBid):
		c.errorResponse(w, http.StatusNotFound, "requested bid does not exist")
	case errors.Is(err, models.ErrNoReview):
		c.errorResponse(w, http.StatusNotFound, "requested review does not exist")
	case errors.Is(err, models.ErrInsufficientCredits):
		c.errorResponse(w, http.StatusPaymentRequired, "not enough credits to bid on this mission")
	case errors.Is(err, models.ErrDuplicateBid):
		c.errorResponse(w, http.StatusConflict, "contractor already bid on this mission")
	case errors.Is(err, models.ErrMissionClosed):
		c.errorResponse(w, http.StatusConflict, "mission is closed")
	case errors.Is(err, models.ErrInvalidTransition):
		c.errorResponse(w, http.StatusConflict, "status change is not allowed from current state")
	case errors.Is(err, models.ErrMessageLimitReached):
		c.errorResponse(w, http.StatusTooManyRequests, "wait for the homeowner to reply before sending another message")
	case errors.Is(err, models.ErrReviewNotEligible):
		c.errorResponse(w, http.StatusUnprocessableEntity, "review requires an accepted bid and only one review per mission and contractor")
	default:
		slog.Error("controller: unhandled service error", "error", err)
		c.errorResponse(w, http.StatusInternalServerError, "internal server error")
	}
}

func (c *Controller) marshalResponse(w http.ResponseWriter, data any) {
	c.writeJSON(w, http.StatusOK, data)
}

func (c *Controller) writeJSON(w http.ResponseWriter, status int, data any) {
	d, err := json.Marshal(data)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not marshal response data")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(d)
	if err != nil {
		slog.Error("controller.Controller.writeJSON", "error", err)
		return
	}
}

func (c *Controller) readBody(src io.ReadCloser) ([]byte, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	src.Close()
	return data, nil
}

// nonNil keeps empty lists rendering as [] instead of null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
