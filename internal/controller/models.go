package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"homebids/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// New mission request

type NewMissionReq struct {
	Title            string                  `json:"title" validate:"required,max=100"`
	Service          string                  `json:"service" validate:"required,max=100"`
	Details          string                  `json:"details" validate:"max=2000"`
	PostalCode       string                  `json:"postalCode" validate:"required,max=16"`
	Priority         models.Priority         `json:"priority" validate:"required,oneof=low medium high"`
	HiringLikelihood models.HiringLikelihood `json:"hiringLikelihood" validate:"required,oneof=ready_to_hire likely planning researching"`
	OwnerTier        models.VerificationTier `json:"ownerTier" validate:"omitempty,oneof=unverified verified"`
	Images           []string                `json:"images" validate:"max=3,dive,required,max=500"`
}

func ParseNewMissionReq(data []byte) (*NewMissionReq, error) {
	req := &NewMissionReq{}
	if err := parseRequest(data, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (req *NewMissionReq) Mission() models.Mission {
	return models.Mission{
		Title:            req.Title,
		Service:          req.Service,
		Details:          req.Details,
		PostalCode:       req.PostalCode,
		Priority:         req.Priority,
		HiringLikelihood: req.HiringLikelihood,
		OwnerTier:        req.OwnerTier,
		Images:           req.Images,
	}
}

type MissionStatusResp struct {
	Mission models.Mission       `json:"mission"`
	Refunds []models.CreditEntry `json:"refunds"`
}

// New bid request

type NewBidReq struct {
	Quote   float64 `json:"quote" validate:"required,gt=0"`
	Message string  `json:"message" validate:"max=2000"`
}

func ParseNewBidReq(data []byte) (*NewBidReq, error) {
	req := &NewBidReq{}
	if err := parseRequest(data, req); err != nil {
		return nil, err
	}
	return req, nil
}

type ConsideringResp struct {
	Bid     models.Bid  `json:"bid"`
	Demoted *models.Bid `json:"demoted,omitempty"`
}

// New message request

type NewMessageReq struct {
	Content string `json:"content" validate:"required,max=4000"`
}

func ParseNewMessageReq(data []byte) (*NewMessageReq, error) {
	req := &NewMessageReq{}
	if err := parseRequest(data, req); err != nil {
		return nil, err
	}
	return req, nil
}

type CanSendResp struct {
	CanSend  bool             `json:"canSend"`
	Messages []models.Message `json:"messages"`
}

type MarkReadResp struct {
	Marked int64 `json:"marked"`
}

// New review request

type NewReviewReq struct {
	ContractorId string `json:"contractorId" validate:"required,uuid"`
	Rating       int    `json:"rating" validate:"required,min=1,max=5"`
	Comment      string `json:"comment" validate:"max=2000"`
}

func ParseNewReviewReq(data []byte) (*NewReviewReq, error) {
	req := &NewReviewReq{}
	if err := parseRequest(data, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Service

func parseRequest(data []byte, req any) error {
	err := json.Unmarshal(data, req)
	if err != nil {
		return fmt.Errorf("malformed request body: %w", err)
	}

	err = validate.Struct(req)
	if err != nil {
		return validationError(err)
	}
	return nil
}

// validationError renders validator failures as one readable line.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if len(fe.Param()) > 0 {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s=%s'", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s'", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
