package models

import "time"

type MissionStatus string

const (
	MissionOpen       MissionStatus = "open"
	MissionInProgress MissionStatus = "in_progress"
	MissionCompleted  MissionStatus = "completed"
	MissionCancelled  MissionStatus = "cancelled"
)

func ValidMissionStatus(s MissionStatus) bool {
	switch s {
	case MissionOpen, MissionInProgress, MissionCompleted, MissionCancelled:
		return true
	default:
		return false
	}
}

// Closed reports whether the mission has reached completed or cancelled.
func (s MissionStatus) Closed() bool {
	return s == MissionCompleted || s == MissionCancelled
}

var missionTransitions = map[MissionStatus][]MissionStatus{
	MissionOpen:       {MissionInProgress, MissionCompleted, MissionCancelled},
	MissionInProgress: {MissionCompleted, MissionCancelled},
}

// CanTransitionMission reports whether a mission may move from one status to another.
func CanTransitionMission(from, to MissionStatus) bool {
	for _, s := range missionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

type HiringLikelihood string

const (
	HiringReady       HiringLikelihood = "ready_to_hire"
	HiringLikely      HiringLikelihood = "likely"
	HiringPlanning    HiringLikelihood = "planning"
	HiringResearching HiringLikelihood = "researching"
)

func ValidHiringLikelihood(h HiringLikelihood) bool {
	switch h {
	case HiringReady, HiringLikely, HiringPlanning, HiringResearching:
		return true
	default:
		return false
	}
}

type VerificationTier string

const (
	TierUnverified VerificationTier = "unverified"
	TierVerified   VerificationTier = "verified"
)

func ValidVerificationTier(t VerificationTier) bool {
	switch t {
	case TierUnverified, TierVerified:
		return true
	default:
		return false
	}
}

const MaxMissionImages = 3

type Mission struct {
	Id               string           `json:"id"`
	OwnerId          string           `json:"ownerId"`
	Title            string           `json:"title"`
	Service          string           `json:"service"`
	Details          string           `json:"details"`
	PostalCode       string           `json:"postalCode"`
	Priority         Priority         `json:"priority"`
	HiringLikelihood HiringLikelihood `json:"hiringLikelihood"`
	OwnerTier        VerificationTier `json:"ownerTier"`
	Status           MissionStatus    `json:"status"`
	Images           []string         `json:"images"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"-"`
}
