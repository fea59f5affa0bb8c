package models

import "time"

type ReviewSource string

const (
	SourcePlatform ReviewSource = "platform"
	SourceExternal ReviewSource = "external"
)

const (
	MinRating = 1
	MaxRating = 5
)

func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}

type Review struct {
	Id           string       `json:"id"`
	MissionId    string       `json:"missionId,omitempty"`
	ContractorId string       `json:"contractorId"`
	AuthorId     string       `json:"authorId,omitempty"`
	AuthorName   string       `json:"authorName,omitempty"`
	Rating       int          `json:"rating"`
	Comment      string       `json:"comment"`
	Source       ReviewSource `json:"source"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// ExternalRating is the third-party source's own aggregate for a contractor.
type ExternalRating struct {
	ContractorId string    `json:"contractorId"`
	Average      float64   `json:"average"`
	Count        int       `json:"count"`
	FetchedAt    time.Time `json:"fetchedAt"`
}

type ContractorRatings struct {
	ContractorId    string   `json:"contractorId"`
	PlatformAverage *float64 `json:"platformAverage"`
	PlatformCount   int      `json:"platformCount"`
	ExternalAverage *float64 `json:"externalAverage"`
	ExternalCount   int      `json:"externalCount"`
	CombinedAverage *float64 `json:"combinedAverage"`
}

// TotalCount is the number of reviews behind CombinedAverage.
func (r ContractorRatings) TotalCount() int {
	return r.PlatformCount + r.ExternalCount
}

// CombineRatings builds the rating summary for one contractor. The combined
// average is weighted by review count; an empty pool contributes nothing and
// averages of empty pools stay nil.
func CombineRatings(contractorId string, platformSum, platformCount int, external ExternalRating) ContractorRatings {
	r := ContractorRatings{
		ContractorId:  contractorId,
		PlatformCount: platformCount,
	}

	var weighted float64
	if platformCount > 0 {
		avg := float64(platformSum) / float64(platformCount)
		r.PlatformAverage = &avg
		weighted += avg * float64(platformCount)
	}
	if external.Count > 0 {
		avg := external.Average
		r.ExternalAverage = &avg
		r.ExternalCount = external.Count
		weighted += avg * float64(external.Count)
	}

	if total := r.TotalCount(); total > 0 {
		combined := weighted / float64(total)
		r.CombinedAverage = &combined
	}
	return r
}
