// Package feed reads snapshots of the external review source and keeps the
// stored external ratings in sync with them.
package feed

import (
	"fmt"
	"io"
	"os"
	"time"

	"homebids/internal/models"

	"gopkg.in/yaml.v3"
)

// Snapshot is the feed's document: one entry per contractor with the
// source's own aggregate and whatever raw reviews it chose to include.
type Snapshot struct {
	FetchedAt   time.Time        `yaml:"fetched_at"`
	Contractors []ContractorFeed `yaml:"contractors"`
}

type ContractorFeed struct {
	ContractorId string       `yaml:"contractor_id"`
	Average      float64      `yaml:"average"`
	Count        int          `yaml:"count"`
	Reviews      []FeedReview `yaml:"reviews"`
}

type FeedReview struct {
	Id        string    `yaml:"id"`
	Author    string    `yaml:"author"`
	Rating    int       `yaml:"rating"`
	Comment   string    `yaml:"comment"`
	CreatedAt time.Time `yaml:"created_at"`
}

func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("feed.LoadSnapshot: %w", err)
	}
	defer f.Close()

	snap, err := ParseSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("feed.LoadSnapshot: %s: %w", path, err)
	}
	return snap, nil
}

func ParseSnapshot(r io.Reader) (*Snapshot, error) {
	snap := &Snapshot{}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(snap)
	if err == io.EOF {
		return snap, nil
	} else if err != nil {
		return nil, fmt.Errorf("feed.ParseSnapshot: %w", err)
	}

	seen := make(map[string]bool, len(snap.Contractors))
	for _, c := range snap.Contractors {
		if seen[c.ContractorId] {
			return nil, fmt.Errorf("feed.ParseSnapshot: %w: contractor %s listed twice", models.ErrInvalidInput, c.ContractorId)
		}
		seen[c.ContractorId] = true
	}
	return snap, nil
}

// Ratings returns the per-contractor aggregates. Entries without a fetch
// time are stamped with now.
func (s *Snapshot) Ratings(now time.Time) []models.ExternalRating {
	fetched := s.FetchedAt
	if fetched.IsZero() {
		fetched = now
	}

	ratings := make([]models.ExternalRating, 0, len(s.Contractors))
	for _, c := range s.Contractors {
		ratings = append(ratings, models.ExternalRating{
			ContractorId: c.ContractorId,
			Average:      c.Average,
			Count:        c.Count,
			FetchedAt:    fetched,
		})
	}
	return ratings
}

// Reviews flattens the raw reviews of every contractor.
func (s *Snapshot) Reviews() []models.Review {
	var reviews []models.Review
	for _, c := range s.Contractors {
		for _, r := range c.Reviews {
			reviews = append(reviews, models.Review{
				Id:           r.Id,
				ContractorId: c.ContractorId,
				AuthorName:   r.Author,
				Rating:       r.Rating,
				Comment:      r.Comment,
				Source:       models.SourceExternal,
				CreatedAt:    r.CreatedAt,
			})
		}
	}
	return reviews
}
