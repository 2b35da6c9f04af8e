package ledger

import (
	"context"
	"math"

	"github.com/starford/alignos/internal/models"
	"github.com/starford/alignos/internal/store"
)

// Category buckets a decision by how far it has propagated.
type Category string

const (
	FullyPropagated Category = "fully_propagated"
	InProgress      Category = "in_progress"
	Stuck           Category = "stuck"
	NoStakeholders  Category = "no_stakeholders"
)

// Categorize buckets an acknowledgment tally.
func Categorize(c store.AckCount) Category {
	switch {
	case c.Total == 0:
		return NoStakeholders
	case c.Acknowledged == c.Total:
		return FullyPropagated
	case c.Acknowledged == 0:
		return Stuck
	default:
		return InProgress
	}
}

// PropagationItem is one active decision and its tally.
type PropagationItem struct {
	Decision     models.Decision `json:"decision"`
	Total        int             `json:"total"`
	Acknowledged int             `json:"acknowledged"`
	Percent      int             `json:"percent"`
	Category     Category        `json:"category"`
}

// Report groups active decisions by propagation category.
type Report struct {
	FullyPropagated   []PropagationItem `json:"fully_propagated"`
	InProgress        []PropagationItem `json:"in_progress"`
	Stuck             []PropagationItem `json:"stuck"`
	NoStakeholders    []PropagationItem `json:"no_stakeholders"`
	TotalStakeholders int               `json:"total_stakeholders"`
	TotalAcknowledged int               `json:"total_acknowledged"`
	// AcknowledgmentRate is the overall percentage, 0 when nobody is assigned.
	AcknowledgmentRate int `json:"acknowledgment_rate"`
}

// Propagation reports acknowledgment progress across active decisions.
func (s *Service) Propagation(ctx context.Context) (*Report, error) {
	decisions, err := s.db.ListDecisions(ctx, store.DecisionFilter{Status: models.DecisionActive})
	if err != nil {
		return nil, err
	}
	counts, err := s.db.AckCounts(ctx)
	if err != nil {
		return nil, err
	}

	r := &Report{
		FullyPropagated: []PropagationItem{},
		InProgress:      []PropagationItem{},
		Stuck:           []PropagationItem{},
		NoStakeholders:  []PropagationItem{},
	}
	for _, d := range decisions {
		c := counts[d.ID]
		item := PropagationItem{
			Decision:     d,
			Total:        c.Total,
			Acknowledged: c.Acknowledged,
			Percent:      percent(c.Acknowledged, c.Total),
			Category:     Categorize(c),
		}
		r.TotalStakeholders += c.Total
		r.TotalAcknowledged += c.Acknowledged

		switch item.Category {
		case FullyPropagated:
			r.FullyPropagated = append(r.FullyPropagated, item)
		case InProgress:
			r.InProgress = append(r.InProgress, item)
		case Stuck:
			r.Stuck = append(r.Stuck, item)
		default:
			r.NoStakeholders = append(r.NoStakeholders, item)
		}
	}
	r.AcknowledgmentRate = percent(r.TotalAcknowledged, r.TotalStakeholders)
	return r, nil
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(n) * 100 / float64(total)))
}
