package strategy

import (
	"context"
	"fmt"

	"github.com/angeloszaimis/campus-gateway/internal/candidate"
)

const (
	Sequential = "sequential"
	Race       = "race"
)

// CheckFunc reports whether a single candidate is reachable. A nil error
// means reachable.
type CheckFunc func(ctx context.Context, c *candidate.Candidate) error

// Strategy picks the first reachable candidate. With no candidates it
// returns (nil, nil).
type Strategy interface {
	Select(ctx context.Context, candidates []*candidate.Candidate, check CheckFunc) (*candidate.Candidate, error)
}

// New returns the strategy registered under name.
func New(name string) (Strategy, error) {
	switch name {
	case Sequential, "":
		return NewSequentialStrategy(), nil
	case Race:
		return NewRaceStrategy(), nil
	default:
		return nil, fmt.Errorf("unknown probe strategy %q", name)
	}
}
