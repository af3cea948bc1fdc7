package strategy

import (
	"context"
	"errors"

	"github.com/angeloszaimis/campus-gateway/internal/candidate"
)

type raceStrategy struct{}

type checkResult struct {
	candidate *candidate.Candidate
	err       error
}

func (s *raceStrategy) Select(ctx context.Context, candidates []*candidate.Candidate, check CheckFunc) (*candidate.Candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so losing checks can finish after the winner returns.
	results := make(chan checkResult, len(candidates))
	for _, c := range candidates {
		go func(c *candidate.Candidate) {
			results <- checkResult{candidate: c, err: check(ctx, c)}
		}(c)
	}

	errs := make([]error, 0, len(candidates))
	for range candidates {
		res := <-results
		if res.err == nil {
			return res.candidate, nil
		}
		errs = append(errs, res.err)
	}

	return nil, errors.Join(errs...)
}

func NewRaceStrategy() Strategy {
	return &raceStrategy{}
}
