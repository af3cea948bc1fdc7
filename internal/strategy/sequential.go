package strategy

import (
	"context"
	"errors"

	"github.com/angeloszaimis/campus-gateway/internal/candidate"
)

type sequentialStrategy struct{}

func (s *sequentialStrategy) Select(ctx context.Context, candidates []*candidate.Candidate, check CheckFunc) (*candidate.Candidate, error) {
	var errs []error

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		err := check(ctx, c)
		if err == nil {
			return c, nil
		}
		errs = append(errs, err)
	}

	return nil, errors.Join(errs...)
}

func NewSequentialStrategy() Strategy {
	return &sequentialStrategy{}
}
