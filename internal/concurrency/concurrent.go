// Package concurrency provides small concurrency-bounded helpers used by
// state batch fetches and promotion's view creation fan-out.
package concurrency

import (
	"cmp"
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/flowforge/flowplan/internal/util"
)

type orderedOutput struct {
	order  int
	output any
}

// MapWithError applies f to each input with at most concurrency in flight
// at once (0 disables concurrency entirely, <0 means unbounded), preserving
// input order in the returned slice. It stops and returns the first error
// encountered, cancelling the remaining work.
func MapWithError[Tin any, Tout any](inputs []Tin, concurrency int, f func(Tin) (Tout, error)) ([]Tout, error) {
	eg, ctx := errgroup.WithContext(context.Background())
	switch {
	case concurrency == 0:
		eg.SetLimit(1)
	case concurrency > 0:
		eg.SetLimit(concurrency)
	}

	ch := make(chan orderedOutput, len(inputs))
	for i := range inputs {
		order, in := i, inputs[i]
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := f(in)
			if err != nil {
				return err
			}
			ch <- orderedOutput{order, out}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	close(ch)

	tmp := make([]orderedOutput, 0, len(inputs))
	for t := range ch {
		tmp = append(tmp, t)
	}
	slices.SortFunc(tmp, func(a, b orderedOutput) int {
		return cmp.Compare(a.order, b.order)
	})

	return util.TransformSlice(tmp, func(t orderedOutput) Tout {
		return t.output.(Tout)
	}), nil
}
