package sync

import (
	"context"
	"errors"
)

// Recorders fans an Outcome out to every recorder in order. All recorders
// are called even when one fails; the failures are joined.
type Recorders []Recorder

func (rs Recorders) Record(ctx context.Context, o Outcome) error {
	var errs []error

	for _, r := range rs {
		if r == nil {
			continue
		}

		if err := r.Record(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, o Outcome) error

func (f RecorderFunc) Record(ctx context.Context, o Outcome) error {
	return f(ctx, o)
}
