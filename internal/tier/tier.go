// Package tier runs an ordered list of interchangeable providers, falling
// through to the next one whenever a provider fails.
package tier

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrExhausted is returned when every strategy in a chain failed.
var ErrExhausted = errors.New("all strategies failed")

// Reason classifies why a strategy attempt was rejected.
type Reason int

const (
	Transport Reason = iota
	Empty
	Invalid
)

func (r Reason) String() string {
	switch r {
	case Transport:
		return "transport"
	case Empty:
		return "empty"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Failure records one failed attempt.
type Failure struct {
	Strategy string
	Reason   Reason
	Err      error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Strategy, f.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", f.Strategy, f.Reason, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Fail lets a strategy state its own failure reason. Plain errors returned from
// Attempt are treated as Transport failures.
func Fail(reason Reason, err error) error {
	return &Failure{Reason: reason, Err: err}
}

// Strategy is one provider in a chain.
type Strategy[In, Out any] interface {
	Name() string
	Attempt(ctx context.Context, in In) (Out, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc[In, Out any] struct {
	Label string
	Fn    func(ctx context.Context, in In) (Out, error)
}

func (s StrategyFunc[In, Out]) Name() string { return s.Label }

func (s StrategyFunc[In, Out]) Attempt(ctx context.Context, in In) (Out, error) {
	return s.Fn(ctx, in)
}

// Chain tries strategies in order. An attempt fails when it returns an error or
// when IsEmpty reports its output as unusable.
type Chain[In, Out any] struct {
	strategies []Strategy[In, Out]
	isEmpty    func(Out) bool
	log        *logrus.Entry
}

func NewChain[In, Out any](log *logrus.Entry, isEmpty func(Out) bool, strategies ...Strategy[In, Out]) *Chain[In, Out] {
	return &Chain[In, Out]{strategies: strategies, isEmpty: isEmpty, log: log}
}

// Run returns the first acceptable output and the name of the strategy that
// produced it. Context cancellation stops the chain immediately.
func (c *Chain[In, Out]) Run(ctx context.Context, in In) (Out, string, error) {
	var zero Out
	var failures []error

	for i, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}
		entry := c.log.WithFields(logrus.Fields{"strategy": s.Name(), "tier": i + 1})

		out, err := s.Attempt(ctx, in)
		if err == nil && c.isEmpty != nil && c.isEmpty(out) {
			err = Fail(Empty, errors.New("empty output"))
		}
		if err == nil {
			if i > 0 {
				entry.Info("fallback strategy succeeded")
			}
			return out, s.Name(), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, "", ctxErr
		}

		f := classify(s.Name(), err)
		failures = append(failures, f)
		entry.WithField("reason", f.Reason.String()).WithError(f.Err).Warn("strategy failed")
	}

	return zero, "", fmt.Errorf("%w: %w", ErrExhausted, errors.Join(failures...))
}

func classify(name string, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return &Failure{Strategy: name, Reason: f.Reason, Err: f.Err}
	}
	return &Failure{Strategy: name, Reason: Transport, Err: err}
}
