// Package fallback models ordered lists of alternative strategies where
// the first one that succeeds wins.
package fallback

import (
	"context"
	"log/slog"
)

// Strategy is one alternative. Try reports ok=false to pass to the next one.
type Strategy[In, Out any] struct {
	Name string
	Try  func(ctx context.Context, in In) (Out, bool)
}

// Chain is an ordered list of strategies.
type Chain[In, Out any] []Strategy[In, Out]

// First runs the strategies in order and returns the first successful
// result together with the name of the strategy that produced it.
// Remaining strategies are not run. A done context stops the scan.
func (c Chain[In, Out]) First(ctx context.Context, in In) (Out, string, bool) {
	var zero Out
	for _, s := range c {
		if ctx.Err() != nil {
			return zero, "", false
		}
		if out, ok := s.Try(ctx, in); ok {
			slog.Debug("Fallback strategy matched", "strategy", s.Name)
			return out, s.Name, true
		}
	}
	return zero, "", false
}

// Value is First without the strategy name.
func (c Chain[In, Out]) Value(ctx context.Context, in In) (Out, bool) {
	out, _, ok := c.First(ctx, in)
	return out, ok
}

// Names lists the strategies in order.
func (c Chain[In, Out]) Names() []string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Name
	}
	return names
}
