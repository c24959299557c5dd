package planner

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"StockSentinel/internal/model"
)

// Broker accepts limit orders derived from trading targets.
type Broker interface {
	Submit(ctx context.Context, t model.TradingTarget) error
}

// SimulatedBroker records orders instead of routing them anywhere.
type SimulatedBroker struct {
	mu     sync.Mutex
	orders []model.TradingTarget
}

func (b *SimulatedBroker) Submit(_ context.Context, t model.TradingTarget) error {
	log.Info().
		Str("symbol", t.Code).
		Float64("limit", t.EntryPrice).
		Int("shares", t.PositionSize).
		Msg("simulated order")
	b.mu.Lock()
	b.orders = append(b.orders, t)
	b.mu.Unlock()
	return nil
}

// Orders returns the recorded orders in submission order.
func (b *SimulatedBroker) Orders() []model.TradingTarget {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.TradingTarget(nil), b.orders...)
}

// Executor hands targets to a Broker in priority order.
type Executor struct {
	Broker Broker
}

// Execute submits each target; a failed submission is logged and skipped.
// It returns how many were accepted.
func (e *Executor) Execute(ctx context.Context, targets []model.TradingTarget) (int, error) {
	log.Info().Int("targets", len(targets)).Msg("executing trading plan")
	accepted := 0
	for i, t := range targets {
		if err := ctx.Err(); err != nil {
			return accepted, err
		}
		log.Info().Int("n", i+1).Str("symbol", t.Code).Int("priority", int(t.Priority)).Msg("submitting")
		if err := e.Broker.Submit(ctx, t); err != nil {
			log.Error().Err(err).Str("symbol", t.Code).Msg("order rejected")
			continue
		}
		accepted++
	}
	return accepted, nil
}
