package app

import (
	"context"

	"github.com/dablchess/operator/internal/services/operator/domain"
	"github.com/dablchess/operator/internal/services/operator/ledger"
)

// submissionObserver is the metrics surface the gateway reports to.
type submissionObserver interface {
	ObserveSubmission(kind, outcome string)
}

// instrumentedGateway counts the creates and exercises a reaction submits.
// Queries pass through uncounted.
type instrumentedGateway struct {
	next     domain.Gateway
	observer submissionObserver
}

func newInstrumentedGateway(next domain.Gateway, observer submissionObserver) *instrumentedGateway {
	return &instrumentedGateway{next: next, observer: observer}
}

func (g *instrumentedGateway) Query(ctx context.Context, templateID string, filter map[string]any) ([]ledger.Contract, error) {
	return g.next.Query(ctx, templateID, filter)
}

func (g *instrumentedGateway) Create(ctx context.Context, templateID string, payload map[string]any) (ledger.Contract, error) {
	contract, err := g.next.Create(ctx, templateID, payload)
	g.observe("create", err)
	return contract, err
}

func (g *instrumentedGateway) Exercise(ctx context.Context, templateID, contractID, choice string, argument map[string]any) (ledger.ExerciseResult, error) {
	result, err := g.next.Exercise(ctx, templateID, contractID, choice, argument)
	g.observe("exercise", err)
	return result, err
}

func (g *instrumentedGateway) observe(kind string, err error) {
	if g.observer == nil {
		return
	}
	g.observer.ObserveSubmission(kind, submissionOutcome(err))
}

func submissionOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case ledger.IsRejection(err):
		return "rejected"
	default:
		return "error"
	}
}

var _ domain.Gateway = (*instrumentedGateway)(nil)
