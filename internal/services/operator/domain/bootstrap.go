package domain

import (
	"context"
	"fmt"
)

// Singleton is a role contract that should be active at most once for Filter.
type Singleton struct {
	TemplateID string
	Filter     map[string]any
	Payload    map[string]any
}

// EnsureSingleton submits a create for s when no active contract matches its
// filter, and does nothing otherwise. Several matches also count as present:
// the bootstrap never adds to an already broken scope.
//
// The query and the create are separate round trips, so two processes
// starting at once can both create. Nothing here prevents that.
func EnsureSingleton(ctx context.Context, env Env, s Singleton) (Outcome, error) {
	lookup, err := FindActive(ctx, env.Ledger, s.TemplateID, s.Filter)
	if err != nil {
		return "", err
	}
	if lookup.Status() != NoneFound {
		return OutcomeSkipped, nil
	}
	if _, err := env.Ledger.Create(ctx, s.TemplateID, s.Payload); err != nil {
		return "", err
	}
	return OutcomeSubmitted, nil
}

// Bootstrap is an action run once when the initial ledger state has loaded.
type Bootstrap struct {
	Name string
	// Singleton builds the contract to ensure for the running party.
	Singleton func(env Env) Singleton
}

// Run ensures the bootstrap's singleton for env.
func (b Bootstrap) Run(ctx context.Context, env Env) (Outcome, error) {
	if b.Singleton == nil {
		return "", fmt.Errorf("bootstrap %s has no singleton", b.Name)
	}
	return EnsureSingleton(ctx, env, b.Singleton(env))
}
