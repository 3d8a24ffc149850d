package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/dablchess/operator/internal/services/operator/ledger"
)

// Outcome describes what a reaction did when it returned without error.
type Outcome string

const (
	// OutcomeSubmitted means a create or exercise was committed.
	OutcomeSubmitted Outcome = "submitted"
	// OutcomeSkipped means there was nothing to do, e.g. the role already exists.
	OutcomeSkipped Outcome = "skipped"
)

// Reaction handles the creation of contracts of one template.
type Reaction interface {
	// Name identifies the reaction in logs, metrics and the audit log.
	Name() string
	React(ctx context.Context, env Env, event ledger.Contract) (Outcome, error)
}

// SelfExercise exercises Choice on the contract that was just created.
type SelfExercise struct {
	Choice string
}

// Name implements Reaction.
func (r SelfExercise) Name() string {
	return "exercise:" + r.Choice
}

// React implements Reaction.
func (r SelfExercise) React(ctx context.Context, env Env, event ledger.Contract) (Outcome, error) {
	if _, err := env.Ledger.Exercise(ctx, event.TemplateID, event.ContractID, r.Choice, nil); err != nil {
		return "", err
	}
	return OutcomeSubmitted, nil
}

// OwnerExercise finds the single active role contract this party operates
// and exercises Choice on it, passing the triggering contract id.
type OwnerExercise struct {
	RoleTemplate string
	// ScopeField names an event payload field that also scopes the role
	// contract, such as gameId. Empty for party-wide roles.
	ScopeField string
	Choice     string
	// ArgumentName is the choice argument that receives the event's
	// contract id. Empty sends an empty argument record.
	ArgumentName string
}

// Name implements Reaction.
func (r OwnerExercise) Name() string {
	return "owner-exercise:" + r.Choice
}

// React implements Reaction.
func (r OwnerExercise) React(ctx context.Context, env Env, event ledger.Contract) (Outcome, error) {
	filter := map[string]any{FieldOperator: env.Party}
	if r.ScopeField != "" {
		key, err := scopeKey(event, r.ScopeField)
		if err != nil {
			return "", Permanent(err)
		}
		filter[r.ScopeField] = key
	}

	lookup, err := FindActive(ctx, env.Ledger, r.RoleTemplate, filter)
	if err != nil {
		return "", err
	}
	role, err := lookup.One()
	if err != nil {
		return "", err
	}

	argument := map[string]any{}
	if r.ArgumentName != "" {
		argument[r.ArgumentName] = event.ContractID
	}
	templateID := role.TemplateID
	if templateID == "" {
		templateID = r.RoleTemplate
	}
	if _, err := env.Ledger.Exercise(ctx, templateID, role.ContractID, r.Choice, argument); err != nil {
		return "", err
	}
	return OutcomeSubmitted, nil
}

// EnsureScopedRole creates the role contract for the event's correlation key
// when none is active yet.
type EnsureScopedRole struct {
	RoleTemplate string
	ScopeField   string
}

// Name implements Reaction.
func (r EnsureScopedRole) Name() string {
	return "ensure:" + r.RoleTemplate
}

// React implements Reaction.
func (r EnsureScopedRole) React(ctx context.Context, env Env, event ledger.Contract) (Outcome, error) {
	key, err := scopeKey(event, r.ScopeField)
	if err != nil {
		return "", Permanent(err)
	}
	return EnsureSingleton(ctx, env, Singleton{
		TemplateID: r.RoleTemplate,
		Filter:     map[string]any{FieldOperator: env.Party, r.ScopeField: key},
		Payload:    map[string]any{FieldOperator: env.Party, r.ScopeField: key},
	})
}

func scopeKey(event ledger.Contract, field string) (string, error) {
	value, ok := event.Field(field)
	if !ok {
		return "", fmt.Errorf("%s %s has no %s field", event.TemplateID, event.ContractID, field)
	}
	key, ok := value.(string)
	if !ok || strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%s %s has invalid %s %v", event.TemplateID, event.ContractID, field, value)
	}
	return key, nil
}
