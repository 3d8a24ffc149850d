package domain_test

import (
	"context"
	"fmt"

	"github.com/dablchess/operator/internal/services/operator/ledger"
)

type exerciseCall struct {
	TemplateID string
	ContractID string
	Choice     string
	Argument   map[string]any
}

type createCall struct {
	TemplateID string
	Payload    map[string]any
}

type fakeGateway struct {
	contracts   []ledger.Contract
	queryErr    error
	createErr   error
	exerciseErr error

	queries   int
	creates   []createCall
	exercises []exerciseCall
	nextID    int
}

func (g *fakeGateway) Query(_ context.Context, templateID string, filter map[string]any) ([]ledger.Contract, error) {
	g.queries++
	if g.queryErr != nil {
		return nil, g.queryErr
	}
	var matches []ledger.Contract
	for _, contract := range g.contracts {
		if ledger.TemplateName(contract.TemplateID) != ledger.TemplateName(templateID) {
			continue
		}
		if matchesFilter(contract.Payload, filter) {
			matches = append(matches, contract)
		}
	}
	return matches, nil
}

func (g *fakeGateway) Create(_ context.Context, templateID string, payload map[string]any) (ledger.Contract, error) {
	if g.createErr != nil {
		return ledger.Contract{}, g.createErr
	}
	g.creates = append(g.creates, createCall{TemplateID: templateID, Payload: payload})
	g.nextID++
	contract := ledger.Contract{
		ContractID: fmt.Sprintf("#created-%d", g.nextID),
		TemplateID: templateID,
		Payload:    payload,
	}
	g.contracts = append(g.contracts, contract)
	return contract, nil
}

func (g *fakeGateway) Exercise(_ context.Context, templateID, contractID, choice string, argument map[string]any) (ledger.ExerciseResult, error) {
	if g.exerciseErr != nil {
		return ledger.ExerciseResult{}, g.exerciseErr
	}
	g.exercises = append(g.exercises, exerciseCall{
		TemplateID: templateID,
		ContractID: contractID,
		Choice:     choice,
		Argument:   argument,
	})
	return ledger.ExerciseResult{}, nil
}

func matchesFilter(payload, filter map[string]any) bool {
	for key, want := range filter {
		got, ok := payload[key]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
