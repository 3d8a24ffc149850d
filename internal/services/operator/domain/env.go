package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/dablchess/operator/internal/services/operator/ledger"
)

// Gateway is the part of the ledger client reactions use.
type Gateway interface {
	Query(ctx context.Context, templateID string, filter map[string]any) ([]ledger.Contract, error)
	Create(ctx context.Context, templateID string, payload map[string]any) (ledger.Contract, error)
	Exercise(ctx context.Context, templateID, contractID, choice string, argument map[string]any) (ledger.ExerciseResult, error)
}

// Env is what every reaction runs against: the acting party, the public
// party used in bootstrap payloads, and the ledger.
type Env struct {
	Party       string
	PublicParty string
	Ledger      Gateway
}

// Validate reports missing Env fields.
func (e Env) Validate() error {
	if strings.TrimSpace(e.Party) == "" {
		return fmt.Errorf("operator party is required")
	}
	if strings.TrimSpace(e.PublicParty) == "" {
		return fmt.Errorf("public party is required")
	}
	if e.Ledger == nil {
		return fmt.Errorf("ledger gateway is required")
	}
	return nil
}
