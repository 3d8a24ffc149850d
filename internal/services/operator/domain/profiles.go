package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Profile names.
const (
	ProfileChess       = "chess"
	ProfileChessLegacy = "chess-legacy"
	ProfileSession     = "session"
)

// Route binds a template to the reaction run for each of its creations.
type Route struct {
	TemplateID string
	Reaction   Reaction
}

// Profile is one bot: the bootstraps run when the ledger state has loaded
// and the reactions dispatched per created template.
type Profile struct {
	Name   string
	Ready  []Bootstrap
	Routes []Route
}

// Templates lists the template ids the profile subscribes to.
func (p Profile) Templates() []string {
	templates := make([]string, 0, len(p.Routes))
	for _, route := range p.Routes {
		templates = append(templates, route.TemplateID)
	}
	return templates
}

var profiles = map[string]func() Profile{
	ProfileChess:       ChessProfile,
	ProfileChessLegacy: LegacyChessProfile,
	ProfileSession:     SessionProfile,
}

// ProfileByName returns the named profile. Blank selects chess.
func ProfileByName(name string) (Profile, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = ProfileChess
	}
	build, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (want one of %s)", name, strings.Join(ProfileNames(), ", "))
	}
	return build(), nil
}

// ProfileNames lists the known profile names in order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ChessProfile runs games and the alias registry.
func ChessProfile() Profile {
	return Profile{
		Name:  ProfileChess,
		Ready: []Bootstrap{{Name: TemplateAliases, Singleton: aliasesSingleton}},
		Routes: []Route{
			{TemplateID: TemplateGameAccept, Reaction: SelfExercise{Choice: "Start"}},
			{TemplateID: TemplateGame, Reaction: SelfExercise{Choice: "Begin"}},
			{TemplateID: TemplateActiveAction, Reaction: gameRoleExercise("AdvancePlay", "actionId")},
			{TemplateID: TemplateDrawClaim, Reaction: gameRoleExercise("ConsiderDrawClaim", "drawClaimId")},
			{TemplateID: TemplateEndGameProposal, Reaction: gameRoleExercise("ProcessEndGameProposal", "proposalId")},
			{TemplateID: TemplateAcceptedDraw, Reaction: gameRoleExercise("AcknowledgeAcceptedDraw", "drawId")},
			{TemplateID: TemplateRejectedDraw, Reaction: gameRoleExercise("AcknowledgeRejectedDraw", "drawId")},
			{TemplateID: TemplateSurrender, Reaction: gameRoleExercise("AcknowledgeSurrender", "surrenderId")},
			{TemplateID: TemplateAliasRequest, Reaction: OwnerExercise{
				RoleTemplate: TemplateAliases,
				Choice:       "ProcessRequest",
				ArgumentName: "requestId",
			}},
		},
	}
}

// LegacyChessProfile creates one operator role per game as games appear.
func LegacyChessProfile() Profile {
	return Profile{
		Name: ProfileChessLegacy,
		Routes: []Route{
			{TemplateID: TemplateGame, Reaction: EnsureScopedRole{RoleTemplate: TemplateOperatorRole, ScopeField: FieldGameID}},
			{TemplateID: TemplateActiveAction, Reaction: gameRoleExercise("AdvancePlay", "actionId")},
		},
	}
}

// SessionProfile acknowledges session and rename requests.
func SessionProfile() Profile {
	return Profile{
		Name:  ProfileSession,
		Ready: []Bootstrap{{Name: TemplateSessionOperator, Singleton: sessionSingleton}},
		Routes: []Route{
			{TemplateID: TemplateSessionRequest, Reaction: OwnerExercise{
				RoleTemplate: TemplateSessionOperator,
				Choice:       "AcknowledgeSessionRequest",
				ArgumentName: "requestId",
			}},
			{TemplateID: TemplateRenameRequest, Reaction: OwnerExercise{
				RoleTemplate: TemplateSessionOperator,
				Choice:       "AcknowledgeRename",
				ArgumentName: "requestId",
			}},
		},
	}
}

func gameRoleExercise(choice, argument string) OwnerExercise {
	return OwnerExercise{
		RoleTemplate: TemplateOperatorRole,
		ScopeField:   FieldGameID,
		Choice:       choice,
		ArgumentName: argument,
	}
}

// The JSON API encodes a TextMap as a plain object.
func aliasesSingleton(env Env) Singleton {
	return Singleton{
		TemplateID: TemplateAliases,
		Filter:     map[string]any{FieldOperator: env.Party},
		Payload: map[string]any{
			"aliasToParty":   map[string]any{},
			"partyToAlias":   map[string]any{},
			"members":        map[string]any{},
			FieldOperator:    env.Party,
			FieldPublicParty: env.PublicParty,
		},
	}
}

func sessionSingleton(env Env) Singleton {
	return Singleton{
		TemplateID: TemplateSessionOperator,
		Filter:     map[string]any{FieldOperator: env.Party},
		Payload: map[string]any{
			FieldOperator:    env.Party,
			FieldPublicParty: env.PublicParty,
		},
	}
}
