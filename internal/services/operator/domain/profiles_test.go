package domain_test

import (
	"testing"

	"github.com/dablchess/operator/internal/services/operator/domain"
)

func TestProfileByName(t *testing.T) {
	tests := []struct {
		name       string
		want       string
		wantRoutes int
		wantReady  int
	}{
		{name: "", want: domain.ProfileChess, wantRoutes: 9, wantReady: 1},
		{name: " Chess ", want: domain.ProfileChess, wantRoutes: 9, wantReady: 1},
		{name: "chess-legacy", want: domain.ProfileChessLegacy, wantRoutes: 2, wantReady: 0},
		{name: "session", want: domain.ProfileSession, wantRoutes: 2, wantReady: 1},
	}
	for _, tc := range tests {
		profile, err := domain.ProfileByName(tc.name)
		if err != nil {
			t.Fatalf("ProfileByName(%q): %v", tc.name, err)
		}
		if profile.Name != tc.want {
			t.Fatalf("ProfileByName(%q) = %q, want %q", tc.name, profile.Name, tc.want)
		}
		if len(profile.Routes) != tc.wantRoutes || len(profile.Ready) != tc.wantReady {
			t.Fatalf("%s: routes = %d ready = %d", tc.want, len(profile.Routes), len(profile.Ready))
		}
	}

	if _, err := domain.ProfileByName("checkers"); err == nil {
		t.Fatal("expected unknown profile error")
	}
}

func TestChessProfileCatalogue(t *testing.T) {
	want := map[string]string{
		domain.TemplateGameAccept:      "exercise:Start",
		domain.TemplateGame:            "exercise:Begin",
		domain.TemplateActiveAction:    "owner-exercise:AdvancePlay",
		domain.TemplateDrawClaim:       "owner-exercise:ConsiderDrawClaim",
		domain.TemplateEndGameProposal: "owner-exercise:ProcessEndGameProposal",
		domain.TemplateAcceptedDraw:    "owner-exercise:AcknowledgeAcceptedDraw",
		domain.TemplateRejectedDraw:    "owner-exercise:AcknowledgeRejectedDraw",
		domain.TemplateSurrender:       "owner-exercise:AcknowledgeSurrender",
		domain.TemplateAliasRequest:    "owner-exercise:ProcessRequest",
	}
	profile := domain.ChessProfile()
	for _, route := range profile.Routes {
		if got := route.Reaction.Name(); got != want[route.TemplateID] {
			t.Fatalf("%s reaction = %q, want %q", route.TemplateID, got, want[route.TemplateID])
		}
	}
	if got := len(profile.Templates()); got != len(want) {
		t.Fatalf("templates = %d, want %d", got, len(want))
	}
}
