package ledger_test

import (
	"testing"
	"time"

	"github.com/dablchess/operator/internal/services/operator/ledger"
	"github.com/golang-jwt/jwt/v5"
)

func TestMintTokenCarriesLedgerClaims(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	token, err := ledger.MintToken(ledger.TokenConfig{
		LedgerID:      "sandbox",
		ApplicationID: "operator-bot",
		Party:         "Ref",
		Secret:        "secret",
		TTL:           time.Hour,
		Now:           func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte("secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithoutClaimsValidation())
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	api, ok := claims["https://daml.com/ledger-api"].(map[string]any)
	if !ok {
		t.Fatalf("ledger api claim missing: %v", claims)
	}
	if api["ledgerId"] != "sandbox" || api["applicationId"] != "operator-bot" {
		t.Fatalf("ledger api claim = %v", api)
	}
	actAs, _ := api["actAs"].([]any)
	if len(actAs) != 1 || actAs[0] != "Ref" {
		t.Fatalf("actAs = %v, want [Ref]", api["actAs"])
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil || !exp.Time.Equal(now.Add(time.Hour)) {
		t.Fatalf("exp = %v (%v), want %v", exp, err, now.Add(time.Hour))
	}

	parties, err := ledger.TokenParties(token)
	if err != nil {
		t.Fatalf("token parties: %v", err)
	}
	if len(parties) != 1 || parties[0] != "Ref" {
		t.Fatalf("parties = %v, want [Ref]", parties)
	}
}

func TestMintTokenRequiresPartyAndSecret(t *testing.T) {
	if _, err := ledger.MintToken(ledger.TokenConfig{Secret: "secret"}); err == nil {
		t.Fatal("expected missing party to be rejected")
	}
	if _, err := ledger.MintToken(ledger.TokenConfig{Party: "Ref"}); err == nil {
		t.Fatal("expected missing secret to be rejected")
	}
}

func TestTokenPartiesRejectsGarbage(t *testing.T) {
	if _, err := ledger.TokenParties("not-a-jwt"); err == nil {
		t.Fatal("expected garbage token to fail")
	}
	if _, err := ledger.TokenParties(""); err == nil {
		t.Fatal("expected empty token to fail")
	}
}
