package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenConfig describes a ledger access token for one acting party.
type TokenConfig struct {
	LedgerID      string
	ApplicationID string
	Party         string
	Secret        string
	// TTL bounds the token lifetime; zero mints a token without expiry.
	TTL time.Duration
	Now func() time.Time
}

type ledgerAPIClaim struct {
	LedgerID      string   `json:"ledgerId,omitempty"`
	ApplicationID string   `json:"applicationId,omitempty"`
	ActAs         []string `json:"actAs"`
	ReadAs        []string `json:"readAs,omitempty"`
}

type tokenClaims struct {
	jwt.RegisteredClaims
	LedgerAPI ledgerAPIClaim `json:"https://daml.com/ledger-api"`
}

// MintToken signs an HS256 token that lets cfg.Party act and read on the ledger.
func MintToken(cfg TokenConfig) (string, error) {
	party := strings.TrimSpace(cfg.Party)
	if party == "" {
		return "", fmt.Errorf("token party is required")
	}
	if cfg.Secret == "" {
		return "", fmt.Errorf("token secret is required")
	}
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	issuedAt := now().UTC()

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  party,
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
		LedgerAPI: ledgerAPIClaim{
			LedgerID:      strings.TrimSpace(cfg.LedgerID),
			ApplicationID: strings.TrimSpace(cfg.ApplicationID),
			ActAs:         []string{party},
			ReadAs:        []string{party},
		},
	}
	if cfg.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(cfg.TTL))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign ledger token: %w", err)
	}
	return signed, nil
}

// TokenParties returns the actAs parties of token without verifying its
// signature. The operator uses it to warn when a configured token does not
// act as the configured party; the ledger remains the verifier.
func TokenParties(token string) ([]string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("token is empty")
	}
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("parse ledger token: %w", err)
	}
	return claims.LedgerAPI.ActAs, nil
}
