// Package operator parses operator command flags and launches the operator runtime.
package operator

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	entrypoint "github.com/dablchess/operator/internal/platform/cmd"
	platformgrpc "github.com/dablchess/operator/internal/platform/grpc"
	"github.com/dablchess/operator/internal/platform/config"
	operatorapp "github.com/dablchess/operator/internal/services/operator/app"
	"github.com/dablchess/operator/internal/services/operator/domain"
)

const defaultParty = "Ref"

// Config holds operator command configuration.
type Config struct {
	LedgerURL         string        `env:"DAML_LEDGER_URL" envDefault:"http://localhost:7575"`
	Party             string        `env:"DAML_LEDGER_PARTY" envDefault:"Ref"`
	PublicParty       string        `env:"DABL_PUBLIC_PARTY" envDefault:"Ref"`
	Token             string        `env:"DAML_LEDGER_TOKEN"`
	TokenSecret       string        `env:"DAML_LEDGER_TOKEN_SECRET" envDefault:"secret"`
	LedgerID          string        `env:"DAML_LEDGER_ID" envDefault:"sandbox"`
	ApplicationID     string        `env:"OPERATOR_APPLICATION_ID" envDefault:"operator-bot"`
	Profile           string        `env:"OPERATOR_PROFILE" envDefault:"chess"`
	Port              int           `env:"OPERATOR_PORT" envDefault:"8095"`
	MetricsAddr       string        `env:"OPERATOR_METRICS_ADDR" envDefault:":9464"`
	DBPath            string        `env:"OPERATOR_DB_PATH"`
	SubmitRate        float64       `env:"OPERATOR_SUBMIT_RATE" envDefault:"0"`
	RequestTimeout    time.Duration `env:"OPERATOR_REQUEST_TIMEOUT" envDefault:"10s"`
	ReconnectMaxDelay time.Duration `env:"OPERATOR_RECONNECT_MAX_DELAY" envDefault:"30s"`
	// Probe checks a running operator's health instead of starting one.
	Probe bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.LedgerURL, "ledger-url", cfg.LedgerURL, "The ledger JSON API URL")
	fs.StringVar(&cfg.Party, "party", cfg.Party, "The party the operator acts as")
	fs.StringVar(&cfg.PublicParty, "public-party", cfg.PublicParty, "The public party written into role contracts")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "Ledger access token; minted from the secret when empty")
	fs.StringVar(&cfg.LedgerID, "ledger-id", cfg.LedgerID, "Ledger id placed in minted tokens")
	fs.StringVar(&cfg.ApplicationID, "application-id", cfg.ApplicationID, "Application id placed in minted tokens")
	fs.StringVar(&cfg.Profile, "profile", cfg.Profile, "Bot profile: "+strings.Join(domain.ProfileNames(), ", "))
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The operator health gRPC server port")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address; empty disables")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite audit log path; empty disables")
	fs.Float64Var(&cfg.SubmitRate, "submit-rate", cfg.SubmitRate, "Maximum ledger submissions per second; 0 is unlimited")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "Ledger request timeout")
	fs.DurationVar(&cfg.ReconnectMaxDelay, "reconnect-max-delay", cfg.ReconnectMaxDelay, "Maximum event stream reconnect delay")
	fs.BoolVar(&cfg.Probe, "probe", false, "Exit 0 once the operator on -port reports ready, 1 on timeout")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.Party = config.OrDefault(cfg.Party, defaultParty)
	cfg.PublicParty = config.OrDefault(cfg.PublicParty, defaultParty)
	if _, err := domain.ProfileByName(cfg.Profile); err != nil {
		return Config{}, err
	}
	if cfg.Port <= 0 {
		return Config{}, fmt.Errorf("port must be positive, got %d", cfg.Port)
	}
	if cfg.SubmitRate < 0 {
		return Config{}, fmt.Errorf("submit rate must not be negative")
	}
	return cfg, nil
}

// Run starts the operator runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceOperator, func(ctx context.Context) error {
		return operatorapp.Run(ctx, operatorapp.RuntimeConfig{
			LedgerURL:         cfg.LedgerURL,
			Party:             cfg.Party,
			PublicParty:       cfg.PublicParty,
			Token:             cfg.Token,
			TokenSecret:       cfg.TokenSecret,
			LedgerID:          cfg.LedgerID,
			ApplicationID:     cfg.ApplicationID,
			Profile:           cfg.Profile,
			HealthAddr:        fmt.Sprintf(":%d", cfg.Port),
			MetricsAddr:       cfg.MetricsAddr,
			DBPath:            cfg.DBPath,
			SubmitRate:        cfg.SubmitRate,
			RequestTimeout:    cfg.RequestTimeout,
			ReconnectMaxDelay: cfg.ReconnectMaxDelay,
		})
	})
}

// Probe waits for the operator listening on cfg.Port to report ready.
func Probe(ctx context.Context, cfg Config) error {
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	return platformgrpc.Probe(ctx, addr, operatorapp.HealthService, cfg.RequestTimeout, nil)
}
