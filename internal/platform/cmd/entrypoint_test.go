package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type testConfig struct {
	LedgerURL string `env:"CMD_TEST_LEDGER_URL" envDefault:"http://localhost:7575"`
	Profile   string `env:"CMD_TEST_PROFILE" envDefault:"chess"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("CMD_TEST_LEDGER_URL", "http://ledger:7575")
	t.Setenv("CMD_TEST_PROFILE", "session")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := testConfig{}
	if err := ParseConfig(&cfg); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs.StringVar(&cfg.LedgerURL, "ledger-url", cfg.LedgerURL, "ledger url")
	fs.StringVar(&cfg.Profile, "profile", cfg.Profile, "profile")

	if err := ParseArgs(fs, []string{"-ledger-url", "http://flag:7575"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfg.LedgerURL != "http://flag:7575" {
		t.Fatalf("expected flag value for ledger url, got %q", cfg.LedgerURL)
	}
	if cfg.Profile != "session" {
		t.Fatalf("expected env profile, got %q", cfg.Profile)
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	if err := ParseConfig[testConfig](nil); err == nil {
		t.Fatal("expected nil config target to be rejected")
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
}

func TestRunWithTelemetryRequiresServiceName(t *testing.T) {
	err := RunWithTelemetry(context.Background(), " ", func(context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected blank service name to be rejected")
	}
}

func TestRunWithTelemetryRequiresRunFunc(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), ServiceOperator, nil); err == nil {
		t.Fatal("expected nil run function to be rejected")
	}
}

func TestRunWithTelemetryReturnsRunError(t *testing.T) {
	t.Setenv("OPERATOR_OTEL_ENDPOINT", "")
	want := errors.New("boom")

	err := RunWithTelemetry(context.Background(), ServiceOperator, func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("run error = %v, want %v", err, want)
	}
}
