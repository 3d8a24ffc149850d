package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Port  int    `env:"OPERATOR_TEST_PORT" envDefault:"123"`
	Party string `env:"OPERATOR_TEST_PARTY" envDefault:"Ref"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
	if cfg.Party != "Ref" {
		t.Fatalf("expected default party Ref, got %q", cfg.Party)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("OPERATOR_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestOrDefault(t *testing.T) {
	cases := []struct {
		value    string
		fallback string
		want     string
	}{
		{value: "", fallback: "Ref", want: "Ref"},
		{value: "   ", fallback: "Ref", want: "Ref"},
		{value: " Alice ", fallback: "Ref", want: "Alice"},
	}
	for _, tc := range cases {
		if got := OrDefault(tc.value, tc.fallback); got != tc.want {
			t.Fatalf("OrDefault(%q, %q) = %q, want %q", tc.value, tc.fallback, got, tc.want)
		}
	}
}
