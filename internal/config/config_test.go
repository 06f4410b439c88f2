package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"NewsHarvester/internal/domain"
)

func TestLoadAppliesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := []byte(`
dedup:
  identityKey: url
ingest:
  batchSize: 25
run:
  incrementalLookback: 12h
  reviewAfterIngest: false
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(PathEnv, path)
	t.Setenv(SpreadsheetIDEnv, "sheet-123")
	t.Setenv(PerplexityAPIKeyEnv, "pplx-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Ingest.BatchSize != 25 {
		t.Fatalf("expected batch size 25, got %d", cfg.Ingest.BatchSize)
	}
	if cfg.Ingest.Workers != 5 {
		t.Fatalf("expected default workers to survive overlay, got %d", cfg.Ingest.Workers)
	}
	if cfg.Run.IncrementalLookback != 12*time.Hour {
		t.Fatalf("unexpected lookback: %v", cfg.Run.IncrementalLookback)
	}
	if cfg.Run.ReviewAfterIngest {
		t.Fatalf("expected reviewAfterIngest=false from file")
	}
	if cfg.Store.Sheets.SpreadsheetID != "sheet-123" {
		t.Fatalf("env override not applied: %q", cfg.Store.Sheets.SpreadsheetID)
	}
	if cfg.Judge.APIKey != "pplx-secret" {
		t.Fatalf("expected judge key from env")
	}

	keys, err := cfg.KeyFields()
	if err != nil {
		t.Fatalf("KeyFields: %v", err)
	}
	if keys.Title || keys.PublishedAt {
		t.Fatalf("expected url-only key, got %+v", keys)
	}
}

func TestLoadFailsOnUnreadableFile(t *testing.T) {
	t.Setenv(PathEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidateReportsUnsetKeys(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Store.Sheets.SpreadsheetID = "sheet-123"

	err := cfg.Validate()
	var cerr *domain.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}

	states := cerr.KeyStates()
	if states[SpreadsheetIDEnv] != "set" {
		t.Fatalf("expected %s set, got %q", SpreadsheetIDEnv, states[SpreadsheetIDEnv])
	}
	if states[GoogleCredentialsEnv] != "unset" || states[PerplexityAPIKeyEnv] != "unset" {
		t.Fatalf("unexpected key states: %v", states)
	}

	unset := cerr.Unset()
	if len(unset) != 2 || unset[0] != GoogleCredentialsEnv || unset[1] != PerplexityAPIKeyEnv {
		t.Fatalf("unexpected unset list: %v", unset)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Store.Driver = DriverMemory
	cfg.Judge.Provider = ProviderML
	cfg.Judge.Endpoint = "http://judge.local"
	cfg.Dedup.IdentityKey = "guid"
	cfg.Ingest.BatchSize = 0
	cfg.Run.InitialCutoff = "last tuesday"

	err := cfg.Validate()
	var cerr *domain.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if len(cerr.Problems) != 3 {
		t.Fatalf("expected 3 problems, got %d: %v", len(cerr.Problems), cerr.Problems)
	}
}

func TestValidateReviewScores(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		threshold int
		minScore  int
		wantKey   string
	}{
		{name: "zero threshold", threshold: 0, wantKey: "review.crossPostThreshold"},
		{name: "threshold above scale", threshold: 11, wantKey: "review.crossPostThreshold"},
		{name: "negative min score", threshold: 8, minScore: -1, wantKey: "review.minScore"},
		{name: "bounds accepted", threshold: 1, minScore: 10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			cfg.Store.Driver = DriverMemory
			cfg.Judge.APIKey = "key"
			cfg.Review.CrossPostThreshold = tc.threshold
			cfg.Review.MinScore = tc.minScore

			err := cfg.Validate()
			if tc.wantKey == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			var cerr *domain.ConfigError
			if !errors.As(err, &cerr) || len(cerr.Problems) != 1 || !strings.Contains(cerr.Problems[0], tc.wantKey) {
				t.Fatalf("expected one %s problem, got %v", tc.wantKey, err)
			}
		})
	}
}

func TestValidateMemoryDriver(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Store.Driver = DriverMemory
	cfg.Judge.APIKey = "key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cutoff, err := cfg.InitialCutoff()
	if err != nil {
		t.Fatalf("InitialCutoff: %v", err)
	}
	want := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !cutoff.Equal(want) {
		t.Fatalf("unexpected cutoff %v", cutoff)
	}
}
