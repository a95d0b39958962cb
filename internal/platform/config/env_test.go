package config

import (
	"strings"
	"testing"
)

type journalConfig struct {
	JournalPath string `env:"OTHERWORLDS_TEST_JOURNAL" envDefault:"otherworlds.db"`
	PageSize    int    `env:"OTHERWORLDS_TEST_PAGE_SIZE" envDefault:"200"`
}

func TestFromEnvDefaults(t *testing.T) {
	var cfg journalConfig

	if err := FromEnv(&cfg); err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.JournalPath != "otherworlds.db" {
		t.Fatalf("journal path = %q, want default", cfg.JournalPath)
	}
	if cfg.PageSize != 200 {
		t.Fatalf("page size = %d, want 200", cfg.PageSize)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	var cfg journalConfig
	t.Setenv("OTHERWORLDS_TEST_JOURNAL", "/tmp/campaign.db")

	if err := FromEnv(&cfg); err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.JournalPath != "/tmp/campaign.db" {
		t.Fatalf("journal path = %q, want override", cfg.JournalPath)
	}
}

func TestFromEnvRejectsMalformedValues(t *testing.T) {
	var cfg journalConfig
	t.Setenv("OTHERWORLDS_TEST_PAGE_SIZE", "many")

	err := FromEnv(&cfg)
	if err == nil {
		t.Fatal("expected error for non-numeric page size")
	}
	if !strings.Contains(err.Error(), "read environment:") {
		t.Fatalf("error = %v, want read environment prefix", err)
	}
}
