package config

import (
	"strings"
	"testing"
)

func TestLoad_EnvDefaults(t *testing.T) {
	cfg, err := Load("v-test")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Version != "v-test" {
		t.Errorf("expected injected version, got %q", cfg.Version)
	}
	if cfg.Scheduler.ForecastDays != 7 {
		t.Errorf("expected default forecast window of 7 days, got %d", cfg.Scheduler.ForecastDays)
	}
	if cfg.Provider.MaxRetries != 1 {
		t.Errorf("expected single-retry default, got %d", cfg.Provider.MaxRetries)
	}
	if cfg.BaseURL == "" {
		t.Error("BaseURL must be derived when unset")
	}
}

func TestLoad_ParsesScopes(t *testing.T) {
	t.Setenv("OAUTH_SCOPES", "asset:read design:meta:read profile:read")

	cfg, err := Load("dev")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.OAuth.Scopes) != 3 {
		t.Fatalf("expected 3 scopes, got %v", cfg.OAuth.Scopes)
	}
	if cfg.OAuth.Scopes[1] != "design:meta:read" {
		t.Errorf("unexpected scope order: %v", cfg.OAuth.Scopes)
	}
}

func TestLoad_RejectsForecastDaysOutOfRange(t *testing.T) {
	t.Setenv("SCHEDULER_FORECAST_DAYS", "0")
	if _, err := Load("dev"); err == nil {
		t.Error("expected error for forecast_days=0")
	}

	t.Setenv("SCHEDULER_FORECAST_DAYS", "17")
	if _, err := Load("dev"); err == nil {
		t.Error("expected error for forecast_days=17")
	}
}

func TestRedirectURI(t *testing.T) {
	cfg := &Config{
		BaseURL: "https://portal.example.com/",
		OAuth:   OAuthConfig{RedirectPath: "/api/auth/callback"},
	}

	got := cfg.RedirectURI()
	want := "https://portal.example.com/api/auth/callback"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestConnectionString_ContainsAllParts(t *testing.T) {
	db := DatabaseConfig{
		Host: "db", Port: 5432, User: "portal", Password: "pw",
		Database: "portal_engine", SSLMode: "disable",
	}

	got := db.ConnectionString()
	for _, part := range []string{"host=db", "port=5432", "user=portal", "password=pw", "dbname=portal_engine", "sslmode=disable"} {
		if !strings.Contains(got, part) {
			t.Errorf("connection string missing %q: %q", part, got)
		}
	}
}
