package main

import (
	"testing"

	"wardline/internal/app"
	"wardline/internal/config"
)

func TestMain_ConfigurationValidation(t *testing.T) {
	cfg := config.DefaultConfig()
	if cfg == nil {
		t.Fatal("default config should not be nil")
	}

	// Defaults alone are not runnable: the token secret must come from the
	// environment or a config file.
	if err := cfg.Validate(); err == nil {
		t.Error("default config should fail validation without a token secret")
	}

	cfg.Auth.TokenSecret = "secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("config with secret should be valid: %v", err)
	}

	cfg.HTTP.Port = -1
	if err := cfg.Validate(); err == nil {
		t.Error("invalid port should fail validation")
	}
}

func TestMain_ConstructorRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HTTP.Port = -1

	application, err := app.NewApplication(cfg)
	if err == nil {
		t.Error("constructor should reject invalid configuration")
	}
	if application != nil {
		t.Error("constructor should not return an application for invalid config")
	}
}
