package config

import (
	"errors"
	"testing"
)

func TestValidateMissingDBHost(t *testing.T) {
	c := &Config{DBUser: "u", DBName: "d", XAdminToken: "t"}
	err := c.Validate()
	if !errors.Is(err, ErrMissingRequired) {
		t.Fatalf("expected ErrMissingRequired, got %v", err)
	}
}

func TestValidateMissingAdminToken(t *testing.T) {
	c := &Config{DBHost: "h", DBUser: "u", DBName: "d"}
	err := c.Validate()
	if !errors.Is(err, ErrMissingRequired) {
		t.Fatalf("expected ErrMissingRequired, got %v", err)
	}
}

func TestValidateOK(t *testing.T) {
	c := &Config{DBHost: "h", DBUser: "u", DBName: "d", XAdminToken: "t"}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
