package filter

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(""))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ValidationURL != DefaultValidationURL {
		t.Error("validation_url is", cfg.ValidationURL)
	}
	if cfg.FailureURL != "/failed.html" {
		t.Error("failure_url is", cfg.FailureURL)
	}
	if cfg.TicketParam != "ticket" || cfg.LogoutParam != "logoutRequest" {
		t.Error("params are", cfg.TicketParam, cfg.LogoutParam)
	}
	if cfg.Timeout != 10*time.Second {
		t.Error("timeout is", cfg.Timeout)
	}
	if cfg.AttributeNames.ResourceID != "resource_id" || cfg.AttributeNames.Ticket != "cas_ticket" {
		t.Error("attribute names are", cfg.AttributeNames)
	}
	if cfg.ServerName != "" || cfg.TrustForwardedHeaders {
		t.Error("proxy headers must not be trusted by default")
	}
}

func TestReadConfig(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "cas.yml")
	err := os.WriteFile(filename, []byte(`
validation_url: https://cas.example.org/cas/p3/serviceValidate
failure_url: /login-failed
ticket_param: st
logout_param: slo
timeout: 3s
default_resource_id: -1
attribute_names:
  resource_id: uid
server_name: https://app.example.org
trust_forwarded_headers: true
`), 0644)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := ReadConfig(filename)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ValidationURL != "https://cas.example.org/cas/p3/serviceValidate" {
		t.Error("validation_url is", cfg.ValidationURL)
	}
	if cfg.FailureURL != "/login-failed" || cfg.TicketParam != "st" || cfg.LogoutParam != "slo" {
		t.Error("config is", cfg)
	}
	if cfg.Timeout != 3*time.Second {
		t.Error("timeout is", cfg.Timeout)
	}
	if cfg.DefaultResourceID != -1 {
		t.Error("default_resource_id is", cfg.DefaultResourceID)
	}
	if cfg.AttributeNames.ResourceID != "uid" || cfg.AttributeNames.Ticket != DefaultTicketAttribute {
		t.Error("attribute names are", cfg.AttributeNames)
	}
	if cfg.ServerName != "https://app.example.org" || !cfg.TrustForwardedHeaders {
		t.Error("server name is", cfg.ServerName, cfg.TrustForwardedHeaders)
	}
}

func TestParseConfigInvalid(t *testing.T) {
	for _, text := range []string{
		"validation_url: /relative/serviceValidate",
		"timeout: -1s",
		"timeout: abc",
		"attribute_names: {resource_id: same, ticket: same}",
		"[",
		"server_name: app.example.org",
		"server_name: https://app.example.org/prefix",
	} {
		if _, err := ParseConfig([]byte(text)); err == nil {
			t.Error("except error for", text)
		}
	}

	if _, err := ReadConfig(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("except error for a missing file")
	}
}
