package model

import (
	"testing"
	"time"
)

func TestScopeListContains(t *testing.T) {
	tests := []struct {
		name     string
		scopes   ScopeList
		required string
		want     bool
	}{
		{"exact match", ScopeList{"read:companies"}, "read:companies", true},
		{"no match", ScopeList{"read:companies"}, "write:companies", false},
		{"wildcard", ScopeList{"*"}, "write:odoo", true},
		{"wildcard among others", ScopeList{"read:odoo", "*"}, "write:companies", true},
		{"empty list", ScopeList{}, "read:companies", false},
		{"nil list", nil, "read:companies", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scopes.Contains(tt.required); got != tt.want {
				t.Errorf("Contains(%q) = %v, want %v", tt.required, got, tt.want)
			}
		})
	}
}

func TestScopeListRoundTrip(t *testing.T) {
	orig := ScopeList{"read:odoo", "write:odoo"}

	v, err := orig.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var got ScopeList
	if err := got.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 2 || got[0] != "read:odoo" || got[1] != "write:odoo" {
		t.Errorf("round trip = %v", got)
	}
}

func TestScopeListScanNull(t *testing.T) {
	var got ScopeList
	if err := got.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Scan(nil) = %v, want empty list", got)
	}
}

func TestAPIKeyRevoked(t *testing.T) {
	k := APIKey{}
	if k.Revoked() {
		t.Error("key without revoked_at considered revoked")
	}
	now := time.Now()
	k.RevokedAt = &now
	if !k.Revoked() {
		t.Error("key with revoked_at not considered revoked")
	}
}

func TestAPIKeyExpired(t *testing.T) {
	now := time.Now().UTC()
	k := APIKey{}
	if k.Expired(now) {
		t.Error("key without expiry considered expired")
	}

	future := now.Add(time.Minute)
	k.ExpiresAt = &future
	if k.Expired(now) {
		t.Error("future expiry considered expired")
	}

	past := now.Add(-time.Minute)
	k.ExpiresAt = &past
	if !k.Expired(now) {
		t.Error("past expiry not considered expired")
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Corp", "acme-corp"},
		{"  Trimmed  ", "trimmed"},
		{"Ünïcode & Symbols!", "ncode--symbols"},
		{"already-slugged", "already-slugged"},
		{"UPPER_case", "upper-case"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidProjectStatus(t *testing.T) {
	for _, s := range []string{"draft", "discovery", "build", "deploy", "live"} {
		if !ValidProjectStatus(s) {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []string{"", "done", "DRAFT"} {
		if ValidProjectStatus(s) {
			t.Errorf("%q should be invalid", s)
		}
	}
}
