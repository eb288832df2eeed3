package provider

import "testing"

func TestParseServiceType(t *testing.T) {
	if svc, ok := ParseServiceType("google"); !ok || svc != ServiceGoogle {
		t.Fatalf("expected google to parse, got %q ok=%v", svc, ok)
	}
	if svc, ok := ParseServiceType("motion"); !ok || svc != ServiceMotion {
		t.Fatalf("expected motion to parse, got %q ok=%v", svc, ok)
	}
	if _, ok := ParseServiceType("dropbox"); ok {
		t.Fatal("expected unknown service to be rejected")
	}
}

func TestServiceTypeDisplayName(t *testing.T) {
	if ServiceGoogle.DisplayName() != "Google" {
		t.Fatalf("unexpected display name %q", ServiceGoogle.DisplayName())
	}
	if ServiceMotion.DisplayName() != "Motion" {
		t.Fatalf("unexpected display name %q", ServiceMotion.DisplayName())
	}
}

func TestTokenSetHasRefresh(t *testing.T) {
	if (TokenSet{AccessToken: "a"}).HasRefresh() {
		t.Fatal("expected no refresh token")
	}
	if !(TokenSet{AccessToken: "a", RefreshToken: "r"}).HasRefresh() {
		t.Fatal("expected refresh token")
	}
}
