// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import "testing"

func TestServer_Address(t *testing.T) {
	cases := []struct {
		host, user, addr string
	}{
		{"digital-drip.com", "", "digital-drip.com:22"},
		{"digital-drip.com:2222", "", "digital-drip.com:2222"},
		{"deploy@digital-drip.com", "deploy", "digital-drip.com:22"},
		{"deploy@10.0.0.1:2200", "deploy", "10.0.0.1:2200"},
		{"[::1]", "", "[::1]:22"},
	}
	for _, tc := range cases {
		user, addr := Server{Host: tc.host}.Address(22)
		if user != tc.user || addr != tc.addr {
			t.Fatalf("Address(%q) = %q, %q; want %q, %q", tc.host, user, addr, tc.user, tc.addr)
		}
	}
	if h := (Server{Host: "deploy@example.org:2200"}).Hostname(); h != "example.org" {
		t.Fatalf("Hostname = %q", h)
	}
}

func TestServer_Matches(t *testing.T) {
	s := NewServer("h", map[string]any{OptionNoRelease: true, "zone": "eu"})
	if !s.Matches(map[string]any{OptionNoRelease: true}) {
		t.Fatalf("expected no_release match")
	}
	if !s.Matches(map[string]any{"zone": "eu", OptionNoRelease: true}) {
		t.Fatalf("expected multi-key match")
	}
	if s.Matches(map[string]any{"zone": "us"}) {
		t.Fatalf("unexpected zone match")
	}
	if s.Matches(nil) {
		t.Fatalf("empty filter must not match")
	}
	plain := NewServer("p", nil)
	if plain.Matches(map[string]any{OptionNoRelease: true}) {
		t.Fatalf("server without options must not match no_release: true")
	}
	if !plain.Matches(map[string]any{OptionPrimary: false}) {
		t.Fatalf("absent boolean option should match false")
	}
}

func TestServer_MatchesAny(t *testing.T) {
	s := NewServer("h", map[string]any{OptionNoRelease: true})
	if !s.MatchesAny(map[string]any{OptionNoRelease: true, "zone": "eu"}) {
		t.Fatalf("one matching key should be enough")
	}
	if s.MatchesAny(map[string]any{"zone": "eu", OptionPrimary: true}) {
		t.Fatalf("unexpected match without any matching key")
	}
	if s.MatchesAny(nil) {
		t.Fatalf("empty filter must not match")
	}
}

func TestServer_PrimaryIgnoresNonBool(t *testing.T) {
	if NewServer("h", map[string]any{OptionPrimary: "yes"}).Primary() {
		t.Fatalf("string option must not count as primary")
	}
	if !NewServer("h", map[string]any{OptionPrimary: true}).Primary() {
		t.Fatalf("expected primary")
	}
}

func TestStage_OrderedRoles(t *testing.T) {
	s := Stage{Roles: map[string][]Server{"zeta": nil, RoleDB: nil, RoleWeb: nil, "alpha": nil}}
	got := s.OrderedRoles()
	want := []string{RoleWeb, RoleDB, "alpha", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("OrderedRoles = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("OrderedRoles = %v, want %v", got, want)
		}
	}
}
