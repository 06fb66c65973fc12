package team

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"FreightDesk Logistics", "freightdesk-logistics"},
		{"  Acme & Sons, Inc.  ", "acme-sons-inc"},
		{"ALLCAPS", "allcaps"},
		{"already-slugged", "already-slugged"},
		{"--- ---", ""},
	}
	for _, tc := range cases {
		if got := slugify(tc.in); got != tc.want {
			t.Errorf("slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewInviteToken(t *testing.T) {
	a, err := newInviteToken()
	if err != nil {
		t.Fatalf("newInviteToken: %v", err)
	}
	b, err := newInviteToken()
	if err != nil {
		t.Fatalf("newInviteToken: %v", err)
	}
	if len(a) != 48 {
		t.Errorf("token length %d, want 48 hex chars", len(a))
	}
	if a == b {
		t.Error("two tokens should not collide")
	}
}
