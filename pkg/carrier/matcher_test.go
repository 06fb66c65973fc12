package carrier

import (
	"testing"

	"github.com/freightdesk-ai/platform/pkg/common/models"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Ridgeline Trucking LLC", "ridgeline trucking"},
		{"APEX FREIGHT, INC.", "apex freight"},
		{"C.H. Robinson", "c h robinson"},
		{"K&B Transport Co", "k b transport"},
		{"  ", ""},
	}
	for _, tc := range cases {
		if got := normalizeName(tc.in); got != tc.want {
			t.Errorf("normalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestJaroWinkler(t *testing.T) {
	if got := jaroWinkler("ridgeline trucking", "ridgeline trucking"); got != 1.0 {
		t.Errorf("identical strings scored %f, want 1.0", got)
	}
	if got := jaroWinkler("", "ridgeline"); got != 0 {
		t.Errorf("empty string scored %f, want 0", got)
	}

	near := jaroWinkler("ridgeline trucking", "ridgelin trucking")
	far := jaroWinkler("ridgeline trucking", "roadrunner logistics")
	if near <= far {
		t.Errorf("one-character slip (%f) should outscore a different name (%f)", near, far)
	}
	if near < 0.88 {
		t.Errorf("one-character slip scored %f, below the linking threshold", near)
	}
}

func TestBestMatch(t *testing.T) {
	book := []models.Carrier{
		{Name: "Ridgeline Trucking LLC"},
		{Name: "Apex Freight Logistics"},
		{Name: "Sunbelt Express"},
	}

	idx, score := bestMatch(book, normalizeName("Ridgeline Trucking"))
	if idx != 0 || score != 1.0 {
		t.Errorf("exact name after normalization: got idx %d score %f", idx, score)
	}

	idx, score = bestMatch(book, normalizeName("sunbelt xpress"))
	if idx != 2 {
		t.Errorf("misheard name matched idx %d, want 2", idx)
	}
	if score < 0.88 {
		t.Errorf("misheard name scored %f, below the linking threshold", score)
	}

	_, score = bestMatch(book, normalizeName("Roadrunner Logistics"))
	if score >= 0.88 {
		t.Errorf("unrelated name scored %f, should stay below the linking threshold", score)
	}
}
