package load

import (
	"testing"

	"github.com/freightdesk-ai/platform/pkg/common/models"
)

func TestParseRateCents(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{"1,850", 185000},
		{"$1,850", 185000},
		{"$1,850.50", 185050},
		{" $2400 ", 240000},
		{"950.25", 95025},
		{"", 0},
		{"call for rate", 0},
		{"-500", 0},
	}
	for _, tc := range cases {
		if got := parseRateCents(tc.raw); got != tc.want {
			t.Errorf("parseRateCents(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestParseDay(t *testing.T) {
	day, err := ParseDay("2025-01-14")
	if err != nil {
		t.Fatalf("ParseDay: %v", err)
	}
	if day == nil || day.Format("2006-01-02") != "2025-01-14" {
		t.Errorf("unexpected day %v", day)
	}

	if day, err := ParseDay(""); err != nil || day != nil {
		t.Errorf("empty input should mean no filter, got %v %v", day, err)
	}

	if _, err := ParseDay("January 14"); err == nil {
		t.Error("expected error for unparseable date")
	}
}

func TestMargin(t *testing.T) {
	l := models.Load{ShipperRate: 185000, CarrierRate: 160000}
	if got := Margin(l); got != 25000 {
		t.Errorf("Margin = %d, want 25000", got)
	}
}
