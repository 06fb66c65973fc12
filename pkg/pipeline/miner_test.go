package pipeline

import (
	"strings"
	"testing"

	"github.com/freightdesk-ai/platform/pkg/common/models"
)

func sampleTranscript() []models.TranscriptUtterance {
	return []models.TranscriptUtterance{
		{Sequence: 0, Speaker: "customer", Text: "We have a load picking up in Dallas, TX and delivering to Atlanta, GA."},
		{Sequence: 1, Speaker: "customer", Text: "It's a dry van load, about 42,000 lbs of packaged food."},
		{Sequence: 2, Speaker: "rep", Text: "I can do that for $1,850 all in."},
		{Sequence: 3, Speaker: "customer", Text: "The last broker ghosted us, that was a real problem."},
		{Sequence: 4, Speaker: "customer", Text: "We were working with Apex Freight Logistics before."},
		{Sequence: 5, Speaker: "rep", Text: "I'll send over the rate con this afternoon."},
	}
}

func TestMineFields(t *testing.T) {
	miner, err := NewMiner(DefaultRules())
	if err != nil {
		t.Fatalf("failed to create miner: %v", err)
	}

	fields := miner.MineFields(sampleTranscript())
	byName := make(map[string]string)
	for _, f := range fields {
		byName[f.Name] = f.Value
		if f.Source != "rules" {
			t.Fatalf("field %s source = %q, want rules", f.Name, f.Source)
		}
	}

	if got := byName["Origin"]; got != "Dallas, TX" {
		t.Fatalf("Origin = %q", got)
	}
	if got := byName["Destination"]; got != "Atlanta, GA" {
		t.Fatalf("Destination = %q", got)
	}
	if got := byName["Rate"]; got != "1,850" {
		t.Fatalf("Rate = %q", got)
	}
	if got := byName["Equipment"]; !strings.EqualFold(got, "dry van") {
		t.Fatalf("Equipment = %q", got)
	}
	if got := byName["Weight"]; got != "42,000" {
		t.Fatalf("Weight = %q", got)
	}
}

func TestMineInsights(t *testing.T) {
	miner, err := NewMiner(DefaultRules())
	if err != nil {
		t.Fatalf("failed to create miner: %v", err)
	}

	insights := miner.MineInsights(sampleTranscript())

	var painPoints, actionItems, competitors []string
	for _, ins := range insights {
		switch ins.Type {
		case models.InsightPainPoint:
			painPoints = append(painPoints, ins.Text)
		case models.InsightActionItem:
			actionItems = append(actionItems, ins.Text)
		case models.InsightCompetitor:
			competitors = append(competitors, ins.Text)
		}
	}

	if len(painPoints) != 1 || !strings.Contains(painPoints[0], "ghosted") {
		t.Fatalf("pain points = %v", painPoints)
	}
	if len(actionItems) != 1 || !strings.Contains(actionItems[0], "rate con") {
		t.Fatalf("action items = %v", actionItems)
	}
	// Competitor rules capture the name, not the whole utterance.
	if len(competitors) != 1 || competitors[0] != "Apex Freight Logistics" {
		t.Fatalf("competitors = %v", competitors)
	}
}

func TestRedact(t *testing.T) {
	miner, err := NewMiner(DefaultRules())
	if err != nil {
		t.Fatalf("failed to create miner: %v", err)
	}

	in := "Card is 4111 1111 1111 1111, SSN 123-45-6789, reach me at (555) 123-4567 or joe@acme.com"
	out := miner.Redact(in)

	for _, leaked := range []string{"4111", "123-45-6789", "(555) 123-4567", "joe@acme.com"} {
		if strings.Contains(out, leaked) {
			t.Fatalf("redacted text still contains %q: %s", leaked, out)
		}
	}
	for _, mask := range []string{"[CARD]", "[SSN]", "[PHONE]", "[EMAIL]"} {
		if !strings.Contains(out, mask) {
			t.Fatalf("expected mask %s in %s", mask, out)
		}
	}
}

func TestReloadSwapsRules(t *testing.T) {
	miner, err := NewMiner(DefaultRules())
	if err != nil {
		t.Fatalf("failed to create miner: %v", err)
	}

	custom := RulesConfig{
		Fields: []FieldRule{
			{Name: "Reference", Enabled: true, Patterns: []string{`(?i)reference (?:number|code) ([A-Z0-9-]+)`}},
		},
	}
	if err := miner.Reload(custom); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	fields := miner.MineFields([]models.TranscriptUtterance{
		{Text: "Use reference number LD-20250810-XYZ1 on the paperwork."},
	})
	if len(fields) != 1 || fields[0].Value != "LD-20250810-XYZ1" {
		t.Fatalf("fields after reload = %v", fields)
	}
}

func TestReloadRejectsBadPattern(t *testing.T) {
	miner, err := NewMiner(DefaultRules())
	if err != nil {
		t.Fatalf("failed to create miner: %v", err)
	}
	bad := RulesConfig{Fields: []FieldRule{{Name: "Broken", Enabled: true, Patterns: []string{`([`}}}}
	if err := miner.Reload(bad); err == nil {
		t.Fatal("expected compile error for bad pattern")
	}

	// Old rules survive a failed reload.
	if fields := miner.MineFields(sampleTranscript()); len(fields) == 0 {
		t.Fatal("previous rules should remain active")
	}
}

func TestParseWeightLbs(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"42,000", 42000, true},
		{"42000 lbs", 42000, true},
		{"42k", 42000, true},
		{"38k lbs", 38000, true},
		{"heavy", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseWeightLbs(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseWeightLbs(%q) = %d, %v", tc.in, got, ok)
		}
	}
}
