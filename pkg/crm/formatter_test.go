package crm

import (
	"strings"
	"testing"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/models"
)

func fixedFormatter() *Formatter {
	return &Formatter{Now: func() time.Time {
		return time.Date(2025, 8, 14, 9, 30, 0, 0, time.UTC)
	}}
}

func sampleCall() models.Call {
	return models.Call{
		CustomerName:    "Acme Logistics",
		SalesRep:        "Jordan Lee",
		CallDate:        time.Date(2025, 8, 14, 9, 0, 0, 0, time.UTC),
		DurationSeconds: 745,
		Sentiment:       "positive",
	}
}

func sampleFields() []models.CallField {
	return []models.CallField{
		{Name: "Rate", Value: "$2,400"},
		{Name: "Origin", Value: "Dallas, TX"},
		{Name: "Destination", Value: "Atlanta, GA"},
		{Name: "Equipment Type", Value: "Reefer"},
	}
}

func sampleInsights() []models.CallInsight {
	return []models.CallInsight{
		{Type: models.InsightPainPoint, Text: "Current carrier keeps missing pickup windows"},
		{Type: models.InsightActionItem, Text: "Send rate confirmation by Friday"},
		{Type: models.InsightActionItem, Text: "Schedule follow-up call next week"},
		{Type: models.InsightCompetitor, Text: "TQL"},
	}
}

func TestPlainFormat(t *testing.T) {
	got, err := fixedFormatter().Generate(FormatPlain, sampleCall(), sampleFields(), sampleInsights())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `CALL SUMMARY
============
Customer: Acme Logistics
Sales Rep: Jordan Lee
Date: 2025-08-14
Duration: 12 minutes
Sentiment: positive

FIELDS
------
Rate: $2,400
Origin: Dallas, TX
Destination: Atlanta, GA
Equipment Type: Reefer

PAIN POINTS
- Current carrier keeps missing pickup windows

ACTION ITEMS
- Send rate confirmation by Friday
- Schedule follow-up call next week

COMPETITORS MENTIONED
- TQL`

	if got != want {
		t.Fatalf("plain output mismatch\ngot:\n%s\n\nwant:\n%s", got, want)
	}
}

func TestPlainFormatEmptyInsights(t *testing.T) {
	got, err := fixedFormatter().Generate(FormatPlain, sampleCall(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, fallback := range []string{"- None identified", "- None mentioned"} {
		if !strings.Contains(got, fallback) {
			t.Fatalf("expected fallback %q in output:\n%s", fallback, got)
		}
	}
	if strings.Count(got, "- None identified") != 2 {
		t.Fatalf("expected the identified fallback twice:\n%s", got)
	}
	if strings.Count(got, "- None mentioned") != 1 {
		t.Fatalf("expected the mentioned fallback once:\n%s", got)
	}
}

func TestHubSpotFormat(t *testing.T) {
	got, err := fixedFormatter().Generate(FormatHubSpot, sampleCall(), sampleFields(), sampleInsights())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `# HubSpot Deal Properties
dealname: Acme Logistics - Freight Opportunity
amount: 2400
dealstage: appointmentscheduled
pipeline: default
closedate: 2025-11-12
hubspot_owner: Jordan Lee

# Custom Properties
next_steps: Send rate confirmation by Friday
pain_points: Current carrier keeps missing pickup windows
competitors: TQL
call_sentiment: positive
call_duration_minutes: 12`

	if got != want {
		t.Fatalf("hubspot output mismatch\ngot:\n%s\n\nwant:\n%s", got, want)
	}
}

func TestSalesforceFormat(t *testing.T) {
	got, err := fixedFormatter().Generate(FormatSalesforce, sampleCall(), sampleFields(), sampleInsights())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `# Salesforce Opportunity Fields
Name: Acme Logistics - Freight Opportunity
Amount: 2400
StageName: Qualification
CloseDate: 2025-11-12
OwnerId: Jordan Lee

# Custom Fields
Next_Steps__c: Send rate confirmation by Friday
Pain_Points__c: Current carrier keeps missing pickup windows
Competitors__c: TQL
Call_Sentiment__c: positive
Call_Duration__c: 12`

	if got != want {
		t.Fatalf("salesforce output mismatch\ngot:\n%s\n\nwant:\n%s", got, want)
	}
}

func TestCSVFormat(t *testing.T) {
	got, err := fixedFormatter().Generate(FormatCSV, sampleCall(), sampleFields(), sampleInsights())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `"Customer","Sales Rep","Date","Duration (min)","Sentiment","Rate","Origin","Destination","Next Step","Competitors"
"Acme Logistics","Jordan Lee","2025-08-14","12","positive","$2,400","Dallas, TX","Atlanta, GA","Send rate confirmation by Friday","TQL"`

	if got != want {
		t.Fatalf("csv output mismatch\ngot:\n%s\n\nwant:\n%s", got, want)
	}
}

func TestCSVAlwaysTwoLines(t *testing.T) {
	out, err := fixedFormatter().Generate(FormatCSV, models.Call{}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lines := strings.Split(out, "\n"); len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), out)
	}
}

func TestCSVKeepsEmbeddedQuotesUnescaped(t *testing.T) {
	call := sampleCall()
	call.CustomerName = `Acme "Fast" Logistics`

	out, err := fixedFormatter().Generate(FormatCSV, call, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"Acme "Fast" Logistics"`) {
		t.Fatalf("embedded quotes should be preserved verbatim:\n%s", out)
	}
	if lines := strings.Split(out, "\n"); len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
}

func TestFieldLookupIsCaseInsensitive(t *testing.T) {
	fields := []models.CallField{{Name: "rAtE", Value: "$900"}}

	got, err := fixedFormatter().Generate(FormatHubSpot, sampleCall(), fields, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "amount: 900") {
		t.Fatalf("expected rate field matched case-insensitively:\n%s", got)
	}
}

func TestAmountDefaultsToZero(t *testing.T) {
	got, err := fixedFormatter().Generate(FormatSalesforce, sampleCall(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "Amount: 0") {
		t.Fatalf("expected Amount: 0 without a rate field:\n%s", got)
	}
}

func TestDealStageOverride(t *testing.T) {
	fields := []models.CallField{{Name: "Deal Stage", Value: "negotiation"}}

	got, err := fixedFormatter().Generate(FormatHubSpot, sampleCall(), fields, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "dealstage: negotiation") {
		t.Fatalf("expected deal stage override honored:\n%s", got)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	f := fixedFormatter()
	for _, format := range []string{FormatPlain, FormatHubSpot, FormatSalesforce, FormatCSV} {
		first, err := f.Generate(format, sampleCall(), sampleFields(), sampleInsights())
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", format, err)
		}
		second, err := f.Generate(format, sampleCall(), sampleFields(), sampleInsights())
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", format, err)
		}
		if first != second {
			t.Fatalf("%s: output not deterministic", format)
		}
	}
}

func TestUnknownFormatRejected(t *testing.T) {
	_, err := fixedFormatter().Generate("pipedrive", sampleCall(), nil, nil)
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
	if !strings.Contains(err.Error(), "pipedrive") {
		t.Fatalf("error should name the format: %v", err)
	}
}
