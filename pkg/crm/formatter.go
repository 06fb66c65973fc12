package crm

import (
	"fmt"
	"strings"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/models"
)

// Supported output formats.
const (
	FormatPlain      = "plain"
	FormatHubSpot    = "hubspot"
	FormatSalesforce = "salesforce"
	FormatCSV        = "csv"
)

const (
	fallbackNextStep = "Follow up with customer"
	noPainPoints     = "None identified"
	noActionItems    = "None identified"
	noCompetitors    = "None mentioned"
)

// Formatter renders extracted call data into paste-ready CRM blocks.
// Now is injectable so defaulted close dates stay reproducible.
type Formatter struct {
	Now func() time.Time
}

func NewFormatter() *Formatter {
	return &Formatter{Now: time.Now}
}

// Generate renders the call in the requested format. Output is
// byte-stable for identical input and a fixed clock.
func (f *Formatter) Generate(format string, call models.Call, fields []models.CallField, insights []models.CallInsight) (string, error) {
	switch format {
	case FormatPlain:
		return f.plain(call, fields, insights), nil
	case FormatHubSpot:
		return f.hubspot(call, fields, insights), nil
	case FormatSalesforce:
		return f.salesforce(call, fields, insights), nil
	case FormatCSV:
		return f.csv(call, fields, insights), nil
	default:
		return "", fmt.Errorf("unsupported crm format %q", format)
	}
}

func (f *Formatter) plain(call models.Call, fields []models.CallField, insights []models.CallInsight) string {
	lines := []string{
		"CALL SUMMARY",
		"============",
		"Customer: " + orNA(call.CustomerName),
		"Sales Rep: " + orNA(call.SalesRep),
		"Date: " + callDate(call),
		fmt.Sprintf("Duration: %d minutes", durationMinutes(call)),
		"Sentiment: " + orNA(call.Sentiment),
		"",
		"FIELDS",
		"------",
	}
	for _, fd := range fields {
		lines = append(lines, fd.Name+": "+orNA(fd.Value))
	}

	lines = append(lines, "", "PAIN POINTS")
	lines = append(lines, bulleted(byType(insights, models.InsightPainPoint), noPainPoints)...)
	lines = append(lines, "", "ACTION ITEMS")
	lines = append(lines, bulleted(byType(insights, models.InsightActionItem), noActionItems)...)
	lines = append(lines, "", "COMPETITORS MENTIONED")
	lines = append(lines, bulleted(byType(insights, models.InsightCompetitor), noCompetitors)...)

	return strings.Join(lines, "\n")
}

func (f *Formatter) hubspot(call models.Call, fields []models.CallField, insights []models.CallInsight) string {
	lines := []string{
		"# HubSpot Deal Properties",
		"dealname: " + orNA(call.CustomerName) + " - Freight Opportunity",
		"amount: " + amount(fields),
		"dealstage: " + valueOr(lookupField(fields, "Deal Stage"), "appointmentscheduled"),
		"pipeline: default",
		"closedate: " + f.closeDate(fields),
		"hubspot_owner: " + orNA(call.SalesRep),
		"",
		"# Custom Properties",
		"next_steps: " + valueOr(firstActionItem(insights), fallbackNextStep),
		"pain_points: " + joinedOr(byType(insights, models.InsightPainPoint), "; ", noPainPoints),
		"competitors: " + joinedOr(byType(insights, models.InsightCompetitor), ", ", noCompetitors),
		"call_sentiment: " + orNA(call.Sentiment),
		fmt.Sprintf("call_duration_minutes: %d", durationMinutes(call)),
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) salesforce(call models.Call, fields []models.CallField, insights []models.CallInsight) string {
	lines := []string{
		"# Salesforce Opportunity Fields",
		"Name: " + orNA(call.CustomerName) + " - Freight Opportunity",
		"Amount: " + amount(fields),
		"StageName: " + valueOr(lookupField(fields, "Deal Stage"), "Qualification"),
		"CloseDate: " + f.closeDate(fields),
		"OwnerId: " + orNA(call.SalesRep),
		"",
		"# Custom Fields",
		"Next_Steps__c: " + valueOr(firstActionItem(insights), fallbackNextStep),
		"Pain_Points__c: " + joinedOr(byType(insights, models.InsightPainPoint), "; ", noPainPoints),
		"Competitors__c: " + joinedOr(byType(insights, models.InsightCompetitor), ", ", noCompetitors),
		"Call_Sentiment__c: " + orNA(call.Sentiment),
		fmt.Sprintf("Call_Duration__c: %d", durationMinutes(call)),
	}
	return strings.Join(lines, "\n")
}

// csv emits exactly two lines: the fixed 10-column header and one data
// row. Every cell is wrapped in double quotes; embedded quotes are not
// escaped, matching the templates downstream paste-in targets accept.
func (f *Formatter) csv(call models.Call, fields []models.CallField, insights []models.CallInsight) string {
	header := []string{
		"Customer", "Sales Rep", "Date", "Duration (min)", "Sentiment",
		"Rate", "Origin", "Destination", "Next Step", "Competitors",
	}
	row := []string{
		orNA(call.CustomerName),
		orNA(call.SalesRep),
		callDate(call),
		fmt.Sprintf("%d", durationMinutes(call)),
		orNA(call.Sentiment),
		orNA(lookupField(fields, "Rate")),
		orNA(lookupField(fields, "Origin")),
		orNA(lookupField(fields, "Destination")),
		valueOr(firstActionItem(insights), "N/A"),
		joinedOr(byType(insights, models.InsightCompetitor), ", ", "N/A"),
	}
	return quoteRow(header) + "\n" + quoteRow(row)
}

func quoteRow(cells []string) string {
	quoted := make([]string, len(cells))
	for i, cell := range cells {
		quoted[i] = `"` + cell + `"`
	}
	return strings.Join(quoted, ",")
}

func (f *Formatter) closeDate(fields []models.CallField) string {
	if v := lookupField(fields, "Close Date"); v != "" {
		return v
	}
	return f.Now().Add(90 * 24 * time.Hour).Format("2006-01-02")
}

// amount takes the Rate field (Amount as a fallback name), strips every
// non-digit rune, and defaults to "0".
func amount(fields []models.CallField) string {
	raw := lookupField(fields, "Rate")
	if raw == "" {
		raw = lookupField(fields, "Amount")
	}
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "0"
	}
	return b.String()
}

// lookupField matches the field name case-insensitively. Empty values
// count as absent.
func lookupField(fields []models.CallField, name string) string {
	for _, f := range fields {
		if strings.EqualFold(f.Name, name) && f.Value != "" {
			return f.Value
		}
	}
	return ""
}

// byType keeps the input order of insights within a type.
func byType(insights []models.CallInsight, insightType string) []string {
	var out []string
	for _, in := range insights {
		if in.Type == insightType {
			out = append(out, in.Text)
		}
	}
	return out
}

func firstActionItem(insights []models.CallInsight) string {
	items := byType(insights, models.InsightActionItem)
	if len(items) == 0 {
		return ""
	}
	return items[0]
}

func bulleted(items []string, fallback string) []string {
	if len(items) == 0 {
		return []string{"- " + fallback}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, "- "+item)
	}
	return out
}

func joinedOr(items []string, sep, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, sep)
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func callDate(call models.Call) string {
	if call.CallDate.IsZero() {
		return "N/A"
	}
	return call.CallDate.Format("2006-01-02")
}

func durationMinutes(call models.Call) int {
	return call.DurationSeconds / 60
}
