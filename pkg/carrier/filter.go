package carrier

import (
	"regexp"
	"strings"

	"github.com/freightdesk-ai/platform/pkg/common/models"
)

// SearchFilter is the parsed form of the carrier list's q parameter.
// Recognized key:value clauses narrow structured columns; everything
// else becomes free text matched against name and MC/DOT numbers.
type SearchFilter struct {
	Text      string
	Status    string
	State     string
	Equipment string
}

var clauseRegex = regexp.MustCompile(`(status|state|equipment):("[^"]*"|\S+)`)

// ParseQuery splits a search expression like
//
//	status:active state:TX equipment:"dry van" ridgeline
//
// into its structured clauses and remaining free text. Unknown statuses
// are dropped rather than rejected so a typo degrades to a broad search
// instead of an error.
func ParseQuery(q string) SearchFilter {
	var filter SearchFilter

	rest := clauseRegex.ReplaceAllStringFunc(q, func(clause string) string {
		parts := strings.SplitN(clause, ":", 2)
		key := strings.ToLower(parts[0])
		value := strings.Trim(parts[1], `"`)
		switch key {
		case "status":
			if isCarrierStatus(strings.ToLower(value)) {
				filter.Status = strings.ToLower(value)
			}
		case "state":
			filter.State = strings.ToUpper(value)
		case "equipment":
			filter.Equipment = strings.ToLower(value)
		}
		return ""
	})

	filter.Text = strings.Join(strings.Fields(rest), " ")
	return filter
}

func isCarrierStatus(status string) bool {
	switch status {
	case models.CarrierActive, models.CarrierPending, models.CarrierDoNotUse:
		return true
	}
	return false
}
