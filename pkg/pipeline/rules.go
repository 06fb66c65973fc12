package pipeline

import (
	"errors"
	"io/ioutil"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FieldRule extracts a named deal field from transcript text. Patterns
// are alternatives; the first capture group (or the whole match when
// there is none) becomes the field value.
type FieldRule struct {
	Name     string   `yaml:"name" json:"name"`
	Patterns []string `yaml:"patterns" json:"patterns"`
	Enabled  bool     `yaml:"enabled" json:"enabled"`
}

// InsightRule tags utterances that match as an insight of its type.
// With Capture set, the first capture group becomes the insight text
// instead of the whole utterance.
type InsightRule struct {
	Type     string   `yaml:"type" json:"type"`
	Patterns []string `yaml:"patterns" json:"patterns"`
	Capture  bool     `yaml:"capture" json:"capture"`
	Enabled  bool     `yaml:"enabled" json:"enabled"`
}

// RedactionRule masks sensitive spans before transcripts are stored or
// sent to the extraction model.
type RedactionRule struct {
	Name    string `yaml:"name" json:"name"`
	Pattern string `yaml:"pattern" json:"pattern"`
	Mask    string `yaml:"mask" json:"mask"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

type RulesConfig struct {
	Fields     []FieldRule     `yaml:"fields" json:"fields"`
	Insights   []InsightRule   `yaml:"insights" json:"insights"`
	Redactions []RedactionRule `yaml:"redactions" json:"redactions"`
}

func LoadRules(path string) (RulesConfig, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	content, err := ioutil.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultRules(), err
	}

	var cfg RulesConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return RulesConfig{}, err
	}

	if len(cfg.Fields) == 0 && len(cfg.Insights) == 0 {
		return RulesConfig{}, errors.New("no extraction rules configured")
	}

	return cfg, nil
}

func DefaultRules() RulesConfig {
	return RulesConfig{
		Fields: []FieldRule{
			{Name: "Origin", Enabled: true, Patterns: []string{
				`(?i)picking up (?:in|at|from) ([A-Z][A-Za-z .]+(?:,\s*[A-Z]{2})?)`,
				`(?i)(?:load|freight|shipment) (?:out of|from) ([A-Z][A-Za-z .]+(?:,\s*[A-Z]{2})?)`,
				`(?i)origin is ([A-Z][A-Za-z .]+(?:,\s*[A-Z]{2})?)`,
			}},
			{Name: "Destination", Enabled: true, Patterns: []string{
				`(?i)(?:delivering|deliver|heading|going) to ([A-Z][A-Za-z .]+(?:,\s*[A-Z]{2})?)`,
				`(?i)drops? (?:off )?(?:in|at) ([A-Z][A-Za-z .]+(?:,\s*[A-Z]{2})?)`,
				`(?i)destination is ([A-Z][A-Za-z .]+(?:,\s*[A-Z]{2})?)`,
			}},
			{Name: "Rate", Enabled: true, Patterns: []string{
				`\$\s?([0-9][0-9,]*(?:\.[0-9]{2})?)`,
				`(?i)([0-9][0-9,]*) (?:dollars|bucks) `,
				`(?i)rate of ([0-9][0-9,]*(?:\.[0-9]{2})?)`,
			}},
			{Name: "Equipment", Enabled: true, Patterns: []string{
				`(?i)\b(dry van|reefer|refrigerated|flatbed|step ?deck|power only|hotshot|53'? ?van|box truck)\b`,
			}},
			{Name: "Weight", Enabled: true, Patterns: []string{
				`(?i)([0-9][0-9,]*)\s?(?:lbs|pounds)`,
				`(?i)([0-9]{1,3})k (?:lbs|pounds)`,
			}},
			{Name: "Commodity", Enabled: true, Patterns: []string{
				`(?i)hauling ([a-z][a-z ]{2,40}?)(?:\.|,| from| to| out)`,
				`(?i)load of ([a-z][a-z ]{2,40}?)(?:\.|,| from| to| going)`,
			}},
			{Name: "Pickup Date", Enabled: true, Patterns: []string{
				`(?i)pick(?:s|ing)? ?up (?:on )?((?:monday|tuesday|wednesday|thursday|friday|saturday|sunday|tomorrow|today)|[0-9]{1,2}/[0-9]{1,2})`,
			}},
			{Name: "Carrier Name", Enabled: true, Patterns: []string{
				`(?i)(?:carrier|trucking company) (?:is|called) ([A-Z][A-Za-z &]+(?:Trucking|Transport|Logistics|Carriers|Lines|Freight)?)`,
				`(?i)([A-Z][A-Za-z &]+ (?:Trucking|Transport|Carriers|Lines)) (?:can|will|is going to) (?:cover|take|haul)`,
			}},
			{Name: "MC Number", Enabled: true, Patterns: []string{
				`(?i)MC[ #-]?([0-9]{5,8})\b`,
			}},
		},
		Insights: []InsightRule{
			{Type: "pain_point", Enabled: true, Patterns: []string{
				`(?i)\b(problem|issue|frustrat(?:ed|ing|ion)|late|delay(?:s|ed)?|damaged|no[- ]show|fell off|ghosted|double.?brokered|detention)\b`,
				`(?i)\b(too expensive|over budget|can'?t afford|burned us)\b`,
			}},
			{Type: "action_item", Enabled: true, Patterns: []string{
				`(?i)\bI'?ll (?:send|get|shoot|put together|email|call|follow up)\b`,
				`(?i)\b(?:we|I)'?ll (?:get back|circle back|touch base|reach out)\b`,
				`(?i)\bsend (?:you|over) (?:the|a) (?:rate con|quote|contract|packet|setup)\b`,
			}},
			{Type: "competitor", Capture: true, Enabled: true, Patterns: []string{
				`(?i)\b(?:working with|quoted by|using|talked to) ([A-Z][A-Za-z ]+ (?:Logistics|Freight|Transport|Brokerage))\b`,
				`(?i)\b(TQL|C\.?H\.? Robinson|Coyote|Echo|Uber Freight|Convoy|Arrive)\b`,
			}},
		},
		Redactions: []RedactionRule{
			{Name: "CardNumber", Pattern: `\b(?:\d[ -]?){13,16}\b`, Mask: "[CARD]", Enabled: true},
			{Name: "SSN", Pattern: `\b\d{3}-\d{2}-\d{4}\b`, Mask: "[SSN]", Enabled: true},
			{Name: "Phone", Pattern: `\b\(\d{3}\)\s?\d{3}-\d{4}\b`, Mask: "[PHONE]", Enabled: true},
			{Name: "Email", Pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, Mask: "[EMAIL]", Enabled: true},
		},
	}
}
