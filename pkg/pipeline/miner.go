package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/freightdesk-ai/platform/pkg/common/models"
)

type compiledFieldRule struct {
	rule FieldRule
	res  []*regexp.Regexp
}

type compiledInsightRule struct {
	rule InsightRule
	res  []*regexp.Regexp
}

type compiledRedaction struct {
	rule RedactionRule
	re   *regexp.Regexp
}

// Miner runs the rules catalog against transcripts. It is the fallback
// extractor when the model is unavailable and the redaction pass for
// every transcript. Safe for concurrent use; Reload swaps the rule set
// for the config watcher.
type Miner struct {
	mu         sync.RWMutex
	fields     []compiledFieldRule
	insights   []compiledInsightRule
	redactions []compiledRedaction
}

func NewMiner(cfg RulesConfig) (*Miner, error) {
	m := &Miner{}
	if err := m.Reload(cfg); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Miner) Reload(cfg RulesConfig) error {
	var fields []compiledFieldRule
	for _, rule := range cfg.Fields {
		if !rule.Enabled {
			continue
		}
		compiled := compiledFieldRule{rule: rule}
		for _, pattern := range rule.Patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return err
			}
			compiled.res = append(compiled.res, re)
		}
		fields = append(fields, compiled)
	}

	var insights []compiledInsightRule
	for _, rule := range cfg.Insights {
		if !rule.Enabled {
			continue
		}
		compiled := compiledInsightRule{rule: rule}
		for _, pattern := range rule.Patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return err
			}
			compiled.res = append(compiled.res, re)
		}
		insights = append(insights, compiled)
	}

	var redactions []compiledRedaction
	for _, rule := range cfg.Redactions {
		if !rule.Enabled {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return err
		}
		redactions = append(redactions, compiledRedaction{rule: rule, re: re})
	}

	m.mu.Lock()
	m.fields = fields
	m.insights = insights
	m.redactions = redactions
	m.mu.Unlock()
	return nil
}

// Redact masks sensitive spans in the text.
func (m *Miner) Redact(text string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	masked := text
	for _, r := range m.redactions {
		masked = r.re.ReplaceAllString(masked, r.rule.Mask)
	}
	return masked
}

// MineFields extracts one value per field rule from the transcript.
// The first matching pattern wins; the first capture group is the
// value when the pattern has one.
func (m *Miner) MineFields(utterances []models.TranscriptUtterance) []models.CallField {
	m.mu.RLock()
	defer m.mu.RUnlock()

	text := joinTranscript(utterances)
	var fields []models.CallField
	for _, rule := range m.fields {
		value := firstMatch(rule.res, text)
		if value == "" {
			continue
		}
		fields = append(fields, models.CallField{
			Name:       rule.rule.Name,
			Value:      value,
			Confidence: 0.7,
			Source:     "rules",
		})
	}
	return fields
}

// MineInsights tags matching utterances, preserving transcript order.
// Duplicate texts within a type are collapsed.
func (m *Miner) MineInsights(utterances []models.TranscriptUtterance) []models.CallInsight {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var insights []models.CallInsight
	seen := make(map[string]struct{})
	for _, u := range utterances {
		for _, rule := range m.insights {
			text, ok := matchInsight(rule, u.Text)
			if !ok {
				continue
			}
			key := rule.rule.Type + "\x00" + text
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			insights = append(insights, models.CallInsight{
				Type:       rule.rule.Type,
				Text:       text,
				Confidence: 0.7,
			})
		}
	}
	return insights
}

func matchInsight(rule compiledInsightRule, text string) (string, bool) {
	for _, re := range rule.res {
		match := re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		if rule.rule.Capture && len(match) > 1 && match[1] != "" {
			return strings.TrimSpace(match[1]), true
		}
		return strings.TrimSpace(text), true
	}
	return "", false
}

func firstMatch(res []*regexp.Regexp, text string) string {
	for _, re := range res {
		match := re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		if len(match) > 1 && match[1] != "" {
			return strings.TrimSpace(match[1])
		}
		return strings.TrimSpace(match[0])
	}
	return ""
}

func joinTranscript(utterances []models.TranscriptUtterance) string {
	var b strings.Builder
	for i, u := range utterances {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(u.Text)
	}
	return b.String()
}

// ParseWeightLbs reads weights like "42,000", "42000 lbs", and "42k".
func ParseWeightLbs(raw string) (int, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimSuffix(s, "pounds")
	s = strings.TrimSuffix(s, "lbs")
	s = strings.TrimSpace(s)

	multiplier := 1
	if strings.HasSuffix(s, "k") {
		multiplier = 1000
		s = strings.TrimSuffix(s, "k")
	}
	s = strings.ReplaceAll(s, ",", "")
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n * multiplier, true
}
