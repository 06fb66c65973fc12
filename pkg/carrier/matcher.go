package carrier

import (
	"context"
	"strings"

	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/google/uuid"
)

// Matcher fuzzy-links free-text carrier names, as heard on calls,
// against the org's carrier book.
type Matcher struct {
	repo      *Repository
	threshold float64
}

func NewMatcher(repo *Repository, threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = 0.88
	}
	return &Matcher{repo: repo, threshold: threshold}
}

// corporate suffixes that carry no identity; "Ridgeline Trucking LLC"
// and "Ridgeline Trucking" are the same company.
var suffixTokens = map[string]struct{}{
	"llc": {}, "inc": {}, "corp": {}, "co": {}, "ltd": {}, "company": {},
}

func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		case r == '.' || r == ',' || r == '-' || r == '&' || r == '\'':
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, drop := suffixTokens[tok]; !drop {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

// MatchName returns the best-scoring carrier for the spoken name, or
// nil with the best score when nothing clears the threshold.
func (m *Matcher) MatchName(ctx context.Context, orgID uuid.UUID, name string) (*models.Carrier, float64, error) {
	target := normalizeName(name)
	if target == "" {
		return nil, 0, nil
	}

	candidates, err := m.repo.AllCarriers(ctx, orgID)
	if err != nil {
		return nil, 0, err
	}

	idx, score := bestMatch(candidates, target)
	if idx >= 0 && score >= m.threshold {
		return &candidates[idx], score, nil
	}
	return nil, score, nil
}

func bestMatch(candidates []models.Carrier, target string) (int, float64) {
	bestScore := 0.0
	bestIdx := -1
	for i := range candidates {
		score := jaroWinkler(target, normalizeName(candidates[i].Name))
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return bestIdx, bestScore
}

func jaroWinkler(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}

	if s1 == "" || s2 == "" {
		return 0
	}

	matchDistance := max(len(s1), len(s2))/2 - 1
	if matchDistance < 0 {
		matchDistance = 0
	}

	s1Matches := make([]bool, len(s1))
	s2Matches := make([]bool, len(s2))

	matches := 0
	transpositions := 0

	for i := range s1 {
		start := max(0, i-matchDistance)
		end := min(i+matchDistance+1, len(s2))
		for j := start; j < end; j++ {
			if s2Matches[j] || s1[i] != s2[j] {
				continue
			}
			s1Matches[i] = true
			s2Matches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	k := 0
	for i := range s1 {
		if !s1Matches[i] {
			continue
		}
		for ; !s2Matches[k]; k++ {
		}
		if s1[i] != s2[k] {
			transpositions++
		}
		k++
	}

	transpositions /= 2

	jaro := (float64(matches)/float64(len(s1)) + float64(matches)/float64(len(s2)) + float64(matches-transpositions)/float64(matches)) / 3

	prefix := 0
	for i := 0; i < min(4, min(len(s1), len(s2))); i++ {
		if s1[i] == s2[i] {
			prefix++
		} else {
			break
		}
	}

	return jaro + float64(prefix)*0.1*(1-jaro)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
