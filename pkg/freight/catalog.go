package freight

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Equipment describes one trailer type and the spoken names that map
// to it.
type Equipment struct {
	Display string   `yaml:"display" json:"display"`
	Aliases []string `yaml:"aliases" json:"aliases"`
}

type Catalog struct {
	Equipment map[string]Equipment `yaml:"equipment" json:"equipment"`
}

func Load(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := ioutil.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCatalog(), err
	}
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, err
	}
	if len(cat.Equipment) == 0 {
		return Catalog{}, fmt.Errorf("equipment catalog empty")
	}
	return cat, nil
}

// Normalize maps a spoken or free-text equipment name to its canonical
// key. Matching is case-insensitive across keys, display names and
// aliases.
func (c Catalog) Normalize(term string) (string, bool) {
	term = strings.TrimSpace(term)
	if term == "" || c.Equipment == nil {
		return "", false
	}
	if _, ok := c.Equipment[strings.ToLower(term)]; ok {
		return strings.ToLower(term), true
	}
	for key, eq := range c.Equipment {
		if strings.EqualFold(key, term) || strings.EqualFold(eq.Display, term) {
			return key, true
		}
		for _, alias := range eq.Aliases {
			if strings.EqualFold(alias, term) {
				return key, true
			}
		}
	}
	return "", false
}

// Display returns the human-readable name for a canonical key, or the
// key itself when unknown.
func (c Catalog) Display(key string) string {
	if eq, ok := c.Equipment[key]; ok {
		return eq.Display
	}
	return key
}

func DefaultCatalog() Catalog {
	return Catalog{Equipment: map[string]Equipment{
		"dry_van": {
			Display: "Dry Van",
			Aliases: []string{"van", "dry", "53 van", "box trailer"},
		},
		"reefer": {
			Display: "Reefer",
			Aliases: []string{"refrigerated", "temp controlled", "temperature controlled"},
		},
		"flatbed": {
			Display: "Flatbed",
			Aliases: []string{"flat", "open deck"},
		},
		"step_deck": {
			Display: "Step Deck",
			Aliases: []string{"stepdeck", "drop deck"},
		},
		"power_only": {
			Display: "Power Only",
			Aliases: []string{"power", "tractor only"},
		},
		"hotshot": {
			Display: "Hotshot",
			Aliases: []string{"hot shot"},
		},
	}}
}
