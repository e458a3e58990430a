package queries

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml sql/*.sql
var definitionsFS embed.FS

// Definition is a saved query: its name on the query API and its SQL body.
type Definition struct {
	Name  string
	Query string
}

// Catalogue holds the predefined query tables.
type Catalogue struct {
	Tokenomics []Definition
	GameBank   []Definition
}

type catalogueFile struct {
	Tokenomics []catalogueEntry `yaml:"tokenomics"`
	GameBank   []catalogueEntry `yaml:"game_bank"`
}

type catalogueEntry struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
}

// Load parses the embedded catalogue and reads every referenced SQL file.
func Load() (*Catalogue, error) {
	raw, err := definitionsFS.ReadFile("catalogue.yaml")
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}

	var file catalogueFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}

	seen := map[string]struct{}{}
	tokenomics, err := resolve(file.Tokenomics, seen)
	if err != nil {
		return nil, err
	}
	gameBank, err := resolve(file.GameBank, seen)
	if err != nil {
		return nil, err
	}

	return &Catalogue{Tokenomics: tokenomics, GameBank: gameBank}, nil
}

func resolve(entries []catalogueEntry, seen map[string]struct{}) ([]Definition, error) {
	defs := make([]Definition, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" || e.File == "" {
			return nil, errors.New("catalogue entry needs name and file")
		}
		if _, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("duplicate query %q in catalogue", e.Name)
		}
		seen[e.Name] = struct{}{}

		body, err := definitionsFS.ReadFile(e.File)
		if err != nil {
			return nil, fmt.Errorf("read %s for query %q: %w", e.File, e.Name, err)
		}
		defs = append(defs, Definition{Name: e.Name, Query: strings.TrimSpace(string(body))})
	}
	return defs, nil
}

// Tokenomic looks up a tokenomics query by name.
func (c *Catalogue) Tokenomic(name string) (Definition, bool) {
	for _, d := range c.Tokenomics {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}
