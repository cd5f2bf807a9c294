// Package persona manages the selectable bot personalities. A built-in set
// ships embedded in the binary; extra presets can be dropped as YAML files
// into a user directory and override built-ins with the same ID.
package persona

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona is one selectable personality. Selecting it stores Instruction as
// the user's personal system instruction.
type Persona struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Instruction string `yaml:"instruction" json:"instruction"`
}

//go:embed presets.yaml
var presetsYAML []byte

// Builtin returns the embedded preset list. The embedded file is validated
// at startup, so a parse failure here is a build defect.
func Builtin() ([]Persona, error) {
	var doc struct {
		Personas []Persona `yaml:"personas"`
	}
	if err := yaml.Unmarshal(presetsYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse embedded personas: %w", err)
	}
	return doc.Personas, nil
}

// LoadFromDirectory loads persona presets from YAML files in a directory.
// Files must have .yaml or .yml extension; each holds a single Persona.
func LoadFromDirectory(dir string, logger *slog.Logger) ([]Persona, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug("personas directory does not exist, skipping", "dir", dir)
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read personas dir: %w", err)
	}

	var personas []Persona
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("cannot read persona file", "path", path, "err", err)
			continue
		}

		var p Persona
		if err := yaml.Unmarshal(data, &p); err != nil {
			logger.Warn("cannot parse persona file", "path", path, "err", err)
			continue
		}

		if p.ID == "" {
			p.ID = strings.TrimSuffix(name, filepath.Ext(name))
		}
		if strings.TrimSpace(p.Instruction) == "" {
			logger.Warn("persona has no instruction, skipping", "path", path)
			continue
		}

		logger.Info("loaded user persona", "id", p.ID, "path", path)
		personas = append(personas, p)
	}

	return personas, nil
}

// Catalog merges built-in presets with user-directory presets. A user
// persona with a built-in's ID replaces it. Pass dir == "" to skip the
// directory scan. Result is sorted by ID for stable listings.
func Catalog(dir string, logger *slog.Logger) ([]Persona, error) {
	builtin, err := Builtin()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Persona, len(builtin))
	order := make([]string, 0, len(builtin))
	for _, p := range builtin {
		byID[p.ID] = p
		order = append(order, p.ID)
	}

	if dir != "" {
		extra, err := LoadFromDirectory(dir, logger)
		if err != nil {
			return nil, err
		}
		for _, p := range extra {
			if _, exists := byID[p.ID]; !exists {
				order = append(order, p.ID)
			}
			byID[p.ID] = p
		}
	}

	sort.Strings(order)
	out := make([]Persona, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, nil
}

// Find returns the persona with the given ID, or nil.
func Find(personas []Persona, id string) *Persona {
	for i := range personas {
		if personas[i].ID == id {
			return &personas[i]
		}
	}
	return nil
}
