// Package event loads the read-only YAML event definitions: named, date- and
// location-bounded windows over the stored games.
package event

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gamechanger/internal/domain"
)

const dateLayout = "2006-01-02"

// Definition describes one event.
type Definition struct {
	Name            string    `json:"name"`
	Location        string    `json:"location"`
	Start           time.Time `json:"start_date"`
	End             time.Time `json:"end_date"`
	ExcludedPlayers []string  `json:"excluded_players,omitempty"`
}

// ExcludedSet returns the excluded player names as a set.
func (d Definition) ExcludedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(d.ExcludedPlayers))
	for _, name := range d.ExcludedPlayers {
		set[name] = struct{}{}
	}
	return set
}

type rawDefinition struct {
	Location        string   `yaml:"location"`
	StartDate       string   `yaml:"start_date"`
	EndDate         string   `yaml:"end_date"`
	ExcludedPlayers []string `yaml:"excluded_players"`
}

// Store is the loaded, immutable set of event definitions keyed by name.
type Store struct {
	defs map[string]Definition
}

// Load reads event definitions from a YAML file.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading events file: %w", err)
	}
	return Parse(data)
}

// Parse decodes event definitions from YAML bytes.
func Parse(data []byte) (*Store, error) {
	var raw map[string]rawDefinition
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing events file: %w", err)
	}

	defs := make(map[string]Definition, len(raw))
	for name, r := range raw {
		start, err := time.Parse(dateLayout, r.StartDate)
		if err != nil {
			return nil, fmt.Errorf("event %q: parsing start date: %w", name, err)
		}
		end, err := time.Parse(dateLayout, r.EndDate)
		if err != nil {
			return nil, fmt.Errorf("event %q: parsing end date: %w", name, err)
		}
		defs[name] = Definition{
			Name:            name,
			Location:        r.Location,
			Start:           start,
			End:             end,
			ExcludedPlayers: r.ExcludedPlayers,
		}
	}

	return &Store{defs: defs}, nil
}

// Get returns the definition of the named event.
func (s *Store) Get(name string) (Definition, error) {
	def, ok := s.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", domain.ErrEventNotFound, name)
	}
	return def, nil
}

// Names returns all event names, sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.defs))
	for name := range s.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns all definitions sorted by name.
func (s *Store) All() []Definition {
	names := s.Names()
	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		defs = append(defs, s.defs[name])
	}
	return defs
}
