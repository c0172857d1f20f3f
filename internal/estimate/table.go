// Package estimate projects plan cost and duration before execution.
package estimate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry holds the per-task projection for one domain/agent combination.
type Entry struct {
	// DurationMinutes is the projected wall-clock minutes for one task.
	DurationMinutes int `yaml:"duration_minutes"`
	// CostCents is the projected cost in cents for one task.
	CostCents int `yaml:"cost_cents"`
}

// DomainEntry holds the projections for one domain.
type DomainEntry struct {
	// Default applies to any agent in the domain without a specific entry.
	Default *Entry `yaml:"default,omitempty"`
	// Agents maps required-agent tags to their projections.
	Agents map[string]Entry `yaml:"agents,omitempty"`
}

// Table is a static cost/duration table keyed by domain and required agent.
type Table struct {
	// Default applies when neither domain nor agent matches.
	Default Entry `yaml:"default"`
	// Domains maps domain names to their projections.
	Domains map[string]DomainEntry `yaml:"domains,omitempty"`
}

// DefaultTable returns the built-in projections used when no cost table
// file is configured.
func DefaultTable() *Table {
	return &Table{
		Default: Entry{DurationMinutes: 5, CostCents: 100},
		Domains: map[string]DomainEntry{
			"research":    {Default: &Entry{DurationMinutes: 10, CostCents: 150}},
			"copywriting": {Default: &Entry{DurationMinutes: 8, CostCents: 120}},
			"design":      {Default: &Entry{DurationMinutes: 15, CostCents: 300}},
			"engineering": {Default: &Entry{DurationMinutes: 20, CostCents: 400}},
			"marketing":   {Default: &Entry{DurationMinutes: 6, CostCents: 110}},
			"analysis":    {Default: &Entry{DurationMinutes: 12, CostCents: 200}},
		},
	}
}

// LoadTable reads a cost table from a YAML file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cost table: %w", err)
	}

	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse cost table: %w", err)
	}

	if t.Default.DurationMinutes == 0 && t.Default.CostCents == 0 {
		d := DefaultTable()
		t.Default = d.Default
	}

	return &t, nil
}

// Lookup resolves the projection for a domain/agent pair, falling back
// from agent entry to domain default to the table default.
func (t *Table) Lookup(domain, requiredAgent string) Entry {
	if de, ok := t.Domains[domain]; ok {
		if e, ok := de.Agents[requiredAgent]; ok {
			return e
		}
		if de.Default != nil {
			return *de.Default
		}
	}
	return t.Default
}
