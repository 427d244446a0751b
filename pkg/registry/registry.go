// pkg/registry/registry.go

// Package registry holds the OCAP node registry: the known styles, errors,
// defects and operations that queries are matched against.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Registry struct {
	Style     []string `json:"style"`
	Error     []string `json:"error"`
	Defect    []string `json:"defect"`
	Operation []string `json:"operation"`
}

// LoadRegistry reads a registry file. Each list comes back sorted.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Registry{}, err
	}
	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return &Registry{}, fmt.Errorf("parse registry %s: %w", path, err)
	}
	reg.sort()
	return &reg, nil
}

// New builds a registry from raw values, dropping blanks and duplicates.
func New(style, errs, defect, operation []string) *Registry {
	reg := &Registry{
		Style:     distinct(style),
		Error:     distinct(errs),
		Defect:    distinct(defect),
		Operation: distinct(operation),
	}
	reg.sort()
	return reg
}

// Save writes the registry as indented JSON, creating parent directories.
func (r *Registry) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(r.normalized(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Context renders the registry for prompt templates.
func (r *Registry) Context() string {
	data, err := json.MarshalIndent(r.normalized(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func (r *Registry) Counts() map[string]int {
	return map[string]int{
		"style":     len(r.Style),
		"error":     len(r.Error),
		"defect":    len(r.Defect),
		"operation": len(r.Operation),
	}
}

// normalized swaps nil lists for empty ones so they encode as [].
func (r *Registry) normalized() Registry {
	out := Registry{Style: r.Style, Error: r.Error, Defect: r.Defect, Operation: r.Operation}
	for _, l := range []*[]string{&out.Style, &out.Error, &out.Defect, &out.Operation} {
		if *l == nil {
			*l = []string{}
		}
	}
	return out
}

func (r *Registry) sort() {
	sort.Strings(r.Style)
	sort.Strings(r.Error)
	sort.Strings(r.Defect)
	sort.Strings(r.Operation)
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
