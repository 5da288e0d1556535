// Package formula provides the predefined financial formula registry used by
// the formula-helper endpoint. Templates are loaded once at startup and
// read-only afterwards.
package formula

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Template is one predefined formula.
type Template struct {
	Formula     string `json:"formula"`
	Description string `json:"description"`
}

// Registry holds the loaded templates keyed by name.
type Registry struct {
	templates map[string]Template
}

// longFormAliases maps spelled-out formula names to registry keys.
var longFormAliases = map[string]string{
	"NET PRESENT VALUE":       "NPV",
	"INTERNAL RATE OF RETURN": "IRR",
	"RETURN ON EQUITY":        "ROE",
	"RETURN ON ASSETS":        "ROA",
	"COMPOUND ANNUAL GROWTH RATE": "CAGR",
	"RETURN ON INVESTMENT":        "ROI",
	"WEIGHTED AVERAGE COST OF CAPITAL": "WACC",
	"EARNINGS BEFORE INTEREST TAXES DEPRECIATION AMORTIZATION": "EBITDA_Margin",
	"CURRENT RATIO":  "Current_Ratio",
	"DEBT TO EQUITY": "Debt_to_Equity",
	"DIVIDEND YIELD": "Dividend_Yield",
}

// Load reads templates from a JSON file. A missing file yields an empty
// registry rather than an error: the formula helper then always falls back
// to generation.
func Load(path string) (*Registry, error) {
	reg := &Registry{templates: map[string]Template{}}
	if path == "" {
		return reg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return reg, nil
		}
		return nil, fmt.Errorf("read formula templates: %w", err)
	}

	if err := json.Unmarshal(data, &reg.templates); err != nil {
		return nil, fmt.Errorf("parse formula templates: %w", err)
	}
	return reg, nil
}

// Len returns the number of loaded templates.
func (r *Registry) Len() int {
	return len(r.templates)
}

// Names returns the template names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the template with the given name, case-insensitively.
func (r *Registry) Get(name string) (string, Template, bool) {
	upper := strings.ToUpper(name)
	for key, tpl := range r.templates {
		if strings.ToUpper(key) == upper {
			return key, tpl, true
		}
	}
	return "", Template{}, false
}

// Match finds the template key best matching a user prompt: direct key
// match first, then substring containment in either direction, then the
// long-form alias table. Returns empty when nothing matches.
func (r *Registry) Match(prompt string) string {
	upper := strings.ToUpper(strings.TrimSpace(prompt))
	if upper == "" {
		return ""
	}

	for _, key := range r.Names() {
		if strings.ToUpper(key) == upper {
			return key
		}
	}

	for _, key := range r.Names() {
		keyUpper := strings.ToUpper(key)
		if strings.Contains(upper, keyUpper) || strings.Contains(keyUpper, upper) {
			return key
		}
	}

	for phrase, key := range longFormAliases {
		if strings.Contains(upper, phrase) {
			if _, _, ok := r.Get(key); ok {
				return key
			}
		}
	}

	return ""
}
