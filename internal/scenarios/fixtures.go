package scenarios

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

const scenarioRootRelativePath = "scenarios/tempo"

type Scenario struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	Tasks           []string `yaml:"tasks"`
	MeasurementsEnd int      `yaml:"measurements_end"`

	// Transport is "ok" (default), "fail" or "none".
	Transport string `yaml:"transport"`
	Steps     []Step `yaml:"steps"`
}

type Step struct {
	At     int64    `yaml:"at"`
	Action string   `yaml:"action"`
	Task   int      `yaml:"task"`
	Titles []string `yaml:"titles"`
	Expect Expect   `yaml:"expect"`
}

// Expect fields left empty are not checked. Pointer fields distinguish "expect
// zero" from "do not check".
type Expect struct {
	State         string   `yaml:"state"`
	Display       *string  `yaml:"display"`
	Elapsed       *string  `yaml:"elapsed"`
	Message       *string  `yaml:"message"`
	ErrorCategory string   `yaml:"error_category"`
	Slot          int      `yaml:"slot"`
	Closed        *bool    `yaml:"closed"`
	Payload       *string  `yaml:"payload"`
	Synced        *int     `yaml:"synced"`
	Cleared       *int     `yaml:"cleared"`
	OpenCount     *int     `yaml:"open_count"`
	Measurements  *int     `yaml:"measurements"`
	Tasks         []string `yaml:"tasks"`
}

var knownActions = map[string]struct{}{
	"start":             {},
	"interrupt":         {},
	"end":               {},
	"show_tasks":        {},
	"show_measurements": {},
	"sync":              {},
	"clear":             {},
	"replace_tasks":     {},
	"status":            {},
}

func LoadScenario(path string) (Scenario, error) {
	// #nosec G304 -- scenario paths come from the repository fixture tree.
	content, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	var scenario Scenario
	if err := yaml.Unmarshal(content, &scenario); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	switch scenario.Transport {
	case "":
		scenario.Transport = "ok"
	case "ok", "fail", "none":
	default:
		return Scenario{}, fmt.Errorf("scenario %s: unknown transport %q", scenario.Name, scenario.Transport)
	}
	if len(scenario.Steps) == 0 {
		return Scenario{}, fmt.Errorf("scenario %s has no steps", scenario.Name)
	}
	for index, step := range scenario.Steps {
		if _, ok := knownActions[step.Action]; !ok {
			return Scenario{}, fmt.Errorf("scenario %s step %d: unknown action %q", scenario.Name, index, step.Action)
		}
		if step.At <= 0 {
			return Scenario{}, fmt.Errorf("scenario %s step %d: at must be positive", scenario.Name, index)
		}
	}
	return scenario, nil
}

// LoadAll reads every scenario file under the fixture root in name order.
func LoadAll(repoRoot string) ([]Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(repoRoot, scenarioRootRelativePath, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	scenarios := make([]Scenario, 0, len(paths))
	for _, path := range paths {
		scenario, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, scenario)
	}
	return scenarios, nil
}

func findRepoRoot(startDir string) (string, error) {
	current := startDir
	for {
		candidate := filepath.Join(current, "go.mod")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("unable to locate repository root from %s", startDir)
		}
		current = parent
	}
}
