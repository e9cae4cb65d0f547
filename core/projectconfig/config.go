package projectconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/davidahmann/tempo/core/slotstore"
)

const (
	DefaultPath        = ".tempo/config.yaml"
	DefaultStoreDir    = ".tempo/store"
	DefaultOutboxPath  = ".tempo/outbox.jsonl"
	DefaultJournalPath = ".tempo/journal.jsonl"
)

type Config struct {
	Store   StoreDefaults   `yaml:"store"`
	Sync    SyncDefaults    `yaml:"sync"`
	Journal JournalDefaults `yaml:"journal"`
	Tasks   TaskDefaults    `yaml:"tasks"`
}

type StoreDefaults struct {
	Dir               string `yaml:"dir"`
	MeasurementsStart *int   `yaml:"measurements_start"`
	MeasurementsEnd   *int   `yaml:"measurements_end"`
}

type SyncDefaults struct {
	Outbox string `yaml:"outbox"`
	// Notify also appends Start; and End; notices to the outbox.
	Notify bool `yaml:"notify"`
}

type JournalDefaults struct {
	// Path "off" disables the journal.
	Path string `yaml:"path"`
}

type TaskDefaults struct {
	SeedDefaults bool `yaml:"seed_defaults"`
}

func Default() Config {
	configuration := Config{}
	configuration.normalize()
	return configuration
}

func Load(path string, allowMissing bool) (Config, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return Config{}, fmt.Errorf("project config path is required")
	}

	// #nosec G304 -- project config path is explicit local user input.
	content, err := os.ReadFile(trimmedPath)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read project config: %w", err)
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return Default(), nil
	}

	var configuration Config
	if err := yaml.Unmarshal(content, &configuration); err != nil {
		return Config{}, fmt.Errorf("parse project config: %w", err)
	}
	configuration.normalize()
	if _, err := configuration.Layout(); err != nil {
		return Config{}, fmt.Errorf("project config store range: %w", err)
	}
	return configuration, nil
}

// Layout is the default slot layout with the configured measurement range.
func (configuration Config) Layout() (slotstore.Layout, error) {
	layout := slotstore.DefaultLayout()
	if configuration.Store.MeasurementsStart != nil {
		layout.MeasurementsStart = slotstore.Slot(*configuration.Store.MeasurementsStart)
	}
	if configuration.Store.MeasurementsEnd != nil {
		layout.MeasurementsEnd = slotstore.Slot(*configuration.Store.MeasurementsEnd)
	}
	if err := layout.Validate(); err != nil {
		return slotstore.Layout{}, err
	}
	return layout, nil
}

func (configuration Config) JournalEnabled() bool {
	return !strings.EqualFold(configuration.Journal.Path, "off")
}

func (configuration *Config) normalize() {
	configuration.Store.Dir = filepath.Clean(defaultString(configuration.Store.Dir, DefaultStoreDir))
	configuration.Sync.Outbox = defaultString(configuration.Sync.Outbox, DefaultOutboxPath)
	configuration.Journal.Path = defaultString(configuration.Journal.Path, DefaultJournalPath)
}

func defaultString(value string, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
