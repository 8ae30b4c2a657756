// Package feed implements the Feed Fetcher: a bounded-concurrency RSS/Atom
// poller over a static source catalogue, exposing recent(category, since).
package feed

import (
	"fmt"
	"os"

	"github.com/shanchoynoor/choynews-digest-bot/internal/item"
	"gopkg.in/yaml.v3"
)

// catalogueFile is the on-disk shape of the source catalogue, grounded on
// the teacher's internal/rss.FeedsConfig but extended with the fields a
// Source needs beyond a bare URL list.
type catalogueFile struct {
	Sources []item.Source `yaml:"sources"`
}

// LoadCatalogue reads the static 40-60 entry source registration table
// from a YAML file.
func LoadCatalogue(path string) ([]item.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalogue: %w", err)
	}
	defer f.Close()

	var cfg catalogueFile
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode catalogue: %w", err)
	}

	for i, s := range cfg.Sources {
		if s.ReliabilityWeight == 0 {
			cfg.Sources[i].ReliabilityWeight = 1.0
		}
	}

	return cfg.Sources, nil
}

// EnabledByCategory groups the enabled sources of a catalogue by category.
func EnabledByCategory(sources []item.Source) map[item.Category][]item.Source {
	out := make(map[item.Category][]item.Source)
	for _, s := range sources {
		if !s.Enabled {
			continue
		}
		out[s.Category] = append(out[s.Category], s)
	}
	return out
}
