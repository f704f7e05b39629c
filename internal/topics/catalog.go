// Package topics defines the canonical policy-area catalog: the topics
// users can follow, the default list substituted when a stored
// interests value cannot be parsed, and the search keywords each topic
// expands to in the news query.
package topics

import (
	"bytes"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed topics.yaml
var catalogYAML []byte

// Catalog is the parsed topic configuration.
type Catalog struct {
	// DefaultTopics is used whenever a user's stored interests value is
	// missing or malformed. Never empty in a valid catalog.
	DefaultTopics []string `yaml:"default_topics"`

	// Topics maps canonical policy-area slugs to their metadata.
	Topics map[string]Topic `yaml:"topics"`
}

// Topic describes one policy area.
type Topic struct {
	Label string `yaml:"label"`
	// Keywords are appended to the topic slug when building the
	// free-text news search query.
	Keywords []string `yaml:"keywords"`
}

// Load parses the embedded catalog with strict validation. Unknown
// YAML fields are rejected to catch typos in the catalog file.
func Load() (*Catalog, error) {
	var cat Catalog
	decoder := yaml.NewDecoder(bytes.NewReader(catalogYAML))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cat); err != nil {
		return nil, fmt.Errorf("failed to parse topic catalog: %w", err)
	}

	if len(cat.DefaultTopics) == 0 {
		return nil, fmt.Errorf("topic catalog missing default_topics")
	}
	if len(cat.Topics) == 0 {
		return nil, fmt.Errorf("topic catalog missing topics")
	}

	return &cat, nil
}

// SearchTerms expands interests into the term list for the news query.
// Unknown interests pass through as-is so user-entered topics still
// produce a usable query.
func (c *Catalog) SearchTerms(interests []string) []string {
	terms := make([]string, 0, len(interests))
	for _, interest := range interests {
		terms = append(terms, interest)
		if topic, ok := c.Topics[interest]; ok {
			terms = append(terms, topic.Keywords...)
		}
	}
	return terms
}
