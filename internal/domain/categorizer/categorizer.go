// Package categorizer assigns spending categories to transaction
// descriptions using a fixed keyword table.
//
// Matching is a simple scan: categories are tried in declaration order,
// and within a category a keyword hits on an exact phrase, a
// space-delimited word, or a plain substring of the description. The
// first category with a hit wins; an unmatched description maps to "".
package categorizer

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category pairs a name with the keywords that select it.
type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Config is the YAML shape of a keyword table file.
type Config struct {
	Categories []Category `yaml:"categories"`
}

// Categorizer scans descriptions against an ordered keyword table.
type Categorizer struct {
	categories []Category
}

// New creates a categorizer over the given table. Order matters: earlier
// categories shadow later ones.
func New(categories []Category) *Categorizer {
	return &Categorizer{categories: categories}
}

// NewDefault creates a categorizer with the built-in table.
func NewDefault() *Categorizer {
	return New(defaultCategories)
}

// LoadFile reads a keyword table from a YAML file.
func LoadFile(path string) (*Categorizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse categories file %s: %w", path, err)
	}
	if len(cfg.Categories) == 0 {
		return nil, fmt.Errorf("categories file %s defines no categories", path)
	}

	return New(cfg.Categories), nil
}

// Categorize returns the first category whose keyword list matches the
// description, or "" when nothing matches.
func (c *Categorizer) Categorize(description string) string {
	desc := strings.ToLower(strings.TrimSpace(description))
	if desc == "" {
		return ""
	}

	for _, cat := range c.categories {
		for _, keyword := range cat.Keywords {
			if keywordMatches(desc, strings.ToLower(keyword)) {
				return cat.Name
			}
		}
	}
	return ""
}

// keywordMatches covers the three match shapes. Exact-phrase and
// space-delimited hits are both substrings, so one containment check
// suffices.
func keywordMatches(desc, keyword string) bool {
	return keyword != "" && strings.Contains(desc, keyword)
}

// defaultCategories is the built-in table, used when no YAML file is
// configured.
var defaultCategories = []Category{
	{Name: "Subscriptions", Keywords: []string{"netflix", "spotify", "hulu", "disney", "prime video", "youtube premium"}},
	{Name: "Utilities", Keywords: []string{"electric", "water", "gas bill", "internet", "comcast", "xfinity", "at&t", "verizon", "t-mobile"}},
	{Name: "Groceries", Keywords: []string{"grocery", "supermarket", "whole foods", "trader joe", "safeway", "kroger", "aldi"}},
	{Name: "Transportation", Keywords: []string{"uber", "lyft", "shell", "chevron", "exxon", "parking", "transit"}},
	{Name: "Dining", Keywords: []string{"restaurant", "cafe", "coffee", "doordash", "grubhub", "pizza"}},
	{Name: "Housing", Keywords: []string{"rent", "mortgage", "hoa"}},
	{Name: "Insurance", Keywords: []string{"insurance", "geico", "allstate", "state farm"}},
	{Name: "Health", Keywords: []string{"pharmacy", "cvs", "walgreens", "clinic", "dental"}},
}
