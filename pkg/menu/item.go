package menu

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Item is one dish or drink on the menu.
type Item struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Category    string   `yaml:"category" json:"category,omitempty"`
	Price       float64  `yaml:"price" json:"price"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Allergens   []string `yaml:"allergens,omitempty" json:"allergens,omitempty"`
}

// Text is the document embedded for semantic search.
func (i Item) Text() string {
	parts := []string{
		i.Name,
		i.Description,
		"Category: " + i.Category,
		"Price: " + strconv.FormatFloat(i.Price, 'f', -1, 64),
	}
	if len(i.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(i.Tags, ", "))
	}
	if len(i.Allergens) > 0 {
		parts = append(parts, "Allergens: "+strings.Join(i.Allergens, ", "))
	}
	return strings.Join(parts, ". ")
}

// Searcher finds menu items relevant to a caller question.
type Searcher interface {
	Search(ctx context.Context, query, language string) ([]Item, error)
}

type file struct {
	Items []Item `yaml:"items"`
}

// LoadFile reads a YAML menu with a top-level items list.
func LoadFile(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) ([]Item, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("menu: %w", err)
	}
	for idx, it := range f.Items {
		if strings.TrimSpace(it.Name) == "" {
			return nil, fmt.Errorf("menu: item %d has no name", idx)
		}
		if it.Price < 0 {
			return nil, fmt.Errorf("menu: item %q has negative price", it.Name)
		}
	}
	return f.Items, nil
}
