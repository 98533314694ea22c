package domain

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Category is a reference category with its optional subcategories.
// Stored settings contain either bare names or {name, subcategories} objects.
type Category struct {
	Name          string   `json:"name" yaml:"name"`
	Subcategories []string `json:"subcategories,omitempty" yaml:"subcategories,omitempty"`
}

// UnmarshalJSON accepts both "Comida" and {"name": "Comida", "subcategories": [...]}.
func (c *Category) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		*c = Category{Name: name}
		return nil
	}

	type plain Category
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("category: %w", err)
	}
	*c = Category(p)
	return nil
}

// UnmarshalYAML accepts the same two shapes as UnmarshalJSON.
func (c *Category) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*c = Category{Name: value.Value}
		return nil
	}

	type plain Category
	var p plain
	if err := value.Decode(&p); err != nil {
		return fmt.Errorf("category: %w", err)
	}
	*c = Category(p)
	return nil
}

// ReferenceConfig holds the operator-maintained lists that keep model output
// consistent with stored data. Any list may be empty.
type ReferenceConfig struct {
	Categories []Category `json:"categories" yaml:"categories"`
	Accounts   []string   `json:"accounts" yaml:"accounts"`
	Currencies []string   `json:"currencies" yaml:"currencies"`
}

// CategoryNames returns the category names in their configured order.
func (r ReferenceConfig) CategoryNames() []string {
	names := make([]string, 0, len(r.Categories))
	for _, c := range r.Categories {
		names = append(names, c.Name)
	}
	return names
}

// IsEmpty reports whether no reference values are configured at all.
func (r ReferenceConfig) IsEmpty() bool {
	return len(r.Categories) == 0 && len(r.Accounts) == 0 && len(r.Currencies) == 0
}
