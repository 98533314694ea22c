// Package reference loads the operator-maintained categories, accounts and
// currencies that extraction is constrained to.
package reference

import (
	"context"
	"fmt"
	"os"

	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	"gopkg.in/yaml.v3"
)

// FileSource reads the reference lists from a YAML file:
//
//	categories:
//	  - Comida
//	  - name: Transporte
//	    subcategories: [Taxi, Bus]
//	accounts: [Visa]
//	currencies: [COP, USD]
type FileSource struct {
	Path string
}

// Load reads and parses the file on every call so edits apply to the next cycle.
func (f FileSource) Load(ctx context.Context) (domain.ReferenceConfig, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return domain.ReferenceConfig{}, fmt.Errorf("FileSource.Load: %w", err)
	}

	var ref domain.ReferenceConfig
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return domain.ReferenceConfig{}, fmt.Errorf("FileSource.Load: parsing %s: %w", f.Path, err)
	}
	return ref, nil
}

// SettingsReader reads one settings document by id.
type SettingsReader interface {
	GetReferenceConfig(ctx context.Context, settingsID string) (domain.ReferenceConfig, error)
}

// StoreSource reads the reference lists from the settings row of the store.
type StoreSource struct {
	Reader     SettingsReader
	SettingsID string
}

// Load fetches the settings row. A missing row yields an empty configuration.
func (s StoreSource) Load(ctx context.Context) (domain.ReferenceConfig, error) {
	ref, err := s.Reader.GetReferenceConfig(ctx, s.SettingsID)
	if err != nil {
		return domain.ReferenceConfig{}, fmt.Errorf("StoreSource.Load %s: %w", s.SettingsID, err)
	}
	return ref, nil
}
