package bigquery

import (
	"encoding/json"
	"fmt"

	"github.com/dvloznov/gmail-finance-sync/internal/domain"
)

// SettingsRow is one reference configuration document. Categories are read
// back as serialized JSON because entries are either names or objects.
type SettingsRow struct {
	SettingsID     string   `bigquery:"settings_id"`
	CategoriesJSON string   `bigquery:"categories_json"`
	Accounts       []string `bigquery:"accounts"`
	Currencies     []string `bigquery:"currencies"`
}

// ToReferenceConfig decodes the row.
func (r *SettingsRow) ToReferenceConfig() (domain.ReferenceConfig, error) {
	ref := domain.ReferenceConfig{
		Accounts:   r.Accounts,
		Currencies: r.Currencies,
	}
	if r.CategoriesJSON == "" || r.CategoriesJSON == "null" {
		return ref, nil
	}
	if err := json.Unmarshal([]byte(r.CategoriesJSON), &ref.Categories); err != nil {
		return domain.ReferenceConfig{}, fmt.Errorf("settings %s: categories: %w", r.SettingsID, err)
	}
	return ref, nil
}
