package bigquery

import (
	"testing"
	"time"

	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionRow_RoundTrip(t *testing.T) {
	tx := domain.Transaction{
		ID:              "tx-1",
		Type:            "debit",
		Amount:          45000,
		Currency:        "COP",
		Title:           "Supermercado",
		Category:        "Comida",
		Card:            "Visa",
		Comments:        "auto",
		Context:         "personal",
		Date:            time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC),
		SourceMessageID: "m1",
	}

	row := NewTransactionRow(tx)
	assert.False(t, row.SubcategoryName.Valid)
	assert.True(t, row.SourceMessageID.Valid)
	assert.Equal(t, tx, row.ToDomain())
}

func TestBuildUpdate(t *testing.T) {
	set, params, err := buildUpdate(map[string]interface{}{
		"title":    "Mercado",
		"category": "Comida",
	})
	require.NoError(t, err)

	assert.Equal(t, "category_name = @category_name, title = @title, updated_ts = @updated_ts", set)
	require.Len(t, params, 3)
	assert.Equal(t, "category_name", params[0].Name)
	assert.Equal(t, "Comida", params[0].Value)
	assert.Equal(t, "title", params[1].Name)
}

func TestBuildUpdate_Rejects(t *testing.T) {
	_, _, err := buildUpdate(nil)
	assert.Error(t, err)

	_, _, err = buildUpdate(map[string]interface{}{"transaction_id": "x"})
	assert.Error(t, err)
}

func TestSettingsRow_ToReferenceConfig(t *testing.T) {
	row := SettingsRow{
		SettingsID:     "default",
		CategoriesJSON: `["Comida", {"name": "Transporte", "subcategories": ["Taxi"]}]`,
		Accounts:       []string{"Visa"},
		Currencies:     []string{"COP"},
	}

	ref, err := row.ToReferenceConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"Comida", "Transporte"}, ref.CategoryNames())
	assert.Equal(t, []string{"Taxi"}, ref.Categories[1].Subcategories)
	assert.Equal(t, []string{"Visa"}, ref.Accounts)

	empty, err := (&SettingsRow{CategoriesJSON: "null"}).ToReferenceConfig()
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	_, err = (&SettingsRow{CategoriesJSON: "{"}).ToReferenceConfig()
	assert.Error(t, err)
}

func TestQualifiedTable(t *testing.T) {
	assert.Equal(t, "`proj.finance.transactions`", qualifiedTable("proj", "finance", "transactions"))
	assert.Equal(t, "`finance.settings`", qualifiedTable("", "finance", "settings"))
}
