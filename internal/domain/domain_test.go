package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseTransactionType(t *testing.T) {
	tests := []struct {
		in     string
		want   TransactionType
		wantOK bool
	}{
		{"debit", TypeDebit, true},
		{" Credit ", TypeCredit, true},
		{"IGNORE", TypeIgnore, true},
		{"refund", TypeUnknown, false},
		{"", TypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTransactionType(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestParseContext(t *testing.T) {
	got, ok := ParseContext("Business")
	assert.True(t, ok)
	assert.Equal(t, ContextBusiness, got)

	got, ok = ParseContext("urgent")
	assert.False(t, ok)
	assert.Equal(t, ContextUnknown, got)
}

func TestCategory_UnmarshalJSON(t *testing.T) {
	var cfg ReferenceConfig
	raw := `{"categories": ["Comida", {"name": "Hogar", "subcategories": ["Mercado", "Servicios"]}], "accounts": ["Visa"], "currencies": ["COP"]}`

	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	require.Len(t, cfg.Categories, 2)
	assert.Equal(t, Category{Name: "Comida"}, cfg.Categories[0])
	assert.Equal(t, []string{"Mercado", "Servicios"}, cfg.Categories[1].Subcategories)
	assert.Equal(t, []string{"Comida", "Hogar"}, cfg.CategoryNames())
	assert.False(t, cfg.IsEmpty())
}

func TestCategory_UnmarshalYAML(t *testing.T) {
	raw := `
categories:
  - Comida
  - name: Transporte
    subcategories: [Taxi, Bus]
accounts: [Visa]
`
	var cfg ReferenceConfig
	require.NoError(t, yaml.Unmarshal([]byte(raw), &cfg))
	require.Len(t, cfg.Categories, 2)
	assert.Equal(t, "Comida", cfg.Categories[0].Name)
	assert.Equal(t, []string{"Taxi", "Bus"}, cfg.Categories[1].Subcategories)
	assert.Empty(t, cfg.Currencies)
}

func TestMessage_ReceivedAt(t *testing.T) {
	m := Message{InternalDate: 1709634120000}
	assert.True(t, m.ReceivedAt().Equal(time.UnixMilli(1709634120000)))
	assert.True(t, Message{}.ReceivedAt().IsZero())
}
