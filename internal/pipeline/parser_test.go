package pipeline

import (
	"errors"
	"testing"

	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare object", `{"type":"debit"}`, `{"type":"debit"}`},
		{"json fence", "```json\n{\"type\":\"debit\"}\n```", `{"type":"debit"}`},
		{"plain fence", "```\n{\"type\":\"credit\"}\n```", `{"type":"credit"}`},
		{"chatter around", "Here you go:\n{\"type\":\"ignore\"}\nThanks", `{"type":"ignore"}`},
		{"whitespace", "  \n {\"a\":1} \n", `{"a":1}`},
		{"no object", "sorry", "sorry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.raw))
		})
	}
}

func TestParseCandidate(t *testing.T) {
	c, err := parseCandidate("```json\n" + `{"type":"Debit","amount":45000,"title":" Supermercado ","currency":"COP",
		"category":"Comida","subcategory":null,"card":"Visa","context":"urgent","date":"2024-03-05"}` + "\n```")
	require.NoError(t, err)

	assert.Equal(t, domain.TypeDebit, c.Type)
	assert.Equal(t, "Debit", c.RawType)
	require.NotNil(t, c.Amount)
	assert.Equal(t, "45000", c.Amount.String())
	assert.Equal(t, "Supermercado", c.Title)
	assert.Equal(t, "Comida", c.Category)
	assert.Empty(t, c.Subcategory)
	assert.Equal(t, domain.ContextUnknown, c.Context)
	assert.Equal(t, "urgent", c.RawContext)
	assert.Equal(t, "2024-03-05", c.Date)
}

func TestParseCandidate_IgnoreShortCircuits(t *testing.T) {
	c, err := parseCandidate(`{"type":"ignore","amount":"not a number"}`)
	require.NoError(t, err)
	assert.Equal(t, domain.TypeIgnore, c.Type)
	assert.Nil(t, c.Amount)
}

func TestParseCandidate_Amounts(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    string
		wantNil bool
		wantErr bool
	}{
		{name: "missing", reply: `{"type":"debit"}`, wantNil: true},
		{name: "null", reply: `{"amount":null}`, wantNil: true},
		{name: "number", reply: `{"amount":12.5}`, want: "12.5"},
		{name: "negative", reply: `{"amount":-30}`, want: "-30"},
		{name: "string with symbol", reply: `{"amount":"$ 45000"}`, want: "45000"},
		{name: "blank string", reply: `{"amount":""}`, wantNil: true},
		{name: "garbage string", reply: `{"amount":"mucho"}`, wantErr: true},
		{name: "bool", reply: `{"amount":true}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := parseCandidate(tt.reply)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, c.Amount)
				return
			}
			require.NotNil(t, c.Amount)
			assert.Equal(t, tt.want, c.Amount.String())
		})
	}
}

func TestParseCandidate_Failures(t *testing.T) {
	_, err := parseCandidate("   ")
	assert.True(t, errors.Is(err, ErrEmptyReply))

	_, err = parseCandidate("I could not find a transaction.")
	assert.Error(t, err)

	_, err = parseCandidate(`{"type": "debit", `)
	assert.Error(t, err)

	_, err = parseCandidate(`{"title": ["a", "b"]}`)
	assert.Error(t, err)
}
