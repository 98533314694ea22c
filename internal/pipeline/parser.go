package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrEmptyReply is returned when the model answers with no text at all.
var ErrEmptyReply = errors.New("empty reply from model")

// parseCandidate decodes a model reply into a Candidate. Any shape problem is
// an error; unknown keys are ignored.
func parseCandidate(reply string) (domain.Candidate, error) {
	if strings.TrimSpace(reply) == "" {
		return domain.Candidate{}, ErrEmptyReply
	}

	clean := cleanModelJSON(reply)
	if !strings.HasPrefix(clean, "{") {
		return domain.Candidate{}, fmt.Errorf("parseCandidate: no JSON object in reply %q", reply)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(clean)))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return domain.Candidate{}, fmt.Errorf("parseCandidate: unmarshal JSON: %w", err)
	}

	var (
		c   domain.Candidate
		err error
	)

	if c.RawType, err = getStringField(obj, "type"); err != nil {
		return domain.Candidate{}, fmt.Errorf("parseCandidate: %w", err)
	}
	c.Type, _ = domain.ParseTransactionType(c.RawType)
	if c.Type == domain.TypeIgnore {
		return c, nil
	}

	if c.Amount, err = getAmountField(obj, "amount"); err != nil {
		return domain.Candidate{}, fmt.Errorf("parseCandidate: %w", err)
	}

	fields := []struct {
		key string
		dst *string
	}{
		{"title", &c.Title},
		{"currency", &c.Currency},
		{"category", &c.Category},
		{"subcategory", &c.Subcategory},
		{"card", &c.Card},
		{"context", &c.RawContext},
		{"date", &c.Date},
	}
	for _, f := range fields {
		if *f.dst, err = getStringField(obj, f.key); err != nil {
			return domain.Candidate{}, fmt.Errorf("parseCandidate: %w", err)
		}
	}
	c.Context, _ = domain.ParseContext(c.RawContext)

	return c, nil
}

// cleanModelJSON strips Markdown fences and any chatter around the object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(strings.TrimPrefix(s, "```json"), "```")
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep only from the first '{' to the last '}'.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

// getStringField returns the trimmed value of key. Missing or null yields "".
// Numbers are accepted and rendered as text.
func getStringField(m map[string]interface{}, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case json.Number:
		return val.String(), nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

// getAmountField returns nil when the amount is missing, null or blank.
func getAmountField(m map[string]interface{}, key string) (*decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}

	var text string
	switch val := v.(type) {
	case json.Number:
		text = val.String()
	case string:
		text = strings.Map(func(r rune) rune {
			if r == '$' || r == ' ' || r == '\u00a0' {
				return -1
			}
			return r
		}, val)
		if text == "" {
			return nil, nil
		}
	default:
		return nil, fmt.Errorf("field %q has type %T, want number", key, v)
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil, fmt.Errorf("field %q: invalid amount %q: %w", key, text, err)
	}
	return &d, nil
}
