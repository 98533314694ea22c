package pipeline

import (
	"strings"
	"time"
	"unicode"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallbacks are the values used when the model leaves a field out.
type Fallbacks struct {
	Type     domain.TransactionType
	Currency string
	Title    string
	Category string
	Card     string
	Context  domain.Context
	Comments string

	// Location is where extracted calendar dates are pinned to midday.
	Location *time.Location
}

// DefaultFallbacks mirrors the configuration defaults.
func DefaultFallbacks() Fallbacks {
	return Fallbacks{
		Type:     domain.TypeDebit,
		Currency: "COP",
		Title:    "Sin concepto especificado",
		Category: "general",
		Card:     "general",
		Context:  domain.ContextPersonal,
		Comments: DefaultComments,
		Location: time.Local,
	}
}

// Normalizer reconciles a Candidate with the reference lists and fallbacks.
type Normalizer struct {
	fb Fallbacks
}

// NewNormalizer creates a Normalizer. Unset enum fallbacks get the defaults.
func NewNormalizer(fb Fallbacks) *Normalizer {
	def := DefaultFallbacks()
	if _, ok := domain.ParseTransactionType(string(fb.Type)); !ok || fb.Type == domain.TypeIgnore {
		fb.Type = def.Type
	}
	if _, ok := domain.ParseContext(string(fb.Context)); !ok {
		fb.Context = def.Context
	}
	if fb.Location == nil {
		fb.Location = def.Location
	}
	return &Normalizer{fb: fb}
}

// Normalize returns the committable record, or ignored=true when the model
// classified the message as a failed or declined transaction. fallback is the
// message receipt time.
func (n *Normalizer) Normalize(c domain.Candidate, ref domain.ReferenceConfig, fallback time.Time) (tx domain.Transaction, ignored bool) {
	if c.Type == domain.TypeIgnore {
		return domain.Transaction{}, true
	}

	txType := c.Type
	if txType == domain.TypeUnknown {
		txType = n.fb.Type
	}
	txContext := c.Context
	if txContext == domain.ContextUnknown {
		txContext = n.fb.Context
	}

	amount := 0.0
	if c.Amount != nil {
		amount = c.Amount.Abs().InexactFloat64()
	}

	category := canonical(orDefault(c.Category, n.fb.Category), ref.CategoryNames())

	return domain.Transaction{
		Type:        string(txType),
		Amount:      amount,
		Currency:    canonical(orDefault(c.Currency, n.fb.Currency), ref.Currencies),
		Title:       orDefault(c.Title, n.fb.Title),
		Category:    category,
		Subcategory: subcategoryOf(ref, category, c.Subcategory),
		Card:        canonical(orDefault(c.Card, n.fb.Card), ref.Accounts),
		Comments:    n.fb.Comments,
		Context:     string(txContext),
		Date:        n.resolveDate(c.Date, fallback),
	}, false
}

// resolveDate pins a parsable calendar date to midday, otherwise returns fallback.
func (n *Normalizer) resolveDate(raw string, fallback time.Time) time.Time {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "T "); i != -1 {
		s = s[:i]
	}
	if s == "" {
		return fallback
	}

	d, err := civil.ParseDate(s)
	if err != nil {
		return fallback
	}
	return time.Date(d.Year, d.Month, d.Day, middayHour, 0, 0, 0, n.fb.Location)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

// canonical returns the reference spelling of v when one matches ignoring
// case and accents, else v unchanged.
func canonical(v string, options []string) string {
	key := fold(v)
	for _, o := range options {
		if fold(o) == key {
			return o
		}
	}
	return v
}

func subcategoryOf(ref domain.ReferenceConfig, category, sub string) string {
	if strings.TrimSpace(sub) == "" {
		return ""
	}
	for _, c := range ref.Categories {
		if c.Name != category {
			continue
		}
		key := fold(sub)
		for _, s := range c.Subcategories {
			if fold(s) == key {
				return s
			}
		}
	}
	return ""
}

// fold lower-cases s and strips combining marks so "Alimentación" matches "alimentacion".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		out = strings.TrimSpace(s)
	}
	return cases.Fold().String(out)
}
