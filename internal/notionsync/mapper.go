package notionsync

import (
	"fmt"
	"time"

	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the transactions database.
const (
	propTitle         = "Title"
	propType          = "Type"
	propAmount        = "Amount"
	propCurrency      = "Currency"
	propCategory      = "Category"
	propSubcategory   = "Subcategory"
	propCard          = "Card"
	propContext       = "Context"
	propDate          = "Date"
	propComments      = "Comments"
	propMessageID     = "Message ID"
	propTransactionID = "Transaction ID"
)

// TransactionToNotionProperties converts a transaction to Notion properties.
func TransactionToNotionProperties(tx domain.Transaction) notionapi.Properties {
	props := notionapi.Properties{
		propTitle:    titleProp(tx.Title),
		propType:     selectProp(tx.Type),
		propAmount:   notionapi.NumberProperty{Number: tx.Amount},
		propCurrency: selectProp(tx.Currency),
		propCategory: selectProp(tx.Category),
		propCard:     selectProp(tx.Card),
		propContext:  selectProp(tx.Context),
		propDate:     dateProp(tx.Date),
		propComments: richTextProp(tx.Comments),
	}

	if tx.Subcategory != "" {
		props[propSubcategory] = selectProp(tx.Subcategory)
	}
	if tx.SourceMessageID != "" {
		props[propMessageID] = richTextProp(tx.SourceMessageID)
	}
	if tx.ID != "" {
		props[propTransactionID] = richTextProp(tx.ID)
	}

	return props
}

// FieldsToNotionProperties converts a point update into Notion properties.
// Empty select values are dropped: the API rejects options without a name.
func FieldsToNotionProperties(fields map[string]interface{}) (notionapi.Properties, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	props := notionapi.Properties{}
	for k, v := range fields {
		switch k {
		case "amount":
			f, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("field %q has type %T, want float64", k, v)
			}
			props[propAmount] = notionapi.NumberProperty{Number: f}
		case "date":
			t, ok := v.(time.Time)
			if !ok {
				return nil, fmt.Errorf("field %q has type %T, want time.Time", k, v)
			}
			props[propDate] = dateProp(t)
		case "title", "comments", "type", "currency", "category", "subcategory", "card", "context":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("field %q has type %T, want string", k, v)
			}
			switch k {
			case "title":
				props[propTitle] = titleProp(s)
			case "comments":
				props[propComments] = richTextProp(s)
			default:
				if s != "" {
					props[selectNames[k]] = selectProp(s)
				}
			}
		default:
			return nil, fmt.Errorf("field %q cannot be updated", k)
		}
	}
	return props, nil
}

var selectNames = map[string]string{
	"type":        propType,
	"currency":    propCurrency,
	"category":    propCategory,
	"subcategory": propSubcategory,
	"card":        propCard,
	"context":     propContext,
}

// PageToTransaction reads a transaction back from a database page.
func PageToTransaction(page notionapi.Page) domain.Transaction {
	tx := domain.Transaction{ID: string(page.ID)}

	for name, prop := range page.Properties {
		switch p := prop.(type) {
		case *notionapi.TitleProperty:
			if name == propTitle {
				tx.Title = plainText(p.Title)
			}
		case *notionapi.RichTextProperty:
			switch name {
			case propComments:
				tx.Comments = plainText(p.RichText)
			case propMessageID:
				tx.SourceMessageID = plainText(p.RichText)
			}
		case *notionapi.NumberProperty:
			if name == propAmount {
				tx.Amount = p.Number
			}
		case *notionapi.DateProperty:
			if name == propDate && p.Date != nil && p.Date.Start != nil {
				tx.Date = time.Time(*p.Date.Start)
			}
		case *notionapi.SelectProperty:
			switch name {
			case propType:
				tx.Type = p.Select.Name
			case propCurrency:
				tx.Currency = p.Select.Name
			case propCategory:
				tx.Category = p.Select.Name
			case propSubcategory:
				tx.Subcategory = p.Select.Name
			case propCard:
				tx.Card = p.Select.Name
			case propContext:
				tx.Context = p.Select.Name
			}
		}
	}
	return tx
}

// extractTransactionID returns the store id a mirrored page was created from.
func extractTransactionID(page notionapi.Page) string {
	if prop, ok := page.Properties[propTransactionID]; ok {
		if richText, ok := prop.(*notionapi.RichTextProperty); ok {
			return plainText(richText.RichText)
		}
	}
	return ""
}

func titleProp(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{Title: []notionapi.RichText{textOf(s)}}
}

func richTextProp(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{RichText: []notionapi.RichText{textOf(s)}}
}

func selectProp(s string) notionapi.SelectProperty {
	return notionapi.SelectProperty{Select: notionapi.Option{Name: s}}
}

func dateProp(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t)
	return notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
}

func textOf(s string) notionapi.RichText {
	return notionapi.RichText{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: s},
	}
}

func plainText(rt []notionapi.RichText) string {
	out := ""
	for _, t := range rt {
		if t.PlainText != "" {
			out += t.PlainText
		} else if t.Text != nil {
			out += t.Text.Content
		}
	}
	return out
}
