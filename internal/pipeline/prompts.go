package pipeline

import (
	"strconv"
	"strings"

	"github.com/dvloznov/gmail-finance-sync/internal/domain"
)

// SystemInstruction constrains every reply to bare JSON.
const SystemInstruction = "You only reply with one valid JSON object. No explanations, no Markdown."

// BuildExtractionPrompt embeds the reference lists, the per-field rules and
// the (already truncated) message text.
func BuildExtractionPrompt(text string, ref domain.ReferenceConfig, fb Fallbacks) string {
	var b strings.Builder

	b.WriteString("You are an automated financial assistant that reads payment receipts and bank notification emails.\n")
	b.WriteString("Extract the transaction described in the email below and return ONLY a valid JSON object.\n")
	b.WriteString("Ignore signatures, greetings, legal notes and advertising. Focus on the transaction: who charged and how much.\n")
	b.WriteString("If the email notifies a payment YOU made, the type is \"debit\".\n")
	b.WriteString("VERY IMPORTANT: if the email says the transaction was not successful (\"rechazada\", \"fallida\", ")
	b.WriteString("\"no exitosa\", \"declinada\", declined, failed), return type \"ignore\".\n\n")

	b.WriteString("Field rules:\n")
	b.WriteString("- type: \"debit\" (expense), \"credit\" (income) or \"ignore\" (failed or declined transaction).\n")
	b.WriteString("- amount: the exact numeric amount, positive, without currency symbols or thousands separators.\n")
	b.WriteString("- title: a very short summary of the concept or merchant.\n")
	b.WriteString("- currency: pick from " + quoteList(ref.Currencies) + ", or \"" + fb.Currency + "\" if the text says $ or pesos.\n")
	b.WriteString("- category: pick from " + quoteList(ref.CategoryNames()) + ". If none applies use \"" + fb.Category + "\".\n")
	if subs := subcategoryLines(ref); subs != "" {
		b.WriteString("- subcategory: optional, only from the chosen category:\n")
		b.WriteString(subs)
	}
	b.WriteString("- card: pick from " + quoteList(ref.Accounts) + " according to the email.\n")
	b.WriteString("- context: \"personal\" or \"business\", \"" + string(fb.Context) + "\" by default.\n")
	b.WriteString("- date: the date the transaction HAPPENED, taken from the email body, strictly \"YYYY-MM-DD\".\n\n")

	b.WriteString("Email text:\n\"")
	b.WriteString(text)
	b.WriteString("\"\n\n")

	b.WriteString("Print only the JSON object. Expected format:\n")
	b.WriteString(`{"type": "", "amount": 0, "title": "", "currency": "", "category": "", "subcategory": "", "card": "", "context": "", "date": ""}`)
	b.WriteString("\n\nIf the transaction was not successful:\n")
	b.WriteString(`{"type": "ignore"}`)
	b.WriteString("\n")

	return b.String()
}

func quoteList(items []string) string {
	if len(items) == 0 {
		return "[] (none configured)"
	}
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = strconv.Quote(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func subcategoryLines(ref domain.ReferenceConfig) string {
	var b strings.Builder
	for _, c := range ref.Categories {
		if len(c.Subcategories) == 0 {
			continue
		}
		b.WriteString("    " + strconv.Quote(c.Name) + ": " + quoteList(c.Subcategories) + "\n")
	}
	return b.String()
}
