package llm

import (
	"fmt"
	"strings"
)

// Family is the prompt-template family a bill type maps to. Exactly two are
// recognized; everything else is an unsupported document type.
type Family string

const (
	FamilyInvoice Family = "invoice"
	FamilyExpense Family = "expense"
)

// familyAliases maps lowercased bill_type labels to their template family.
var familyAliases = map[string]Family{
	"invoice":        FamilyInvoice,
	"invoices":       FamilyInvoice,
	"bill":           FamilyInvoice,
	"utility bill":   FamilyInvoice,
	"expense":        FamilyExpense,
	"expenses":       FamilyExpense,
	"receipt":        FamilyExpense,
	"expense report": FamilyExpense,
}

// ResolveFamily matches billType case-insensitively against the known
// aliases. ok is false for unrecognized types, including "Unknown" — the
// caller must not guess a template.
func ResolveFamily(billType string) (Family, bool) {
	f, ok := familyAliases[strings.ToLower(strings.TrimSpace(billType))]
	return f, ok
}

// maxPromptText caps how much OCR text is embedded in a prompt.
const maxPromptText = 6000

// ClassificationPrompt asks for bill_type/bill_subtype as JSON.
func ClassificationPrompt(ocrText string) string {
	var b strings.Builder
	b.WriteString("You are a document classifier for scanned bills and receipts. ")
	b.WriteString("Analyze the text below and classify the document.\n\n")
	b.WriteString("Return ONLY a JSON object with exactly these keys:\n")
	b.WriteString(`- "bill_type": "invoice" or "expense"` + "\n")
	b.WriteString(`- "bill_subtype": a short category such as "utility", "food", "travel", "services"` + "\n\n")
	b.WriteString("Text extracted from the document:\n")
	b.WriteString(clip(ocrText))
	return b.String()
}

// ExtractionPrompt asks for the structured field map for the given family.
func ExtractionPrompt(family Family, ocrText string) string {
	var b strings.Builder
	b.WriteString("You are a data extraction assistant for accounting documents.\n")
	switch family {
	case FamilyInvoice:
		b.WriteString("The document is an invoice. Extract a JSON object with fields such as ")
		b.WriteString(`"vendor", "invoice_number", "invoice_date" (YYYY-MM-DD), "due_date", `)
		b.WriteString(`"line_items" (array of {description, quantity, unit_price, amount}), `)
		b.WriteString(`"subtotal", "tax", "total", "currency".` + "\n")
	case FamilyExpense:
		b.WriteString("The document is an expense receipt. Extract a JSON object with fields such as ")
		b.WriteString(`"merchant", "date" (YYYY-MM-DD), "category", "payment_method", `)
		b.WriteString(`"items" (array of {description, amount}), "subtotal", "tax", "tip", "total", "currency".` + "\n")
	}
	b.WriteString("Omit fields that are not visible. Never output null. Return ONLY JSON.\n\n")
	b.WriteString("Text extracted from the document:\n")
	b.WriteString(clip(ocrText))
	return b.String()
}

// TransformationPrompt asks for the NetSuite payload derived from the
// extracted fields, serialized as JSON, for the given family.
func TransformationPrompt(family Family, extractedJSON string) string {
	var b strings.Builder
	b.WriteString("You are an integration assistant producing NetSuite-ready payloads.\n")
	switch family {
	case FamilyInvoice:
		b.WriteString("Map the extracted invoice fields below to a NetSuite vendor bill payload: ")
		b.WriteString(`a JSON object with "record_type": "vendorbill", "entity" (vendor), "trandate", `)
		b.WriteString(`"duedate", "memo", "currency", and "expense_lines" (array of {account, amount, memo}).` + "\n")
	case FamilyExpense:
		b.WriteString("Map the extracted expense fields below to a NetSuite expense report payload: ")
		b.WriteString(`a JSON object with "record_type": "expensereport", "entity" (employee placeholder), `)
		b.WriteString(`"trandate", "memo", "currency", and "expense_lines" (array of {category, amount, memo}).` + "\n")
	}
	b.WriteString("Return ONLY JSON. Omit fields you cannot derive.\n\n")
	b.WriteString("Extracted fields:\n")
	b.WriteString(clip(extractedJSON))
	return b.String()
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxPromptText {
		return fmt.Sprintf("%s\n…(truncated, %d bytes total)", s[:maxPromptText], len(s))
	}
	return s
}
