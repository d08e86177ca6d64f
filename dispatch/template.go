package dispatch

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/alumicraft/mailroom"
)

// Candidate field lists scanned in order; first present non-empty wins.
var (
	dateFieldCandidates = []string{
		"posting_date",
		"transaction_date",
		"application_date",
		"repayment_date",
		"creation",
	}
	amountFieldCandidates = []string{
		"grand_total",
		"total",
		"loan_amount",
		"total_payment",
		"outstanding_amount",
		"paid_amount",
		"total_amount",
	}
	partyFieldCandidates = []string{
		"customer_name",
		"party_name",
		"applicant_name",
		"borrower_name",
		"supplier_name",
		"title",
	}
)

// maxTemplateItems caps the line items exposed to templates; anything past
// the cap is silently truncated while items_count keeps the real total.
const maxTemplateItems = 5

// fallbackCurrency is used when neither the document nor the host store
// declares one.
const fallbackCurrency = "USD"

// copiedFieldKinds is the allow-list of scalar field kinds copied verbatim
// into the template data, bridging document types with no dedicated code.
var copiedFieldKinds = map[mailroom.FieldKind]bool{
	mailroom.FieldData:     true,
	mailroom.FieldLink:     true,
	mailroom.FieldSelect:   true,
	mailroom.FieldInt:      true,
	mailroom.FieldFloat:    true,
	mailroom.FieldCurrency: true,
	mailroom.FieldDate:     true,
	mailroom.FieldDatetime: true,
	mailroom.FieldText:     true,
}

// BuildTemplateData builds the flat mapping rendered into the email body.
// It always contains the reserved keys (document_type, document_number,
// company_name, total_amount, subject, ...) plus every allow-listed scalar
// field of the document.
func BuildTemplateData(
	doc *mailroom.Document,
	schema *mailroom.Schema,
	company *mailroom.CompanyInfo,
	customMessage string,
	defaultCurrency string,
	baseURL string,
) mailroom.TemplateData {
	cur := doc.Str("currency")
	if cur == "" {
		cur = defaultCurrency
	}
	if cur == "" {
		cur = fallbackCurrency
	}

	companyName := ""
	if company != nil {
		companyName = company.CompanyName
	}

	data := mailroom.TemplateData{
		"document_type":   doc.Doctype,
		"document_number": doc.Name,
		"document_name":   doc.Name,
		"company_name":    companyName,
		"custom_message":  customMessage,
		"currency":        cur,
		"document_link":   documentLink(baseURL, doc.Doctype, doc.Name),
	}
	if company != nil {
		data["company_logo"] = company.Logo
		data["company_address"] = company.Address
		data["company_phone"] = company.Phone
		data["company_email"] = company.Email
	}

	data["document_date"] = extractDateField(doc)
	data["total_amount"] = extractAmountField(doc, cur)

	party := extractPartyName(doc)
	data["customer_name"] = party
	data["party_name"] = party

	subjectCompany := companyName
	if subjectCompany == "" {
		subjectCompany = "Company"
	}
	data["subject"] = fmt.Sprintf("%s %s from %s", doc.Doctype, doc.Name, subjectCompany)

	copyScalarFields(data, doc, schema, cur)

	data["items"] = extractItemsSummary(doc, cur)
	data["items_count"] = len(doc.Items)

	return data
}

// copyScalarFields copies every allow-listed field into the mapping,
// formatting dates and currency values on the way.
func copyScalarFields(data mailroom.TemplateData, doc *mailroom.Document, schema *mailroom.Schema, cur string) {
	if schema == nil {
		return
	}
	for name, meta := range schema.Fields {
		value, ok := doc.Fields[name]
		if !ok || value == nil || !copiedFieldKinds[meta.Kind] {
			continue
		}
		switch meta.Kind {
		case mailroom.FieldDate, mailroom.FieldDatetime:
			data[name] = FormatDate(value)
		case mailroom.FieldCurrency:
			if amount, isNum := doc.Float(name); isNum && amount != 0 {
				data[name] = FormatMoney(amount, cur)
			} else {
				data[name] = ""
			}
		default:
			data[name] = value
		}
	}
}

// extractDateField returns the formatted document date from the first
// present candidate field. All absent yields "", not an error.
func extractDateField(doc *mailroom.Document) string {
	for _, field := range dateFieldCandidates {
		if doc.Has(field) {
			return FormatDate(doc.Fields[field])
		}
	}
	return ""
}

// extractAmountField returns the formatted total from the first present
// candidate field.
func extractAmountField(doc *mailroom.Document, cur string) string {
	for _, field := range amountFieldCandidates {
		if amount, ok := doc.Float(field); ok && amount != 0 {
			return FormatMoney(amount, cur)
		}
	}
	return ""
}

// extractPartyName returns the display name from the first present
// candidate field.
func extractPartyName(doc *mailroom.Document) string {
	for _, field := range partyFieldCandidates {
		if v := doc.Str(field); v != "" {
			return v
		}
	}
	return ""
}

// itemSummary is one template-facing line item row.
type itemSummary struct {
	ItemName string  `json:"item_name"`
	Qty      float64 `json:"qty"`
	Rate     string  `json:"rate"`
	Amount   string  `json:"amount"`
}

// extractItemsSummary returns up to maxTemplateItems rows for documents
// with an items collection.
func extractItemsSummary(doc *mailroom.Document, cur string) []itemSummary {
	summary := []itemSummary{}
	for i, item := range doc.Items {
		if i >= maxTemplateItems {
			break
		}
		name := item.ItemName
		if name == "" {
			name = item.Description
		}
		summary = append(summary, itemSummary{
			ItemName: name,
			Qty:      item.Qty,
			Rate:     FormatMoney(item.Rate, cur),
			Amount:   FormatMoney(item.Amount, cur),
		})
	}
	return summary
}

// subjectTokenPattern matches {{variable}} tokens in subject templates.
var subjectTokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// RenderSubjectTemplate renders a configured subject template by simple
// variable substitution against the document fields and company name.
// Tokens look like {{field}}, {{doc.field}} or {{company}}. No code
// execution. An empty render falls back to "{type} {id}".
func RenderSubjectTemplate(tmpl string, doc *mailroom.Document, companyName string) string {
	out := subjectTokenPattern.ReplaceAllStringFunc(tmpl, func(token string) string {
		name := strings.TrimSpace(strings.Trim(token, "{}"))
		switch {
		case name == "company":
			return companyName
		case name == "name", name == "doc.name":
			return doc.Name
		case strings.HasPrefix(name, "doc."):
			return stringifyField(doc, strings.TrimPrefix(name, "doc."))
		default:
			return stringifyField(doc, name)
		}
	})
	if strings.TrimSpace(out) == "" {
		return fmt.Sprintf("%s %s", doc.Doctype, doc.Name)
	}
	return out
}

func stringifyField(doc *mailroom.Document, field string) string {
	v, ok := doc.Fields[field]
	if !ok || v == nil {
		return ""
	}
	if s, isStr := v.(string); isStr {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// FormatMoney formats an amount with the currency symbol and locale-aware
// digit grouping, e.g. "$1,250.00".
func FormatMoney(amount float64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		p := message.NewPrinter(language.AmericanEnglish)
		return p.Sprintf("%s %v", code,
			number.Decimal(amount, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	}
	p := message.NewPrinter(language.AmericanEnglish)
	return p.Sprintf("%v%v", currency.Symbol(unit),
		number.Decimal(amount, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// Date layouts accepted from the host store, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// displayDateLayout is the human-facing date format used in emails.
const displayDateLayout = "January 2, 2006"

// FormatDate formats a host-store date value for display. Unparseable
// values pass through unchanged rather than erroring.
func FormatDate(value any) string {
	switch v := value.(type) {
	case time.Time:
		return v.Format(displayDateLayout)
	case string:
		if v == "" {
			return ""
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.Format(displayDateLayout)
			}
		}
		return v
	default:
		return ""
	}
}

// documentLink builds the host-system URL for a document.
func documentLink(baseURL, doctype, name string) string {
	if baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/app/%s/%s", strings.TrimSuffix(baseURL, "/"), scrub(doctype), name)
}

// scrub converts a doctype label to its URL/tag form: lower case with
// underscores.
func scrub(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "_")
}
