package dispatch

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumicraft/mailroom"
)

func invoiceDoc() *mailroom.Document {
	return &mailroom.Document{
		Doctype:   "Sales Invoice",
		Name:      "INV-0001",
		DocStatus: mailroom.DocStatusSubmitted,
		Fields: map[string]any{
			"customer_name": "ACME Corporation",
			"grand_total":   1250.0,
			"posting_date":  "2026-08-15",
			"due_date":      "2026-09-14",
			"currency":      "USD",
		},
	}
}

func invoiceSchema() *mailroom.Schema {
	return &mailroom.Schema{
		Doctype: "Sales Invoice",
		Fields: map[string]mailroom.FieldMeta{
			"customer_name": {Name: "customer_name", Kind: mailroom.FieldData},
			"grand_total":   {Name: "grand_total", Kind: mailroom.FieldCurrency},
			"posting_date":  {Name: "posting_date", Kind: mailroom.FieldDate},
			"due_date":      {Name: "due_date", Kind: mailroom.FieldDate},
			"currency":      {Name: "currency", Kind: mailroom.FieldData},
		},
	}
}

func TestBuildTemplateData_ReservedKeys(t *testing.T) {
	company := &mailroom.CompanyInfo{CompanyName: "Alumicraft", Email: "info@alumicraft.com"}
	data := BuildTemplateData(invoiceDoc(), invoiceSchema(), company, "Thanks for your business", "USD", "https://erp.example.com")

	assert.Equal(t, "Sales Invoice", data["document_type"])
	assert.Equal(t, "INV-0001", data["document_number"])
	assert.Equal(t, "Alumicraft", data["company_name"])
	assert.Equal(t, "August 15, 2026", data["document_date"])
	assert.Equal(t, "$1,250.00", data["total_amount"])
	assert.Equal(t, "ACME Corporation", data["customer_name"])
	assert.Equal(t, "Thanks for your business", data["custom_message"])
	assert.Equal(t, "USD", data["currency"])
	assert.Equal(t, "https://erp.example.com/app/sales_invoice/INV-0001", data["document_link"])
	assert.Equal(t, "Sales Invoice INV-0001 from Alumicraft", data["subject"])
}

func TestBuildTemplateData_SchemaFieldsCopied(t *testing.T) {
	data := BuildTemplateData(invoiceDoc(), invoiceSchema(), nil, "", "USD", "")

	// Dates and currency fields are formatted on the way in.
	assert.Equal(t, "September 14, 2026", data["due_date"])
	assert.Equal(t, "$1,250.00", data["grand_total"])
	assert.Equal(t, "ACME Corporation", data["customer_name"])
}

func TestBuildTemplateData_ItemsTruncatedToFive(t *testing.T) {
	doc := invoiceDoc()
	for i := 0; i < 8; i++ {
		doc.Items = append(doc.Items, mailroom.LineItem{
			ItemName: fmt.Sprintf("Item %d", i+1),
			Qty:      1,
			Rate:     10,
			Amount:   10,
		})
	}

	data := BuildTemplateData(doc, invoiceSchema(), nil, "", "USD", "")

	items, ok := data["items"].([]itemSummary)
	require.True(t, ok)
	require.Len(t, items, 5)
	assert.Equal(t, "Item 1", items[0].ItemName)
	assert.Equal(t, "Item 5", items[4].ItemName)
	assert.Equal(t, "$10.00", items[0].Amount)
	assert.Equal(t, 8, data["items_count"])
}

func TestBuildTemplateData_CurrencyFallbackChain(t *testing.T) {
	doc := invoiceDoc()
	delete(doc.Fields, "currency")

	data := BuildTemplateData(doc, invoiceSchema(), nil, "", "EUR", "")
	assert.Equal(t, "EUR", data["currency"])

	data = BuildTemplateData(doc, invoiceSchema(), nil, "", "", "")
	assert.Equal(t, "USD", data["currency"])
}

func TestBuildTemplateData_AmountCandidateOrder(t *testing.T) {
	doc := &mailroom.Document{
		Doctype: "Loan",
		Name:    "LN-0001",
		Fields: map[string]any{
			"loan_amount":   50000.0,
			"total_payment": 55000.0,
		},
	}
	data := BuildTemplateData(doc, nil, nil, "", "USD", "")
	assert.Equal(t, "$50,000.00", data["total_amount"])
}

func TestBuildTemplateData_MissingFieldsYieldEmpty(t *testing.T) {
	doc := &mailroom.Document{Doctype: "Sales Invoice", Name: "INV-0002", Fields: map[string]any{}}
	data := BuildTemplateData(doc, nil, nil, "", "USD", "")

	assert.Equal(t, "", data["document_date"])
	assert.Equal(t, "", data["total_amount"])
	assert.Equal(t, "", data["customer_name"])
	assert.Equal(t, "Sales Invoice INV-0002 from Company", data["subject"])
}

func TestRenderSubjectTemplate(t *testing.T) {
	doc := invoiceDoc()

	subject := RenderSubjectTemplate("Invoice {{name}} from {{company}}", doc, "Alumicraft")
	assert.Equal(t, "Invoice INV-0001 from Alumicraft", subject)

	subject = RenderSubjectTemplate("{{doc.customer_name}}: {{grand_total}}", doc, "")
	assert.Equal(t, "ACME Corporation: 1250", subject)

	// Unresolvable tokens render empty; an all-empty render falls back.
	subject = RenderSubjectTemplate("{{nope}}", doc, "")
	assert.Equal(t, "Sales Invoice INV-0001", subject)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$1,250.00", FormatMoney(1250, "USD"))
	assert.Equal(t, "$0.50", FormatMoney(0.5, "USD"))
	// Unknown codes degrade to a code prefix instead of erroring.
	assert.Equal(t, "ZZZ 12.00", FormatMoney(12, "ZZZ"))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "August 15, 2026", FormatDate("2026-08-15"))
	assert.Equal(t, "August 15, 2026", FormatDate("2026-08-15 10:30:00"))
	assert.Equal(t, "August 15, 2026", FormatDate(time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "", FormatDate(""))
	assert.Equal(t, "not-a-date", FormatDate("not-a-date"))
}

func TestRenderEmailBody(t *testing.T) {
	data := BuildTemplateData(invoiceDoc(), invoiceSchema(), &mailroom.CompanyInfo{CompanyName: "Alumicraft"}, "See attached.", "USD", "https://erp.example.com")

	html, text, err := RenderEmailBody(data)
	require.NoError(t, err)
	assert.Contains(t, html, "INV-0001")
	assert.Contains(t, html, "ACME Corporation")
	assert.Contains(t, html, "$1,250.00")
	assert.Contains(t, html, "See attached.")
	assert.Contains(t, html, "https://erp.example.com/app/sales_invoice/INV-0001")
	assert.Contains(t, text, "Dear ACME Corporation,")
	assert.Contains(t, text, "Total Amount: $1,250.00")
}
