package dispatch

import (
	"bytes"
	"fmt"
	html "html/template"
	"strings"

	"github.com/alumicraft/mailroom"
)

// emailBodyTemplate is the fixed layout used when a document type has no
// provider-side template: company header, greeting, document summary table,
// optional custom message, line items, and footer. Parsed once at startup.
var emailBodyTemplate = html.Must(html.New("email_body").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0;padding:0;background-color:#f4f4f4;font-family:Arial,Helvetica,sans-serif;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="background-color:#f4f4f4;padding:24px 0;">
<tr><td align="center">
<table role="presentation" width="600" cellpadding="0" cellspacing="0" style="background-color:#ffffff;border-radius:4px;overflow:hidden;">
<tr>
<td style="background-color:#2c3e50;padding:24px 32px;">
{{if .CompanyLogo}}<img src="{{.CompanyLogo}}" alt="{{.CompanyName}}" style="max-height:48px;display:block;margin-bottom:8px;">{{end}}
<span style="color:#ffffff;font-size:20px;font-weight:bold;">{{.CompanyName}}</span>
</td>
</tr>
<tr>
<td style="padding:32px;">
<p style="font-size:15px;color:#333333;margin:0 0 16px;">Dear {{if .PartyName}}{{.PartyName}}{{else}}Customer{{end}},</p>
<p style="font-size:14px;color:#555555;margin:0 0 24px;">Please find your {{.DocumentType}} <strong>{{.DocumentNumber}}</strong> details below.</p>
<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="border:1px solid #e0e0e0;border-radius:4px;margin-bottom:24px;">
<tr>
<td style="padding:12px 16px;border-bottom:1px solid #e0e0e0;font-size:13px;color:#888888;">Document Number</td>
<td style="padding:12px 16px;border-bottom:1px solid #e0e0e0;font-size:13px;color:#333333;text-align:right;">{{.DocumentNumber}}</td>
</tr>
{{if .DocumentDate}}<tr>
<td style="padding:12px 16px;border-bottom:1px solid #e0e0e0;font-size:13px;color:#888888;">Date</td>
<td style="padding:12px 16px;border-bottom:1px solid #e0e0e0;font-size:13px;color:#333333;text-align:right;">{{.DocumentDate}}</td>
</tr>{{end}}
{{if .DueDate}}<tr>
<td style="padding:12px 16px;border-bottom:1px solid #e0e0e0;font-size:13px;color:#888888;">Due Date</td>
<td style="padding:12px 16px;border-bottom:1px solid #e0e0e0;font-size:13px;color:#333333;text-align:right;">{{.DueDate}}</td>
</tr>{{end}}
{{if .TotalAmount}}<tr>
<td style="padding:12px 16px;font-size:14px;color:#333333;font-weight:bold;">Total Amount</td>
<td style="padding:12px 16px;font-size:14px;color:#2c3e50;font-weight:bold;text-align:right;">{{.TotalAmount}}</td>
</tr>{{end}}
</table>
{{if .Items}}
<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="border:1px solid #e0e0e0;border-radius:4px;margin-bottom:24px;">
<tr style="background-color:#f8f9fa;">
<td style="padding:10px 16px;font-size:12px;color:#888888;">Item</td>
<td style="padding:10px 16px;font-size:12px;color:#888888;text-align:right;">Qty</td>
<td style="padding:10px 16px;font-size:12px;color:#888888;text-align:right;">Rate</td>
<td style="padding:10px 16px;font-size:12px;color:#888888;text-align:right;">Amount</td>
</tr>
{{range .Items}}<tr>
<td style="padding:10px 16px;font-size:13px;color:#333333;border-top:1px solid #f0f0f0;">{{.ItemName}}</td>
<td style="padding:10px 16px;font-size:13px;color:#333333;text-align:right;border-top:1px solid #f0f0f0;">{{.Qty}}</td>
<td style="padding:10px 16px;font-size:13px;color:#333333;text-align:right;border-top:1px solid #f0f0f0;">{{.Rate}}</td>
<td style="padding:10px 16px;font-size:13px;color:#333333;text-align:right;border-top:1px solid #f0f0f0;">{{.Amount}}</td>
</tr>{{end}}
{{if .MoreItems}}<tr>
<td colspan="4" style="padding:10px 16px;font-size:12px;color:#888888;border-top:1px solid #f0f0f0;">and {{.MoreItems}} more item(s)</td>
</tr>{{end}}
</table>
{{end}}
{{if .CustomMessage}}
<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="background-color:#f8f9fa;border-left:3px solid #2c3e50;margin-bottom:24px;">
<tr><td style="padding:16px;font-size:13px;color:#555555;">{{.CustomMessage}}</td></tr>
</table>
{{end}}
{{if .DocumentLink}}
<table role="presentation" cellpadding="0" cellspacing="0" style="margin-bottom:24px;">
<tr><td style="background-color:#2c3e50;border-radius:4px;">
<a href="{{.DocumentLink}}" style="display:inline-block;padding:12px 28px;color:#ffffff;font-size:14px;text-decoration:none;">View {{.DocumentType}}</a>
</td></tr>
</table>
{{end}}
<p style="font-size:13px;color:#888888;margin:0;">If you have any questions, simply reply to this email.</p>
</td>
</tr>
<tr>
<td style="background-color:#f8f9fa;padding:20px 32px;border-top:1px solid #e0e0e0;">
<p style="font-size:12px;color:#888888;margin:0 0 4px;">{{.CompanyName}}</p>
{{if .CompanyAddress}}<p style="font-size:12px;color:#aaaaaa;margin:0 0 4px;">{{.CompanyAddress}}</p>{{end}}
<p style="font-size:12px;color:#aaaaaa;margin:0;">{{if .CompanyPhone}}{{.CompanyPhone}}{{end}}{{if and .CompanyPhone .CompanyEmail}} &middot; {{end}}{{if .CompanyEmail}}{{.CompanyEmail}}{{end}}</p>
</td>
</tr>
</table>
</td></tr>
</table>
</body>
</html>
`))

// emailBodyContext is the typed view of the template data the layout
// actually renders.
type emailBodyContext struct {
	CompanyName    string
	CompanyLogo    string
	CompanyAddress string
	CompanyPhone   string
	CompanyEmail   string
	PartyName      string
	DocumentType   string
	DocumentNumber string
	DocumentDate   string
	DueDate        string
	TotalAmount    string
	CustomMessage  string
	DocumentLink   string
	Items          []itemSummary
	MoreItems      int
}

// RenderEmailBody renders the HTML body and its plain-text alternative
// from prepared template data.
func RenderEmailBody(data mailroom.TemplateData) (htmlBody, textBody string, err error) {
	bodyCtx := emailBodyContext{
		CompanyName:    data.Str("company_name"),
		CompanyLogo:    data.Str("company_logo"),
		CompanyAddress: data.Str("company_address"),
		CompanyPhone:   data.Str("company_phone"),
		CompanyEmail:   data.Str("company_email"),
		PartyName:      data.Str("party_name"),
		DocumentType:   data.Str("document_type"),
		DocumentNumber: data.Str("document_number"),
		DocumentDate:   data.Str("document_date"),
		DueDate:        data.Str("due_date"),
		TotalAmount:    data.Str("total_amount"),
		CustomMessage:  data.Str("custom_message"),
		DocumentLink:   data.Str("document_link"),
	}
	if bodyCtx.CompanyName == "" {
		bodyCtx.CompanyName = "Company"
	}
	if items, ok := data["items"].([]itemSummary); ok {
		bodyCtx.Items = items
	}
	if count, ok := data["items_count"].(int); ok && count > len(bodyCtx.Items) {
		bodyCtx.MoreItems = count - len(bodyCtx.Items)
	}

	var buf bytes.Buffer
	if err := emailBodyTemplate.Execute(&buf, bodyCtx); err != nil {
		return "", "", mailroom.Internal("render email body", err)
	}
	return buf.String(), renderTextBody(bodyCtx), nil
}

// renderTextBody builds the plain-text alternative carrying the same facts
// as the HTML layout.
func renderTextBody(c emailBodyContext) string {
	var b strings.Builder
	greeting := c.PartyName
	if greeting == "" {
		greeting = "Customer"
	}
	fmt.Fprintf(&b, "Dear %s,\n\n", greeting)
	fmt.Fprintf(&b, "Please find your %s %s details below.\n\n", c.DocumentType, c.DocumentNumber)
	fmt.Fprintf(&b, "Document Number: %s\n", c.DocumentNumber)
	if c.DocumentDate != "" {
		fmt.Fprintf(&b, "Date: %s\n", c.DocumentDate)
	}
	if c.DueDate != "" {
		fmt.Fprintf(&b, "Due Date: %s\n", c.DueDate)
	}
	if c.TotalAmount != "" {
		fmt.Fprintf(&b, "Total Amount: %s\n", c.TotalAmount)
	}
	if c.CustomMessage != "" {
		fmt.Fprintf(&b, "\n%s\n", c.CustomMessage)
	}
	if c.DocumentLink != "" {
		fmt.Fprintf(&b, "\nView online: %s\n", c.DocumentLink)
	}
	fmt.Fprintf(&b, "\n%s", c.CompanyName)
	return b.String()
}
