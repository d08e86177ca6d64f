// Package erpnext is the REST client for the host business system. It
// implements the document store, the PDF print service, and the native
// mailer used on the fallback path.
package erpnext

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alumicraft/mailroom"
)

// Ensure client implements interfaces.
var (
	_ mailroom.DocumentStore = (*Client)(nil)
	_ mailroom.PrintService  = (*Client)(nil)
	_ mailroom.NativeMailer  = (*Client)(nil)
)

const requestTimeout = 30 * time.Second

// Client talks to the host system's REST API using token authentication.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	httpc     *http.Client
}

// NewClient creates a host-system client.
func NewClient(baseURL, apiKey, apiSecret string) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpc:     &http.Client{Timeout: requestTimeout},
	}
}

// GetDocument fetches one document by type and id.
func (c *Client) GetDocument(ctx context.Context, doctype, name string) (*mailroom.Document, error) {
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	path := fmt.Sprintf("/api/resource/%s/%s", url.PathEscape(doctype), url.PathEscape(name))
	if err := c.getJSON(ctx, path, nil, &envelope); err != nil {
		if mailroom.IsErrorCode(err, mailroom.ENOTFOUND) {
			return nil, mailroom.NotFound("%s %s not found", doctype, name)
		}
		return nil, err
	}
	return documentFromFields(doctype, name, envelope.Data), nil
}

// documentFromFields builds a document from the raw field map, splitting
// out docstatus and the items child table.
func documentFromFields(doctype, name string, fields map[string]any) *mailroom.Document {
	doc := &mailroom.Document{
		Doctype: doctype,
		Name:    name,
		Fields:  fields,
	}
	if fields == nil {
		doc.Fields = map[string]any{}
		return doc
	}
	if v, ok := fields["name"].(string); ok && v != "" {
		doc.Name = v
	}
	if v, ok := fields["docstatus"].(float64); ok {
		doc.DocStatus = int(v)
	}
	if rows, ok := fields["items"].([]any); ok {
		for _, raw := range rows {
			row, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			doc.Items = append(doc.Items, mailroom.LineItem{
				ItemName:    str(row["item_name"]),
				Description: str(row["description"]),
				Qty:         num(row["qty"]),
				Rate:        num(row["rate"]),
				Amount:      num(row["amount"]),
			})
		}
	}
	return doc
}

// fieldKinds maps the host's field type vocabulary to ours. Unlisted types
// are excluded from template extraction.
var fieldKinds = map[string]mailroom.FieldKind{
	"Data":        mailroom.FieldData,
	"Link":        mailroom.FieldLink,
	"Select":      mailroom.FieldSelect,
	"Int":         mailroom.FieldInt,
	"Float":       mailroom.FieldFloat,
	"Currency":    mailroom.FieldCurrency,
	"Date":        mailroom.FieldDate,
	"Datetime":    mailroom.FieldDatetime,
	"Small Text":  mailroom.FieldText,
	"Text":        mailroom.FieldText,
	"Long Text":   mailroom.FieldText,
	"Text Editor": mailroom.FieldText,
}

// Describe returns the field metadata for a document type.
func (c *Client) Describe(ctx context.Context, doctype string) (*mailroom.Schema, error) {
	var envelope struct {
		Data struct {
			Fields []struct {
				Fieldname string `json:"fieldname"`
				Fieldtype string `json:"fieldtype"`
				Options   string `json:"options"`
			} `json:"fields"`
		} `json:"data"`
	}
	path := "/api/resource/DocType/" + url.PathEscape(doctype)
	if err := c.getJSON(ctx, path, nil, &envelope); err != nil {
		return nil, err
	}

	schema := &mailroom.Schema{
		Doctype: doctype,
		Fields:  make(map[string]mailroom.FieldMeta, len(envelope.Data.Fields)),
	}
	for _, f := range envelope.Data.Fields {
		kind, ok := fieldKinds[f.Fieldtype]
		if !ok {
			continue
		}
		meta := mailroom.FieldMeta{Name: f.Fieldname, Kind: kind}
		if kind == mailroom.FieldLink {
			meta.LinkTo = f.Options
		}
		schema.Fields[f.Fieldname] = meta
	}
	return schema, nil
}

// HasPermission checks the caller's permission for an action on a document.
func (c *Client) HasPermission(ctx context.Context, doctype, name, action string) error {
	var envelope struct {
		Message struct {
			HasPermission bool `json:"has_permission"`
		} `json:"message"`
	}
	params := url.Values{}
	params.Set("doctype", doctype)
	params.Set("docname", name)
	params.Set("perm_type", action)
	if err := c.getJSON(ctx, "/api/method/frappe.client.has_permission", params, &envelope); err != nil {
		return err
	}
	if !envelope.Message.HasPermission {
		return mailroom.Forbidden("not permitted to %s %s %s", action, doctype, name)
	}
	return nil
}

// FindLinkedContact returns the default contact linked to a party record.
func (c *Client) FindLinkedContact(ctx context.Context, doctype, name string) (*mailroom.Contact, error) {
	var envelope struct {
		Message string `json:"message"`
	}
	params := url.Values{}
	params.Set("doctype", doctype)
	params.Set("name", name)
	if err := c.getJSON(ctx, "/api/method/frappe.contacts.doctype.contact.contact.get_default_contact", params, &envelope); err != nil {
		return nil, err
	}
	if envelope.Message == "" {
		return nil, mailroom.NotFound("no contact linked to %s %s", doctype, name)
	}

	doc, err := c.GetDocument(ctx, "Contact", envelope.Message)
	if err != nil {
		return nil, err
	}
	contact := &mailroom.Contact{
		Name:    doc.Name,
		EmailID: doc.Str("email_id"),
	}
	if rows, ok := doc.Fields["email_ids"].([]any); ok {
		for _, raw := range rows {
			row, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			contact.EmailIDs = append(contact.EmailIDs, mailroom.ContactEmail{
				EmailID:   str(row["email_id"]),
				IsPrimary: num(row["is_primary"]) != 0,
			})
		}
	}
	return contact, nil
}

// CompanyInfo returns template-facing company details.
func (c *Client) CompanyInfo(ctx context.Context, name string) (*mailroom.CompanyInfo, error) {
	doc, err := c.GetDocument(ctx, "Company", name)
	if err != nil {
		return nil, err
	}
	info := &mailroom.CompanyInfo{
		CompanyName: doc.Str("company_name"),
		Logo:        doc.Str("company_logo"),
		Phone:       doc.Str("phone_no"),
		Email:       doc.Str("email"),
		Website:     doc.Str("website"),
		TaxID:       doc.Str("tax_id"),
	}
	if info.CompanyName == "" {
		info.CompanyName = name
	}
	return info, nil
}

// DefaultCompany returns the host's default company, or "" when unset or
// unreachable.
func (c *Client) DefaultCompany(ctx context.Context) string {
	return c.singleValue(ctx, "Global Defaults", "default_company")
}

// DefaultCurrency returns the host's default currency code, or "".
func (c *Client) DefaultCurrency(ctx context.Context) string {
	return c.singleValue(ctx, "Global Defaults", "default_currency")
}

func (c *Client) singleValue(ctx context.Context, doctype, field string) string {
	var envelope struct {
		Message any `json:"message"`
	}
	params := url.Values{}
	params.Set("doctype", doctype)
	params.Set("field", field)
	if err := c.getJSON(ctx, "/api/method/frappe.client.get_single_value", params, &envelope); err != nil {
		return ""
	}
	return str(envelope.Message)
}

// RenderPDF downloads the document's printable PDF.
func (c *Client) RenderPDF(ctx context.Context, doctype, name, printFormat string) ([]byte, string, error) {
	params := url.Values{}
	params.Set("doctype", doctype)
	params.Set("name", name)
	if printFormat != "" {
		params.Set("format", printFormat)
	}
	body, err := c.getRaw(ctx, "/api/method/frappe.utils.print_format.download_pdf", params)
	if err != nil {
		return nil, "", err
	}
	return body, fmt.Sprintf("%s.pdf", name), nil
}

// SendMail asks the host's own mailer to send, used only as a fallback
// after a provider failure.
func (c *Client) SendMail(ctx context.Context, msg *mailroom.NativeMessage) error {
	payload := map[string]any{
		"recipients": strings.Join(msg.Recipients, ","),
		"subject":    msg.Subject,
		"content":    msg.Message,
		"doctype":    msg.ReferenceDoctype,
		"name":       msg.ReferenceName,
		"send_email": 1,
	}
	return c.postJSON(ctx, "/api/method/frappe.core.doctype.communication.email.make", payload)
}

// getJSON performs an authenticated GET and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	body, err := c.getRaw(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return mailroom.Internal("decode host response", err)
	}
	return nil
}

func (c *Client) getRaw(ctx context.Context, path string, params url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, mailroom.Internal("build host request", err)
	}
	c.authorize(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, mailroom.Internal("host request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, mailroom.Internal("read host response", err)
	}
	if err := statusError(resp.StatusCode, path); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return mailroom.Internal("encode host payload", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(string(body)))
	if err != nil {
		return mailroom.Internal("build host request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return mailroom.Internal("host request failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	return statusError(resp.StatusCode, path)
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf("token %s:%s", c.apiKey, c.apiSecret))
	req.Header.Set("Accept", "application/json")
}

// statusError maps host HTTP statuses to domain errors.
func statusError(status int, path string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return mailroom.NotFound("host resource not found: %s", path)
	case status == http.StatusUnauthorized:
		return mailroom.Unauthorized("host rejected credentials")
	case status == http.StatusForbidden:
		return mailroom.Forbidden("host denied access to %s", path)
	default:
		return mailroom.Errorf(mailroom.EINTERNAL, "host returned status %d for %s", status, path)
	}
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func num(v any) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return 0
}
