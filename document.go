package mailroom

import "context"

// Document states as reported by the host business system.
const (
	DocStatusDraft     = 0
	DocStatusSubmitted = 1
	DocStatusCancelled = 2
)

// Document is a host-system record: an arbitrary bag of scalar fields plus
// an optional line-items collection. The host store owns the schema; the
// dispatch pipeline only reads it.
type Document struct {
	Doctype   string
	Name      string
	DocStatus int
	Fields    map[string]any
	Items     []LineItem
}

// Str returns the named field as a string, or "" when absent or non-string.
func (d *Document) Str(field string) string {
	if d == nil || d.Fields == nil {
		return ""
	}
	if v, ok := d.Fields[field].(string); ok {
		return v
	}
	return ""
}

// Has reports whether the named field is present and non-empty.
func (d *Document) Has(field string) bool {
	if d == nil || d.Fields == nil {
		return false
	}
	v, ok := d.Fields[field]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr {
		return s != ""
	}
	return true
}

// Float returns the named field as a float64 where the underlying value is
// numeric. The second result reports whether a numeric value was present.
func (d *Document) Float(field string) (float64, bool) {
	if d == nil || d.Fields == nil {
		return 0, false
	}
	switch v := d.Fields[field].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Submitted reports whether the document is in a finalized state.
func (d *Document) Submitted() bool {
	return d.DocStatus == DocStatusSubmitted
}

// LineItem is one row of a document's items collection.
type LineItem struct {
	ItemName    string  `json:"item_name"`
	Description string  `json:"description"`
	Qty         float64 `json:"qty"`
	Rate        float64 `json:"rate"`
	Amount      float64 `json:"amount"`
}

// FieldKind classifies a document field for template-data extraction and
// link traversal. Mirrors the host store's field type vocabulary.
type FieldKind string

const (
	FieldData     FieldKind = "data"
	FieldLink     FieldKind = "link"
	FieldSelect   FieldKind = "select"
	FieldInt      FieldKind = "int"
	FieldFloat    FieldKind = "float"
	FieldCurrency FieldKind = "currency"
	FieldDate     FieldKind = "date"
	FieldDatetime FieldKind = "datetime"
	FieldText     FieldKind = "text"
)

// FieldMeta describes one field of a document schema.
type FieldMeta struct {
	Name   string
	Kind   FieldKind
	LinkTo string // target doctype for FieldLink fields
}

// Schema is the field metadata for one document type, as exposed by the
// host store's describe call.
type Schema struct {
	Doctype string
	Fields  map[string]FieldMeta
}

// Field returns the metadata for the named field, if declared.
func (s *Schema) Field(name string) (FieldMeta, bool) {
	if s == nil || s.Fields == nil {
		return FieldMeta{}, false
	}
	m, ok := s.Fields[name]
	return m, ok
}

// ContactEmail is one address row on a contact record.
type ContactEmail struct {
	EmailID   string
	IsPrimary bool
}

// Contact is a host-system contact linked to a party record.
type Contact struct {
	Name     string
	EmailID  string
	EmailIDs []ContactEmail
}

// CompanyInfo carries the company fields used in email templates.
type CompanyInfo struct {
	CompanyName string
	Logo        string
	Address     string
	Phone       string
	Email       string
	Website     string
	TaxID       string
}

// DocumentStore is the read-only interface to the host business system's
// document store and permission model. All methods return domain errors;
// a missing record is ENOTFOUND.
type DocumentStore interface {
	// GetDocument fetches one document by type and id.
	GetDocument(ctx context.Context, doctype, name string) (*Document, error)

	// Describe returns the field metadata for a document type.
	Describe(ctx context.Context, doctype string) (*Schema, error)

	// HasPermission checks whether the caller may perform the given action
	// (e.g. "email", "read") on the document. Returns EFORBIDDEN when not.
	HasPermission(ctx context.Context, doctype, name, action string) error

	// FindLinkedContact returns the contact record linked to the given
	// party, or ENOTFOUND when no contact is linked.
	FindLinkedContact(ctx context.Context, doctype, name string) (*Contact, error)

	// CompanyInfo returns template-facing company details.
	CompanyInfo(ctx context.Context, name string) (*CompanyInfo, error)

	// DefaultCompany returns the process-wide default company name, or "".
	DefaultCompany(ctx context.Context) string

	// DefaultCurrency returns the process-wide default currency code, or "".
	DefaultCurrency(ctx context.Context) string
}

// PrintService renders a document to PDF bytes. It is an external
// collaborator; rendering failures are recovered by the dispatcher.
type PrintService interface {
	// RenderPDF returns the PDF bytes and a suggested filename.
	RenderPDF(ctx context.Context, doctype, name, printFormat string) ([]byte, string, error)
}

// NativeMessage is a fallback send request handed to the host's own mailer.
type NativeMessage struct {
	Recipients       []string
	Subject          string
	Message          string
	ReferenceDoctype string
	ReferenceName    string
}

// NativeMailer is the host system's own email sender, used only on the
// fallback path after a provider failure.
type NativeMailer interface {
	SendMail(ctx context.Context, msg *NativeMessage) error
}
