package mailroom

import (
	"context"
	"fmt"
)

// DoctypeConfig is the per-document-type dispatch configuration.
// At most one active config exists per document type.
type DoctypeConfig struct {
	Doctype          string `json:"doctype"`
	Enabled          bool   `json:"enabled"`
	RecipientField   string `json:"recipient_field"`
	RecipientDoctype string `json:"recipient_doctype"`
	EmailFieldPath   string `json:"email_field_path"`
	TemplateID       string `json:"template_id"`
	SubjectTemplate  string `json:"subject_template"`
	RequireSubmit    bool   `json:"require_submit"`
	PrintFormat      string `json:"print_format"`
}

// defaultDoctypeConfigs is the legacy default table: well-known document
// types and how to reach their recipient when no config row exists.
// RecipientDoctype left empty means the party type is read from the
// document's own party_type field at resolution time.
var defaultDoctypeConfigs = map[string]DoctypeConfig{
	"Sales Invoice": {
		Doctype:          "Sales Invoice",
		RecipientField:   "customer",
		RecipientDoctype: "Customer",
		RequireSubmit:    true,
	},
	"Quotation": {
		Doctype:          "Quotation",
		RecipientField:   "party_name",
		RecipientDoctype: "Customer",
		RequireSubmit:    true,
	},
	"Sales Order": {
		Doctype:          "Sales Order",
		RecipientField:   "customer",
		RecipientDoctype: "Customer",
		RequireSubmit:    true,
	},
	"Delivery Note": {
		Doctype:          "Delivery Note",
		RecipientField:   "customer",
		RecipientDoctype: "Customer",
		RequireSubmit:    true,
	},
	"Purchase Order": {
		Doctype:          "Purchase Order",
		RecipientField:   "supplier",
		RecipientDoctype: "Supplier",
		RequireSubmit:    true,
	},
	"Purchase Invoice": {
		Doctype:          "Purchase Invoice",
		RecipientField:   "supplier",
		RecipientDoctype: "Supplier",
		RequireSubmit:    true,
	},
	"Payment Entry": {
		Doctype:        "Payment Entry",
		RecipientField: "party",
		RequireSubmit:  true,
	},
	"Payment Request": {
		Doctype:        "Payment Request",
		EmailFieldPath: "email_to",
		RequireSubmit:  true,
	},
}

// DefaultDoctypeConfig returns the legacy default configuration for a
// well-known document type, or nil when the type is not in the table.
func DefaultDoctypeConfig(doctype string) *DoctypeConfig {
	if cfg, ok := defaultDoctypeConfigs[doctype]; ok {
		c := cfg
		return &c
	}
	return nil
}

// Settings is a request-scoped snapshot of the service configuration.
// It is loaded once at the top of each dispatch call and never mutated
// mid-call.
type Settings struct {
	Enabled        bool
	SenderEmail    string
	SenderName     string
	APIKey         string
	FallbackToHost bool
	LogAllAttempts bool
	WebhookSecret  string
	BaseURL        string

	// DoctypeConfigs holds the configured rows keyed by document type.
	DoctypeConfigs map[string]*DoctypeConfig

	// LegacyTemplates maps well-known document types to provider template
	// ids configured before per-type rows existed.
	LegacyTemplates map[string]string
}

// Sender returns the formatted sender string for outbound mail.
func (s *Settings) Sender() string {
	if s.SenderName != "" {
		return fmt.Sprintf("%s <%s>", s.SenderName, s.SenderEmail)
	}
	return s.SenderEmail
}

// DoctypeConfig returns the active configuration for a document type:
// the configured row when present and enabled, else the legacy default.
// Returns nil when the type is unknown to both.
func (s *Settings) DoctypeConfig(doctype string) *DoctypeConfig {
	if cfg, ok := s.DoctypeConfigs[doctype]; ok && cfg.Enabled {
		return cfg
	}
	if s.legacySupported(doctype) {
		cfg := DefaultDoctypeConfig(doctype)
		cfg.Enabled = true
		cfg.TemplateID = s.LegacyTemplates[doctype]
		return cfg
	}
	return nil
}

// Supports reports whether dispatch is enabled for a document type.
func (s *Settings) Supports(doctype string) bool {
	if cfg, ok := s.DoctypeConfigs[doctype]; ok && cfg.Enabled {
		return true
	}
	return s.legacySupported(doctype)
}

func (s *Settings) legacySupported(doctype string) bool {
	if _, known := defaultDoctypeConfigs[doctype]; !known {
		return false
	}
	return s.LegacyTemplates[doctype] != ""
}

// TemplateID returns the provider template id for a document type, from
// the configured row or the legacy mapping.
func (s *Settings) TemplateID(doctype string) string {
	if cfg, ok := s.DoctypeConfigs[doctype]; ok && cfg.Enabled && cfg.TemplateID != "" {
		return cfg.TemplateID
	}
	return s.LegacyTemplates[doctype]
}

// ConfiguredDoctypes lists the document types with an enabled config row.
func (s *Settings) ConfiguredDoctypes() []string {
	var out []string
	for doctype, cfg := range s.DoctypeConfigs {
		if cfg.Enabled {
			out = append(out, doctype)
		}
	}
	return out
}

// Validate checks that the snapshot is usable for sending.
func (s *Settings) Validate() error {
	if !s.Enabled {
		return Configuration("Email service is not enabled")
	}
	if s.APIKey == "" {
		return Configuration("Provider API key is not configured")
	}
	if s.SenderEmail == "" {
		return Configuration("Default sender email is not configured")
	}
	return nil
}

// SettingsService loads the configuration snapshot. The settings subsystem
// owns the data; the dispatch pipeline only reads it.
type SettingsService interface {
	Load(ctx context.Context) (*Settings, error)
}
