package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/alumicraft/mailroom"
)

// Compile-time check that SettingsService implements mailroom.SettingsService.
var _ mailroom.SettingsService = (*SettingsService)(nil)

// SettingsService implements mailroom.SettingsService using PostgreSQL.
// Settings live in a single-row table plus one row per configured doctype.
type SettingsService struct {
	db *DB
}

// Load returns the current configuration snapshot. A missing settings row
// yields a disabled default snapshot rather than an error.
func (s *SettingsService) Load(ctx context.Context) (*mailroom.Settings, error) {
	settings := &mailroom.Settings{
		DoctypeConfigs:  map[string]*mailroom.DoctypeConfig{},
		LegacyTemplates: map[string]string{},
	}

	var legacyTemplates []byte
	err := s.db.pool.QueryRow(ctx, `
		SELECT enabled, sender_email, sender_name, api_key,
		       fallback_to_host, log_all_attempts, webhook_secret, base_url,
		       legacy_templates
		FROM email_settings
		WHERE id = 1`).Scan(
		&settings.Enabled, &settings.SenderEmail, &settings.SenderName,
		&settings.APIKey, &settings.FallbackToHost, &settings.LogAllAttempts,
		&settings.WebhookSecret, &settings.BaseURL, &legacyTemplates)
	if err != nil {
		if err == pgx.ErrNoRows {
			return settings, nil
		}
		return nil, mailroom.Internal("Failed to load email settings", err)
	}

	if len(legacyTemplates) > 0 {
		if err := json.Unmarshal(legacyTemplates, &settings.LegacyTemplates); err != nil {
			return nil, mailroom.Internal("Failed to decode legacy template mapping", err)
		}
	}

	rows, err := s.db.pool.Query(ctx, `
		SELECT doctype, enabled, recipient_field, recipient_doctype,
		       email_field_path, template_id, subject_template,
		       require_submit, print_format
		FROM email_doctype_configs`)
	if err != nil {
		return nil, mailroom.Internal("Failed to load doctype configs", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cfg mailroom.DoctypeConfig
		if err := rows.Scan(
			&cfg.Doctype, &cfg.Enabled, &cfg.RecipientField, &cfg.RecipientDoctype,
			&cfg.EmailFieldPath, &cfg.TemplateID, &cfg.SubjectTemplate,
			&cfg.RequireSubmit, &cfg.PrintFormat); err != nil {
			return nil, mailroom.Internal("Failed to scan doctype config", err)
		}
		settings.DoctypeConfigs[cfg.Doctype] = &cfg
	}
	if err := rows.Err(); err != nil {
		return nil, mailroom.Internal("Failed reading doctype configs", err)
	}

	return settings, nil
}

// Save upserts the single settings row.
func (s *SettingsService) Save(ctx context.Context, settings *mailroom.Settings) error {
	legacyTemplates, err := json.Marshal(settings.LegacyTemplates)
	if err != nil {
		return mailroom.Internal("Failed to encode legacy template mapping", err)
	}
	_, err = s.db.pool.Exec(ctx, `
		INSERT INTO email_settings (
			id, enabled, sender_email, sender_name, api_key,
			fallback_to_host, log_all_attempts, webhook_secret, base_url,
			legacy_templates, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			sender_email = EXCLUDED.sender_email,
			sender_name = EXCLUDED.sender_name,
			api_key = EXCLUDED.api_key,
			fallback_to_host = EXCLUDED.fallback_to_host,
			log_all_attempts = EXCLUDED.log_all_attempts,
			webhook_secret = EXCLUDED.webhook_secret,
			base_url = EXCLUDED.base_url,
			legacy_templates = EXCLUDED.legacy_templates,
			updated_at = now()`,
		settings.Enabled, settings.SenderEmail, settings.SenderName,
		settings.APIKey, settings.FallbackToHost, settings.LogAllAttempts,
		settings.WebhookSecret, settings.BaseURL, legacyTemplates)
	if err != nil {
		return mailroom.Internal("Failed to save email settings", err)
	}
	return nil
}

// UpsertDoctypeConfig inserts or replaces one per-doctype config row.
func (s *SettingsService) UpsertDoctypeConfig(ctx context.Context, cfg *mailroom.DoctypeConfig) error {
	if cfg.Doctype == "" {
		return mailroom.Invalid("doctype is required")
	}
	_, err := s.db.pool.Exec(ctx, `
		INSERT INTO email_doctype_configs (
			doctype, enabled, recipient_field, recipient_doctype,
			email_field_path, template_id, subject_template,
			require_submit, print_format
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (doctype) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			recipient_field = EXCLUDED.recipient_field,
			recipient_doctype = EXCLUDED.recipient_doctype,
			email_field_path = EXCLUDED.email_field_path,
			template_id = EXCLUDED.template_id,
			subject_template = EXCLUDED.subject_template,
			require_submit = EXCLUDED.require_submit,
			print_format = EXCLUDED.print_format`,
		cfg.Doctype, cfg.Enabled, cfg.RecipientField, cfg.RecipientDoctype,
		cfg.EmailFieldPath, cfg.TemplateID, cfg.SubjectTemplate,
		cfg.RequireSubmit, cfg.PrintFormat)
	if err != nil {
		return mailroom.Internal("Failed to save doctype config", err)
	}
	return nil
}
