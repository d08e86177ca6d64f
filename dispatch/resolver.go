// Package dispatch implements the document email pipeline: recipient
// resolution, template data building, and the dispatch interceptor that
// owns the at-most-once send guarantee.
package dispatch

import (
	"context"
	"strings"

	"github.com/alumicraft/mailroom"
)

// emailFieldCandidates is the fixed ordered list of common email field
// names scanned on party records during the generic lookup.
var emailFieldCandidates = []string{
	"email_id",
	"email",
	"contact_email",
	"primary_email",
	"email_address",
}

// Resolver resolves the destination address for a document via the ordered
// fallback chain: configured field path, then recipient-field party lookup,
// then the legacy multi-field scan. Lookup misses are silent; the caller
// decides whether an empty result is an error.
type Resolver struct {
	store mailroom.DocumentStore
}

// NewResolver creates a resolver backed by the given document store.
func NewResolver(store mailroom.DocumentStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the destination address for the document, or "" when the
// whole chain comes up empty. First hit wins; no merging.
func (r *Resolver) Resolve(ctx context.Context, doc *mailroom.Document, cfg *mailroom.DoctypeConfig) string {
	if cfg != nil && cfg.EmailFieldPath != "" {
		if email := r.resolveFieldPath(ctx, doc, cfg.EmailFieldPath); email != "" {
			return email
		}
	}

	if cfg != nil && cfg.RecipientField != "" {
		if party := doc.Str(cfg.RecipientField); party != "" {
			partyType := cfg.RecipientDoctype
			if partyType == "" {
				// Dynamic party type, read from the document itself.
				partyType = doc.Str("party_type")
			}
			if partyType != "" {
				if email := r.PartyEmail(ctx, partyType, party); email != "" {
					return email
				}
			}
		}
	}

	return r.legacyScan(ctx, doc)
}

// resolveFieldPath resolves a dot-separated field path. A single segment is
// a direct field read. A multi-segment path reads the first segment as a
// link to another document, with the link target inferred from the source
// document's schema, then recurses with the remainder. Any missing hop or
// non-link field resolves to "" - intentionally, not an error.
func (r *Resolver) resolveFieldPath(ctx context.Context, doc *mailroom.Document, path string) string {
	if path == "" {
		return ""
	}

	parts := strings.SplitN(path, ".", 2)
	if len(parts) == 1 {
		return doc.Str(path)
	}

	linkedName := doc.Str(parts[0])
	if linkedName == "" {
		return ""
	}

	schema, err := r.store.Describe(ctx, doc.Doctype)
	if err != nil {
		return ""
	}
	meta, ok := schema.Field(parts[0])
	if !ok || meta.Kind != mailroom.FieldLink || meta.LinkTo == "" {
		return ""
	}

	linked, err := r.store.GetDocument(ctx, meta.LinkTo, linkedName)
	if err != nil {
		return ""
	}
	return r.resolveFieldPath(ctx, linked, parts[1])
}

// PartyEmail returns the primary email for a party record. Customers and
// suppliers get their dedicated lookups; everything else goes through the
// generic candidate-field scan plus linked-contact fallback.
func (r *Resolver) PartyEmail(ctx context.Context, partyType, partyName string) string {
	switch partyType {
	case "Customer":
		return r.customerEmail(ctx, partyName)
	case "Supplier":
		return r.supplierEmail(ctx, partyName)
	default:
		return r.genericPartyEmail(ctx, partyType, partyName)
	}
}

func (r *Resolver) customerEmail(ctx context.Context, name string) string {
	customer, err := r.store.GetDocument(ctx, "Customer", name)
	if err != nil {
		return ""
	}
	if email := customer.Str("email_id"); email != "" {
		return email
	}
	return r.contactEmail(ctx, "Customer", name)
}

func (r *Resolver) supplierEmail(ctx context.Context, name string) string {
	supplier, err := r.store.GetDocument(ctx, "Supplier", name)
	if err != nil {
		return ""
	}
	if email := supplier.Str("email_id"); email != "" {
		return email
	}
	contact, err := r.store.FindLinkedContact(ctx, "Supplier", name)
	if err != nil {
		return ""
	}
	return contact.EmailID
}

func (r *Resolver) genericPartyEmail(ctx context.Context, partyType, partyName string) string {
	party, err := r.store.GetDocument(ctx, partyType, partyName)
	if err != nil {
		return ""
	}

	for _, field := range emailFieldCandidates {
		if email := party.Str(field); email != "" {
			return email
		}
	}

	return r.contactEmail(ctx, partyType, partyName)
}

// contactEmail returns the linked contact's address: the contact's own
// email field, else the primary-flagged row of its address list, else the
// first row.
func (r *Resolver) contactEmail(ctx context.Context, partyType, partyName string) string {
	contact, err := r.store.FindLinkedContact(ctx, partyType, partyName)
	if err != nil {
		return ""
	}
	if contact.EmailID != "" {
		return contact.EmailID
	}
	for _, row := range contact.EmailIDs {
		if row.IsPrimary {
			return row.EmailID
		}
	}
	if len(contact.EmailIDs) > 0 {
		return contact.EmailIDs[0].EmailID
	}
	return ""
}

// legacyScan is the pre-configuration resolution: direct email field,
// contact-email field, then customer and supplier party lookups, in that
// fixed order. Resolution halts at the first non-empty hit.
func (r *Resolver) legacyScan(ctx context.Context, doc *mailroom.Document) string {
	if email := doc.Str("email_id"); email != "" {
		return email
	}
	if email := doc.Str("contact_email"); email != "" {
		return email
	}
	if customer := doc.Str("customer"); customer != "" {
		if email := r.customerEmail(ctx, customer); email != "" {
			return email
		}
	}
	if supplier := doc.Str("supplier"); supplier != "" {
		if email := r.supplierEmail(ctx, supplier); email != "" {
			return email
		}
	}
	return ""
}
