// Package mock provides hand-written mock implementations of the domain
// service interfaces for testing.
package mock

import (
	"context"

	"github.com/alumicraft/mailroom"
)

// Compile-time interface check
var _ mailroom.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is a mock implementation of mailroom.DocumentStore.
// Fixtures can be loaded into the maps directly, or the Fn fields can
// override individual calls.
type DocumentStore struct {
	GetDocumentFn       func(ctx context.Context, doctype, name string) (*mailroom.Document, error)
	DescribeFn          func(ctx context.Context, doctype string) (*mailroom.Schema, error)
	HasPermissionFn     func(ctx context.Context, doctype, name, action string) error
	FindLinkedContactFn func(ctx context.Context, doctype, name string) (*mailroom.Contact, error)
	CompanyInfoFn       func(ctx context.Context, name string) (*mailroom.CompanyInfo, error)

	// Fixture data used when the Fn fields are nil.
	Documents map[string]*mailroom.Document // key: "Doctype/Name"
	Schemas   map[string]*mailroom.Schema   // key: doctype
	Contacts  map[string]*mailroom.Contact  // key: "Doctype/Name" of the party
	Companies map[string]*mailroom.CompanyInfo
	Company   string
	Currency  string

	// Recorded lookups for assertions.
	GetDocumentCalls []string
}

func key(doctype, name string) string {
	return doctype + "/" + name
}

func (s *DocumentStore) GetDocument(ctx context.Context, doctype, name string) (*mailroom.Document, error) {
	s.GetDocumentCalls = append(s.GetDocumentCalls, key(doctype, name))
	if s.GetDocumentFn != nil {
		return s.GetDocumentFn(ctx, doctype, name)
	}
	if doc, ok := s.Documents[key(doctype, name)]; ok {
		return doc, nil
	}
	return nil, mailroom.NotFound("%s %s not found", doctype, name)
}

func (s *DocumentStore) Describe(ctx context.Context, doctype string) (*mailroom.Schema, error) {
	if s.DescribeFn != nil {
		return s.DescribeFn(ctx, doctype)
	}
	if schema, ok := s.Schemas[doctype]; ok {
		return schema, nil
	}
	return &mailroom.Schema{Doctype: doctype, Fields: map[string]mailroom.FieldMeta{}}, nil
}

func (s *DocumentStore) HasPermission(ctx context.Context, doctype, name, action string) error {
	if s.HasPermissionFn != nil {
		return s.HasPermissionFn(ctx, doctype, name, action)
	}
	return nil
}

func (s *DocumentStore) FindLinkedContact(ctx context.Context, doctype, name string) (*mailroom.Contact, error) {
	if s.FindLinkedContactFn != nil {
		return s.FindLinkedContactFn(ctx, doctype, name)
	}
	if contact, ok := s.Contacts[key(doctype, name)]; ok {
		return contact, nil
	}
	return nil, mailroom.NotFound("no contact linked to %s %s", doctype, name)
}

func (s *DocumentStore) CompanyInfo(ctx context.Context, name string) (*mailroom.CompanyInfo, error) {
	if s.CompanyInfoFn != nil {
		return s.CompanyInfoFn(ctx, name)
	}
	if info, ok := s.Companies[name]; ok {
		return info, nil
	}
	return nil, mailroom.NotFound("Company %s not found", name)
}

func (s *DocumentStore) DefaultCompany(ctx context.Context) string {
	return s.Company
}

func (s *DocumentStore) DefaultCurrency(ctx context.Context) string {
	return s.Currency
}
