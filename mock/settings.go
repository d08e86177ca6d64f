package mock

import (
	"context"

	"github.com/alumicraft/mailroom"
)

// Compile-time interface check
var _ mailroom.SettingsService = (*SettingsService)(nil)

// SettingsService is a mock implementation of mailroom.SettingsService.
type SettingsService struct {
	LoadFn func(ctx context.Context) (*mailroom.Settings, error)

	Settings *mailroom.Settings
}

func (s *SettingsService) Load(ctx context.Context) (*mailroom.Settings, error) {
	if s.LoadFn != nil {
		return s.LoadFn(ctx)
	}
	if s.Settings != nil {
		return s.Settings, nil
	}
	return &mailroom.Settings{
		DoctypeConfigs:  map[string]*mailroom.DoctypeConfig{},
		LegacyTemplates: map[string]string{},
	}, nil
}
