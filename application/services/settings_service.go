package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"cms-backend/application/ports"
	"cms-backend/domain/keyspace"
	pkgerrors "cms-backend/pkg/errors"
)

// DefaultReservedPrefixes are the platform-owned paths no form slug may use,
// in addition to any a tenant configures.
var DefaultReservedPrefixes = []string{"/api", "/admin"}

// SettingsService reads the SETTINGS#SITE record of a scope.
type SettingsService struct {
	store  ports.KeyValueStore
	logger *zap.Logger
}

// NewSettingsService creates a new settings service
func NewSettingsService(store ports.KeyValueStore, logger *zap.Logger) *SettingsService {
	return &SettingsService{store: store, logger: logger}
}

// Settings implements ports.TenantSettingsReader. A scope without a settings
// record has no navigation and only the default reserved prefixes.
func (s *SettingsService) Settings(ctx context.Context, scope keyspace.Scope) (ports.TenantSettings, error) {
	key, err := keyspace.SettingsKey(scope)
	if err != nil {
		return ports.TenantSettings{}, err
	}

	item, err := s.store.Get(ctx, key)
	if pkgerrors.IsNotFound(err) {
		s.logger.Debug("No site settings, using defaults", zap.String("scope", scope.String()))
		return ports.TenantSettings{ReservedPrefixes: append([]string(nil), DefaultReservedPrefixes...)}, nil
	}
	if err != nil {
		return ports.TenantSettings{}, err
	}

	return ports.TenantSettings{
		NavigationLinks:  links(item.Attributes, "navigation", "navigationLinks", "nav"),
		FooterLinks:      links(item.Attributes, "footer", "footerLinks"),
		ReservedPrefixes: mergePrefixes(DefaultReservedPrefixes, links(item.Attributes, "reservedPrefixes")),
	}, nil
}

// links reads the first present attribute among names. Entries may be plain
// hrefs or menu objects carrying "href" or "url".
func links(attrs map[string]any, names ...string) []string {
	for _, name := range names {
		raw, ok := attrs[name]
		if !ok || raw == nil {
			continue
		}
		var out []string
		collectLinks(raw, &out)
		return out
	}
	return nil
}

func collectLinks(raw any, out *[]string) {
	switch v := raw.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			*out = append(*out, s)
		}
	case []string:
		for _, s := range v {
			collectLinks(s, out)
		}
	case []any:
		for _, e := range v {
			collectLinks(e, out)
		}
	case map[string]any:
		if href, ok := v["href"].(string); ok {
			collectLinks(href, out)
		} else if u, ok := v["url"].(string); ok {
			collectLinks(u, out)
		}
		// Dropdown menus nest their entries.
		if children, ok := v["children"]; ok {
			collectLinks(children, out)
		}
	}
}

func mergePrefixes(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, p := range append(append([]string(nil), base...), extra...) {
		p = "/" + strings.Trim(strings.ToLower(p), "/")
		if _, dup := seen[p]; dup || p == "/" {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

var _ ports.TenantSettingsReader = (*SettingsService)(nil)
