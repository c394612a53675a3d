package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/nulzo/llm-gateway/internal/catalog"
	"github.com/nulzo/llm-gateway/internal/provider"
)

// route is a resolved (provider, model) pair ready to stream.
type route struct {
	name     string
	provider provider.Provider
	model    catalog.Model
}

// errSkip marks a candidate that cannot be attempted at all: the fallback
// chain advances without recording a breaker failure.
type errSkip struct {
	reason string
}

func (e errSkip) Error() string { return e.reason }

func skipf(format string, args ...any) error {
	return errSkip{reason: fmt.Sprintf(format, args...)}
}

// resolve maps a model id (optionally provider-prefixed) onto a configured
// provider: the preferred provider when it is available and actually serves
// the id, then the catalog owner, then a linear scan of every available
// provider's model list.
func (s *Service) resolve(ctx context.Context, modelID, preferred string) (route, error) {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return route{}, skipf("empty model id")
	}

	bare := modelID
	if _, rest, found := strings.Cut(modelID, "/"); found {
		bare = rest
	}

	if preferred != "" {
		if m, ok := s.preferredModel(ctx, modelID, bare, preferred); ok {
			return s.routeFor(ctx, m)
		}
	}

	m, ok := s.catalog.Resolve(modelID)
	if !ok {
		name, found := s.scanProviders(ctx, modelID, bare)
		if !found {
			return route{}, skipf("no provider serves model %q", modelID)
		}
		m = s.catalog.CreateGeneric(bare, name)
	}
	return s.routeFor(ctx, m)
}

// preferredModel reports whether the preferred provider can serve the id: it
// must be available and the id must appear in its catalog entries or its
// cached vendor model list. Otherwise resolution falls through to the
// catalog owner.
func (s *Service) preferredModel(ctx context.Context, modelID, bare, preferred string) (catalog.Model, bool) {
	if s.checkAvailable(ctx, preferred) != nil {
		return catalog.Model{}, false
	}
	if m, ok := s.catalog.Resolve(modelID); ok && m.Provider == preferred {
		return m, true
	}
	ids, err := s.ListModels(ctx, preferred)
	if err != nil {
		return catalog.Model{}, false
	}
	for _, id := range ids {
		if id == modelID || id == bare {
			return s.catalog.CreateGeneric(bare, preferred), true
		}
	}
	return catalog.Model{}, false
}

func (s *Service) routeFor(ctx context.Context, m catalog.Model) (route, error) {
	if err := s.checkAvailable(ctx, m.Provider); err != nil {
		return route{}, err
	}
	if !s.state(m.Provider).allows(m.ID) {
		return route{}, skipf("model %q is not enabled for provider %q", m.ID, m.Provider)
	}
	p, err := s.registry.Provider(m.Provider)
	if err != nil {
		return route{}, skipf("provider %q is not configured", m.Provider)
	}
	return route{name: m.Provider, provider: p, model: m}, nil
}

// checkAvailable reports (as errSkip) why a provider cannot serve anything
// right now: disabled, unauthenticated, or breaker-open.
func (s *Service) checkAvailable(ctx context.Context, name string) error {
	if !s.state(name).enabled {
		return skipf("provider %q is disabled", name)
	}
	resolver, err := s.registry.Resolver(name)
	if err != nil {
		return skipf("provider %q is not configured", name)
	}
	if !resolver.Authenticated(ctx) {
		return skipf("provider %q has no usable credentials", name)
	}
	if !s.breaker.Allow(name) {
		// An open breaker is indistinguishable from an unconfigured provider.
		return skipf("provider %q is not available", name)
	}
	return nil
}

// scanProviders is the last resolution resort for ids the catalog has never
// seen: walk every available provider's (cached) model list for a match.
func (s *Service) scanProviders(ctx context.Context, modelID, bare string) (string, bool) {
	for _, name := range s.registry.Names() {
		if s.checkAvailable(ctx, name) != nil {
			continue
		}
		ids, err := s.ListModels(ctx, name)
		if err != nil {
			continue
		}
		for _, id := range ids {
			if id == modelID || id == bare {
				return name, true
			}
		}
	}
	return "", false
}
