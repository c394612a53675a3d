package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nulzo/llm-gateway/internal/breaker"
	"github.com/nulzo/llm-gateway/internal/catalog"
	"github.com/nulzo/llm-gateway/internal/platform/logger"
	"github.com/nulzo/llm-gateway/internal/provider"
	"github.com/nulzo/llm-gateway/internal/retry"
	"github.com/nulzo/llm-gateway/internal/store"
	"github.com/nulzo/llm-gateway/internal/store/cache"
	"github.com/nulzo/llm-gateway/internal/store/model"
	"github.com/nulzo/llm-gateway/pkg/api"
)

const modelListTTL = 5 * time.Minute

// Service is the gateway facade: provider administration, model listing, and
// the streaming entry point with retry, circuit breaking, and fallback.
type Service struct {
	registry *provider.Registry
	catalog  *catalog.Catalog
	breaker  *breaker.Breaker
	retry    *retry.Executor
	quota    *QuotaClassifier
	repo     store.Repository
	cache    cache.CacheService
	log      *zap.Logger

	mu     sync.RWMutex
	states map[string]*providerState
}

// providerState is the runtime half of provider configuration: operator
// enablement and the model allow-list. Empty selection means every model.
type providerState struct {
	enabled  bool
	selected map[string]struct{}
}

type Params struct {
	Registry *provider.Registry
	Catalog  *catalog.Catalog
	Breaker  *breaker.Breaker
	Retry    *retry.Executor
	Quota    *QuotaClassifier
	Repo     store.Repository
	Cache    cache.CacheService
	Logger   *zap.Logger
}

func New(p Params) *Service {
	if p.Breaker == nil {
		p.Breaker = breaker.New()
	}
	if p.Retry == nil {
		p.Retry = retry.New()
	}
	if p.Quota == nil {
		p.Quota = NewQuotaClassifier()
	}
	if p.Cache == nil {
		p.Cache = cache.NewMemoryCache()
	}
	if p.Catalog == nil {
		p.Catalog = catalog.Default()
	}
	if p.Logger == nil {
		p.Logger = logger.Get()
	}
	return &Service{
		registry: p.Registry,
		catalog:  p.Catalog,
		breaker:  p.Breaker,
		retry:    p.Retry,
		quota:    p.Quota,
		repo:     p.Repo,
		cache:    p.Cache,
		log:      p.Logger,
		states:   make(map[string]*providerState),
	}
}

// LoadStates restores persisted provider enablement and allow-lists.
func (s *Service) LoadStates(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	states, err := s.repo.ProviderStates().List(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range states {
		var ids []string
		if st.SelectedModels != "" {
			if err := json.Unmarshal([]byte(st.SelectedModels), &ids); err != nil {
				s.log.Warn("skipping malformed provider state", zap.String("provider", st.Name), zap.Error(err))
				continue
			}
		}
		s.states[st.Name] = newProviderState(st.Enabled, ids)
	}
	return nil
}

func newProviderState(enabled bool, selected []string) *providerState {
	st := &providerState{enabled: enabled, selected: make(map[string]struct{}, len(selected))}
	for _, id := range selected {
		st.selected[id] = struct{}{}
	}
	return st
}

// state returns the provider's runtime state; unknown providers default to
// enabled with no allow-list.
func (s *Service) state(name string) *providerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.states[name]; ok {
		return st
	}
	return &providerState{enabled: true}
}

func (st *providerState) allows(modelID string) bool {
	if len(st.selected) == 0 {
		return true
	}
	_, ok := st.selected[modelID]
	return ok
}

// ListProviders reports every configured provider with its auth posture and
// model surface.
func (s *Service) ListProviders(ctx context.Context) []api.ProviderInfo {
	names := s.registry.Names()
	infos := make([]api.ProviderInfo, 0, len(names))
	for _, name := range names {
		resolver, err := s.registry.Resolver(name)
		if err != nil {
			continue
		}
		st := s.state(name)

		all := make([]string, 0)
		enabled := make([]string, 0)
		for _, m := range s.catalog.ListForProvider(name) {
			all = append(all, m.ID)
			if st.allows(m.ID) {
				enabled = append(enabled, m.ID)
			}
		}

		infos = append(infos, api.ProviderInfo{
			Name:            name,
			Enabled:         st.enabled,
			Authenticated:   resolver.Authenticated(ctx),
			AuthMode:        resolver.Mode(),
			AllModelIDs:     all,
			EnabledModelIDs: enabled,
		})
	}
	return infos
}

// SetCredentials validates a credential update against the provider's auth
// mode and applies it. A rejected update changes nothing: the stored
// credentials, enablement, and allow-list all stay as they were.
func (s *Service) SetCredentials(ctx context.Context, name string, update api.CredentialUpdate) api.UpdateResult {
	resolver, err := s.registry.Resolver(name)
	if err != nil {
		return api.Failure(err)
	}
	if err := resolver.Apply(update); err != nil {
		return api.Failure(err)
	}

	st := newProviderState(true, update.SelectedModelIDs)
	if update.SelectedModelIDs == nil {
		// Keep any existing allow-list when the update doesn't mention one.
		st.selected = s.state(name).selected
	}
	s.mu.Lock()
	s.states[name] = st
	s.mu.Unlock()

	if err := s.persistState(ctx, name, st); err != nil {
		s.log.Warn("provider state not persisted", zap.String("provider", name), zap.Error(err))
	}
	s.log.Info("provider credentials updated", zap.String("provider", name))
	return api.Success()
}

func (s *Service) persistState(ctx context.Context, name string, st *providerState) error {
	if s.repo == nil {
		return nil
	}
	ids := make([]string, 0, len(st.selected))
	for id := range st.selected {
		ids = append(ids, id)
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return s.repo.ProviderStates().Upsert(ctx, &model.ProviderState{
		Name:           name,
		Enabled:        st.enabled,
		SelectedModels: string(raw),
	})
}

// SetEnabled toggles a provider without touching its credentials or
// allow-list. Providers are disabled, never deleted.
func (s *Service) SetEnabled(ctx context.Context, name string, enabled bool) error {
	if _, err := s.registry.Provider(name); err != nil {
		return err
	}
	s.mu.Lock()
	st := &providerState{enabled: enabled}
	if prev, ok := s.states[name]; ok {
		st.selected = prev.selected
	}
	s.states[name] = st
	s.mu.Unlock()

	if err := s.persistState(ctx, name, st); err != nil {
		s.log.Warn("provider state not persisted", zap.String("provider", name), zap.Error(err))
	}
	return nil
}

// SetAllowedModels replaces a provider's model allow-list without touching
// its credentials or enablement. An empty list allows every model.
func (s *Service) SetAllowedModels(ctx context.Context, name string, ids []string) error {
	if _, err := s.registry.Provider(name); err != nil {
		return err
	}
	s.mu.Lock()
	prev, ok := s.states[name]
	st := newProviderState(!ok || prev.enabled, ids)
	s.states[name] = st
	s.mu.Unlock()

	if err := s.persistState(ctx, name, st); err != nil {
		s.log.Warn("provider state not persisted", zap.String("provider", name), zap.Error(err))
	}
	return nil
}

// VerifyConnection performs the provider's cheap authenticated probe.
func (s *Service) VerifyConnection(ctx context.Context, name string) error {
	p, err := s.registry.Provider(name)
	if err != nil {
		return err
	}
	return p.Verify(ctx)
}

// ListModels returns the provider's model ids: the vendor-reported list
// merged over the static catalog. Vendor lists are cached briefly since
// vendors rarely change them and some bill the listing call; when the fetch
// fails the static table alone is returned.
func (s *Service) ListModels(ctx context.Context, name string) ([]string, error) {
	static := make([]string, 0)
	for _, m := range s.catalog.ListForProvider(name) {
		static = append(static, m.ID)
	}

	key := "models:" + name
	var vendor []string
	if err := s.cache.Get(ctx, key, &vendor); err != nil {
		p, err := s.registry.Provider(name)
		if err != nil {
			return nil, err
		}
		vendor, err = p.ListModels(ctx)
		if err != nil {
			if len(static) > 0 {
				s.log.Warn("vendor model list unavailable, serving static catalog",
					zap.String("provider", name), zap.Error(err))
				sort.Strings(static)
				return static, nil
			}
			return nil, err
		}
		if err := s.cache.Set(ctx, key, vendor, modelListTTL); err != nil {
			s.log.Debug("model list not cached", zap.String("provider", name), zap.Error(err))
		}
	}

	seen := make(map[string]struct{}, len(static)+len(vendor))
	merged := make([]string, 0, len(static)+len(vendor))
	for _, id := range append(static, vendor...) {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, id)
	}
	sort.Strings(merged)
	return merged, nil
}

// CatalogModels exposes the static catalog for the models endpoint.
func (s *Service) CatalogModels() []catalog.Model {
	return s.catalog.List()
}

// RecentRequests returns the newest request logs.
func (s *Service) RecentRequests(ctx context.Context, limit int) ([]model.RequestLog, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("gateway: request accounting is not configured")
	}
	return s.repo.Requests().GetRecent(ctx, limit)
}

// DailyStats returns aggregated usage per day.
func (s *Service) DailyStats(ctx context.Context, days int) ([]model.DailyStats, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("gateway: request accounting is not configured")
	}
	return s.repo.Requests().GetDailyStats(ctx, days)
}
