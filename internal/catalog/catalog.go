// Package catalog manages the reciter catalog: the built-in seed table,
// optional remote enrichment, search, and the active selection.
package catalog

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/tartilapp/tartil-server/internal/domain"
	"github.com/tartilapp/tartil-server/internal/errors"
	"github.com/tartilapp/tartil-server/internal/store"
	"golang.org/x/text/cases"
)

// TimingChecker reports whether a local timing database exists for a reciter.
// Implemented by the timing index; a nil checker means no timing info.
type TimingChecker interface {
	HasTiming(reciterID int) bool
}

// SelectionChangedEvent is emitted when the active reciter changes.
type SelectionChangedEvent struct {
	Reciter *domain.Reciter `json:"reciter"`
}

// Service serves the reciter catalog and tracks the active selection.
type Service struct {
	mu       sync.RWMutex
	reciters map[int]domain.Reciter

	store  *store.Store
	timing TimingChecker
	events store.EventEmitter
	logger *slog.Logger

	enrichURL string
	client    *http.Client
}

// New creates a catalog service seeded with the built-in reciter table.
// enrichURL may be empty to disable remote enrichment.
func New(s *store.Store, timing TimingChecker, events store.EventEmitter, logger *slog.Logger, enrichURL string, client *http.Client) *Service {
	if client == nil {
		client = http.DefaultClient
	}

	svc := &Service{
		reciters:  make(map[int]domain.Reciter, len(seedReciters)),
		store:     s,
		timing:    timing,
		events:    events,
		logger:    logger,
		enrichURL: enrichURL,
		client:    client,
	}
	for _, r := range seedReciters {
		svc.reciters[r.ID] = r
	}
	return svc
}

// Enrich fetches the remote catalog and merges it over the seed table.
// Failures are logged and swallowed; the seed table always remains served.
func (s *Service) Enrich(ctx context.Context) {
	if s.enrichURL == "" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.enrichURL, nil)
	if err != nil {
		s.logger.Warn("Catalog enrichment skipped", "error", err)
		return
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("Catalog enrichment fetch failed, serving seed table", "url", s.enrichURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("Catalog enrichment fetch failed, serving seed table", "url", s.enrichURL, "status", resp.StatusCode)
		return
	}

	var remote []domain.Reciter
	if err := json.UnmarshalRead(resp.Body, &remote); err != nil {
		s.logger.Warn("Catalog enrichment decode failed, serving seed table", "error", err)
		return
	}

	merged := 0
	s.mu.Lock()
	for _, r := range remote {
		if r.ID <= 0 || r.Name == "" || r.BaseURL == "" {
			continue
		}
		s.reciters[r.ID] = r
		merged++
	}
	s.mu.Unlock()

	s.logger.Info("Catalog enriched from remote", "url", s.enrichURL, "merged", merged)
}

// ListOptions filter the catalog listing.
type ListOptions struct {
	Tradition domain.Tradition
	Query     string
	// Lang selects which name Query matches: "en" for the Latin name,
	// "ar" for the Arabic name, anything else for either.
	Lang string
	// TimedOnly restricts results to reciters with a local timing database.
	TimedOnly bool
}

// List returns catalog entries sorted by ID, optionally filtered.
func (s *Service) List(opts ListOptions) []domain.Reciter {
	fold := cases.Fold()
	query := fold.String(strings.TrimSpace(opts.Query))
	arQuery := strings.TrimSpace(opts.Query)

	s.mu.RLock()
	out := make([]domain.Reciter, 0, len(s.reciters))
	for _, r := range s.reciters {
		if opts.Tradition != "" && r.Tradition != opts.Tradition {
			continue
		}
		if query != "" {
			en := strings.Contains(fold.String(r.Name), query)
			ar := strings.Contains(r.NameAr, arQuery)
			matched := en || ar
			switch opts.Lang {
			case "en":
				matched = en
			case "ar":
				matched = ar
			}
			if !matched {
				continue
			}
		}
		r.HasTiming = s.hasTiming(r.ID)
		if opts.TimedOnly && !r.HasTiming {
			continue
		}
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByID returns one reciter.
func (s *Service) ByID(id int) (*domain.Reciter, error) {
	s.mu.RLock()
	r, ok := s.reciters[id]
	s.mu.RUnlock()

	if !ok {
		return nil, errors.NotFoundf("reciter %d not found", id)
	}
	r.HasTiming = s.hasTiming(r.ID)
	return &r, nil
}

// Select marks a reciter as the active selection and persists it.
func (s *Service) Select(ctx context.Context, id int) (*domain.Reciter, error) {
	r, err := s.ByID(id)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetSelectedReciter(ctx, id); err != nil {
		return nil, fmt.Errorf("persist selection: %w", err)
	}

	if s.events != nil {
		s.events.Emit(SelectionChangedEvent{Reciter: r})
	}
	s.logger.Info("Reciter selected", "reciter_id", r.ID, "name", r.Name)
	return r, nil
}

// CurrentSelection returns the active reciter. When nothing was ever
// selected, or the persisted selection no longer exists in the catalog,
// it falls back to Default and never fails.
func (s *Service) CurrentSelection(ctx context.Context) *domain.Reciter {
	settings, err := s.store.GetOrCreatePlayerSettings(ctx)
	if err != nil {
		s.logger.Warn("Failed to load selection, using default reciter", "error", err)
		return s.Default()
	}

	r, err := s.ByID(settings.ReciterID)
	if err != nil {
		return s.Default()
	}
	return r
}

// Default returns the first seed reciter. The seed table is compiled in,
// so this never fails.
func (s *Service) Default() *domain.Reciter {
	r, err := s.ByID(seedReciters[0].ID)
	if err != nil {
		// Seeds are immutable at runtime; reaching this is a bug.
		fallback := seedReciters[0]
		return &fallback
	}
	return r
}

func (s *Service) hasTiming(id int) bool {
	return s.timing != nil && s.timing.HasTiming(id)
}
