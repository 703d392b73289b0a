// Package geo resolves appointment locations to coordinates. The precedence
// chain is an explicit ordered list of sources so each fallback step is
// independently testable:
//
//	explicit caller coordinates -> appointment locality -> customer locality
//	-> default home-region coordinate
//
// Geocoding failures never fail a resolution; they log and fall through to
// the next source.
package geo

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"raincheck/internal/types"
)

// Geocoder looks up a place by name. A nil result with nil error means "no
// match found". Implemented by external.GeocodeClient.
type Geocoder interface {
	Lookup(ctx context.Context, name, province, country string) (*types.Coordinates, error)
}

// Config holds the resolver's fallback coordinate and cache TTL.
type Config struct {
	DefaultLat  float64
	DefaultLon  float64
	DefaultName string
	CacheTTL    time.Duration
}

// Resolver resolves localities to coordinates with long-lived caching.
// Resolved coordinates are persisted back onto the locality record so future
// resolutions skip the geocoder entirely.
type Resolver struct {
	localities types.LocalityStore
	geocoder   Geocoder
	clock      types.Clock
	cfg        Config
	logger     *slog.Logger
	cache      *localityCache
}

// NewResolver creates a Resolver. The cache TTL defaults to 24h when unset.
func NewResolver(localities types.LocalityStore, geocoder Geocoder, clock types.Clock, cfg Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	return &Resolver{
		localities: localities,
		geocoder:   geocoder,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
		cache:      newLocalityCache(clock, cfg.CacheTTL),
	}
}

// Default returns the hard-coded home-region coordinate used when every
// other source fails.
func (r *Resolver) Default() types.Coordinates {
	return types.Coordinates{
		Lat:         r.cfg.DefaultLat,
		Lon:         r.cfg.DefaultLon,
		DisplayName: r.cfg.DefaultName,
	}
}

// ResolveForAppointment returns the coordinate to evaluate the appointment
// against. It never fails: the last source in the chain is the default
// constant.
func (r *Resolver) ResolveForAppointment(ctx context.Context, appt *types.Appointment, explicit *types.Coordinates) types.Coordinates {
	sources := []func(context.Context) *types.Coordinates{
		func(context.Context) *types.Coordinates { return explicit },
		func(ctx context.Context) *types.Coordinates { return r.fromLocalityID(ctx, appt.LocalityID) },
		func(ctx context.Context) *types.Coordinates { return r.fromLocalityID(ctx, appt.CustomerLocalityID) },
	}

	for _, source := range sources {
		if coords := source(ctx); coords != nil {
			return *coords
		}
	}
	return r.Default()
}

// ResolveCoordinates resolves a locality by ID, geocoding its name when the
// record has no stored coordinates. Returns nil when the locality cannot be
// located; the caller decides what to fall back to.
func (r *Resolver) ResolveCoordinates(ctx context.Context, localityID string) *types.Coordinates {
	if coords, ok := r.cache.Get(localityID); ok {
		return coords
	}

	locality, err := r.localities.Get(ctx, localityID)
	if err != nil {
		r.logger.WarnContext(ctx, "locality lookup failed", "locality_id", localityID, "error", err)
		return nil
	}

	if locality.Lat != nil && locality.Lon != nil {
		coords := &types.Coordinates{
			Lat:         *locality.Lat,
			Lon:         *locality.Lon,
			DisplayName: locality.Name,
		}
		r.cache.Set(localityID, coords)
		return coords
	}

	// No stored coordinates: geocode the locality name and persist the
	// result back for future reuse. A failed geocode is "no coordinates",
	// not an error.
	coords, err := r.geocoder.Lookup(ctx, locality.Name, locality.Province, locality.Country)
	if err != nil {
		r.logger.WarnContext(ctx, "geocoding unavailable, falling back",
			"locality_id", localityID,
			"locality", locality.Name,
			"error", err,
		)
		return nil
	}
	if coords == nil {
		return nil
	}

	if coords.DisplayName == "" {
		coords.DisplayName = locality.Name
	}
	if err := r.localities.SaveCoordinates(ctx, localityID, coords.Lat, coords.Lon); err != nil {
		// The resolution itself succeeded; persisting back is best effort.
		r.logger.WarnContext(ctx, "failed to persist geocoded coordinates",
			"locality_id", localityID,
			"error", err,
		)
	}

	r.cache.Set(localityID, coords)
	return coords
}

// ResolveDisplayName returns the human-readable name for a locality, falling
// back to the default display name.
func (r *Resolver) ResolveDisplayName(ctx context.Context, localityID string) string {
	if coords := r.ResolveCoordinates(ctx, localityID); coords != nil && coords.DisplayName != "" {
		return coords.DisplayName
	}
	return r.cfg.DefaultName
}

func (r *Resolver) fromLocalityID(ctx context.Context, id *string) *types.Coordinates {
	if id == nil || *id == "" {
		return nil
	}
	return r.ResolveCoordinates(ctx, *id)
}

// localityCache caches resolved coordinates per locality ID. Concurrent
// readers are safe; cache population races are benign (last write wins).
type localityCache struct {
	mu      sync.RWMutex
	clock   types.Clock
	ttl     time.Duration
	entries map[string]localityEntry
}

type localityEntry struct {
	coords    *types.Coordinates
	expiresAt time.Time
}

func newLocalityCache(clock types.Clock, ttl time.Duration) *localityCache {
	return &localityCache{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]localityEntry),
	}
}

func (c *localityCache) Get(key string) (*types.Coordinates, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.clock.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.coords, true
}

func (c *localityCache) Set(key string, coords *types.Coordinates) {
	c.mu.Lock()
	c.entries[key] = localityEntry{coords: coords, expiresAt: c.clock.Now().Add(c.ttl)}
	c.mu.Unlock()
}
