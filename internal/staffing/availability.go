package staffing

import (
	"context"
	"log/slog"
	"time"

	"raincheck/internal/types"
)

// FinderConfig tunes the forward slot search.
type FinderConfig struct {
	// MaxSearchDays caps how many candidate days are scanned. Default 30.
	MaxSearchDays int
	// WeatherLeadDays is the start offset used by the weather reschedule
	// path, allowing supply lead time. Default 7. It is also the fallback
	// offset when the search is exhausted.
	WeatherLeadDays int
	// DefaultCrewSize is the required headcount when an appointment carries
	// no prior assignments. Default 2.
	DefaultCrewSize int
}

func (c FinderConfig) withDefaults() FinderConfig {
	if c.MaxSearchDays <= 0 {
		c.MaxSearchDays = 30
	}
	if c.WeatherLeadDays <= 0 {
		c.WeatherLeadDays = 7
	}
	if c.DefaultCrewSize <= 0 {
		c.DefaultCrewSize = 2
	}
	return c
}

// Finder scans forward day by day for the next date with enough unassigned
// staff.
//
// The headcount computation for each candidate day reads a point-in-time
// snapshot of staff assignments; nothing is locked. Two concurrent searches
// can therefore both see the same free capacity and suggest the same slot.
// This matches the reference behavior; callers needing a stronger guarantee
// must recheck before committing staff to the suggested date.
type Finder struct {
	staff  types.StaffStore
	cfg    FinderConfig
	logger *slog.Logger
}

// NewFinder creates a Finder over the given staff store.
func NewFinder(staff types.StaffStore, cfg FinderConfig, logger *slog.Logger) *Finder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finder{staff: staff, cfg: cfg.withDefaults(), logger: logger}
}

// NextAvailableDate returns the earliest date from originalDate+startOffset
// onward with at least requiredHeadcount unassigned active staff.
//
// The scan covers at most MaxSearchDays candidate days. When no day
// qualifies, the fallback originalDate + WeatherLeadDays is returned with
// found=false; callers must treat that as best-effort, not a guarantee.
func (f *Finder) NextAvailableDate(ctx context.Context, originalDate time.Time, requiredHeadcount, startOffsetDays int) (date time.Time, found bool, err error) {
	if startOffsetDays < 1 {
		startOffsetDays = 1
	}

	active, err := f.staff.ListActive(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	total := len(active)

	origin := types.CivilDate(originalDate)
	for offset := 0; offset < f.cfg.MaxSearchDays; offset++ {
		candidate := origin.AddDate(0, 0, startOffsetDays+offset)

		occupied, err := f.staff.ListAssignedOnDate(ctx, candidate, types.RoleOperator)
		if err != nil {
			return time.Time{}, false, err
		}

		if total-len(occupied) >= requiredHeadcount {
			return candidate, true, nil
		}
	}

	fallback := origin.AddDate(0, 0, f.cfg.WeatherLeadDays)
	f.logger.WarnContext(ctx, "slot search exhausted, returning fallback date",
		"original_date", origin.Format("2006-01-02"),
		"required_headcount", requiredHeadcount,
		"fallback_date", fallback.Format("2006-01-02"),
	)
	return fallback, false, nil
}

// NextWeatherSlot runs the search with the weather path's lead-time offset.
func (f *Finder) NextWeatherSlot(ctx context.Context, originalDate time.Time, requiredHeadcount int) (time.Time, bool, error) {
	return f.NextAvailableDate(ctx, originalDate, requiredHeadcount, f.cfg.WeatherLeadDays)
}

// RequiredHeadcount derives how many staff a reschedule of the appointment
// needs: the number of operator-role assignments, falling back to the total
// assignment count, falling back to the configured default crew size.
func (f *Finder) RequiredHeadcount(appt *types.Appointment) int {
	operators := 0
	for _, a := range appt.Assignments {
		if a.Role == types.RoleOperator {
			operators++
		}
	}
	if operators > 0 {
		return operators
	}
	if len(appt.Assignments) > 0 {
		return len(appt.Assignments)
	}
	return f.cfg.DefaultCrewSize
}
