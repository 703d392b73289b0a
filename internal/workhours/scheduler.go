// Package workhours computes service start and end times constrained to the
// crew's working windows. Work only accrues inside a window; a job that does
// not fit before a window closes resumes at the start of the next one, on the
// next day if necessary.
package workhours

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"raincheck/internal/types"
)

// Window is one contiguous working interval within a day, as minutes from
// midnight. End is exclusive: a window of 08:00-12:00 allows work to start at
// 08:00 up to, but not at, 12:00.
type Window struct {
	StartMin int
	EndMin   int
}

// String renders the window in the HH:MM-HH:MM form it was parsed from.
func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.StartMin/60, w.StartMin%60, w.EndMin/60, w.EndMin%60)
}

// ParseWindows parses window specs of the form "08:00-12:00" and returns them
// sorted by start time. Overlapping or zero-length windows are rejected.
func ParseWindows(specs []string) ([]Window, error) {
	if len(specs) == 0 {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "at least one working window is required", nil)
	}

	windows := make([]Window, 0, len(specs))
	for _, spec := range specs {
		w, err := parseWindow(spec)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}

	sort.Slice(windows, func(i, j int) bool { return windows[i].StartMin < windows[j].StartMin })

	for i := 1; i < len(windows); i++ {
		if windows[i].StartMin < windows[i-1].EndMin {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidDuration,
				fmt.Sprintf("working windows %s and %s overlap", windows[i-1], windows[i]), nil)
		}
	}
	return windows, nil
}

func parseWindow(spec string) (Window, error) {
	parts := strings.Split(spec, "-")
	if len(parts) != 2 {
		return Window{}, types.NewAppError(types.ErrCodeValidationInvalidDuration,
			fmt.Sprintf("invalid working window %q, expected HH:MM-HH:MM", spec), nil)
	}

	start, err := parseClock(strings.TrimSpace(parts[0]))
	if err != nil {
		return Window{}, err
	}
	end, err := parseClock(strings.TrimSpace(parts[1]))
	if err != nil {
		return Window{}, err
	}
	if end <= start {
		return Window{}, types.NewAppError(types.ErrCodeValidationInvalidDuration,
			fmt.Sprintf("working window %q must end after it starts", spec), nil)
	}
	return Window{StartMin: start, EndMin: end}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeValidationInvalidDuration,
			fmt.Sprintf("invalid clock time %q, expected HH:MM", s), err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Scheduler places work inside a fixed set of daily windows. Work is metered
// in whole hours; fractional service durations are rounded up.
type Scheduler struct {
	windows []Window
}

func newScheduler(windows []Window) *Scheduler {
	return &Scheduler{windows: windows}
}

// NewSchedulerFromSpecs parses the specs and creates a Scheduler. It is the
// only constructor; ParseWindows rejecting empty specs guarantees every
// Scheduler holds at least one window.
func NewSchedulerFromSpecs(specs []string) (*Scheduler, error) {
	windows, err := ParseWindows(specs)
	if err != nil {
		return nil, err
	}
	return newScheduler(windows), nil
}

// Windows returns the scheduler's windows in start order.
func (s *Scheduler) Windows() []Window {
	return s.windows
}

// NormalizeStart snaps a requested start to a valid working start: the time
// is truncated to the whole hour, then advanced to the opening of the next
// window when it falls outside every window. A start inside a window stays
// on its truncated hour.
func (s *Scheduler) NormalizeStart(t time.Time) time.Time {
	t = t.Truncate(time.Hour)
	minute := t.Hour() * 60

	for _, w := range s.windows {
		if minute >= w.StartMin && minute < w.EndMin {
			return t
		}
	}
	return s.nextWindowOpen(t)
}

// nextWindowOpen returns the opening of the first window at or after t,
// rolling to the next day when t is past the last window.
func (s *Scheduler) nextWindowOpen(t time.Time) time.Time {
	minute := t.Hour()*60 + t.Minute()
	day := types.CivilDate(t)

	for _, w := range s.windows {
		if minute <= w.StartMin {
			return day.Add(time.Duration(w.StartMin) * time.Minute)
		}
	}

	next := day.AddDate(0, 0, 1)
	return next.Add(time.Duration(s.windows[0].StartMin) * time.Minute)
}

// AddWorkingHours advances start by the given number of whole working hours,
// skipping time outside the windows. The start must already be normalized.
func (s *Scheduler) AddWorkingHours(start time.Time, hours int) time.Time {
	current := start
	for remaining := hours; remaining > 0; {
		w, ok := s.windowContaining(current)
		if !ok {
			current = s.nextWindowOpen(current)
			continue
		}

		minute := current.Hour()*60 + current.Minute()
		available := (w.EndMin - minute) / 60
		if available <= 0 {
			current = s.nextWindowOpen(current.Add(time.Minute))
			continue
		}

		step := remaining
		if step > available {
			step = available
		}
		current = current.Add(time.Duration(step) * time.Hour)
		remaining -= step
	}
	return current
}

func (s *Scheduler) windowContaining(t time.Time) (Window, bool) {
	minute := t.Hour()*60 + t.Minute()
	for _, w := range s.windows {
		if minute >= w.StartMin && minute < w.EndMin {
			return w, true
		}
	}
	return Window{}, false
}

// ComputeSchedule resolves the working start and end for a service of the
// given duration beginning at or after requestedStart. The duration is
// rounded up to whole hours; a non-positive duration yields end == start.
func (s *Scheduler) ComputeSchedule(requestedStart time.Time, duration time.Duration) types.WorkScheduleResult {
	start := s.NormalizeStart(requestedStart)

	hours := 0
	if duration > 0 {
		hours = int(math.Ceil(duration.Minutes() / 60))
	}

	end := start
	if hours > 0 {
		end = s.AddWorkingHours(start, hours)
	}

	return types.WorkScheduleResult{
		Start:         start,
		End:           end,
		DurationHours: hours,
	}
}
