// Package calendar computes competition week and month windows.
//
// The competition calendar is irregular: week 1 spans nine calendar days
// from the season start, and every later week runs Monday 00:00:00 through
// Sunday 23:59:59. All time math happens in one fixed reference timezone
// regardless of the caller's or server's timezone.
package calendar

import "time"

// Yangon is the fixed reference timezone for all competition time math.
// Myanmar does not observe DST, so a fixed offset is exact and keeps this
// package independent of the host's tzdata.
var Yangon = time.FixedZone("Asia/Yangon", 6*3600+30*60)

// Window is a half-open-free interval: both boundary instants are inclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window, boundaries included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Week is a numbered competition week.
type Week struct {
	Number int
	Window
}

// Season holds the fixed instants that define one competition run.
// All fields are expressed in the reference timezone.
type Season struct {
	Location *time.Location

	Start time.Time
	End   time.Time

	// Week1End is the inclusive end of the irregular first week. It is a
	// fixed instant baked into the season, not derived from Start.
	Week1End   time.Time
	Week2Start time.Time

	// ExtensionWeek names the week whose transaction dates remain
	// acceptable during the Extension window, after that week has already
	// ended by wall clock.
	ExtensionWeek int
	Extension     Window
}

// Season2025 is the November–December 2025 competition run. Week 1 covers
// Sat Nov 1 through Sun Nov 9 (nine days); week 2 starts Mon Nov 10.
// Submissions dated in week 3 stay acceptable through the first two days
// of week 4.
func Season2025() *Season {
	loc := Yangon
	return &Season{
		Location:      loc,
		Start:         time.Date(2025, time.November, 1, 0, 0, 0, 0, loc),
		End:           time.Date(2025, time.December, 28, 23, 59, 59, 0, loc),
		Week1End:      time.Date(2025, time.November, 9, 23, 59, 59, 0, loc),
		Week2Start:    time.Date(2025, time.November, 10, 0, 0, 0, 0, loc),
		ExtensionWeek: 3,
		Extension: Window{
			Start: time.Date(2025, time.November, 24, 0, 0, 0, 0, loc),
			End:   time.Date(2025, time.November, 25, 23, 59, 59, 0, loc),
		},
	}
}

// HasEnded reports whether the competition is over at the given instant.
func (s *Season) HasEnded(now time.Time) bool {
	return now.After(s.End)
}

// WithinCompetitionPeriod reports whether t falls inside [Start, End].
func (s *Season) WithinCompetitionPeriod(t time.Time) bool {
	return !t.Before(s.Start) && !t.After(s.End)
}

// CurrentWeekNumber returns the competition week that contains now.
// It returns ok=false before the season starts. Past the season end the
// formula keeps counting; HasEnded is the separate gate for that.
func (s *Season) CurrentWeekNumber(now time.Time) (int, bool) {
	if now.Before(s.Start) {
		return 0, false
	}
	if !now.After(s.Week1End) {
		return 1, true
	}
	return 2 + daysBetween(s.Week2Start, now, s.Location)/7, true
}

// WeekBoundaries returns the window of week k (k >= 1).
func (s *Season) WeekBoundaries(k int) (Week, bool) {
	if k < 1 {
		return Week{}, false
	}
	if k == 1 {
		return Week{Number: 1, Window: Window{Start: s.Start, End: s.Week1End}}, true
	}
	start := s.Week2Start.AddDate(0, 0, (k-2)*7)
	end := endOfDay(start.AddDate(0, 0, 6), s.Location)
	return Week{Number: k, Window: Window{Start: start, End: end}}, true
}

// CurrentWeek returns the boundaries of the week containing now.
func (s *Season) CurrentWeek(now time.Time) (Week, bool) {
	k, ok := s.CurrentWeekNumber(now)
	if !ok {
		return Week{}, false
	}
	return s.WeekBoundaries(k)
}

// MonthBoundaries returns the calendar-month window containing now,
// clipped to the season. ok=false when now is outside the season.
func (s *Season) MonthBoundaries(now time.Time) (Window, bool) {
	if !s.WithinCompetitionPeriod(now) {
		return Window{}, false
	}
	local := now.In(s.Location)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, s.Location)
	end := endOfDay(start.AddDate(0, 1, -1), s.Location)
	if start.Before(s.Start) {
		start = s.Start
	}
	if end.After(s.End) {
		end = s.End
	}
	return Window{Start: start, End: end}, true
}

// ExtensionApplies reports whether the late-submission exception covers a
// transaction dated txDate at wall-clock instant now. Both conditions must
// hold: now is inside the extension window, and txDate falls inside the
// extension week's own boundaries. The extension is layered on top of the
// week grid, it does not redefine the week.
func (s *Season) ExtensionApplies(now, txDate time.Time) bool {
	if !s.Extension.Contains(now) {
		return false
	}
	week, ok := s.WeekBoundaries(s.ExtensionWeek)
	if !ok {
		return false
	}
	return week.Contains(txDate)
}

// daysBetween counts whole civil days from a to b in loc. Counting on
// calendar dates rather than dividing elapsed hours keeps the week grid
// aligned with Mondays even in timezones with irregular offsets.
func daysBetween(a, b time.Time, loc *time.Location) int {
	a = a.In(loc)
	b = b.In(loc)
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua) / (24 * time.Hour))
}

func endOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, loc)
}
