package ranking

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"gitlab.com/nandar/payquest/internal/calendar"
	"gitlab.com/nandar/payquest/internal/models"
)

// Period selects the aggregation window for a leaderboard query.
type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAll     Period = "all"
)

// ParsePeriod validates a period string. The empty string defaults to
// the all-time window.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodWeekly, PeriodMonthly, PeriodAll:
		return Period(s), nil
	case "":
		return PeriodAll, nil
	}
	return "", fmt.Errorf("unknown leaderboard period %q", s)
}

// Repository is the read side the ranking service aggregates over.
type Repository interface {
	ApprovedInRange(ctx context.Context, start, end *time.Time) ([]models.ApprovedRecord, error)
}

// Page is one slice of a paginated leaderboard listing.
type Page struct {
	Data        []models.LeaderboardEntry `json:"data"`
	CurrentPage int                       `json:"current_page"`
	PerPage     int                       `json:"per_page"`
	Total       int                       `json:"total"`
	LastPage    int                       `json:"last_page"`
}

// Standing is a top-20 view with the querying participant's own row
// included even when they sit below the cutoff.
type Standing struct {
	Top   []models.LeaderboardEntry `json:"top"`
	Own   *models.LeaderboardEntry  `json:"own,omitempty"`
	Total int                       `json:"total"`
}

// Service computes leaderboards on demand from committed transactions.
// Nothing is cached or persisted; every query aggregates a fresh
// snapshot so results always reflect the latest approvals.
type Service struct {
	repo   Repository
	season *calendar.Season
	now    func() time.Time
}

// NewService creates a ranking service over the given repository. The
// clock is injectable for tests; pass nil to use time.Now.
func NewService(repo Repository, season *calendar.Season, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, season: season, now: now}
}

// windowFor resolves a period to an approved_at range. A nil pair with
// active=true means all-time; active=false means no window currently
// applies and the board is empty by definition.
func (s *Service) windowFor(period Period) (start, end *time.Time, active bool) {
	switch period {
	case PeriodAll:
		return nil, nil, true
	case PeriodWeekly:
		now := s.now()
		w, ok := s.season.CurrentWeek(now)
		if !ok || !s.season.WithinCompetitionPeriod(now) {
			return nil, nil, false
		}
		return &w.Start, &w.End, true
	case PeriodMonthly:
		w, ok := s.season.MonthBoundaries(s.now())
		if !ok {
			return nil, nil, false
		}
		return &w.Start, &w.End, true
	}
	return nil, nil, false
}

func (s *Service) build(ctx context.Context, period Period, track string) ([]models.LeaderboardEntry, error) {
	start, end, active := s.windowFor(period)
	if !active {
		// Outside the season every windowed board is empty, not an error.
		return []models.LeaderboardEntry{}, nil
	}
	records, err := s.repo.ApprovedInRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("loading approved transactions: %w", err)
	}
	if track != "" {
		filtered := records[:0]
		for _, r := range records {
			if r.Track == track {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}
	return Build(records), nil
}

// Leaderboard returns the full ranked list for the period. An empty
// track includes both tracks.
func (s *Service) Leaderboard(ctx context.Context, period Period, track string) ([]models.LeaderboardEntry, error) {
	return s.build(ctx, period, track)
}

// Position returns the participant's ranked row, or nil when they have
// no approved transactions in the window.
func (s *Service) Position(ctx context.Context, period Period, track string, participantID int64) (*models.LeaderboardEntry, error) {
	entries, err := s.build(ctx, period, track)
	if err != nil {
		return nil, err
	}
	return Position(entries, participantID), nil
}

// Top20WithPosition returns the top 20 rows plus the participant's own
// row when they rank below the cutoff, plus the total participant count.
func (s *Service) Top20WithPosition(ctx context.Context, period Period, track string, participantID int64) (*Standing, error) {
	entries, err := s.build(ctx, period, track)
	if err != nil {
		return nil, err
	}

	st := &Standing{Total: len(entries)}
	cutoff := 20
	if len(entries) < cutoff {
		cutoff = len(entries)
	}
	st.Top = entries[:cutoff]

	own := Position(entries, participantID)
	if own != nil && own.Rank > 0 {
		inTop := false
		for i := range st.Top {
			if st.Top[i].ParticipantID == participantID {
				inTop = true
				break
			}
		}
		if !inTop {
			st.Own = own
		}
	}
	return st, nil
}

// Paginated filters by a case-insensitive name substring first, then
// slices the requested page. Ranks are the positions in the unfiltered
// leaderboard, so a filtered listing shows each participant's true rank.
func (s *Service) Paginated(ctx context.Context, period Period, track string, page, perPage int, search string) (*Page, error) {
	entries, err := s.build(ctx, period, track)
	if err != nil {
		return nil, err
	}

	if search != "" {
		needle := strings.ToLower(search)
		filtered := make([]models.LeaderboardEntry, 0, len(entries))
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e.Name), needle) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 50
	}

	total := len(entries)
	lastPage := int(math.Ceil(float64(total) / float64(perPage)))
	if lastPage < 1 {
		lastPage = 1
	}

	lo := (page - 1) * perPage
	if lo > total {
		lo = total
	}
	hi := lo + perPage
	if hi > total {
		hi = total
	}

	return &Page{
		Data:        entries[lo:hi],
		CurrentPage: page,
		PerPage:     perPage,
		Total:       total,
		LastPage:    lastPage,
	}, nil
}
