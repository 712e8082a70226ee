package ranking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gitlab.com/nandar/payquest/internal/calendar"
	"gitlab.com/nandar/payquest/internal/models"
)

type fakeRepo struct {
	records []models.ApprovedRecord
	err     error

	lastStart *time.Time
	lastEnd   *time.Time
}

func (f *fakeRepo) ApprovedInRange(_ context.Context, start, end *time.Time) ([]models.ApprovedRecord, error) {
	f.lastStart, f.lastEnd = start, end
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.ApprovedRecord, 0, len(f.records))
	for _, r := range f.records {
		if start != nil && r.ApprovedAt.Before(*start) {
			continue
		}
		if end != nil && r.ApprovedAt.After(*end) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func approvedAt(id int64, name, track string, at time.Time) models.ApprovedRecord {
	return models.ApprovedRecord{
		ParticipantID: id,
		Name:          name,
		Track:         track,
		Amount:        decimal.NewFromInt(10),
		ApprovedAt:    at,
	}
}

func TestParsePeriod(t *testing.T) {
	t.Parallel()

	p, err := ParsePeriod("weekly")
	require.NoError(t, err)
	require.Equal(t, PeriodWeekly, p)

	p, err = ParsePeriod("")
	require.NoError(t, err)
	require.Equal(t, PeriodAll, p)

	_, err = ParsePeriod("fortnightly")
	require.Error(t, err)
}

func TestLeaderboardWeeklyWindow(t *testing.T) {
	t.Parallel()

	season := calendar.Season2025()
	// 2025-11-12 sits in week 2 (Nov 10 through Nov 16).
	now := time.Date(2025, 11, 12, 10, 0, 0, 0, time.UTC)

	repo := &fakeRepo{records: []models.ApprovedRecord{
		approvedAt(1, "Aye", models.TrackStudent, time.Date(2025, 11, 11, 8, 0, 0, 0, time.UTC)),
		approvedAt(2, "Bo", models.TrackStudent, time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)),
	}}
	svc := NewService(repo, season, fixedClock(now))

	entries, err := svc.Leaderboard(context.Background(), PeriodWeekly, "")
	require.NoError(t, err)
	require.NotNil(t, repo.lastStart)
	require.NotNil(t, repo.lastEnd)
	require.Len(t, entries, 1, "week 1 approval is outside the weekly window")
	require.Equal(t, int64(1), entries[0].ParticipantID)
}

func TestLeaderboardAllTimeAndTrackFilter(t *testing.T) {
	t.Parallel()

	season := calendar.Season2025()
	now := time.Date(2025, 11, 12, 10, 0, 0, 0, time.UTC)
	repo := &fakeRepo{records: []models.ApprovedRecord{
		approvedAt(1, "Aye", models.TrackStudent, now.Add(-time.Hour)),
		approvedAt(2, "Shwe Traders", models.TrackEntrepreneur, now.Add(-2*time.Hour)),
	}}
	svc := NewService(repo, season, fixedClock(now))

	entries, err := svc.Leaderboard(context.Background(), PeriodAll, "")
	require.NoError(t, err)
	require.Nil(t, repo.lastStart)
	require.Nil(t, repo.lastEnd)
	require.Len(t, entries, 2)

	entries, err = svc.Leaderboard(context.Background(), PeriodAll, models.TrackEntrepreneur)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "Shwe Traders", entries[0].Name)
}

func TestWeeklyOutsideSeason(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{records: []models.ApprovedRecord{
		approvedAt(1, "Aye", models.TrackStudent, time.Date(2025, 11, 11, 8, 0, 0, 0, time.UTC)),
	}}
	svc := NewService(repo, calendar.Season2025(),
		fixedClock(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))

	// Outside the season a windowed board is empty, never an error.
	entries, err := svc.Leaderboard(context.Background(), PeriodWeekly, "")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestPositionAbsent(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 11, 12, 10, 0, 0, 0, time.UTC)
	repo := &fakeRepo{records: []models.ApprovedRecord{
		approvedAt(1, "Aye", models.TrackStudent, now.Add(-time.Hour)),
	}}
	svc := NewService(repo, calendar.Season2025(), fixedClock(now))

	own, err := svc.Position(context.Background(), PeriodAll, "", 42)
	require.NoError(t, err)
	require.Nil(t, own)
}

func TestTop20WithPosition(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 11, 12, 10, 0, 0, 0, time.UTC)
	records := make([]models.ApprovedRecord, 0, 25*3)
	// Participant i earns 26-i approvals so ranks are 1..25 in id order.
	for i := int64(1); i <= 25; i++ {
		for j := int64(0); j < 26-i; j++ {
			records = append(records, approvedAt(i, "p", models.TrackStudent,
				now.Add(-time.Duration(i*100+j)*time.Minute)))
		}
	}
	svc := NewService(&fakeRepo{records: records}, calendar.Season2025(), fixedClock(now))

	st, err := svc.Top20WithPosition(context.Background(), PeriodAll, "", 23)
	require.NoError(t, err)
	require.Len(t, st.Top, 20)
	require.Equal(t, 25, st.Total)
	require.NotNil(t, st.Own)
	require.Equal(t, int64(23), st.Own.ParticipantID)
	require.Equal(t, 23, st.Own.Rank)

	// A participant already inside the top 20 gets no duplicate row.
	st, err = svc.Top20WithPosition(context.Background(), PeriodAll, "", 3)
	require.NoError(t, err)
	require.Nil(t, st.Own)
}

func TestPaginated(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 11, 12, 10, 0, 0, 0, time.UTC)
	records := []models.ApprovedRecord{
		approvedAt(1, "Aung Myo", models.TrackStudent, now.Add(-4*time.Hour)),
		approvedAt(2, "Myo Thant", models.TrackStudent, now.Add(-3*time.Hour)),
		approvedAt(3, "Su Su", models.TrackStudent, now.Add(-2*time.Hour)),
	}
	svc := NewService(&fakeRepo{records: records}, calendar.Season2025(), fixedClock(now))

	page, err := svc.Paginated(context.Background(), PeriodAll, "", 1, 2, "")
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	require.Equal(t, 3, page.Total)
	require.Equal(t, 2, page.LastPage)

	// Case-insensitive name filter runs before pagination.
	page, err = svc.Paginated(context.Background(), PeriodAll, "", 1, 10, "myo")
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	require.Equal(t, 2, page.Total)
	require.Equal(t, 1, page.LastPage)

	// Filtered rows keep their rank from the full leaderboard.
	require.Equal(t, int64(1), page.Data[0].ParticipantID)
	require.Equal(t, 1, page.Data[0].Rank)

	// Out-of-range page returns an empty slice, not an error.
	page, err = svc.Paginated(context.Background(), PeriodAll, "", 9, 2, "")
	require.NoError(t, err)
	require.Empty(t, page.Data)
	require.Equal(t, 2, page.LastPage)

	// No matches still reports lastPage 1.
	page, err = svc.Paginated(context.Background(), PeriodAll, "", 1, 10, "zzz")
	require.NoError(t, err)
	require.Empty(t, page.Data)
	require.Equal(t, 1, page.LastPage)
}

func TestServiceRepositoryError(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeRepo{err: errors.New("db down")}, calendar.Season2025(), nil)
	_, err := svc.Leaderboard(context.Background(), PeriodAll, "")
	require.Error(t, err)
}
