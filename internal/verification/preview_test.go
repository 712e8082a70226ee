package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/nandar/payquest/internal/models"
	"gitlab.com/nandar/payquest/internal/repository"
)

func TestPreviewThenConfirm(t *testing.T) {
	t.Parallel()

	f := newFixture(inWeek2)
	res := f.p.Preview(context.Background(), 1, []byte("img"), "receipt.jpg")

	require.True(t, res.WouldApprove())
	require.NotEmpty(t, res.Token)
	require.Equal(t, "TXN100200300", res.Transaction.ReferenceID)

	// Preview writes nothing and consumes no throttle slot.
	require.Empty(t, f.commit.committed)
	require.Zero(t, f.commit.increments)
	require.Equal(t, 1, f.text.calls)

	confirmed, err := f.p.Confirm(context.Background(), res.Token)
	require.NoError(t, err)
	require.True(t, confirmed.Approved)
	require.Len(t, f.commit.committed, 1)
	require.Equal(t, models.StatusApproved, f.commit.committed[0].Status)

	// Confirm replays the preview; no second extraction happens.
	require.Equal(t, 1, f.text.calls)
	require.Equal(t, 1, f.fields.calls)
}

func TestPreviewRejection(t *testing.T) {
	t.Parallel()

	f := newFixture(inWeek2)
	f.refs.exists = true

	res := f.p.Preview(context.Background(), 1, []byte("img"), "receipt.jpg")

	require.False(t, res.WouldApprove())
	require.Equal(t, models.ReasonDuplicateRef, res.Reason)
	require.Empty(t, f.commit.committed, "preview rejections write no row")
	require.Zero(t, f.commit.increments)
}

func TestPreviewThrottled(t *testing.T) {
	t.Parallel()

	f := newFixture(inWeek2)
	f.throttle.allow = false

	res := f.p.Preview(context.Background(), 1, []byte("img"), "receipt.jpg")
	require.Equal(t, models.ReasonDailyLimit, res.Reason)
	require.Zero(t, f.text.calls)
}

func TestPreviewSystemError(t *testing.T) {
	t.Parallel()

	f := newFixture(inWeek2)
	f.store.saveErr = errors.New("disk full")

	res := f.p.Preview(context.Background(), 1, []byte("img"), "receipt.jpg")
	require.Equal(t, models.ReasonSystemError, res.Reason)
	require.Empty(t, f.commit.committed, "preview never writes the error row")
}

func TestConfirmTokenSingleUse(t *testing.T) {
	t.Parallel()

	f := newFixture(inWeek2)
	res := f.p.Preview(context.Background(), 1, []byte("img"), "receipt.jpg")
	require.NotEmpty(t, res.Token)

	_, err := f.p.Confirm(context.Background(), res.Token)
	require.NoError(t, err)

	_, err = f.p.Confirm(context.Background(), res.Token)
	require.ErrorIs(t, err, ErrPreviewNotFound)
}

func TestConfirmUnknownToken(t *testing.T) {
	t.Parallel()

	f := newFixture(inWeek2)
	_, err := f.p.Confirm(context.Background(), "no-such-token")
	require.ErrorIs(t, err, ErrPreviewNotFound)
}

func TestConfirmExpiredToken(t *testing.T) {
	t.Parallel()

	f := newFixture(inWeek2)
	res := f.p.Preview(context.Background(), 1, []byte("img"), "receipt.jpg")
	require.NotEmpty(t, res.Token)

	f.clock = f.clock.Add(previewTTL + time.Second)

	_, err := f.p.Confirm(context.Background(), res.Token)
	require.ErrorIs(t, err, ErrPreviewNotFound)
	require.Empty(t, f.commit.committed)
}

func TestConfirmLosesReferenceRace(t *testing.T) {
	t.Parallel()

	f := newFixture(inWeek2)
	res := f.p.Preview(context.Background(), 1, []byte("img"), "receipt.jpg")
	require.NotEmpty(t, res.Token)

	// Someone else claims the reference between preview and confirm.
	f.commit.commitErrs = []error{repository.ErrDuplicateReference}

	confirmed, err := f.p.Confirm(context.Background(), res.Token)
	require.NoError(t, err)
	require.False(t, confirmed.Approved)
	require.Equal(t, models.ReasonDuplicateRef, confirmed.Reason)
}
