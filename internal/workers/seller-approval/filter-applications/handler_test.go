package filterapplications

import (
	"context"
	"testing"
	"time"

	commonerrors "opas-admin-workers/internal/common/errors"
	"opas-admin-workers/internal/common/logger"
	"opas-admin-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func ts(t time.Time) *time.Time { return &t }

func createApps() []models.Application {
	return []models.Application{
		{SellerID: "1", Email: "a@farm.ph", CreatedAt: "2024-06-14T08:00:00Z", Documents: []models.Document{{Type: "permit"}}},
		{SellerID: "2", Email: "b@farm.ph", CreatedAt: "2024-05-01 10:00:00"},
		{SellerID: "3", Email: "c@farm.ph", CreatedAt: "last tuesday", Documents: []models.Document{{Type: "id"}}},
		{SellerID: "4", Email: "d@farm.ph", Documents: []models.Document{}},
		{SellerID: "5", Email: "e@farm.ph", CreatedAt: "2024-06-08T12:00:00.123456"},
	}
}

func createTestHandler(t *testing.T) *Handler {
	return NewHandler(LoadConfig(), nil, logger.NewTestLogger(t)).WithClock(func() time.Time { return now })
}

func ids(apps []models.Application) []string {
	out := make([]string, len(apps))
	for i, a := range apps {
		out[i] = a.SellerID
	}
	return out
}

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name     string
		criteria models.FilterCriteria
		wantIDs  []string
	}{
		{name: "all pending", criteria: models.FilterCriteria{Kind: models.FilterAllPending}, wantIDs: []string{"1", "2", "3", "4", "5"}},
		{name: "documents complete", criteria: models.FilterCriteria{Kind: models.FilterDocumentsComplete}, wantIDs: []string{"1", "3"}},
		{name: "recent keeps last seven days", criteria: models.FilterCriteria{Kind: models.FilterRecent}, wantIDs: []string{"1", "5"}},
		{
			name: "date range is half open",
			criteria: models.FilterCriteria{
				Kind:  models.FilterDateRange,
				Start: ts(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)),
				End:   ts(time.Date(2024, 6, 14, 8, 0, 0, 0, time.UTC)),
			},
			wantIDs: []string{"2", "5"},
		},
	}

	h := createTestHandler(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.Execute(context.Background(), &Input{Applications: createApps(), Criteria: tt.criteria})
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, ids(out.Applications))
			assert.Equal(t, 5, out.Stats.Original)
			assert.Equal(t, len(tt.wantIDs), out.Stats.Retained)
			assert.Equal(t, 5-len(tt.wantIDs), out.Stats.Removed)
		})
	}
}

func TestFilter_AllPendingIsIdentity(t *testing.T) {
	apps := createApps()
	out, stats, err := Filter(apps, models.FilterCriteria{Kind: models.FilterAllPending}, now, 0)
	require.NoError(t, err)
	assert.Equal(t, apps, out)
	assert.Zero(t, stats.Removed)
}

func TestFilter_InvalidCriteria(t *testing.T) {
	tests := []struct {
		name     string
		criteria models.FilterCriteria
	}{
		{name: "unknown kind", criteria: models.FilterCriteria{Kind: "by_region"}},
		{name: "range without end", criteria: models.FilterCriteria{Kind: models.FilterDateRange, Start: ts(now)}},
		{name: "inverted range", criteria: models.FilterCriteria{Kind: models.FilterDateRange, Start: ts(now), End: ts(now.Add(-time.Hour))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Filter(createApps(), tt.criteria, now, 0)
			stdErr, ok := commonerrors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, commonerrors.ErrCodeInvalidFilter, stdErr.Code)
		})
	}
}

func TestFilter_EmptyInput(t *testing.T) {
	out, stats, err := Filter(nil, models.FilterCriteria{Kind: models.FilterRecent}, now, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, models.FilterStats{}, stats)
}
