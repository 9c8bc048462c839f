package timeclock

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Jsunwilke/employeeapp-sub001/config"
	"github.com/Jsunwilke/employeeapp-sub001/internal/models"
	"github.com/Jsunwilke/employeeapp-sub001/internal/timeclock"
)

type stubRepo struct{}

func (stubRepo) GetByID(ctx context.Context, id string) (*models.TimeEntry, error) {
	return nil, timeclock.ErrEntryNotFound
}

func (stubRepo) GetActive(ctx context.Context, userID string) (*models.TimeEntry, error) {
	return nil, nil
}

func (stubRepo) FindOverlapping(ctx context.Context, userID string, start, end time.Time, excludeID string) ([]models.TimeEntry, error) {
	return nil, nil
}

func (stubRepo) Insert(ctx context.Context, entry *models.TimeEntry) error { return nil }
func (stubRepo) Update(ctx context.Context, entry *models.TimeEntry) error { return nil }
func (stubRepo) Delete(ctx context.Context, id string) error               { return nil }

func (stubRepo) ListByUser(ctx context.Context, userID string, from, to time.Time) ([]models.TimeEntry, error) {
	return nil, nil
}

func (stubRepo) ListActive(ctx context.Context) ([]models.TimeEntry, error) { return nil, nil }

func authenticatedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(context.WithValue(req.Context(), config.UserIDKey, 7))
}

func TestListEntriesRejectsMalformedTimeFilters(t *testing.T) {
	h := NewHandlers(timeclock.NewService(stubRepo{}, timeclock.DefaultRules()))

	rec := httptest.NewRecorder()
	h.ListEntriesHandler(rec, authenticatedRequest("GET", "/api/entries?from=yesterday"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ListEntriesHandler(rec, authenticatedRequest("GET", "/api/entries?to=2025-06-02"))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "date-only values are not RFC3339")

	rec = httptest.NewRecorder()
	h.ListEntriesHandler(rec, authenticatedRequest("GET", "/api/entries?from=2025-06-01T00:00:00Z&to=2025-06-02T00:00:00Z"))
	assert.Equal(t, http.StatusOK, rec.Code)
}
