package timeclock

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jsunwilke/employeeapp-sub001/internal/models"
)

var baseTime = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

func TestValidateInterval(t *testing.T) {
	rules := DefaultRules()
	now := baseTime.Add(48 * time.Hour)

	err := rules.ValidateInterval(baseTime, baseTime, now)
	requireCode(t, err, CodeNonPositiveDuration)

	err = rules.ValidateInterval(baseTime, baseTime.Add(-time.Hour), now)
	requireCode(t, err, CodeNonPositiveDuration)

	err = rules.ValidateInterval(baseTime, baseTime.Add(25*time.Hour), now)
	requireCode(t, err, CodeExceedsMaxDuration)

	err = rules.ValidateInterval(now.Add(-time.Hour), now.Add(time.Hour), now)
	requireCode(t, err, CodeFutureTime)

	assert.NoError(t, rules.ValidateInterval(baseTime, baseTime.Add(8*time.Hour), now))
	// Exactly the max duration is allowed.
	assert.NoError(t, rules.ValidateInterval(baseTime, baseTime.Add(24*time.Hour), now))
}

func TestValidateIntervalChecksDurationBeforeFuture(t *testing.T) {
	// A 30h entry ending in the future is reported as too long, matching
	// the order a user can act on.
	rules := DefaultRules()
	now := baseTime.Add(2 * time.Hour)
	err := rules.ValidateInterval(baseTime, baseTime.Add(30*time.Hour), now)
	requireCode(t, err, CodeExceedsMaxDuration)
}

func TestValidateNotes(t *testing.T) {
	rules := DefaultRules()

	assert.NoError(t, rules.ValidateNotes(""))
	assert.NoError(t, rules.ValidateNotes(strings.Repeat("a", 500)))
	requireCode(t, rules.ValidateNotes(strings.Repeat("a", 501)), CodeNotesTooLong)
	// Length is measured in characters, not bytes.
	assert.NoError(t, rules.ValidateNotes(strings.Repeat("ö", 500)))
}

func TestCanMutate(t *testing.T) {
	rules := DefaultRules()
	now := baseTime

	fresh := &models.TimeEntry{Status: models.StatusCompleted, CreatedAt: now.AddDate(0, 0, -29)}
	assert.True(t, rules.CanMutate(fresh, now))

	stale := &models.TimeEntry{Status: models.StatusCompleted, CreatedAt: now.AddDate(0, 0, -31)}
	assert.False(t, rules.CanMutate(stale, now))

	active := &models.TimeEntry{Status: models.StatusActive, CreatedAt: now}
	assert.False(t, rules.CanMutate(active, now), "active entries are not editable through the normal path")
}

func TestCanEditActiveStart(t *testing.T) {
	rules := DefaultRules()
	now := baseTime
	entry := &models.TimeEntry{Status: models.StatusActive, CreatedAt: now.Add(-24 * time.Hour)}

	assert.NoError(t, rules.CanEditActiveStart(entry, now.Add(-2*time.Hour), now))
	requireCode(t, rules.CanEditActiveStart(entry, now.Add(time.Minute), now), CodeFutureTime)

	old := &models.TimeEntry{Status: models.StatusActive, CreatedAt: now.Add(-49 * time.Hour)}
	requireCode(t, rules.CanEditActiveStart(old, now.Add(-time.Hour), now), CodeOutsideEditWindow)
}

func TestOverlapsHalfOpen(t *testing.T) {
	at := func(h, m int) time.Time {
		return time.Date(2025, 6, 2, h, m, 0, 0, time.UTC)
	}

	// Contained interval conflicts.
	assert.True(t, Overlaps(at(10, 0), at(11, 0), at(10, 30), at(10, 45)))
	// Symmetric.
	assert.True(t, Overlaps(at(10, 30), at(10, 45), at(10, 0), at(11, 0)))
	// Touching at an endpoint does not overlap.
	assert.False(t, Overlaps(at(10, 0), at(11, 0), at(9, 0), at(10, 0)))
	assert.False(t, Overlaps(at(10, 0), at(11, 0), at(11, 0), at(12, 0)))
	// Disjoint.
	assert.False(t, Overlaps(at(10, 0), at(11, 0), at(13, 0), at(14, 0)))
}

func requireCode(t *testing.T, err error, code Code) {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, code, verr.Code)
}
