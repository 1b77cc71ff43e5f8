package availability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordbooking/nordbooking/shared/models"
)

// 2026-03-02 is a Monday
const monday = "2026-03-02"

func starts(slots []TimeSlot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Start
	}
	return out
}

func availability(slots []TimeSlot) map[string]bool {
	out := make(map[string]bool, len(slots))
	for _, s := range slots {
		out[s.Start] = s.Available
	}
	return out
}

func TestOverlapMarksCandidateUnavailable(t *testing.T) {
	store := newMemStore()
	store.setDay(1, 1, true, window("09:00", "12:00"))
	store.addBooking(1, monday, "10:00", "11:00", models.BookingConfirmed)

	slots, err := NewEngine(store, store, 0).ComputeAvailableSlots(context.Background(), SlotQuery{TenantID: 1, Date: monday, DurationMinutes: 60})
	require.NoError(t, err)

	assert.Equal(t, []string{"09:00", "10:00", "11:00"}, starts(slots))
	assert.Equal(t, map[string]bool{"09:00": true, "10:00": false, "11:00": true}, availability(slots))
	assert.Equal(t, "09:00 - 10:00", slots[0].Label())
}

func TestFixedStepGrid(t *testing.T) {
	store := newMemStore()
	store.setDay(1, 1, true, window("09:00", "12:00"))
	store.addBooking(1, monday, "10:00", "11:00", models.BookingPending)

	slots, err := NewEngine(store, store, 30).ComputeAvailableSlots(context.Background(), SlotQuery{TenantID: 1, Date: monday, DurationMinutes: 60})
	require.NoError(t, err)

	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30", "11:00"}, starts(slots))
	assert.Equal(t, map[string]bool{
		"09:00": true,
		"09:30": false,
		"10:00": false,
		"10:30": false,
		"11:00": true,
	}, availability(slots))
}

func TestCandidatesPastWindowEndAreDropped(t *testing.T) {
	store := newMemStore()
	store.setDay(1, 1, true, window("13:00", "15:00"), window("09:00", "10:30"))

	slots, err := NewEngine(store, store, 30).ComputeAvailableSlots(context.Background(), SlotQuery{TenantID: 1, Date: monday, DurationMinutes: 60})
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30", "13:00", "13:30", "14:00"}, starts(slots))
	assert.Equal(t, "10:30", slots[1].End)
}

func TestCancelledAndAdjacentBookingsDoNotBlock(t *testing.T) {
	store := newMemStore()
	store.setDay(1, 1, true, window("09:00", "12:00"))
	store.addBooking(1, monday, "10:00", "11:00", models.BookingCancelled)
	store.addBooking(1, monday, "08:00", "09:00", models.BookingConfirmed)
	store.addBooking(2, monday, "09:00", "12:00", models.BookingConfirmed)

	slots, err := NewEngine(store, store, 0).ComputeAvailableSlots(context.Background(), SlotQuery{TenantID: 1, Date: monday, DurationMinutes: 60})
	require.NoError(t, err)
	for _, s := range slots {
		assert.True(t, s.Available, s.Start)
	}
}

func TestClosureExceptionSupersedesRecurring(t *testing.T) {
	store := newMemStore()
	store.setDay(1, 1, true, window("09:00", "17:00"))
	store.exceptions[exceptionKey(1, monday)] = models.AvailabilityException{TenantID: 1, Date: monday, IsClosed: true}

	slots, err := NewEngine(store, store, 30).ComputeAvailableSlots(context.Background(), SlotQuery{TenantID: 1, Date: monday, DurationMinutes: 60})
	require.NoError(t, err)
	assert.Empty(t, slots)

	// the following Monday is unaffected
	slots, err = NewEngine(store, store, 30).ComputeAvailableSlots(context.Background(), SlotQuery{TenantID: 1, Date: "2026-03-09", DurationMinutes: 60})
	require.NoError(t, err)
	assert.Len(t, slots, 15)
}

func TestExceptionReplacesWindows(t *testing.T) {
	store := newMemStore()
	store.setDay(1, 1, true, window("09:00", "17:00"))
	store.exceptions[exceptionKey(1, monday)] = models.AvailabilityException{
		TenantID: 1,
		Date:     monday,
		Slots:    models.TimeWindows{window("18:00", "20:00")},
	}

	slots, err := NewEngine(store, store, 0).ComputeAvailableSlots(context.Background(), SlotQuery{TenantID: 1, Date: monday, DurationMinutes: 60})
	require.NoError(t, err)
	assert.Equal(t, []string{"18:00", "19:00"}, starts(slots))
}

func TestDisabledOrMissingDayIsEmpty(t *testing.T) {
	store := newMemStore()
	store.setDay(1, 1, false, window("09:00", "17:00"))
	engine := NewEngine(store, store, 30)

	slots, err := engine.ComputeAvailableSlots(context.Background(), SlotQuery{TenantID: 1, Date: monday, DurationMinutes: 30})
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)

	slots, err = engine.ComputeAvailableSlots(context.Background(), SlotQuery{TenantID: 99, Date: monday, DurationMinutes: 30})
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestRecurringScheduleDefaultsToDisabledWeek(t *testing.T) {
	store := newMemStore()
	week, err := NewEngine(store, store, 30).GetRecurringSchedule(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, week, 7)
	for d, entry := range week {
		assert.Equal(t, d, entry.DayOfWeek)
		assert.False(t, entry.Enabled)
		assert.Empty(t, entry.Slots)
	}
	assert.Equal(t, "sunday", week[0].DayName)

	store.setDay(5, 3, true, window("14:00", "16:00"), window("08:00", "12:00"))
	week, err = NewEngine(store, store, 30).GetRecurringSchedule(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, week[3].Enabled)
	assert.Equal(t, "08:00", week[3].Slots[0].Start)
}

func TestComputeIsIdempotent(t *testing.T) {
	store := newMemStore()
	store.setDay(1, 1, true, window("09:00", "17:00"))
	store.addBooking(1, monday, "13:00", "14:30", models.BookingConfirmed)
	engine := NewEngine(store, store, 15)
	q := SlotQuery{TenantID: 1, Date: monday, DurationMinutes: 45}

	first, err := engine.ComputeAvailableSlots(context.Background(), q)
	require.NoError(t, err)
	second, err := engine.ComputeAvailableSlots(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeRejectsBadInput(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store, store, 30)

	_, err := engine.ComputeAvailableSlots(context.Background(), SlotQuery{TenantID: 1, Date: "02/03/2026", DurationMinutes: 30})
	assert.True(t, IsValidation(err))

	_, err = engine.ComputeAvailableSlots(context.Background(), SlotQuery{TenantID: 1, Date: monday, DurationMinutes: 0})
	assert.True(t, IsValidation(err))

	_, err = engine.ComputeAvailableSlots(context.Background(), SlotQuery{TenantID: 1, Date: "2026-02-30", DurationMinutes: 30})
	assert.True(t, IsValidation(err))
}

func TestStoreFailureIsNotEmpty(t *testing.T) {
	store := newMemStore()
	store.failWith = errors.New("connection refused")

	_, err := NewEngine(store, store, 30).ComputeAvailableSlots(context.Background(), SlotQuery{TenantID: 1, Date: monday, DurationMinutes: 30})
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = NewEngine(store, store, 30).GetRecurringSchedule(context.Background(), 1)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestFallbackOnlyForUnconfiguredTenants(t *testing.T) {
	store := newMemStore()
	fallback := EmptyWeek()
	fallback[1] = DayEntry{DayOfWeek: 1, Enabled: true, Slots: []models.TimeWindow{window("10:00", "12:00")}}
	engine := NewEngine(store, store, 0).WithFallback(fallback)
	q := SlotQuery{TenantID: 1, Date: monday, DurationMinutes: 60}

	slots, err := engine.ComputeAvailableSlots(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "11:00"}, starts(slots))

	_, source, err := engine.EffectiveDay(context.Background(), 1, monday)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, source)

	// any stored rule turns the fallback off, even for other days
	store.setDay(1, 2, true, window("09:00", "10:00"))
	slots, err = engine.ComputeAvailableSlots(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, slots)

	// the engine without fallback never guesses
	store = newMemStore()
	slots, err = NewEngine(store, store, 0).ComputeAvailableSlots(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestWeekValidation(t *testing.T) {
	valid := EmptyWeek()
	valid[1].Enabled = true
	valid[1].Slots = []models.TimeWindow{window("09:00", "12:00"), window("12:00", "17:00")}
	assert.NoError(t, valid.Validate())

	cases := map[string]func(w WeekSchedule){
		"overlap":       func(w WeekSchedule) { w[2].Slots = []models.TimeWindow{window("09:00", "12:00"), window("11:00", "13:00")} },
		"reversed":      func(w WeekSchedule) { w[2].Slots = []models.TimeWindow{window("12:00", "09:00")} },
		"empty window":  func(w WeekSchedule) { w[2].Slots = []models.TimeWindow{window("09:00", "09:00")} },
		"bad clock":     func(w WeekSchedule) { w[2].Slots = []models.TimeWindow{window("9:00", "12:00")} },
		"out of range":  func(w WeekSchedule) { w[2].Slots = []models.TimeWindow{window("09:00", "24:00")} },
		"duplicate day": func(w WeekSchedule) { w[2].DayOfWeek = 1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			w := EmptyWeek()
			mutate(w)
			assert.True(t, IsValidation(w.Validate()))
		})
	}

	assert.True(t, IsValidation(EmptyWeek()[:6].Validate()))
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("07:05")
	require.NoError(t, err)
	assert.Equal(t, Clock(425), c)
	assert.Equal(t, "07:05", c.String())

	for _, bad := range []string{"", "7:05", "07:5", "07-05", "ab:cd", "23:60"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}
