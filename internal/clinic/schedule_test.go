package clinic

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

const testLocation = "consultorio-paris-rizo"

// 2026-09-07 is a Monday, 2026-09-06 a Sunday.
const (
	openDay   = "2026-09-07"
	closedDay = "2026-09-06"
)

func confirmedAt(t *testing.T, date, clock string, serviceID string) Appointment {
	t.Helper()
	startsAt, err := CombineDateTime(date, clock)
	assert.NoError(t, err)

	a := Appointment{
		ID:         uuid.New(),
		AppID:      "dental",
		PatientID:  uuid.New(),
		LocationID: testLocation,
		Reason:     ReasonFirstVisit,
		StartsAt:   startsAt,
		Status:     StatusConfirmed,
	}
	if serviceID != "" {
		a.ServiceID = &serviceID
	}
	return a
}

func TestTreatmentCatalog(t *testing.T) {
	general, ok := ServiceByID("srv-general")
	assert.True(t, ok)
	assert.Equal(t, 2, general.Slots)

	var missing Treatment
	missing, ok = ServiceByID("srv-nope")
	assert.False(t, ok)
	assert.Equal(t, Treatment{}, missing)
}

func TestDaySlotsSequence(t *testing.T) {
	loc, ok := LocationByID(testLocation)
	assert.True(t, ok)

	slots := loc.DaySlots()
	assert.Equal(t, []string{
		"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
		"12:00", "12:30", "13:00", "13:30", "14:00", "14:30",
	}, slots)
}

func TestAvailableSlotsDisallowedWeekday(t *testing.T) {
	slots := AvailableSlots(closedDay, testLocation, nil, 1)
	assert.Empty(t, slots)
}

func TestAvailableSlotsUnknownLocation(t *testing.T) {
	slots := AvailableSlots(openDay, "no-such-branch", nil, 1)
	assert.Empty(t, slots)
}

func TestAvailableSlotsInvalidDate(t *testing.T) {
	slots := AvailableSlots("07/09/2026", testLocation, nil, 1)
	assert.Empty(t, slots)
}

func TestAvailableSlotsEmptyDayIsFullSequence(t *testing.T) {
	loc, _ := LocationByID(testLocation)

	slots := AvailableSlots(openDay, testLocation, nil, 1)
	assert.Equal(t, loc.DaySlots(), slots)

	// Ascending order.
	for i := 1; i < len(slots); i++ {
		assert.Less(t, slots[i-1], slots[i])
	}
}

func TestAvailableSlotsSingleSlotBooking(t *testing.T) {
	appts := []Appointment{confirmedAt(t, openDay, "10:00", "")}

	slots := AvailableSlots(openDay, testLocation, appts, 1)

	assert.NotContains(t, slots, "10:00")
	assert.Contains(t, slots, "09:30")
	assert.Contains(t, slots, "10:30")
}

func TestAvailableSlotsMultiSlotServiceConsumesSpan(t *testing.T) {
	// srv-general spans two consecutive slots.
	appts := []Appointment{confirmedAt(t, openDay, "11:00", "srv-general")}

	slots := AvailableSlots(openDay, testLocation, appts, 1)

	assert.NotContains(t, slots, "11:00")
	assert.NotContains(t, slots, "11:30")
	assert.Contains(t, slots, "12:00")
	assert.Contains(t, slots, "10:30")
}

func TestAvailableSlotsWindowedCheckIsAllOrNothing(t *testing.T) {
	appts := []Appointment{confirmedAt(t, openDay, "10:00", "")}

	// A two-slot request cannot start at 09:30: its second slot is taken.
	slots := AvailableSlots(openDay, testLocation, appts, 2)
	assert.NotContains(t, slots, "09:30")
	assert.NotContains(t, slots, "10:00")
	assert.Contains(t, slots, "09:00")
	assert.Contains(t, slots, "10:30")
}

func TestAvailableSlotsNoTrailingPartialWindow(t *testing.T) {
	slots := AvailableSlots(openDay, testLocation, nil, 2)
	assert.Contains(t, slots, "14:00")
	assert.NotContains(t, slots, "14:30")

	slots = AvailableSlots(openDay, testLocation, nil, 3)
	assert.NotContains(t, slots, "14:00")
	assert.NotContains(t, slots, "14:30")
	assert.Equal(t, "13:30", slots[len(slots)-1])
}

func TestAvailableSlotsCancelledFreesSlot(t *testing.T) {
	appt := confirmedAt(t, openDay, "10:00", "")
	appt.Status = StatusCancelled

	slots := AvailableSlots(openDay, testLocation, []Appointment{appt}, 1)
	assert.Contains(t, slots, "10:00")
}

func TestAvailableSlotsBlockedConsumesSlot(t *testing.T) {
	appt := confirmedAt(t, openDay, "12:00", "")
	appt.Status = StatusBlocked

	slots := AvailableSlots(openDay, testLocation, []Appointment{appt}, 1)
	assert.NotContains(t, slots, "12:00")
}

func TestAvailableSlotsIgnoresOtherDaysAndLocations(t *testing.T) {
	other := confirmedAt(t, "2026-09-08", "10:00", "")
	elsewhere := confirmedAt(t, openDay, "10:30", "")
	elsewhere.LocationID = "another-branch"

	slots := AvailableSlots(openDay, testLocation, []Appointment{other, elsewhere}, 1)
	assert.Contains(t, slots, "10:00")
	assert.Contains(t, slots, "10:30")
}

func TestStatusTransitionTable(t *testing.T) {
	cases := []struct {
		from, to AppointmentStatus
		legal    bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusWaitingRoom, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusWaitingRoom, StatusInProgress, true},
		{StatusInProgress, StatusFinished, true},
		{StatusPending, StatusFinished, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusFinished, StatusConfirmed, false},
		{StatusBlocked, StatusCancelled, false},
		{StatusConfirmed, StatusPending, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.legal, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestCombineDateTime(t *testing.T) {
	ts, err := CombineDateTime("2026-09-07", "10:30")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 7, 10, 30, 0, 0, time.Local), ts)

	_, err = CombineDateTime("07/09/2026", "10:30")
	assert.Error(t, err)
}
