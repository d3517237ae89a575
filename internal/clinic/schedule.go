package clinic

import (
	"fmt"
	"time"
)

// Static reference data. The clinic roster changes a few times a year at
// most, so it ships in code instead of a live table.
var Locations = []Location{
	{
		ID:          "consultorio-paris-rizo",
		Name:        "Consultorio Paris Rizo",
		Address:     "Av. Insurgentes Sur 1234, Ciudad de México",
		Image:       "/images/consultorio-paris-rizo.jpg",
		AllowedDays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday},
		StartHour:   9,
		EndHour:     15,
		IntervalMin: 30,
	},
}

var Services = []Treatment{
	{ID: "srv-general", Name: "Consulta General", Description: "Valoración y limpieza dental", Slots: 2},
	{ID: "srv-seguimiento", Name: "Consulta de Seguimiento", Slots: 1},
	{ID: "srv-extraccion", Name: "Extracción", Description: "Extracción simple o quirúrgica", Slots: 3},
}

// LocationByID resolves a branch from the static table. The zero value with
// ok=false means an unknown id, which the availability engine treats as an
// empty schedule.
func LocationByID(id string) (Location, bool) {
	for _, l := range Locations {
		if l.ID == id {
			return l, true
		}
	}
	return Location{}, false
}

func ServiceByID(id string) (Treatment, bool) {
	for _, s := range Services {
		if s.ID == id {
			return s, true
		}
	}
	return Treatment{}, false
}

func (l Location) allowsDay(d time.Weekday) bool {
	for _, ad := range l.AllowedDays {
		if ad == d {
			return true
		}
	}
	return false
}

// DaySlots generates the full candidate slot sequence for one operating day,
// from StartHour up to but excluding EndHour, as HH:MM strings.
func (l Location) DaySlots() []string {
	if l.IntervalMin <= 0 || l.EndHour <= l.StartHour {
		return nil
	}
	var slots []string
	for minute := l.StartHour * 60; minute < l.EndHour*60; minute += l.IntervalMin {
		slots = append(slots, fmt.Sprintf("%02d:%02d", minute/60, minute%60))
	}
	return slots
}

// serviceSlots returns how many consecutive slots an appointment consumes.
// Appointments without a service, including blocked rows, take one slot.
func serviceSlots(a *Appointment) int {
	if a.ServiceID == nil {
		return 1
	}
	svc, ok := ServiceByID(*a.ServiceID)
	if !ok || svc.Slots < 1 {
		return 1
	}
	return svc.Slots
}

// AvailableSlots computes the bookable start times for a service needing
// slotsNeeded consecutive slots on the given day at the given branch.
//
// The date is a naive local calendar day. Days outside the branch's weekly
// schedule yield no slots at all; so does an unknown location id. Existing
// non-cancelled appointments occupy their full slot span, and a candidate is
// offered only when its whole span fits inside the day and every slot in it
// is free.
func AvailableSlots(date, locationID string, appointments []Appointment, slotsNeeded int) []string {
	loc, ok := LocationByID(locationID)
	if !ok {
		return nil
	}

	day, err := time.ParseInLocation(DateLayout, date, time.Local)
	if err != nil {
		return nil
	}
	if !loc.allowsDay(day.Weekday()) {
		return nil
	}

	candidates := loc.DaySlots()
	index := make(map[string]int, len(candidates))
	for i, s := range candidates {
		index[s] = i
	}

	occupied := make([]bool, len(candidates))
	for i := range appointments {
		a := &appointments[i]
		if a.Status == StatusCancelled || a.LocationID != locationID || a.Date() != date {
			continue
		}
		start, ok := index[a.ClockTime()]
		if !ok {
			continue
		}
		for j := 0; j < serviceSlots(a) && start+j < len(occupied); j++ {
			occupied[start+j] = true
		}
	}

	if slotsNeeded < 1 {
		slotsNeeded = 1
	}

	var free []string
	for i := range candidates {
		if i+slotsNeeded > len(candidates) {
			break
		}
		fits := true
		for j := 0; j < slotsNeeded; j++ {
			if occupied[i+j] {
				fits = false
				break
			}
		}
		if fits {
			free = append(free, candidates[i])
		}
	}
	return free
}
