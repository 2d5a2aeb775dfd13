package ics

import (
	"errors"
	"sort"
	"time"

	"tripcal/internal/model"
)

// AgendaWindow selects the events shown in an agenda view.
type AgendaWindow struct {
	// From / To bound the window, both inclusive.
	From time.Time
	To   time.Time
}

// Agenda returns the events that overlap the window, ordered by start time
// then summary. Events without an end are treated as instants; all-day
// events end at the start of their DTEND day, which is exclusive.
func Agenda(events []model.Event, win AgendaWindow) ([]model.Event, error) {
	if win.To.Before(win.From) {
		return nil, errors.New("agenda: window end is before start")
	}

	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if overlaps(ev, win) {
			out = append(out, ev)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].Summary < out[j].Summary
	})
	return out, nil
}

func overlaps(ev model.Event, win AgendaWindow) bool {
	end := ev.Start
	if ev.HasEnd() {
		end = ev.End
		if ev.AllDay && end.After(ev.Start) {
			// DTEND of an all-day event is the first day it no longer covers.
			end = end.Add(-time.Nanosecond)
		}
	} else if ev.AllDay {
		end = ev.Start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return !end.Before(win.From) && !win.To.Before(ev.Start)
}
