package domain

import "time"

// Event represents a listed event with its scheduled dates.
type Event struct {
	ID          string
	Title       string
	Description *string
	Location    *string
	ImageURL    *string
	// ImageKey is the object storage key of an uploaded image, empty when the
	// event has none or points at an external ImageURL.
	ImageKey  string
	Featured  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	Dates     []EventDate
}

// EventDate is a single scheduled occurrence of an event.
type EventDate struct {
	ID       string
	EventID  string
	DateTime time.Time
}

// EarliestDate returns the first scheduled date of the event.
func (e Event) EarliestDate() (time.Time, bool) {
	if len(e.Dates) == 0 {
		return time.Time{}, false
	}
	earliest := e.Dates[0].DateTime
	for _, d := range e.Dates[1:] {
		if d.DateTime.Before(earliest) {
			earliest = d.DateTime
		}
	}
	return earliest, true
}
