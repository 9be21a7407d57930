package repository

import (
	"context"

	"event-board/internal/domain"
)

// EventSort selects the ordering of event listings.
type EventSort string

const (
	// SortByDate orders events by their earliest scheduled date; events
	// without dates come last.
	SortByDate EventSort = "date"
	// SortByCreated orders events newest first.
	SortByCreated EventSort = "created"
)

// EventFilter narrows and paginates event listings.
type EventFilter struct {
	Featured *bool
	Sort     EventSort
	Skip     int
	Take     int
}

// EventRepository exposes persistence operations for Event aggregates.
// Dates are always written together with their event.
type EventRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, event *domain.Event) error
	// Update writes the event columns. When replaceDates is set the stored
	// dates are replaced by event.Dates in the same transaction.
	Update(ctx context.Context, event *domain.Event, replaceDates bool) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*domain.Event, error)
	List(ctx context.Context, filter EventFilter) ([]domain.Event, error)
	Count(ctx context.Context) (int, error)
}
