package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"event-board/internal/domain"
	"event-board/internal/service"
)

type eventDateResponse struct {
	ID       string `json:"id"`
	EventID  string `json:"event_id"`
	DateTime string `json:"date_time"`
}

type eventResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description *string             `json:"description"`
	Location    *string             `json:"location"`
	ImageURL    *string             `json:"image_url"`
	Featured    bool                `json:"featured"`
	CreatedAt   string              `json:"created_at"`
	UpdatedAt   string              `json:"updated_at"`
	Dates       []eventDateResponse `json:"dates"`
}

func eventToResponse(event domain.Event) eventResponse {
	dates := make([]eventDateResponse, 0, len(event.Dates))
	for _, d := range event.Dates {
		dates = append(dates, eventDateResponse{
			ID:       d.ID,
			EventID:  d.EventID,
			DateTime: d.DateTime.UTC().Format(time.RFC3339),
		})
	}
	return eventResponse{
		ID:          event.ID,
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		ImageURL:    event.ImageURL,
		Featured:    event.Featured,
		CreatedAt:   event.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   event.UpdatedAt.UTC().Format(time.RFC3339),
		Dates:       dates,
	}
}

func eventsToResponse(events []domain.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, eventToResponse(event))
	}
	return out
}

type eventDateRequest struct {
	DateTime time.Time `json:"date_time" binding:"required"`
}

func toDateTimes(dates []eventDateRequest) ([]time.Time, error) {
	out := make([]time.Time, 0, len(dates))
	for i, d := range dates {
		if d.DateTime.IsZero() {
			return nil, fmt.Errorf("dates[%d].date_time is required", i)
		}
		out = append(out, d.DateTime)
	}
	return out, nil
}

type createEventRequest struct {
	Title       string             `json:"title" binding:"required,max=255"`
	Description *string            `json:"description"`
	Location    *string            `json:"location" binding:"omitempty,max=255"`
	ImageURL    *string            `json:"image_url"`
	Featured    bool               `json:"featured"`
	Dates       []eventDateRequest `json:"dates" binding:"dive"`
}

func (r createEventRequest) toInput() (service.EventInput, error) {
	dates, err := toDateTimes(r.Dates)
	if err != nil {
		return service.EventInput{}, err
	}
	return service.EventInput{
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		ImageURL:    r.ImageURL,
		Featured:    r.Featured,
		Dates:       dates,
	}, nil
}

// optionalString records whether a JSON field was present and whether it
// was null.
type optionalString struct {
	Set   bool
	Value *string
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

type updateEventRequest struct {
	Title       *string             `json:"title"`
	Description optionalString      `json:"description"`
	Location    optionalString      `json:"location"`
	ImageURL    optionalString      `json:"image_url"`
	Featured    *bool               `json:"featured"`
	Dates       *[]eventDateRequest `json:"dates"`
}

func (r updateEventRequest) toPatch() (service.EventPatch, error) {
	if r.Title != nil && len(*r.Title) > 255 {
		return service.EventPatch{}, errors.New("title must be at most 255 characters")
	}
	if r.Location.Value != nil && len(*r.Location.Value) > 255 {
		return service.EventPatch{}, errors.New("location must be at most 255 characters")
	}
	var dates *[]time.Time
	if r.Dates != nil {
		parsed, err := toDateTimes(*r.Dates)
		if err != nil {
			return service.EventPatch{}, err
		}
		dates = &parsed
	}
	return service.EventPatch{
		Title:          r.Title,
		Description:    r.Description.Value,
		DescriptionSet: r.Description.Set,
		Location:       r.Location.Value,
		LocationSet:    r.Location.Set,
		ImageURL:       r.ImageURL.Value,
		ImageURLSet:    r.ImageURL.Set,
		Featured:       r.Featured,
		Dates:          dates,
	}, nil
}
