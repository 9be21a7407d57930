package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"event-board/internal/domain"
	"event-board/internal/repository"
	"event-board/internal/storage"
)

const (
	defaultTake         = 20
	maxTake             = 100
	defaultFeaturedTake = 5
)

// EventInput carries every writable field of an event.
type EventInput struct {
	Title       string
	Description *string
	Location    *string
	ImageURL    *string
	Featured    bool
	Dates       []time.Time
}

// EventPatch carries a partial update. Nil fields are left unchanged; the
// Set flags distinguish "clear to null" from "not provided" for nullable text.
type EventPatch struct {
	Title          *string
	Description    *string
	DescriptionSet bool
	Location       *string
	LocationSet    bool
	ImageURL       *string
	ImageURLSet    bool
	Featured       *bool
	Dates          *[]time.Time
}

// ListOptions paginates and filters event listings.
type ListOptions struct {
	Skip     int
	Take     int
	Featured *bool
	Sort     repository.EventSort
}

// ImageUpload is an image file destined for object storage.
type ImageUpload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// ImageStorage configures where event images are kept. A nil Service
// disables image uploads.
type ImageStorage struct {
	Service   storage.Service
	Bucket    string
	KeyPrefix string
	URLTTL    time.Duration
}

// EventService coordinates event level operations backed by repositories.
type EventService interface {
	CreateEvent(ctx context.Context, input EventInput) (*domain.Event, error)
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	ListEvents(ctx context.Context, opts ListOptions) ([]domain.Event, error)
	ListFeatured(ctx context.Context, take int) ([]domain.Event, error)
	CountEvents(ctx context.Context) (int, error)
	UpdateEvent(ctx context.Context, id string, patch EventPatch) (*domain.Event, error)
	ReplaceEvent(ctx context.Context, id string, input EventInput) (*domain.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	AttachImage(ctx context.Context, id string, upload ImageUpload) (*domain.Event, error)
	ImageLocation(ctx context.Context, id string) (string, error)
}

type eventService struct {
	events repository.EventRepository
	images ImageStorage
	logger logrus.FieldLogger
}

func NewEventService(events repository.EventRepository, images ImageStorage, logger logrus.FieldLogger) EventService {
	if images.URLTTL <= 0 {
		images.URLTTL = time.Hour
	}
	return &eventService{
		events: events,
		images: images,
		logger: logger,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, input EventInput) (*domain.Event, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	event := &domain.Event{
		Title:       title,
		Description: input.Description,
		Location:    input.Location,
		ImageURL:    input.ImageURL,
		Featured:    input.Featured,
		Dates:       toEventDates(input.Dates),
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *eventService) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	event, err := s.events.Get(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return event, nil
}

func (s *eventService) ListEvents(ctx context.Context, opts ListOptions) ([]domain.Event, error) {
	take := opts.Take
	if take <= 0 {
		take = defaultTake
	}
	if take > maxTake {
		take = maxTake
	}
	skip := opts.Skip
	if skip < 0 {
		skip = 0
	}
	sort := opts.Sort
	if sort != repository.SortByCreated {
		sort = repository.SortByDate
	}

	return s.events.List(ctx, repository.EventFilter{
		Featured: opts.Featured,
		Sort:     sort,
		Skip:     skip,
		Take:     take,
	})
}

func (s *eventService) ListFeatured(ctx context.Context, take int) ([]domain.Event, error) {
	if take <= 0 {
		take = defaultFeaturedTake
	}
	featured := true
	return s.ListEvents(ctx, ListOptions{Take: take, Featured: &featured, Sort: repository.SortByDate})
}

func (s *eventService) CountEvents(ctx context.Context) (int, error) {
	return s.events.Count(ctx)
}

func (s *eventService) UpdateEvent(ctx context.Context, id string, patch EventPatch) (*domain.Event, error) {
	event, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
		}
		event.Title = title
	}
	if patch.DescriptionSet {
		event.Description = patch.Description
	}
	if patch.LocationSet {
		event.Location = patch.Location
	}
	if patch.ImageURLSet {
		event.ImageURL = patch.ImageURL
		// an explicit URL replaces any uploaded image reference
		event.ImageKey = ""
	}
	if patch.Featured != nil {
		event.Featured = *patch.Featured
	}
	replaceDates := patch.Dates != nil
	if replaceDates {
		event.Dates = toEventDates(*patch.Dates)
	}

	if err := s.events.Update(ctx, event, replaceDates); err != nil {
		return nil, mapNotFound(err)
	}
	return s.GetEvent(ctx, id)
}

func (s *eventService) ReplaceEvent(ctx context.Context, id string, input EventInput) (*domain.Event, error) {
	title := input.Title
	// the edit form echoes the image endpoint back for uploaded images
	keepUpload := input.ImageURL != nil && *input.ImageURL == ImagePath(id)
	return s.UpdateEvent(ctx, id, EventPatch{
		Title:          &title,
		Description:    input.Description,
		DescriptionSet: true,
		Location:       input.Location,
		LocationSet:    true,
		ImageURL:       input.ImageURL,
		ImageURLSet:    !keepUpload,
		Featured:       &input.Featured,
		Dates:          &input.Dates,
	})
}

func (s *eventService) DeleteEvent(ctx context.Context, id string) error {
	if err := s.events.Delete(ctx, id); err != nil {
		return mapNotFound(err)
	}

	if s.images.Service != nil {
		prefix := s.eventPrefix(id) + "/"
		if err := s.images.Service.DeletePrefix(ctx, s.images.Bucket, prefix); err != nil {
			s.logger.WithError(err).WithField("event_id", id).Warn("delete event images")
		}
	}
	return nil
}

func (s *eventService) AttachImage(ctx context.Context, id string, upload ImageUpload) (*domain.Event, error) {
	if s.images.Service == nil || s.images.Bucket == "" {
		return nil, ErrStorageUnavailable
	}
	if !strings.HasPrefix(upload.ContentType, "image/") {
		return nil, fmt.Errorf("%w: content type %q is not an image", ErrInvalidInput, upload.ContentType)
	}

	event, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s%s", s.eventPrefix(id), uuid.NewString(), strings.ToLower(path.Ext(upload.Filename)))
	if _, err := s.images.Service.UploadObject(ctx, key, upload.Body, storage.UploadOptions{
		Bucket:      s.images.Bucket,
		ContentType: upload.ContentType,
	}); err != nil {
		return nil, err
	}

	previous := event.ImageKey
	imageURL := ImagePath(id)
	event.ImageKey = key
	event.ImageURL = &imageURL
	if err := s.events.Update(ctx, event, false); err != nil {
		if delErr := s.images.Service.DeletePrefix(ctx, s.images.Bucket, key); delErr != nil {
			s.logger.WithError(delErr).WithField("event_id", id).Warn("delete orphaned image")
		}
		return nil, mapNotFound(err)
	}

	if previous != "" {
		if err := s.images.Service.DeletePrefix(ctx, s.images.Bucket, previous); err != nil {
			s.logger.WithError(err).WithField("event_id", id).Warn("delete replaced image")
		}
	}
	return event, nil
}

func (s *eventService) ImageLocation(ctx context.Context, id string) (string, error) {
	event, err := s.GetEvent(ctx, id)
	if err != nil {
		return "", err
	}

	if event.ImageKey != "" {
		if s.images.Service == nil {
			return "", ErrStorageUnavailable
		}
		return s.images.Service.GetObjectURL(ctx, s.images.Bucket, event.ImageKey, s.images.URLTTL)
	}
	if event.ImageURL != nil && *event.ImageURL != "" && *event.ImageURL != ImagePath(id) {
		return *event.ImageURL, nil
	}
	return "", fmt.Errorf("event %s has no image: %w", id, ErrEventNotFound)
}

// ImagePath is the API path serving the uploaded image of an event.
func ImagePath(eventID string) string {
	return "/api/events/" + eventID + "/image"
}

func (s *eventService) eventPrefix(id string) string {
	prefix := strings.Trim(s.images.KeyPrefix, "/")
	if prefix == "" {
		return "events/" + id
	}
	return prefix + "/events/" + id
}

func toEventDates(times []time.Time) []domain.EventDate {
	dates := make([]domain.EventDate, 0, len(times))
	for _, t := range times {
		dates = append(dates, domain.EventDate{DateTime: t.UTC().Truncate(time.Second)})
	}
	return dates
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrEventNotFound
	}
	return err
}
