package http

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"event-board/internal/domain"
	"event-board/internal/service"
)

var formDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseFormDates splits raw on commas or whitespace and parses each entry.
// Entries matching no layout are skipped.
func parseFormDates(raw string) []time.Time {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	dates := make([]time.Time, 0, len(fields))
	for _, field := range fields {
		for _, layout := range formDateLayouts {
			if t, err := time.ParseInLocation(layout, field, time.UTC); err == nil {
				dates = append(dates, t)
				break
			}
		}
	}
	return dates
}

func optionalFormValue(c *gin.Context, key string) *string {
	value := strings.TrimSpace(c.PostForm(key))
	if value == "" {
		return nil
	}
	return &value
}

func eventInputFromForm(c *gin.Context) service.EventInput {
	return service.EventInput{
		Title:       strings.TrimSpace(c.PostForm("title")),
		Description: optionalFormValue(c, "description"),
		Location:    optionalFormValue(c, "location"),
		ImageURL:    optionalFormValue(c, "image_url"),
		Featured:    c.PostForm("featured") == "on",
		Dates:       parseFormDates(c.PostForm("dates")),
	}
}

// inputToEvent rebuilds an unsaved event so a rejected form keeps its values.
func inputToEvent(input service.EventInput) *domain.Event {
	event := &domain.Event{
		Title:       input.Title,
		Description: input.Description,
		Location:    input.Location,
		ImageURL:    input.ImageURL,
		Featured:    input.Featured,
	}
	for _, t := range input.Dates {
		event.Dates = append(event.Dates, domain.EventDate{DateTime: t})
	}
	return event
}
