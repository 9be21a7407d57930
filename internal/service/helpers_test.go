package service

import "event-board/internal/domain"

func eventTitles(events []domain.Event) []string {
	titles := make([]string, len(events))
	for i := range events {
		titles[i] = events[i].Title
	}
	return titles
}
