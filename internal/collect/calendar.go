package collect

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/antigravity-dev/agencyos/internal/apperrors"
	"github.com/antigravity-dev/agencyos/internal/config"
	"github.com/antigravity-dev/agencyos/internal/model"
	"github.com/antigravity-dev/agencyos/internal/store"
)

const calendarSourcePrefix = "calendar_"

// CalendarCollector syncs the calendar analogue over a 30-days-back to
// 30-days-ahead window (§4.2).
type CalendarCollector struct {
	fetcher CalendarFetcher
}

func NewCalendarCollector(fetcher CalendarFetcher) *CalendarCollector {
	return &CalendarCollector{fetcher: fetcher}
}

func (c *CalendarCollector) Name() string { return "calendar" }

func (c *CalendarCollector) Run(ctx context.Context, st *store.Store, cfg config.Collector, now time.Time) (int, error) {
	from := now.AddDate(0, 0, -30)
	to := now.AddDate(0, 0, 30)

	artifacts, err := c.fetcher.FetchEvents(ctx, from, to, cfg.PageSize)
	if err != nil {
		return 0, err
	}

	var synced int
	for _, a := range artifacts {
		if a.SourceID == "" {
			continue
		}
		prepNotes, err := buildPrepNotes(a)
		if err != nil {
			return synced, apperrors.Wrapf(apperrors.ErrParse, "prep notes for event %s: %v", a.SourceID, err)
		}

		e := &model.Event{
			ID:        calendarSourcePrefix + a.SourceID,
			SourceID:  a.SourceID,
			Title:     a.Title,
			Start:     a.Start,
			End:       a.End,
			Attendees: a.Attendees,
			Location:  a.Location,
			PrepNotes: prepNotes,
		}
		attendeesJSON, err := json.Marshal(a.Attendees)
		if err != nil {
			return synced, apperrors.Wrapf(err, "marshal attendees for event %s", a.SourceID)
		}
		if err := st.UpsertEventFromCollector(ctx, e, string(attendeesJSON)); err != nil {
			return synced, apperrors.Wrapf(err, "upsert event %s", e.ID)
		}
		synced++
	}
	return synced, nil
}

type prepNotesDoc struct {
	TimeMinutes int      `json:"time_minutes"`
	Items       []string `json:"items"`
}

// buildPrepNotes implements the exact derivation from §4.2: start with
// 15 minutes and an empty item list, escalate to 30 minutes with a review
// item for interview/presentation/pitch/demo titles, add a notes-check item
// for 1:1s, a join-link item for call/meeting titles, and 15 minutes travel
// plus a travel item when a non-virtual location is present.
func buildPrepNotes(a CalendarArtifact) (string, error) {
	doc := prepNotesDoc{TimeMinutes: 15, Items: []string{}}
	title := strings.ToLower(a.Title)

	if containsAny(title, "interview", "presentation", "pitch", "demo") {
		doc.TimeMinutes = 30
		doc.Items = append(doc.Items, "Review materials")
	}
	if isOneOnOne(title) {
		doc.Items = append(doc.Items, "Check notes from last meeting")
	}
	if containsAny(title, "call", "meeting") {
		doc.Items = append(doc.Items, "Join link ready")
	}
	if isPhysicalLocation(a.Location) {
		doc.TimeMinutes += 15
		doc.Items = append(doc.Items, "Travel to location")
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func isOneOnOne(title string) bool {
	return strings.Contains(title, "1:1") || strings.Contains(title, "1-1") || strings.Contains(title, "one-on-one")
}

func isPhysicalLocation(location string) bool {
	loc := strings.TrimSpace(location)
	if loc == "" {
		return false
	}
	lower := strings.ToLower(loc)
	return !containsAny(lower, "zoom", "meet.google", "teams.microsoft", "virtual", "http://", "https://")
}
