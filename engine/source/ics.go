package source

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/clearday/clearday/engine/calendar"
	"github.com/clearday/clearday/engine/interval"
)

const icsMaxBodyBytes = 8 << 20 // feeds larger than 8 MiB are rejected

// ICSSource reads busy data from read-only ICS subscription feeds. It is
// the one provider adapter built into the engine; OAuth-based providers
// are supplied by the calendar sync collaborator through the same Source
// contract.
type ICSSource struct {
	client  *http.Client
	limiter *rate.Limiter
	// feeds maps account IDs to their ICS endpoint.
	feeds map[string]string
}

// NewICSSource builds a source over the given accountID -> URL map.
// Requests are rate limited to avoid hammering shared feed hosts.
func NewICSSource(feeds map[string]string) *ICSSource {
	return &ICSSource{
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 4),
		feeds:   feeds,
	}
}

func (s *ICSSource) Provider() calendar.Provider {
	return calendar.ProviderICS
}

// FetchEvents downloads and parses the account's feed, returning busy
// events clipped to the query window.
func (s *ICSSource) FetchEvents(ctx context.Context, accountID string, window interval.Interval) ([]*calendar.Event, error) {
	url, ok := s.feeds[accountID]
	if !ok {
		return nil, errors.Errorf("no ICS feed configured for account %q", accountID)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build ICS request")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch ICS feed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("ICS feed returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, icsMaxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read ICS body")
	}
	return parseICSEvents(accountID, body, window)
}

// parseICSEvents converts VEVENTs to engine events. Malformed components
// are skipped with a log line; one broken event never drops the feed.
func parseICSEvents(accountID string, body []byte, window interval.Interval) ([]*calendar.Event, error) {
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "parse ICS calendar")
	}

	events := make([]*calendar.Event, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		ev, err := veventToEvent(accountID, ve)
		if err != nil {
			slog.Warn("skipping unparseable VEVENT", "accountID", accountID, "error", err)
			continue
		}
		if !ev.Busy() {
			continue
		}
		iv, err := interval.New(ev.Start, ev.End)
		if err != nil || !iv.Overlaps(window) {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func veventToEvent(accountID string, ve *ical.VEvent) (*calendar.Event, error) {
	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return nil, errors.New("missing UID")
	}
	start, err := ve.GetStartAt()
	if err != nil {
		return nil, errors.Wrap(err, "DTSTART")
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return nil, errors.Wrap(err, "DTEND")
	}

	ev := &calendar.Event{
		ID:              icsEventID(accountID, uidProp.Value),
		Provider:        calendar.ProviderICS,
		ProviderEventID: uidProp.Value,
		Start:           start.UTC(),
		End:             end.UTC(),
		Status:          calendar.StatusConfirmed,
		LastModified:    time.Now().UTC(),
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyOrganizer); p != nil {
		ev.Organizer = strings.TrimPrefix(strings.ToLower(p.Value), "mailto:")
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		switch strings.ToUpper(p.Value) {
		case "TENTATIVE":
			ev.Status = calendar.StatusTentative
		case "CANCELLED":
			ev.Status = calendar.StatusCancelled
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertyCreated); p != nil {
		if t, err := time.Parse("20060102T150405Z", p.Value); err == nil {
			ev.CreatedAt = t
		}
	}
	return ev, nil
}

// icsEventID derives a stable engine id from the feed account and UID.
func icsEventID(accountID, uid string) string {
	sum := sha1.Sum([]byte(accountID + "/" + uid))
	return fmt.Sprintf("ics-%s", hex.EncodeToString(sum[:8]))
}
