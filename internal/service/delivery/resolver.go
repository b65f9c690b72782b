package delivery

import (
	"time"

	"github.com/open-builders/image-delivery-bot/internal/domain/record"
)

// DayLayout is the format dated image entries use.
const DayLayout = "2006-01-02"

// Day formats t as a calendar day in t's location.
func Day(t time.Time) string {
	return t.Format(DayLayout)
}

// Resolve returns the URLs of rec deliverable on day, in record order.
// The result is empty, never nil, when nothing matches.
func Resolve(rec *record.Record, day string) []string {
	links := rec.Links()
	urls := make([]string, 0, len(links))
	for _, entry := range links {
		if entry.DeliverableOn(day) {
			urls = append(urls, entry.URL)
		}
	}
	return urls
}

// ResolveToday is Resolve for the calendar day of now in the server's local zone.
func ResolveToday(rec *record.Record, now time.Time) []string {
	return Resolve(rec, Day(now.Local()))
}
