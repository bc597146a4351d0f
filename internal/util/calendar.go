package util

import "time"

// KST is Korea Standard Time. Korea observes no daylight saving, so a fixed
// zone avoids depending on the host's tz database.
var KST = time.FixedZone("KST", 9*60*60)

// SessionDay returns the KST midnight that starts the exchange day holding t.
func SessionDay(t time.Time) time.Time {
	k := t.In(KST)
	return time.Date(k.Year(), k.Month(), k.Day(), 0, 0, 0, 0, KST)
}

// Noon returns 12:00 KST on the exchange day holding t.
func Noon(t time.Time) time.Time {
	return SessionDay(t).Add(12 * time.Hour)
}

// IsMorning reports whether t falls in the first half (00:00 to 11:59 KST)
// of its exchange day.
func IsMorning(t time.Time) bool {
	return t.In(KST).Hour() < 12
}

// SessionKey formats the exchange day holding t as YYYY-MM-DD.
func SessionKey(t time.Time) string {
	return SessionDay(t).Format("2006-01-02")
}
