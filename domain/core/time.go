package core

import "time"

// Timestamp is a timezone-aware point in time used only at the input/output
// boundary (spec §6 carries times in ms since epoch). Internally the
// locator works in float64 seconds-since-epoch to keep the numerical core
// allocation-free; see Timestamp.Seconds and FromSeconds below.
type Timestamp time.Time

func NewTimestamp(t time.Time) Timestamp { return Timestamp(t) }

func Now() Timestamp { return Timestamp(time.Now()) }

func (t Timestamp) Time() time.Time { return time.Time(t) }

func (t Timestamp) IsZero() bool { return time.Time(t).IsZero() }

func (t Timestamp) Before(u Timestamp) bool { return time.Time(t).Before(time.Time(u)) }

func (t Timestamp) After(u Timestamp) bool { return time.Time(t).After(time.Time(u)) }

// Seconds returns the timestamp as float64 seconds since the Unix epoch,
// the unit the numerical core works in throughout spec §3/§4.
func (t Timestamp) Seconds() float64 {
	tt := time.Time(t)
	return float64(tt.Unix()) + float64(tt.Nanosecond())/1e9
}

// FromSeconds builds a Timestamp from float64 seconds since the Unix epoch.
func FromSeconds(s float64) Timestamp {
	sec := int64(s)
	nsec := int64((s - float64(sec)) * 1e9)
	return Timestamp(time.Unix(sec, nsec).UTC())
}

// FromMillis builds a Timestamp from the ms-since-epoch convention used on
// the input/output envelope (spec §6).
func FromMillis(ms int64) Timestamp {
	return Timestamp(time.UnixMilli(ms).UTC())
}

// Millis returns ms since epoch for the output envelope.
func (t Timestamp) Millis() int64 {
	return time.Time(t).UnixMilli()
}
