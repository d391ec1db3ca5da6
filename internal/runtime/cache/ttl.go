package cache

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Canonical unit lengths in seconds.
const (
	Second = 1
	Minute = 60 * Second
	Hour   = 60 * Minute
	Day    = 24 * Hour
	Week   = 7 * Day
	Month  = 30 * Day
	Year   = 365 * Day
)

// MaxTTLSeconds is the longest ttl that still fits a time.Duration.
const MaxTTLSeconds = math.MaxInt64 / int64(time.Second)

var unitSeconds = map[string]int{
	"second":  Second,
	"seconds": Second,
	"minute":  Minute,
	"minutes": Minute,
	"hour":    Hour,
	"hours":   Hour,
	"day":     Day,
	"days":    Day,
	"week":    Week,
	"weeks":   Week,
	"month":   Month,
	"months":  Month,
	"year":    Year,
	"years":   Year,
}

// UnknownUnitError reports a caching directive whose unit is not recognised.
type UnknownUnitError struct {
	Unit string
}

func (e *UnknownUnitError) Error() string {
	return fmt.Sprintf("cache: unknown ttl unit %q", e.Unit)
}

// Resolve converts a unit and multiplier into a number of seconds. A zero
// multiplier yields 0, meaning the response must not be cached.
func Resolve(unit string, multiplier int) (int, error) {
	if multiplier == 0 {
		return 0, nil
	}
	if multiplier < 0 {
		return 0, fmt.Errorf("cache: ttl multiplier must not be negative: %d", multiplier)
	}
	seconds, ok := unitSeconds[normalizeUnit(unit)]
	if !ok {
		return 0, &UnknownUnitError{Unit: unit}
	}
	if int64(multiplier) > MaxTTLSeconds/int64(seconds) {
		return 0, fmt.Errorf("cache: ttl of %d %s exceeds %d seconds", multiplier, normalizeUnit(unit), MaxTTLSeconds)
	}
	return seconds * multiplier, nil
}

func normalizeUnit(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}

// Directive is the caching policy bound to a route. The zero value is a
// disabled directive.
type Directive struct {
	unit       string
	multiplier int
	enabled    bool
}

// NewDirective validates unit eagerly so misconfigured routes fail at setup.
// The multiplier defaults to 1 when omitted.
func NewDirective(unit string, multiplier ...int) (Directive, error) {
	n := 1
	if len(multiplier) > 0 {
		n = multiplier[0]
	}
	if n != 0 {
		if _, err := Resolve(unit, n); err != nil {
			return Directive{}, err
		}
	}
	return Directive{unit: normalizeUnit(unit), multiplier: n, enabled: true}, nil
}

// Disabled returns a directive that never caches.
func Disabled() Directive {
	return Directive{}
}

// Enabled reports whether the directive was built from a unit.
func (d Directive) Enabled() bool { return d.enabled }

// Seconds resolves the directive at request time.
func (d Directive) Seconds() (int, error) {
	if !d.enabled {
		return 0, nil
	}
	return Resolve(d.unit, d.multiplier)
}

// TTL is Seconds expressed as a duration.
func (d Directive) TTL() (time.Duration, error) {
	seconds, err := d.Seconds()
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}

func (d Directive) String() string {
	if !d.enabled {
		return "disabled"
	}
	return strconv.Itoa(d.multiplier) + " " + d.unit
}
