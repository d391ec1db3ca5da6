package cache

import (
	"net/http"
	"strconv"
	"strings"
)

// Response header values emitted by the gateway.
const (
	HeaderCacheControl = "Cache-Control"
	NoCacheValue       = "no-cache"
)

// MaxAgeValue renders the Cache-Control value for an actively cached route.
func MaxAgeValue(ttlSeconds int) string {
	return "max-age=" + strconv.Itoa(ttlSeconds) + ", must-revalidate"
}

// CacheControlDirective represents the Cache-Control directives a client sent
// with its request.
type CacheControlDirective struct {
	MaxAge  *int // max-age directive value in seconds
	NoCache bool // no-cache directive present
	NoStore bool // no-store directive present
}

// ParseCacheControl parses a Cache-Control header string.
//
// Format: Cache-Control: directive1, directive2=value, directive3
//
// Supported directives:
//   - max-age=<seconds>
//   - no-cache
//   - no-store
//
// Unknown directives are silently ignored.
func ParseCacheControl(header string) CacheControlDirective {
	directive := CacheControlDirective{}

	if header == "" {
		return directive
	}

	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "=") {
			kv := strings.SplitN(part, "=", 2)
			key := strings.TrimSpace(strings.ToLower(kv[0]))
			value := strings.Trim(strings.TrimSpace(kv[1]), `"`)

			if key == "max-age" {
				if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
					directive.MaxAge = &seconds
				}
			}
			continue
		}

		switch strings.ToLower(part) {
		case "no-cache":
			directive.NoCache = true
		case "no-store":
			directive.NoStore = true
		}
	}

	return directive
}

// RefusesStored reports whether the client asked not to be served a stored
// response.
func (d CacheControlDirective) RefusesStored() bool {
	if d.NoCache || d.NoStore {
		return true
	}
	return d.MaxAge != nil && *d.MaxAge == 0
}

// ClientRefusesCache inspects Cache-Control and the HTTP/1.0 Pragma header.
func ClientRefusesCache(h http.Header) bool {
	if ParseCacheControl(strings.Join(h.Values(HeaderCacheControl), ",")).RefusesStored() {
		return true
	}
	for _, pragma := range h.Values("Pragma") {
		for _, token := range strings.Split(pragma, ",") {
			if strings.EqualFold(strings.TrimSpace(token), NoCacheValue) {
				return true
			}
		}
	}
	return false
}
