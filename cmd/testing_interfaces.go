package main

import "net/http"

// httpDoer is the client surface the readiness check needs.
type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}
