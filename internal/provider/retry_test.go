package provider

import (
	"errors"
	"testing"
)

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("Rate Limit exceeded"), true},
		{"quota", errors.New("quota exceeded for project"), true},
		{"http 429", errors.New("unexpected status 429"), true},
		{"overloaded", errors.New("overloaded_error: try again"), true},
		{"http 500", errors.New("server returned 500"), true},
		{"http 503", errors.New("503 Service Unavailable"), true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"timeout", errors.New("context deadline exceeded (Client.Timeout)"), true},
		{"bad request", errors.New("400 invalid request body"), false},
		{"auth", errors.New("401 unauthorized"), false},
		{"generic", errors.New("something else entirely"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestContainsAny_CaseInsensitive(t *testing.T) {
	if !containsAny("RATE LIMIT HIT", "rate limit") {
		t.Error("expected case-insensitive match")
	}
	if containsAny("all good", "rate limit", "429") {
		t.Error("unexpected match")
	}
}
