package idp

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRetryDelay(t *testing.T) {
	tests := []struct {
		name   string
		header string
		body   string
		want   time.Duration
	}{
		{"seconds header", "12", "", 12 * time.Second},
		{"header wins", "3", `{"error":{"details":[{"retryDelay":"9s"}]}}`, 3 * time.Second},
		{"google retryDelay", "", `{"error":{"code":429,"details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"3.5s"}]}}`, 3500 * time.Millisecond},
		{"google metadata", "", `{"error":{"details":[{"metadata":{"retryDelay":"2s"}}]}}`, 2 * time.Second},
		{"garbage", "soon", `not json`, 0},
		{"none", "", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Retry-After", tt.header)
			}
			assert.Equal(t, tt.want, ParseRetryDelay(h, []byte(tt.body)))
		})
	}
}

func TestParseRetryAfter_HTTPDate(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", time.Now().Add(time.Minute).UTC().Format(http.TimeFormat))
	d := ParseRetryAfter(h)
	assert.Greater(t, d, 50*time.Second)
	assert.LessOrEqual(t, d, time.Minute)
}
