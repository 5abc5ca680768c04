package idp

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// googleErrorBody is the structured error envelope Google APIs send with 429/403.
type googleErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type       string            `json:"@type"`
			Reason     string            `json:"reason"`
			Metadata   map[string]string `json:"metadata"`
			RetryDelay string            `json:"retryDelay"` // e.g. "3.5s"
		} `json:"details"`
	} `json:"error"`
}

// ParseRetryAfter reads a Retry-After header in either delta-seconds or HTTP-date form.
// Returns 0 if the header is absent or unparseable.
func ParseRetryAfter(h http.Header) time.Duration {
	retryAfter := strings.TrimSpace(h.Get("Retry-After"))
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// ParseRetryDelay extracts a retry hint from a throttled response.
// The Retry-After header wins; otherwise a Google retryDelay detail in body is used.
func ParseRetryDelay(h http.Header, body []byte) time.Duration {
	if d := ParseRetryAfter(h); d > 0 {
		return d
	}
	if len(body) == 0 {
		return 0
	}

	var errInfo googleErrorBody
	if err := json.Unmarshal(body, &errInfo); err != nil {
		return 0
	}
	for _, detail := range errInfo.Error.Details {
		if detail.RetryDelay != "" {
			if d, err := time.ParseDuration(detail.RetryDelay); err == nil {
				return d
			}
		}
		if delay, ok := detail.Metadata["retryDelay"]; ok {
			if d, err := time.ParseDuration(delay); err == nil {
				return d
			}
		}
	}
	return 0
}
