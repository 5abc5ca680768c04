package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/topagents/idp-discovery/internal/util"
)

const (
	// DefaultTimeout bounds one connection test or catalog fetch.
	DefaultTimeout = 10 * time.Second
	// DefaultMaxPages caps how many catalog pages are followed.
	DefaultMaxPages = 20

	maxBodyBytes = 8 << 20
)

// Session bounds one chain of upstream calls (token exchange, probe, catalog pages)
// made for a single operation. It is not shared between operations.
type Session struct {
	provider  ProviderType
	timeout   time.Duration
	transport *Transport
	client    *http.Client
}

// NewSession wraps base's transport for one operation. A nil base uses
// http.DefaultTransport.
func NewSession(provider ProviderType, base *http.Client, timeout time.Duration) *Session {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	var rt http.RoundTripper
	if base != nil {
		rt = base.Transport
	}
	tr := &Transport{Base: rt}
	return &Session{
		provider:  provider,
		timeout:   timeout,
		transport: tr,
		client:    &http.Client{Transport: tr, Timeout: timeout},
	}
}

// Context applies the session deadline and makes oauth2 token sources use the
// session client.
func (s *Session) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Session) Client() *http.Client {
	return s.client
}

// Get issues a GET request. Transport failures come back classified.
func (s *Session) Get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, NewUnreachableError(s.provider, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, s.Fail(err)
	}
	return resp, nil
}

// Fail classifies a transport-level error as Timeout or Unreachable.
func (s *Session) Fail(err error) *Error {
	var ierr *Error
	if errors.As(err, &ierr) {
		return ierr
	}

	timeout := errors.Is(err, context.DeadlineExceeded)
	var terr *TransportError
	if errors.As(err, &terr) {
		timeout = timeout || terr.Timeout
	} else if f := s.transport.Failure(); f != nil {
		timeout = timeout || f.Timeout
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		timeout = true
	}

	if timeout {
		return NewTimeoutError(s.provider, err)
	}
	return NewUnreachableError(s.provider, err)
}

// StatusError maps a non-2xx upstream response and closes its body.
// 429 is RateLimited, 401 is InvalidCredentials, everything else is GenericAPI.
func (s *Session) StatusError(resp *http.Response) *Error {
	body := s.drain(resp)
	log.Printf("⚠️ [idp] %s responded %d: %s", s.provider, resp.StatusCode, util.TruncateBytes(body))

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return NewRateLimitedError(s.provider, ParseRetryDelay(resp.Header, body))
	case http.StatusUnauthorized:
		return NewInvalidCredentialsError(s.provider,
			fmt.Sprintf("%s rejected the credentials (401)", s.provider.DisplayName()), nil)
	default:
		return NewGenericAPIError(s.provider, resp.StatusCode)
	}
}

// QuotaError maps a 403 quota response and closes its body.
func (s *Session) QuotaError(resp *http.Response) *Error {
	body := s.drain(resp)
	log.Printf("⚠️ [idp] %s quota response %d: %s", s.provider, resp.StatusCode, util.TruncateBytes(body))
	return NewQuotaExceededError(s.provider, ParseRetryDelay(resp.Header, body))
}

// TokenError classifies a failed token exchange.
func (s *Session) TokenError(err error) *Error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		status := rerr.Response.StatusCode
		code := tokenErrorCode(rerr)
		log.Printf("⚠️ [idp] %s token endpoint responded %d (%s)", s.provider, status, code)
		switch {
		case status == http.StatusTooManyRequests:
			return NewRateLimitedError(s.provider, ParseRetryDelay(rerr.Response.Header, rerr.Body))
		case status == http.StatusUnauthorized, isCredentialErrorCode(code):
			return NewInvalidCredentialsError(s.provider,
				fmt.Sprintf("%s token request was rejected (%d)", s.provider.DisplayName(), status), err)
		default:
			return NewGenericAPIError(s.provider, status)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || s.transport.Failure() != nil {
		return s.Fail(err)
	}
	return NewInvalidCredentialsError(s.provider,
		fmt.Sprintf("could not obtain a %s access token", s.provider.DisplayName()), err)
}

// tokenErrorCode returns the RFC 6749 error code. The JWT token source does not
// parse it, so the body is read as a fallback.
func tokenErrorCode(rerr *oauth2.RetrieveError) string {
	if rerr.ErrorCode != "" {
		return rerr.ErrorCode
	}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(rerr.Body, &body) == nil {
		return body.Error
	}
	return ""
}

func isCredentialErrorCode(code string) bool {
	switch code {
	case "invalid_grant", "invalid_client", "unauthorized_client":
		return true
	}
	return false
}

// DecodeJSON reads a 2xx body into out and closes it.
func (s *Session) DecodeJSON(resp *http.Response, out any) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return s.Fail(err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		log.Printf("⚠️ [idp] %s returned undecodable body: %s", s.provider, util.TruncateBytes(body))
		return NewMalformedResponseError(s.provider, "response could not be decoded", err)
	}
	return nil
}

// Discard drains and closes a body that is not needed.
func (s *Session) Discard(resp *http.Response) {
	s.drain(resp)
}

func (s *Session) drain(resp *http.Response) []byte {
	if resp == nil || resp.Body == nil {
		return nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return body
}

// SameOrigin reports whether next points at the same scheme and host as base.
// Pagination links are only followed when they do, so credentials stay on one host.
func SameOrigin(base, next string) bool {
	b, err := url.Parse(base)
	if err != nil {
		return false
	}
	n, err := url.Parse(next)
	if err != nil {
		return false
	}
	return strings.EqualFold(b.Scheme, n.Scheme) && strings.EqualFold(b.Host, n.Host)
}
