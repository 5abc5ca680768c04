package idp

import (
	"fmt"
	"strconv"
	"strings"
)

const statusUnknown = "UNKNOWN"

// Record is one decoded JSON object from a provider catalog.
type Record = map[string]any

// stringValue reads a scalar field as text. Missing, null and composite values are "".
func stringValue(rec Record, key string) string {
	switch v := rec[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// RecordList extracts the first list found under keys. ok is false when none of
// the keys holds a JSON array.
func RecordList(body Record, keys ...string) (records []Record, ok bool) {
	for _, key := range keys {
		raw, present := body[key]
		if !present {
			continue
		}
		items, isList := raw.([]any)
		if !isList {
			continue
		}
		return toRecords(items), true
	}
	return nil, false
}

func toRecords(items []any) []Record {
	out := make([]Record, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(map[string]any); ok {
			out = append(out, rec)
		}
	}
	return out
}

// NormalizeGoogleApps maps Admin SDK application records.
func NormalizeGoogleApps(records []Record) []NormalizedApp {
	apps := make([]NormalizedApp, 0, len(records))
	for _, rec := range records {
		app := NormalizedApp{
			ID:          stringValue(rec, "id"),
			Name:        stringValue(rec, "name"),
			Description: stringValue(rec, "description"),
			Status:      orDefault(stringValue(rec, "status"), statusUnknown),
			Type:        stringValue(rec, "type"),
			CreatedAt:   stringValue(rec, "creationTime"),
			UpdatedAt:   stringValue(rec, "lastModifiedTime"),
		}
		if app.ID == "" || app.Name == "" {
			continue
		}
		apps = append(apps, app)
	}
	return apps
}

// NormalizeAzureApps maps Microsoft Graph application records. An application
// with a sign-in audience is reported ACTIVE.
func NormalizeAzureApps(records []Record) []NormalizedApp {
	apps := make([]NormalizedApp, 0, len(records))
	for _, rec := range records {
		status := "INACTIVE"
		if stringValue(rec, "signInAudience") != "" {
			status = "ACTIVE"
		}
		created := stringValue(rec, "createdDateTime")
		app := NormalizedApp{
			ID:          stringValue(rec, "id"),
			Name:        stringValue(rec, "displayName"),
			Description: stringValue(rec, "description"),
			Status:      status,
			Type:        stringValue(rec, "appId"),
			CreatedAt:   created,
			UpdatedAt:   created,
		}
		if app.ID == "" || app.Name == "" {
			continue
		}
		apps = append(apps, app)
	}
	return apps
}

// NormalizeOktaApps maps Okta app instances. Well-known integrations keep their
// catalog name; custom apps are shown by label.
func NormalizeOktaApps(records []Record, knownNames map[string]struct{}) []NormalizedApp {
	apps := make([]NormalizedApp, 0, len(records))
	for _, rec := range records {
		name := stringValue(rec, "name")
		if _, known := knownNames[name]; !known {
			name = orDefault(stringValue(rec, "label"), name)
		}
		app := NormalizedApp{
			ID:          stringValue(rec, "id"),
			Name:        name,
			Description: stringValue(rec, "description"),
			Status:      orDefault(stringValue(rec, "status"), statusUnknown),
			Type:        stringValue(rec, "signOnMode"),
			CreatedAt:   stringValue(rec, "created"),
			UpdatedAt:   stringValue(rec, "lastUpdated"),
		}
		if app.ID == "" || app.Name == "" {
			continue
		}
		apps = append(apps, app)
	}
	return apps
}

// KnownNameSet builds the lookup used by NormalizeOktaApps.
func KnownNameSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// NextPageToken returns a string page token, accepting numeric tokens as text.
func NextPageToken(body Record, key string) string {
	return stringValue(body, key)
}

// MalformedListError reports a 2xx body without the expected list.
func MalformedListError(provider ProviderType, keys ...string) *Error {
	return NewMalformedResponseError(provider,
		fmt.Sprintf("response has no %s list", strings.Join(keys, " or ")), nil)
}
