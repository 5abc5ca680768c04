package idp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, raw string) Record {
	t.Helper()
	var body Record
	require.NoError(t, json.Unmarshal([]byte(raw), &body))
	return body
}

func TestRecordList(t *testing.T) {
	body := decodeBody(t, `{"items":[{"id":"1"},"junk",{"id":"2"}]}`)
	records, ok := RecordList(body, "applications", "items")
	require.True(t, ok)
	assert.Len(t, records, 2)

	_, ok = RecordList(decodeBody(t, `{"applications":"nope","kind":"x"}`), "applications", "items")
	assert.False(t, ok)

	records, ok = RecordList(decodeBody(t, `{"value":[]}`), "value")
	assert.True(t, ok)
	assert.Empty(t, records)
}

func TestNormalizeGoogleApps(t *testing.T) {
	body := decodeBody(t, `{"applications":[
		{"id":"google-app-1","name":"Google Drive","description":"Cloud storage","status":"ACTIVE","type":"GOOGLE_APP","creationTime":"2023-01-01T00:00:00Z","lastModifiedTime":"2023-06-01T00:00:00Z"},
		{"id":"google-app-2","name":"Internal Tool"},
		{"name":"no id"}
	]}`)
	records, _ := RecordList(body, "applications", "items")
	apps := NormalizeGoogleApps(records)

	require.Len(t, apps, 2)
	assert.Equal(t, NormalizedApp{
		ID: "google-app-1", Name: "Google Drive", Description: "Cloud storage", Status: "ACTIVE",
		Type: "GOOGLE_APP", CreatedAt: "2023-01-01T00:00:00Z", UpdatedAt: "2023-06-01T00:00:00Z",
	}, apps[0])
	assert.Equal(t, "UNKNOWN", apps[1].Status)
	assert.Equal(t, "", apps[1].Description)
	assert.Equal(t, "", apps[1].CreatedAt)
}

func TestNormalizeAzureApps(t *testing.T) {
	body := decodeBody(t, `{"value":[
		{"id":"azure-app-1","displayName":"Microsoft Teams","appId":"teams-app-id","signInAudience":"AzureADMyOrg","createdDateTime":"2023-01-01T00:00:00Z"},
		{"id":"azure-app-2","displayName":"Legacy","appId":"legacy-id"}
	]}`)
	records, _ := RecordList(body, "value")
	apps := NormalizeAzureApps(records)

	require.Len(t, apps, 2)
	assert.Equal(t, "Microsoft Teams", apps[0].Name)
	assert.Equal(t, "ACTIVE", apps[0].Status)
	assert.Equal(t, "teams-app-id", apps[0].Type)
	assert.Equal(t, apps[0].CreatedAt, apps[0].UpdatedAt)
	assert.Equal(t, "INACTIVE", apps[1].Status)
}

func TestNormalizeOktaApps_KnownNames(t *testing.T) {
	var raw []any
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id":"okta-app-1","name":"Salesforce","label":"Salesforce CRM","status":"ACTIVE","signOnMode":"SAML_2_0","created":"2023-01-01T00:00:00.000Z","lastUpdated":"2023-02-01T00:00:00.000Z"},
		{"id":"okta-app-2","name":"Slack","label":"Slack Workspace","status":"ACTIVE","signOnMode":"OPENID_CONNECT"},
		{"id":"okta-app-3","name":"acme_portal_1","label":"Acme Portal"},
		{"id":"okta-app-4","name":"bare_app"}
	]`), &raw))

	apps := NormalizeOktaApps(toRecords(raw), KnownNameSet([]string{"Salesforce", "Slack"}))
	require.Len(t, apps, 4)
	assert.Equal(t, "Salesforce", apps[0].Name)
	assert.Equal(t, "Slack", apps[1].Name)
	assert.Equal(t, "Acme Portal", apps[2].Name)
	assert.Equal(t, "bare_app", apps[3].Name)
	assert.Equal(t, "SAML_2_0", apps[0].Type)
	assert.Equal(t, "UNKNOWN", apps[2].Status)
}

func TestNormalizeEmpty(t *testing.T) {
	apps := NormalizeOktaApps(nil, nil)
	require.NotNil(t, apps)
	assert.Empty(t, apps)
}
