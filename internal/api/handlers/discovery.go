package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/topagents/idp-discovery/internal/discovery"
	"github.com/topagents/idp-discovery/internal/idp"
)

const maxRegisterBodyBytes = 1 << 20

// RegisterRequestBody holds the common registration fields. Provider-specific
// fields are read from the same JSON object, or from a nested "config" object.
type RegisterRequestBody struct {
	DisplayName string `json:"display_name" validate:"max=255"`
	Type        string `json:"type" validate:"max=64"`
	APIURL      string `json:"api_url" validate:"omitempty,max=2048"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// RegisterIDPHandler handles POST /discovery/idp.
func RegisterIDPHandler(registry *discovery.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := map[string]any{}
		dec := json.NewDecoder(io.LimitReader(r.Body, maxRegisterBodyBytes))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		fields := idp.FieldsFromJSON(raw)
		if nested, ok := raw["config"].(map[string]any); ok {
			delete(fields, "config")
			for k, v := range idp.FieldsFromJSON(nested) {
				if _, exists := fields[k]; !exists {
					fields[k] = v
				}
			}
		}

		body := RegisterRequestBody{
			DisplayName: fields["display_name"],
			Type:        fields["type"],
			APIURL:      fields["api_url"],
		}
		if err := validate.Struct(body); err != nil {
			writeIDPError(w, r, idp.PhaseRegistration, validationError(body.Type, err), "")
			return
		}
		for _, k := range []string{"display_name", "type", "api_url"} {
			delete(fields, k)
		}

		res, err := registry.Register(r.Context(), discovery.RegisterRequest{
			DisplayName:  body.DisplayName,
			ProviderType: body.Type,
			Fields:       fields,
			APIURL:       body.APIURL,
		})
		if err != nil {
			writeIDPError(w, r, idp.PhaseRegistration, err, res.ID)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": statusSuccess,
			"idp_id": res.ID,
		})
	}
}

func validationError(providerType string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return idp.NewValidationError(idp.ProviderType(providerType), fe.Field(),
			"must be at most "+fe.Param()+" characters")
	}
	return idp.NewValidationError(idp.ProviderType(providerType), "body", err.Error())
}

// ListAppsHandler handles GET /discovery/apps?idp_id=.
func ListAppsHandler(registry *discovery.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.URL.Query().Get("idp_id"))
		if id == "" {
			writeError(w, http.StatusBadRequest, "Missing required parameter: idp_id")
			return
		}

		apps, err := registry.GetAppCatalog(r.Context(), id)
		if err != nil {
			writeIDPError(w, r, idp.PhaseFetch, err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      statusSuccess,
			"apps":        apps,
			"total_count": len(apps),
			"idp_id":      id,
		})
	}
}

// ListIDPsHandler handles GET /discovery/idp.
func ListIDPsHandler(registry *discovery.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := registry.List(r.Context())
		if err != nil {
			writeIDPError(w, r, idp.PhaseFetch, err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      statusSuccess,
			"idps":        views,
			"total_count": len(views),
		})
	}
}

// GetIDPHandler handles GET /discovery/idp/{id}.
func GetIDPHandler(registry *discovery.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := registry.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeIDPError(w, r, idp.PhaseFetch, err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": statusSuccess,
			"idp":    view,
		})
	}
}

// RetestIDPHandler handles POST /discovery/idp/{id}/test. Failures use the
// registration status table since they come from the same connection test.
func RetestIDPHandler(registry *discovery.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		res, err := registry.Retest(r.Context(), id)
		if err != nil {
			if idp.KindOf(err) == idp.KindIntegrationNotFound {
				writeIDPError(w, r, idp.PhaseFetch, err, "")
				return
			}
			writeIDPError(w, r, idp.PhaseRegistration, err, id)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     statusSuccess,
			"idp_id":     res.ID,
			"idp_status": res.Status,
		})
	}
}

// TestHistoryHandler handles GET /discovery/idp/{id}/tests?limit=.
func TestHistoryHandler(registry *discovery.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "Invalid parameter: limit must be a positive integer")
				return
			}
			limit = n
		}

		id := chi.URLParam(r, "id")
		logs, err := registry.TestHistory(r.Context(), id, limit)
		if err != nil {
			writeIDPError(w, r, idp.PhaseFetch, err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      statusSuccess,
			"idp_id":      id,
			"tests":       logs,
			"total_count": len(logs),
		})
	}
}
