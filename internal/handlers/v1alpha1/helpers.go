package v1alpha1

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	api "github.com/aide-monitoring/workflow-tracker/api/v1alpha1"
	"github.com/aide-monitoring/workflow-tracker/internal/handlers/validator"
	"github.com/aide-monitoring/workflow-tracker/internal/service"
	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
	"github.com/aide-monitoring/workflow-tracker/pkg/requestid"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"
)

// decode reads a JSON body into form and validates it. An empty body decodes to the zero form,
// so the client gets the missing fields message rather than a parse error.
func (h *ServiceHandler) decode(r *http.Request, form any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(form); err != nil && !errors.Is(err, io.EOF) {
		return service.NewErrInvalidRequest("invalid request body: %v", err)
	}

	return h.validator.Struct(form)
}

// intParam returns the query parameter as a positive int, or def when absent or unparsable.
func intParam(r *http.Request, name string, def int) int {
	var v int
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &v); err != nil || v <= 0 {
		return def
	}
	return v
}

// pathParam returns the unescaped value of a simple style path parameter.
func pathParam(r *http.Request, name string) (string, error) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		return "", service.NewErrInvalidRequest("invalid %s: %v", name, err)
	}
	return v, nil
}

func respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respond(w, r, status, api.Error{Error: message})
}

// handleError maps service errors to their status code. Anything unexpected is logged and
// answered with 500.
func handleError(w http.ResponseWriter, r *http.Request, handler string, err error) {
	switch err.(type) {
	case *model.ErrUnknownDestination, *validator.ErrMissingFields, *validator.ErrInvalidField,
		*service.ErrInvalidInterval, *service.ErrInvalidRequest:
		respondError(w, r, http.StatusBadRequest, err.Error())
	case *service.ErrResourceNotFound:
		respondError(w, r, http.StatusNotFound, err.Error())
	case *service.ErrNotConfigured, *service.ErrUpstreamUnavailable:
		respondError(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		zap.S().Named(handler).Errorw("request failed", "error", err, "path", r.URL.Path, "request_id", requestid.FromContext(r.Context()))
		respondError(w, r, http.StatusInternalServerError, err.Error())
	}
}
