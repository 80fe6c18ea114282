package tipsapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/rafaeljc/tipsengine/internal/catalog"
	"github.com/rafaeljc/tipsengine/internal/logger"
	"github.com/rafaeljc/tipsengine/internal/observability"
	"github.com/rafaeljc/tipsengine/internal/tips"
)

// handleGetTips processes POST /tips/gettips.
//
// The body is decoded leniently, the pipeline runs against the catalog that
// is current when the request starts, and the response is the bare array of
// selected tips.
func (a *API) handleGetTips(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxBodyBytes)

	var body GetTipsRequest
	if err := render.DecodeJSON(r.Body, &body); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "ERR_BODY_TOO_LARGE", "Request body is too large")
			return
		}
		log.Warn("invalid json payload", slog.Any("error", err))
		writeError(w, r, http.StatusBadRequest, "ERR_INVALID_JSON", "Invalid JSON payload: "+err.Error())
		return
	}

	var audience []string
	if r.URL.Query().Has("audience") {
		audience = parseAudience(r.URL.Query().Get("audience"))
	}

	req, err := body.toRequest(audience)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "ERR_INVALID_INPUT", err.Error())
		return
	}

	current, err := a.catalogs.Current()
	if err != nil {
		if errors.Is(err, catalog.ErrNotLoaded) {
			writeError(w, r, http.StatusServiceUnavailable, "ERR_CATALOG_UNAVAILABLE", "Tip catalog is not loaded yet")
			return
		}
		log.Error("failed to read catalog", slog.Any("error", err))
		writeError(w, r, http.StatusInternalServerError, "ERR_INTERNAL", "Failed to read tip catalog")
		return
	}

	out, err := a.generator.Generate(r.Context(), current, req)
	if err != nil {
		if errors.Is(err, tips.ErrInvalidSourceTip) {
			writeError(w, r, http.StatusBadRequest, "ERR_INVALID_INPUT", err.Error())
			return
		}
		log.Error("failed to generate tips",
			slog.String("catalog_version", current.Version),
			slog.Any("error", err),
		)
		writeError(w, r, http.StatusInternalServerError, "ERR_INTERNAL", "Failed to generate tips")
		return
	}
	if out == nil {
		out = []tips.Output{}
	}

	observability.TipsSelected.Observe(float64(len(out)))
	render.Status(r, http.StatusOK)
	render.JSON(w, r, out)
}

// handleReload processes POST /admin/catalog/reload.
func (a *API) handleReload(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	changed, err := a.catalogs.Reload(r.Context())
	if err != nil {
		log.Error("admin catalog reload failed", slog.Any("error", err))
		writeError(w, r, http.StatusUnprocessableEntity, "ERR_RELOAD_FAILED", err.Error())
		return
	}

	current, err := a.catalogs.Current()
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "ERR_CATALOG_UNAVAILABLE", err.Error())
		return
	}

	log.Info("admin catalog reload",
		slog.Bool("changed", changed),
		slog.String("catalog_version", current.Version),
	)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, ReloadResponse{Changed: changed, Version: current.Version, Tips: len(current.Tips)})
}
