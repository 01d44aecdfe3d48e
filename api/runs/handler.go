// Package runs exposes assignment runs over HTTP.
package runs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/fieldops/core/assign"
	"github.com/kilianp07/fieldops/core/lock"
	"github.com/kilianp07/fieldops/core/logger"
	"github.com/kilianp07/fieldops/core/model"
	"github.com/kilianp07/fieldops/core/store"
)

// Prefix is the path the handler is mounted on.
const Prefix = "/api/runs/"

// Runner triggers runs and reads committed outcomes.
type Runner interface {
	RunDate(ctx context.Context, target time.Time) (assign.RunSummary, error)
	Outcome(ctx context.Context, date time.Time) (model.Outcome, error)
}

// NewHandler serves the runs of a date:
//
//	GET  /api/runs/{date}          report of the committed outcome
//	GET  /api/runs/{date}?full=1   the committed outcome itself
//	POST /api/runs/{date}          runs the assignment for the date
//
// Requests must include an Authorization header with "Bearer <token>" when
// token is non-empty.
func NewHandler(r Runner, token string, log logger.Logger) http.Handler {
	if log == nil {
		log = logger.NopLogger{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if token != "" && req.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		key := strings.Trim(strings.TrimPrefix(req.URL.Path, Prefix), "/")
		if key == "" || strings.Contains(key, "/") {
			http.NotFound(w, req)
			return
		}
		date, err := model.ParseDate(key)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		switch req.Method {
		case http.MethodGet:
			out, err := r.Outcome(req.Context(), date)
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "no run for "+key, http.StatusNotFound)
				return
			}
			if err != nil {
				log.Errorf("read outcome %s: %v", key, err)
				http.Error(w, "record store unavailable", http.StatusInternalServerError)
				return
			}
			if full := req.URL.Query().Get("full"); full == "1" || full == "true" {
				writeJSON(w, http.StatusOK, out)
				return
			}
			writeJSON(w, http.StatusOK, assign.Summarize(out))
		case http.MethodPost:
			sum, err := r.RunDate(req.Context(), date)
			switch {
			case errors.Is(err, lock.ErrLockHeld):
				http.Error(w, "a run for "+key+" is already in progress", http.StatusConflict)
			case err != nil:
				log.Errorf("run %s: %v", key, err)
				writeJSON(w, http.StatusInternalServerError, sum)
			default:
				writeJSON(w, http.StatusOK, sum)
			}
		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
