package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldops/core/assign"
	"github.com/kilianp07/fieldops/core/lock"
	"github.com/kilianp07/fieldops/core/model"
	"github.com/kilianp07/fieldops/core/store"
)

type fakeRunner struct {
	outcomes map[string]model.Outcome
	runErr   error
	outErr   error
	ran      []string
}

func (f *fakeRunner) RunDate(_ context.Context, target time.Time) (assign.RunSummary, error) {
	f.ran = append(f.ran, model.DateKey(target))
	sum := assign.RunSummary{Status: assign.RunCompleted}
	sum.Date = target
	sum.RunID = "run-1"
	if f.runErr != nil {
		sum.Status = assign.RunFailed
		sum.Message = f.runErr.Error()
	}
	return sum, f.runErr
}

func (f *fakeRunner) Outcome(_ context.Context, date time.Time) (model.Outcome, error) {
	if f.outErr != nil {
		return model.Outcome{}, f.outErr
	}
	out, ok := f.outcomes[model.DateKey(date)]
	if !ok {
		return model.Outcome{}, store.ErrNotFound
	}
	return out, nil
}

func serve(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func sampleOutcome() model.Outcome {
	d := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	return model.Outcome{
		Date:   d,
		RunID:  "run-1",
		Totals: model.RunTotals{Due: 3, Assigned: 2, Unassigned: 1},
		Workloads: []model.StaffWorkload{
			{Date: d, StaffID: "S1", Region: "coast", SubRegion: "north", Count: 2, ClientIDs: []string{"c1", "c2"}},
		},
		SubRegionVehicles: []model.SubRegionVehicles{
			{Date: d, Region: "coast", SubRegion: "north", VehicleIDs: []string{"V1"}, Strategy: model.StrategySingle},
		},
		UnassignedClients: []model.UnassignedClient{{Date: d, ClientID: "c3", Reason: model.ReasonNoSpecialization}},
	}
}

func TestGetReport(t *testing.T) {
	h := NewHandler(&fakeRunner{outcomes: map[string]model.Outcome{"2024-01-15": sampleOutcome()}}, "", nil)
	rr := serve(t, h, http.MethodGet, "/api/runs/2024-01-15")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var rep assign.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, 2, rep.Totals.Assigned)
	assert.Equal(t, []string{"coast/north"}, rep.VehicleCoverage["V1"])
	assert.Equal(t, 1, rep.Stats.Staff)
}

func TestGetFullOutcome(t *testing.T) {
	h := NewHandler(&fakeRunner{outcomes: map[string]model.Outcome{"2024-01-15": sampleOutcome()}}, "", nil)
	rr := serve(t, h, http.MethodGet, "/api/runs/2024-01-15?full=1")
	require.Equal(t, http.StatusOK, rr.Code)
	var out model.Outcome
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, sampleOutcome().UnassignedClients, out.UnassignedClients)
}

func TestGetErrors(t *testing.T) {
	cases := []struct {
		name   string
		runner *fakeRunner
		path   string
		code   int
	}{
		{"missing run", &fakeRunner{}, "/api/runs/2024-01-16", http.StatusNotFound},
		{"bad date", &fakeRunner{}, "/api/runs/15-01-2024", http.StatusBadRequest},
		{"no date", &fakeRunner{}, "/api/runs/", http.StatusNotFound},
		{"nested path", &fakeRunner{}, "/api/runs/2024-01-15/extra", http.StatusNotFound},
		{"store failure", &fakeRunner{outErr: errors.New("db down")}, "/api/runs/2024-01-15", http.StatusInternalServerError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rr := serve(t, NewHandler(c.runner, "", nil), http.MethodGet, c.path)
			assert.Equal(t, c.code, rr.Code)
		})
	}
}

func TestPostRun(t *testing.T) {
	r := &fakeRunner{}
	rr := serve(t, NewHandler(r, "", nil), http.MethodPost, "/api/runs/2024-01-15")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"2024-01-15"}, r.ran)

	var sum assign.RunSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sum))
	assert.Equal(t, assign.RunCompleted, sum.Status)
}

func TestPostRunFailures(t *testing.T) {
	held := &fakeRunner{runErr: fmt.Errorf("%w: fieldops:run:2024-01-15", lock.ErrLockHeld)}
	rr := serve(t, NewHandler(held, "", nil), http.MethodPost, "/api/runs/2024-01-15")
	assert.Equal(t, http.StatusConflict, rr.Code)

	failed := &fakeRunner{runErr: fmt.Errorf("%w: load inputs: disk", assign.ErrStore)}
	rr = serve(t, NewHandler(failed, "", nil), http.MethodPost, "/api/runs/2024-01-15")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	var sum assign.RunSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sum))
	assert.Equal(t, assign.RunFailed, sum.Status)
	assert.Contains(t, sum.Message, "disk")
}

func TestMethodNotAllowed(t *testing.T) {
	rr := serve(t, NewHandler(&fakeRunner{}, "", nil), http.MethodDelete, "/api/runs/2024-01-15")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "GET, POST", rr.Header().Get("Allow"))
}

func TestAuthToken(t *testing.T) {
	h := NewHandler(&fakeRunner{}, "secret", nil)
	rr := serve(t, h, http.MethodPost, "/api/runs/2024-01-15")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/runs/2024-01-15", strings.NewReader(""))
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
