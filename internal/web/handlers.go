package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"codeberg.org/mutker/brewctl/internal/controller"
	"codeberg.org/mutker/brewctl/internal/device"
	"codeberg.org/mutker/brewctl/internal/errors"
	"codeberg.org/mutker/brewctl/internal/rig"
)

const defaultTelemetryWindow = 24 * time.Hour

type controllerEntry struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Rig    string `json:"rig,omitempty"`
	System bool   `json:"system,omitempty"`
}

type rigEntry struct {
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Controllers []string `json:"controllers"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) listControllers(w http.ResponseWriter, _ *http.Request) {
	list := s.dir.Controllers()
	out := make([]controllerEntry, 0, len(list))
	for _, c := range list {
		out = append(out, controllerEntry{
			Name:   c.Name(),
			URL:    "/controllers/" + c.Name(),
			Rig:    c.Rig(),
			System: c.IsSystem(),
		})
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) getController(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) controllerHistory(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, controller.Export(c.History()))
}

// commandController applies {endpoint: value, ...} in document order and answers
// with the resulting snapshot.
func (s *Server) commandController(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}

	doc, ok := s.decodeDocument(w, r)
	if !ok {
		return
	}

	for _, cmd := range doc {
		if err := c.Dispatch(cmd.Endpoint, cmd.Payload); err != nil {
			s.writeError(w, err)
			return
		}
	}

	s.writeJSON(w, http.StatusOK, c.Snapshot())
}

// controllerTelemetry serves stored samples. Query parameters: since
// (RFC3339 or a duration back from now, default 24h) and limit.
func (s *Server) controllerTelemetry(w http.ResponseWriter, r *http.Request) {
	if s.telemetry == nil {
		s.writeError(w, errors.New().WithData(errors.ErrResourceNotFound, "telemetry disabled"))
		return
	}

	c, ok := s.controller(w, r)
	if !ok {
		return
	}

	since, err := parseSince(r.URL.Query().Get("since"), time.Now())
	if err != nil {
		s.writeError(w, errors.New().Wrap(errors.ErrInvalidPayload, err))
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			s.writeError(w, errors.New().WithData(errors.ErrInvalidPayload, "limit "+v))
			return
		}
	}

	rows, err := s.telemetry.Samples(r.Context(), c.Name(), since, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, rows)
}

func (s *Server) listRigs(w http.ResponseWriter, _ *http.Request) {
	list := s.dir.Rigs()
	out := make([]rigEntry, 0, len(list))
	for _, rg := range list {
		out = append(out, rigEntry{Name: rg.Name(), URL: "/rigs/" + rg.Name(), Controllers: rg.Members()})
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) getRig(w http.ResponseWriter, r *http.Request) {
	rg, ok := s.rig(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, rg.Combined())
}

func (s *Server) rigDetails(w http.ResponseWriter, r *http.Request) {
	rg, ok := s.rig(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, rg.Aggregate().Details)
}

func (s *Server) rigHistory(w http.ResponseWriter, r *http.Request) {
	rg, ok := s.rig(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, rg.CombinedHistory())
}

func (s *Server) commandRig(w http.ResponseWriter, r *http.Request) {
	rg, ok := s.rig(w, r)
	if !ok {
		return
	}

	doc, ok := s.decodeDocument(w, r)
	if !ok {
		return
	}

	if err := rg.DispatchDocument(doc); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, rg.Combined())
}

func (s *Server) controller(w http.ResponseWriter, r *http.Request) (*controller.Controller, bool) {
	name := mux.Vars(r)["name"]
	c, ok := s.dir.Controller(name)
	if !ok {
		s.writeError(w, errors.New().WithData(errors.ErrUnknownTarget, name))
	}

	return c, ok
}

func (s *Server) rig(w http.ResponseWriter, r *http.Request) (*rig.Rig, bool) {
	name := mux.Vars(r)["name"]
	rg, ok := s.dir.Rig(name)
	if !ok {
		s.writeError(w, errors.New().WithData(errors.ErrUnknownTarget, name))
	}

	return rg, ok
}

func (s *Server) decodeDocument(w http.ResponseWriter, r *http.Request) (device.Document, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<16))
	if err != nil {
		s.writeError(w, errors.New().Wrap(errors.ErrInvalidPayload, err))
		return nil, false
	}

	doc, docErr := device.ParseDocument(body)
	if docErr != nil {
		s.writeError(w, docErr)
		return nil, false
	}

	return doc, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("Failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	var appErr errors.Error
	if errors.As(err, &appErr) {
		body.Code = string(appErr.Code())
	}

	s.writeJSON(w, statusFor(err), body)
}

func statusFor(err error) int {
	switch {
	case errors.HasCode(err, errors.ErrInvalidPayload),
		errors.HasCode(err, rig.ErrInvalidDocument):
		return http.StatusBadRequest
	case errors.HasCode(err, errors.ErrUnknownTarget),
		errors.HasCode(err, errors.ErrResourceNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func parseSince(v string, now time.Time) (time.Time, error) {
	if v == "" {
		return now.Add(-defaultTelemetryWindow), nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return now.Add(-d), nil
	}

	return time.Parse(time.RFC3339, v)
}
