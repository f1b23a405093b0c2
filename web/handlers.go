package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/najoast/snakepit/bootstrap"
	"github.com/najoast/snakepit/protocol"
)

const directionHelp = "Direction should be a number from 0 to 3.\n0=North, 1=East, 2=South, 3=West"

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("snakepit match server\n"))
}

// handleHealth answers 200 while every service is healthy and 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  bootstrap.HealthHealthy,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		"matches": s.svc.Directory().Len(),
	}

	src := s.healthSource()
	if src == nil {
		s.writeJSON(w, http.StatusOK, body)
		return
	}

	services, err := src.Health(r.Context())
	if err != nil {
		body["status"] = bootstrap.HealthUnhealthy
		body["error"] = err.Error()
		s.writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}

	overall := bootstrap.Overall(services)
	body["status"] = overall
	body["services"] = services
	code := http.StatusOK
	if overall != bootstrap.HealthHealthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, body)
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.ListMatches(r.Context(), &protocol.ListMatchesRequest{})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOK(w, resp.Matches)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	height, err1 := pathUint(r, "height")
	width, err2 := pathUint(r, "width")
	tick, err3 := pathUint(r, "tick")
	if err := errors.Join(err1, err2, err3); err != nil {
		s.writeError(w, status.Error(codes.InvalidArgument, err.Error()))
		return
	}

	resp, err := s.svc.CreateMatch(r.Context(), &protocol.CreateMatchRequest{
		Width:            width,
		Height:           height,
		TickPeriodMillis: int64(tick),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOK(w, resp.MatchID)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.JoinMatch(r.Context(), &protocol.JoinMatchRequest{MatchID: chi.URLParam(r, "match")})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOK(w, resp)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	_, err := s.svc.StartMatch(r.Context(), &protocol.StartMatchRequest{
		MatchID:  chi.URLParam(r, "match"),
		PlayerID: chi.URLParam(r, "player"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOK(w, "Done")
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	dir, err := strconv.Atoi(chi.URLParam(r, "direction"))
	if err != nil || dir < 0 || dir > 3 {
		s.writeError(w, status.Error(codes.InvalidArgument, directionHelp))
		return
	}

	resp, err := s.svc.SubmitDirection(r.Context(), &protocol.SubmitDirectionRequest{
		MatchID:   chi.URLParam(r, "match"),
		PlayerID:  chi.URLParam(r, "player"),
		Direction: dir,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOK(w, resp.Snapshot)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.GetStatus(r.Context(), &protocol.GetStatusRequest{
		MatchID:  chi.URLParam(r, "match"),
		PlayerID: chi.URLParam(r, "player"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOK(w, resp.Snapshot)
}

func pathUint(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseUint(raw, 10, 31)
	if err != nil {
		return 0, errors.New(name + " must be a non-negative number, got " + strconv.Quote(raw))
	}
	return int(v), nil
}

// httpStatus maps a service error to an HTTP status code.
func httpStatus(err error) int {
	switch status.Code(err) {
	case codes.OK:
		return http.StatusOK
	case codes.NotFound:
		return http.StatusNotFound
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	if st, ok := status.FromError(err); ok {
		return st.Message()
	}
	return err.Error()
}
