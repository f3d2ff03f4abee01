package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/snow-removal-info-service/internal/domain"
)

const maxBodyBytes = 64 << 10

type ipResponse struct {
	IP string `json:"ip"`
}

type areasResponse struct {
	Areas []string `json:"areas"`
}

type reportsResponse struct {
	Reports []domain.SnowReport `json:"reports"`
}

type createReportRequest struct {
	Area      string `json:"area"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (s *Server) handleIP(w http.ResponseWriter, r *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, ipResponse{IP: s.resolution(r).IP})
}

func (s *Server) handleAreas(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, areasResponse{Areas: domain.Districts()})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ReportFilter{Area: q.Get("area")}

	if filter.Area != "" && !domain.IsDistrict(filter.Area) {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown district", Field: "area"})
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer", Field: "limit"})
			return
		}
		filter.Limit = n
	}

	reports, err := s.opts.Reports.List(r.Context(), filter)
	if err != nil {
		s.internalError(w, r, "list reports failed", err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, reportsResponse{Reports: reports})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "id must be a positive integer", Field: "id"})
		return
	}

	report, err := s.opts.Reports.Get(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		sharedobs.WriteJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		s.internalError(w, r, "get report failed", err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, report)
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	report, err := domain.NewReport(req.Area, req.StartTime, req.EndTime)
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Field: verr.Field})
		return
	}
	if err != nil {
		s.internalError(w, r, "build report failed", err)
		return
	}

	report, err = s.opts.Reports.Create(r.Context(), report)
	if err != nil {
		s.internalError(w, r, "create report failed", err)
		return
	}

	s.opts.Metrics.ReportsCreated.Inc()
	s.logger.InfoContext(r.Context(), "snow report created",
		"id", report.ID,
		"area", report.Area,
		"client_ip", s.resolution(r).IP,
	)
	if s.opts.OnReportCreated != nil {
		s.opts.OnReportCreated(report)
	}

	w.Header().Set("Location", "/api/reports/"+strconv.FormatInt(report.ID, 10))
	sharedobs.WriteJSON(w, http.StatusCreated, report)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.ErrorContext(r.Context(), msg, "error", err, "path", r.URL.Path)
	sharedobs.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}
