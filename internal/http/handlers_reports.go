package http

import (
	"bytes"
	"errors"
	"net/http"

	"fintrack/internal/log"
	"fintrack/internal/report"
)

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	pd := pageData{Title: "Reports", Nav: "reports"}
	view, err := s.svc.Loader.Reports(r.Context(), identity(r))
	if err != nil {
		pd.Banner = errorBanner("Could not load your reports. Please try again.")
	}
	pd.Data = view
	s.renderPage(w, r, http.StatusOK, "reports", pd)
}

// handleExportCSV downloads the monthly view. Nothing is written when the
// data cannot be loaded, so a partial file never reaches the user.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Loader.Reports(r.Context(), identity(r))
	if err != nil {
		ErrorResponse(http.StatusServiceUnavailable, "Could not export your report. Please try again.").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, view.Summary.Months); err != nil {
		s.logger.ErrorContext(r.Context(), "CSV export failed",
			log.FieldUserID, identity(r).UserID,
			log.FieldError, err.Error())
		InternalServerError("Could not export your report.").Write(w)
		return
	}
	NewHTMXResponse().
		Header("Content-Type", "text/csv; charset=utf-8").
		Header("Content-Disposition", `attachment; filename="`+report.ExportFilename(view.Now)+`"`).
		Body(buf.Bytes()).
		Write(w)
}

func (s *Server) handleMonthlyChart(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Loader.Reports(r.Context(), identity(r))
	if err != nil {
		http.Error(w, "report unavailable", http.StatusServiceUnavailable)
		return
	}
	s.writeChart(w, r, func(buf *bytes.Buffer) error {
		return report.RenderMonthlyChart(buf, view.Summary.Months)
	})
}

func (s *Server) handleCategoryChart(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Loader.Reports(r.Context(), identity(r))
	if err != nil {
		http.Error(w, "report unavailable", http.StatusServiceUnavailable)
		return
	}
	s.writeChart(w, r, func(buf *bytes.Buffer) error {
		return report.RenderCategoryChart(buf, view.Summary.Categories)
	})
}

func (s *Server) writeChart(w http.ResponseWriter, r *http.Request, render func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		if errors.Is(err, report.ErrNoData) {
			http.Error(w, "no data", http.StatusNotFound)
			return
		}
		s.logger.ErrorContext(r.Context(), "Chart rendering failed", log.FieldError, err.Error())
		http.Error(w, "chart unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
