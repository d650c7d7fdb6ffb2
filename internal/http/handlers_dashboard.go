package http

import (
	"errors"
	"fmt"
	"net/http"

	"fintrack/internal/assistant"
	"fintrack/internal/core"
	"fintrack/internal/services"
)

// chatHistoryLimit is how many past exchanges the dashboard shows.
const chatHistoryLimit = 20

type dashboardView struct {
	services.DashboardView
	Chat []core.ChatMessage
	Tips []string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := identity(r)
	pd := pageData{Title: "Dashboard", Nav: "dashboard"}

	view, err := s.svc.Loader.Dashboard(ctx, id)
	if err != nil {
		pd.Banner = errorBanner("Could not load your dashboard. Please try again.")
	}
	pd.Data = dashboardView{
		DashboardView: view,
		Chat:          s.svc.Assistant.History(ctx, id, chatHistoryLimit),
		Tips:          assistant.Tips(),
	}
	s.renderPage(w, r, http.StatusOK, "dashboard", pd)
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	p := ParseBody(w, r)
	if p == nil {
		return
	}
	msg, err := s.svc.Assistant.Ask(r.Context(), identity(r), p.Get("message"))
	if errors.Is(err, assistant.ErrEmptyMessage) {
		UnprocessableEntityError("Type a question first.").Write(w)
		return
	}
	if errors.Is(err, assistant.ErrMessageTooLong) {
		UnprocessableEntityError(fmt.Sprintf("Keep questions under %d characters.", assistant.MaxMessageLength)).Write(w)
		return
	}
	if err != nil {
		InternalServerError("The assistant is unavailable right now.").Write(w)
		return
	}
	s.writePartial(w, r, NewHTMXResponse().TriggerFormReset(), "chat-exchange", msg)
}
