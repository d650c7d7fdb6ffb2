package http

import (
	"net/http"
)

type settingsView struct {
	Email    string
	Currency string
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, "settings", pageData{
		Title: "Settings",
		Nav:   "settings",
		Data:  settingsView{Email: identity(r).Email, Currency: s.currency},
	})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	p := ParseBody(w, r)
	if p == nil {
		return
	}
	err := s.svc.Accounts.ChangePassword(r.Context(), identity(r), p.GetRaw("password"), p.GetRaw("confirm"))
	if err != nil {
		msg := userMessage(err, "Could not update your password. Please try again.")
		b := NewHTMXResponse().Status(mutationStatus(err)).TriggerErrorNotification(msg)
		s.writePartial(w, r, b, "banner", errorBanner(msg))
		return
	}
	b := NewHTMXResponse().TriggerFormReset().TriggerSuccessNotification("Password updated.")
	s.writePartial(w, r, b, "banner", successBanner("Your password has been updated."))
}
