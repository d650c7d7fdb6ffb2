package http

import (
	"errors"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/store"
)

const resetSentMessage = "If an account exists for that address, a password reset link is on its way."

// authForm is echoed back into the auth pages; passwords never are.
type authForm struct {
	Email string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, "login", pageData{Title: "Sign in", Data: authForm{}})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := ParseBody(w, r)
	if p == nil {
		return
	}
	form := authForm{Email: p.Get("email")}

	id, err := s.svc.Accounts.SignIn(r.Context(), form.Email, p.GetRaw("password"))
	if err != nil {
		status := http.StatusUnauthorized
		if services.IsValidation(err) {
			status = http.StatusUnprocessableEntity
		} else if !errors.Is(err, store.ErrInvalidCredentials) {
			status = http.StatusServiceUnavailable
		}
		s.renderPage(w, r, status, "login", pageData{
			Title:  "Sign in",
			Banner: errorBanner(userMessage(err, "Sign-in is unavailable right now. Please try again.")),
			Data:   form,
		})
		return
	}
	s.startSession(w, r, id)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, "register", pageData{Title: "Create account", Data: authForm{}})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p := ParseBody(w, r)
	if p == nil {
		return
	}
	form := authForm{Email: p.Get("email")}

	id, err := s.svc.Accounts.SignUp(r.Context(), form.Email, p.GetRaw("password"), p.GetRaw("confirm"))
	switch {
	case errors.Is(err, store.ErrConfirmationPending):
		s.renderPage(w, r, http.StatusOK, "login", pageData{
			Title:  "Sign in",
			Banner: successBanner("Account created. Check your email to confirm it, then sign in."),
			Data:   form,
		})
		return
	case err != nil:
		status := http.StatusUnprocessableEntity
		if errors.Is(err, store.ErrEmailTaken) {
			status = http.StatusConflict
		} else if !services.IsValidation(err) {
			status = http.StatusServiceUnavailable
		}
		s.renderPage(w, r, status, "register", pageData{
			Title:  "Create account",
			Banner: errorBanner(userMessage(err, "Registration is unavailable right now. Please try again.")),
			Data:   form,
		})
		return
	}
	s.startSession(w, r, id)
}

func (s *Server) handleForgotPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, "forgot", pageData{Title: "Reset password", Data: authForm{}})
}

// handleForgot answers with the same message whether or not the address is
// registered.
func (s *Server) handleForgot(w http.ResponseWriter, r *http.Request) {
	p := ParseBody(w, r)
	if p == nil {
		return
	}
	form := authForm{Email: p.Get("email")}
	if err := s.svc.Accounts.RequestPasswordReset(r.Context(), form.Email); err != nil {
		s.renderPage(w, r, http.StatusUnprocessableEntity, "forgot", pageData{
			Title:  "Reset password",
			Banner: errorBanner(userMessage(err, "Please enter a valid email address.")),
			Data:   form,
		})
		return
	}
	s.renderPage(w, r, http.StatusOK, "forgot", pageData{
		Title:  "Reset password",
		Banner: successBanner(resetSentMessage),
		Data:   authForm{},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.svc.Accounts.SignOut(r.Context(), identity(r))
	s.sessions.ClearCookie(w)
	redirect(w, r, "/login")
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, id core.Identity) {
	if err := s.sessions.SetCookie(w, id); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to issue session",
			log.FieldUserID, id.UserID,
			log.FieldError, err.Error())
		InternalServerError("Could not start your session.").Write(w)
		return
	}
	redirect(w, r, "/")
}
