package http

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/store"
)

type walletsView struct {
	Wallets  []core.Wallet
	Total    decimal.Decimal
	Currency string
	Form     walletForm
}

// walletList feeds the wallet-list partial.
type walletList struct {
	Wallets []core.Wallet
	Banner  *banner
	// Form, when set, resets the editor to "new wallet" mode.
	Form *walletForm
}

type walletConfirm struct {
	Wallet core.Wallet
	Banner *banner
}

func (s *Server) handleWallets(w http.ResponseWriter, r *http.Request) {
	pd := pageData{Title: "Wallets", Nav: "wallets"}
	wallets, err := s.svc.Wallets.List(r.Context(), identity(r))
	if err != nil {
		pd.Banner = errorBanner("Could not load your wallets. Please try again.")
	}
	view := walletsView{
		Wallets:  wallets,
		Total:    decimal.Zero,
		Currency: s.currency,
		Form:     newWalletForm(s.currency),
	}
	for _, wl := range wallets {
		view.Total = view.Total.Add(wl.Balance)
	}
	if len(wallets) > 0 {
		view.Currency = wallets[0].Currency
	}
	pd.Data = view
	s.renderPage(w, r, http.StatusOK, "wallets", pd)
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	s.saveWallet(w, r, "")
}

func (s *Server) handleUpdateWallet(w http.ResponseWriter, r *http.Request) {
	s.saveWallet(w, r, r.PathValue("id"))
}

func (s *Server) saveWallet(w http.ResponseWriter, r *http.Request, id string) {
	p := ParseBody(w, r)
	if p == nil {
		return
	}
	form := walletFormFrom(p, id)
	wallet, err := form.wallet()

	var res services.Reloaded[[]core.Wallet]
	action := "created"
	if err == nil {
		if form.IsEdit() {
			action = "updated"
			res, err = s.svc.Wallets.Update(r.Context(), identity(r), wallet)
		} else {
			res, err = s.svc.Wallets.Create(r.Context(), identity(r), wallet)
		}
	}
	if err != nil {
		form.Error = userMessage(err, "Could not save the wallet. Please try again.")
		b := NewHTMXResponse().
			Status(mutationStatus(err)).
			Retarget("#wallet-form").
			Reswap("outerHTML").
			TriggerErrorNotification(form.Error)
		s.writePartial(w, r, b, "wallet-form", form)
		return
	}

	b := NewHTMXResponse().
		TriggerWalletsChanged(action).
		TriggerFormReset().
		TriggerSuccessNotification("Wallet " + action + ".")
	if res.ReloadErr != nil {
		b.Reswap("none").TriggerWarningNotification("Wallet " + action + ", but the list could not be refreshed.").Write(w)
		return
	}
	fresh := newWalletForm(s.currency)
	fresh.OOB = true
	s.writePartial(w, r, b, "wallet-list", walletList{Wallets: res.Items, Form: &fresh})
}

func (s *Server) handleEditWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := s.svc.Wallets.Get(r.Context(), identity(r), r.PathValue("id"))
	if err != nil {
		s.writeLookupError(w, err, "wallet")
		return
	}
	s.writePartial(w, r, NewHTMXResponse(), "wallet-form", walletFormOf(wallet))
}

func (s *Server) handleConfirmDeleteWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := s.svc.Wallets.Get(r.Context(), identity(r), r.PathValue("id"))
	if err != nil {
		s.writeLookupError(w, err, "wallet")
		return
	}
	s.writePartial(w, r, NewHTMXResponse(), "wallet-confirm", walletConfirm{Wallet: wallet})
}

func (s *Server) handleDeleteWallet(w http.ResponseWriter, r *http.Request) {
	walletID := r.PathValue("id")
	res, err := s.svc.Wallets.Delete(r.Context(), identity(r), walletID)
	if err != nil {
		msg := userMessage(err, "Could not delete the wallet. Please try again.")
		b := NewHTMXResponse().
			Status(mutationStatus(err)).
			Retarget("#dialog").
			Reswap("innerHTML").
			TriggerErrorNotification(msg)
		s.writePartial(w, r, b, "wallet-confirm", walletConfirm{Wallet: core.Wallet{ID: walletID}, Banner: errorBanner(msg)})
		return
	}

	b := NewHTMXResponse().
		TriggerWalletsChanged("deleted").
		TriggerDialogClose().
		TriggerSuccessNotification("Wallet deleted.")
	if res.ReloadErr != nil {
		b.Reswap("none").TriggerWarningNotification("Wallet deleted, but the list could not be refreshed.").Write(w)
		return
	}
	s.writePartial(w, r, b, "wallet-list", walletList{Wallets: res.Items})
}

// mutationStatus maps a failed mutation to a response status.
func mutationStatus(err error) int {
	switch {
	case services.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrUnauthenticated):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func (s *Server) writeLookupError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		NotFoundError("That " + what + " no longer exists.").Write(w)
		return
	}
	InternalServerError("Could not load the " + what + ". Please try again.").Write(w)
}
