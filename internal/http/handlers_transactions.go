package http

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

type transactionsView struct {
	Transactions []core.Transaction
	Form         transactionForm
}

type transactionList struct {
	Transactions []core.Transaction
	Banner       *banner
	Form         *transactionForm
}

type transactionConfirm struct {
	Transaction core.Transaction
	Banner      *banner
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := identity(r)
	pd := pageData{Title: "Transactions", Nav: "transactions"}

	var txs []core.Transaction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		txs, err = s.svc.Transactions.List(gctx, id)
		return err
	})
	var form transactionForm
	g.Go(func() error {
		form = s.formChoices(gctx, id, newTransactionForm(s.now()))
		return nil
	})
	if err := g.Wait(); err != nil {
		pd.Banner = errorBanner("Could not load your transactions. Please try again.")
	}
	pd.Data = transactionsView{Transactions: txs, Form: form}
	s.renderPage(w, r, http.StatusOK, "transactions", pd)
}

// formChoices fills the wallet and category selects. A failed lookup leaves
// the select empty; the form still renders.
func (s *Server) formChoices(ctx context.Context, id core.Identity, f transactionForm) transactionForm {
	var (
		wallets []core.Wallet
		cats    []core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		wallets, err = s.svc.Wallets.List(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		cats, err = s.svc.Transactions.Categories(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "Failed to load form choices",
			log.FieldUserID, id.UserID,
			log.FieldError, err.Error())
	}
	return f.withChoices(wallets, cats)
}

func (s *Server) handleCategoryOptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := transactionForm{
		Type:       sanitizeInput(q.Get("type")),
		CategoryID: sanitizeInput(q.Get("category_id")),
	}
	if !core.TransactionType(f.Type).Valid() {
		f.Type = string(core.Expense)
	}
	cats, err := s.svc.Transactions.Categories(r.Context(), identity(r))
	if err != nil {
		s.logger.WarnContext(r.Context(), "Failed to load categories",
			log.FieldUserID, identity(r).UserID,
			log.FieldError, err.Error())
	}
	s.writePartial(w, r, NewHTMXResponse(), "category-select", f.withChoices(nil, cats))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	s.saveTransaction(w, r, "")
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	s.saveTransaction(w, r, r.PathValue("id"))
}

func (s *Server) saveTransaction(w http.ResponseWriter, r *http.Request, txID string) {
	p := ParseBody(w, r)
	if p == nil {
		return
	}
	ctx := r.Context()
	id := identity(r)
	form := transactionFormFrom(p, txID)
	tx, err := form.transaction()

	var res services.Reloaded[[]core.Transaction]
	action := "created"
	if err == nil {
		if form.IsEdit() {
			action = "updated"
			res, err = s.svc.Transactions.Update(ctx, id, tx)
		} else {
			res, err = s.svc.Transactions.Create(ctx, id, tx)
		}
	}
	if err != nil {
		form = s.formChoices(ctx, id, form)
		form.Error = userMessage(err, "Could not save the transaction. Please try again.")
		b := NewHTMXResponse().
			Status(mutationStatus(err)).
			Retarget("#transaction-form").
			Reswap("outerHTML").
			TriggerErrorNotification(form.Error)
		s.writePartial(w, r, b, "transaction-form", form)
		return
	}

	b := NewHTMXResponse().
		TriggerTransactionsChanged(action).
		TriggerFormReset().
		TriggerSuccessNotification("Transaction " + action + ".")
	if res.ReloadErr != nil {
		b.Reswap("none").TriggerWarningNotification("Transaction " + action + ", but the list could not be refreshed.").Write(w)
		return
	}
	fresh := s.formChoices(ctx, id, newTransactionForm(s.now()))
	fresh.OOB = true
	s.writePartial(w, r, b, "transaction-list", transactionList{Transactions: res.Items, Form: &fresh})
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.svc.Transactions.Get(r.Context(), identity(r), r.PathValue("id"))
	if err != nil {
		s.writeLookupError(w, err, "transaction")
		return
	}
	form := s.formChoices(r.Context(), identity(r), transactionFormOf(tx))
	s.writePartial(w, r, NewHTMXResponse(), "transaction-form", form)
}

func (s *Server) handleConfirmDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.svc.Transactions.Get(r.Context(), identity(r), r.PathValue("id"))
	if err != nil {
		s.writeLookupError(w, err, "transaction")
		return
	}
	s.writePartial(w, r, NewHTMXResponse(), "transaction-confirm", transactionConfirm{Transaction: tx})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	txID := r.PathValue("id")
	res, err := s.svc.Transactions.Delete(r.Context(), identity(r), txID)
	if err != nil {
		msg := userMessage(err, "Could not delete the transaction. Please try again.")
		b := NewHTMXResponse().
			Status(mutationStatus(err)).
			Retarget("#dialog").
			Reswap("innerHTML").
			TriggerErrorNotification(msg)
		s.writePartial(w, r, b, "transaction-confirm", transactionConfirm{
			Transaction: core.Transaction{ID: txID},
			Banner:      errorBanner(msg),
		})
		return
	}

	b := NewHTMXResponse().
		TriggerTransactionsChanged("deleted").
		TriggerDialogClose().
		TriggerSuccessNotification("Transaction deleted.")
	if res.ReloadErr != nil {
		b.Reswap("none").TriggerWarningNotification("Transaction deleted, but the list could not be refreshed.").Write(w)
		return
	}
	s.writePartial(w, r, b, "transaction-list", transactionList{Transactions: res.Items})
}
