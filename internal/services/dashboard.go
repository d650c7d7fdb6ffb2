package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/report"
	"fintrack/internal/store"
)

// RecentLimit is how many transactions the dashboard lists.
const RecentLimit = 5

type DashboardView struct {
	Wallets      []core.Wallet
	Recent       []core.Transaction
	Summary      report.Summary
	TotalBalance decimal.Decimal
	Currency     string
}

// Loader builds the dashboard and reports views. Aggregates are recomputed
// from a fresh fetch every time.
type Loader struct {
	wallets  store.WalletStore
	txs      store.TransactionStore
	currency string
	now      func() time.Time
	logger   *log.Logger
	reports  *log.Logger
}

func NewLoader(wallets store.WalletStore, txs store.TransactionStore, currency string, logger *log.Logger) *Loader {
	return &Loader{
		wallets:  wallets,
		txs:      txs,
		currency: currency,
		now:      time.Now,
		logger:   logger.WithComponent(log.ComponentDashboard),
		reports:  logger.WithComponent(log.ComponentReport),
	}
}

// Dashboard runs the wallet, recent and full-history queries concurrently.
// If any of them fails the error is logged and the zero view is returned
// alongside it.
func (l *Loader) Dashboard(ctx context.Context, id core.Identity) (DashboardView, error) {
	now := l.now()
	var (
		wallets []core.Wallet
		recent  []core.Transaction
		all     []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		wallets, err = l.wallets.ListWallets(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		recent, err = l.txs.ListTransactions(gctx, id, store.TransactionQuery{Limit: RecentLimit})
		return err
	})
	g.Go(func() (err error) {
		all, err = l.txs.ListTransactions(gctx, id, store.TransactionQuery{Ascending: true})
		return err
	})
	if err := g.Wait(); err != nil {
		l.logger.ErrorContext(ctx, "Failed to load dashboard",
			log.FieldUserID, id.UserID,
			log.FieldOperation, log.OpRead,
			log.FieldError, err.Error())
		return l.emptyDashboard(now), err
	}

	view := DashboardView{
		Wallets:      wallets,
		Recent:       recent,
		Summary:      report.Build(now, all),
		TotalBalance: decimal.Zero,
		Currency:     l.displayCurrency(wallets),
	}
	for _, w := range wallets {
		view.TotalBalance = view.TotalBalance.Add(w.Balance)
	}
	return view, nil
}

func (l *Loader) emptyDashboard(now time.Time) DashboardView {
	return DashboardView{
		Summary:      report.EmptySummary(now),
		TotalBalance: decimal.Zero,
		Currency:     l.currency,
	}
}

type ReportView struct {
	Summary  report.Summary
	Currency string
	// MaxMonth scales the monthly bars.
	MaxMonth decimal.Decimal
	Now      time.Time
}

// Reports aggregates the user's whole history. Failures degrade to the zero
// view and are returned for the banner.
func (l *Loader) Reports(ctx context.Context, id core.Identity) (ReportView, error) {
	now := l.now()
	var (
		wallets []core.Wallet
		all     []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		wallets, err = l.wallets.ListWallets(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		all, err = l.txs.ListTransactions(gctx, id, store.TransactionQuery{Ascending: true})
		return err
	})
	if err := g.Wait(); err != nil {
		l.reports.ErrorContext(ctx, "Failed to load reports",
			log.FieldUserID, id.UserID,
			log.FieldError, err.Error())
		s := report.EmptySummary(now)
		return ReportView{Summary: s, Currency: l.currency, MaxMonth: decimal.Zero, Now: now}, err
	}
	s := report.Build(now, all)
	return ReportView{
		Summary:  s,
		Currency: l.displayCurrency(wallets),
		MaxMonth: report.MaxMonthValue(s.Months),
		Now:      now,
	}, nil
}

func (l *Loader) displayCurrency(wallets []core.Wallet) string {
	if len(wallets) > 0 && wallets[0].Currency != "" {
		return wallets[0].Currency
	}
	return l.currency
}
