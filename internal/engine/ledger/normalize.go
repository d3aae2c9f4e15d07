// Package ledger turns raw ledger records into normalized transactions.
package ledger

import (
	"fmt"

	"github.com/boddenberg/finstatements-go/internal/domain"
)

// Normalize maps every raw record onto one or more normalized transactions.
// Records missing a required classification hint come out as
// domain.ClassUnclassified; aggregation skips and counts them.
//
// Output order follows input order; wallet legs keep their leg order.
func Normalize(records []domain.ExternalRecord, settings domain.CompanySettings) []domain.NormalizedTransaction {
	n := normalizer{functional: settings.FunctionalCurrency}
	out := make([]domain.NormalizedTransaction, 0, len(records))
	for _, rec := range records {
		switch r := rec.(type) {
		case domain.ManualEntry:
			out = append(out, n.manualEntry(r))
		case domain.InvoiceRevenueEntry:
			out = append(out, n.invoice(r))
		case domain.BankTransaction:
			out = append(out, n.bank(r))
		case domain.WalletTransaction:
			out = append(out, n.wallet(r)...)
		case domain.ManualAdjustment:
			out = append(out, n.adjustment(r))
		default:
			panic(fmt.Sprintf("ledger: unhandled record kind %T", rec))
		}
	}
	return out
}

// Unclassified returns the transactions that could not be classified.
func Unclassified(txs []domain.NormalizedTransaction) []domain.NormalizedTransaction {
	var out []domain.NormalizedTransaction
	for _, t := range txs {
		if t.Classification == domain.ClassUnclassified {
			out = append(out, t)
		}
	}
	return out
}

type normalizer struct {
	functional string
}

func (n normalizer) currency(c string) string {
	if c == "" {
		return n.functional
	}
	return c
}

// activity resolves an optional activity hint. An empty hint means operating,
// an unknown one is reported as not ok.
func activity(hint domain.Activity) (domain.Activity, bool) {
	if hint == "" {
		return domain.ActivityOperating, true
	}
	return hint, hint.Valid()
}

func (n normalizer) manualEntry(e domain.ManualEntry) domain.NormalizedTransaction {
	cur := n.currency(e.Currency)
	t := domain.NormalizedTransaction{
		ID:          e.ID,
		CompanyID:   e.CompanyID,
		Date:        e.Date,
		Amount:      e.Amount,
		Currency:    cur,
		SourceKind:  domain.SourceManualEntry,
		SourceID:    e.ID,
		Account:     domain.AccountRef{ID: accountName(e), Currency: cur},
		Category:    e.Category,
		Subcategory: e.Subcategory,
		Current:     e.Current,
		NonCash:     e.NonCash,
	}

	switch e.Type {
	case domain.EntryAsset:
		t.Classification = domain.ClassAsset
		return t
	case domain.EntryLiability:
		t.Classification = domain.ClassLiability
		return t
	case domain.EntryEquity:
		t.Classification = domain.ClassEquity
		return t
	case domain.EntryRevenue, domain.EntryExpense:
	default:
		t.Classification = domain.ClassUnclassified
		return t
	}

	act, ok := activity(e.Activity)
	if e.NonCash {
		act, ok = domain.ActivityOperating, true
	}
	if !ok {
		t.Classification = domain.ClassUnclassified
		return t
	}

	amount := e.Amount.Abs()
	if e.Type == domain.EntryRevenue {
		t.Amount = amount
		t.Revenue = amount
		t.PLSection = domain.PLRevenue
		if e.Section == domain.SectionOther {
			t.PLSection = domain.PLOtherIncome
		}
	} else {
		t.Amount = amount.Neg()
		switch e.Section {
		case domain.SectionCOGS:
			t.PLSection = domain.PLCOGS
			t.COGS = amount
		case domain.SectionOther:
			t.PLSection = domain.PLOtherExpense
			t.Expense = amount
		case domain.SectionTax:
			t.PLSection = domain.PLTax
			t.Expense = amount
		default:
			t.PLSection = domain.PLOperating
			t.Expense = amount
		}
	}
	t.Classification = act.Classify(t.Amount)
	return t
}

func accountName(e domain.ManualEntry) string {
	if e.Account != "" {
		return e.Account
	}
	return e.Category
}

// invoice nets gross revenue against cogs and linked payments for cash, and
// keeps gross and cogs for profit and loss.
func (n normalizer) invoice(e domain.InvoiceRevenueEntry) domain.NormalizedTransaction {
	cur := n.currency(e.Currency)
	linked := e.LinkedTotal()
	gross := e.GrossAmount.Abs()
	cogs := e.COGS.Abs()
	net := gross.Sub(cogs).Sub(linked)

	category := e.Category
	if category == "" {
		category = "Sales"
	}
	return domain.NormalizedTransaction{
		ID:             e.ID,
		CompanyID:      e.CompanyID,
		Date:           e.Date,
		Amount:         net,
		Currency:       cur,
		Classification: domain.ActivityOperating.Classify(net),
		SourceKind:     domain.SourceInvoiceRevenue,
		SourceID:       e.InvoiceID,
		Account:        domain.AccountRef{ID: e.InvoiceID, Currency: cur},
		Category:       category,
		PLSection:      domain.PLRevenue,
		Revenue:        gross,
		COGS:           cogs,
		LinkedExpenses: linked,
		Received:       e.AmountReceived,
	}
}

func (n normalizer) bank(b domain.BankTransaction) domain.NormalizedTransaction {
	cur := n.currency(b.Currency)
	net := b.IncomingAmount.Abs().Sub(b.OutgoingAmount.Abs())
	t := domain.NormalizedTransaction{
		ID:         b.ID,
		CompanyID:  b.CompanyID,
		Date:       b.Date,
		Amount:     net,
		Currency:   cur,
		SourceKind: domain.SourceBankTransaction,
		SourceID:   b.ID,
		Account:    domain.AccountRef{ID: b.AccountID, Currency: cur},
		Category:   b.Category,
	}
	act, ok := activity(b.Activity)
	if !ok {
		t.Classification = domain.ClassUnclassified
		return t
	}
	t.Classification = act.Classify(net)
	return t
}

// wallet emits one transaction per currency leg. Each leg is its own account.
func (n normalizer) wallet(w domain.WalletTransaction) []domain.NormalizedTransaction {
	act, ok := activity(w.Activity)
	out := make([]domain.NormalizedTransaction, 0, len(w.Legs))
	for _, leg := range w.Legs {
		t := domain.NormalizedTransaction{
			ID:         w.ID + "/" + leg.Currency,
			CompanyID:  w.CompanyID,
			Date:       w.Date,
			Amount:     leg.Amount,
			Currency:   leg.Currency,
			SourceKind: domain.SourceWalletTransaction,
			SourceID:   w.ID,
			Account:    domain.AccountRef{ID: w.WalletID, Currency: leg.Currency},
			Category:   w.Category,
		}
		switch {
		case !ok || leg.Currency == "":
			t.Classification = domain.ClassUnclassified
		default:
			t.Classification = act.Classify(leg.Amount)
		}
		out = append(out, t)
	}
	return out
}

func (n normalizer) adjustment(a domain.ManualAdjustment) domain.NormalizedTransaction {
	cur := n.currency(a.Currency)
	t := domain.NormalizedTransaction{
		ID:         a.ID,
		CompanyID:  a.CompanyID,
		Date:       a.Date,
		Amount:     a.Amount,
		Currency:   cur,
		SourceKind: domain.SourceManualAdjustment,
		SourceID:   a.ID,
		Account:    domain.AccountRef{ID: "adjustments", Currency: cur},
		Category:   a.Description,
	}
	if !a.Activity.Valid() {
		t.Classification = domain.ClassUnclassified
		return t
	}
	t.Classification = a.Activity.Classify(a.Amount)
	return t
}
