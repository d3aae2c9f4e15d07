package service

import (
	"context"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/engine/aggregate"
	"github.com/boddenberg/finstatements-go/internal/engine/compare"
	"github.com/boddenberg/finstatements-go/internal/engine/statement"
	"github.com/boddenberg/finstatements-go/internal/engine/validation"
)

// BalanceSheet generates balance sheets as of the end of the requested
// period, one per presentation currency.
func (s *StatementService) BalanceSheet(ctx context.Context, req GenerateRequest) ([]domain.StatementResult[*domain.BalanceSheetData], error) {
	return generate(ctx, s, domain.KindBalanceSheet, req, func(_ context.Context, in *buildInput) ([]domain.StatementResult[*domain.BalanceSheetData], error) {
		opts := statement.OptionsFrom(in.settings, "")
		vopts := validation.OptionsFrom(in.settings.IFRS)

		var priorBuckets *aggregate.Buckets
		if in.prior != nil {
			priorBuckets = aggregate.AsOf(in.txs, *in.prior).WithCash(in.balances)
		}

		views := in.views(aggregate.AsOf(in.txs, in.period).WithCash(in.balances))
		out := make([]domain.StatementResult[*domain.BalanceSheetData], 0, len(views))
		for _, v := range views {
			cur := v.Currencies()[0]
			bs := statement.BalanceSheet(v, cur, opts)
			if priorBuckets != nil {
				compare.BalanceSheets(bs, statement.BalanceSheet(in.priorView(priorBuckets, cur), cur, opts))
			}
			out = append(out, newResult(s, req.CompanyID, in, cur, bs, validation.Validate(bs, vopts)))
		}
		return out, nil
	})
}

// CashFlow generates statements of cash flows for the requested period.
// An empty method defaults to the direct method.
func (s *StatementService) CashFlow(ctx context.Context, req GenerateRequest) ([]domain.StatementResult[*domain.CashFlowData], error) {
	return generate(ctx, s, domain.KindCashFlow, req, func(_ context.Context, in *buildInput) ([]domain.StatementResult[*domain.CashFlowData], error) {
		opts := statement.OptionsFrom(in.settings, req.Method)
		vopts := validation.OptionsFrom(in.settings.IFRS)

		var priorBuckets *aggregate.Buckets
		if in.prior != nil {
			priorBuckets = aggregate.Aggregate(in.txs, *in.prior).WithCash(in.balances)
		}

		views := in.views(aggregate.Aggregate(in.txs, in.period).WithCash(in.balances))
		out := make([]domain.StatementResult[*domain.CashFlowData], 0, len(views))
		for _, v := range views {
			cur := v.Currencies()[0]
			cf, err := statement.CashFlow(v, cur, opts)
			if err != nil {
				return nil, err
			}
			if priorBuckets != nil {
				prior, err := statement.CashFlow(in.priorView(priorBuckets, cur), cur, opts)
				if err != nil {
					return nil, err
				}
				compare.CashFlows(cf, prior)
			}
			out = append(out, newResult(s, req.CompanyID, in, cur, cf, validation.Validate(cf, vopts)))
		}
		return out, nil
	})
}

// ProfitAndLoss generates profit and loss statements for the requested period.
func (s *StatementService) ProfitAndLoss(ctx context.Context, req GenerateRequest) ([]domain.StatementResult[*domain.PLData], error) {
	return generate(ctx, s, domain.KindProfitLoss, req, func(_ context.Context, in *buildInput) ([]domain.StatementResult[*domain.PLData], error) {
		vopts := validation.OptionsFrom(in.settings.IFRS)

		var priorBuckets *aggregate.Buckets
		if in.prior != nil {
			priorBuckets = aggregate.Aggregate(in.txs, *in.prior)
		}

		views := in.views(aggregate.Aggregate(in.txs, in.period))
		out := make([]domain.StatementResult[*domain.PLData], 0, len(views))
		for _, v := range views {
			cur := v.Currencies()[0]
			pl := statement.ProfitAndLoss(v, cur)
			if priorBuckets != nil {
				compare.ProfitAndLoss(pl, statement.ProfitAndLoss(in.priorView(priorBuckets, cur), cur))
			}
			out = append(out, newResult(s, req.CompanyID, in, cur, pl, validation.Validate(pl, vopts)))
		}
		return out, nil
	})
}
