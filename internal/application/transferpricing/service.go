// Package transferpricing runs transfer-pricing computations: it pairs
// records with their rules, iterates adjustments until they settle and
// projects the fiscal cascade of every taxpayer group.
package transferpricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tpa/backend/internal/domain/currency"
	"github.com/tpa/backend/internal/domain/shared"
	"github.com/tpa/backend/internal/domain/shared/strategy"
	tp "github.com/tpa/backend/internal/domain/transferpricing"
	"github.com/tpa/backend/internal/infrastructure/logger"
	"github.com/tpa/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// MethodRegistry resolves the strategy computing a method.
type MethodRegistry interface {
	GetMethodStrategy(m tp.Method) (strategy.MethodStrategy, error)
}

// Report summarizes a computation run.
type Report struct {
	RunID     uuid.UUID
	Pairings  int
	Ruled     int
	Passes    int
	FinalSum  decimal.Decimal
	Forced    bool
	Taxpayers []*tp.TaxPayer
}

// ComputationService drives rule resolution, the adjustment loop and the
// fiscal aggregation.
type ComputationService struct {
	registry MethodRegistry
	policy   tp.ConvergencePolicy
	metrics  *telemetry.EngineMetrics
}

// NewComputationService creates a computation service. metrics may be nil.
func NewComputationService(registry MethodRegistry, policy tp.ConvergencePolicy, metrics *telemetry.EngineMetrics) (*ComputationService, error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: method registry is required", shared.ErrInvalidInput)
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrInvalidInput, err.Error())
	}
	return &ComputationService{
		registry: registry,
		policy:   policy,
		metrics:  metrics,
	}, nil
}

// Policy returns the convergence policy in use
func (s *ComputationService) Policy() tp.ConvergencePolicy {
	return s.policy
}

// ResolveRules pairs every record with the rule resolved for it, in input order.
func (s *ComputationService) ResolveRules(ctx context.Context, records []tp.Record, rules []tp.Rule) []tp.Pairing {
	_, span := telemetry.StartServiceSpan(ctx, "computation", "resolve_rules",
		telemetry.WithAttribute(telemetry.SpanAttrRecordCount, len(records)),
		telemetry.WithAttribute(telemetry.SpanAttrRuleCount, len(rules)),
	)
	defer span.End()

	pairings := tp.ResolveRules(records, rules)
	ruled := countRuled(pairings)
	telemetry.SetAttribute(span, telemetry.SpanAttrRuledCount, ruled)
	logger.FromContext(ctx).Debug("Rules resolved",
		zap.Int("records", len(records)),
		zap.Int("rules", len(rules)),
		zap.Int("ruled", ruled),
	)
	return pairings
}

// Affect lists every rule matching each record, most specific first.
func (s *ComputationService) Affect(ctx context.Context, records []tp.Record, rules []tp.Rule) []tp.Candidates {
	_, span := telemetry.StartServiceSpan(ctx, "computation", "affect",
		telemetry.WithAttribute(telemetry.SpanAttrRecordCount, len(records)),
		telemetry.WithAttribute(telemetry.SpanAttrRuleCount, len(rules)),
	)
	defer span.End()
	return tp.Affect(records, rules)
}

// Compute adjusts every ruled record toward its benchmark, books the
// opposite movement on its counterpart and derives the fiscal lines of
// each taxpayer group. It returns one output per pairing in input order;
// records without a rule pass through unmodified. A counterpart that cannot
// be resolved aborts the run before any adjustment.
func (s *ComputationService) Compute(ctx context.Context, pairings []tp.Pairing, norm currency.Normalizer) ([]*tp.OutputRecord, *Report, error) {
	report := &Report{
		RunID:    uuid.New(),
		Pairings: len(pairings),
		Ruled:    countRuled(pairings),
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "computation", "compute",
		telemetry.WithAttribute(telemetry.SpanAttrRunID, report.RunID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrPairingCount, report.Pairings),
	)
	defer span.End()
	ctx, log := logger.WithRunID(ctx, report.RunID.String())
	log = logger.WithTraceContext(ctx, log)
	tracker := s.metrics.Track()

	fail := func(err error) ([]*tp.OutputRecord, *Report, error) {
		telemetry.RecordError(span, err)
		log.Warn("Computation failed", zap.Error(err))
		return nil, report, tracker.End(errorCode(err), err)
	}

	if norm == nil {
		norm = currency.EmptyRateTable()
	}

	r, err := s.prepare(pairings, norm)
	if err != nil {
		return fail(err)
	}

	var sum decimal.Decimal
	budget := s.policy.NewBudget(len(pairings))
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(telemetry.OperationConverge, nil), func(c context.Context) {
		for {
			if err = c.Err(); err != nil {
				return
			}
			sum, err = r.pass()
			if err != nil {
				return
			}
			report.Passes++
			telemetry.AddEvent(span, "pass",
				"index", report.Passes,
				"sum", sum.String(),
				"remaining", budget.Remaining(),
			)
			if !budget.Continue(sum) {
				return
			}
		}
	})
	if err != nil {
		return fail(err)
	}
	report.FinalSum = sum
	report.Forced = budget.Forced()
	if report.Forced {
		log.Warn("Pass budget shrunk after a stall", zap.Int("passes", report.Passes))
	}

	report.Taxpayers, err = tp.Aggregate(r.participants(), norm)
	if err != nil {
		return fail(err)
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPasses, report.Passes,
		telemetry.SpanAttrForced, report.Forced,
		telemetry.SpanAttrTaxpayerCount, len(report.Taxpayers),
	)
	last, _ := report.FinalSum.Float64()
	tracker.Converged(report.Passes, report.Forced, last, len(report.Taxpayers))
	_ = tracker.End("", nil)
	log.Info("Computation completed",
		zap.Int("pairings", report.Pairings),
		zap.Int("ruled", report.Ruled),
		zap.Int("passes", report.Passes),
		zap.String("final_sum", report.FinalSum.String()),
		zap.Bool("forced", report.Forced),
		zap.Int("taxpayers", len(report.Taxpayers)),
	)
	return r.outputs, report, nil
}

// prepare builds one output per pairing and resolves the counterpart and
// strategy of every ruled pairing. A valid method without a registered
// strategy is a wiring fault and fails the run.
func (s *ComputationService) prepare(pairings []tp.Pairing, norm currency.Normalizer) (*run, error) {
	r := &run{
		norm:    norm,
		outputs: make([]*tp.OutputRecord, len(pairings)),
	}
	for i, p := range pairings {
		r.outputs[i] = tp.NewOutputRecord(p.Record)
	}
	for i, p := range pairings {
		if p.Rule == nil {
			continue
		}
		counterpart, err := tp.FindCounterpart(r.outputs, p.Rule)
		if err != nil {
			return nil, err
		}
		// A rule without a method keeps its pairing but never adjusts.
		var method strategy.MethodStrategy
		if p.Rule.Method.IsValid() {
			method, err = s.registry.GetMethodStrategy(p.Rule.Method)
			if err != nil {
				return nil, fmt.Errorf("rule %d: %w", p.Rule.ID, err)
			}
		}
		r.steps = append(r.steps, step{
			output:      r.outputs[i],
			counterpart: counterpart,
			rule:        p.Rule,
			method:      method,
		})
	}
	return r, nil
}

func countRuled(pairings []tp.Pairing) int {
	n := 0
	for _, p := range pairings {
		if p.Rule != nil {
			n++
		}
	}
	return n
}

func errorCode(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "CANCELED"
	}
	return ""
}
