package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/shopspring/decimal"
	appservice "github.com/tpa/backend/internal/application/transferpricing"
	"github.com/tpa/backend/internal/domain/currency"
	tp "github.com/tpa/backend/internal/domain/transferpricing"
	"github.com/tpa/backend/internal/infrastructure/logger"
	"github.com/tpa/backend/internal/infrastructure/parser"
	"github.com/tpa/backend/internal/infrastructure/strategy"
	"go.uber.org/zap"
)

// Globals are flags shared by every command.
type Globals struct {
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"warn" enum:"debug,info,warn,error"`
}

// Commands lists the subcommands.
type Commands struct {
	Compute ComputeCmd `cmd:"" help:"Resolve rules, adjust records and aggregate taxpayers."`
	Affect  AffectCmd  `cmd:"" help:"List the rules matching each record."`
	Methods MethodsCmd `cmd:"" help:"List the supported transfer-pricing methods."`
	Migrate MigrateCmd `cmd:"" help:"Manage the exchange-rate store schema."`
}

// ComputeCmd runs a full computation.
type ComputeCmd struct {
	Data        string          `arg:"" type:"existingfile" help:"Financial data file (.json or .csv)."`
	Rules       string          `arg:"" type:"existingfile" help:"Rule file (.json or .csv)."`
	Rates       string          `type:"existingfile" help:"Exchange-rate table (JSON)." optional:""`
	Multiplier  int             `help:"Pass budget as a multiple of the pairing count." default:"20"`
	Threshold   decimal.Decimal `help:"Stop once the summed adjustments of a pass fall below this value." default:"0.01"`
	ShowRecords bool            `help:"Print every record, ruled or not." default:"true" negatable:""`
}

func (cmd *ComputeCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, log, err := globals.context()
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	records, rules, err := load(cmd.Data, cmd.Rules)
	if err != nil {
		return err
	}
	table := currency.EmptyRateTable()
	if cmd.Rates != "" {
		f, err := os.Open(cmd.Rates)
		if err != nil {
			return err
		}
		defer f.Close()
		if table, err = parser.ParseRates(f); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(cmd.Rates), err)
		}
	}

	policy := tp.DefaultConvergencePolicy()
	policy.MaxIterationsMultiplier = cmd.Multiplier
	policy.SumThreshold = cmd.Threshold
	svc, err := newService(policy)
	if err != nil {
		return err
	}

	pairings := svc.ResolveRules(runCtx, records, rules)
	outputs, report, err := svc.Compute(runCtx, pairings, table)
	if err != nil {
		return err
	}
	renderReport(ctx.Stdout, outputs, report, cmd.ShowRecords)
	return nil
}

// AffectCmd lists candidate rules.
type AffectCmd struct {
	Data  string `arg:"" type:"existingfile" help:"Financial data file (.json or .csv)."`
	Rules string `arg:"" type:"existingfile" help:"Rule file (.json or .csv)."`
}

func (cmd *AffectCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, log, err := globals.context()
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	records, rules, err := load(cmd.Data, cmd.Rules)
	if err != nil {
		return err
	}
	svc, err := newService(tp.DefaultConvergencePolicy())
	if err != nil {
		return err
	}
	renderCandidates(ctx.Stdout, svc.Affect(runCtx, records, rules))
	return nil
}

// MethodsCmd lists the registered methods.
type MethodsCmd struct{}

func (cmd *MethodsCmd) Run(ctx *kong.Context) error {
	registry, err := strategy.NewRegistryWithDefaults()
	if err != nil {
		return err
	}
	renderMethods(ctx.Stdout, registry.ListMethodStrategies())
	return nil
}

func (g *Globals) context() (context.Context, *zap.Logger, error) {
	log, err := logger.New(&logger.Config{
		Level:  g.LogLevel,
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		return nil, nil, err
	}
	return logger.WithContext(context.Background(), log), log, nil
}

func newService(policy tp.ConvergencePolicy) (*appservice.ComputationService, error) {
	registry, err := strategy.NewRegistryWithDefaults()
	if err != nil {
		return nil, err
	}
	return appservice.NewComputationService(registry, policy, nil)
}

func load(dataPath, rulesPath string) ([]tp.Record, []tp.Rule, error) {
	rawData, err := readEntries(dataPath)
	if err != nil {
		return nil, nil, err
	}
	records, err := parser.ParseRecords(rawData)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", filepath.Base(dataPath), err)
	}

	rawRules, err := readEntries(rulesPath)
	if err != nil {
		return nil, nil, err
	}
	rules, err := parser.ParseRules(rawRules)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", filepath.Base(rulesPath), err)
	}
	return records, rules, nil
}

func readEntries(path string) ([]map[string]any, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	entries, err := parser.Load(path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return entries, nil
}
