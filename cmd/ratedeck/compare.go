package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"ratedeck/db/archive"
	"ratedeck/decision/adjustment"
	"ratedeck/decision/comparison"
	"ratedeck/decision/worker"
	"ratedeck/ingest/ratesheet"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   FormatTable,
		Usage:   "Output format (table, json, markdown)",
	}
}

// =============================================================================
// COMPARE COMMAND
// =============================================================================

func compareCommand() *cli.Command {
	return &cli.Command{
		Name:      "compare",
		Usage:     "Compare two A-Z rate decks",
		ArgsUsage: "<file1.csv> <file2.csv>",
		Flags: []cli.Flag{
			formatFlag(),
			&cli.IntFlag{
				Name:  "top",
				Value: 10,
				Usage: "Rows per section in table and markdown output (0 for all)",
			},
			&cli.BoolFlag{
				Name:  "archive",
				Usage: "Archive the run in the configured report store",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Value:   worker.DefaultConfig().Timeout,
				Usage:   "Maximum comparison time",
				EnvVars: []string{"RATEDECK_COMPARE_TIMEOUT"},
			},
		},
		Action: runCompare,
	}
}

func runCompare(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: ratedeck compare <file1.csv> <file2.csv>", ExitParseError)
	}
	logger := newLogger(c, true)
	ctx := c.Context

	input, err := ratesheet.LoadPair(ctx, c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to load rate decks: %v", err), ExitParseError)
	}
	logger.Debug().
		Int("codes_file1", len(input.File1Data)).
		Int("codes_file2", len(input.File2Data)).
		Msg("rate decks loaded")

	cfg := worker.ConfigFromEnv()
	cfg.Timeout = c.Duration("timeout")
	runner, err := worker.NewRunner(cfg, logger)
	if err != nil {
		return err
	}

	reports, err := runner.Compare(ctx, input)
	if err != nil {
		return cli.Exit(fmt.Sprintf("comparison failed: %v", err), ExitCompareError)
	}

	if c.Bool("archive") {
		store, err := openStore(ctx, c)
		if err != nil {
			return fmt.Errorf("failed to open report store: %w", err)
		}
		if store == nil {
			return cli.Exit("--archive needs a report store (use --store)", ExitFailure)
		}
		defer store.Close()

		result, err := archive.NewArchiver(store, logger).Archive(ctx, input, reports)
		if err != nil {
			return fmt.Errorf("failed to archive run: %w", err)
		}
		logger.Info().
			Str("run_id", result.RunID.String()).
			Bool("reused", result.Reused).
			Msg("run archived")
	}

	return newPrinter(c.App.Writer, c.String("format")).Reports(reports, c.Int("top"))
}

// =============================================================================
// COMPARE-US COMMAND
// =============================================================================

func compareUSCommand() *cli.Command {
	return &cli.Command{
		Name:      "compare-us",
		Usage:     "Compare two US NPANXX rate decks (interstate, intrastate, indeterminate)",
		ArgsUsage: "<file1.csv> <file2.csv>",
		Flags: []cli.Flag{
			formatFlag(),
			&cli.IntFlag{
				Name:  "top",
				Value: 10,
				Usage: "Rows per section in table and markdown output (0 for all)",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Value:   worker.DefaultConfig().Timeout,
				Usage:   "Maximum comparison time",
				EnvVars: []string{"RATEDECK_COMPARE_TIMEOUT"},
			},
		},
		Action: runCompareUS,
	}
}

func runCompareUS(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: ratedeck compare-us <file1.csv> <file2.csv>", ExitParseError)
	}
	logger := newLogger(c, true)

	input, err := ratesheet.LoadUSPair(c.Context, c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to load rate decks: %v", err), ExitParseError)
	}

	cfg := worker.ConfigFromEnv()
	cfg.Timeout = c.Duration("timeout")
	runner, err := worker.NewRunner(cfg, logger)
	if err != nil {
		return err
	}

	reports, err := runner.CompareUS(c.Context, input)
	if err != nil {
		return cli.Exit(fmt.Sprintf("comparison failed: %v", err), ExitCompareError)
	}

	return newPrinter(c.App.Writer, c.String("format")).USReports(reports, c.Int("top"))
}

// =============================================================================
// ADJUST COMMAND
// =============================================================================

func adjustCommand() *cli.Command {
	return &cli.Command{
		Name:      "adjust",
		Usage:     "Apply bulk rate adjustment rules to a rate deck",
		ArgsUsage: "<deck.csv>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "rules",
				Aliases:  []string{"r"},
				Usage:    "Path to YAML adjustment rules",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the adjusted deck here instead of stdout",
			},
		},
		Action: runAdjust,
	}
}

func runAdjust(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: ratedeck adjust --rules rules.yaml <deck.csv>", ExitParseError)
	}
	logger := newLogger(c, true)

	rules, err := adjustment.LoadRules(c.String("rules"))
	if err != nil {
		return cli.Exit(err.Error(), ExitParseError)
	}
	engine, err := adjustment.NewEngine(rules)
	if err != nil {
		return cli.Exit(err.Error(), ExitParseError)
	}

	records, err := ratesheet.LoadFile(c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to load rate deck: %v", err), ExitParseError)
	}

	result := engine.Apply(records)
	logger.Info().
		Int("adjusted", result.Adjusted).
		Int("unchanged", result.Unchanged).
		Msg("adjustment complete")

	if path := c.String("output"); path != "" {
		return saveDeck(path, result.Standardized())
	}
	return ratesheet.Write(c.App.Writer, result.Standardized())
}

// saveDeck writes records to path. A failed close is reported so a partly
// written deck never exits cleanly.
func saveDeck(path string, records []comparison.StandardizedRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := ratesheet.Write(f, records); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}
	return nil
}

