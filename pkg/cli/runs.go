package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mchmarny/belong/pkg/bi"
	"github.com/mchmarny/belong/pkg/data"
	"github.com/mchmarny/belong/pkg/report"
	urfave "github.com/urfave/cli/v3"
)

const (
	runIDFlagName = "id"
	limitFlagName = "limit"

	runLimitDefault = 20
)

func runIDFlag() *urfave.StringFlag {
	return &urfave.StringFlag{
		Name:     runIDFlagName,
		Usage:    "Run ID",
		Required: true,
	}
}

func newRunsCmd(cfg *appConfig) *urfave.Command {
	return &urfave.Command{
		Name:  "runs",
		Usage: "List, show, export and delete stored calculations",
		UsageText: `belong runs list --limit 5
   belong runs show --id <run> --scores
   belong runs export --id <run> -o out
   belong runs delete --id <run>
   belong runs stats`,
		HideHelpCommand: true,
		Commands: []*urfave.Command{
			{
				Name:  "list",
				Usage: "List the most recent runs",
				Flags: []urfave.Flag{
					&urfave.IntFlag{
						Name:  limitFlagName,
						Usage: "Maximum number of runs",
						Value: runLimitDefault,
					},
				},
				Action: func(_ context.Context, c *urfave.Command) error {
					return cmdListRuns(c, cfg)
				},
			},
			{
				Name:  "show",
				Usage: "Show the class means and distribution of a run",
				Flags: []urfave.Flag{
					runIDFlag(),
					&urfave.BoolFlag{
						Name:  scoresFlagName,
						Usage: "Include every entity score",
					},
				},
				Action: func(_ context.Context, c *urfave.Command) error {
					return cmdShowRun(c, cfg)
				},
			},
			{
				Name:  "export",
				Usage: "Write the report files of a stored run",
				Flags: []urfave.Flag{
					runIDFlag(),
					&urfave.StringFlag{
						Name:    outputDirFlagName,
						Aliases: []string{"o"},
						Usage:   "Path for output directory (default: from config)",
					},
				},
				Action: func(_ context.Context, c *urfave.Command) error {
					return cmdExportRun(c, cfg)
				},
			},
			{
				Name:  "stats",
				Usage: "Show the number of stored runs, scores and classes",
				Action: func(_ context.Context, c *urfave.Command) error {
					return cmdRunStats(c, cfg)
				},
			},
			{
				Name:  "delete",
				Usage: "Delete a run with its scores",
				Flags: []urfave.Flag{
					runIDFlag(),
				},
				Action: func(_ context.Context, c *urfave.Command) error {
					return cmdDeleteRun(c, cfg)
				},
			},
		},
	}
}

func cmdListRuns(c *urfave.Command, cfg *appConfig) error {
	list, err := data.ListRuns(cfg.DB, c.Int(limitFlagName))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if err := report.Encode(writer(c), cfg.Format, list); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}
	return nil
}

type storedRun struct {
	run       *data.Run
	scores    *bi.ResultSet
	summaries []*bi.ClassSummary
	bins      []*bi.Bin
}

func loadRun(cfg *appConfig, id string) (*storedRun, error) {
	run, err := data.GetRun(cfg.DB, id)
	if err != nil {
		return nil, err
	}

	scores, err := data.GetRunScores(cfg.DB, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run scores: %w", err)
	}

	summaries, err := data.GetRunMeans(cfg.DB, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run means: %w", err)
	}

	binSize := run.BinSize
	if binSize <= 0 {
		binSize = cfg.Conf.BinSize
	}
	bins, err := bi.Distribution(scores, binSize)
	if err != nil {
		return nil, fmt.Errorf("building distribution: %w", err)
	}

	return &storedRun{
		run:       run,
		scores:    scores,
		summaries: summaries,
		bins:      bins,
	}, nil
}

func cmdShowRun(c *urfave.Command, cfg *appConfig) error {
	sr, err := loadRun(cfg, c.String(runIDFlagName))
	if err != nil {
		return err
	}

	res := &report.Summary{
		Run:       sr.run,
		Classes:   sr.summaries,
		Histogram: sr.bins,
	}
	if c.Bool(scoresFlagName) {
		res.Scores = sr.scores.Scores()
	}

	if err := report.Encode(writer(c), cfg.Format, res); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}
	return nil
}

func cmdExportRun(c *urfave.Command, cfg *appConfig) error {
	sr, err := loadRun(cfg, c.String(runIDFlagName))
	if err != nil {
		return err
	}

	dir := c.String(outputDirFlagName)
	if dir == "" {
		dir = cfg.Conf.OutputDir
	}

	files, err := report.WriteFiles(dir, sr.scores, sr.summaries, sr.bins)
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	slog.Info("run exported", "id", sr.run.ID, "dir", dir)

	res := &report.Summary{
		Run:   sr.run,
		Files: files,
	}
	if err := report.Encode(writer(c), cfg.Format, res); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}
	return nil
}

func cmdDeleteRun(c *urfave.Command, cfg *appConfig) error {
	id := c.String(runIDFlagName)
	if err := data.DeleteRun(cfg.DB, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	slog.Info("run deleted", "id", id)
	return nil
}

func cmdRunStats(c *urfave.Command, cfg *appConfig) error {
	state, err := data.GetDataState(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to get data state: %w", err)
	}

	if err := report.Encode(writer(c), cfg.Format, state); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}
	return nil
}
