package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mchmarny/belong/pkg/bi"
	"github.com/mchmarny/belong/pkg/calc"
	"github.com/mchmarny/belong/pkg/data"
	"github.com/mchmarny/belong/pkg/index"
	"github.com/mchmarny/belong/pkg/report"
	"github.com/mchmarny/belong/pkg/table"
	urfave "github.com/urfave/cli/v3"
)

const (
	classificationFlagName = "classification"
	matrixFlagName         = "distance-matrix"
	profilesFlagName       = "profiles"
	outputDirFlagName      = "output-dir"
	workersFlagName        = "workers"
	indexBinFlagName       = "index-bin"
	binSizeFlagName        = "bin-size"
	keepIndexFlagName      = "keep-index"
	noSaveFlagName         = "no-save"
	scoresFlagName         = "scores"
)

var errBothSources = errors.New("--distance-matrix and --profiles are mutually exclusive")

func newCalcCmd(cfg *appConfig) *urfave.Command {
	return &urfave.Command{
		Name:    "calc",
		Aliases: []string{"c"},
		Usage:   "Calculate the belonging index from a distance matrix or a profile file",
		UsageText: `belong calc -c class.tsv -d matrix.tsv -o out              # precomputed distance matrix
   belong calc -c class.tsv -p profiles.tsv -o out            # profiles, neighbors from fast-mlst
   belong calc -c class.tsv -d matrix.tsv --no-save --scores  # print every score, keep no history`,
		HideHelpCommand: true,
		Flags: []urfave.Flag{
			&urfave.StringFlag{
				Name:     classificationFlagName,
				Aliases:  []string{"c"},
				Usage:    "Path to classification file (tab separated ID and class)",
				Required: true,
			},
			&urfave.StringFlag{
				Name:    matrixFlagName,
				Aliases: []string{"d"},
				Usage:   "Path to distance matrix file (tab separated)",
			},
			&urfave.StringFlag{
				Name:    profilesFlagName,
				Aliases: []string{"p"},
				Usage:   "Path to profiles file (tab separated)",
			},
			&urfave.StringFlag{
				Name:    outputDirFlagName,
				Aliases: []string{"o"},
				Usage:   "Path for output directory (default: from config)",
			},
			&urfave.IntFlag{
				Name:  workersFlagName,
				Usage: "Number of entities scored in parallel, 0 for one per CPU (default: from config)",
			},
			&urfave.StringFlag{
				Name:    indexBinFlagName,
				Usage:   "Path to the fast-mlst binary used in profile mode (default: from config)",
				Sources: urfave.EnvVars("BELONG_INDEX_BIN"),
			},
			&urfave.FloatFlag{
				Name:  binSizeFlagName,
				Usage: "Width of the BI histogram bins (default: from config)",
			},
			&urfave.BoolFlag{
				Name:  keepIndexFlagName,
				Usage: "Keep the profile index files in the output directory",
			},
			&urfave.BoolFlag{
				Name:  noSaveFlagName,
				Usage: "Do not store the run in the database",
			},
			&urfave.BoolFlag{
				Name:  scoresFlagName,
				Usage: "Include every entity score in the printed result",
			},
		},
		Action: func(ctx context.Context, c *urfave.Command) error {
			return cmdCalc(ctx, c, cfg)
		},
	}
}

type calcOptions struct {
	classPath    string
	matrixPath   string
	profilesPath string
	outDir       string
	workers      int
	indexBin     string
	binSize      float64
	keepIndex    bool
}

func getCalcOptions(c *urfave.Command, cfg *appConfig) (*calcOptions, error) {
	o := &calcOptions{
		classPath:    c.String(classificationFlagName),
		matrixPath:   c.String(matrixFlagName),
		profilesPath: c.String(profilesFlagName),
		outDir:       cfg.Conf.OutputDir,
		workers:      cfg.Conf.Workers,
		indexBin:     cfg.Conf.IndexBin,
		binSize:      cfg.Conf.BinSize,
		keepIndex:    c.Bool(keepIndexFlagName),
	}

	if o.matrixPath == "" && o.profilesPath == "" {
		return nil, calc.ErrNoSource
	}
	if o.matrixPath != "" && o.profilesPath != "" {
		return nil, errBothSources
	}

	if v := c.String(outputDirFlagName); v != "" {
		o.outDir = v
	}
	if c.IsSet(workersFlagName) {
		o.workers = c.Int(workersFlagName)
	}
	if v := c.String(indexBinFlagName); v != "" {
		o.indexBin = v
	}
	if c.IsSet(binSizeFlagName) {
		o.binSize = c.Float(binSizeFlagName)
	}
	if err := bi.ValidateBinSize(o.binSize); err != nil {
		return nil, err
	}

	return o, nil
}

func cmdCalc(ctx context.Context, c *urfave.Command, cfg *appConfig) error {
	start := time.Now()

	opts, err := getCalcOptions(c, cfg)
	if err != nil {
		return err
	}

	classes, err := table.LoadClassification(opts.classPath)
	if err != nil {
		return fmt.Errorf("loading classification: %w", err)
	}
	slog.Info("classification loaded", "entities", classes.Len(), "classes", len(classes.Sizes()))

	var (
		src calc.NeighborSource
		run *data.Run
	)

	if opts.profilesPath != "" {
		profiles, err := table.LoadProfiles(opts.profilesPath)
		if err != nil {
			return fmt.Errorf("loading profiles: %w", err)
		}
		slog.Info("profiles loaded", "profiles", len(profiles.IDs()), "loci", len(profiles.Loci))

		x := index.New(opts.indexBin)
		slog.Info("updating distance index", "bin", x.Binary)
		if err := x.Build(ctx, opts.profilesPath, opts.outDir); err != nil {
			return fmt.Errorf("building profile index: %w", err)
		}
		if !opts.keepIndex {
			defer func() {
				if err := x.Remove(); err != nil {
					slog.Error("failed to remove index", "error", err)
				}
			}()
		}

		ps := index.NewSource(x, profiles)
		slog.Debug("profile source ready", "query_limit", ps.Limit())
		src = ps
		run = data.NewRun(data.ModeProfile, opts.profilesPath, opts.classPath)
	} else {
		m, err := table.LoadMatrix(opts.matrixPath)
		if err != nil {
			return fmt.Errorf("loading distance matrix: %w", err)
		}
		slog.Info("distance matrix loaded", "entities", len(m.IDs()))

		src = m
		run = data.NewRun(data.ModeMatrix, opts.matrixPath, opts.classPath)
	}

	run.BinSize = opts.binSize

	rs, err := calc.Run(ctx, src, classes, calc.Options{Workers: opts.workers})
	if err != nil {
		return fmt.Errorf("calculating belonging index: %w", err)
	}

	summaries := bi.Summarize(rs)
	bins, err := bi.Distribution(rs, opts.binSize)
	if err != nil {
		return fmt.Errorf("building distribution: %w", err)
	}

	files, err := report.WriteFiles(opts.outDir, rs, summaries, bins)
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if c.Bool(noSaveFlagName) {
		run.Tally(rs, summaries)
	} else {
		if err := data.SaveRun(cfg.DB, run, rs, summaries); err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
		slog.Debug("run saved", "id", run.ID)
	}

	slog.Info("done", "run", run.ID, "entities", run.Entities, "duration", time.Since(start).String())

	res := &report.Summary{
		Run:       run,
		Classes:   summaries,
		Histogram: bins,
		Files:     files,
	}
	if c.Bool(scoresFlagName) {
		res.Scores = rs.Scores()
	}

	if err := report.Encode(writer(c), cfg.Format, res); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}
	return nil
}
