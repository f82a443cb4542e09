package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alishhde/Couriers-Planning-Problem/internal/auth"
	"github.com/alishhde/Couriers-Planning-Problem/internal/buildinfo"
	"github.com/alishhde/Couriers-Planning-Problem/internal/dzn"
	"github.com/alishhde/Couriers-Planning-Problem/internal/events"
	"github.com/alishhde/Couriers-Planning-Problem/internal/mzn"
	"github.com/alishhde/Couriers-Planning-Problem/internal/pipeline"
	"github.com/alishhde/Couriers-Planning-Problem/internal/report"
)

var (
	transcodeSrc   string
	transcodeDst   string
	transcodeWatch bool

	solveOverwrite bool

	reportFrom int
	reportTo   int
	reportJSON bool

	tokenSubject string
	tokenTTL     time.Duration
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var transcodeCmd = &cobra.Command{
	Use:   "transcode",
	Short: "Convert .dat instances into MiniZinc .dzn data files",
	Long: `Reads every instance file of --src in name order and writes InstanceNN.dzn
files to --dst. With --watch it keeps running and re-transcodes on changes.`,
	Args: exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, dst := transcodeSrc, transcodeDst
		if src == "" {
			src = cfg.Paths.DatDir
		}
		if dst == "" {
			dst = cfg.Paths.DznDir
		}
		ctx, cancel := signalContext()
		defer cancel()

		if transcodeWatch {
			err := dzn.Watch(ctx, src, dst, cfg.Transcode.Workers, cfg.SettleOrDefault(), logger)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		n, err := dzn.TranscodeDir(ctx, src, dst, cfg.Transcode.Workers, logger)
		if err != nil {
			return err
		}
		logger.Info("transcoded instances", zap.Int("count", n), zap.String("dst", dst))
		return nil
	},
}

var solveCmd = &cobra.Command{
	Use:   "solve <instances>-<model>",
	Short: "Run a model on instances and store the results",
	Long: `Instances are "all", a number ("7"), an inclusive range ("1:4") or a list ("1,3").
The model is a two-digit selector from "cpp models" or "all".

Examples:
  cpp solve 1:4-01
  cpp solve 7-all --overwrite`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := pipeline.ParseJob(args[0])
		if err != nil {
			return usageErrorf("%v", err)
		}
		pcfg, err := pipelineConfig(cfg)
		if err != nil {
			return &exitError{code: ExitConfigError, err: err}
		}
		st, closeStore, err := openStore(cfg)
		if err != nil {
			return &exitError{code: ExitConfigError, err: err}
		}
		defer closeStore()

		var pub events.Publisher = events.Discard{}
		if cfg.Redis.URL != "" {
			// lets a running `cpp serve` stream progress of CLI runs
			broker, closeBroker := openBroker(cfg, logger)
			defer closeBroker()
			pub = broker
		}

		ctx, cancel := signalContext()
		defer cancel()
		p := pipeline.New(pcfg, newSolver(cfg, logger), st, pipeline.WithEvents(pub), pipeline.WithLogger(logger))
		outcomes, err := p.RunJob(ctx, job, !solveOverwrite)
		for _, o := range outcomes {
			if o.Err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\ttime=%d optimal=%t obj=%s\n",
					o.Instance, o.Model, o.Record.Time, o.Record.Optimal, o.Record.Objective)
			}
		}
		return err
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the available models with their selectors",
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := mzn.LoadCatalog(cfg.Paths.ModelsDir)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SELECTOR\tMODEL\tFAMILY\tSOLVER")
		for i, name := range cat.Models {
			family := "-"
			if f, err := mzn.FamilyForModel(name); err == nil {
				family = f.String()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mzn.Selector(i), name, family, mzn.SolverForModel(name, cfg.Solver.Default))
		}
		return w.Flush()
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print stored results as a Markdown table",
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, closeStore, err := openStore(cfg)
		if err != nil {
			return &exitError{code: ExitConfigError, err: err}
		}
		defer closeStore()
		tbl, err := report.Build(cmd.Context(), st, reportFrom, reportTo)
		if err != nil {
			return usageErrorf("%v", err)
		}
		if reportJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(tbl)
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), tbl.Markdown())
		return err
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for POST /v1/runs",
	Long:  `Signs a token with server.auth_secret (or CPP_AUTH_SECRET).`,
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Server.AuthSecret == "" {
			return &exitError{code: ExitConfigError, err: errors.New("server.auth_secret is not set")}
		}
		tok, err := auth.NewVerifier(cfg.Server.AuthSecret).Issue(tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  exactArgs(0),
	// no config needed
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Info()
		fmt.Fprintf(cmd.OutOrStdout(), "cpp %s", info["version"])
		if c := info["commit"]; c != "" {
			fmt.Fprintf(cmd.OutOrStdout(), " (%s)", c)
		}
		if b := info["builtAt"]; b != "" {
			fmt.Fprintf(cmd.OutOrStdout(), " built %s", b)
		}
		fmt.Fprintf(cmd.OutOrStdout(), " %s\n", info["go"])
		return nil
	},
}

func init() {
	transcodeCmd.Flags().StringVar(&transcodeSrc, "src", "", "Directory of .dat instances (default: paths.dat_dir)")
	transcodeCmd.Flags().StringVar(&transcodeDst, "dst", "", "Output directory for .dzn files (default: paths.dzn_dir)")
	transcodeCmd.Flags().BoolVar(&transcodeWatch, "watch", false, "Keep running and re-transcode on changes")

	solveCmd.Flags().BoolVar(&solveOverwrite, "overwrite", false, "Replace every stored result of an instance instead of merging")

	reportCmd.Flags().IntVar(&reportFrom, "from", 1, "First instance")
	reportCmd.Flags().IntVar(&reportTo, "to", 21, "Last instance")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print JSON instead of Markdown")

	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "cli", "Caller name recorded on runs")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime; 0 never expires")
}
