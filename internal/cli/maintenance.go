package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/durolabs/duro/internal/artifact"
	"github.com/durolabs/duro/internal/audit"
	"github.com/durolabs/duro/internal/decay"
	"github.com/durolabs/duro/internal/store"
)

// openStore builds the store and audit log for a one-shot CLI command.
// The caller must invoke the returned close func.
func openStore() (*store.Store, *audit.Log, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	st, err := store.New(store.Config{
		DataDir:          cfg.DataDir,
		MaxSearchResults: cfg.Search.MaxResults,
		Now:              time.Now,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}
	log := audit.New(st.DB(), time.Now)
	st.SetAuditor(log)
	return st, log, func() { _ = st.Close() }, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM so long
// maintenance passes stop cleanly.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// --- decay command ---

var (
	decayDryRun  bool
	decayMinConf float64
)

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Apply confidence decay to unpinned facts",
	RunE:  runDecay,
}

func runDecay(cmd *cobra.Command, args []string) error {
	st, _, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := signalContext()
	defer cancel()

	engine := decay.New(st, time.Now)
	report, err := engine.Run(ctx, decay.Options{
		DryRun:        decayDryRun,
		MinConfidence: decayMinConf,
	})
	if err != nil {
		return fmt.Errorf("decay pass: %w", err)
	}

	verb := "decayed"
	if report.DryRun {
		verb = "would decay"
	}
	fmt.Printf("scanned %d facts, skipped %d pinned, %s %d\n",
		report.Scanned, report.Skipped, verb, len(report.Changes))
	for _, c := range report.Changes {
		fmt.Printf("  %s  %.3f -> %.3f  (%dd)\n", c.FactID, c.OldConfidence, c.NewConfidence, c.Days)
	}
	if report.Partial {
		fmt.Fprintln(os.Stderr, "pass interrupted; results are partial")
	}
	return nil
}

// --- audit command ---

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit chain",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit chain's hash linkage",
	RunE:  runAuditVerify,
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	_, log, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := signalContext()
	defer cancel()

	report, err := log.VerifyChain(ctx)
	if err != nil {
		return fmt.Errorf("verify chain: %w", err)
	}

	if report.ChainValid {
		fmt.Printf("audit chain valid (%d entries)\n", report.Entries)
		return nil
	}
	fmt.Printf("audit chain BROKEN at entry %d: %s\n", *report.BreakIndex, report.Detail)
	os.Exit(1)
	return nil
}

// --- reindex command ---

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the full-text search index from stored artifacts",
	RunE:  runReindex,
}

func runReindex(cmd *cobra.Command, args []string) error {
	st, _, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := signalContext()
	defer cancel()

	n, err := st.RebuildIndex(ctx)
	if err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	fmt.Printf("reindexed %d artifacts\n", n)
	return nil
}

// --- stats command ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show artifact counts and audit log size",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	st, log, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	counts, err := st.CountByType()
	if err != nil {
		return fmt.Errorf("count artifacts: %w", err)
	}
	pinned, err := st.CountPinnedFacts()
	if err != nil {
		return fmt.Errorf("count pinned: %w", err)
	}
	entries, err := log.Len()
	if err != nil {
		return fmt.Errorf("count audit entries: %w", err)
	}

	total := 0
	for _, t := range []artifact.Type{
		artifact.TypeFact, artifact.TypeDecision, artifact.TypeEpisode,
		artifact.TypeIncident, artifact.TypeChange,
	} {
		n := counts[t]
		total += n
		fmt.Printf("%-10s %d\n", t, n)
	}
	fmt.Printf("%-10s %d\n", "total", total)
	fmt.Printf("%-10s %d\n", "pinned", pinned)
	fmt.Printf("%-10s %d\n", "audit", entries)
	return nil
}

func init() {
	decayCmd.Flags().BoolVar(&decayDryRun, "dry-run", false, "Report changes without applying them")
	decayCmd.Flags().Float64Var(&decayMinConf, "min-confidence", 0, "Only decay facts at or above this confidence")

	auditCmd.AddCommand(auditVerifyCmd)
}
