// reconcile scans the delete_pac archive for duplicate delete-view IDs and
// optionally remediates them. By default it runs dry: it prints the
// integrity report and the remediation plan without writing anything.
//
// Usage (dry-run, list duplicates and the plan):
//
//	go run ./cmd/reconcile -project=my-project
//
// To fix one duplicate group:
//
//	go run ./cmd/reconcile -project=my-project \
//	  -delete-id=DEL-00007 -dry-run=false -confirm=FIX
//
// To fix everything:
//
//	go run ./cmd/reconcile -project=my-project -all -dry-run=false -confirm=FIX
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"pacadmin/internal/core/actor"
	"pacadmin/internal/domain/lock"
	"pacadmin/internal/domain/registry"
	fsstore "pacadmin/internal/infrastructure/firestore"
	"pacadmin/pkg/logger"
)

func main() {
	project := flag.String("project", os.Getenv("FIRESTORE_PROJECT_ID"), "Firestore project id")
	deleteID := flag.String("delete-id", "", "Fix only this duplicate delete-view ID (e.g. DEL-00007)")
	all := flag.Bool("all", false, "Fix every pending remediation job")
	dryRun := flag.Bool("dry-run", true, "Print the plan only (no writes)")
	confirm := flag.String("confirm", "", "Type FIX to proceed when -dry-run=false")
	ratio := flag.Float64("quarantine-ratio", 0, "Override the quarantine threshold (0 keeps the default)")
	operator := flag.String("operator", "reconcile-cli", "Operator name recorded on fixed records")
	flag.Parse()

	if strings.TrimSpace(*project) == "" {
		fmt.Fprintln(os.Stderr, "-project (or FIRESTORE_PROJECT_ID) is required")
		os.Exit(1)
	}
	if !*dryRun && strings.TrimSpace(*confirm) != "FIX" {
		fmt.Fprintln(os.Stderr, "set -confirm=FIX to proceed when -dry-run=false")
		os.Exit(1)
	}
	if !*dryRun && *deleteID == "" && !*all {
		fmt.Fprintln(os.Stderr, "pick a target: -delete-id=DEL-NNNNN or -all")
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: "warn"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}

	ctx := actor.WithActor(context.Background(), &actor.Context{
		ActorID: *operator,
		Role:    "admin",
	})

	store, err := fsstore.New(ctx, *project, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "firestore connect failed: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	cfg := registry.DefaultConfig()
	cfg.DryRun = *dryRun
	if *ratio > 0 {
		cfg.QuarantineRatio = *ratio
	}

	locks := lock.NewManager(store, registry.LockName, lock.DefaultTTL)
	engine := registry.New(cfg, store, locks, log, nil)

	// One-shot: pull the current snapshot instead of subscribing.
	docs, err := store.List(ctx, cfg.Collection)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load %s failed: %v\n", cfg.Collection, err)
		os.Exit(1)
	}
	engine.Ingest(docs)

	printSnapshot(engine)

	if *dryRun {
		printPlan(engine.Queue())
		return
	}

	var report registry.Report
	if *deleteID != "" {
		report, err = engine.FixGroup(ctx, *deleteID, true)
	} else {
		report, err = engine.FixAll(ctx, true)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "remediation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nremediation complete: mode=%s fixed=%d skipped=%d failed=%d\n",
		report.Mode, report.Fixed, report.Skipped, report.Failed)
	if report.Failed > 0 {
		os.Exit(1)
	}
}

func printSnapshot(engine *registry.Engine) {
	stats := engine.Stats()
	fmt.Printf("records=%d duplicate_groups=%d health=%d quarantined=%v\n",
		stats.Total, stats.DuplicateGroups, stats.Health, stats.Quarantined)

	integrity := engine.CheckIntegrity()
	fmt.Printf("issues: missing_id=%d invalid_format=%d duplicates=%d\n",
		integrity.MissingID, integrity.InvalidFormat, integrity.Duplicates)

	for _, g := range engine.Duplicates() {
		fmt.Printf("  %s x%d\n", g.DeleteViewID, g.Count)
		for _, r := range engine.GroupRecords(g.DeleteViewID) {
			fmt.Printf("    doc=%s pac=%s deleted_at=%d\n", r.DocID, r.PacNo, r.DeletedAtTimestamp)
		}
	}
}

func printPlan(jobs []registry.Job) {
	if len(jobs) == 0 {
		fmt.Println("\nnothing to fix")
		return
	}
	fmt.Printf("\nplan (%d jobs):\n", len(jobs))
	for _, j := range jobs {
		fmt.Printf("  doc=%s pac=%s %s -> %s\n", j.DocID, j.PacNo, j.OldID, j.NewID)
	}
}
