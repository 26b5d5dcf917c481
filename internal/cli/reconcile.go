package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/pkgindex/pkgindex/internal/listfetch"
	"github.com/pkgindex/pkgindex/internal/observability/logging"
	otelobs "github.com/pkgindex/pkgindex/internal/observability/otel"
	"github.com/pkgindex/pkgindex/internal/observability/receipt"
	"github.com/pkgindex/pkgindex/internal/reconciler"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Sync the catalog with the package, deny and collection lists",
	Long: `Reconcile fetches the main package list and the deny list, adds new
packages and deletes packages that left the list or are denied. It then
reconciles every custom collection against the resulting package list.

Example:
  pkgindex reconcile
  pkgindex reconcile --main-only
  pkgindex reconcile --collection "Featured"`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

var (
	reconcileMainOnlyFlag        bool
	reconcileCollectionsOnlyFlag bool
	reconcileCollectionFlag      string
)

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileMainOnlyFlag, "main-only", false, "Only reconcile the main package list")
	reconcileCmd.Flags().BoolVar(&reconcileCollectionsOnlyFlag, "collections-only", false, "Only reconcile custom collections against the stored packages")
	reconcileCmd.Flags().StringVar(&reconcileCollectionFlag, "collection", "", "Reconcile a single custom collection by name")
	reconcileCmd.MarkFlagsMutuallyExclusive("main-only", "collections-only", "collection")
}

// GetReconcileCmd returns the reconcile command
func GetReconcileCmd() *cobra.Command {
	return reconcileCmd
}

func runReconcile(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "pkgindex reconcile", os.Args[1:])
	var added, deleted, collections int
	defer func() {
		_ = sess.Finish(err, receipt.WithReconcile(added, deleted, collections))
	}()

	mode := "full"
	switch {
	case reconcileMainOnlyFlag:
		mode = "main"
	case reconcileCollectionsOnlyFlag:
		mode = "collections"
	case reconcileCollectionFlag != "":
		mode = "collection"
	}

	ctx, end := otelobs.StartSpan(ctx, "pkgindex.reconcile", attribute.String("pkgindex.mode", mode))
	defer func() { end(err) }()

	log := logging.From(ctx)
	start := time.Now()
	log.Event(ctx, "reconcile.start", map[string]any{"mode": mode})
	defer func() {
		result := "success"
		if err != nil {
			result = "fail"
		}
		log.Event(ctx, "reconcile.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      result,
		})
	}()

	cfg, err := configFrom(ctx)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	getter, closeGetter := newGetter(cfg)
	defer closeGetter()

	src := listfetch.NewClient(listfetch.Config{
		PackageListURL:       cfg.Lists.PackageListURL,
		DenyListURL:          cfg.Lists.DenyListURL,
		CustomCollectionsURL: cfg.Lists.CustomCollectionsURL,
	}, getter)
	r := reconciler.New(st, src, reconciler.WithConcurrency(cfg.Reconcile.Concurrency))

	out := cmd.OutOrStdout()
	switch mode {
	case "collection":
		if err := r.ReconcileCollectionByName(ctx, reconcileCollectionFlag); err != nil {
			return fmt.Errorf("reconcile failed: %w", err)
		}
		collections = 1
	case "collections":
		packageList, err := st.PackageURLs(ctx)
		if err != nil {
			return err
		}
		if collections, err = r.ReconcileCustomCollections(ctx, packageList); err != nil {
			return fmt.Errorf("reconcile failed: %w", err)
		}
	default:
		res, err := r.ReconcileMain(ctx)
		if err != nil {
			return fmt.Errorf("reconcile failed: %w", err)
		}
		added, deleted = len(res.Added), len(res.Deleted)
		fmt.Fprintf(out, "Packages: %d listed, %d added, %d deleted\n", len(res.PackageList), added, deleted)

		if mode == "full" {
			if collections, err = r.ReconcileCustomCollections(ctx, res.PackageList); err != nil {
				return fmt.Errorf("reconcile failed: %w", err)
			}
		}
	}

	if mode != "main" {
		fmt.Fprintf(out, "Custom collections reconciled: %d\n", collections)
	}
	fmt.Fprintf(out, "%s✓ Reconcile complete%s\n", colorGreen, colorReset)
	return nil
}
