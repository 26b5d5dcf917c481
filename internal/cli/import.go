package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkgindex/pkgindex/internal/models"
	otelobs "github.com/pkgindex/pkgindex/internal/observability/otel"
	"github.com/pkgindex/pkgindex/internal/observability/receipt"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

var importCmd = &cobra.Command{
	Use:   "import <seed.json>",
	Short: "Load packages, versions and builds into the catalog",
	Long: `Import reads a JSON array of packages with their repository, versions,
products, targets and builds, and creates them in the catalog. It is meant
for seeding a local database to generate collections from.

Example:
  pkgindex import testdata/seed.json`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func GetImportCmd() *cobra.Command {
	return importCmd
}

func runImport(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "pkgindex import", os.Args[1:])
	var added int
	defer func() {
		_ = sess.Finish(err, receipt.WithReconcile(added, 0, 0))
	}()

	ctx, end := otelobs.StartSpan(ctx, "pkgindex.import", attribute.String("pkgindex.input", args[0]))
	defer func() { end(err) }()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	var pkgs []models.Package
	if err := json.Unmarshal(data, &pkgs); err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}

	cfg, err := configFrom(ctx)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Import(ctx, pkgs); err != nil {
		return err
	}
	added = len(pkgs)

	fmt.Fprintf(cmd.OutOrStdout(), "%s✓ Imported %d packages%s\n", colorGreen, added, colorReset)
	return nil
}
