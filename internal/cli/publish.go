package cli

import (
	"fmt"
	"os"
	"path/filepath"

	otelobs "github.com/pkgindex/pkgindex/internal/observability/otel"
	"github.com/pkgindex/pkgindex/internal/observability/receipt"
	"github.com/pkgindex/pkgindex/internal/publish"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

var publishCmd = &cobra.Command{
	Use:   "publish <signed.json> <ref>",
	Short: "Push a signed collection to an OCI registry",
	Long: `Publish verifies a signed collection and pushes it to an OCI registry as
a single-layer artifact. The pinned reference (repo@digest) is printed.

Registry credentials come from the Docker config.

Example:
  pkgindex publish signed.json ghcr.io/acme/collections/featured:latest
  pkgindex publish signed.json localhost:5000/featured:v1 --insecure --root root.pem`,
	Args: cobra.ExactArgs(2),
	RunE: runPublish,
}

var (
	publishInsecureFlag   bool
	publishSkipVerifyFlag bool
	publishSignerFlags    signerFlags
	pullInsecureFlag      bool
	pullOutputFlag        string
	pullVerifyFlag        bool
	pullVerifySignerFlags signerFlags
)

func init() {
	publishCmd.Flags().BoolVar(&publishInsecureFlag, "insecure", false, "Allow plain HTTP registries")
	publishCmd.Flags().BoolVar(&publishSkipVerifyFlag, "skip-verify", false, "Push without verifying the signature first")
	addSignerFlags(publishCmd, &publishSignerFlags, false)

	pullCmd.Flags().BoolVar(&pullInsecureFlag, "insecure", false, "Allow plain HTTP registries")
	pullCmd.Flags().StringVarP(&pullOutputFlag, "output", "o", "", "Write the document to this file (default: stdout)")
	pullCmd.Flags().BoolVar(&pullVerifyFlag, "verify", false, "Verify the pulled document's signature")
	addSignerFlags(pullCmd, &pullVerifySignerFlags, false)
}

func GetPublishCmd() *cobra.Command {
	return publishCmd
}

func runPublish(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "pkgindex publish", os.Args[1:])
	var pushed *publish.Result
	defer func() {
		var opts []receipt.Option
		if pushed != nil {
			opts = append(opts, receipt.WithPublish(pushed.Reference, pushed.Digest))
		}
		_ = sess.Finish(err, opts...)
	}()

	ctx, end := otelobs.StartSpan(ctx, "pkgindex.publish", attribute.String("pkgindex.ref", args[1]))
	defer func() { end(err) }()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	if !publishSkipVerifyFlag {
		cfg, err := configFrom(ctx)
		if err != nil {
			return err
		}
		signer, closeSigner, err := newSigner(cfg, publishSignerFlags.apply(cfg.Signing), false)
		if err != nil {
			return err
		}
		defer closeSigner()
		valid, err := signer.ValidateJSON(ctx, data)
		if err != nil {
			return fmt.Errorf("verification error: %w", err)
		}
		if !valid {
			return fmt.Errorf("refusing to publish %s: %w", args[0], ErrVerificationFailed)
		}
	}

	opts := []publish.Option{publish.WithTitle(filepath.Base(args[0]))}
	if publishInsecureFlag {
		opts = append(opts, publish.WithInsecure())
	}
	pushed, err = publish.Push(ctx, data, args[1], opts...)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s✓ Published%s %s\n", colorGreen, colorReset, pushed.Reference)
	return nil
}

var pullCmd = &cobra.Command{
	Use:   "pull <ref>",
	Short: "Fetch a published collection from an OCI registry",
	Long: `Pull downloads a collection pushed with "pkgindex publish".

Example:
  pkgindex pull ghcr.io/acme/collections/featured:latest -o featured.json --verify`,
	Args: cobra.ExactArgs(1),
	RunE: runPull,
}

func GetPullCmd() *cobra.Command {
	return pullCmd
}

func runPull(cmd *cobra.Command, args []string) (err error) {
	ctx, end := otelobs.StartSpan(cmd.Context(), "pkgindex.pull", attribute.String("pkgindex.ref", args[0]))
	defer func() { end(err) }()

	var opts []publish.Option
	if pullInsecureFlag {
		opts = append(opts, publish.WithInsecure())
	}
	data, err := publish.Pull(ctx, args[0], opts...)
	if err != nil {
		return err
	}

	if pullVerifyFlag {
		cfg, err := configFrom(ctx)
		if err != nil {
			return err
		}
		signer, closeSigner, err := newSigner(cfg, pullVerifySignerFlags.apply(cfg.Signing), false)
		if err != nil {
			return err
		}
		defer closeSigner()
		valid, err := signer.ValidateJSON(ctx, data)
		if err != nil {
			return fmt.Errorf("verification error: %w", err)
		}
		if !valid {
			return ErrVerificationFailed
		}
	}

	if pullOutputFlag == "" || pullOutputFlag == "-" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(pullOutputFlag, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", pullOutputFlag, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s✓ Saved%s %s\n", colorGreen, colorReset, pullOutputFlag)
	return nil
}
