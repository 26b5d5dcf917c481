package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pkgindex/pkgindex/internal/collection"
	"github.com/pkgindex/pkgindex/internal/observability/logging"
	otelobs "github.com/pkgindex/pkgindex/internal/observability/otel"
	"github.com/pkgindex/pkgindex/internal/observability/receipt"
	"github.com/pkgindex/pkgindex/internal/signing"
	"github.com/pkgindex/pkgindex/internal/store"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render a package collection from the catalog",
	Long: `Generate renders a package collection document for packages selected by
URL, by repository owner or by custom collection membership. Each package
lists its significant versions: the latest release, pre-release and
default branch build, newest first.

With --policy or --preset the document must pass the policy before it is
written. With --sign the document is signed using the configured key.

Example:
  pkgindex generate --author apple -o apple.json
  pkgindex generate --url https://github.com/apple/swift-nio.git --name NIO
  pkgindex generate --collection Featured --preset strict --sign -o featured.json`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

var (
	generateURLsFlag       []string
	generateAuthorFlag     string
	generateCollectionFlag string
	generateNameFlag       string
	generateOverviewFlag   string
	generateKeywordsFlag   []string
	generateRevisionFlag   int
	generateAuthorNameFlag string
	generateOutputFlag     string
	generatePolicyFlag     string
	generatePresetFlag     string
	generateSignFlag       bool
	generateSignerFlags    signerFlags
)

func init() {
	f := generateCmd.Flags()
	f.StringSliceVar(&generateURLsFlag, "url", nil, "Package URL to include (repeatable)")
	f.StringVar(&generateAuthorFlag, "author", "", "Include every package owned by this repository owner")
	f.StringVar(&generateCollectionFlag, "collection", "", "Include the members of this custom collection")
	f.StringVar(&generateNameFlag, "name", "", "Collection name")
	f.StringVar(&generateOverviewFlag, "overview", "", "Collection overview")
	f.StringSliceVar(&generateKeywordsFlag, "keyword", nil, "Collection keyword (repeatable)")
	f.IntVar(&generateRevisionFlag, "revision", 0, "Collection revision")
	f.StringVar(&generateAuthorNameFlag, "author-name", "", "Name recorded as the collection's generator")
	f.StringVarP(&generateOutputFlag, "output", "o", "", "Write the document to this file (default: stdout)")
	f.StringVarP(&generatePolicyFlag, "policy", "P", "", "Gate the document on this policy file")
	f.StringVar(&generatePresetFlag, "preset", "", "Gate the document on a built-in policy preset")
	f.BoolVar(&generateSignFlag, "sign", false, "Sign the document")
	addSignerFlags(generateCmd, &generateSignerFlags, true)

	generateCmd.MarkFlagsOneRequired("url", "author", "collection")
	generateCmd.MarkFlagsMutuallyExclusive("url", "author", "collection")
	generateCmd.MarkFlagsMutuallyExclusive("policy", "preset")
}

// GetGenerateCmd returns the generate command
func GetGenerateCmd() *cobra.Command {
	return generateCmd
}

func generateFilter() store.Filter {
	switch {
	case generateAuthorFlag != "":
		return store.ByAuthor(generateAuthorFlag)
	case generateCollectionFlag != "":
		return store.ByCustomCollection(generateCollectionFlag)
	default:
		return store.ByURLs(generateURLsFlag...)
	}
}

func runGenerate(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "pkgindex generate", os.Args[1:])
	var receiptOpts []receipt.Option
	defer func() {
		_ = sess.Finish(err, receiptOpts...)
	}()

	filter := generateFilter()
	ctx, end := otelobs.StartSpan(ctx, "pkgindex.generate", attribute.String("pkgindex.filter", filter.String()))
	defer func() { end(err) }()

	log := logging.From(ctx)
	start := time.Now()
	log.Event(ctx, "generate.start", map[string]any{"filter": filter.String()})
	defer func() {
		result := "success"
		if err != nil {
			result = "fail"
		}
		log.Event(ctx, "generate.complete", map[string]any{
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

	opts := collection.Options{
		AuthorName:     generateAuthorNameFlag,
		CollectionName: generateNameFlag,
		Keywords:       generateKeywordsFlag,
		Overview:       generateOverviewFlag,
	}
	if cmd.Flags().Changed("revision") {
		rev := generateRevisionFlag
		opts.Revision = &rev
	}

	var signer *signing.Signer
	if generateSignFlag {
		s, closeSigner, err := newSigner(cfg, generateSignerFlags.apply(cfg.Signing), true)
		if err != nil {
			return err
		}
		defer closeSigner()
		signer = s
		opts.Signer = s.Identity()
	}

	c, err := collection.NewGenerator(st).Generate(ctx, filter, opts)
	if err != nil {
		if errors.Is(err, collection.ErrNoResults) {
			return fmt.Errorf("no packages with publishable versions match %s: %w", filter, collection.ErrNoResults)
		}
		return err
	}

	if generatePolicyFlag != "" || generatePresetFlag != "" {
		pcfg, name, err := loadPolicyWithPreset(generatePolicyFlag, generatePresetFlag)
		if err != nil {
			return fmt.Errorf("failed to load policy: %w", err)
		}
		hits, err := evaluatePolicy(cmd.ErrOrStderr(), pcfg, c)
		status := "pass"
		if err != nil {
			status = "fail"
		}
		receiptOpts = append(receiptOpts, receipt.WithPolicy(name, status, hits))
		if err != nil {
			return err
		}
	}

	var doc any = c
	if signer != nil {
		signed, err := signer.Sign(ctx, c)
		if err != nil {
			return fmt.Errorf("signing failed: %w", err)
		}
		cert := signed.Signature.Certificate
		receiptOpts = append(receiptOpts, receipt.WithSignature(nameString(cert.Subject), nameString(cert.Issuer), nil))
		doc = signed
	}

	if err := writeDocument(cmd.OutOrStdout(), generateOutputFlag, doc); err != nil {
		return err
	}
	receiptOpts = append(receiptOpts, receipt.WithCollection(c.Name, generateOutputFlag, len(c.Packages), countVersions(c)))

	if generateOutputFlag != "" && generateOutputFlag != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s✓ Collection %q written to %s (%d packages, %d versions)%s\n",
			colorGreen, c.Name, generateOutputFlag, len(c.Packages), countVersions(c), colorReset)
	}
	return nil
}
