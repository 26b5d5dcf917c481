package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkgindex/pkgindex/internal/observability/logging"
	otelobs "github.com/pkgindex/pkgindex/internal/observability/otel"
	"github.com/pkgindex/pkgindex/internal/observability/receipt"
	"github.com/pkgindex/pkgindex/internal/signing"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

// ErrVerificationFailed is returned when a signed collection does not
// validate.
var ErrVerificationFailed = errors.New("signature verification failed")

// keygenCmd represents the keygen command
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a development signing chain",
	Long: `Generate an ECDSA P-256 root certificate and a code signing leaf issued
by it, for signing collections locally.

This creates three files in --dir:
  - signing.key: Keep this secret! Used to sign collections.
  - chain.pem:   The leaf and root certificates, leaf first.
  - root.pem:    The root to trust when verifying.

Example:
  pkgindex keygen
  pkgindex keygen --dir ./keys`,
	Args: cobra.NoArgs,
	RunE: runKeygen,
}

var keygenDirFlag string

func init() {
	keygenCmd.Flags().StringVar(&keygenDirFlag, "dir", ".", "Directory for the generated files")
}

// GetKeygenCmd returns the keygen command
func GetKeygenCmd() *cobra.Command {
	return keygenCmd
}

func runKeygen(cmd *cobra.Command, args []string) error {
	for _, name := range []string{"signing.key", "chain.pem", "root.pem"} {
		p := filepath.Join(keygenDirFlag, name)
		if _, err := os.Stat(p); err == nil {
			return fmt.Errorf("%s already exists (use a different --dir or delete it)", p)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Generating development certificate chain...")
	chain, err := signing.GenerateDevChain(keygenDirFlag)
	if err != nil {
		return fmt.Errorf("key generation failed: %w", err)
	}

	fmt.Fprintf(out, "%s✓ Private key saved:       %s%s\n", colorGreen, chain.KeyPath, colorReset)
	fmt.Fprintf(out, "%s✓ Certificate chain saved: %s%s\n", colorGreen, chain.ChainPath, colorReset)
	fmt.Fprintf(out, "%s✓ Trusted root saved:      %s%s\n", colorGreen, chain.RootPath, colorReset)
	fmt.Fprintf(out, "\n%s⚠ Keep your private key secret!%s\n", colorRed, colorReset)
	return nil
}

// signCmd signs collections
var signCmd = &cobra.Command{
	Use:   "sign <collection.json>",
	Short: "Sign a collection document",
	Long: `Sign a collection document with the configured private key and
certificate chain.

The certificate chain is validated against the trusted roots and checked
for revocation before signing. The signature is a compact JWS over the
canonical (RFC 8785) JSON form of the collection, with the chain in the
x5c header.

Example:
  pkgindex sign collection.json -o signed.json
  pkgindex sign collection.json --key signing.key --chain chain.pem --root root.pem`,
	Args: cobra.ExactArgs(1),
	RunE: runSign,
}

var (
	signOutputFlag  string
	signSignerFlags signerFlags
)

func init() {
	signCmd.Flags().StringVarP(&signOutputFlag, "output", "o", "", "Write the signed document to this file (default: stdout)")
	addSignerFlags(signCmd, &signSignerFlags, true)
}

func GetSignCmd() *cobra.Command {
	return signCmd
}

func addSignerFlags(cmd *cobra.Command, f *signerFlags, withKey bool) {
	if withKey {
		cmd.Flags().StringVarP(&f.key, "key", "k", "", "Private key PEM (overrides signing.private_key)")
		cmd.Flags().StringVar(&f.chain, "chain", "", "Certificate chain PEM, leaf first (overrides signing.certificate_chain)")
	}
	cmd.Flags().StringSliceVar(&f.roots, "root", nil, "Trusted root PEM (overrides signing.trusted_roots)")
	cmd.Flags().StringVar(&f.revocation, "revocation", "", "Revocation policy: strict, best-effort or off")
}

func runSign(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "pkgindex sign", os.Args[1:])
	var receiptOpts []receipt.Option
	defer func() {
		_ = sess.Finish(err, receiptOpts...)
	}()

	ctx, end := otelobs.StartSpan(ctx, "pkgindex.sign", attribute.String("pkgindex.input", args[0]))
	defer func() { end(err) }()

	cfg, err := configFrom(ctx)
	if err != nil {
		return err
	}
	c, err := readCollection(args[0])
	if err != nil {
		return err
	}

	signer, closeSigner, err := newSigner(cfg, signSignerFlags.apply(cfg.Signing), true)
	if err != nil {
		return err
	}
	defer closeSigner()

	signed, err := signer.Sign(ctx, c)
	if err != nil {
		return fmt.Errorf("signing failed: %w", err)
	}
	if err := writeDocument(cmd.OutOrStdout(), signOutputFlag, signed); err != nil {
		return err
	}

	cert := signed.Signature.Certificate
	receiptOpts = append(receiptOpts,
		receipt.WithSignature(nameString(cert.Subject), nameString(cert.Issuer), nil),
		receipt.WithCollection(c.Name, signOutputFlag, len(c.Packages), countVersions(c)),
	)
	logging.From(ctx).Info("cli", "collection signed", "name", c.Name, "subject", nameString(cert.Subject))

	if signOutputFlag != "" && signOutputFlag != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s✓ Collection signed successfully%s\n", colorGreen, colorReset)
		fmt.Fprintf(cmd.ErrOrStderr(), "  Signed document saved to: %s\n", signOutputFlag)
	}
	return nil
}

// verifyCmd verifies signatures
var verifyCmd = &cobra.Command{
	Use:   "verify <signed.json>",
	Short: "Verify a signed collection",
	Long: `Verify that a signed collection matches its signature, that the signing
chain leads to a trusted root and that no certificate in it is revoked.

Returns exit code 0 if valid, 1 if verification fails.

Example:
  pkgindex verify signed.json --root root.pem
  pkgindex verify signed.json --revocation strict`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

var verifySignerFlags signerFlags

func init() {
	addSignerFlags(verifyCmd, &verifySignerFlags, false)
}

func GetVerifyCmd() *cobra.Command {
	return verifyCmd
}

func runVerify(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "pkgindex verify", os.Args[1:])
	var subject, issuer string
	var valid bool
	defer func() {
		_ = sess.Finish(err, receipt.WithSignature(subject, issuer, &valid))
	}()

	ctx, end := otelobs.StartSpan(ctx, "pkgindex.verify", attribute.String("pkgindex.input", args[0]))
	defer func() { end(err) }()

	log := logging.From(ctx)
	start := time.Now()
	log.Event(ctx, "verify.start", nil)
	defer func() {
		log.Event(ctx, "verify.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"valid":       valid,
		})
	}()

	cfg, err := configFrom(ctx)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	var doc signing.SignedCollection
	if err := json.Unmarshal(data, &doc); err == nil {
		subject = nameString(doc.Signature.Certificate.Subject)
		issuer = nameString(doc.Signature.Certificate.Issuer)
	}

	signer, closeSigner, err := newSigner(cfg, verifySignerFlags.apply(cfg.Signing), false)
	if err != nil {
		return err
	}
	defer closeSigner()

	valid, err = signer.ValidateJSON(ctx, data)
	if err != nil {
		return fmt.Errorf("verification error: %w", err)
	}

	if !valid {
		fmt.Fprintf(cmd.OutOrStdout(), "%s❌ TAMPER DETECTED%s\n", colorRed, colorReset)
		return ErrVerificationFailed
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s✅ Signature Verified%s\n", colorGreen, colorReset)
	if subject != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "  Signed by: %s\n", subject)
	}
	return nil
}

// nameString renders a certificate name as "CN, OU, O".
func nameString(n signing.CertificateName) string {
	var parts []string
	for _, p := range []*string{n.CommonName, n.OrganizationalUnit, n.Organization} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	return strings.Join(parts, ", ")
}
