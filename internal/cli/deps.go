package cli

import (
	"bytes"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkgindex/pkgindex/internal/collection"
	"github.com/pkgindex/pkgindex/internal/config"
	"github.com/pkgindex/pkgindex/internal/fetch"
	"github.com/pkgindex/pkgindex/internal/signing"
	"github.com/pkgindex/pkgindex/internal/store"
	"github.com/pkgindex/pkgindex/internal/version"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

func openStore(cfg *config.Config) (*store.GormStore, error) {
	st, err := store.Open(cfg.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// newGetter builds the HTTP client stack from config. Call the returned
// func to release it.
func newGetter(cfg *config.Config) (fetch.Getter, func()) {
	ua := cfg.Fetch.UserAgent
	if ua == "" {
		ua = version.UserAgent()
	}
	f := fetch.NewFetcher(
		fetch.WithTimeout(cfg.Fetch.Timeout),
		fetch.WithMaxRetries(cfg.Fetch.MaxRetries),
		fetch.WithUserAgent(ua),
	)
	return fetch.NewCircuitBreakerFetcher(f, cfg.Fetch.CircuitBreakerThreshold), f.Close
}

// signerFlags override the signing section of the config.
type signerFlags struct {
	key        string
	chain      string
	roots      []string
	revocation string
}

func (f signerFlags) apply(sc config.SigningConfig) config.SigningConfig {
	if f.key != "" {
		sc.PrivateKey = f.key
	}
	if f.chain != "" {
		sc.CertificateChain = f.chain
	}
	if len(f.roots) > 0 {
		sc.TrustedRoots = f.roots
	}
	if f.revocation != "" {
		sc.Revocation = f.revocation
	}
	return sc
}

// newSigner builds a Signer. withKey loads the private key and chain.
func newSigner(cfg *config.Config, sc config.SigningConfig, withKey bool) (*signing.Signer, func(), error) {
	revocation, err := signing.ParseRevocationPolicy(sc.Revocation)
	if err != nil {
		return nil, nil, err
	}

	var roots *x509.CertPool
	if len(sc.TrustedRoots) > 0 {
		pool, err := signing.LoadCertPool(sc.TrustedRoots...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load trusted roots: %w", err)
		}
		roots = pool
	}

	getter, closeGetter := newGetter(cfg)
	opts := []signing.Option{
		signing.WithRevocation(revocation),
		signing.WithGetter(getter),
	}

	if withKey {
		if sc.PrivateKey == "" || sc.CertificateChain == "" {
			closeGetter()
			return nil, nil, fmt.Errorf("%w: set signing.private_key and signing.certificate_chain", signing.ErrNoSigningKey)
		}
		key, err := signing.LoadPrivateKey(sc.PrivateKey)
		if err != nil {
			closeGetter()
			return nil, nil, fmt.Errorf("failed to load private key: %w", err)
		}
		chain, err := signing.LoadCertificates(sc.CertificateChain)
		if err != nil {
			closeGetter()
			return nil, nil, fmt.Errorf("failed to load certificate chain: %w", err)
		}
		opts = append(opts, signing.WithKey(key, chain))
	}

	return signing.New(roots, opts...), closeGetter, nil
}

// readCollection loads a collection document, unwrapping a signed one.
func readCollection(path string) (*collection.Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var probe struct {
		Collection json.RawMessage `json:"collection"`
		Signature  json.RawMessage `json:"signature"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(probe.Collection) > 0 && len(probe.Signature) > 0 {
		data = probe.Collection
	}

	var c collection.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &c, nil
}

func marshalDocument(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return buf.Bytes(), nil
}

// writeDocument writes v as indented JSON to path, or to out when path is
// empty or "-".
func writeDocument(out io.Writer, path string, v any) error {
	data, err := marshalDocument(v)
	if err != nil {
		return err
	}
	if path == "" || path == "-" {
		_, err := out.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func countVersions(c *collection.Collection) int {
	n := 0
	for _, p := range c.Packages {
		n += len(p.Versions)
	}
	return n
}
