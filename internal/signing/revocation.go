package signing

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/pkgindex/pkgindex/internal/observability/logging"
	"golang.org/x/crypto/ocsp"
)

// RevocationPolicy decides what an unreachable revocation source means.
type RevocationPolicy string

const (
	// RevocationStrict fails when status cannot be determined.
	RevocationStrict RevocationPolicy = "strict"
	// RevocationBestEffort logs and continues when status cannot be determined.
	RevocationBestEffort RevocationPolicy = "best-effort"
	// RevocationOff skips revocation checks.
	RevocationOff RevocationPolicy = "off"
)

// ParseRevocationPolicy accepts the config spellings; empty is best-effort.
func ParseRevocationPolicy(s string) (RevocationPolicy, error) {
	switch p := RevocationPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return RevocationBestEffort, nil
	case RevocationStrict, RevocationBestEffort, RevocationOff:
		return p, nil
	default:
		return "", fmt.Errorf("unknown revocation policy %q (strict, best-effort, off)", s)
	}
}

var (
	ErrRevoked                = errors.New("certificate revoked")
	ErrRevocationUnavailable  = errors.New("revocation status unavailable")
	errNoRevocationEndpoints  = errors.New("certificate names no revocation endpoint")
	errRevocationNotSupported = errors.New("no fetcher configured for revocation checks")
)

// checkRevocation checks every non-root certificate of a verified chain.
func (s *Signer) checkRevocation(ctx context.Context, chain []*x509.Certificate) error {
	if s.revocation == RevocationOff {
		return nil
	}

	for i := 0; i < len(chain)-1; i++ {
		cert, issuer := chain[i], chain[i+1]
		err := s.certStatus(ctx, cert, issuer)
		switch {
		case err == nil, errors.Is(err, errNoRevocationEndpoints):
			continue
		case errors.Is(err, ErrRevoked):
			return fmt.Errorf("%s (serial %s): %w", cert.Subject.CommonName, cert.SerialNumber, err)
		case s.revocation == RevocationStrict:
			return fmt.Errorf("%s: %w: %w", cert.Subject.CommonName, ErrRevocationUnavailable, err)
		default:
			logging.From(ctx).Warn(component, "revocation status unavailable",
				"subject", cert.Subject.CommonName, "serial", cert.SerialNumber.String(), "error", err.Error())
		}
	}
	return nil
}

// certStatus prefers OCSP and falls back to CRLs.
func (s *Signer) certStatus(ctx context.Context, cert, issuer *x509.Certificate) error {
	if len(cert.OCSPServer) == 0 && len(cert.CRLDistributionPoints) == 0 {
		return errNoRevocationEndpoints
	}
	if s.getter == nil {
		return errRevocationNotSupported
	}
	if len(cert.OCSPServer) > 0 {
		return s.ocspStatus(ctx, cert, issuer)
	}
	return s.crlStatus(ctx, cert, issuer)
}

func (s *Signer) ocspStatus(ctx context.Context, cert, issuer *x509.Certificate) error {
	req, err := ocsp.CreateRequest(cert, issuer, nil)
	if err != nil {
		return fmt.Errorf("ocsp request: %w", err)
	}
	encoded := url.PathEscape(base64.StdEncoding.EncodeToString(req))

	var lastErr error
	for _, server := range cert.OCSPServer {
		body, err := s.getter.Get(ctx, strings.TrimSuffix(server, "/")+"/"+encoded)
		if err != nil {
			lastErr = err
			continue
		}
		resp, err := ocsp.ParseResponseForCert(body, cert, issuer)
		if err != nil {
			lastErr = fmt.Errorf("ocsp response: %w", err)
			continue
		}
		switch resp.Status {
		case ocsp.Good:
			return nil
		case ocsp.Revoked:
			return ErrRevoked
		default:
			lastErr = fmt.Errorf("ocsp status unknown from %s", server)
		}
	}
	return lastErr
}

func (s *Signer) crlStatus(ctx context.Context, cert, issuer *x509.Certificate) error {
	var lastErr error
	for _, dp := range cert.CRLDistributionPoints {
		der, err := s.getter.Get(ctx, dp)
		if err != nil {
			lastErr = err
			continue
		}
		crl, err := x509.ParseRevocationList(der)
		if err != nil {
			lastErr = fmt.Errorf("crl %s: %w", dp, err)
			continue
		}
		if err := crl.CheckSignatureFrom(issuer); err != nil {
			lastErr = fmt.Errorf("crl %s signature: %w", dp, err)
			continue
		}
		if !crl.NextUpdate.IsZero() && s.now().After(crl.NextUpdate) {
			lastErr = fmt.Errorf("crl %s expired at %s", dp, crl.NextUpdate)
			continue
		}
		for _, entry := range crl.RevokedCertificateEntries {
			if entry.SerialNumber.Cmp(cert.SerialNumber) == 0 {
				return ErrRevoked
			}
		}
		return nil
	}
	return lastErr
}
