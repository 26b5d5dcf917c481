// Package signing signs package collections with an X.509 certificate
// chain and validates signed collections.
package signing

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pkgindex/pkgindex/internal/canonical"
	"github.com/pkgindex/pkgindex/internal/collection"
	"github.com/pkgindex/pkgindex/internal/fetch"
	"github.com/pkgindex/pkgindex/internal/observability/logging"
)

const component = "signing"

var (
	ErrInvalidCertificateChain = errors.New("invalid certificate chain")
	ErrKeyMismatch             = errors.New("certificate does not match private key")
	ErrNoSigningKey            = errors.New("no signing key configured")
)

// oidUserID is the LDAP uid attribute (0.9.2342.19200300.100.1.1).
var oidUserID = asn1.ObjectIdentifier{0, 9, 2342, 19200300, 100, 1, 1}

// SignedCollection is a collection with its detached signature.
type SignedCollection struct {
	Collection collection.Collection `json:"collection"`
	Signature  Signature             `json:"signature"`
}

type Signature struct {
	// Signature is a compact JWS over the canonical collection.
	Signature   string      `json:"signature"`
	Certificate Certificate `json:"certificate"`
}

// Certificate names the signing certificate.
type Certificate struct {
	Subject CertificateName `json:"subject"`
	Issuer  CertificateName `json:"issuer"`
}

type CertificateName struct {
	UserID             *string `json:"userID,omitempty"`
	CommonName         *string `json:"commonName,omitempty"`
	OrganizationalUnit *string `json:"organizationalUnit,omitempty"`
	Organization       *string `json:"organization,omitempty"`
}

// Signer signs and validates collections. Without a key it only validates.
type Signer struct {
	key        crypto.Signer
	chain      []*x509.Certificate
	roots      *x509.CertPool
	revocation RevocationPolicy
	getter     fetch.Getter
	now        func() time.Time
}

type Option func(*Signer)

// WithKey sets the signing key and its chain, leaf first.
func WithKey(key crypto.Signer, chain []*x509.Certificate) Option {
	return func(s *Signer) {
		s.key = key
		s.chain = chain
	}
}

func WithRevocation(p RevocationPolicy) Option {
	return func(s *Signer) {
		s.revocation = p
	}
}

// WithGetter sets the client used for OCSP and CRL requests.
func WithGetter(g fetch.Getter) Option {
	return func(s *Signer) {
		s.getter = g
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a Signer trusting roots. A nil pool uses the system roots.
func New(roots *x509.CertPool, opts ...Option) *Signer {
	s := &Signer{
		roots:      roots,
		revocation: RevocationBestEffort,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Identity describes the signing certificate as a version signer.
func (s *Signer) Identity() *collection.Signer {
	if len(s.chain) == 0 {
		return nil
	}
	subj := s.chain[0].Subject
	return &collection.Signer{
		Type:                   "ADP",
		CommonName:             subj.CommonName,
		OrganizationalUnitName: first(subj.OrganizationalUnit),
		OrganizationName:       first(subj.Organization),
	}
}

// Sign validates the configured chain and signs c.
func (s *Signer) Sign(ctx context.Context, c *collection.Collection) (*SignedCollection, error) {
	if s.key == nil || len(s.chain) == 0 {
		return nil, ErrNoSigningKey
	}
	leaf := s.chain[0]
	if !sameKey(leaf, s.key) {
		return nil, ErrKeyMismatch
	}

	verified, err := s.verifyChain(s.chain)
	if err != nil {
		return nil, err
	}
	if err := s.checkRevocation(ctx, verified); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCertificateChain, err)
	}

	payload, err := canonical.Canonicalize(c)
	if err != nil {
		return nil, err
	}
	sig, err := encodeJWS(payload, s.key, s.chain)
	if err != nil {
		return nil, err
	}

	logging.From(ctx).Info(component, "signed collection",
		"name", c.Name, "subject", leaf.Subject.CommonName, "packages", len(c.Packages))
	return &SignedCollection{
		Collection: *c,
		Signature: Signature{
			Signature: sig,
			Certificate: Certificate{
				Subject: nameOf(leaf.Subject),
				Issuer:  nameOf(leaf.Issuer),
			},
		},
	}, nil
}

// Validate checks sc. See ValidateJSON.
func (s *Signer) Validate(ctx context.Context, sc *SignedCollection) (bool, error) {
	data, err := json.Marshal(sc)
	if err != nil {
		return false, err
	}
	return s.ValidateJSON(ctx, data)
}

// ValidateJSON checks a signed collection document. A well-formed document
// that was altered, signed by the wrong key, chains to no trusted root or
// carries a revoked certificate yields (false, nil). Malformed input yields
// an error.
func (s *Signer) ValidateJSON(ctx context.Context, data []byte) (bool, error) {
	var doc struct {
		Collection json.RawMessage `json:"collection"`
		Signature  Signature       `json:"signature"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, fmt.Errorf("invalid signed collection: %w", err)
	}
	if len(doc.Collection) == 0 {
		return false, errors.New("invalid signed collection: missing collection")
	}

	j, err := decodeJWS(doc.Signature.Signature)
	if err != nil {
		return false, err
	}
	canon, err := canonical.Transform(doc.Collection)
	if err != nil {
		return false, err
	}

	log := logging.From(ctx)
	reject := func(reason string, err error) (bool, error) {
		fields := []any{"reason", reason}
		if err != nil {
			fields = append(fields, "error", err.Error())
		}
		log.Warn(component, "signature rejected", fields...)
		return false, nil
	}

	if !bytes.Equal(canon, j.payload) {
		return reject("collection does not match signed payload", nil)
	}
	if err := j.verify(); err != nil {
		return reject("bad signature", err)
	}
	leaf := j.chain[0]
	if !sameName(doc.Signature.Certificate.Subject, nameOf(leaf.Subject)) {
		return reject("certificate subject mismatch", nil)
	}
	verified, err := s.verifyChain(j.chain)
	if err != nil {
		return reject("untrusted chain", err)
	}
	if err := s.checkRevocation(ctx, verified); err != nil {
		return reject("revocation", err)
	}
	return true, nil
}

// verifyChain verifies chain (leaf first) against the trusted roots and
// returns the verified path, root last.
func (s *Signer) verifyChain(chain []*x509.Certificate) ([]*x509.Certificate, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: empty chain", ErrInvalidCertificateChain)
	}
	inter := x509.NewCertPool()
	for _, c := range chain[1:] {
		inter.AddCert(c)
	}

	chains, err := chain[0].Verify(x509.VerifyOptions{
		Roots:         s.roots,
		Intermediates: inter,
		CurrentTime:   s.now(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCertificateChain, err)
	}
	return chains[0], nil
}

func nameOf(n pkix.Name) CertificateName {
	out := CertificateName{
		CommonName:         ptr(n.CommonName),
		OrganizationalUnit: ptr(first(n.OrganizationalUnit)),
		Organization:       ptr(first(n.Organization)),
	}
	for _, atv := range n.Names {
		if atv.Type.Equal(oidUserID) {
			if v, ok := atv.Value.(string); ok {
				out.UserID = ptr(v)
			}
		}
	}
	return out
}

func sameName(a, b CertificateName) bool {
	eq := func(x, y *string) bool {
		if x == nil || y == nil {
			return x == y
		}
		return *x == *y
	}
	return eq(a.UserID, b.UserID) && eq(a.CommonName, b.CommonName) &&
		eq(a.OrganizationalUnit, b.OrganizationalUnit) && eq(a.Organization, b.Organization)
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
