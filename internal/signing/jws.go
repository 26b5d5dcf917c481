package signing

import (
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// jwsHeader is the protected header of a collection signature.
type jwsHeader struct {
	Alg string   `json:"alg"`
	X5C []string `json:"x5c"`
}

// jws is a decoded compact serialization.
type jws struct {
	header       jwsHeader
	chain        []*x509.Certificate
	payload      []byte
	signingInput string
	signature    []byte
}

var segment = base64.RawURLEncoding

// encodeJWS signs payload with key and returns the compact form.
func encodeJWS(payload []byte, key crypto.Signer, chain []*x509.Certificate) (string, error) {
	method, err := signingMethod(key.Public())
	if err != nil {
		return "", err
	}

	h := jwsHeader{Alg: method.Alg(), X5C: make([]string, len(chain))}
	for i, c := range chain {
		h.X5C[i] = base64.StdEncoding.EncodeToString(c.Raw)
	}
	hb, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("failed to encode header: %w", err)
	}

	input := segment.EncodeToString(hb) + "." + segment.EncodeToString(payload)
	sig, err := method.Sign(input, key)
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}
	return input + "." + segment.EncodeToString(sig), nil
}

// decodeJWS parses a compact JWS without verifying it.
func decodeJWS(s string) (*jws, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid signature format: expected 3 segments, got %d", len(parts))
	}

	hb, err := segment.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid signature header encoding: %w", err)
	}
	var h jwsHeader
	if err := json.Unmarshal(hb, &h); err != nil {
		return nil, fmt.Errorf("invalid signature header: %w", err)
	}
	if len(h.X5C) == 0 {
		return nil, fmt.Errorf("invalid signature header: missing x5c")
	}

	payload, err := segment.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid signature payload encoding: %w", err)
	}
	sig, err := segment.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}

	chain := make([]*x509.Certificate, 0, len(h.X5C))
	for i, enc := range h.X5C {
		der, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("invalid x5c[%d] encoding: %w", i, err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("invalid x5c[%d]: %w", i, err)
		}
		chain = append(chain, cert)
	}

	return &jws{
		header:       h,
		chain:        chain,
		payload:      payload,
		signingInput: parts[0] + "." + parts[1],
		signature:    sig,
	}, nil
}

// verify checks the signature with the leaf key. The header alg must be
// the one the leaf key implies.
func (j *jws) verify() error {
	leaf := j.chain[0]
	method, err := signingMethod(leaf.PublicKey)
	if err != nil {
		return err
	}
	if j.header.Alg != method.Alg() {
		return fmt.Errorf("algorithm %q does not match leaf key (%s)", j.header.Alg, method.Alg())
	}
	if jwt.GetSigningMethod(j.header.Alg) == nil {
		return fmt.Errorf("unknown algorithm %q", j.header.Alg)
	}
	return method.Verify(j.signingInput, j.signature, leaf.PublicKey)
}
