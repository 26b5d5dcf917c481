package signing

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"
)

// DevChain lists the files written by GenerateDevChain.
type DevChain struct {
	KeyPath   string
	ChainPath string
	RootPath  string
}

// GenerateDevChain writes a self-signed ECDSA P-256 root and a code signing
// leaf issued by it into dir. The chain file holds leaf then root.
func GenerateDevChain(dir string) (*DevChain, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	now := time.Now()

	// root
	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate root key: %w", err)
	}
	rootTmpl := &x509.Certificate{
		SerialNumber:          serial(),
		Subject:               pkix.Name{CommonName: "pkgindex development root", Organization: []string{"pkgindex"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.AddDate(10, 0, 0),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTmpl, rootTmpl, &rootKey.PublicKey, rootKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create root certificate: %w", err)
	}
	root, err := x509.ParseCertificate(rootDER)
	if err != nil {
		return nil, err
	}

	// leaf
	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	leafTmpl := &x509.Certificate{
		SerialNumber: serial(),
		Subject: pkix.Name{
			CommonName:         "pkgindex development signer",
			OrganizationalUnit: []string{"collections"},
			Organization:       []string{"pkgindex"},
		},
		NotBefore:   now.Add(-time.Hour),
		NotAfter:    now.AddDate(1, 0, 0),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, root, &leafKey.PublicKey, rootKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create signing certificate: %w", err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(leafKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encode signing key: %w", err)
	}

	out := &DevChain{
		KeyPath:   filepath.Join(dir, "signing.key"),
		ChainPath: filepath.Join(dir, "chain.pem"),
		RootPath:  filepath.Join(dir, "root.pem"),
	}
	if err := writePEM(out.KeyPath, 0o600, &pem.Block{Type: pemPrivateKey, Bytes: keyDER}); err != nil {
		return nil, err
	}
	if err := writePEM(out.ChainPath, 0o644,
		&pem.Block{Type: pemCertificate, Bytes: leafDER},
		&pem.Block{Type: pemCertificate, Bytes: rootDER}); err != nil {
		return nil, err
	}
	if err := writePEM(out.RootPath, 0o644, &pem.Block{Type: pemCertificate, Bytes: rootDER}); err != nil {
		return nil, err
	}
	return out, nil
}

func writePEM(path string, perm os.FileMode, blocks ...*pem.Block) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	for _, b := range blocks {
		if err := pem.Encode(f, b); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return f.Close()
}

func serial() *big.Int {
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
	if err != nil {
		return big.NewInt(time.Now().UnixNano())
	}
	return n
}
