// Package ca manages the local certificate authority used by the
// intercepting proxy to mint per-host TLS leaves for MITM decryption.
package ca

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// CA manages the RShield root keypair and issues per-host leaf
// certificates, caching leaves to disk for reuse across sessions.
type CA struct {
	Dir    string
	caCert *x509.Certificate
	caKey  *ecdsa.PrivateKey
}

// New creates a CA rooted at the given directory.
func New(dir string) *CA {
	return &CA{Dir: dir}
}

func (ca *CA) caCertPath() string { return filepath.Join(ca.Dir, "RShield_CA.crt") }
func (ca *CA) caKeyPath() string  { return filepath.Join(ca.Dir, "RShield_CA.key") }

func (ca *CA) leafCertPath(host string) string { return filepath.Join(ca.Dir, host+".crt") }
func (ca *CA) leafKeyPath(host string) string  { return filepath.Join(ca.Dir, host+".key") }

// EnsureCA generates a root cert/key if not present, or loads the
// existing pair from disk.
func (ca *CA) EnsureCA() error {
	if err := os.MkdirAll(ca.Dir, 0o755); err != nil {
		return fmt.Errorf("create CA dir: %w", err)
	}

	if ca.loadExisting() == nil {
		return nil
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate CA key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"RShield"},
			CommonName:   "RShield Local Interception CA",
		},
		NotBefore:             now,
		NotAfter:              now.Add(10 * 365 * 24 * time.Hour),
		IsCA:                  true,
		MaxPathLen:            0,
		MaxPathLenZero:        true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("create CA cert: %w", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return fmt.Errorf("parse CA cert: %w", err)
	}

	keyBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("marshal CA key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})
	if err := os.WriteFile(ca.caKeyPath(), keyPEM, 0o600); err != nil {
		return fmt.Errorf("write CA key: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	if err := os.WriteFile(ca.caCertPath(), certPEM, 0o644); err != nil {
		return fmt.Errorf("write CA cert: %w", err)
	}

	ca.caCert = cert
	ca.caKey = key
	return nil
}

func (ca *CA) loadExisting() error {
	certPEM, err := os.ReadFile(ca.caCertPath())
	if err != nil {
		return err
	}
	keyPEM, err := os.ReadFile(ca.caKeyPath())
	if err != nil {
		return err
	}

	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return fmt.Errorf("no PEM block in CA cert")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return fmt.Errorf("parse CA cert: %w", err)
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return fmt.Errorf("no PEM block in CA key")
	}
	key, err := x509.ParseECPrivateKey(keyBlock.Bytes)
	if err != nil {
		return fmt.Errorf("parse CA key: %w", err)
	}

	ca.caCert = cert
	ca.caKey = key
	return nil
}

// CACertPath returns the on-disk path of the CA certificate, for a UI
// "reveal in file manager" action.
func (ca *CA) CACertPath() string { return ca.caCertPath() }

// CACertPEM returns the CA certificate as PEM bytes, for installation
// into the client's trust store (UX for that is out of scope here).
func (ca *CA) CACertPEM() ([]byte, error) {
	if ca.caCert == nil {
		return nil, fmt.Errorf("CA not initialized")
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ca.caCert.Raw}), nil
}

// IssueLeafCert mints (or returns from disk cache) a 1-year leaf
// certificate whose CN is host, signed by the local CA. If host
// parses as a literal IP the leaf also carries an IP SAN; otherwise a
// DNS SAN. Leaves are cached to disk and reused across sessions
// (spec §4.3).
func (ca *CA) IssueLeafCert(host string) (certPEM, keyPEM []byte, err error) {
	if ca.caCert == nil || ca.caKey == nil {
		return nil, nil, fmt.Errorf("CA not initialized — call EnsureCA() first")
	}

	if cached, cachedKey, ok := ca.loadExistingLeaf(host); ok {
		return cached, cachedKey, nil
	}

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate leaf key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"RShield"},
			CommonName:   host,
		},
		NotBefore:   now,
		NotAfter:    now.Add(365 * 24 * time.Hour),
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	if ip := net.ParseIP(host); ip != nil {
		template.IPAddresses = []net.IP{ip}
	} else {
		template.DNSNames = []string{host}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, ca.caCert, &leafKey.PublicKey, ca.caKey)
	if err != nil {
		return nil, nil, fmt.Errorf("sign leaf cert: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyBytes, err := x509.MarshalECPrivateKey(leafKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal leaf key: %w", err)
	}
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})

	_ = os.WriteFile(ca.leafCertPath(host), certPEM, 0o644)
	_ = os.WriteFile(ca.leafKeyPath(host), keyPEM, 0o600)

	return certPEM, keyPEM, nil
}

// loadExistingLeaf returns a cached leaf if it still has >24h validity
// remaining. Leaves near expiry are reissued rather than reused.
func (ca *CA) loadExistingLeaf(host string) (certPEM, keyPEM []byte, ok bool) {
	certData, err := os.ReadFile(ca.leafCertPath(host))
	if err != nil {
		return nil, nil, false
	}
	keyData, err := os.ReadFile(ca.leafKeyPath(host))
	if err != nil {
		return nil, nil, false
	}

	block, _ := pem.Decode(certData)
	if block == nil {
		return nil, nil, false
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, nil, false
	}

	if time.Until(cert.NotAfter) > 24*time.Hour {
		return certData, keyData, true
	}
	return nil, nil, false
}

func randomSerial() (*big.Int, error) {
	serialLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, serialLimit)
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}
	return serial, nil
}
