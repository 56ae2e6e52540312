package ca

import (
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureCACreateNew(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)

	if err := c.EnsureCA(); err != nil {
		t.Fatalf("EnsureCA: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "RShield_CA.crt")); err != nil {
		t.Fatalf("CA cert not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "RShield_CA.key")); err != nil {
		t.Fatalf("CA key not created: %v", err)
	}

	info, _ := os.Stat(filepath.Join(dir, "RShield_CA.key"))
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("CA key permissions: got %o, want 0600", info.Mode().Perm())
	}

	if c.caCert == nil {
		t.Fatal("caCert should not be nil")
	}
	if !c.caCert.IsCA {
		t.Fatal("cert should be a CA")
	}
	if c.caCert.Subject.CommonName != "RShield Local Interception CA" {
		t.Fatalf("unexpected CN: %s", c.caCert.Subject.CommonName)
	}
}

func TestEnsureCALoadExisting(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)

	if err := c.EnsureCA(); err != nil {
		t.Fatalf("EnsureCA create: %v", err)
	}
	serial1 := c.caCert.SerialNumber

	c2 := New(dir)
	if err := c2.EnsureCA(); err != nil {
		t.Fatalf("EnsureCA load: %v", err)
	}

	if c2.caCert.SerialNumber.Cmp(serial1) != 0 {
		t.Fatal("loaded cert should have same serial as created cert")
	}
}

func TestIssueLeafCertDNSHost(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	if err := c.EnsureCA(); err != nil {
		t.Fatalf("EnsureCA: %v", err)
	}

	certPEM, keyPEM, err := c.IssueLeafCert("example.test")
	if err != nil {
		t.Fatalf("IssueLeafCert: %v", err)
	}
	if len(certPEM) == 0 || len(keyPEM) == 0 {
		t.Fatal("cert and key PEM should not be empty")
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		t.Fatal("failed to decode cert PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse cert: %v", err)
	}

	if cert.Subject.CommonName != "example.test" {
		t.Fatalf("unexpected CN: %s", cert.Subject.CommonName)
	}
	if len(cert.DNSNames) != 1 || cert.DNSNames[0] != "example.test" {
		t.Fatalf("unexpected SAN: %v", cert.DNSNames)
	}

	roots := x509.NewCertPool()
	roots.AddCert(c.caCert)
	opts := x509.VerifyOptions{Roots: roots, KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}}
	if _, err := cert.Verify(opts); err != nil {
		t.Fatalf("cert verification failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "example.test.crt")); err != nil {
		t.Fatal("leaf cert not cached to disk")
	}

	certPEM2, _, err := c.IssueLeafCert("example.test")
	if err != nil {
		t.Fatalf("IssueLeafCert cached: %v", err)
	}
	if string(certPEM2) != string(certPEM) {
		t.Fatal("second call should return cached leaf")
	}
}

func TestIssueLeafCertIPHost(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	if err := c.EnsureCA(); err != nil {
		t.Fatalf("EnsureCA: %v", err)
	}

	certPEM, _, err := c.IssueLeafCert("192.168.1.50")
	if err != nil {
		t.Fatalf("IssueLeafCert: %v", err)
	}

	block, _ := pem.Decode(certPEM)
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse cert: %v", err)
	}

	if len(cert.IPAddresses) != 1 || !cert.IPAddresses[0].Equal(net.ParseIP("192.168.1.50")) {
		t.Fatalf("unexpected IP SAN: %v", cert.IPAddresses)
	}
}

func TestIssueLeafCertUninitializedCA(t *testing.T) {
	c := New(t.TempDir())
	_, _, err := c.IssueLeafCert("example.test")
	if err == nil {
		t.Fatal("expected error for uninitialized CA")
	}
}

func TestCACertPEM(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	if err := c.EnsureCA(); err != nil {
		t.Fatalf("EnsureCA: %v", err)
	}

	pemBytes, err := c.CACertPEM()
	if err != nil {
		t.Fatalf("CACertPEM: %v", err)
	}
	if len(pemBytes) == 0 {
		t.Fatal("CA cert PEM should not be empty")
	}
}

func TestCACertPEMUninitialized(t *testing.T) {
	c := New(t.TempDir())
	_, err := c.CACertPEM()
	if err == nil {
		t.Fatal("expected error for uninitialized CA")
	}
}
