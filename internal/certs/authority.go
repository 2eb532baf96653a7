// Package certs implements the local certificate authority and the
// per-host leaf certificate cache used to terminate TLS twice for each
// intercepted CONNECT tunnel.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/blanktrace/blanktrace/internal/errs"
)

// CAValidity is how long a freshly generated root CA certificate is valid
// for. The system design requires at least one year.
const CAValidity = 10 * 365 * 24 * time.Hour

// LeafValidity is how long a minted leaf certificate is valid for.
const LeafValidity = 365 * 24 * time.Hour

const caSubjectOrg = "BlankTrace"

// Authority holds the parsed root CA certificate and its private key, used
// to sign leaf certificates on demand.
type Authority struct {
	Cert   *x509.Certificate
	Signer *ecdsa.PrivateKey
}

// LoadOrCreate loads the CA certificate/key pair from certPath/keyPath if
// both exist, or generates and persists a fresh pair if neither exists. If
// exactly one of the two files is present, that is a fatal configuration
// error — operators may already trust the existing cert, so a mismatched
// or missing key must never trigger silent regeneration.
func LoadOrCreate(certPath, keyPath string) (*Authority, error) {
	certExists := fileExists(certPath)
	keyExists := fileExists(keyPath)

	switch {
	case certExists && keyExists:
		return load(certPath, keyPath)
	case !certExists && !keyExists:
		return generateAndPersist(certPath, keyPath)
	default:
		return nil, errs.New(errs.ErrConfig, "load_or_create_ca",
			fmt.Sprintf("only one of %s / %s exists; refusing to regenerate", certPath, keyPath), nil)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func load(certPath, keyPath string) (*Authority, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, errs.New(errs.ErrStartupIO, "read_ca_cert", "", err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, errs.New(errs.ErrStartupIO, "read_ca_key", "", err)
	}

	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return nil, errs.New(errs.ErrConfig, "decode_ca_cert", "not valid PEM", nil)
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, errs.New(errs.ErrConfig, "parse_ca_cert", "", err)
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, errs.New(errs.ErrConfig, "decode_ca_key", "not valid PEM", nil)
	}
	key, err := x509.ParseECPrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, errs.New(errs.ErrConfig, "parse_ca_key", "", err)
	}

	if !cert.PublicKey.(*ecdsa.PublicKey).Equal(&key.PublicKey) {
		return nil, errs.New(errs.ErrConfig, "ca_key_mismatch", "CA certificate and key do not match", nil)
	}

	if cert.NotAfter.Before(time.Now()) {
		return nil, errs.New(errs.ErrConfig, "ca_expired", "CA certificate has expired", nil)
	}

	return &Authority{Cert: cert, Signer: key}, nil
}

func generateAndPersist(certPath, keyPath string) (*Authority, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errs.New(errs.ErrCertificate, "generate_ca_key", "", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   "BlankTrace CA",
			Organization: []string{caSubjectOrg},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(CAValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, errs.New(errs.ErrCertificate, "create_ca_cert", "", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, errs.New(errs.ErrCertificate, "parse_ca_cert", "", err)
	}

	if err := persist(certPath, keyPath, der, key); err != nil {
		return nil, err
	}

	return &Authority{Cert: cert, Signer: key}, nil
}

func persist(certPath, keyPath string, certDER []byte, key *ecdsa.PrivateKey) error {
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return errs.New(errs.ErrCertificate, "marshal_ca_key", "", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	if err := atomicWrite(certPath, certPEM, 0o644); err != nil {
		return errs.New(errs.ErrStartupIO, "write_ca_cert", "", err)
	}
	if err := atomicWrite(keyPath, keyPEM, 0o600); err != nil {
		return errs.New(errs.ErrStartupIO, "write_ca_key", "", err)
	}
	return nil
}

// atomicWrite writes data to a temp file in the same directory, then
// renames it into place, so a crash mid-write never leaves a truncated CA
// file behind.
func atomicWrite(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func randomSerial() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, errs.New(errs.ErrCertificate, "generate_serial", "", err)
	}
	return serial, nil
}

// MintLeaf signs a fresh leaf certificate for host, valid from now for
// LeafValidity, and returns it paired with its ephemeral private key as a
// tls.Certificate ready to present in a TLS handshake.
func (a *Authority) MintLeaf(host string) (*tls.Certificate, error) {
	if a == nil || a.Cert == nil || a.Signer == nil {
		return nil, errs.New(errs.ErrCertificate, "mint_leaf", "no certificate authority loaded", nil)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errs.New(errs.ErrCertificate, "generate_leaf_key", "", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: host},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(LeafValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	applySANs(template, host)

	der, err := x509.CreateCertificate(rand.Reader, template, a.Cert, &key.PublicKey, a.Signer)
	if err != nil {
		return nil, errs.New(errs.ErrCertificate, "sign_leaf", "", err)
	}

	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, errs.New(errs.ErrCertificate, "parse_leaf", "", err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

