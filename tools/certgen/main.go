// Package main writes a self-signed server certificate and key for serving
// the API over HTTPS locally (see --tls-cert and --tls-key of the server).
package main

import (
	"crypto/sha256"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/atinyakov/GuardPine/internal/certgen"
)

func main() {
	var (
		dir      string
		hosts    []string
		validFor time.Duration
	)
	pflag.StringVarP(&dir, "dir", "d", "certs", "output directory")
	pflag.StringSliceVar(&hosts, "host", []string{"localhost", "127.0.0.1"}, "DNS names and IPs to cover")
	pflag.DurationVar(&validFor, "valid-for", 365*24*time.Hour, "certificate lifetime")
	pflag.Parse()

	certPath, keyPath := filepath.Join(dir, "server.crt"), filepath.Join(dir, "server.key")
	if err := generate(certPath, keyPath, hosts, validFor); err != nil {
		log.Fatal(err)
	}
	cert, err := certgen.LoadCertificate(certPath)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Certificate written to %s (key %s)\n", certPath, keyPath)
	fmt.Printf("SHA-256 fingerprint: %X\n", sha256.Sum256(cert.Raw))
}

func generate(certPath, keyPath string, hosts []string, validFor time.Duration) error {
	certPEM, keyPEM, err := certgen.SelfSigned(certgen.Options{
		Hosts:        hosts,
		Organization: "Guard Pine development",
		ValidFor:     validFor,
	})
	if err != nil {
		return err
	}
	return certgen.WriteFiles(certPath, keyPath, certPEM, keyPEM)
}
