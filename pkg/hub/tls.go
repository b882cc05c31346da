package hub

import (
	"crypto/tls"
	"errors"
	"fmt"
)

// ErrIncompleteTLS is returned when only one of the certificate and key
// files is configured.
var ErrIncompleteTLS = errors.New("tls cert_file and key_file must be set together")

// TLSConfig locates the hub certificate. Leaving both files empty serves
// plain ws.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Enabled reports whether any TLS file is configured.
func (c TLSConfig) Enabled() bool {
	return c.CertFile != "" || c.KeyFile != ""
}

func (c TLSConfig) validate() error {
	if c.Enabled() && (c.CertFile == "" || c.KeyFile == "") {
		return ErrIncompleteTLS
	}
	return nil
}

// load reads the key pair. It returns nil when TLS is disabled.
func (c TLSConfig) load() (*tls.Config, error) {
	if !c.Enabled() {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load hub certificate: %w", err)
	}
	return NewServerTLSConfig(cert), nil
}

// NewServerTLSConfig creates the TLS configuration a hub serves wss with.
func NewServerTLSConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		// TLS 1.3 only - no fallback
		MinVersion: tls.VersionTLS13,

		Certificates: []tls.Certificate{cert},

		// Websocket upgrades are HTTP/1.1 only.
		NextProtos: []string{"http/1.1"},

		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
	}
}
