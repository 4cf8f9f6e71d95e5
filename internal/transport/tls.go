package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
)

// tlsListener wraps another Listener and performs a mutual-TLS
// handshake on every accepted connection, requiring a client
// certificate chained to the configured CA.
type tlsListener struct {
	inner  Listener
	config *tls.Config
}

// TLSConfig bundles the paths the mTLS listener needs: the server's own
// certificate/key pair and the CA used to verify client certificates.
type TLSConfig struct {
	CertFile string
	KeyFile  string
	CACert   string
}

// NewTLSListener wraps inner with a TLS handshake, requiring and verifying
// a client certificate against cfg.CACert.
func NewTLSListener(inner Listener, cfg TLSConfig) (Listener, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("transport: load server keypair: %w", err)
	}

	caPEM, err := os.ReadFile(cfg.CACert)
	if err != nil {
		return nil, fmt.Errorf("transport: read ca cert: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("transport: no certificates parsed from %s", cfg.CACert)
	}

	return &tlsListener{
		inner: inner,
		config: &tls.Config{
			Certificates: []tls.Certificate{cert},
			ClientAuth:   tls.RequireAndVerifyClientCert,
			ClientCAs:    pool,
			MinVersion:   tls.VersionTLS12,
		},
	}, nil
}

func (l *tlsListener) Accept(ctx context.Context) (net.Conn, net.Addr, error) {
	raw, addr, err := l.inner.Accept(ctx)
	if err != nil {
		return nil, nil, err
	}

	tlsConn := tls.Server(raw, l.config)

	hctx := ctx
	if hctx == nil {
		hctx = context.Background()
	}
	if err := tlsConn.HandshakeContext(hctx); err != nil {
		raw.Close()
		return nil, nil, fmt.Errorf("transport: tls handshake with %s: %w", addr, err)
	}

	return tlsConn, addr, nil
}

func (l *tlsListener) Close() error   { return l.inner.Close() }
func (l *tlsListener) Addr() net.Addr { return l.inner.Addr() }

// ClientTLSConfig builds the client-side tls.Config for connecting to an
// mTLS-protected server: a client certificate plus the CA used to verify
// the server, with the verification domain set independently of the dial
// address.
func ClientTLSConfig(certFile, keyFile, caCert, serverName string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("transport: load client keypair: %w", err)
	}

	caPEM, err := os.ReadFile(caCert)
	if err != nil {
		return nil, fmt.Errorf("transport: read ca cert: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("transport: no certificates parsed from %s", caCert)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		ServerName:   serverName,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
