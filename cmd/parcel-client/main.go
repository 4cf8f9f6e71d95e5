// Command parcel-client is the interactive line-driven client: it
// connects to a parcel server (optionally over mTLS), announces a
// nickname, then reads stdin line by line, dispatching ".file"/".image"/
// ".nick"/".quit" commands and plain text lines as requests.
package main

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"net"
	"os"

	"github.com/spf13/pflag"
	logging "gopkg.in/op/go-logging.v1"

	"github.com/parcelnet/parcel/internal/clientutil"
	"github.com/parcelnet/parcel/internal/config"
	"github.com/parcelnet/parcel/internal/corelog"
	"github.com/parcelnet/parcel/internal/transport"
	"github.com/parcelnet/parcel/internal/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "parcel-client:", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("parcel-client", pflag.ContinueOnError)

	nick := flags.String("nick", "", "nickname to announce on connect (required)")
	cert := flags.String("cert", "", "path to the client's TLS certificate (enables mTLS)")
	key := flags.String("key", "", "path to the client's TLS private key")
	caCert := flags.String("ca-cert", "", "path to the CA certificate used to verify the server")
	certDomain := flags.String("cert-domain", "localhost", "SNI/verification domain for the server certificate")
	logLevel := flags.String("log-level", "INFO", "log level: DEBUG, INFO, NOTICE, WARNING, ERROR, CRITICAL")

	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	if flags.NArg() < 1 {
		return fmt.Errorf("usage: parcel-client [flags] <server_address>")
	}
	if *nick == "" {
		return fmt.Errorf("--nick is required")
	}

	serverAddress := config.NormalizeAddress(flags.Arg(0))

	logBackend, err := corelog.New(os.Stderr, *logLevel)
	if err != nil {
		return err
	}
	log := logBackend.GetLogger("parcel-client")

	conn, err := dial(serverAddress, *cert, *key, *caCert, *certDomain)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", serverAddress, err)
	}
	defer conn.Close()

	codec := wire.NewCodec(conn)

	if _, err := codec.Write(wire.NewAnnounceNickname(*nick)); err != nil {
		return fmt.Errorf("announce nickname: %w", err)
	}
	if err := readResponse(codec); err != nil {
		return err
	}

	log.Infof("connected to %s as %s", serverAddress, *nick)

	return commandLoop(codec, log)
}

func dial(address, certFile, keyFile, caCert, certDomain string) (net.Conn, error) {
	if certFile == "" && keyFile == "" && caCert == "" {
		return net.Dial("tcp", address)
	}

	tlsConfig, err := transport.ClientTLSConfig(certFile, keyFile, caCert, certDomain)
	if err != nil {
		return nil, err
	}

	return tls.Dial("tcp", address, tlsConfig)
}

func commandLoop(codec *wire.Codec, log *logging.Logger) error {
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		cmd := clientutil.ParseCommand(scanner.Text())

		quit, cerr := clientutil.Dispatch(codec, cmd, log)
		if cerr != nil {
			if cerr.IsHard() {
				return cerr
			}
			log.Warningf("command failed: %v", cerr)
			continue
		}
		if quit {
			return nil
		}

		if err := readResponse(codec); err != nil {
			return err
		}
	}

	return scanner.Err()
}

func readResponse(codec *wire.Codec) error {
	var resp wire.Response
	if err := codec.Read(&resp); err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if !resp.IsOk() {
		fmt.Fprintf(os.Stderr, "server error: %s\n", resp.Err.String())
	}
	return nil
}
