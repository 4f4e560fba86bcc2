// Command krb5-rekeyd is the Kerberos key-rotation server: it accepts
// GSS-authenticated, channel-bound connections from administrators
// and target hosts and serves the NEWREQ/STATUS/GETKEYS/COMMITKEY
// protocol described in the package documentation under internal/.
package main

import (
	"crypto/tls"
	"crypto/x509"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/golang-auth/krb5-rekeyd/internal/aclfile"
	_ "github.com/golang-auth/krb5-rekeyd/internal/handlers"
	"github.com/golang-auth/krb5-rekeyd/internal/kdb"
	"github.com/golang-auth/krb5-rekeyd/internal/pidfile"
	"github.com/golang-auth/krb5-rekeyd/internal/session"
	"github.com/golang-auth/krb5-rekeyd/internal/store"
	"github.com/golang-auth/krb5-rekeyd/internal/telemetry"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("krb5-rekeyd", flag.ContinueOnError)

	inetd := fs.Bool("i", false, "run under inetd (stdio is the accepted socket)")
	daemonize := fs.Bool("d", false, "daemon mode: serve on the listener; the process does not fork or detach")
	pidPath := fs.String("p", "", "write PID to this file; removed on fatal signal")
	aclPath := fs.String("T", "", "path to ACL file enumerating permitted target principals")
	desOnly := fs.Bool("c", false, "force legacy (DES-only) enctype compatibility")
	adminArg := fs.String("a", "", "admin-subsystem config, opaque to the core")

	listenAddr := fs.String("listen", ":4747", "address to listen on (foreground/daemon modes)")
	certFile := fs.String("cert", "", "TLS certificate file")
	keyFile := fs.String("key", "", "TLS key file")
	clientCAFile := fs.String("client-ca", "", "CA file for verifying client certificates")
	realm := fs.String("realm", "", "server default realm")
	storeBackend := fs.String("store-backend", "sqlite", "rotation store backend: sqlite or postgres")
	storePath := fs.String("store-path", "rekeyd.db", "sqlite database path (sqlite backend)")
	storeDSN := fs.String("store-dsn", "", "postgres DSN (postgres backend)")
	kadminPath := fs.String("kadmin-path", "kadmin.local", "path to the kadmin(.local) binary")
	enableAES := fs.Bool("enable-aes", true, "include AES enctypes in the default enctype set")
	enableRC4 := fs.Bool("enable-rc4", true, "include RC4-HMAC in the default enctype set")
	logFile := fs.String("log-file", "", "rotated log file path (daemon mode); empty logs to stderr")
	debug := fs.Bool("debug", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *inetd && (*daemonize || *listenAddr != ":4747") {
		fmt.Fprintln(os.Stderr, "krb5-rekeyd: -i is mutually exclusive with -d and -listen")
		return 1
	}
	if *realm == "" {
		fmt.Fprintln(os.Stderr, "krb5-rekeyd: -realm is required")
		return 1
	}

	logger := telemetry.New(telemetry.Config{LogFile: *logFile, Debug: *debug})
	log := logger.WithField("component", "krb5-rekeyd")

	var aclSet *aclfile.Set
	if *aclPath != "" {
		var err error
		aclSet, err = aclfile.Load(*aclPath)
		if err != nil {
			log.WithError(err).Error("failed to load target-ACL file")
			return 1
		}
	}

	backend := store.Backend(*storeBackend)
	st, err := store.Open(store.Config{
		Backend:     backend,
		SQLitePath:  *storePath,
		PostgresDSN: *storeDSN,
	})
	if err != nil {
		log.WithError(err).Error("failed to open rotation store")
		return 1
	}
	defer st.Close()

	bridge := kdb.NewKadminBridge(*kadminPath, *adminArg)

	cfg := session.Config{
		DefaultRealm:  *realm,
		ACLSet:        aclSet,
		EnctypePolicy: kdb.EnctypePolicy{AES: *enableAES, RC4: *enableRC4},
		ForceDESOnly:  *desOnly,
		Store:         st,
		KDB:           bridge,
		Logger:        log,
	}

	pf, err := pidfile.Write(*pidPath)
	if err != nil {
		log.WithError(err).Error("failed to write PID file")
		return 1
	}
	go pidfile.WatchSignals(pf)

	if *inetd {
		conn, err := newStdioTLSConn(*certFile, *keyFile, *clientCAFile)
		if err != nil {
			log.WithError(err).Error("failed to establish inetd TLS session")
			return 1
		}
		runSession(conn, cfg)
		return 0
	}

	tlsCfg, err := loadServerTLSConfig(*certFile, *keyFile, *clientCAFile)
	if err != nil {
		log.WithError(err).Error("failed to load TLS configuration")
		return 1
	}

	listener, err := tls.Listen("tcp", *listenAddr, tlsCfg)
	if err != nil {
		log.WithError(err).Error("failed to listen")
		return 1
	}
	defer listener.Close()

	log.WithField("addr", *listenAddr).Info("krb5-rekeyd listening")
	for {
		conn, err := listener.Accept()
		if err != nil {
			log.WithError(err).Warn("accept failed")
			continue
		}
		tlsConn, ok := conn.(*tls.Conn)
		if !ok {
			conn.Close()
			continue
		}
		go runSession(tlsConn, cfg)
	}
}

// runSession drives one accepted connection's Session to completion;
// spec §5 describes one process per session, but this Go rendition
// follows the goroutine-per-connection idiom the teacher's own
// gss-server example uses, keeping the rotation store as the only
// cross-connection shared state.
func runSession(conn *tls.Conn, cfg session.Config) {
	defer conn.Close()
	if err := conn.Handshake(); err != nil {
		cfg.Logger.WithError(err).Warn("TLS handshake failed")
		return
	}
	s := session.New(conn, cfg)
	s.Run()
}

func loadServerTLSConfig(certFile, keyFile, clientCAFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("loading server certificate: %w", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	}

	if clientCAFile != "" {
		pool, err := loadCertPool(clientCAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
	}

	return cfg, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading client CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}

func newStdioTLSConn(certFile, keyFile, clientCAFile string) (*tls.Conn, error) {
	tlsCfg, err := loadServerTLSConfig(certFile, keyFile, clientCAFile)
	if err != nil {
		return nil, err
	}
	return tls.Server(stdioConn{}, tlsCfg), nil
}

// stdioConn adapts the inetd-style stdin/stdout pair into a net.Conn
// so the same tls.Server/session.Session path serves both the
// inetd and listener startup modes.
type stdioConn struct{}

var _ net.Conn = stdioConn{}

func (stdioConn) Read(p []byte) (int, error)       { return os.Stdin.Read(p) }
func (stdioConn) Write(p []byte) (int, error)      { return os.Stdout.Write(p) }
func (stdioConn) Close() error                     { return nil }
func (stdioConn) LocalAddr() net.Addr              { return stdioAddr{} }
func (stdioConn) RemoteAddr() net.Addr             { return stdioAddr{} }
func (stdioConn) SetDeadline(time.Time) error      { return nil }
func (stdioConn) SetReadDeadline(time.Time) error  { return nil }
func (stdioConn) SetWriteDeadline(time.Time) error { return nil }

type stdioAddr struct{}

func (stdioAddr) Network() string { return "stdio" }
func (stdioAddr) String() string  { return "stdio" }
