// Package session holds the per-connection state machine: GSS
// authentication (spec §4.2), authorization classification (§4.3),
// and the opcode dispatch loop (§4.9).
package session

import (
	"crypto/tls"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/golang-auth/krb5-rekeyd/internal/aclfile"
	"github.com/golang-auth/krb5-rekeyd/internal/gssaccept"
	"github.com/golang-auth/krb5-rekeyd/internal/kdb"
	"github.com/golang-auth/krb5-rekeyd/internal/store"
)

// AuthState tracks the three-stage authentication progression of
// spec §3/§4.2.
type AuthState int

const (
	AuthUnauthenticated AuthState = iota
	AuthGSSComplete
	AuthChannelBound
)

// Config collects the values shared by every session on a listener:
// the rotation store, the KDB bridge, the authorized-target set, the
// enctype policy, and the server's default realm.
type Config struct {
	DefaultRealm  string
	ACLSet        *aclfile.Set
	EnctypePolicy kdb.EnctypePolicy
	ForceDESOnly  bool
	Store         *store.Store
	KDB           kdb.Bridge
	Logger        *logrus.Entry
}

// Transport is what a Session needs from the underlying connection:
// framed byte I/O plus the TLS connection state AUTHCHAN's channel
// binding is derived from. *tls.Conn satisfies it directly; tests use
// a double backed by in-memory byte buffers.
type Transport interface {
	io.ReadWriter
	ConnectionState() tls.ConnectionState
}

// Session is the ephemeral, per-connection state of spec §3: the
// transport, GSS acceptor context, parsed authenticated principal,
// authorization flags, and a handle to the shared rotation store.
type Session struct {
	cfg Config

	conn     Transport
	acceptor *gssaccept.Acceptor
	cb       gssaccept.ChannelBindings
	hasCB    bool

	AuthState AuthState

	PrincipalText string
	Realm         string
	Components    []string

	IsHost   bool
	IsAdmin  bool
	Hostname string

	log *logrus.Entry

	finalized bool
}

// New returns a fresh Session bound to conn (the mutually-
// authenticated TLS transport) and the shared process Config.
func New(conn Transport, cfg Config) *Session {
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Session{
		cfg:  cfg,
		conn: conn,
		log:  log,
	}
}

// Writer returns the transport as an io.Writer, for handlers outside
// this package that need to frame their own responses.
func (s *Session) Writer() io.Writer {
	return s.conn
}

// DefaultRealm returns the server's configured default realm.
func (s *Session) DefaultRealm() string {
	return s.cfg.DefaultRealm
}

// Store returns the shared rotation store.
func (s *Session) Store() *store.Store {
	return s.cfg.Store
}

// KDB returns the shared KDB bridge.
func (s *Session) KDB() kdb.Bridge {
	return s.cfg.KDB
}

// ACLSet returns the loaded target-ACL set (spec §4.14), or nil if
// none was configured.
func (s *Session) ACLSet() *aclfile.Set {
	return s.cfg.ACLSet
}

// EnctypePolicy returns the process-wide enctype policy (spec §4.4).
func (s *Session) EnctypePolicy() kdb.EnctypePolicy {
	return s.cfg.EnctypePolicy
}

// ForceDESOnly reports whether the server was started with -c,
// forcing every NEWREQ onto the single-entry DES-CBC-CRC enctype set
// regardless of the request's own flag word (spec §4.14).
func (s *Session) ForceDESOnly() bool {
	return s.cfg.ForceDESOnly
}

// SetAcceptor installs the GSS acceptor context once the transport
// accept has completed (spec §4.9's "accept the encrypted transport,
// mark the session initialized").
func (s *Session) SetAcceptor(a *gssaccept.Acceptor) {
	s.acceptor = a
}

// Finalize marks the session as done; the dispatch loop exits once a
// handler finalizes.
func (s *Session) Finalize() {
	s.finalized = true
}

// Finalized reports whether a handler has ended the session.
func (s *Session) Finalized() bool {
	return s.finalized
}

// Log returns the session's logger, enriched with the principal,
// is_host and is_admin fields once Classify has run.
func (s *Session) Log() *logrus.Entry {
	return s.log
}

// bindPrincipalFields attaches the authenticated principal to every
// subsequent log line for this session.
func (s *Session) bindPrincipalFields() {
	s.log = s.log.WithFields(logrus.Fields{
		"principal": s.PrincipalText,
		"is_host":   s.IsHost,
		"is_admin":  s.IsAdmin,
	})
}
