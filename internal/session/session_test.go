package session

import (
	"bytes"
	"crypto/tls"
	"io"

	"github.com/sirupsen/logrus"
)

// discardLogger returns a logrus entry that writes nowhere, for tests
// that need a non-nil logger but don't assert on log output.
func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// pipeTransport is a Transport double over an in-memory byte buffer,
// used to drive the session loop and handlers in tests without a
// live TLS handshake.
type pipeTransport struct {
	in  *bytes.Buffer
	out *bytes.Buffer
}

func newPipeTransport() *pipeTransport {
	return &pipeTransport{in: &bytes.Buffer{}, out: &bytes.Buffer{}}
}

func (p *pipeTransport) Read(b []byte) (int, error)  { return p.in.Read(b) }
func (p *pipeTransport) Write(b []byte) (int, error) { return p.out.Write(b) }
func (p *pipeTransport) ConnectionState() tls.ConnectionState {
	return tls.ConnectionState{}
}

var _ Transport = (*pipeTransport)(nil)
