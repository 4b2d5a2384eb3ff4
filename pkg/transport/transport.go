// Package transport exchanges framed messages over multiplexed streams.
//
// One net.Conn carries an smux session; every smux stream is a Conn that
// sends and receives whole messages.
package transport

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xtaci/smux"
	"golang.org/x/sync/errgroup"

	"github.com/rawbytedev/segwire"
)

// Conn sends and receives messages on one byte stream.
type Conn struct {
	rwc  io.ReadWriteCloser
	opts segwire.ReaderOptions
	wmu  sync.Mutex
}

func NewConn(rwc io.ReadWriteCloser, opts segwire.ReaderOptions) *Conn {
	return &Conn{rwc: rwc, opts: opts}
}

// Send writes one message. Concurrent Sends never interleave.
func (c *Conn) Send(segs []segwire.OutSegment) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return segwire.WriteMessage(c.rwc, segs)
}

// Recv reads the next message. It returns an error matching io.EOF when the
// peer closed the stream between messages.
func (c *Conn) Recv() (*segwire.Message, error) {
	return segwire.ReadMessage(c.rwc, c.opts)
}

func (c *Conn) Close() error { return c.rwc.Close() }

// Session is one multiplexed connection.
type Session struct {
	sess *smux.Session
	opts segwire.ReaderOptions
}

// Config returns the smux settings used when cfg is nil.
func Config() *smux.Config {
	return smux.DefaultConfig()
}

// Client starts the dialing side of a session on conn.
func Client(conn net.Conn, cfg *smux.Config, opts segwire.ReaderOptions) (*Session, error) {
	return newSession(conn, cfg, opts, smux.Client)
}

// Server starts the accepting side of a session on conn.
func Server(conn net.Conn, cfg *smux.Config, opts segwire.ReaderOptions) (*Session, error) {
	return newSession(conn, cfg, opts, smux.Server)
}

func newSession(conn net.Conn, cfg *smux.Config, opts segwire.ReaderOptions,
	start func(io.ReadWriteCloser, *smux.Config) (*smux.Session, error)) (*Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = Config()
	}
	if err := smux.VerifyConfig(cfg); err != nil {
		return nil, errors.Wrap(err, "transport: invalid smux config")
	}
	sess, err := start(conn, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "transport: starting session with %s", conn.RemoteAddr())
	}
	logrus.Debugf("transport: session up with %s", conn.RemoteAddr())
	return &Session{sess: sess, opts: opts}, nil
}

// Open creates a new message stream.
func (s *Session) Open() (*Conn, error) {
	st, err := s.sess.OpenStream()
	if err != nil {
		return nil, errors.Wrap(err, "transport: opening stream")
	}
	return NewConn(st, s.opts), nil
}

// Accept waits for the peer to open a stream.
func (s *Session) Accept() (*Conn, error) {
	st, err := s.sess.AcceptStream()
	if err != nil {
		return nil, errors.Wrap(err, "transport: accepting stream")
	}
	return NewConn(st, s.opts), nil
}

func (s *Session) IsClosed() bool { return s.sess.IsClosed() }

func (s *Session) Close() error { return s.sess.Close() }

// Handler consumes one message from a stream.
type Handler func(ctx context.Context, msg *segwire.Message) error

// Serve accepts streams until ctx is done or the peer goes away and feeds
// every message on each stream to h. A stream ends at clean EOF; a decode or
// handler error stops the whole session and is returned.
func Serve(ctx context.Context, s *Session, h Handler) error {
	defer s.Close()
	g, ctx := errgroup.WithContext(ctx)
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	var acceptErr error
	for {
		c, err := s.Accept()
		if err != nil {
			if ctx.Err() == nil && !s.IsClosed() && !errors.Is(err, io.EOF) {
				acceptErr = err
			}
			break
		}
		g.Go(func() error {
			defer c.Close()
			return pump(ctx, c, h)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return acceptErr
}

func pump(ctx context.Context, c *Conn, h Handler) error {
	for {
		msg, err := c.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			// Session teardown while blocked in a read is not a stream failure.
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "transport: receiving message")
		}
		if err := h(ctx, msg); err != nil {
			return err
		}
	}
}
