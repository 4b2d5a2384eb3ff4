package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/rawbytedev/segwire"
)

// message builds a one-segment message; safe to call off the test goroutine.
func message(words ...uint64) []segwire.OutSegment {
	s := segwire.NewSegmentBuilder(len(words))
	s.Allocate(len(words))
	for i, w := range words {
		_ = s.SetWord(i, w)
	}
	return []segwire.OutSegment{s}
}

func firstWord(msg *segwire.Message) uint64 {
	s0, _ := msg.Segment(0)
	w, _ := s0.Word(0)
	return w
}

func sessions(t *testing.T) (*Session, *Session) {
	t.Helper()
	a, b := net.Pipe()
	opts := segwire.DefaultReaderOptions()
	cli, err := Client(a, nil, opts)
	require.NoError(t, err)
	srv, err := Server(b, nil, opts)
	require.NoError(t, err)
	return cli, srv
}

func TestConnSendRecv(t *testing.T) {
	a, b := net.Pipe()
	ca := NewConn(a, segwire.DefaultReaderOptions())
	cb := NewConn(b, segwire.DefaultReaderOptions())

	go func() {
		_ = ca.Send(message(11, 12))
		_ = ca.Close()
	}()
	msg, err := cb.Recv()
	require.NoError(t, err)
	require.Equal(t, uint64(2), msg.TotalWords())
	require.Equal(t, uint64(11), firstWord(msg))

	_, err = cb.Recv()
	require.ErrorIs(t, err, segwire.ErrReadTruncated)
}

func TestServeMultipleStreams(t *testing.T) {
	cli, srv := sessions(t)

	var mu sync.Mutex
	got := map[uint64]int{}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- Serve(context.Background(), srv, func(_ context.Context, msg *segwire.Message) error {
			mu.Lock()
			got[firstWord(msg)]++
			mu.Unlock()
			return nil
		})
	}()

	var g errgroup.Group
	for i := 0; i < 3; i++ {
		g.Go(func() error {
			c, err := cli.Open()
			if err != nil {
				return err
			}
			defer c.Close()
			for j := 0; j < 4; j++ {
				if err := c.Send(message(uint64(i*10+j))); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	// Give the FINs time to land before the session goes away.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, cli.Close())

	select {
	case err := <-serveErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after the client closed")
	}
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 12)
}

func TestServeHandlerError(t *testing.T) {
	cli, srv := sessions(t)
	defer cli.Close()
	boom := errors.New("reject")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- Serve(context.Background(), srv, func(context.Context, *segwire.Message) error {
			return boom
		})
	}()

	c, err := cli.Open()
	require.NoError(t, err)
	require.NoError(t, c.Send(message(1)))

	select {
	case err := <-serveErr:
		require.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop on handler error")
	}
}

func TestServeContextCancel(t *testing.T) {
	cli, srv := sessions(t)
	defer cli.Close()
	ctx, cancel := context.WithCancel(context.Background())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- Serve(ctx, srv, func(context.Context, *segwire.Message) error { return nil })
	}()
	c, err := cli.Open()
	require.NoError(t, err)
	require.NoError(t, c.Send(message(5)))
	cancel()

	select {
	case err := <-serveErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve ignored cancellation")
	}
	require.True(t, srv.IsClosed())
}

func TestSessionRejectsBadOptions(t *testing.T) {
	a, _ := net.Pipe()
	_, err := Client(a, nil, segwire.ReaderOptions{})
	require.ErrorIs(t, err, segwire.ErrInvalidOptions)
}
