package main

import (
	"context"
	"net"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rawbytedev/segwire"
	"github.com/rawbytedev/segwire/pkg/transport"
)

var (
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Accept connections and log every message received",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	serveListen string

	sendCmd = &cobra.Command{
		Use:   "send --addr ADDR FILE...",
		Short: "Send FILEs as the segments of one message",
		Args:  cobra.MinimumNArgs(1),
		RunE:  send,
	}
	sendAddr string
)

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "127.0.0.1:7400", "address to listen on")
	sendCmd.Flags().StringVarP(&sendAddr, "addr", "a", "127.0.0.1:7400", "address to send to")
}

func serve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", serveListen)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", serveListen)
	}
	go func() {
		<-ctx.Done()
		logrus.Infof("Shutdown signal received, closing listener")
		ln.Close()
	}()
	logrus.Infof("listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "accepting connection")
		}
		logrus.Infof("accepted connection from %s", conn.RemoteAddr())
		go handleConn(ctx, conn)
	}
}

func handleConn(ctx context.Context, conn net.Conn) {
	sess, err := transport.Server(conn, cfg.SmuxConfig(), cfg.ReaderOptions())
	if err != nil {
		logrus.Errorf("session with %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	err = transport.Serve(ctx, sess, func(_ context.Context, msg *segwire.Message) error {
		fields := logrus.Fields{
			"peer":     conn.RemoteAddr().String(),
			"segments": msg.NumSegments(),
			"words":    msg.TotalWords(),
		}
		logrus.WithFields(fields).Info("message received")
		return nil
	})
	if err != nil {
		logrus.Errorf("connection from %s: %v", conn.RemoteAddr(), err)
	}
}

func send(cmd *cobra.Command, args []string) error {
	segs, err := segmentsFromFiles(args)
	if err != nil {
		return err
	}
	var d net.Dialer
	conn, err := d.DialContext(cmd.Context(), "tcp", sendAddr)
	if err != nil {
		return errors.Wrapf(err, "dialing %s", sendAddr)
	}
	sess, err := transport.Client(conn, cfg.SmuxConfig(), cfg.ReaderOptions())
	if err != nil {
		conn.Close()
		return err
	}
	defer sess.Close()

	c, err := sess.Open()
	if err != nil {
		return err
	}
	if err := c.Send(segs); err != nil {
		c.Close()
		return errors.Wrap(err, "sending message")
	}
	logrus.Infof("sent %d segments to %s", len(segs), sendAddr)
	return c.Close()
}
