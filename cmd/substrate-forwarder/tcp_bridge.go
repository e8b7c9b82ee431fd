//go:build windows

package main

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/substratehq/forwarder/pkg/bridge"
	"github.com/substratehq/forwarder/pkg/downstream"
	"github.com/substratehq/forwarder/pkg/supervisor"
)

// runTCPBridge accepts raw TCP on addr and bridges each connection to
// connector the same way the pipe accept loop does, for soak testing
// without a Windows client (spec.md §6's opt-in host TCP accept). Unlike
// the pipe side, this is deliberately gated on the explicit --tcp-bridge
// flag only: the SUBSTRATE_FORWARDER_TCP* env vars configure the
// downstream *target*, and letting them also open a host-facing listener
// would be a surprising way for a listener to turn on (see DESIGN.md).
func runTCPBridge(ctx context.Context, addr string, connector downstream.Connector, sup *supervisor.Supervisor, sessionID *uint64, log *logrus.Entry) {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		log.WithError(err).WithField("event", "accept_error").Warn("tcp bridge listener failed to start")
		return
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).WithField("event", "accept_error").Warn("tcp bridge accept error")
			continue
		}

		id := atomic.AddUint64(sessionID, 1)
		log.WithFields(logrus.Fields{"event": "client_connected", "session": id, "kind": "tcp"}).Info("client connected")

		sessCtx, cancel := context.WithCancel(ctx)
		sess := &bridgeSession{id: id, cancel: cancel}
		done, err := sup.Track(sess)
		if err != nil {
			cancel()
			_ = conn.Close()
			continue
		}

		go func() {
			defer done()
			defer cancel()
			down, err := connector.Connect(sessCtx)
			if err != nil {
				log.WithError(err).WithFields(logrus.Fields{"session": id, "result": bridge.ResultDownstreamUnreachable}).Warn("downstream unreachable")
				conn.Close()
				return
			}
			bridge.Run(sessCtx, id, "tcp", &tcpPipeSide{Conn: conn}, down, 2*time.Second, log)
		}()
	}
}

// tcpPipeSide adapts a net.Conn to bridge.PipeSide for the opt-in TCP
// accept path, where Flush/Disconnect have no named-pipe equivalent.
type tcpPipeSide struct {
	net.Conn
}

func (t *tcpPipeSide) Flush() error      { return nil }
func (t *tcpPipeSide) Disconnect() error { return nil }
