// Package workloadapi implements the Agent Workload-API: the
// SpiffeWorkloadAPI gRPC service served over a per-node Unix socket,
// fanning out to the server client, the trust-bundle cache and the
// workload attestor. Callers are identified by SO_PEERCRED kernel
// credentials captured at connection handshake time, since the calling
// process cannot forge what the kernel reports.
package workloadapi

import (
	"context"
	"errors"
	"net"

	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/peer"
)

var errNoPeerCred = errors.New("workloadapi: no peer credential on connection")

// peerCredAuthInfo carries the peer PID (or the resolution failure)
// captured at handshake time into each RPC's peer.Peer.
type peerCredAuthInfo struct {
	pid int
	err error
}

func (peerCredAuthInfo) AuthType() string { return "peercred" }

// peerCredCredentials implements credentials.TransportCredentials over the
// Unix listener: the server handshake resolves the connecting process's
// PID kernel-side and attaches it as AuthInfo. A resolution failure is
// carried on the connection rather than dropped, so the handler can
// surface domain.ErrUdsClientPID per RPC instead of tearing down the
// whole socket.
type peerCredCredentials struct {
	resolve func(net.Conn) (int, error)
}

func (c peerCredCredentials) ServerHandshake(conn net.Conn) (net.Conn, credentials.AuthInfo, error) {
	pid, err := c.resolve(conn)
	return conn, peerCredAuthInfo{pid: pid, err: err}, nil
}

func (c peerCredCredentials) ClientHandshake(_ context.Context, _ string, conn net.Conn) (net.Conn, credentials.AuthInfo, error) {
	return conn, peerCredAuthInfo{err: errNoPeerCred}, nil
}

func (peerCredCredentials) Info() credentials.ProtocolInfo {
	return credentials.ProtocolInfo{SecurityProtocol: "peercred"}
}

func (c peerCredCredentials) Clone() credentials.TransportCredentials { return c }

func (peerCredCredentials) OverrideServerName(string) error { return nil }

// peerPID extracts the handshake-time peer PID from an RPC context.
func peerPID(ctx context.Context) (int, error) {
	p, ok := peer.FromContext(ctx)
	if !ok {
		return 0, errNoPeerCred
	}
	info, ok := p.AuthInfo.(peerCredAuthInfo)
	if !ok {
		return 0, errNoPeerCred
	}
	if info.err != nil {
		return 0, info.err
	}
	return info.pid, nil
}
