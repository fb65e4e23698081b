//go:build linux

package workloadapi

import (
	"fmt"
	"net"
	"syscall"

	"github.com/sufield/edgespiffe/internal/domain"
)

// Resolver implements ports.PeerCredResolver using SO_PEERCRED, the only
// mechanism that cannot be spoofed by the connecting process. On other
// platforms Resolver (peercred_other.go) fails every resolution with
// domain.ErrUdsClientPID: the Workload-API server still starts there, and
// every RPC that needs the caller's PID fails.
type Resolver struct{}

// ResolvePID satisfies ports.PeerCredResolver.
func (Resolver) ResolvePID(conn net.Conn) (int, error) {
	return resolvePID(conn)
}

func resolvePID(conn net.Conn) (int, error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return 0, fmt.Errorf("%w: not a unix socket connection", domain.ErrUdsClientPID)
	}

	rawConn, err := unixConn.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrUdsClientPID, err)
	}

	var (
		ucred   *syscall.Ucred
		credErr error
	)
	if ctrlErr := rawConn.Control(func(fd uintptr) {
		ucred, credErr = syscall.GetsockoptUcred(int(fd), syscall.SOL_SOCKET, syscall.SO_PEERCRED)
	}); ctrlErr != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrUdsClientPID, ctrlErr)
	}
	if credErr != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrUdsClientPID, credErr)
	}
	if ucred == nil {
		return 0, fmt.Errorf("%w: nil peer credentials", domain.ErrUdsClientPID)
	}
	if ucred.Pid <= 0 {
		return 0, fmt.Errorf("%w: pid=%d", domain.ErrNegativePID, ucred.Pid)
	}
	return int(ucred.Pid), nil
}
