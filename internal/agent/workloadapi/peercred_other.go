//go:build !linux

package workloadapi

import (
	"fmt"
	"net"
	"runtime"

	"github.com/sufield/edgespiffe/internal/domain"
)

// Resolver is the non-Linux fallback: kernel-verified peer credentials have
// no portable equivalent wired here, so every resolution fails closed
// rather than trusting an unverifiable value.
type Resolver struct{}

// ResolvePID satisfies ports.PeerCredResolver.
func (Resolver) ResolvePID(conn net.Conn) (int, error) {
	return 0, fmt.Errorf("%w: SO_PEERCRED equivalent not implemented for %s/%s", domain.ErrUdsClientPID, runtime.GOOS, runtime.GOARCH)
}
