// Package discovery locates a cast receiver on the local network via
// mDNS.
package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

const (
	serviceType = "_googlecast._tcp"
	domain      = "local."
)

// Find browses for cast receivers and returns the address of the first
// one that resolves, as host:port. Discovery is one-shot: picking among
// several receivers means passing an explicit address instead. The
// context bounds how long to wait.
func Find(ctx context.Context, logger *zap.Logger) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", fmt.Errorf("initialize resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, serviceType, domain, entries); err != nil {
		return "", fmt.Errorf("browse %s: %w", serviceType, err)
	}

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("no cast receiver found: %w", ctx.Err())
		case entry := <-entries:
			if entry == nil {
				continue
			}
			addr := entryAddr(entry)
			if addr == "" {
				continue
			}
			logger.Info("resolved cast receiver",
				zap.String("instance", entry.Instance),
				zap.String("addr", addr))
			return addr, nil
		}
	}
}

func entryAddr(entry *zeroconf.ServiceEntry) string {
	var ip net.IP
	switch {
	case len(entry.AddrIPv4) > 0:
		ip = entry.AddrIPv4[0]
	case len(entry.AddrIPv6) > 0:
		ip = entry.AddrIPv6[0]
	default:
		return ""
	}
	return net.JoinHostPort(ip.String(), strconv.Itoa(entry.Port))
}
