package netradio

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/radiolink/radiolink-core/internal/readings"
)

// applyHost applies a changed host setting. Runs on the engine goroutine.
//
// An empty host clears the resolved address and returns the bridge to
// discovery-only operation. A non-empty host resolves synchronously within
// the resolve timeout; failure puts the bridge in host_error with every
// send suppressed until the host setting changes again.
func (b *Bridge) applyHost(host string, now time.Time) error {
	b.record.Host = host

	if host == "" {
		b.record.HostIP = ""
		b.record.IP = ""
		b.record.Broadcast = ""

		batch := b.store.Begin(readings.SourceCommand)
		b.stage(batch, ReadingIP, "")
		b.setStatus(batch, StatusOffline, now)
		b.commit(batch)

		b.logInfo("host cleared, relying on discovery")
		return nil
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.cfg.GetResolveTimeout())
	defer cancel()

	ip, err := b.resolveIPv4(ctx, host)
	if err != nil {
		b.commitStatus(StatusHostError, now, readings.SourceCommand)

		b.logError("host resolution failed", "host", host, "error", err)
		return fmt.Errorf("%w: %q: %v", ErrResolveFailed, host, err)
	}

	// The discovery-known address is deliberately not set here: reply
	// correlation and the first-acquisition refresh key off addresses the
	// receiver itself reported, and a changed host voids the old one.
	b.record.HostIP = ip
	b.record.IP = ""
	b.record.Broadcast = deriveBroadcast(ip)

	batch := b.store.Begin(readings.SourceCommand)
	b.stage(batch, ReadingIP, ip)
	b.setStatus(batch, StatusOffline, now)
	b.commit(batch)

	b.logInfo("host resolved", "host", host, "ip", ip, "broadcast", b.record.Broadcast)
	return nil
}

// resolveIPv4 returns the first IPv4 address of host. A literal address
// skips the resolver.
func (b *Bridge) resolveIPv4(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4.String(), nil
		}
		return "", fmt.Errorf("%s is not an IPv4 address", host)
	}

	ips, err := b.lookupIP(ctx, host)
	if err != nil {
		return "", err
	}
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	return "", fmt.Errorf("no IPv4 address for %s", host)
}

// deriveBroadcast replaces the last octet of an IPv4 address with 255.
// This assumes a /24 network, which holds on the flat home networks the
// receiver lives on; an operator on a different prefix sets the broadcast
// address explicitly.
func deriveBroadcast(ip string) string {
	ip4 := net.ParseIP(ip).To4()
	if ip4 == nil {
		return ""
	}
	derived := make(net.IP, len(ip4))
	copy(derived, ip4)
	derived[3] = 255
	return derived.String()
}
