package validate

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// ProbeResult is the outcome of one bounded hop-trace.
type ProbeResult struct {
	Reached  bool          `json:"reached"`
	FirstHop string        `json:"first_hop,omitempty"`
	Hops     int           `json:"hops"`
	Latency  time.Duration `json:"latency"`
}

// ProbeOptions bound a single trace. A probe that exhausts MaxHops or
// Overall without a reply is a non-reply, not an error.
type ProbeOptions struct {
	MaxHops    int
	HopTimeout time.Duration
	Overall    time.Duration
}

// DefaultProbeOptions mirror the original verifier's bounds.
func DefaultProbeOptions() ProbeOptions {
	return ProbeOptions{MaxHops: 8, HopTimeout: 1500 * time.Millisecond, Overall: 10 * time.Second}
}

// Prober performs reachability probes. The ICMP implementation needs raw
// socket privilege; tests substitute a fake.
type Prober interface {
	Trace(ctx context.Context, target string, opts ProbeOptions) (ProbeResult, error)
}

// ICMPProber sends echo requests with increasing TTL and interprets
// time-exceeded replies as hops and an echo reply as the destination.
type ICMPProber struct{}

// Trace runs one bounded hop-trace toward target (an IPv4 address).
// No state is mutated; a probe is purely informational.
func (p *ICMPProber) Trace(ctx context.Context, target string, opts ProbeOptions) (ProbeResult, error) {
	var result ProbeResult

	dst, err := net.ResolveIPAddr("ip4", target)
	if err != nil {
		return result, fmt.Errorf("probe target %q: %w", target, err)
	}

	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return result, fmt.Errorf("opening ICMP socket: %w", err)
	}
	defer conn.Close()
	pc := ipv4.NewPacketConn(conn)

	deadline := time.Now().Add(opts.Overall)
	id := os.Getpid() & 0xffff

	for ttl := 1; ttl <= opts.MaxHops; ttl++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if time.Now().After(deadline) {
			return result, nil // no reply within the overall deadline
		}

		if err := pc.SetTTL(ttl); err != nil {
			return result, fmt.Errorf("setting TTL %d: %w", ttl, err)
		}

		msg := icmp.Message{
			Type: ipv4.ICMPTypeEcho,
			Body: &icmp.Echo{ID: id, Seq: ttl, Data: []byte("routewarden-probe")},
		}
		wb, err := msg.Marshal(nil)
		if err != nil {
			return result, err
		}

		sent := time.Now()
		if _, err := conn.WriteTo(wb, dst); err != nil {
			return result, fmt.Errorf("sending probe: %w", err)
		}

		hopDeadline := sent.Add(opts.HopTimeout)
		if hopDeadline.After(deadline) {
			hopDeadline = deadline
		}
		if err := conn.SetReadDeadline(hopDeadline); err != nil {
			return result, err
		}

		rb := make([]byte, 1500)
		n, peer, err := conn.ReadFrom(rb)
		if err != nil {
			continue // hop timeout: try the next TTL
		}

		rm, err := icmp.ParseMessage(1, rb[:n]) // 1 = iana.ProtocolICMP
		if err != nil {
			continue
		}

		result.Hops = ttl
		if result.FirstHop == "" {
			result.FirstHop = peer.String()
		}

		switch rm.Type {
		case ipv4.ICMPTypeEchoReply:
			result.Reached = true
			result.Latency = time.Since(sent)
			return result, nil
		case ipv4.ICMPTypeTimeExceeded:
			// intermediate hop answered; keep walking
		case ipv4.ICMPTypeDestinationUnreachable:
			return result, nil
		}
	}
	return result, nil
}
