package activescan

import (
	"math/rand"
	"net"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// icmpPayloadSize is the fixed payload size spec §4.5 specifies for
// the ICMP leg (32 bytes).
const icmpPayloadSize = 32

// pingICMP sends a single ICMP echo request with a randomised
// identifier and a single attempt, per spec §4.5. Requires raw-socket
// privileges; any failure to open the socket (permission denied, no
// such capability) degrades to "not alive by this method" rather than
// propagating an error, since ICMP is only the first leg of a
// cascade.
func pingICMP(host string, timeout time.Duration) (bool, int64) {
	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return false, 0
	}
	defer conn.Close()

	dst, err := net.ResolveIPAddr("ip4", host)
	if err != nil {
		return false, 0
	}

	id := rand.Intn(0xffff)
	payload := make([]byte, icmpPayloadSize)
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{ID: id, Seq: 1, Data: payload},
	}
	wire, err := msg.Marshal(nil)
	if err != nil {
		return false, 0
	}

	start := time.Now()
	if _, err := conn.WriteTo(wire, dst); err != nil {
		return false, 0
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false, 0
	}
	reply := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(reply)
		if err != nil {
			return false, 0
		}
		if !peer.(*net.IPAddr).IP.Equal(dst.IP) {
			continue
		}
		parsed, err := icmp.ParseMessage(1, reply[:n])
		if err != nil {
			continue
		}
		if parsed.Type == ipv4.ICMPTypeEchoReply {
			return true, time.Since(start).Milliseconds()
		}
	}
}
