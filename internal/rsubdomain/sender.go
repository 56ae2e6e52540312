package rsubdomain

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// basePort is where the rolling source-port generator starts; ports
// wrap within a 16-bit range well clear of well-known ports.
const basePort = 20000

// sender owns outbound query assembly: it picks a DNS server, a
// rolling source port, and a free slot, then serializes and writes
// the ethernet/IPv4/UDP/DNS frame. flag-id tagging and slot encoding
// follow spec §4.2's "flag-id × 100 + slot-index" id-field scheme.
type sender struct {
	handle    *pcap.Handle
	eth       iface
	flagID    uint16
	table     *slotTable
	resolvers []string

	portCounter uint32
	dnsCounter  uint32
}

func (s *sender) chooseDNS() string {
	n := atomic.AddUint32(&s.dnsCounter, 1)
	return s.resolvers[int(n)%len(s.resolvers)]
}

func (s *sender) nextPort() uint16 {
	n := atomic.AddUint32(&s.portCounter, 1)
	return uint16(basePort + int(n)%(65535-basePort))
}

// send assembles and transmits a query for domain. level is the
// domain_level recorded against the slot for bookkeeping/retry
// purposes; it is not otherwise used on the wire. The call blocks
// (briefly retrying) until a slot is free, matching spec §4.2's "when
// full, the sender blocks on slot availability".
func (s *sender) send(domain string, level int) {
	dnsServer := s.chooseDNS()
	p := &pending{Domain: domain, DNSServer: dnsServer, SentAt: time.Now(), Level: level}

	var slot int
	for {
		if got, ok := s.table.acquire(p); ok {
			slot = got
			break
		}
		time.Sleep(time.Millisecond)
	}

	s.transmit(domain, dnsServer, slot, s.nextPort())
}

// resend re-transmits an existing pending entry (used by the
// sweeper), reusing its current slot and choosing a fresh server and
// timestamp.
func (s *sender) resend(slot int, p *pending) {
	p.DNSServer = s.chooseDNS()
	p.SentAt = time.Now()
	s.transmit(p.Domain, p.DNSServer, slot, s.nextPort())
}

func (s *sender) transmit(domain, dnsServer string, slot int, srcPort uint16) {
	if s.handle == nil {
		// No live capture handle (e.g. unit tests exercising retry
		// bookkeeping without a real interface) — nothing to write.
		return
	}
	id := s.flagID*100 + uint16(slot)

	eth := layers.Ethernet{
		SrcMAC:       s.eth.SrcMAC,
		DstMAC:       s.eth.GatewayMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    s.eth.SrcIP,
		DstIP:    parseIPv4(dnsServer),
	}
	udp := layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: 53}
	dns := layers.DNS{
		ID:      id,
		QDCount: 1,
		OpCode:  layers.DNSOpCodeQuery,
		RD:      true,
		Questions: []layers.DNSQuestion{
			{Name: []byte(domain), Type: layers.DNSTypeA, Class: layers.DNSClassIN},
		},
	}
	udp.SetNetworkLayerForChecksum(&ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &ip, &udp, &dns); err != nil {
		return
	}
	_ = s.handle.WritePacketData(buf.Bytes())
}

func parseIPv4(s string) net.IP {
	if ip := net.ParseIP(s); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4
		}
	}
	return net.IPv4(0, 0, 0, 0).To4()
}
