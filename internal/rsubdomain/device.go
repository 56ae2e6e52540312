package rsubdomain

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

const (
	probeZone       = "example.com"
	probeWindow     = 3 * time.Second
	probeSnapLength = 1600
)

// discoverInterface implements spec §4.2's interface discovery: it
// sends a pseudo-query for a random nonce subdomain of a well-known
// public zone out every non-loopback IPv4 interface, then watches for
// the matching reply to arrive; the interface the reply was observed
// on wins, and its {source IP, source MAC, gateway MAC, device name}
// tuple is captured. Grounded on the original engine's
// auto_get_devices probe-and-race pattern, adapted from pnet's async
// per-interface listener race to a single pcap handle selected by
// gopacket.
func discoverInterface(ctx context.Context) (iface, error) {
	nonce := make([]byte, 4)
	if _, err := rand.Read(nonce); err != nil {
		return iface{}, fmt.Errorf("rsubdomain: generate probe nonce: %w", err)
	}
	probeDomain := hex.EncodeToString(nonce) + "." + probeZone

	devices, err := pcap.FindAllDevs()
	if err != nil {
		return iface{}, fmt.Errorf("rsubdomain: enumerate interfaces: %w", err)
	}

	for _, dev := range devices {
		if isLoopbackDevice(dev) {
			continue
		}
		srcIP, ok := firstIPv4(dev)
		if !ok {
			continue
		}

		found, err := raceProbe(ctx, dev.Name, srcIP, probeDomain)
		if err != nil {
			continue
		}
		if found != nil {
			return *found, nil
		}
	}
	return iface{}, fmt.Errorf("rsubdomain: no interface observed a reply for probe %s", probeDomain)
}

func isLoopbackDevice(dev pcap.Interface) bool {
	for _, addr := range dev.Addresses {
		if addr.IP.IsLoopback() {
			return true
		}
	}
	return len(dev.Addresses) == 0
}

func firstIPv4(dev pcap.Interface) (net.IP, bool) {
	for _, addr := range dev.Addresses {
		if v4 := addr.IP.To4(); v4 != nil {
			return v4, true
		}
	}
	return nil, false
}

// raceProbe opens a capture handle on one interface, fires the probe
// query, and waits up to probeWindow for a DNS response naming the
// probe domain. A nil, nil result means no reply arrived on this
// interface within the window — the caller moves on to the next one.
func raceProbe(ctx context.Context, deviceName string, srcIP net.IP, probeDomain string) (*iface, error) {
	handle, err := pcap.OpenLive(deviceName, probeSnapLength, true, pcap.BlockForever)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	if err := handle.SetBPFFilter("udp and src port 53"); err != nil {
		return nil, err
	}

	if err := sendProbeQuery(handle, probeDomain); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(probeWindow)
	src := gopacket.NewPacketSource(handle, handle.LinkType())
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case pkt, ok := <-src.Packets():
			if !ok {
				return nil, nil
			}
			if found := matchProbeReply(pkt, probeDomain, deviceName, srcIP); found != nil {
				return found, nil
			}
		case <-time.After(remaining):
			return nil, nil
		}
	}
}

func sendProbeQuery(handle *pcap.Handle, probeDomain string) error {
	// The probe only needs to reach a resolver and elicit a reply
	// naming probeDomain; it is sent as a minimal best-effort UDP/53
	// query through the OS socket to the first default resolver (the
	// capture handle only watches for the reply), and does not require
	// a successfully-parsed answer to serve its purpose (the *query*
	// echoed back in most NXDOMAIN replies is what the matcher looks for).
	conn, err := net.Dial("udp", net.JoinHostPort(defaultResolvers[0], "53"))
	if err != nil {
		return err
	}
	defer conn.Close()
	dns := layers.DNS{
		ID:      0xbeef,
		QDCount: 1,
		OpCode:  layers.DNSOpCodeQuery,
		Questions: []layers.DNSQuestion{
			{Name: []byte(probeDomain), Type: layers.DNSTypeA, Class: layers.DNSClassIN},
		},
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, &dns); err != nil {
		return err
	}
	_, err = conn.Write(buf.Bytes())
	return err
}

func matchProbeReply(pkt gopacket.Packet, probeDomain, deviceName string, srcIP net.IP) *iface {
	dnsLayer := pkt.Layer(layers.LayerTypeDNS)
	if dnsLayer == nil {
		return nil
	}
	dns, ok := dnsLayer.(*layers.DNS)
	if !ok || !dns.QR || len(dns.Questions) == 0 {
		return nil
	}
	if string(dns.Questions[0].Name) != probeDomain {
		return nil
	}

	ethLayer := pkt.Layer(layers.LayerTypeEthernet)
	eth, ok := ethLayer.(*layers.Ethernet)
	if !ok {
		return nil
	}
	return &iface{
		Name:       deviceName,
		SrcIP:      srcIP,
		SrcMAC:     eth.DstMAC,
		GatewayMAC: eth.SrcMAC,
	}
}
