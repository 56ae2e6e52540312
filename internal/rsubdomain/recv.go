package rsubdomain

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// recvLoop is the single reader loop from spec §4.2: it demuxes
// datalink → IPv4 → UDP → DNS, filters by (id / 100 == flagID), and
// for each answer RR emits a Record and releases the slot. Grounded
// on the original engine's handle_dns_packet, generalized from pnet's
// layer accessors to gopacket's.
func recvLoop(ctx context.Context, handle *pcap.Handle, flagID uint16, table *slotTable, results chan<- Record) {
	src := gopacket.NewPacketSource(handle, handle.LinkType())
	packets := src.Packets()
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-packets:
			if !ok {
				return
			}
			handlePacket(pkt, flagID, table, results)
		}
	}
}

func handlePacket(pkt gopacket.Packet, flagID uint16, table *slotTable, results chan<- Record) {
	dnsLayer := pkt.Layer(layers.LayerTypeDNS)
	if dnsLayer == nil {
		return
	}
	dns, ok := dnsLayer.(*layers.DNS)
	if !ok || !dns.QR {
		return
	}
	if dns.ID/100 != flagID {
		return
	}
	slot := int(dns.ID % 100)

	p, ok := table.get(slot)
	if !ok {
		return
	}
	queryName := p.Domain
	if len(dns.Questions) > 0 {
		queryName = string(dns.Questions[0].Name)
	}

	for _, rr := range dns.Answers {
		rec, ok := toRecord(queryName, rr)
		if ok {
			select {
			case results <- rec:
			default:
			}
		}
	}
	table.release(slot)
}

func toRecord(domain string, rr layers.DNSResourceRecord) (Record, bool) {
	switch rr.Type {
	case layers.DNSTypeA:
		if len(rr.IP) == 0 {
			return Record{}, false
		}
		return Record{Domain: domain, Type: "A", Value: rr.IP.String()}, true
	case layers.DNSTypeCNAME:
		return Record{Domain: domain, Type: "CNAME", Value: trimDNSName(rr.CNAME)}, true
	case layers.DNSTypeNS:
		return Record{Domain: domain, Type: "NS", Value: trimDNSName(rr.NS)}, true
	case layers.DNSTypeMX:
		return Record{Domain: domain, Type: "MX", Value: strconv.Itoa(int(rr.MX.Preference)) + " " + trimDNSName(rr.MX.Name)}, true
	case layers.DNSTypeTXT:
		if len(rr.TXTs) == 0 {
			return Record{}, false
		}
		parts := make([]string, len(rr.TXTs))
		for i, t := range rr.TXTs {
			parts[i] = string(t)
		}
		return Record{Domain: domain, Type: "TXT", Value: strings.Join(parts, " ")}, true
	default:
		return Record{}, false
	}
}

func trimDNSName(name []byte) string {
	return strings.TrimSuffix(string(name), ".")
}
