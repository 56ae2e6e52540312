package rsubdomain

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/gopacket/pcap"
	"github.com/rshield/rshield/internal/model"
)

// Default DNS resolvers the sender rotates through — grounded on the
// original engine's chose_dns rotation, which spreads queries across
// several public resolvers to avoid any one of them rate-limiting the
// run.
var defaultResolvers = []string{
	"8.8.8.8", "1.1.1.1", "9.9.9.9", "208.67.222.222",
}

const (
	retryTimeout      = time.Second
	maxRetries        = 5
	quietWindow       = 10 * time.Second
	throttleThreshold = 100
	resultBuffer      = 1024
)

// Engine is the packet DNS bruteforcer (spec §4.2). It satisfies
// orchestrator.Bruteforcer: Enabled reports whether the raw-socket
// privilege probe at construction succeeded, and Run performs one
// bruteforce pass, returning the union of resolved records as
// model.Domain rows.
type Engine struct {
	Dictionary []string

	mu      sync.Mutex
	enabled bool
	probed  bool
}

// NewEngine constructs a bruteforcer and probes for raw-socket
// privileges immediately: the check is cheap (enumerate interfaces,
// attempt to open one live) and spec §4.2 requires the whole
// subsystem to degrade to disabled rather than fail the pipeline when
// those privileges are absent.
func NewEngine(dictionary []string) *Engine {
	e := &Engine{Dictionary: dictionary}
	e.probeCapability()
	return e
}

func (e *Engine) probeCapability() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.probed {
		return
	}
	e.probed = true

	devices, err := pcap.FindAllDevs()
	if err != nil || len(devices) == 0 {
		e.enabled = false
		return
	}
	for _, dev := range devices {
		if isLoopbackDevice(dev) {
			continue
		}
		handle, err := pcap.OpenLive(dev.Name, 65, true, time.Millisecond)
		if err != nil {
			continue
		}
		handle.Close()
		e.enabled = true
		return
	}
	e.enabled = false
}

// Enabled implements orchestrator.Bruteforcer.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// Run implements orchestrator.Bruteforcer. rootDomains seed the base
// wordlist combinations; dictionary overrides Engine.Dictionary for
// this run when non-empty; level is the subdomain_level from spec
// §4.2 (3, 4, or 5).
func (e *Engine) Run(ctx context.Context, rootDomains []string, dictionary []string, level int) ([]model.Domain, error) {
	if !e.Enabled() {
		return nil, fmt.Errorf("rsubdomain: raw-socket privileges unavailable, engine disabled")
	}
	dict := dictionary
	if len(dict) == 0 {
		dict = e.Dictionary
	}

	eth, err := discoverInterface(ctx)
	if err != nil {
		return nil, fmt.Errorf("rsubdomain: interface discovery: %w", err)
	}

	flagID, err := randomFlagID()
	if err != nil {
		return nil, err
	}

	handle, err := pcap.OpenLive(eth.Name, 1600, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("rsubdomain: open %s: %w", eth.Name, err)
	}
	defer handle.Close()
	if err := handle.SetBPFFilter(fmt.Sprintf("udp and src port 53 and dst host %s", eth.SrcIP)); err != nil {
		return nil, err
	}

	table := newSlotTable(slotCapacity)
	results := make(chan Record, resultBuffer)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sender := &sender{handle: handle, eth: eth, flagID: flagID, table: table, resolvers: defaultResolvers}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		recvLoop(runCtx, handle, flagID, table, results)
	}()
	go func() {
		defer wg.Done()
		sweep(runCtx, table, sender)
	}()

	queries := buildWordlist(rootDomains, rootDomains, dict, level)
	for _, q := range queries {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			break
		}
		sender.send(q, 0)
	}

	records := collectUntilQuiet(runCtx, table, results)
	cancel()
	wg.Wait()

	return toDomainModels(records), nil
}

// collectUntilQuiet drains results until the in-flight table has been
// empty for quietWindow, or the context is cancelled, matching spec
// §4.2's termination rule.
func collectUntilQuiet(ctx context.Context, table *slotTable, results chan Record) []Record {
	var out []Record
	idleSince := time.Time{}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return out
		case r := <-results:
			out = append(out, r)
			idleSince = time.Time{}
		case <-ticker.C:
			if table.len() == 0 {
				if idleSince.IsZero() {
					idleSince = time.Now()
				} else if time.Since(idleSince) >= quietWindow {
					return out
				}
			} else {
				idleSince = time.Time{}
			}
		}
	}
}

func randomFlagID() (uint16, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(655-400))
	if err != nil {
		return 0, fmt.Errorf("rsubdomain: choose flag-id: %w", err)
	}
	return uint16(400 + n.Int64()), nil
}

func toDomainModels(records []Record) []model.Domain {
	byDomain := make(map[string]*model.Domain)
	order := []string{}
	for _, r := range records {
		d, ok := byDomain[r.Domain]
		if !ok {
			d = &model.Domain{Domain: r.Domain, SourceTag: "rsubdomain"}
			byDomain[r.Domain] = d
			order = append(order, r.Domain)
		}
		switch strings.ToUpper(r.Type) {
		case "A":
			d.A = append(d.A, r.Value)
		case "CNAME":
			d.CNAME = append(d.CNAME, r.Value)
		case "NS":
			d.NS = append(d.NS, r.Value)
		case "MX":
			d.MX = append(d.MX, r.Value)
		}
	}
	out := make([]model.Domain, 0, len(order))
	for _, name := range order {
		out = append(out, *byDomain[name])
	}
	return out
}
