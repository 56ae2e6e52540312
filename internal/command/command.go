// Package command implements the typed operation surface the UI shell
// drives the appliance through. It is an in-process API, not a wire
// protocol: each method here corresponds to one named operation in the
// command surface (task management, inventory CRUD, config, plugins,
// active/passive scan control, brute-force control), grounded on the
// request/response method shape of checkin.Handler but collapsed from
// HTTP handlers into plain Go methods since there is no network hop
// between the UI shell and this process.
package command

import (
	"fmt"

	"github.com/rshield/rshield/internal/activescan"
	"github.com/rshield/rshield/internal/bruteforce"
	"github.com/rshield/rshield/internal/ca"
	"github.com/rshield/rshield/internal/orchestrator"
	"github.com/rshield/rshield/internal/pluginrt"
	"github.com/rshield/rshield/internal/proxy"
	"github.com/rshield/rshield/internal/store"
)

// Surface is the composition point every UI-facing operation hangs
// off of. It holds no state of its own beyond references to the
// subsystems that do.
type Surface struct {
	Store        *store.Store
	Orchestrator *orchestrator.Orchestrator
	Plugins      *pluginrt.Manager
	BruteForce   *bruteforce.Engine
	CA           *ca.CA
	Proxy        *proxy.Proxy
	ActiveScan   *activescan.Engine
}

// New builds a Surface over the given subsystems. Any of them may be
// nil if that subsystem was disabled at startup; operations that need
// a missing subsystem return an error rather than panicking.
func New(st *store.Store, orch *orchestrator.Orchestrator, plugins *pluginrt.Manager, bf *bruteforce.Engine, cert *ca.CA, prox *proxy.Proxy, activeScan *activescan.Engine) *Surface {
	return &Surface{Store: st, Orchestrator: orch, Plugins: plugins, BruteForce: bf, CA: cert, Proxy: prox, ActiveScan: activeScan}
}

var errNoOrchestrator = fmt.Errorf("active scan orchestrator is not configured")
var errNoPlugins = fmt.Errorf("plugin runtime is not configured")
var errNoBruteForce = fmt.Errorf("brute-force engine is not configured")
var errNoCA = fmt.Errorf("certificate authority is not configured")
var errNoProxy = fmt.Errorf("intercepting proxy is not configured")
var errNoActiveScan = fmt.Errorf("active scan engine is not configured")
