package graph

import (
	"fmt"

	"github.com/fyrsmithlabs/agentgraph/internal/config"
)

// Topology selects what follows a worker node.
type Topology int

const (
	// SingleHop ends the run after the dispatched worker.
	SingleHop Topology = iota
	// LoopBack returns to the supervisor after every worker.
	LoopBack
)

func (t Topology) String() string {
	switch t {
	case SingleHop:
		return config.RoutingSingle
	case LoopBack:
		return config.RoutingLoop
	default:
		return fmt.Sprintf("topology(%d)", int(t))
	}
}

// ParseTopology maps a routing mode to a topology.
func ParseTopology(mode string) (Topology, error) {
	switch mode {
	case config.RoutingSingle, "":
		return SingleHop, nil
	case config.RoutingLoop:
		return LoopBack, nil
	default:
		return SingleHop, fmt.Errorf("unknown routing mode %q (want %s or %s)", mode, config.RoutingSingle, config.RoutingLoop)
	}
}
