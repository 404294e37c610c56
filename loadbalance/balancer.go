// Package loadbalance chooses which registered simulator a client connects to when
// discovery returns more than one.
//
//   - RoundRobin:      successive clients spread evenly over equal simulators
//   - WeightedRandom:  simulators on hosts of different capacity
package loadbalance

import (
	"errors"
	"fmt"
	"smp2client/registry"
	"strings"
)

// ErrNoInstances is returned when there is nothing to pick from.
var ErrNoInstances = errors.New("no instances available")

// Balancer selects one instance; implementations must be goroutine-safe.
type Balancer interface {
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// Name returns the strategy name (for logging/config).
	Name() string
}

// New returns the balancer registered under name ("roundrobin" or "weighted").
func New(name string) (Balancer, error) {
	switch strings.ToLower(name) {
	case "", "roundrobin", "round-robin":
		return &RoundRobinBalancer{}, nil
	case "weighted", "weightedrandom", "weighted-random":
		return &WeightedRandomBalancer{}, nil
	default:
		return nil, fmt.Errorf("unknown balancer %q", name)
	}
}
