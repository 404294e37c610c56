package client

import (
	"context"
	"fmt"
	"smp2client/loadbalance"
	"smp2client/registry"
)

// DefaultService is the registry name simulators register under.
const DefaultService = "simulator"

// Resolve looks up the simulators registered under service and returns the endpoint
// of the one bal picks.
func Resolve(ctx context.Context, reg registry.Registry, bal loadbalance.Balancer, service string) (string, error) {
	instances, err := reg.Discover(ctx, service)
	if err != nil {
		return "", err
	}

	instance, err := bal.Pick(instances)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", service, err)
	}
	return "tcp://" + instance.Addr, nil
}
