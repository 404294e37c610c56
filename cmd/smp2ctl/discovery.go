package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"smp2client/registry"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errNoEtcd = errors.New("etcd-endpoints is not configured")

func (a *app) discoveryCommands() []*cobra.Command {
	instancesCmd := &cobra.Command{
		Use:   "instances",
		Short: "List the simulators registered for --service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			defer reg.Close()

			instances, err := reg.Discover(cmd.Context(), a.conf.Service)
			if err != nil {
				return err
			}
			return printInstances(cmd.OutOrStdout(), instances)
		},
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the registered simulators every time the list changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			defer reg.Close()

			current, err := reg.Discover(cmd.Context(), a.conf.Service)
			if err != nil {
				return err
			}
			if err := printInstances(cmd.OutOrStdout(), current); err != nil {
				return err
			}
			for instances := range reg.Watch(cmd.Context(), a.conf.Service) {
				if err := printInstances(cmd.OutOrStdout(), instances); err != nil {
					return err
				}
			}
			return nil
		},
	}

	announceCmd := &cobra.Command{
		Use:   "announce [addr]",
		Short: "Register a simulator at addr (host:port) until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			weight, _ := cmd.Flags().GetInt("weight")
			version, _ := cmd.Flags().GetString("version")
			ttl, _ := cmd.Flags().GetInt64("ttl")

			reg, err := a.registry()
			if err != nil {
				return err
			}
			defer reg.Close()

			inst := registry.ServiceInstance{Addr: args[0], Weight: weight, Version: version}
			if err := reg.Register(cmd.Context(), a.conf.Service, inst, ttl); err != nil {
				return err
			}
			a.logger.Info("registered", zap.String("service", a.conf.Service), zap.String("addr", inst.Addr))

			<-cmd.Context().Done()

			ctx, cancel := context.WithTimeout(context.Background(), etcdDialTimeout)
			defer cancel()
			if err := reg.Deregister(ctx, a.conf.Service, inst.Addr); err != nil {
				return fmt.Errorf("deregister %s: %w", inst.Addr, err)
			}
			a.logger.Info("deregistered", zap.String("addr", inst.Addr))
			return nil
		},
	}
	announceCmd.Flags().Int("weight", 1, "Weight for the weighted balancer")
	announceCmd.Flags().String("version", "", "Version label of the simulator")
	announceCmd.Flags().Int64("ttl", 10, "Lease TTL in seconds")

	return []*cobra.Command{instancesCmd, watchCmd, announceCmd}
}

func printInstances(w io.Writer, instances []registry.ServiceInstance) error {
	data, err := json.Marshal(instances)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
