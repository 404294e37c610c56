package main

import (
	"context"
	"smp2client/client"
	"smp2client/config"
	"smp2client/loadbalance"
	"smp2client/logging"
	"smp2client/middleware"
	"smp2client/registry"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const etcdDialTimeout = 5 * time.Second

// app holds what the subcommands share once flags are parsed.
type app struct {
	v       *viper.Viper
	conf    *config.Config
	logger  *zap.Logger
	metrics *metrics.Set // nil unless --metrics
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "smp2ctl",
		Short: "Control an SMP2 simulator over JSON-RPC",
		Long: `smp2ctl sends JSON-RPC requests to an SMP2 simulator over a ZeroMQ
request/reply socket and prints each result as JSON.

Error replies from the simulator are logged and produce no output.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}
	config.SetupFlags(root)

	root.AddCommand(a.controlCommands()...)
	root.AddCommand(a.discoveryCommands()...)
	return root
}

// setup reads the configuration and builds the logger
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	config.Init(a.v)
	if err := config.BindFlags(a.v, cmd); err != nil {
		return err
	}

	conf, err := config.FromViper(a.v)
	if err != nil {
		return err
	}
	a.conf = conf

	a.logger, err = logging.New(conf.LogLevel)
	if err != nil {
		return err
	}
	if conf.Metrics {
		a.metrics = metrics.NewSet()
	}
	return nil
}

func (a *app) teardown(*cobra.Command, []string) error {
	_ = a.logger.Sync()
	return nil
}

// writeMetrics dumps the collected call metrics when --metrics is set. Commands that
// talk to the simulator defer it, so failed calls are reported too.
func (a *app) writeMetrics(cmd *cobra.Command) {
	if a.metrics != nil {
		a.metrics.WritePrometheus(cmd.ErrOrStderr())
	}
}

// connect dials the configured simulator, looking it up in etcd when enabled.
func (a *app) connect(ctx context.Context) (*client.Client, error) {
	endpoint := a.conf.Endpoint()
	if a.conf.UseDiscovery() {
		var err error
		if endpoint, err = a.resolve(ctx); err != nil {
			return nil, err
		}
	}

	mws := []middleware.Middleware{middleware.LoggingMiddleware(a.logger)}
	if a.metrics != nil {
		mws = append(mws, middleware.MetricsMiddleware(a.metrics))
	}
	if a.conf.RateLimit > 0 {
		mws = append(mws, middleware.RateLimitMiddleware(a.conf.RateLimit, a.conf.RateBurst))
	}

	a.logger.Debug("connecting", zap.String("endpoint", endpoint))
	return client.DialEndpoint(endpoint,
		client.WithLogger(a.logger),
		client.WithMiddleware(mws...),
	)
}

func (a *app) resolve(ctx context.Context) (string, error) {
	reg, err := a.registry()
	if err != nil {
		return "", err
	}
	defer reg.Close()

	bal, err := loadbalance.New(a.conf.Balancer)
	if err != nil {
		return "", err
	}
	endpoint, err := client.Resolve(ctx, reg, bal, a.conf.Service)
	if err != nil {
		return "", err
	}
	a.logger.Debug("resolved simulator",
		zap.String("service", a.conf.Service),
		zap.String("balancer", bal.Name()),
		zap.String("endpoint", endpoint),
	)
	return endpoint, nil
}

func (a *app) registry() (*registry.EtcdRegistry, error) {
	if !a.conf.UseDiscovery() {
		return nil, errNoEtcd
	}
	return registry.NewEtcdRegistry(a.conf.EtcdEndpoints, etcdDialTimeout)
}
