package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/meshstate/pkg/config"
	"github.com/cuemby/meshstate/pkg/metrics"
	"github.com/cuemby/meshstate/pkg/stateserver"
	"github.com/cuemby/meshstate/pkg/taskproxy"
	"github.com/cuemby/meshstate/pkg/taskstore"
	"github.com/cuemby/meshstate/pkg/transport"
	"github.com/cuemby/meshstate/pkg/watcher"
	"github.com/cuemby/meshstate/pkg/wire"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds how long start-server waits for in-flight
// connections to drain before forcing every HTTP server closed.
const shutdownTimeout = 10 * time.Second

var startServerCmd = &cobra.Command{
	Use:   "start-server",
	Short: "Start the state server, watcher service, and task proxy",
	Long: `start-server brings up the full meshstate control plane on this
node: the state server and its command loop, the watcher service
clients long-poll against, and the task proxy with its in-process
worker pool sized by --worker-count.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(v)

		meta := wire.ServerMeta{
			Version:        Version,
			InstanceID:     uuid.NewString(),
			StateAddress:   wsURL(cfg.StateAddr),
			WatcherAddress: wsURL(cfg.WatcherAddr),
			TaskAddress:    wsURL(cfg.TaskAddr),
			TaskResultPull: wsURL(cfg.TaskResultAddr),
		}

		broker := watcher.NewBroker()
		store := taskstore.New()

		server := stateserver.NewServer(broker, meta)
		stateserver.RegisterBuiltins(server)

		proxy := taskproxy.New(store, stateProvider(server))
		swarm := taskproxy.NewSwarm(proxy)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// g coordinates the command loop, every listener goroutine, and the
		// shutdown watcher below: the first one to fail or be asked to stop
		// cancels gctx for all the others, and Wait blocks until every one
		// of them has actually returned.
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			server.Run(gctx)
			return nil
		})
		swarm.Start(cfg.WorkerCount)

		collector := metrics.NewCollector(proxy, swarm)
		collector.Start(cfg.MetricsInterval)
		metrics.SetVersion(Version)
		metrics.RegisterComponent("state", true, "command loop running")
		metrics.RegisterComponent("watcher", true, "ready")
		metrics.RegisterComponent("taskproxy", true, "ready")

		stateSrv := &http.Server{Addr: cfg.StateAddr, Handler: transport.NewRRServer(server.Handler())}
		watcherSrv := &http.Server{Addr: cfg.WatcherAddr, Handler: transport.NewRRServer(broker.Handler())}
		taskSrv := &http.Server{Addr: cfg.TaskAddr, Handler: transport.NewRRServer(proxy.Handler())}
		resultSrv := &http.Server{Addr: cfg.TaskResultAddr, Handler: transport.NewRRServer(store.Handler())}

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/healthz", metrics.HealthHandler())
		mux.Handle("/readyz", metrics.ReadyHandler())
		mux.Handle("/livez", metrics.LivenessHandler())
		metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

		servers := []*http.Server{stateSrv, watcherSrv, taskSrv, resultSrv, metricsSrv}
		for _, s := range servers {
			s := s
			g.Go(func() error {
				if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return fmt.Errorf("%s: %v", s.Addr, err)
				}
				return nil
			})
		}

		fmt.Printf("state server listening on %s\n", cfg.StateAddr)
		fmt.Printf("watcher service listening on %s\n", cfg.WatcherAddr)
		fmt.Printf("task proxy listening on %s (dispatch) / %s (results)\n", cfg.TaskAddr, cfg.TaskResultAddr)
		fmt.Printf("metrics and health endpoints on %s\n", cfg.MetricsAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		g.Go(func() error {
			select {
			case <-sigCh:
				fmt.Println("\nshutting down...")
			case <-gctx.Done():
			}

			cancel()
			swarm.Stop()
			collector.Stop()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			for _, s := range servers {
				_ = s.Shutdown(shutdownCtx)
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
		}
		fmt.Println("shutdown complete")
		return nil
	},
}

// wsURL turns a bind address into the ws:// URL a client dials to reach it.
func wsURL(addr string) string {
	return "ws://" + addr
}

// stateProviderTimeout bounds a PassState task dispatch's snapshot read
// against the state server's command loop.
const stateProviderTimeout = 5 * time.Second

// stateProvider adapts Server's command loop to taskproxy.StateProvider,
// so a task operation registered with PassState gets a live snapshot
// without either package importing the other's types.
func stateProvider(server *stateserver.Server) taskproxy.StateProvider {
	return func(namespace string) map[string]any {
		ctx, cancel := context.WithTimeout(context.Background(), stateProviderTimeout)
		defer cancel()
		reply := server.Execute(ctx, wire.Envelope{Cmd: wire.CmdGetState, Namespace: namespace})
		if !reply.OK {
			return nil
		}
		state, _ := reply.Value.(map[string]any)
		return state
	}
}
