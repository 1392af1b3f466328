// Package config binds meshstate's runtime settings from flags and
// environment variables, flags taking precedence, with sensible defaults
// for a single-node deployment.
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envPrefix namespaces every bound environment variable, so MESHSTATE_LOG_LEVEL
// binds to log-level, MESHSTATE_STATE_ADDR to state-addr, and so on.
const envPrefix = "MESHSTATE"

// Config is every setting cmd/meshstate needs to stand up a server, a
// worker, or a client, regardless of which subcommand is running.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogJSON switches the logger from console to structured JSON output.
	LogJSON bool

	// StateAddr is where the state server listens for state connections.
	StateAddr string
	// WatcherAddr is where the watcher service listens.
	WatcherAddr string
	// TaskAddr is where the task proxy listens for dispatch submissions.
	TaskAddr string
	// TaskResultAddr is where the task proxy listens for result lookups.
	TaskResultAddr string

	// MetricsAddr is where /metrics, /healthz, and /readyz are served.
	MetricsAddr string
	// MetricsInterval is how often Collector samples queue depth and
	// worker count.
	MetricsInterval time.Duration

	// Namespace is the default namespace a client or worker operates in
	// when it doesn't say otherwise.
	Namespace string

	// WorkerCount is how many worker goroutines `start-server` starts in
	// its task swarm to pull dispatches.
	WorkerCount int

	// ConnectAddr is the state server address a client or worker dials,
	// as opposed to StateAddr, which is the address a server binds.
	ConnectAddr string
}

// Bind registers every Config field as a persistent flag on flags and
// returns a Viper instance with environment binding already wired in.
// Callers read the final values with Load after flags are parsed.
func Bind(flags *pflag.FlagSet) *viper.Viper {
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "output logs in JSON format")

	flags.String("state-addr", "127.0.0.1:4200", "address the state server binds")
	flags.String("watcher-addr", "127.0.0.1:4201", "address the watcher service binds")
	flags.String("task-addr", "127.0.0.1:4202", "address the task proxy binds for dispatch submission")
	flags.String("task-result-addr", "127.0.0.1:4203", "address the task proxy binds for result lookups")

	flags.String("metrics-addr", "127.0.0.1:4209", "address the metrics and health endpoints bind")
	flags.Duration("metrics-interval", 15*time.Second, "how often queue depth and worker count gauges are sampled")

	flags.String("namespace", "default", "default state namespace")
	flags.Int("worker-count", 4, "number of worker goroutines start-server runs in its task swarm")

	flags.String("connect-addr", "ws://127.0.0.1:4200", "state server address a client or worker dials")

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)
	return v
}

// Load reads every Config field out of v, which must already have its
// flags bound via Bind and parsed.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel: v.GetString("log-level"),
		LogJSON:  v.GetBool("log-json"),

		StateAddr:      v.GetString("state-addr"),
		WatcherAddr:    v.GetString("watcher-addr"),
		TaskAddr:       v.GetString("task-addr"),
		TaskResultAddr: v.GetString("task-result-addr"),

		MetricsAddr:     v.GetString("metrics-addr"),
		MetricsInterval: v.GetDuration("metrics-interval"),

		Namespace:   v.GetString("namespace"),
		WorkerCount: v.GetInt("worker-count"),

		ConnectAddr: v.GetString("connect-addr"),
	}
}
