package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mnemograph/mnemograph/engine/cluster"
	"github.com/mnemograph/mnemograph/engine/coordinator"
	"github.com/mnemograph/mnemograph/engine/embedding"
	"github.com/mnemograph/mnemograph/engine/graph"
	"github.com/mnemograph/mnemograph/engine/llmsummary"
	"github.com/mnemograph/mnemograph/engine/metrics"
	"github.com/mnemograph/mnemograph/engine/ratelimit"
	"github.com/mnemograph/mnemograph/engine/resultcache"
	"github.com/mnemograph/mnemograph/engine/topic"
	"github.com/mnemograph/mnemograph/engine/vectorindex"
	"github.com/mnemograph/mnemograph/internal/profile"
	"github.com/mnemograph/mnemograph/internal/version"
	"github.com/mnemograph/mnemograph/plugin/cron"
	"github.com/mnemograph/mnemograph/plugin/trajectory"
	"github.com/mnemograph/mnemograph/server"
	"github.com/mnemograph/mnemograph/store"
	"github.com/mnemograph/mnemograph/store/db"
)

const maxMemoryNodesPerGraph = 500

var rootCmd = &cobra.Command{
	Use:   "memoryengine",
	Short: `A personal learning-memory engine: ingests conversational memories, clusters them into topics, and serves a knowledge graph over them.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:        viper.GetString("mode"),
			Addr:        viper.GetString("addr"),
			Port:        viper.GetInt("port"),
			UNIXSock:    viper.GetString("unix-sock"),
			Data:        viper.GetString("data"),
			Driver:      viper.GetString("driver"),
			DSN:         viper.GetString("dsn"),
			InstanceURL: viper.GetString("instance-url"),
			Version:     version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			panic(err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			cancel()
			printDatabaseError(err, instanceProfile)
			slog.Error("failed to create db driver", "error", err)
			return
		}

		st := store.New(dbDriver)
		rec := metrics.New()

		co, cache, err := buildCoordinator(instanceProfile, st)
		if err != nil {
			cancel()
			slog.Error("failed to build coordinator", "error", err)
			return
		}

		proj := trajectory.New(co, cache)
		scheduler := cron.New(cron.DefaultLogger())
		if _, err := scheduler.Schedule("@every 1h", func(jobCtx context.Context) {
			userIDs, lerr := st.ListUserIDs(jobCtx)
			if lerr != nil {
				slog.Error("trajectory sweep: list user ids", "error", lerr)
				return
			}
			if rerr := proj.RefreshAll(jobCtx, userIDs); rerr != nil {
				slog.Warn("trajectory sweep: one or more users failed", "error", rerr)
			}
		}); err != nil {
			slog.Error("failed to schedule trajectory sweep", "error", err)
		}
		scheduler.Start()

		s, err := server.NewServer(ctx, instanceProfile, st, co, rec)
		if err != nil {
			cancel()
			slog.Error("failed to create server", "error", err)
			return
		}

		c := make(chan os.Signal, 1)
		signal.Notify(c, terminationSignals...)

		if err := s.Start(ctx); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				slog.Error("failed to start server", "error", err)
				cancel()
			}
		}

		printGreetings(instanceProfile)

		go func() {
			<-c
			scheduler.Stop()
			s.Shutdown(ctx)
			cancel()
		}()

		<-ctx.Done()
	},
}

// buildCoordinator wires the Embedding Gateway, Vector Index, Cluster
// Engine, Topic Labeler, Graph Builder, and Result Cache around the store,
// exactly the seven-dependency shape engine/coordinator.New expects.
func buildCoordinator(prof *profile.Profile, st *store.Store) (*coordinator.Coordinator, *resultcache.Cache, error) {
	bucket := ratelimit.New(ratelimit.DefaultConfig())
	gateway, err := embedding.New(embedding.Config{
		Provider:   prof.EmbeddingProvider,
		Model:      prof.EmbeddingModel,
		APIKey:     prof.EmbeddingAPIKey,
		BaseURL:    prof.EmbeddingBaseURL,
		Dimensions: prof.EmbeddingDimensions,
	}, bucket)
	if err != nil {
		return nil, nil, err
	}

	clusterEngine := cluster.New(store.ClusterLoader{Store: st}, st)
	vectorIndex := vectorindex.New(store.VectorLoader{Store: st}, 256, 0)

	var summarizer topic.Summarizer
	if prof.LLMProvider != "" {
		summarizer = llmsummary.New(llmsummary.Config{
			Provider: prof.LLMProvider,
			Model:    prof.LLMModel,
			APIKey:   prof.LLMAPIKey,
			BaseURL:  prof.LLMBaseURL,
			Timeout:  prof.LLMTimeoutSeconds,
		})
	}
	topicLabeler := topic.New(summarizer)
	graphBuilder := graph.New(maxMemoryNodesPerGraph)
	cache := resultcache.New(st, 512)

	co := coordinator.New(
		store.CoordinatorStore{Store: st},
		clusterEngine,
		topicLabeler,
		graphBuilder,
		vectorIndex,
		gateway,
		cache,
		coordinator.DefaultConfig(),
	)
	return co, cache, nil
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8790)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8790, "port of server")
	rootCmd.PersistentFlags().String("unix-sock", "", "path to the unix socket, overrides --addr and --port")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (postgres, sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka DSN)")
	rootCmd.PersistentFlags().String("instance-url", "", "the url of your memory engine instance")

	for _, flag := range []string{"mode", "addr", "port", "unix-sock", "data", "driver", "dsn", "instance-url"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("mnemograph")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(prof *profile.Profile) {
	fmt.Printf("mnemograph %s started successfully!\n", prof.Version)
	if prof.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if prof.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", prof.DSN)
		}
	}

	fmt.Printf("Data directory: %s\n", prof.Data)
	fmt.Printf("Database driver: %s\n", prof.Driver)
	fmt.Printf("Mode: %s\n", prof.Mode)

	if len(prof.UNIXSock) == 0 {
		if len(prof.Addr) == 0 {
			fmt.Printf("Server running on port %d\n", prof.Port)
		} else {
			fmt.Printf("Server running on %s:%d\n", prof.Addr, prof.Port)
		}
	} else {
		fmt.Printf("Server running on unix socket: %s\n", prof.UNIXSock)
	}
}

func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func printDatabaseError(err error, prof *profile.Profile) {
	fmt.Fprintln(os.Stderr, "\nDatabase connection failed")
	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host"):
		fmt.Fprintln(os.Stderr, "PostgreSQL is not running.")
		if prof.Driver == "postgres" {
			fmt.Fprintln(os.Stderr, "  Start it, or set MNEMOGRAPH_DRIVER=sqlite for local development.")
		}
	case strings.Contains(errMsg, "sslmode"):
		fmt.Fprintln(os.Stderr, "Add ?sslmode=disable to your DSN for a local PostgreSQL without TLS.")
	case strings.Contains(errMsg, "password authentication failed"):
		fmt.Fprintln(os.Stderr, "Check the credentials in your DSN or .env file.")
	default:
		fmt.Fprintln(os.Stderr, errMsg)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
