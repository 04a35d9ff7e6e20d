package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/concierge/ai/location"
	"github.com/hrygo/concierge/ai/metrics"
	"github.com/hrygo/concierge/ai/observability/logging"
	"github.com/hrygo/concierge/ai/seed"
	"github.com/hrygo/concierge/internal/profile"
	"github.com/hrygo/concierge/internal/version"
	"github.com/hrygo/concierge/server"
	"github.com/hrygo/concierge/server/service/concierge"
)

var (
	rootCmd = &cobra.Command{
		Use:   "concierge",
		Short: `Intent classification and location-aware retrieval for a Vietnamese hotel and travel assistant.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Systemd units provide their own environment file.
			if !isRunningAsSystemdService() {
				_ = godotenv.Load()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context())
		},
	}

	analyzeCmd = &cobra.Command{
		Use:   "analyze <message>",
		Short: "Classify a message and print the analysis as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConcierge(cmd.Context(), func(ctx context.Context, c *concierge.Concierge) error {
				res, err := c.Router.Analyze(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}

	resolveCmd = &cobra.Command{
		Use:   "resolve <text>",
		Short: "Resolve the location mentioned in text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exact, _ := cmd.Flags().GetBool("province")
			return withConcierge(cmd.Context(), func(ctx context.Context, c *concierge.Concierge) error {
				text := strings.Join(args, " ")
				var (
					doc *location.Document
					err error
				)
				if exact {
					doc, err = c.Resolver.FindByProvinceExact(ctx, text)
				} else {
					doc, err = c.Resolver.FindInText(ctx, text)
				}
				if err != nil {
					return err
				}
				if doc == nil {
					fmt.Fprintln(os.Stderr, "no location found")
					return nil
				}
				return printJSON(doc)
			})
		},
	}

	autocompleteCmd = &cobra.Command{
		Use:   "autocomplete <prefix>",
		Short: "List locations whose name starts with prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withConcierge(cmd.Context(), func(ctx context.Context, c *concierge.Concierge) error {
				docs, err := c.Resolver.Autocomplete(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return printJSON(docs)
			})
		},
	}

	seedCmd = &cobra.Command{
		Use:   "seed <path>",
		Short: "Embed and store intent samples and documents from a YAML file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConcierge(cmd.Context(), func(ctx context.Context, c *concierge.Concierge) error {
				if c.Store == nil {
					return errors.New("seeding requires a vector store, set --driver")
				}
				if c.Embedder == nil {
					return errors.New("seeding requires an embedding provider, set CONCIERGE_EMBEDDING_API_KEY")
				}
				f, err := seed.NewLoader(".").LoadPath(args[0])
				if err != nil {
					return err
				}
				report, err := seed.NewSeeder(c.Embedder, c.Store).Apply(ctx, f)
				if err != nil {
					return err
				}
				return printJSON(report)
			})
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(*cobra.Command, []string) {
			fmt.Println(version.StringFull())
			if err := version.Validate(); err != nil {
				fmt.Fprintln(os.Stderr, "warning:", err)
			}
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("port", 28090)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of server")
	rootCmd.PersistentFlags().String("driver", "", "vector store driver (postgres, sqlite); empty disables vector classification")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")
	rootCmd.PersistentFlags().String("locations", "", "JSON file with location documents, used when no mongo uri is set")
	rootCmd.PersistentFlags().String("cache", "memory", "retrieval cache backend (memory, redis, noop)")

	for _, name := range []string{"mode", "addr", "port", "driver", "dsn", "locations", "cache"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("concierge")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindEnv("locations", "CONCIERGE_LOCATIONS_FILE"); err != nil {
		panic(err)
	}
	if err := viper.BindEnv("cache", "CONCIERGE_CACHE_BACKEND"); err != nil {
		panic(err)
	}

	resolveCmd.Flags().Bool("province", false, "treat the argument as a province name (exact tiers) instead of free text")
	autocompleteCmd.Flags().Int("limit", 10, "maximum number of suggestions")

	rootCmd.AddCommand(analyzeCmd, resolveCmd, autocompleteCmd, seedCmd, versionCmd)
}

// loadProfile merges flags, CONCIERGE_* variables and defaults, then installs
// the logger.
func loadProfile() (*profile.Profile, error) {
	if err := version.Validate(); err != nil {
		return nil, err
	}
	instanceProfile := &profile.Profile{
		Mode:    viper.GetString("mode"),
		Addr:    viper.GetString("addr"),
		Port:    viper.GetInt("port"),
		Driver:  viper.GetString("driver"),
		DSN:     viper.GetString("dsn"),
		Version: version.GetCurrentVersion(viper.GetString("mode")),
	}
	instanceProfile.FromEnv()
	// Flags win over the environment defaults applied by FromEnv.
	if v := viper.GetString("locations"); v != "" {
		instanceProfile.LocationsFile = v
	}
	if v := viper.GetString("cache"); v != "" {
		instanceProfile.CacheBackend = v
	}
	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}
	if _, err := logging.Setup(instanceProfile.LogFormat, instanceProfile.LogLevel); err != nil {
		return nil, err
	}
	return instanceProfile, nil
}

func withConcierge(ctx context.Context, fn func(context.Context, *concierge.Concierge) error) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	c, err := concierge.Build(ctx, p, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(context.Background()); err != nil {
			slog.Warn("failed to close backends", "error", err)
		}
	}()
	return fn(ctx, c)
}

func runServer(parent context.Context) error {
	instanceProfile, err := loadProfile()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())
	c, err := concierge.Build(ctx, instanceProfile, exporter)
	if err != nil {
		slog.Error("failed to build concierge", "error", err)
		return err
	}

	s, err := server.NewServer(ctx, instanceProfile, c, exporter)
	if err != nil {
		_ = c.Close(ctx)
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, terminationSignals...)

	if err := s.Start(ctx); err != nil {
		_ = c.Close(ctx)
		return err
	}
	printGreetings(instanceProfile)

	go func() {
		<-sigs
		s.Shutdown(context.Background())
		cancel()
	}()

	<-ctx.Done()
	return nil
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("Concierge %s started successfully!\n", profile.Version)
	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}
	fmt.Printf("Vector store: %s\n", orNone(profile.Driver))
	fmt.Printf("Cache backend: %s\n", profile.CacheBackend)
	if len(profile.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", profile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", profile.Addr, profile.Port)
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// isRunningAsSystemdService detects if the process is running under systemd
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
