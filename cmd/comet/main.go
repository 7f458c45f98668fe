package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/comet/pkg/cache"
	"github.com/ajitpratap0/comet/pkg/clients"
	"github.com/ajitpratap0/comet/pkg/config"
	"github.com/ajitpratap0/comet/pkg/discovery"
	"github.com/ajitpratap0/comet/pkg/errors"
	"github.com/ajitpratap0/comet/pkg/json"
	"github.com/ajitpratap0/comet/pkg/logger"
	"github.com/ajitpratap0/comet/pkg/models"
	"github.com/ajitpratap0/comet/pkg/schema"
	"github.com/ajitpratap0/comet/pkg/stream"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var configFile string

	root := &cobra.Command{
		Use:   "comet",
		Short: "Comet - incremental REST extraction connector",
		Long: `Comet extracts entities from a REST integration API incrementally.
It discovers entities dynamically, synthesizes JSON schemas from upstream
metadata, follows HATEOAS pagination, and resumes from per-entity bookmarks.`,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Comet v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "discover",
		Short: "List entities and print their generated schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			return runDiscover(cmd.Context(), cfg)
		},
	})

	var entities []string
	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract entities as NDJSON on stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			return runExtract(cmd.Context(), cfg, entities)
		},
	}
	extractCmd.Flags().StringSliceVarP(&entities, "entity", "e", nil, "entities to extract (default: all selected by include/exclude)")
	root.AddCommand(extractCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.NewConfig()
	if path != "" {
		if err := config.Load(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logger.Init(logger.Config{Level: cfg.Observability.LogLevel}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newDiscoverer(cfg *config.Config) (*discovery.Discoverer, *clients.HTTPClient) {
	log := logger.Get()
	client := clients.NewHTTPClient(cfg, log)
	manager := cache.NewManager(cfg.Cache.TTL, cfg.Cache.Capacity, log)
	return discovery.NewDiscoverer(client, manager, cfg, log), client
}

func runDiscover(ctx context.Context, cfg *config.Config) error {
	d, client := newDiscoverer(cfg)
	defer client.Close()

	entities, err := d.DiscoverEntities(ctx)
	if err != nil {
		return err
	}
	selected := d.FilterEntities(entities)

	catalog := make(map[string]string, len(selected))
	for _, name := range selected {
		catalog[name] = entities[name]
	}
	descriptors, failures := d.DescribeAll(ctx, catalog)

	log := logger.Get()
	for name, ferr := range failures {
		log.Warn("describe failed", zap.String("entity", name), zap.Error(ferr))
	}

	generator := schemaGenerator()
	enc := json.NewEncoder(os.Stdout)
	for _, name := range selected {
		descriptor := descriptors[name]
		out := map[string]interface{}{
			"entity":   name,
			"endpoint": entities[name],
			"schema":   entitySchema(generator, descriptor),
		}
		if err := enc.Encode(out); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode schema")
		}
	}
	return nil
}

func runExtract(ctx context.Context, cfg *config.Config, requested []string) error {
	log := logger.Get()
	defer func() { _ = logger.Sync() }()

	if cfg.Observability.EnableMetrics {
		go serveMetrics(cfg.Observability.MetricsAddr, log)
	}

	d, client := newDiscoverer(cfg)
	defer client.Close()

	entities, err := d.DiscoverEntities(ctx)
	if err != nil {
		return err
	}

	selected := requested
	if len(selected) == 0 {
		selected = d.FilterEntities(entities)
	}

	bookmarks := stream.NewMemoryBookmarkStore()
	enc := json.NewEncoder(os.Stdout)

	// Entities run sequentially; a failing entity is reported and never
	// aborts its siblings.
	var failed int
	for _, name := range selected {
		endpoint, ok := entities[name]
		if !ok {
			log.Warn("requested entity not in upstream catalog", zap.String("entity", name))
			failed++
			continue
		}

		driver := stream.NewDriver(name, endpoint, client, bookmarks, cfg, log)
		rs := driver.Extract(ctx)

		for record := range rs.Records {
			if err := enc.Encode(record); err != nil {
				return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode record")
			}
		}
		if serr := <-rs.Errors; serr != nil {
			log.Error("entity extraction failed", zap.String("entity", name), zap.Error(serr))
			failed++
		}
	}

	if state, err := bookmarks.Export(); err == nil {
		log.Info("bookmark state", zap.ByteString("bookmarks", state))
	}

	if failed > 0 {
		return errors.Newf(errors.ErrorTypeInternal, "%d of %d entities failed", failed, len(selected))
	}
	return nil
}

func schemaGenerator() *schema.Generator {
	return schema.NewGenerator(logger.Get())
}

// entitySchema picks the generated schema, or the open fallback when
// the entity has no metadata.
func entitySchema(g *schema.Generator, descriptor *models.EntityDescriptor) *schema.Node {
	if descriptor == nil {
		return schema.FallbackSchema()
	}
	return g.Generate(descriptor)
}

func serveMetrics(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics endpoint stopped", zap.Error(err))
	}
}
