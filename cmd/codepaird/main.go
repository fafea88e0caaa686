// codepaird is the collaboration server: room directory, autocomplete, and
// per-room websocket fan-out.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/binaryash/code-editor/pkg/api"
	"github.com/binaryash/code-editor/pkg/config"
	"github.com/binaryash/code-editor/pkg/logging"
	"github.com/binaryash/code-editor/pkg/storage"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "codepaird: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("codepaird", flag.ContinueOnError)
	bind := fs.String("bind", cfg.Server.Bind, "address to listen on")
	dbPath := fs.String("db", cfg.Server.DatabasePath, "path to the room database")
	logDir := fs.String("log-dir", cfg.Logging.Dir, "directory for structured logs")
	origins := fs.String("allow-origin", "", "allowed browser origins (comma-separated, empty allows all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := logging.NewLogger(*logDir, "codepaird")
	if err != nil {
		return err
	}
	defer logger.Close()
	logger.SetMinLevel(logging.Level(cfg.Logging.MinLevel))

	store, err := storage.New(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	var allowed []string
	if strings.TrimSpace(*origins) != "" {
		for _, origin := range strings.Split(*origins, ",") {
			allowed = append(allowed, strings.TrimSpace(origin))
		}
	}

	server := api.NewServer(api.ServerConfig{
		Bind:           *bind,
		Store:          store,
		Logger:         logger,
		AllowedOrigins: allowed,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})

	fmt.Printf("codepaird listening on %s\n", *bind)
	return g.Wait()
}
