package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"dailybrief/internal/config"
	"dailybrief/internal/domain"
	"dailybrief/internal/github"
	"dailybrief/internal/importer"
	"dailybrief/internal/metrics"
	"dailybrief/internal/store"
)

// A command runs until done or until ctx is cancelled by a signal.
type command func(ctx context.Context, a *app) error

type commandRegistry map[string]command

var commands = commandRegistry{
	"brief":    briefCmd,
	"cached":   cachedCmd,
	"calendar": calendarCmd,
	"github":   githubCmd,
	"parse":    parseCmd,
	"status":   statusCmd,
	"clear":    clearCmd,
	"serve":    serveCmd,
	"watch":    watchCmd,
	"noop":     noopCmd,
}

type app struct {
	cfg      config.Config
	store    *store.FileStore
	useCase  *domain.UseCase
	registry *prometheus.Registry
}

func Run() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		help()
		os.Exit(2)
	}
	cmdFn, ok := commands[cfg.Cmd]
	if !ok {
		help()
		return
	}
	if err := config.SetupLogging(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan os.Signal, 1)
	signal.Notify(doneCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-doneCh
		cancel()
	}()

	a, err := newApp(ctx, cfg)
	if err == nil {
		err = cmdFn(ctx, a)
	}
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("cmd", cfg.Cmd).Msg("command failed")
	}
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	calImporter, err := importer.New(cfg.Calendar)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.CachePath)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var gh domain.GitHubFetcher
	if cfg.GitHub.Configured() {
		gh = github.New(cfg.GitHub)
	}
	uc := domain.New(ctx, calImporter, gh, st, domain.WithMetrics(metrics.MustNewMetrics(registry)))
	return &app{cfg: cfg, store: st, useCase: uc, registry: registry}, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "error encoding output")
	}
	fmt.Println(string(out))
	return nil
}

func help() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Usage: dailybrief --cmd [command]")
	fmt.Println("Commands: " + strings.Join(names, ", "))
	fmt.Println("Example: dailybrief --cmd brief --calendar.source ics_url --calendar.url https://example.com/cal.ics")
	fmt.Println("Config params (name|required|default), env prefix DAILYBRIEF_:\v")
	fmt.Println(config.Sprint())
}
