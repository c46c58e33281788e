package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/preston-bernstein/oddsharvester/internal/app/harvest"
	"github.com/preston-bernstein/oddsharvester/internal/config"
	"github.com/preston-bernstein/oddsharvester/internal/discovery"
	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
	"github.com/preston-bernstein/oddsharvester/internal/server"
	"github.com/preston-bernstein/oddsharvester/internal/timeutil"
)

const (
	appVersion  = "dev"
	serviceName = "oddsharvester"

	cmdUpcoming = "scrape_upcoming"
	cmdHistoric = "scrape_historic"
	cmdLinks    = "match_links"
	cmdServe    = "serve"
)

var errUsage = errors.New("usage: oddsharvester <scrape_upcoming|scrape_historic|match_links|serve> [flags]")

// Swapped in tests so one-shot runs never launch a browser.
var (
	buildStack = server.BuildStack
	runServer  = func(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
		ctx, stop := context.WithCancel(ctx)
		defer stop()
		srv, err := server.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		srv.Run(ctx, stop)
		return nil
	}
)

func main() {
	if os.Getenv("SKIP_SERVER_RUN") == "1" {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	command := args[0]
	switch command {
	case cmdUpcoming, cmdHistoric, cmdLinks, cmdServe:
	default:
		return fmt.Errorf("unknown command %q\n%w", command, errUsage)
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := bindFlags(fs, command)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	opts.links = append(opts.links, fs.Args()...)

	cfg, err := config.Read(opts.configPath)
	if err != nil {
		return err
	}
	opts.apply(fs, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.NewLogger(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: serviceName,
		Version: appVersion,
		Output:  stderr,
	})

	if command == cmdServe {
		return runServer(ctx, cfg, logger)
	}
	return harvestOnce(ctx, command, opts, cfg, logger, stdout)
}

func harvestOnce(ctx context.Context, command string, opts *options, cfg config.Config, logger *slog.Logger, stdout io.Writer) error {
	sport, ok := domain.ParseSport(cfg.Scrape.Sport)
	if !ok {
		return fmt.Errorf("unknown sport %q", cfg.Scrape.Sport)
	}

	useLinks := command == cmdLinks || len(opts.links) > 0
	if command == cmdHistoric && !useLinks {
		if err := discovery.ValidateSeason(opts.season); err != nil {
			return err
		}
	}

	stack, err := buildStack(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer stack.Close()

	var result harvest.Run
	switch {
	case useLinks:
		result, err = stack.Harvest.Links(ctx, harvest.LinksRequest{
			Sport:   sport,
			URLs:    opts.links,
			Markets: cfg.Scrape.Markets,
		})
	case command == cmdHistoric:
		result, err = stack.Harvest.Historic(ctx, harvest.HistoricRequest{
			Sport:    sport,
			League:   cfg.Scrape.League,
			Season:   opts.season,
			MaxPages: cfg.Scrape.MaxPages,
			Markets:  cfg.Scrape.Markets,
		})
	default:
		date, derr := upcomingDate(opts.date, stack.Location)
		if derr != nil {
			return derr
		}
		result, err = stack.Harvest.Upcoming(ctx, harvest.UpcomingRequest{
			Sport:   sport,
			Date:    date,
			League:  cfg.Scrape.League,
			Markets: cfg.Scrape.Markets,
		})
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func upcomingDate(raw string, loc *time.Location) (time.Time, error) {
	now := time.Now()
	if raw == "" {
		if loc == nil {
			loc = time.UTC
		}
		return timeutil.StartOfDay(now.In(loc)), nil
	}
	return discovery.ParseUpcomingDate(raw, now, loc)
}
