package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/segyhp/lending-ledger/internal/cache"
	"github.com/segyhp/lending-ledger/internal/config"
	"github.com/segyhp/lending-ledger/internal/repository"
	"github.com/segyhp/lending-ledger/internal/service"
	"github.com/segyhp/lending-ledger/pkg/logger"
	"github.com/segyhp/lending-ledger/pkg/response"
)

// app carries what every subcommand needs once the root has set it up.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	db      *sqlx.DB
	redis   *redis.Client
	library *service.Library
	out     *response.Renderer

	stdin      io.Reader
	lines      *bufio.Reader
	stdout     io.Writer
	stderr     io.Writer
	jsonOutput bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	a := &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	err := a.execute(ctx, os.Args[1:])
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// execute runs one command line and renders any error it returns.
func (a *app) execute(ctx context.Context, args []string) error {
	defer a.close()

	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		if a.out == nil {
			a.out = response.NewRenderer(a.stdout, a.stderr, a.jsonOutput)
		}
		_ = a.out.Error(err)
	}
	return err
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "library",
		Short:         "Manage the catalog, members and loans of a small library",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		a.bookCommand(),
		a.memberCommand(),
		a.loanCommand(),
		a.returnCommand(),
		a.loansCommand(),
		a.overdueCommand(),
		a.fineCommand(),
		a.reportCommand(),
		a.sweepCommand(),
		a.librarianCommand(),
		a.exportCommand(),
		a.importCommand(),
		a.healthCommand(),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	a.out = response.NewRenderer(a.stdout, a.stderr, a.jsonOutput)

	// A missing .env is fine; the environment and defaults still apply.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	a.cfg = cfg
	a.log = logger.New(a.stderr, cfg.Logging.Level, cfg.Logging.Format)

	a.db, err = repository.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	opts := []service.Option{service.WithLogger(a.log)}
	if cfg.Redis.URL != "" {
		a.redis, err = cache.NewClient(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = append(opts, service.WithReportCache(cache.NewReportCache(a.redis, cfg.GetCacheTTL())))
	}

	a.library = service.NewLibrary(repository.NewSQLStores(a.db), service.PolicyFromConfig(cfg), opts...)
	return nil
}

func (a *app) close() {
	if a.redis != nil {
		a.redis.Close()
		a.redis = nil
	}
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
}
