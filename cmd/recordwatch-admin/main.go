package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/slipstreamlabs/recordwatch/config"
	"github.com/slipstreamlabs/recordwatch/internal/bootstrap"
	"github.com/slipstreamlabs/recordwatch/internal/data"
	"github.com/slipstreamlabs/recordwatch/internal/devseed"
	"github.com/slipstreamlabs/recordwatch/internal/domain"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
	"github.com/slipstreamlabs/recordwatch/internal/service"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const defaultMigrationTimeout = 5 * time.Minute

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"db-reset": {
			name:        "db-reset",
			description: "Drop the database schema, run migrations, and optionally seed data",
			run:         runDBReset,
		},
		"db-seed": {
			name:        "db-seed",
			description: "Run database migrations and seed development data",
			run:         runDBSeed,
		},
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
		"job-status": {
			name:        "job-status",
			description: "Show the queue row for one job",
			run:         runJobStatus,
		},
		"requeue": {
			name:        "requeue",
			description: "Clone a failed job as a fresh pending job with a new fire key",
			run:         runRequeue,
		},
		"ping": {
			name:        "ping",
			description: "Check DB, Redis, and SMTP reachability",
			run:         runPing,
		},
		"job-stats": {
			name:        "job-stats",
			description: "Show queue depth per job type, optionally with recent jobs",
			run:         runJobStats,
		},
		"list-checks": {
			name:        "list-checks",
			description: "List configured scheduled checks and their next fire times",
			run:         runListChecks,
		},
		"digest-show": {
			name:        "digest-show",
			description: "Inspect digest records for a date (all unsent, or one user)",
			run:         runDigestShow,
		},
		"quota-reset": {
			name:        "quota-reset",
			description: "Clear a subject's daily search quota counter in Redis",
			run:         runQuotaReset,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: recordwatch-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}
	for _, c := range commands() {
		if err := writef(os.Stdout, "  %-24s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

type migrateOptions struct {
	Timeout time.Duration
}

type dbResetOptions struct {
	Timeout     time.Duration
	Yes         bool
	Seed        bool
	AllowRemote bool
}

type dbSeedOptions struct {
	Timeout     time.Duration
	AllowRemote bool
}

type jobStatsOptions struct {
	Type   string
	Recent int
}

type digestShowOptions struct {
	Date string
	User string
}

type quotaResetOptions struct {
	Subject string
	Yes     bool
}

type jobIDOptions struct {
	ID string
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	cmdCtx.Logger.Info("running database migrations")

	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return fmt.Errorf("run migrations: %w", migrateErr)
	}

	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func runDBReset(cmdCtx *commandContext, args []string) error {
	opts, err := parseDBResetFlags(args)
	if err != nil {
		return err
	}

	target := fmt.Sprintf(
		"database %q on %s:%d",
		cmdCtx.Config.Postgres.Name,
		cmdCtx.Config.Postgres.Host,
		cmdCtx.Config.Postgres.Port,
	)

	remote, err := guardRemoteHost(cmdCtx, opts.AllowRemote, "drop and recreate the public schema")
	if err != nil {
		return err
	}

	confirmOpts := dbResetConfirmOptions{
		yes:    opts.Yes,
		target: target,
	}
	if remote {
		confirmOpts.remoteHost = cmdCtx.Config.Postgres.Host
	}
	if confirmErr := confirmAction(confirmOpts, "reset database schema"); confirmErr != nil {
		return confirmErr
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		cmdCtx.Logger.Info("dropping public schema", "database", cmdCtx.Config.Postgres.Name)
		if resetErr := cmdCtx.resetDatabase(ctx, db); resetErr != nil {
			return resetErr
		}

		cmdCtx.Logger.Info("re-running database migrations")
		if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
			return fmt.Errorf("run migrations: %w", migrateErr)
		}

		if opts.Seed {
			cmdCtx.Logger.Info("seeding development data after reset")
			if seedErr := devseed.Run(ctx, devseed.NewServices(db), cmdCtx.Logger); seedErr != nil {
				return fmt.Errorf("seed data: %w", seedErr)
			}
		}

		cmdCtx.Logger.Info("database reset completed successfully")
		return nil
	})
}

func runDBSeed(cmdCtx *commandContext, args []string) error {
	opts, err := parseDBSeedFlags(args)
	if err != nil {
		return err
	}

	if _, guardErr := guardRemoteHost(cmdCtx, opts.AllowRemote, "seed development data on the configured database"); guardErr != nil {
		return guardErr
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		cmdCtx.Logger.Info("ensuring database migrations are current")
		if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
			return fmt.Errorf("run migrations: %w", migrateErr)
		}

		cmdCtx.Logger.Info("seeding development data")
		if seedErr := devseed.Run(ctx, devseed.NewServices(db), cmdCtx.Logger); seedErr != nil {
			return fmt.Errorf("seed data: %w", seedErr)
		}

		cmdCtx.Logger.Info("database seeding completed successfully")
		return nil
	})
}

func runJobStats(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobStatsFlags(args)
	if err != nil {
		return err
	}

	jobTypes, err := jobTypesForFilter(opts.Type)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, time.Minute, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewJobRepo(db, data.RepoConfig{})

		rows := make([]jobStatsRow, 0, len(jobTypes))
		for _, jobType := range jobTypes {
			stats, statsErr := repo.Stats(ctx, jobType)
			if statsErr != nil {
				return fmt.Errorf("fetch stats for %s: %w", jobType, statsErr)
			}
			rows = append(rows, jobStatsRow{Type: jobType, Stats: stats})
		}

		if renderErr := renderJobStats(os.Stdout, rows); renderErr != nil {
			return renderErr
		}

		if opts.Recent <= 0 {
			return nil
		}
		for _, jobType := range jobTypes {
			jobs, listErr := repo.ListRecentByType(ctx, jobType, opts.Recent)
			if listErr != nil {
				return fmt.Errorf("list recent %s jobs: %w", jobType, listErr)
			}
			if renderErr := renderRecentJobs(os.Stdout, jobType, jobs); renderErr != nil {
				return renderErr
			}
		}
		return nil
	})
}

type jobStatsRow struct {
	Type  model.JobType
	Stats *model.JobStats
}

func jobTypesForFilter(filter string) ([]model.JobType, error) {
	all := []model.JobType{
		model.JobTypeMapSearch,
		model.JobTypeMapperCheck,
		model.JobTypeDriverCheck,
		model.JobTypeDigestDispatch,
	}
	if filter == "" {
		return all, nil
	}
	jobType := model.JobType(filter)
	if !jobType.Valid() {
		return nil, fmt.Errorf("unknown job type %q", filter)
	}
	return []model.JobType{jobType}, nil
}

func renderJobStats(w io.Writer, rows []jobStatsRow) error {
	if err := writef(w, "\nJob Queue Stats\n\n"); err != nil {
		return fmt.Errorf("print job stats header: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "TYPE\tPENDING\tRUNNING\tCOMPLETED\tFAILED\n"); err != nil {
		return fmt.Errorf("print job stats columns: %w", err)
	}
	for _, row := range rows {
		if row.Stats == nil {
			continue
		}
		if err := writef(tw, "%s\t%d\t%d\t%d\t%d\n",
			row.Type, row.Stats.Pending, row.Stats.Running, row.Stats.Completed, row.Stats.Failed); err != nil {
			return fmt.Errorf("print job stats row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush job stats table: %w", err)
	}
	return nil
}

func renderRecentJobs(w io.Writer, jobType model.JobType, jobs []*model.Job) error {
	if err := writef(w, "\nRecent %s jobs\n", jobType); err != nil {
		return fmt.Errorf("print recent jobs header: %w", err)
	}
	if len(jobs) == 0 {
		if err := writeln(w, "(none)"); err != nil {
			return fmt.Errorf("print recent jobs none: %w", err)
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "ID\tSTATUS\tRETRIES\tCREATED\n"); err != nil {
		return fmt.Errorf("print recent jobs columns: %w", err)
	}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		if err := writef(tw, "%s\t%s\t%d\t%s\n",
			job.ID, job.Status, job.RetryCount, job.CreatedAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("print recent jobs row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush recent jobs table: %w", err)
	}
	return nil
}

func runListChecks(cmdCtx *commandContext, _ []string) error {
	return withDatabase(cmdCtx, time.Minute, func(ctx context.Context, db *sql.DB) error {
		checks, err := data.NewScheduledChecksAdminRepo(db).ListChecks(ctx)
		if err != nil {
			return fmt.Errorf("list scheduled checks: %w", err)
		}
		return renderScheduledChecks(os.Stdout, checks)
	})
}

func renderScheduledChecks(w io.Writer, checks []domain.ScheduledCheck) error {
	if err := writef(w, "\nScheduled Checks\n\n"); err != nil {
		return fmt.Errorf("print checks header: %w", err)
	}
	if len(checks) == 0 {
		if err := writeln(w, "(no scheduled checks configured)"); err != nil {
			return fmt.Errorf("print checks none: %w", err)
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "NAME\tCRON\tNEXT RUN\tLAST QUEUED\tPOLICY\n"); err != nil {
		return fmt.Errorf("print checks columns: %w", err)
	}
	for i := range checks {
		check := &checks[i]
		lastQueued := "-"
		if check.LastQueuedAt != nil {
			lastQueued = check.LastQueuedAt.UTC().Format(time.RFC3339)
		}
		policy := "default"
		if check.OverrunPolicy != nil {
			policy = string(*check.OverrunPolicy)
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\n",
			check.CheckName,
			check.CronSpec,
			check.NextRunAt.UTC().Format(time.RFC3339),
			lastQueued,
			policy); err != nil {
			return fmt.Errorf("print checks row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush checks table: %w", err)
	}
	return nil
}

func runDigestShow(cmdCtx *commandContext, args []string) error {
	opts, err := parseDigestShowFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, time.Minute, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewDigestRepo(db)

		if opts.User != "" {
			record, getErr := repo.GetByUserDate(ctx, opts.User, opts.Date)
			if getErr != nil {
				if errors.Is(getErr, data.ErrDigestNotFound) {
					return writef(os.Stdout, "No digest record for %s on %s\n", opts.User, opts.Date)
				}
				return getErr
			}
			return renderDigestRecord(os.Stdout, record)
		}

		records, listErr := repo.ListUnsent(ctx, opts.Date)
		if listErr != nil {
			return fmt.Errorf("list unsent digests: %w", listErr)
		}
		return renderUnsentDigests(os.Stdout, opts.Date, records)
	})
}

func renderDigestRecord(w io.Writer, record *model.DigestRecord) error {
	if record == nil {
		return nil
	}
	if err := writef(w, "\nDigest for %s on %s\n", record.OwningUser, record.DigestDate); err != nil {
		return fmt.Errorf("print digest header: %w", err)
	}
	sent := "unsent"
	if record.SentAt != nil {
		sent = "sent at " + record.SentAt.UTC().Format(time.RFC3339)
	}
	if err := writef(w, "Status: %s\n\n", sent); err != nil {
		return fmt.Errorf("print digest status: %w", err)
	}
	if err := renderDigestSection(w, "Mapper updates", record.MapperContent); err != nil {
		return err
	}
	return renderDigestSection(w, "Driver updates", record.DriverContent)
}

func renderDigestSection(w io.Writer, title string, lines []string) error {
	if err := writef(w, "%s (%d):\n", title, len(lines)); err != nil {
		return fmt.Errorf("print digest section title: %w", err)
	}
	if len(lines) == 0 {
		if err := writeln(w, "  (none)"); err != nil {
			return fmt.Errorf("print digest section none: %w", err)
		}
		return nil
	}
	for _, line := range lines {
		if err := writef(w, "  - %s\n", line); err != nil {
			return fmt.Errorf("print digest section line: %w", err)
		}
	}
	return nil
}

func renderUnsentDigests(w io.Writer, date string, records []*model.DigestRecord) error {
	if err := writef(w, "\nUnsent digests for %s\n\n", date); err != nil {
		return fmt.Errorf("print unsent header: %w", err)
	}
	if len(records) == 0 {
		if err := writeln(w, "(none)"); err != nil {
			return fmt.Errorf("print unsent none: %w", err)
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "USER\tMAPPER LINES\tDRIVER LINES\tUPDATED\n"); err != nil {
		return fmt.Errorf("print unsent columns: %w", err)
	}
	for _, record := range records {
		if record == nil {
			continue
		}
		if err := writef(tw, "%s\t%d\t%d\t%s\n",
			record.OwningUser,
			len(record.MapperContent),
			len(record.DriverContent),
			record.UpdatedAt.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("print unsent row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush unsent table: %w", err)
	}
	if err := writef(w, "\nTotal: %d\n", len(records)); err != nil {
		return fmt.Errorf("print unsent total: %w", err)
	}
	return nil
}

func runJobStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobIDFlags("job-status", args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, time.Minute, func(ctx context.Context, db *sql.DB) error {
		job, getErr := data.NewJobRepo(db, data.RepoConfig{}).GetByID(ctx, opts.ID)
		if getErr != nil {
			return fmt.Errorf("get job %s: %w", opts.ID, getErr)
		}
		return renderJob(os.Stdout, job)
	})
}

func renderJob(w io.Writer, job *model.Job) error {
	if job == nil {
		return nil
	}
	if err := writef(w, "\nJob %s\n\n", job.ID); err != nil {
		return fmt.Errorf("print job header: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"Type", string(job.Type)},
		{"Status", string(job.Status)},
		{"Priority", fmt.Sprintf("%d", job.Priority)},
		{"Retries", fmt.Sprintf("%d/%d", job.RetryCount, job.MaxRetries)},
		{"Scheduled", job.ScheduledAt.UTC().Format(time.RFC3339)},
		{"Created", job.CreatedAt.UTC().Format(time.RFC3339)},
	}
	if job.StartedAt != nil {
		rows = append(rows, [2]string{"Started", job.StartedAt.UTC().Format(time.RFC3339)})
	}
	if job.CompletedAt != nil {
		rows = append(rows, [2]string{"Completed", job.CompletedAt.UTC().Format(time.RFC3339)})
	}
	if job.LeaseExpiresAt != nil {
		rows = append(rows, [2]string{"Lease expires", job.LeaseExpiresAt.UTC().Format(time.RFC3339)})
	}
	if job.LastError != nil {
		rows = append(rows, [2]string{"Last error", *job.LastError})
	}
	for _, row := range rows {
		if err := writef(tw, "%s:\t%s\n", row[0], row[1]); err != nil {
			return fmt.Errorf("print job row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush job table: %w", err)
	}

	if len(job.Payload) > 0 {
		if err := writef(w, "\nPayload: %s\n", job.Payload); err != nil {
			return fmt.Errorf("print job payload: %w", err)
		}
	}
	if len(job.Metadata) > 0 {
		if err := writef(w, "Metadata: %s\n", job.Metadata); err != nil {
			return fmt.Errorf("print job metadata: %w", err)
		}
	}
	return nil
}

func runRequeue(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobIDFlags("requeue", args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, time.Minute, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewJobRepo(db, data.RepoConfig{})

		job, getErr := repo.GetByID(ctx, opts.ID)
		if getErr != nil {
			return fmt.Errorf("get job %s: %w", opts.ID, getErr)
		}
		if job.Status != model.JobStatusFailed {
			return fmt.Errorf("job %s is %s; only failed jobs can be requeued", job.ID, job.Status)
		}

		metadata, metaErr := requeueMetadata(job.Metadata)
		if metaErr != nil {
			return metaErr
		}

		clone, createErr := repo.Create(ctx, &model.CreateJobRequest{
			Type:       job.Type,
			Payload:    job.Payload,
			Metadata:   metadata,
			Priority:   job.Priority,
			MaxRetries: job.MaxRetries,
		})
		if createErr != nil {
			return fmt.Errorf("requeue job %s: %w", job.ID, createErr)
		}

		if printErr := writef(os.Stdout, "Requeued %s as %s\n", job.ID, clone.ID); printErr != nil {
			return fmt.Errorf("print requeue summary: %w", printErr)
		}
		return nil
	})
}

// requeueMetadata replaces the scheduler fire key so the clone clears the
// queue's uniqueness dedupe instead of colliding with the failed original.
func requeueMetadata(raw json.RawMessage) (json.RawMessage, error) {
	meta := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("decode job metadata: %w", err)
		}
	}
	meta["scheduler.fire_key"] = "requeue:" + uuid.NewString()

	out, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode job metadata: %w", err)
	}
	return json.RawMessage(out), nil
}

func runPing(cmdCtx *commandContext, _ []string) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 30*time.Second)
	defer cancel()

	db, redisClient, err := connectInfra(cmdCtx.Logger, &cmdCtx.Config)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeInfra(db, redisClient); cerr != nil {
			cmdCtx.Logger.Warn("close infra failed", "error", cerr)
		}
	}()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if pingErr := db.PingContext(gctx); pingErr != nil {
			return fmt.Errorf("postgres: %w", pingErr)
		}
		return writeln(os.Stdout, "postgres: ok")
	})
	group.Go(func() error {
		if redisClient == nil {
			return writeln(os.Stdout, "redis: not configured")
		}
		if pingErr := redisClient.Ping(gctx).Err(); pingErr != nil {
			return fmt.Errorf("redis: %w", pingErr)
		}
		return writeln(os.Stdout, "redis: ok")
	})
	group.Go(func() error {
		return pingSMTP(cmdCtx.Config.SMTP)
	})

	return group.Wait()
}

// pingSMTP only checks TCP reachability; a full handshake would tie up a relay
// connection for nothing.
func pingSMTP(cfg config.SMTPConfig) error {
	if !cfg.Enabled || cfg.Host == "" {
		return writeln(os.Stdout, "smtp: not configured")
	}
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("smtp: %w", err)
	}
	if closeErr := conn.Close(); closeErr != nil {
		return fmt.Errorf("smtp: close probe connection: %w", closeErr)
	}
	return writef(os.Stdout, "smtp: ok (%s)\n", addr)
}

func runQuotaReset(cmdCtx *commandContext, args []string) error {
	opts, err := parseQuotaResetFlags(args)
	if err != nil {
		return err
	}

	if confirmErr := confirmAction(quotaResetConfirmOptions{opts}, "reset search quota"); confirmErr != nil {
		return confirmErr
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, time.Minute)
	defer cancel()

	_, redisClient, err := connectInfraWithOptions(&connectInfraOptions{
		Logger:    cmdCtx.Logger,
		Config:    &cmdCtx.Config,
		WantRedis: true,
	})
	if err != nil {
		return err
	}
	if redisClient == nil {
		if writeErr := writeln(os.Stderr, "Redis client is not available"); writeErr != nil {
			return fmt.Errorf("print redis availability: %w", writeErr)
		}
		return nil
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	quota := data.NewRedisQuotaRepo(redisClient)
	scope := service.SearchQuotaScope(opts.Subject)

	used, err := quota.Current(ctx, scope)
	if err != nil {
		return fmt.Errorf("read quota counter: %w", err)
	}
	if resetErr := quota.Reset(ctx, scope); resetErr != nil {
		return fmt.Errorf("reset quota counter: %w", resetErr)
	}

	if err := writef(os.Stdout, "Cleared quota counter %q (was %d)\n", scope, used); err != nil {
		return fmt.Errorf("print quota summary: %w", err)
	}
	return nil
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{
		Timeout: defaultMigrationTimeout,
	}

	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete",
	)

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}

	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

func parseDBResetFlags(args []string) (dbResetOptions, error) {
	fs := flag.NewFlagSet("db-reset", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := dbResetOptions{
		Timeout: defaultMigrationTimeout,
	}

	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultMigrationTimeout,
		"Maximum duration to wait for reset operations to complete",
	)
	fs.BoolVar(
		&opts.Yes,
		"yes",
		false,
		"Skip confirmation prompt",
	)
	fs.BoolVar(
		&opts.Seed,
		"seed",
		false,
		"Run database seeding after reset completes",
	)
	fs.BoolVar(
		&opts.AllowRemote,
		"allow-remote",
		false,
		"Permit running against database hosts that do not look local",
	)

	if err := fs.Parse(args); err != nil {
		return dbResetOptions{}, err
	}

	if opts.Timeout <= 0 {
		return dbResetOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

func parseDBSeedFlags(args []string) (dbSeedOptions, error) {
	fs := flag.NewFlagSet("db-seed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := dbSeedOptions{
		Timeout: defaultMigrationTimeout,
	}

	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultMigrationTimeout,
		"Maximum duration to wait for seeding to complete",
	)
	fs.BoolVar(
		&opts.AllowRemote,
		"allow-remote",
		false,
		"Permit running against database hosts that do not look local",
	)

	if err := fs.Parse(args); err != nil {
		return dbSeedOptions{}, err
	}

	if opts.Timeout <= 0 {
		return dbSeedOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

func parseJobStatsFlags(args []string) (jobStatsOptions, error) {
	fs := flag.NewFlagSet("job-stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := jobStatsOptions{}
	fs.StringVar(
		&opts.Type,
		"type",
		"",
		"Restrict output to one job type (map_search, mapper_check, driver_check, digest_dispatch)",
	)
	fs.IntVar(
		&opts.Recent,
		"recent",
		0,
		"Also list the N most recent jobs per type",
	)

	if err := fs.Parse(args); err != nil {
		return jobStatsOptions{}, err
	}

	if opts.Recent < 0 {
		return jobStatsOptions{}, errors.New("--recent cannot be negative")
	}

	return opts, nil
}

func parseDigestShowFlags(args []string) (digestShowOptions, error) {
	fs := flag.NewFlagSet("digest-show", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := digestShowOptions{}
	fs.StringVar(
		&opts.Date,
		"date",
		model.DigestDate(time.Now()),
		"Digest date to inspect (YYYY-MM-DD, defaults to today UTC)",
	)
	fs.StringVar(
		&opts.User,
		"user",
		"",
		"Show the full digest record for one user instead of the unsent listing",
	)

	if err := fs.Parse(args); err != nil {
		return digestShowOptions{}, err
	}

	if _, err := model.ParseDigestDate(opts.Date); err != nil {
		return digestShowOptions{}, err
	}

	return opts, nil
}

func parseJobIDFlags(name string, args []string) (jobIDOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := jobIDOptions{}
	fs.StringVar(
		&opts.ID,
		"id",
		"",
		"Job ID to operate on",
	)

	if err := fs.Parse(args); err != nil {
		return jobIDOptions{}, err
	}

	// Allow a bare positional ID for convenience: `recordwatch-admin job-status <id>`.
	if opts.ID == "" && fs.NArg() == 1 {
		opts.ID = fs.Arg(0)
	}
	if strings.TrimSpace(opts.ID) == "" {
		return jobIDOptions{}, errors.New("--id (or a positional job id) is required")
	}

	return opts, nil
}

func parseQuotaResetFlags(args []string) (quotaResetOptions, error) {
	fs := flag.NewFlagSet("quota-reset", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := quotaResetOptions{}
	fs.StringVar(
		&opts.Subject,
		"subject",
		"",
		"Subject whose daily search counter should be cleared",
	)
	fs.BoolVar(
		&opts.Yes,
		"yes",
		false,
		"Skip confirmation prompt",
	)

	if err := fs.Parse(args); err != nil {
		return quotaResetOptions{}, err
	}

	if strings.TrimSpace(opts.Subject) == "" {
		return quotaResetOptions{}, errors.New("--subject is required")
	}

	return opts, nil
}

func withDatabase(
	cmdCtx *commandContext,
	timeout time.Duration,
	f func(context.Context, *sql.DB) error,
) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", cerr)
		}
	}()

	return f(ctx, db)
}

func guardRemoteHost(cmdCtx *commandContext, allow bool, action string) (bool, error) {
	remote := isLikelyRemoteHost(cmdCtx.Config.Postgres.Host)
	if !remote {
		return false, nil
	}
	if !allow {
		return true, fmt.Errorf(
			"refusing to run against potentially remote database host %q; re-run with --allow-remote if this is intentional",
			cmdCtx.Config.Postgres.Host,
		)
	}
	if err := requireRemoteHostConfirmation(action, cmdCtx.Config.Postgres.Host); err != nil {
		return true, err
	}
	return true, nil
}

func (cmdCtx *commandContext) resetDatabase(ctx context.Context, db *sql.DB) error {
	if cmdCtx == nil {
		return errors.New("command context is required")
	}

	cfg := &cmdCtx.Config.Postgres
	statements := []string{
		"DROP SCHEMA public CASCADE",
		"CREATE SCHEMA public",
		"GRANT ALL ON SCHEMA public TO public",
	}
	if user := strings.TrimSpace(cfg.User); user != "" && !strings.EqualFold(user, "public") {
		statements = append(statements, "GRANT ALL ON SCHEMA public TO "+quoteIdentifier(user))
	}

	for _, stmt := range statements {
		if cmdCtx.Logger != nil {
			cmdCtx.Logger.DebugContext(ctx, "executing reset statement", "sql", stmt)
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func isLikelyRemoteHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "" {
		return false
	}
	if h == "localhost" || h == "127.0.0.1" || h == "::1" {
		return false
	}
	if strings.HasSuffix(h, ".local") {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		return !ip.IsLoopback()
	}
	return true
}

func requireRemoteHostConfirmation(action, host string) error {
	if err := writef(
		os.Stderr,
		"\nWARNING: database host %q does not look like a local address.\n"+
			"This operation will %s.\n",
		host,
		action,
	); err != nil {
		return fmt.Errorf("print remote host warning: %w", err)
	}
	if err := writef(os.Stderr, "Type %q to continue or press enter to abort: ", host); err != nil {
		return fmt.Errorf("print remote host prompt: %w", err)
	}
	reader := bufio.NewReader(os.Stdin)
	resp, err := reader.ReadString('\n')
	if err != nil {
		if writeErr := writef(os.Stderr, "\nFailed to read confirmation input: %v\n", err); writeErr != nil {
			return fmt.Errorf("aborted by user: report write failed: %w", writeErr)
		}
		return errors.New("aborted by user")
	}
	if strings.TrimSpace(resp) != host {
		if writeErr := writeln(os.Stderr, "\nRemote safeguard check failed; aborting."); writeErr != nil {
			return fmt.Errorf("print remote safeguard failure: %w", writeErr)
		}
		return errors.New("aborted by user")
	}
	return nil
}

type confirmOptions interface {
	IsDryRun() bool
	IsYes() bool
	GetTarget() string
	GetWarning() string
}

type dbResetConfirmOptions struct {
	yes        bool
	target     string
	remoteHost string
}

func (d dbResetConfirmOptions) IsDryRun() bool { return false }
func (d dbResetConfirmOptions) IsYes() bool {
	if d.remoteHost != "" {
		return false
	}
	return d.yes
}

func (d dbResetConfirmOptions) GetWarning() string {
	warning := "WARNING: this will drop and recreate the public schema for the configured database."
	if d.remoteHost != "" {
		warning += fmt.Sprintf(" Host %q appears to be remote; double-check before proceeding.", d.remoteHost)
	}
	return warning
}
func (d dbResetConfirmOptions) GetTarget() string { return d.target }

type quotaResetConfirmOptions struct {
	opts quotaResetOptions
}

func (q quotaResetConfirmOptions) IsDryRun() bool { return false }
func (q quotaResetConfirmOptions) IsYes() bool    { return q.opts.Yes }
func (q quotaResetConfirmOptions) GetWarning() string {
	return "WARNING: this will clear the subject's daily search counter, letting them search again immediately."
}

func (q quotaResetConfirmOptions) GetTarget() string {
	return fmt.Sprintf("subject %q", q.opts.Subject)
}

func confirmAction(opts confirmOptions, actionType string) error {
	if opts.IsDryRun() || opts.IsYes() {
		return nil
	}

	if err := printConfirmationIntro(opts, actionType); err != nil {
		return err
	}

	if err := write(os.Stdout, "Continue? [y/N]: "); err != nil {
		return fmt.Errorf("print confirmation prompt: %w", err)
	}
	reader := bufio.NewReader(os.Stdin)
	resp, err := reader.ReadString('\n')
	if err != nil {
		if writeErr := writef(os.Stdout, "\nFailed to read confirmation input: %v\n", err); writeErr != nil {
			return fmt.Errorf("aborted by user: report write failed: %w", writeErr)
		}
		return errors.New("aborted by user")
	}
	resp = strings.ToLower(strings.TrimSpace(resp))
	if resp == "y" || resp == "yes" {
		return nil
	}
	return errors.New("aborted by user")
}

func printConfirmationIntro(opts confirmOptions, actionType string) error {
	target := opts.GetTarget()
	if target == "" {
		if err := writeln(os.Stdout, opts.GetWarning()); err != nil {
			return fmt.Errorf("print confirmation warning: %w", err)
		}
		return nil
	}

	if err := writef(os.Stdout, "About to %s for %s.\n", actionType, target); err != nil {
		return fmt.Errorf("print confirmation message: %w", err)
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func write(w io.Writer, args ...any) error {
	_, err := fmt.Fprint(w, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	if len(args) == 0 {
		_, err := fmt.Fprintln(w)
		return err
	}
	_, err := fmt.Fprintln(w, args...)
	return err
}
