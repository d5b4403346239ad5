package devseed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/slipstreamlabs/recordwatch/internal/data"
	"github.com/slipstreamlabs/recordwatch/internal/domain"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB      *sql.DB
	mappers *data.MapperAlertRepo
	drivers *data.DriverNotificationRepo
	admin   *data.ScheduledChecksAdminRepo
}

// NewServices constructs the repositories used for seeding from the provided DB.
func NewServices(db *sql.DB) Services {
	return Services{
		DB:      db,
		mappers: data.NewMapperAlertRepo(db),
		drivers: data.NewDriverNotificationRepo(db),
		admin:   data.NewScheduledChecksAdminRepo(db),
	}
}

// Run executes the full development seeding workflow against the provided DB.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	failures := 0
	failures += seedMapperAlerts(ctx, svcs.mappers, logger)
	failures += seedDriverNotifications(ctx, svcs.drivers, logger)
	if err := seedScheduledChecks(ctx, svcs.admin, logger); err != nil {
		return err
	}
	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func seedMapperAlerts(ctx context.Context, repo *data.MapperAlertRepo, logger *slog.Logger) int {
	failures := 0
	alerts := []model.CreateMapperAlertRequest{
		{Subject: "speedking", Contact: "speedking@example.com"},
		{Subject: "turbo-sam", Contact: "sam@example.com"},
		{Subject: "nightshift", Contact: "night@example.com"},
	}

	for i := range alerts {
		created, err := createMapperAlert(ctx, repo, &alerts[i])
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to create mapper alert", "subject", alerts[i].Subject, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			msg := "mapper alert already exists"
			if created {
				msg = "created mapper alert"
			}
			logger.InfoContext(ctx, msg, "subject", alerts[i].Subject)
		}
	}

	return failures
}

func createMapperAlert(ctx context.Context, repo *data.MapperAlertRepo, req *model.CreateMapperAlertRequest) (bool, error) {
	if _, err := repo.Create(ctx, req); err != nil {
		if errors.Is(err, data.ErrMapperAlertSubjectExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func seedDriverNotifications(ctx context.Context, repo *data.DriverNotificationRepo, logger *slog.Logger) int {
	failures := 0
	drivers := []model.CreateDriverNotificationRequest{
		{
			AccountID:   "acct-1001",
			DisplayName: "speedking",
			Contact:     "speedking@example.com",
			MapID:       "map-canyon-sprint",
			MapName:     "Canyon Sprint",
			Position:    3,
			Score:       47210,
		},
		{
			AccountID:   "acct-1002",
			DisplayName: "turbo-sam",
			Contact:     "sam@example.com",
			MapID:       "map-dune-circuit",
			MapName:     "Dune Circuit",
			Position:    12,
			Score:       51894,
		},
		{
			AccountID:   "acct-1003",
			DisplayName: "nightshift",
			Contact:     "night@example.com",
			MapID:       "map-canyon-sprint",
			MapName:     "Canyon Sprint",
			Position:    41,
			Score:       49337,
		},
	}

	for i := range drivers {
		created, err := createDriverNotification(ctx, repo, &drivers[i])
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to create driver notification",
					"display_name", drivers[i].DisplayName, "map_id", drivers[i].MapID, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			msg := "driver notification already exists"
			if created {
				msg = "created driver notification"
			}
			logger.InfoContext(ctx, msg, "display_name", drivers[i].DisplayName, "map_id", drivers[i].MapID)
		}
	}

	return failures
}

func createDriverNotification(
	ctx context.Context,
	repo *data.DriverNotificationRepo,
	req *model.CreateDriverNotificationRequest,
) (bool, error) {
	if _, err := repo.Create(ctx, req); err != nil {
		if errors.Is(err, data.ErrDriverNotificationExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type checkSeedSpec struct {
	checkName string
	cronSpec  string
	payload   any
}

// defaultCheckSeeds are the recurring checks a working deployment needs: the
// two daily fan-outs plus the digest dispatch that follows them.
func defaultCheckSeeds() []checkSeedSpec {
	return []checkSeedSpec{
		{checkName: "mapper_fanout", cronSpec: "@daily"},
		{checkName: "driver_fanout", cronSpec: "@daily"},
		{checkName: "digest_dispatch", cronSpec: "30 6 * * *"},
	}
}

func seedScheduledChecks(ctx context.Context, admin *data.ScheduledChecksAdminRepo, logger *slog.Logger) error {
	for _, spec := range defaultCheckSeeds() {
		payload := json.RawMessage(`{}`)
		if spec.payload != nil {
			raw, err := json.Marshal(spec.payload)
			if err != nil {
				return fmt.Errorf("marshal payload for %s: %w", spec.checkName, err)
			}
			payload = raw
		}

		if err := admin.UpsertByCheckName(ctx, domain.UpsertCheckParams{
			CheckName: spec.checkName,
			Payload:   payload,
			CronSpec:  spec.cronSpec,
		}); err != nil {
			return fmt.Errorf("upsert scheduled check %s: %w", spec.checkName, err)
		}
		if logger != nil {
			logger.InfoContext(ctx, "upserted scheduled check", "check", spec.checkName, "cron", spec.cronSpec)
		}
	}
	return nil
}
