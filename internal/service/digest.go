package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/slipstreamlabs/recordwatch/internal/core"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
	apperrors "github.com/slipstreamlabs/recordwatch/internal/errors"
	"golang.org/x/sync/errgroup"
)

// defaultSendConcurrency bounds parallel digest emails. The SMTP relay sits
// outside the upstream request contract, so modest parallelism is safe.
const defaultSendConcurrency = 4

// DigestServiceOptions groups dependencies for DigestService.
type DigestServiceOptions struct {
	Digests         core.DigestRepository
	Mailer          core.Mailer
	Logger          *slog.Logger
	SendConcurrency int
	nowFunc         func() time.Time
}

// DigestService turns a day's accumulated digest records into outbound email,
// one message per user per day.
type DigestService struct {
	digests core.DigestRepository
	mailer  core.Mailer
	logger  *slog.Logger
	limit   int
	now     func() time.Time
}

// NewDigestService constructs a new DigestService.
func NewDigestService(opts DigestServiceOptions) (*DigestService, error) {
	if opts.Digests == nil {
		return nil, errors.New("DigestRepository is required")
	}
	if opts.Mailer == nil {
		return nil, errors.New("Mailer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.SendConcurrency
	if limit <= 0 {
		limit = defaultSendConcurrency
	}
	now := opts.nowFunc
	if now == nil {
		now = time.Now
	}
	return &DigestService{
		digests: opts.Digests,
		mailer:  opts.Mailer,
		logger:  logger.With("component", "digest_dispatch"),
		limit:   limit,
		now:     now,
	}, nil
}

// Get returns one user's digest record for a date. Operator tooling reads
// through here.
func (s *DigestService) Get(ctx context.Context, owningUser, date string) (*model.DigestRecord, error) {
	if owningUser == "" {
		return nil, apperrors.Validation("owning user is required")
	}
	if date == "" {
		date = model.DigestDate(s.now())
	}
	return s.digests.GetByUserDate(ctx, owningUser, date)
}

// DispatchDaily sends every unsent digest for date. Sends fan out under a
// bounded group; one user's failure is logged and the rest continue. Delivery
// is send-then-mark: a crash between the two re-sends on the next dispatch
// rather than silently dropping a digest.
func (s *DigestService) DispatchDaily(ctx context.Context, date string) error {
	if date == "" {
		date = model.DigestDate(s.now())
	} else if _, err := model.ParseDigestDate(date); err != nil {
		return apperrors.Validation(err.Error())
	}

	records, err := s.digests.ListUnsent(ctx, date)
	if err != nil {
		return fmt.Errorf("list unsent digests: %w", err)
	}
	if len(records) == 0 {
		s.logger.InfoContext(ctx, "no digests to send", "date", date)
		return nil
	}

	var (
		g         errgroup.Group
		mu        sync.Mutex
		sent      int
		failures  int
		attempted int
	)
	g.SetLimit(s.limit)

	for _, record := range records {
		// ListUnsent already filters, but a record emptied or sent between the
		// listing and this loop must not produce an empty email.
		if record.Empty() || record.SentAt != nil {
			continue
		}
		attempted++
		g.Go(func() error {
			if err := s.deliver(ctx, record); err != nil {
				s.logger.ErrorContext(ctx, "digest delivery failed",
					"user", record.OwningUser, "date", date, "error", err)
				mu.Lock()
				failures++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			sent++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.logger.InfoContext(ctx, "digest dispatch finished",
		"date", date, "records", len(records), "sent", sent, "failed", failures)

	if attempted > 0 && failures == attempted {
		return fmt.Errorf("all %d digest sends failed", failures)
	}
	return nil
}

func (s *DigestService) deliver(ctx context.Context, record *model.DigestRecord) error {
	msg := core.MailMessage{
		To:      record.OwningUser,
		Subject: digestSubject(record),
		Body:    digestBody(record),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send digest to %s: %w", record.OwningUser, err)
	}

	ok, err := s.digests.MarkSent(ctx, core.MarkDigestSentParams{
		OwningUser: record.OwningUser,
		DigestDate: record.DigestDate,
		SentAt:     s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("mark digest sent for %s: %w", record.OwningUser, err)
	}
	if !ok {
		s.logger.WarnContext(ctx, "digest was already marked sent",
			"user", record.OwningUser, "date", record.DigestDate)
	}
	return nil
}

// digestSubject picks the subject line from which sections have content.
func digestSubject(record *model.DigestRecord) string {
	hasMapper := len(record.MapperContent) > 0
	hasDriver := len(record.DriverContent) > 0
	switch {
	case hasMapper && hasDriver:
		return fmt.Sprintf("New records and position changes (%s)", record.DigestDate)
	case hasDriver:
		return fmt.Sprintf("Position changes on tracked maps (%s)", record.DigestDate)
	default:
		return fmt.Sprintf("New records on your maps (%s)", record.DigestDate)
	}
}

// digestBody renders the populated sections as plain text.
func digestBody(record *model.DigestRecord) string {
	var b strings.Builder
	if len(record.MapperContent) > 0 {
		b.WriteString("Map records:\n\n")
		for _, line := range record.MapperContent {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	if len(record.DriverContent) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Position changes:\n\n")
		for _, line := range record.DriverContent {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}
