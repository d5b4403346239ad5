// Package scheduler evaluates due checks and applies overrun policy before
// jobs are enqueued.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slipstreamlabs/recordwatch/internal/domain"
)

// CheckStore executes scheduler persistence operations within the ambient transaction.
type CheckStore interface {
	MarkQueued(ctx context.Context, params domain.MarkQueuedParams) (bool, error)
	UpdateActiveFireKey(ctx context.Context, params domain.UpdateActiveFireKeyParams) error
}

// JobStateReader reports the current overrun states for a scheduled check.
type JobStateReader interface {
	JobStatesByCheckName(ctx context.Context, checkName string, now time.Time) (domain.OverrunStateMask, error)
}

// JobEnqueuer creates a job for the provided scheduled check using the supplied fire key.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, check domain.ScheduledCheck, fireKey string) (bool, error)
}

// CheckProcessorOptions configures CheckProcessor defaults.
type CheckProcessorOptions struct {
	DefaultPolicy domain.OverrunPolicy
	DefaultStates domain.OverrunStateMask
	StateReader   JobStateReader
}

// CheckProcessor owns the overrun policy flow for scheduled checks.
type CheckProcessor struct {
	defaultPolicy domain.OverrunPolicy
	defaultStates domain.OverrunStateMask
	stateReader   JobStateReader
}

type shouldEnqueueParams struct {
	Check    domain.ScheduledCheck
	Strategy checkStrategy
	FireKey  string
	Now      time.Time
}

type finalizeEnqueueParams struct {
	Policy    domain.OverrunPolicy
	CheckID   string
	FireKey   string
	Now       time.Time
	NextRunAt time.Time
}

// NewCheckProcessor constructs a CheckProcessor with sane defaults.
func NewCheckProcessor(opts CheckProcessorOptions) *CheckProcessor {
	policy := opts.DefaultPolicy
	if policy == "" {
		policy = domain.OverrunPolicySkip
	}
	states := opts.DefaultStates
	if states == 0 {
		states = domain.OverrunStatesDefault
	}
	return &CheckProcessor{
		defaultPolicy: policy,
		defaultStates: states,
		stateReader:   opts.StateReader,
	}
}

// ProcessParams supplies the per-invocation collaborators for Process.
type ProcessParams struct {
	Check    domain.ScheduledCheck
	Now      time.Time
	Store    CheckStore
	Enqueuer JobEnqueuer
}

// ProcessResult captures the outcome of processing a scheduled check.
type ProcessResult struct {
	Worked        bool
	Enqueued      bool
	MarkedQueued  bool
	FireKey       string
	ShouldEnqueue bool
}

// Process evaluates a scheduled check and applies overrun policy updates via the provided collaborators.
func (p *CheckProcessor) Process(ctx context.Context, params ProcessParams) (*ProcessResult, error) {
	if params.Store == nil {
		return nil, errors.New("check store is required")
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}

	check := params.Check
	result := &ProcessResult{}

	if !isCheckDue(check, now) {
		return result, nil
	}

	return p.processDueCheck(ctx, processDueParams{
		Check:    check,
		Store:    params.Store,
		Enqueuer: params.Enqueuer,
		Now:      now,
	})
}

type processDueParams struct {
	Check    domain.ScheduledCheck
	Store    CheckStore
	Enqueuer JobEnqueuer
	Now      time.Time
}

func (p *CheckProcessor) processDueCheck(ctx context.Context, params processDueParams) (*ProcessResult, error) {
	result := &ProcessResult{}
	strategy := p.resolveStrategy(params.Check)
	fireKey := ComputeFireKey(params.Check, params.Now)
	result.FireKey = fireKey
	nextRun, err := domain.NextRun(params.Check.CronSpec, params.Now)
	if err != nil {
		return nil, fmt.Errorf("advance schedule: %w", err)
	}
	shouldEnqueue, err := p.shouldEnqueue(ctx, shouldEnqueueParams{
		Check:    params.Check,
		Strategy: strategy,
		FireKey:  fireKey,
		Now:      params.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("check overrun policy: %w", err)
	}
	result.ShouldEnqueue = shouldEnqueue
	marked, markErr := p.markIfRequired(ctx, params.Store, markIfRequiredParams{
		strategy: strategy,
		markParams: domain.MarkQueuedParams{
			ID:        params.Check.ID,
			Now:       params.Now,
			NextRunAt: nextRun,
		},
	})
	if markErr != nil {
		return nil, markErr
	}
	if marked {
		result.MarkedQueued = true
		result.Worked = true
	}
	if !shouldEnqueue {
		return result, nil
	}
	if params.Enqueuer == nil {
		return nil, errors.New("job enqueuer is required")
	}
	created, enqueueErr := p.enqueueCheck(ctx, params.Enqueuer, enqueueCheckParams{
		check:   params.Check,
		fireKey: fireKey,
	})
	if enqueueErr != nil {
		return nil, enqueueErr
	}
	if !created {
		return result, nil
	}
	result.Enqueued = true
	result.Worked = true
	if finalizeErr := p.finalizeEnqueue(ctx, params.Store, finalizeEnqueueParams{
		Policy:    strategy.policy,
		CheckID:   params.Check.ID,
		FireKey:   fireKey,
		Now:       params.Now,
		NextRunAt: nextRun,
	}); finalizeErr != nil {
		return nil, finalizeErr
	}

	return result, nil
}

type markIfRequiredParams struct {
	strategy   checkStrategy
	markParams domain.MarkQueuedParams
}

func (p *CheckProcessor) markIfRequired(
	ctx context.Context,
	store CheckStore,
	params markIfRequiredParams,
) (bool, error) {
	if params.strategy.policy == domain.OverrunPolicyQueue {
		return false, nil
	}

	return p.markQueuedPreEnqueue(ctx, store, params.markParams)
}

type enqueueCheckParams struct {
	check   domain.ScheduledCheck
	fireKey string
}

func (p *CheckProcessor) enqueueCheck(
	ctx context.Context,
	enqueuer JobEnqueuer,
	params enqueueCheckParams,
) (bool, error) {
	created, err := enqueuer.Enqueue(ctx, params.check, params.fireKey)
	if err != nil {
		return false, fmt.Errorf("enqueue job: %w", err)
	}
	return created, nil
}

type checkStrategy struct {
	policy domain.OverrunPolicy
	states domain.OverrunStateMask
}

func (p *CheckProcessor) resolveStrategy(check domain.ScheduledCheck) checkStrategy {
	policy := p.defaultPolicy
	states := p.defaultStates

	if check.OverrunPolicy != nil {
		policy = *check.OverrunPolicy
	}
	if check.OverrunStates != nil {
		if overrides := *check.OverrunStates; overrides != 0 {
			states = overrides
		} else {
			states = domain.OverrunStatesDefault
		}
	}
	if states == 0 {
		states = domain.OverrunStatesDefault
	}

	return checkStrategy{policy: policy, states: states}
}

func (p *CheckProcessor) markQueuedPreEnqueue(
	ctx context.Context,
	store CheckStore,
	params domain.MarkQueuedParams,
) (bool, error) {
	marked, err := store.MarkQueued(ctx, params)
	if err != nil {
		return false, fmt.Errorf("mark check queued: %w", err)
	}
	return marked, nil
}

func (p *CheckProcessor) finalizeEnqueue(ctx context.Context, store CheckStore, params finalizeEnqueueParams) error {
	switch params.Policy {
	case domain.OverrunPolicyQueue:
		setAt := params.Now
		_, markErr := store.MarkQueued(ctx, domain.MarkQueuedParams{
			ID:                 params.CheckID,
			Now:                params.Now,
			NextRunAt:          params.NextRunAt,
			ActiveFireKey:      &params.FireKey,
			ActiveFireKeySetAt: &setAt,
		})
		if markErr != nil {
			return fmt.Errorf("mark check queued after enqueue: %w", markErr)
		}
	case domain.OverrunPolicySkip, domain.OverrunPolicyReschedule:
		updateErr := store.UpdateActiveFireKey(ctx, domain.UpdateActiveFireKeyParams{
			ID:      params.CheckID,
			FireKey: &params.FireKey,
			SetAt:   params.Now,
		})
		if updateErr != nil {
			return fmt.Errorf("set active fire key: %w", updateErr)
		}
	default:
		return fmt.Errorf("unknown overrun policy: %s", params.Policy)
	}
	return nil
}

func (p *CheckProcessor) shouldEnqueue(ctx context.Context, params shouldEnqueueParams) (bool, error) {
	switch params.Strategy.policy {
	case domain.OverrunPolicyQueue:
		return true, nil
	case domain.OverrunPolicyReschedule:
		return false, nil
	case domain.OverrunPolicySkip:
		mask := params.Strategy.states
		if mask == 0 {
			mask = domain.OverrunStatesDefault
		}
		if p.stateReader == nil {
			return false, errors.New("job state reader is not configured")
		}

		states, err := p.stateReader.JobStatesByCheckName(ctx, params.Check.CheckName, params.Now)
		if err != nil {
			return false, fmt.Errorf("check job states: %w", err)
		}
		if states&mask != 0 {
			return false, nil
		}
		if params.Check.ActiveFireKey != nil && *params.Check.ActiveFireKey != "" &&
			*params.Check.ActiveFireKey == params.FireKey {
			return false, nil
		}
		return true, nil
	default:
		return false, fmt.Errorf("unknown overrun policy: %s", params.Strategy.policy)
	}
}

func isCheckDue(check domain.ScheduledCheck, now time.Time) bool {
	if check.NextRunAt.IsZero() {
		return true
	}
	return !check.NextRunAt.After(now)
}

// ComputeFireKey derives an idempotent fire key for the provided check at the
// given time. The key names the cron slot being fired, so a re-dispatch of the
// same slot (scheduler restart, competing ticks) dedupes against the queue's
// unique fire-key index. Daily checks therefore yield one key per day.
func ComputeFireKey(check domain.ScheduledCheck, now time.Time) string {
	if check.NextRunAt.IsZero() {
		return fmt.Sprintf("%s:%d", check.ID, now.Unix())
	}
	return fmt.Sprintf("%s:%s", check.ID, check.NextRunAt.UTC().Format(time.RFC3339))
}
