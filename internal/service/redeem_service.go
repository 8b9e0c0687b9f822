package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lfgarc/giftcode-redeemer/internal/config"
	"github.com/lfgarc/giftcode-redeemer/internal/model"
	"github.com/lfgarc/giftcode-redeemer/internal/upstream"
)

// RedemptionClientInterface defines the upstream interaction the orchestrator needs.
type RedemptionClientInterface interface {
	Redeem(ctx context.Context, playerID, code string) (*upstream.Outcome, error)
}

// RosterRepositoryInterface defines the roster access the orchestrator needs:
// reads plus the two narrow timestamp writes.
type RosterRepositoryInterface interface {
	ListPlayers(ctx context.Context) ([]model.Player, error)
	GetPlayer(ctx context.Context, id string) (*model.Player, error)
	ListCodes(ctx context.Context) ([]model.Code, error)
	GetCode(ctx context.Context, code string) (*model.Code, error)
	TouchLastRedeemed(ctx context.Context, playerID string, ts int64) error
	TouchLastTried(ctx context.Context, code string, ts int64) error
}

// PairRepositoryInterface defines the durable idempotency index.
type PairRepositoryInterface interface {
	MarkRedeemed(ctx context.Context, playerID, code string, ts int64) error
	MarkBlocked(ctx context.Context, playerID, code string, reason model.BlockReason) error
	SkipSet(ctx context.Context) (*model.SkipSet, error)
}

// HistoryRepositoryInterface defines the append-only attempt log.
type HistoryRepositoryInterface interface {
	Append(ctx context.Context, entry *model.HistoryEntry) error
	AttemptedSince(ctx context.Context, since int64) ([]model.Pair, error)
}

// JobRepositoryInterface defines the job ledger operations.
type JobRepositoryInterface interface {
	Insert(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, limit int) ([]model.Job, error)
	HasActive(ctx context.Context) (bool, error)
	AcquireLease(ctx context.Context, id string) (bool, error)
	Advance(ctx context.Context, id string, status model.HistoryStatus, lastEvent string) error
	Finish(ctx context.Context, id string, status model.JobStatus, finishedAt int64, lastEvent string) error
	CancelActive(ctx context.Context, id string, finishedAt int64) ([]string, error)
}

// RedeemService owns the redemption job state machine: it builds the work
// set, executes it sequentially under rate control, and keeps the job ledger,
// pair index and history log consistent.
type RedeemService struct {
	cfg     config.RedeemConfig
	client  RedemptionClientInterface
	roster  RosterRepositoryInterface
	pairs   PairRepositoryInterface
	history HistoryRepositoryInterface
	jobs    JobRepositoryInterface

	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewRedeemService creates a RedeemService. baseCtx bounds the lifetime of
// background job loops; cancelling it pauses any running job.
func NewRedeemService(
	baseCtx context.Context,
	cfg config.RedeemConfig,
	client RedemptionClientInterface,
	roster RosterRepositoryInterface,
	pairs PairRepositoryInterface,
	history HistoryRepositoryInterface,
	jobs JobRepositoryInterface,
) *RedeemService {
	return &RedeemService{
		cfg:     cfg,
		client:  client,
		roster:  roster,
		pairs:   pairs,
		history: history,
		jobs:    jobs,
		baseCtx: baseCtx,
	}
}

// CreateJob computes the work set for the given optional restrictions and
// records a queued job sized to it. It refuses to create a job while another
// is running or paused. Execution is a separate step so callers can inspect
// TotalTasks before committing resources.
func (s *RedeemService) CreateJob(ctx context.Context, onlyCode, onlyPlayer string) (*model.Job, error) {
	if onlyCode != "" {
		onlyCode = NormalizeCode(onlyCode)
	}
	onlyPlayer = strings.TrimSpace(onlyPlayer)

	active, err := s.jobs.HasActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("check active jobs: %w", err)
	}
	if active {
		return nil, ErrJobActive
	}

	skip, err := s.pairs.SkipSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("compute skip set: %w", err)
	}
	workSet, err := s.buildWorkSet(ctx, onlyCode, onlyPlayer, skip)
	if err != nil {
		return nil, err
	}

	job := &model.Job{
		ID:         uuid.NewString(),
		Status:     model.JobQueued,
		StartedAt:  time.Now().UnixMilli(),
		TotalTasks: len(workSet),
		OnlyCode:   onlyCode,
		OnlyPlayer: onlyPlayer,
	}
	if err := s.jobs.Insert(ctx, job); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// buildWorkSet resolves the player and code sets, subtracts the skip set's
// already-redeemed pairs and globally blocked codes, and returns the
// remaining pairs ordered codes-outer, players-inner. Codes are the limiting
// resource; all players are attempted for a given code before moving to the
// next one.
func (s *RedeemService) buildWorkSet(ctx context.Context, onlyCode, onlyPlayer string, skip *model.SkipSet) ([]model.Pair, error) {
	var players []model.Player
	if onlyPlayer != "" {
		p, err := s.roster.GetPlayer(ctx, onlyPlayer)
		if err != nil {
			return nil, fmt.Errorf("get player: %w", err)
		}
		if p == nil {
			return nil, ErrPlayerNotFound
		}
		players = []model.Player{*p}
	} else {
		var err error
		players, err = s.roster.ListPlayers(ctx)
		if err != nil {
			return nil, fmt.Errorf("list players: %w", err)
		}
	}

	var codes []model.Code
	if onlyCode != "" {
		// An explicit code restriction bypasses the active flag but not a
		// global block.
		c, err := s.roster.GetCode(ctx, onlyCode)
		if err != nil {
			return nil, fmt.Errorf("get code: %w", err)
		}
		if c == nil {
			return nil, ErrCodeNotFound
		}
		codes = []model.Code{*c}
	} else {
		all, err := s.roster.ListCodes(ctx)
		if err != nil {
			return nil, fmt.Errorf("list codes: %w", err)
		}
		for _, c := range all {
			if c.Active {
				codes = append(codes, c)
			}
		}
	}

	var workSet []model.Pair
	for _, c := range codes {
		if _, blocked := skip.IsBlocked(c.Code); blocked {
			continue
		}
		for _, p := range players {
			if skip.IsRedeemed(p.ID, c.Code) {
				continue
			}
			workSet = append(workSet, model.Pair{PlayerID: p.ID, Code: c.Code})
		}
	}
	return workSet, nil
}

// StartJob transitions a queued or paused job to running and launches its
// background loop. The transition is a compare-and-set against the job store
// so at most one job runs at a time even across process restarts.
func (s *RedeemService) StartJob(ctx context.Context, id string) error {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return ErrJobNotFound
	}
	if job.Status.Terminal() {
		return ErrJobFinished
	}

	acquired, err := s.jobs.AcquireLease(ctx, id)
	if err != nil {
		return fmt.Errorf("acquire job lease: %w", err)
	}
	if !acquired {
		return ErrJobActive
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(s.baseCtx, job)
	}()
	return nil
}

// GetJob returns the full job record for polling.
func (s *RedeemService) GetJob(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// ListJobs returns recent jobs, newest first.
func (s *RedeemService) ListJobs(ctx context.Context, limit int) ([]model.Job, error) {
	jobs, err := s.jobs.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Cancel transitions the given job, or every active job when id is empty, to
// cancelled. The running loop observes the flipped status at the top of its
// next iteration; the in-flight upstream call completes naturally.
func (s *RedeemService) Cancel(ctx context.Context, id string) ([]string, error) {
	cancelled, err := s.jobs.CancelActive(ctx, id, time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("cancel jobs: %w", err)
	}
	if id != "" && len(cancelled) == 0 {
		job, err := s.jobs.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get job: %w", err)
		}
		if job == nil {
			return nil, ErrJobNotFound
		}
		return nil, ErrJobFinished
	}
	return cancelled, nil
}

// Wait blocks until every background job loop has returned. Called during
// graceful shutdown after baseCtx is cancelled.
func (s *RedeemService) Wait() {
	s.wg.Wait()
}

// run executes one job's work set sequentially. Only three things end the
// loop early: an explicit cancellation, a no-response outcome from the
// upstream (suspected throttling), and baseCtx cancellation at shutdown.
// Everything else is absorbed, logged and counted.
func (s *RedeemService) run(ctx context.Context, job *model.Job) {
	logger := log.With().Str("job_id", job.ID).Logger()
	logger.Info().Int("total_tasks", job.TotalTasks).Msg("job started")

	// The work set is recomputed from the job's filters so a resumed job
	// picks up where it left off: pairs satisfied before the pause are in
	// the durable skip set by now. One snapshot serves both the work-set
	// subtraction and the lazy skip below.
	skip, err := s.pairs.SkipSet(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load skip set, pausing job")
		s.finish(ctx, job.ID, model.JobRateLimited, "paused: "+err.Error())
		return
	}
	workSet, err := s.buildWorkSet(ctx, job.OnlyCode, job.OnlyPlayer, skip)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build work set, pausing job")
		s.finish(ctx, job.ID, model.JobRateLimited, "paused: "+err.Error())
		return
	}

	// Failed attempts leave no mark in the skip set, so a resumed job must
	// consult the history log too: anything attempted since the job was
	// created is already counted in its done/failures and is not retried.
	attempted := make(map[model.Pair]struct{})
	attemptedPairs, err := s.history.AttemptedSince(ctx, job.StartedAt)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load attempted pairs, pausing job")
		s.finish(ctx, job.ID, model.JobRateLimited, "paused: "+err.Error())
		return
	}
	for _, p := range attemptedPairs {
		attempted[p] = struct{}{}
	}

	for _, pair := range workSet {
		if _, done := attempted[pair]; done {
			continue
		}
		// Cooperative cancellation, checked before each upstream call.
		cur, err := s.jobs.Get(ctx, job.ID)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to poll job status")
		} else if cur != nil && cur.Status == model.JobCancelled {
			logger.Info().Msg("job cancelled")
			return
		}
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutdown, pausing job")
			s.finish(ctx, job.ID, model.JobRateLimited, "paused: shutting down")
			return
		default:
		}

		// Blocks and redemptions discovered earlier in this same run are
		// honored without another upstream call.
		if done := s.skipIfKnown(ctx, job.ID, pair, skip, logger); done {
			continue
		}

		outcome, err := s.client.Redeem(ctx, pair.PlayerID, pair.Code)
		ts := time.Now().UnixMilli()
		if err != nil {
			// Transport-layer failure while constructing the attempt.
			// Recorded and counted, never job-fatal.
			s.record(ctx, job.ID, pair, ts, &upstream.Outcome{
				Status:  model.StatusError,
				Message: err.Error(),
			}, logger)
		} else if outcome.NoResponse {
			// The upstream stopped answering altogether. Stop hammering it:
			// park the job so an operator can resume later. The failing item
			// is not counted as done.
			event := renderEvent(ts, pair, model.StatusError, outcome.Message)
			logger.Warn().Str("player_id", pair.PlayerID).Str("code", pair.Code).
				Msg("no response from upstream, pausing job")
			s.finish(ctx, job.ID, model.JobRateLimited, event)
			return
		} else {
			s.record(ctx, job.ID, pair, ts, outcome, logger)
			if outcome.Status == model.StatusSuccess || outcome.Status == model.StatusAlreadyRedeemed {
				skip.Redeemed[pair] = struct{}{}
			}
			if outcome.BlockReason != "" {
				skip.BlockedCodes[pair.Code] = outcome.BlockReason
			}
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("shutdown, pausing job")
			s.finish(ctx, job.ID, model.JobRateLimited, "paused: shutting down")
			return
		case <-time.After(s.cfg.ItemDelay):
		}
	}

	logger.Info().Msg("job finished")
	s.finish(ctx, job.ID, model.JobFinished, "")
}

// skipIfKnown handles a pair that became satisfied or blocked earlier in the
// same run: a synthetic history entry is recorded and the job advances
// without touching the upstream.
func (s *RedeemService) skipIfKnown(ctx context.Context, jobID string, pair model.Pair, skip *model.SkipSet, logger zerolog.Logger) bool {
	ts := time.Now().UnixMilli()

	var entry *model.HistoryEntry
	var reasonText string
	if skip.IsRedeemed(pair.PlayerID, pair.Code) {
		reasonText = "already redeemed (skip)"
		entry = syntheticEntry(ts, pair, model.StatusAlreadyRedeemed, "Already redeemed", "RECEIVED")
	} else if reason, blocked := skip.IsBlocked(pair.Code); blocked {
		switch reason {
		case model.BlockExpired:
			reasonText = "expired (skip)"
			entry = syntheticEntry(ts, pair, model.StatusError, "Code has expired", "TIME ERROR")
		default:
			reasonText = "claim limit reached (skip)"
			entry = syntheticEntry(ts, pair, model.StatusError, "Claim limit reached, unable to claim", "USED")
		}
	} else {
		return false
	}

	if err := s.history.Append(ctx, entry); err != nil {
		logger.Warn().Err(err).Msg("failed to append skip history entry")
	}
	s.applyToIndex(ctx, pair, entry.TS, entry.Status, upstream.DeriveBlockReason(rawMsgOf(entry), entry.Message), logger)

	event := renderEvent(ts, pair, model.StatusSkipped, reasonText)
	if err := s.jobs.Advance(ctx, jobID, model.StatusSkipped, event); err != nil {
		logger.Warn().Err(err).Msg("failed to advance job after skip")
	}
	return true
}

// record persists one real attempt outcome: history first, then the pair
// index and roster timestamps, then the job counters. A poller that reads
// done == N can rely on N history entries existing.
func (s *RedeemService) record(ctx context.Context, jobID string, pair model.Pair, ts int64, outcome *upstream.Outcome, logger zerolog.Logger) {
	entry := &model.HistoryEntry{
		TS:       ts,
		PlayerID: pair.PlayerID,
		Code:     pair.Code,
		Status:   outcome.Status,
		Message:  outcome.Message,
		Raw:      outcome.Raw,
	}
	if err := s.history.Append(ctx, entry); err != nil {
		logger.Warn().Err(err).Msg("failed to append history entry")
	}

	s.applyToIndex(ctx, pair, ts, outcome.Status, outcome.BlockReason, logger)

	if outcome.Status == model.StatusSuccess || outcome.Status == model.StatusAlreadyRedeemed {
		if err := s.roster.TouchLastRedeemed(ctx, pair.PlayerID, ts); err != nil {
			logger.Warn().Err(err).Msg("failed to update player last_redeemed_at")
		}
	}
	if err := s.roster.TouchLastTried(ctx, pair.Code, ts); err != nil {
		logger.Warn().Err(err).Msg("failed to update code last_tried_at")
	}

	event := renderEvent(ts, pair, outcome.Status, outcome.Message)
	if err := s.jobs.Advance(ctx, jobID, outcome.Status, event); err != nil {
		logger.Warn().Err(err).Msg("failed to advance job")
	}
}

// applyToIndex projects an attempt outcome into the durable pair index.
func (s *RedeemService) applyToIndex(ctx context.Context, pair model.Pair, ts int64, status model.HistoryStatus, reason model.BlockReason, logger zerolog.Logger) {
	if status == model.StatusSuccess || status == model.StatusAlreadyRedeemed {
		if err := s.pairs.MarkRedeemed(ctx, pair.PlayerID, pair.Code, ts); err != nil {
			logger.Warn().Err(err).Msg("failed to mark pair redeemed")
		}
	}
	if reason != "" {
		if err := s.pairs.MarkBlocked(ctx, pair.PlayerID, pair.Code, reason); err != nil {
			logger.Warn().Err(err).Msg("failed to mark code blocked")
		}
	}
}

// finish moves a running job to its end-of-loop status. The repository
// guards the transition so a concurrent cancellation is never overwritten.
// The write is detached from ctx so a job paused by shutdown still parks
// itself durably.
func (s *RedeemService) finish(ctx context.Context, jobID string, status model.JobStatus, lastEvent string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.jobs.Finish(ctx, jobID, status, time.Now().UnixMilli(), lastEvent); err != nil {
		log.Error().Err(err).Str("job_id", jobID).Str("status", string(status)).Msg("failed to finish job")
	}
}

func syntheticEntry(ts int64, pair model.Pair, status model.HistoryStatus, message, rawMsg string) *model.HistoryEntry {
	raw, _ := json.Marshal(map[string]string{"msg": rawMsg})
	return &model.HistoryEntry{
		TS:       ts,
		PlayerID: pair.PlayerID,
		Code:     pair.Code,
		Status:   status,
		Message:  message,
		Raw:      raw,
	}
}

func rawMsgOf(entry *model.HistoryEntry) string {
	var raw struct {
		Msg string `json:"msg"`
	}
	_ = json.Unmarshal(entry.Raw, &raw)
	return raw.Msg
}

// renderEvent builds the human-readable lastEvent line shown by live UIs.
func renderEvent(ts int64, pair model.Pair, status model.HistoryStatus, message string) string {
	return fmt.Sprintf("%s %s %s => %s (%s)",
		time.UnixMilli(ts).UTC().Format(time.RFC3339),
		pair.PlayerID, pair.Code, status, message)
}
