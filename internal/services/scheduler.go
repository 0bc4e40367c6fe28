package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/f1-velocity/internal/training"
)

var ErrRetrainInProgress = errors.New("retrain already in progress")

// Trainer produces a fresh set of artifacts
type Trainer interface {
	Train(ctx context.Context) (*training.Result, error)
}

// Reloader picks up artifacts after they have been rewritten
type Reloader interface {
	Reload() error
}

// ReloaderFunc adapts a plain function to Reloader
type ReloaderFunc func() error

func (f ReloaderFunc) Reload() error { return f() }

// JobInfo represents information about the retrain job
type JobInfo struct {
	Schedule     string        `json:"schedule,omitempty"`
	LastRun      time.Time     `json:"last_run,omitempty"`
	NextRun      time.Time     `json:"next_run,omitempty"`
	Status       string        `json:"status"`
	RunCount     int           `json:"run_count"`
	ErrorCount   int           `json:"error_count"`
	LastError    string        `json:"last_error,omitempty"`
	Duration     time.Duration `json:"duration"`
	ModelVersion string        `json:"model_version,omitempty"`
}

// RetrainScheduler retrains the model on a cron schedule and reloads the
// in-process readers after every successful run.
type RetrainScheduler struct {
	trainer   Trainer
	reloaders []Reloader
	logger    *logrus.Logger
	cron      *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc

	runMu     sync.Mutex
	mu        sync.RWMutex
	job       JobInfo
	isRunning bool
}

func NewRetrainScheduler(trainer Trainer, logger *logrus.Logger, reloaders ...Reloader) *RetrainScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cronLogger := cron.VerbosePrintfLogger(logger)

	return &RetrainScheduler{
		trainer:   trainer,
		reloaders: reloaders,
		logger:    logger,
		cron:      cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.Recover(cronLogger))),
		ctx:       ctx,
		cancel:    cancel,
		job:       JobInfo{Status: "idle"},
	}
}

// Start schedules retraining with a standard five field cron expression
// or a descriptor such as "@daily".
func (s *RetrainScheduler) Start(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("retrain scheduler is already running")
	}

	entryID, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.RunOnce(s.ctx); err != nil && !errors.Is(err, ErrRetrainInProgress) {
			s.logger.WithField("component", "retrain_scheduler").WithError(err).Error("Scheduled retrain failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid retrain schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.isRunning = true
	s.job.Schedule = schedule
	s.job.Status = "scheduled"
	s.job.NextRun = s.cron.Entry(entryID).Next

	s.logger.WithFields(logrus.Fields{
		"component": "retrain_scheduler",
		"schedule":  schedule,
		"next_run":  s.job.NextRun,
	}).Info("Retrain job scheduled")
	return nil
}

// RunOnce trains and reloads. Overlapping runs are rejected with
// ErrRetrainInProgress.
func (s *RetrainScheduler) RunOnce(ctx context.Context) (*training.Result, error) {
	if !s.runMu.TryLock() {
		return nil, ErrRetrainInProgress
	}
	defer s.runMu.Unlock()

	startTime := time.Now()
	s.mu.Lock()
	s.job.Status = "running"
	s.job.LastRun = startTime
	s.job.RunCount++
	runCount := s.job.RunCount
	s.mu.Unlock()

	logger := s.logger.WithFields(logrus.Fields{
		"component": "retrain_scheduler",
		"run_count": runCount,
	})
	logger.Info("Starting retrain")

	result, err := s.trainer.Train(ctx)
	if err == nil {
		for _, r := range s.reloaders {
			if rerr := r.Reload(); rerr != nil {
				err = fmt.Errorf("reload after retrain: %w", rerr)
				break
			}
		}
	}

	duration := time.Since(startTime)
	nextRun := s.nextRun()
	s.mu.Lock()
	s.job.Duration = duration
	s.job.NextRun = nextRun
	if err != nil {
		s.job.Status = "failed"
		s.job.ErrorCount++
		s.job.LastError = err.Error()
	} else {
		s.job.Status = "completed"
		s.job.LastError = ""
		s.job.ModelVersion = result.Artifact.Version
	}
	s.mu.Unlock()

	if err != nil {
		logger.WithError(err).WithField("duration", duration).Error("Retrain failed")
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"duration":      duration,
		"model_version": result.Artifact.Version,
	}).Info("Retrain completed successfully")
	return result, nil
}

// Status returns a copy of the job state
func (s *RetrainScheduler) Status() JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.job
}

// Stop stops the scheduler and cancels an in-flight scheduled run
func (s *RetrainScheduler) Stop() error {
	s.mu.Lock()
	wasRunning := s.isRunning
	s.isRunning = false
	s.mu.Unlock()

	s.cancel()
	if !wasRunning {
		return nil
	}

	s.logger.WithField("component", "retrain_scheduler").Info("Stopping retrain scheduler")

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		s.logger.WithField("component", "retrain_scheduler").Info("Cron scheduler stopped gracefully")
	case <-time.After(5 * time.Second):
		s.logger.WithField("component", "retrain_scheduler").Warn("Cron scheduler stop timed out")
	}
	return nil
}

func (s *RetrainScheduler) nextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
