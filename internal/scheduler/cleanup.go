package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/tradesim/internal/modules/simulation"
)

// CleanupJob prunes terminal simulation runs older than the retention
// window, keeping the results table from growing without bound.
type CleanupJob struct {
	repo      *simulation.Repository
	retention time.Duration
	log       zerolog.Logger
}

// NewCleanupJob creates the retention job. retentionDays must be positive;
// a service with retention disabled should not register the job at all.
func NewCleanupJob(repo *simulation.Repository, retentionDays int, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo:      repo,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		log:       log.With().Str("job", "simulation_cleanup").Logger(),
	}
}

// Name implements Job.
func (j *CleanupJob) Name() string {
	return "simulation_cleanup"
}

// Run deletes completed and failed runs past retention.
func (j *CleanupJob) Run() error {
	cutoff := time.Now().UTC().Add(-j.retention)

	deleted, err := j.repo.DeleteTerminalBefore(cutoff)
	if err != nil {
		return err
	}

	j.log.Debug().
		Int64("deleted", deleted).
		Time("cutoff", cutoff).
		Msg("Retention pass finished")

	return nil
}
