package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/propfolio/internal/database"
	"github.com/rs/zerolog"
)

// walFrameWarnThreshold is the WAL size, in frames, that gets a warning
const walFrameWarnThreshold = 1000

// RecordStore is the database surface the maintenance job needs
type RecordStore interface {
	Name() string
	WALCheckpoint(ctx context.Context, mode string) (*database.CheckpointResult, error)
	QuickCheck(ctx context.Context) error
}

// RecordStoreMaintenanceJob checkpoints the WAL and runs a quick integrity check
type RecordStoreMaintenanceJob struct {
	db      RecordStore
	timeout time.Duration
	log     zerolog.Logger
}

// NewRecordStoreMaintenanceJob creates a new maintenance job
func NewRecordStoreMaintenanceJob(db RecordStore, log zerolog.Logger) *RecordStoreMaintenanceJob {
	return &RecordStoreMaintenanceJob{
		db:      db,
		timeout: time.Minute,
		log:     log.With().Str("job", "record_store_maintenance").Logger(),
	}
}

// Name returns the job name
func (j *RecordStoreMaintenanceJob) Name() string {
	return "record_store_maintenance"
}

// Run executes the maintenance pass
func (j *RecordStoreMaintenanceJob) Run() error {
	if j.db == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	// PASSIVE never blocks readers
	res, err := j.db.WALCheckpoint(ctx, "PASSIVE")
	if err != nil {
		j.log.Warn().Err(err).Str("database", j.db.Name()).Msg("Failed to checkpoint WAL")
	} else if res.LogFrames > walFrameWarnThreshold {
		j.log.Warn().
			Str("database", j.db.Name()).
			Int("wal_frames", res.LogFrames).
			Int("checkpointed", res.Checkpointed).
			Bool("busy", res.Busy).
			Msg("WAL file is large, checkpoint may be needed")
	} else {
		j.log.Debug().
			Str("database", j.db.Name()).
			Int("wal_frames", res.LogFrames).
			Msg("WAL checkpoint status OK")
	}

	if err := j.db.QuickCheck(ctx); err != nil {
		return fmt.Errorf("record store %s failed quick check: %w", j.db.Name(), err)
	}

	return nil
}

// Pinger is anything that can report its own reachability
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// SourceHealthJob pings the record source and logs state changes
type SourceHealthJob struct {
	source  Pinger
	timeout time.Duration
	healthy *bool
	log     zerolog.Logger
}

// NewSourceHealthJob creates a new health job
func NewSourceHealthJob(source Pinger, log zerolog.Logger) *SourceHealthJob {
	return &SourceHealthJob{
		source:  source,
		timeout: 10 * time.Second,
		log:     log.With().Str("job", "record_source_health").Logger(),
	}
}

// Name returns the job name
func (j *SourceHealthJob) Name() string {
	return "record_source_health"
}

// Run pings the source. Jobs do not overlap, so state needs no locking.
func (j *SourceHealthJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	err := j.source.Ping(ctx)
	healthy := err == nil

	if j.healthy == nil || *j.healthy != healthy {
		if healthy {
			j.log.Info().Str("source", j.source.Name()).Msg("Record source healthy")
		} else {
			j.log.Error().Err(err).Str("source", j.source.Name()).Msg("Record source unreachable")
		}
	}
	j.healthy = &healthy

	if err != nil {
		return fmt.Errorf("record source %s unreachable: %w", j.source.Name(), err)
	}
	return nil
}
