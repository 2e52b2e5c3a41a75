package reliability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RecordStoreBackupJob uploads a record store backup and rotates old ones
type RecordStoreBackupJob struct {
	service       *BackupService
	retentionDays int
	timeout       time.Duration
	log           zerolog.Logger
}

// NewRecordStoreBackupJob creates a new backup job
func NewRecordStoreBackupJob(service *BackupService, retentionDays int, log zerolog.Logger) *RecordStoreBackupJob {
	return &RecordStoreBackupJob{
		service:       service,
		retentionDays: retentionDays,
		timeout:       15 * time.Minute,
		log:           log.With().Str("job", "record_store_backup").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *RecordStoreBackupJob) Name() string {
	return "record_store_backup"
}

// Run executes the backup. A failed rotation is logged but does not fail the job.
func (j *RecordStoreBackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.service.CreateAndUploadBackup(ctx); err != nil {
		return err
	}

	if _, err := j.service.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	return nil
}
