package di

import (
	"context"
	"fmt"
	"os"

	"github.com/aristath/propfolio/internal/config"
	"github.com/aristath/propfolio/internal/records"
	"github.com/aristath/propfolio/internal/reliability"
	"github.com/aristath/propfolio/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the scheduler and registers background jobs.
// The scheduler is returned unstarted.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	sched := scheduler.New(log)

	type scheduled struct {
		schedule string
		job      scheduler.Job
	}
	jobs := []scheduled{
		{cfg.MaintenanceSchedule, scheduler.NewSourceHealthJob(container.Source, log)},
	}

	// The remote backends manage their own storage
	if container.RecordsDB != nil {
		jobs = append(jobs, scheduled{cfg.MaintenanceSchedule, scheduler.NewRecordStoreMaintenanceJob(container.RecordsDB, log)})

		if cfg.Backup.Bucket != "" {
			backup, err := initializeBackupService(container, cfg, log)
			if err != nil {
				return err
			}
			jobs = append(jobs, scheduled{cfg.Backup.Schedule, reliability.NewRecordStoreBackupJob(backup, cfg.Backup.RetentionDays, log)})
		}
	}

	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			return fmt.Errorf("failed to register %s: %w", j.job.Name(), err)
		}
		container.Jobs = append(container.Jobs, j.job)
	}

	container.Scheduler = sched
	return nil
}

func initializeBackupService(container *Container, cfg *config.Config, log zerolog.Logger) (*reliability.BackupService, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := records.NewS3Client(ctx, records.S3ClientOptions{
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize backup S3 client: %w", err)
	}

	stagingDir := cfg.BackupStagingDir()
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup staging directory: %w", err)
	}

	container.BackupService = reliability.NewBackupService(
		client,
		cfg.Backup.Bucket,
		cfg.Backup.Prefix,
		container.RecordsDB,
		stagingDir,
		log,
	)

	log.Info().
		Str("bucket", cfg.Backup.Bucket).
		Str("schedule", cfg.Backup.Schedule).
		Int("retention_days", cfg.Backup.RetentionDays).
		Msg("Record store backups enabled")

	return container.BackupService, nil
}
