package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/propfolio/internal/config"
	"github.com/aristath/propfolio/internal/database"
	"github.com/aristath/propfolio/internal/records"
	"github.com/rs/zerolog"
)

// connectTimeout bounds backend connection setup during startup
const connectTimeout = 30 * time.Second

// InitializeRecordSource opens the backend selected by cfg.RecordSource and
// stores it on the container
func InitializeRecordSource(container *Container, cfg *config.Config, log zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	switch cfg.RecordSource {
	case config.SourceSQLite:
		db, err := database.New(database.Config{
			Path: cfg.RecordsDBPath(),
			Name: "records",
		})
		if err != nil {
			return fmt.Errorf("failed to initialize records database: %w", err)
		}
		container.addCloser(db.Close)

		if err := db.Migrate(); err != nil {
			return fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}

		container.RecordsDB = db
		container.Source = records.NewSQLiteSource(db, log)

	case config.SourceS3:
		client, err := records.NewS3Client(ctx, records.S3ClientOptions{
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", err)
		}
		container.Source = records.NewS3Source(client, cfg.S3.Bucket, cfg.S3.Prefix, log)

	case config.SourceSurrealDB:
		db, err := records.ConnectSurreal(ctx, records.SurrealOptions{
			URL:       cfg.SurrealDB.URL,
			Username:  cfg.SurrealDB.Username,
			Password:  cfg.SurrealDB.Password,
			Namespace: cfg.SurrealDB.Namespace,
			Database:  cfg.SurrealDB.Database,
		})
		if err != nil {
			return err
		}
		container.addCloser(func() error {
			return db.Close(context.Background())
		})
		container.Source = records.NewSurrealSource(db, log)

	default:
		return fmt.Errorf("unknown record source %q", cfg.RecordSource)
	}

	log.Info().Str("source", container.Source.Name()).Msg("Record source initialized")
	return nil
}
