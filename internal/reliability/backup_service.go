// Package reliability provides off-site backups of the SQLite record store.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

const (
	backupFilePrefix   = "records-backup-"
	backupFileSuffix   = ".tar.gz"
	backupTimeLayout   = "2006-01-02-150405"
	metadataFilename   = "backup-metadata.json"
	metadataVersion    = "1"
	minBackupsToKeep   = 3
	snapshotFilename   = "records.db"
	contentTypeArchive = "application/gzip"
)

// ObjectStore is the subset of the S3 client used for backups
type ObjectStore interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Snapshotter produces a consistent copy of a database file
type Snapshotter interface {
	Name() string
	HealthCheck(ctx context.Context) error
	SnapshotTo(ctx context.Context, dest string) error
}

// BackupMetadata is stored inside each archive next to the snapshot
type BackupMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Database  string    `json:"database"`
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
}

// BackupInfo describes a backup stored in the bucket
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// BackupService snapshots the record store and ships it to S3
type BackupService struct {
	store      ObjectStore
	uploader   *manager.Uploader
	bucket     string
	prefix     string
	db         Snapshotter
	stagingDir string
	now        func() time.Time
	log        zerolog.Logger
}

// NewBackupService creates a new backup service. Archives are staged under
// stagingDir and uploaded to bucket below prefix/backups/.
func NewBackupService(store ObjectStore, bucket, prefix string, db Snapshotter, stagingDir string, log zerolog.Logger) *BackupService {
	return &BackupService{
		store:      store,
		uploader:   manager.NewUploader(store),
		bucket:     bucket,
		prefix:     strings.Trim(prefix, "/"),
		db:         db,
		stagingDir: stagingDir,
		now:        time.Now,
		log:        log.With().Str("service", "record_backup").Logger(),
	}
}

func (s *BackupService) keyPrefix() string {
	return path.Join(s.prefix, "backups") + "/"
}

// CreateAndUploadBackup snapshots the database, archives it with metadata and
// uploads the archive. It returns the object key.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) (string, error) {
	s.log.Info().Msg("Starting record store backup")
	startTime := time.Now()
	timestamp := s.now().UTC()

	staging, err := os.MkdirTemp(s.stagingDir, "backup-staging-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	// A corrupt store is never shipped over a good archive
	if err := s.db.HealthCheck(ctx); err != nil {
		return "", fmt.Errorf("refusing to back up %s: %w", s.db.Name(), err)
	}

	snapshotPath := filepath.Join(staging, snapshotFilename)
	if err := s.db.SnapshotTo(ctx, snapshotPath); err != nil {
		return "", fmt.Errorf("failed to snapshot %s: %w", s.db.Name(), err)
	}

	info, err := os.Stat(snapshotPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat snapshot: %w", err)
	}
	checksum, err := calculateChecksum(snapshotPath)
	if err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}

	metadata := BackupMetadata{
		Timestamp: timestamp,
		Version:   metadataVersion,
		Database:  s.db.Name(),
		Filename:  snapshotFilename,
		SizeBytes: info.Size(),
		Checksum:  checksum,
	}
	if err := writeMetadata(filepath.Join(staging, metadataFilename), metadata); err != nil {
		return "", fmt.Errorf("failed to write metadata: %w", err)
	}

	archiveName := backupFilePrefix + timestamp.Format(backupTimeLayout) + backupFileSuffix
	archivePath := filepath.Join(staging, archiveName)
	if err := createArchive(archivePath, staging, []string{snapshotFilename, metadataFilename}); err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	archive, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	key := s.keyPrefix() + archiveName
	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        archive,
		ContentType: aws.String(contentTypeArchive),
	}); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("key", key).
		Int64("snapshot_bytes", info.Size()).
		Msg("Record store backup completed")

	return key, nil
}

// ListBackups lists stored backups, newest first
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	prefix := s.keyPrefix()
	paginator := s3.NewListObjectsV2Paginator(s.store, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix + backupFilePrefix),
	})

	now := s.now()
	var backups []BackupInfo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list backups: %w", err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, prefix)
			if !strings.HasPrefix(name, backupFilePrefix) || !strings.HasSuffix(name, backupFileSuffix) {
				continue
			}

			raw := strings.TrimSuffix(strings.TrimPrefix(name, backupFilePrefix), backupFileSuffix)
			timestamp, err := time.Parse(backupTimeLayout, raw)
			if err != nil {
				s.log.Warn().Str("key", key).Msg("Failed to parse timestamp from backup key")
				continue
			}

			backups = append(backups, BackupInfo{
				Key:       key,
				Timestamp: timestamp,
				SizeBytes: aws.ToInt64(obj.Size),
				AgeHours:  int64(now.Sub(timestamp).Hours()),
			})
		}
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// RotateOldBackups deletes backups older than retentionDays, always keeping
// the newest few. Zero retention keeps everything. Returns the number deleted.
func (s *BackupService) RotateOldBackups(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	if len(backups) <= minBackupsToKeep {
		s.log.Debug().Int("count", len(backups)).Msg("Too few backups to rotate")
		return 0, nil
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, backup := range backups[minBackupsToKeep:] {
		if !backup.Timestamp.Before(cutoff) {
			continue
		}

		if _, err := s.store.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(backup.Key),
		}); err != nil {
			s.log.Error().Err(err).Str("key", backup.Key).Msg("Failed to delete old backup")
			continue
		}

		s.log.Info().Str("key", backup.Key).Time("timestamp", backup.Timestamp).Msg("Deleted old backup")
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")

	return deleted, nil
}

// calculateChecksum calculates SHA256 checksum of a file
func calculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// writeMetadata writes backup metadata to a JSON file
func writeMetadata(dest string, metadata BackupMetadata) error {
	file, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

// createArchive writes a tar.gz of the named files in sourceDir
func createArchive(archivePath, sourceDir string, filenames []string) (err error) {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer func() {
		if cerr := archiveFile.Close(); err == nil {
			err = cerr
		}
	}()

	gzipWriter := gzip.NewWriter(archiveFile)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, name := range filenames {
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, name), name); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return err
	}
	return gzipWriter.Close()
}

// addFileToArchive adds a single file to a tar archive
func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tarWriter, file)
	return err
}
