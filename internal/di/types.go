/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the HTTP server for access to services.
 */
package di

import (
	"errors"

	"github.com/aristath/propfolio/internal/config"
	"github.com/aristath/propfolio/internal/database"
	"github.com/aristath/propfolio/internal/modules/analytics"
	"github.com/aristath/propfolio/internal/records"
	"github.com/aristath/propfolio/internal/reliability"
	"github.com/aristath/propfolio/internal/scheduler"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Record source: exactly one backend (sqlite, s3 or surrealdb) chosen by RECORD_SOURCE
 * - RecordsDB: the local SQLite store, nil for the remote backends
 * - Repository: typed readers over the record source
 * - AnalyticsService: dashboard assembly
 * - Scheduler: background maintenance and backup jobs (not started by Wire)
 */
type Container struct {
	Config *config.Config

	// Storage
	RecordsDB *database.DB // Only set when RECORD_SOURCE=sqlite
	Source    records.Source

	// Analytics
	Repository       *analytics.Repository
	AnalyticsService *analytics.Service

	// Background jobs
	Scheduler     *scheduler.Scheduler
	Jobs          []scheduler.Job
	BackupService *reliability.BackupService // Only set when backups are enabled

	closers []func() error
}

// addCloser registers a cleanup function, run in reverse order by Close
func (c *Container) addCloser(fn func() error) {
	c.closers = append(c.closers, fn)
}

// Close releases every resource acquired during wiring
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
