// Package backup snapshots the local SQLite database, encrypts it with a
// passphrase and uploads it to S3-compatible storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/hearth/internal/config"
	"github.com/dukerupert/hearth/internal/database"
	"github.com/dukerupert/hearth/internal/metrics"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
)

var (
	ErrNotConfigured = errors.New("backup not configured")
	ErrInProgress    = errors.New("backup already running")
)

const defaultRetention = 30 * 24 * time.Hour

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Config struct {
	S3         config.S3Config
	DBPath     string
	Passphrase string
	Retention  time.Duration
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Manager runs encrypted backups to S3-compatible storage.
type Manager struct {
	mu     sync.Mutex
	cfg    Config
	status Status

	db      *sql.DB
	backups *store.BackupStore
	client  s3Client
	now     func() time.Time
	logger  *slog.Logger
}

func NewManager(cfg Config, db *sql.DB, backups *store.BackupStore, logger *slog.Logger) *Manager {
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	m := &Manager{
		cfg:     cfg,
		db:      db,
		backups: backups,
		now:     time.Now,
		logger:  logger,
		status:  Status{State: StateDisabled},
	}

	if cfg.S3.Configured() && cfg.Passphrase != "" {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg config.S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client != nil
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Run takes one backup and then prunes uploads past the retention period.
func (m *Manager) Run(ctx context.Context) (*model.Backup, error) {
	m.mu.Lock()
	if m.client == nil {
		m.mu.Unlock()
		return nil, ErrNotConfigured
	}
	if m.status.State == StateRunning {
		m.mu.Unlock()
		return nil, ErrInProgress
	}
	m.status = Status{State: StateRunning, LastBackup: m.status.LastBackup}
	m.mu.Unlock()

	record, err := m.backup(ctx)
	metrics.RecordBackup(err)

	m.mu.Lock()
	if err != nil {
		m.status = Status{State: StateError, Error: err.Error(), LastBackup: m.status.LastBackup}
	} else {
		done := m.now().UTC()
		m.status = Status{State: StateIdle, LastBackup: &done}
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}

	if err := m.Prune(ctx); err != nil {
		m.logger.Error("prune backups", "error", err)
	}
	return record, nil
}

// RunJob adapts Run to the scheduler's job signature.
func (m *Manager) RunJob(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}
	_, err := m.Run(ctx)
	return err
}

func (m *Manager) backup(ctx context.Context) (*model.Backup, error) {
	filename := fmt.Sprintf("hearth-%s.db.enc", m.now().UTC().Format("2006-01-02T150405Z"))
	key := "backups/" + filename

	record, err := m.backups.Create(filename, key)
	if err != nil {
		return nil, fmt.Errorf("create backup record: %w", err)
	}

	fail := func(err error) (*model.Backup, error) {
		if uerr := m.backups.UpdateStatus(record.ID, model.BackupStatusFailed, err.Error()); uerr != nil {
			m.logger.Error("mark backup failed", "id", record.ID, "error", uerr)
		}
		return nil, err
	}

	if err := database.Checkpoint(ctx, m.db); err != nil {
		return fail(fmt.Errorf("wal checkpoint: %w", err))
	}

	src, err := os.Open(m.cfg.DBPath)
	if err != nil {
		return fail(fmt.Errorf("open database: %w", err))
	}
	var enc bytes.Buffer
	size, err := Encrypt(&enc, src, m.cfg.Passphrase)
	src.Close()
	if err != nil {
		return fail(fmt.Errorf("encrypt: %w", err))
	}

	if err := m.backups.UpdateStatus(record.ID, model.BackupStatusUploading, ""); err != nil {
		return fail(err)
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.S3.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(enc.Bytes()),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fail(fmt.Errorf("upload to s3: %w", err))
	}

	if err := m.backups.UpdateCompleted(record.ID, size); err != nil {
		return nil, err
	}
	m.logger.Info("backup uploaded", "key", key, "bytes", size)
	return m.backups.GetByID(record.ID)
}

// Prune deletes backups older than the retention period, both the records
// and the uploaded objects.
func (m *Manager) Prune(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}

	keys, err := m.backups.DeleteOlderThan(m.now().Add(-m.cfg.Retention))
	if err != nil {
		return fmt.Errorf("delete old backups: %w", err)
	}

	for _, key := range keys {
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Error("delete backup object", "key", key, "error", err)
		}
	}
	if len(keys) > 0 {
		m.logger.Info("old backups pruned", "count", len(keys))
	}
	return nil
}
