// Package backup snapshots the ledger database, encrypts the snapshot, and
// uploads it to S3-compatible storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Client is the slice of the S3 API the manager uses, split out for
// testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds backup configuration. Backups are disabled unless Bucket and
// Passphrase are both set. Retention is the number of uploads kept; zero
// keeps everything.
type Config struct {
	Endpoint   string
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Passphrase string
	Interval   time.Duration
	Retention  int
}

// Enabled reports whether the config is complete enough to run backups.
func (c Config) Enabled() bool {
	return c.Bucket != "" && c.Passphrase != ""
}

// Manager runs scheduled encrypted backups of the ledger database.
type Manager struct {
	cfg    Config
	db     *sql.DB
	client s3Client
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	if cfg.Interval == 0 {
		cfg.Interval = 24 * time.Hour
	}

	m := &Manager{cfg: cfg, db: db, logger: logger}
	if cfg.Enabled() {
		m.client = s3.New(s3.Options{
			BaseEndpoint: aws.String(cfg.Endpoint),
			Region:       cfg.Region,
			Credentials:  awscreds.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		})
	}
	return m
}

// Start begins the backup loop. It is a no-op when backups are disabled.
func (m *Manager) Start(ctx context.Context) {
	if !m.cfg.Enabled() {
		m.logger.Info("backups disabled")
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.RunBackup(ctx); err != nil {
					m.logger.Error("backup failed", "error", err)
					continue
				}
				if err := m.Cleanup(ctx); err != nil {
					m.logger.Error("backup cleanup failed", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the backup loop.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
}

// RunBackup takes a consistent snapshot via VACUUM INTO, encrypts it, and
// uploads it under a timestamped key.
func (m *Manager) RunBackup(ctx context.Context) error {
	if m.client == nil {
		return fmt.Errorf("backups are not configured")
	}

	tmpDir, err := os.MkdirTemp("", "pokeayman-backup-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshot := filepath.Join(tmpDir, "ledger.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		return fmt.Errorf("snapshot db: %w", err)
	}

	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	encrypted, err := Encrypt(plaintext, m.cfg.Passphrase)
	if err != nil {
		return fmt.Errorf("encrypt snapshot: %w", err)
	}

	key := fmt.Sprintf("%sledger-%s.db.enc", backupPrefix, time.Now().UTC().Format("20060102-150405"))
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(encrypted),
	})
	if err != nil {
		return fmt.Errorf("upload backup: %w", err)
	}

	m.logger.Info("backup uploaded", "key", key, "bytes", len(encrypted))
	return nil
}

const backupPrefix = "backups/"

// Cleanup prunes old uploads, keeping the cfg.Retention most recent. The
// timestamped keys sort chronologically, so lexical order is upload order.
func (m *Manager) Cleanup(ctx context.Context) error {
	if m.client == nil || m.cfg.Retention <= 0 {
		return nil
	}

	out, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.cfg.Bucket),
		Prefix: aws.String(backupPrefix),
	})
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}

	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}
	sort.Strings(keys)
	if len(keys) <= m.cfg.Retention {
		return nil
	}

	deleted := 0
	for _, key := range keys[:len(keys)-m.cfg.Retention] {
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Error("failed to delete old backup", "key", key, "error", err)
			continue
		}
		deleted++
	}

	m.logger.Info("pruned old backups", "deleted", deleted, "kept", m.cfg.Retention)
	return nil
}
