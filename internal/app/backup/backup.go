// Package backup moves whole-store snapshots in and out as JSON documents:
// on demand through a writer or reader, and on a cron schedule into a
// directory of timestamped files that is pruned to a fixed count.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tally-books/tally/internal/domain"
	"github.com/tally-books/tally/internal/infra/observability"
	"github.com/tally-books/tally/internal/infra/sqlite"
)

const (
	filePrefix = "tally-backup-"
	fileSuffix = ".json"
	stampFmt   = "20060102T150405Z"
)

// Config controls scheduled backups.
type Config struct {
	Dir      string `toml:"dir"`
	Keep     int    `toml:"keep"`
	Schedule string `toml:"schedule"` // cron spec; empty disables
}

// DefaultConfig keeps seven nightly backups.
func DefaultConfig() Config {
	return Config{Keep: 7, Schedule: "0 2 * * *"}
}

// Snapshotter is the part of the record store backups need.
type Snapshotter interface {
	Export(ctx context.Context, now time.Time) (domain.Snapshot, error)
	Import(ctx context.Context, s domain.Snapshot, replace bool) (sqlite.ImportStats, error)
}

// Service writes and restores backups.
type Service struct {
	cfg   Config
	store Snapshotter
	log   *zap.Logger
	now   func() time.Time
}

// New creates a backup service. log may be nil.
func New(cfg Config, store Snapshotter, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{cfg: cfg, store: store, log: log, now: time.Now}
}

// Export writes the current snapshot to w.
func (s *Service) Export(ctx context.Context, w io.Writer) (domain.Snapshot, error) {
	snap, err := s.store.Export(ctx, s.now())
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("export snapshot: %w", domain.Storage("export", err))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("export snapshot: %w", err)
	}
	return snap, nil
}

// Import reads a snapshot document from r and loads it. With replace,
// every collection is cleared first. The load is all-or-nothing.
func (s *Service) Import(ctx context.Context, r io.Reader, replace bool) (sqlite.ImportStats, error) {
	var snap domain.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return sqlite.ImportStats{}, fmt.Errorf("import snapshot: %w: %w", domain.ErrValidation, err)
	}
	stats, err := s.store.Import(ctx, snap, replace)
	if err != nil {
		return sqlite.ImportStats{}, fmt.Errorf("import snapshot: %w", domain.Storage("import", err))
	}
	s.log.Info("snapshot imported",
		zap.Bool("replace", replace),
		zap.Int("records", stats.Records),
		zap.Int("remapped", stats.Remapped),
	)
	return stats, nil
}

// ImportFile loads the snapshot stored at path.
func (s *Service) ImportFile(ctx context.Context, path string, replace bool) (sqlite.ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return sqlite.ImportStats{}, fmt.Errorf("import snapshot: %w", err)
	}
	defer f.Close()
	return s.Import(ctx, f, replace)
}

// ─── Files ──────────────────────────────────────────────────────────────────

// File describes one backup on disk.
type File struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	Created time.Time `json:"created"`
}

// Run writes a new backup file into the configured directory and prunes
// old ones. It returns the path written.
func (s *Service) Run(ctx context.Context) (path string, err error) {
	defer func() { observability.Backups.WithLabelValues(observability.Outcome(err)).Inc() }()

	if s.cfg.Dir == "" {
		return "", fmt.Errorf("backup: no directory configured")
	}
	if err := os.MkdirAll(s.cfg.Dir, 0o700); err != nil {
		return "", fmt.Errorf("backup: %w", err)
	}

	now := s.now().UTC()
	name := filePrefix + now.Format(stampFmt) + "-" + uuid.NewString()[:8] + fileSuffix
	path = filepath.Join(s.cfg.Dir, name)
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("backup: %w", err)
	}
	snap, err := s.Export(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("backup: %w", err)
	}

	observability.BackupRecords.Set(float64(snap.RecordCount()))
	s.log.Info("backup written", zap.String("path", path), zap.Int("records", snap.RecordCount()))

	if removed, err := s.Prune(); err != nil {
		s.log.Warn("backup prune failed", zap.Error(err))
	} else if removed > 0 {
		s.log.Info("old backups pruned", zap.Int("removed", removed))
	}
	return path, nil
}

// List returns the backups in the directory, newest first.
func (s *Service) List() ([]File, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	var files []File
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, File{
			Name:    name,
			Path:    filepath.Join(s.cfg.Dir, name),
			Size:    info.Size(),
			Created: stampOf(name, info.ModTime()),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name > files[j].Name })
	return files, nil
}

// Prune deletes backups beyond the newest Keep. Keep <= 0 keeps all.
func (s *Service) Prune() (int, error) {
	if s.cfg.Keep <= 0 {
		return 0, nil
	}
	files, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range files[min(s.cfg.Keep, len(files)):] {
		if err := os.Remove(f.Path); err != nil {
			return removed, fmt.Errorf("prune %s: %w", f.Name, err)
		}
		removed++
	}
	return removed, nil
}

func stampOf(name string, fallback time.Time) time.Time {
	rest := strings.TrimPrefix(name, filePrefix)
	if len(rest) < len(stampFmt) {
		return fallback
	}
	t, err := time.Parse(stampFmt, rest[:len(stampFmt)])
	if err != nil {
		return fallback
	}
	return t
}
