package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"sheetclean/internal"
	"sheetclean/internal/config"
	"sheetclean/internal/logger"
	"sheetclean/internal/pipeline"
	"sheetclean/internal/sheet"
	"sheetclean/internal/storage"
	"sheetclean/internal/util"
)

const debounce = 500 * time.Millisecond

type Service struct {
	db        *storage.DB
	cfg       config.Config
	log       *logger.Logger
	processor *pipeline.ProcessingService
	debounce  time.Duration
}

func NewService(db *storage.DB, cfg config.Config, log *logger.Logger, processor *pipeline.ProcessingService) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{db: db, cfg: cfg, log: log.With("component", "watcher"), processor: processor, debounce: debounce}
}

// Run processes every supported file that appears in the watch directory
// until ctx is cancelled. Files are handled one at a time.
func (s *Service) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.WatchDir, 0o755); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(s.cfg.WatchDir); err != nil {
		return fmt.Errorf("watch %s: %w", s.cfg.WatchDir, err)
	}
	s.log.Info("watching", "dir", s.cfg.WatchDir, "output", s.cfg.OutputDir)

	if _, err := s.Scan(ctx); err != nil {
		s.log.Error("initial scan", "error", err)
	}

	interval := time.Duration(s.cfg.WatchIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ready := make(chan string)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !s.accepts(event.Name) {
				continue
			}
			path := event.Name
			if t, exists := timers[path]; exists {
				t.Stop()
			}
			timers[path] = time.AfterFunc(s.debounce, func() {
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})
		case path := <-ready:
			delete(timers, path)
			if _, err := s.ProcessPath(ctx, path); err != nil {
				s.log.Error("process file", "path", path, "error", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Error("watcher error", "error", err)
		case <-ticker.C:
			if _, err := s.Scan(ctx); err != nil {
				s.log.Error("rescan", "error", err)
			}
		}
	}
}

// Scan processes every supported file in the watch directory that has not
// been processed yet and returns how many were.
func (s *Service) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.cfg.WatchDir)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		path := filepath.Join(s.cfg.WatchDir, entry.Name())
		if entry.IsDir() || !s.accepts(path) {
			continue
		}
		ok, err := s.ProcessPath(ctx, path)
		if err != nil {
			s.log.Error("process file", "path", path, "error", err)
			continue
		}
		if ok {
			processed++
		}
	}

	if s.db != nil {
		_ = s.db.SetMetadata("watch.lastScan", time.Now().UTC().Format(time.RFC3339))
	}
	return processed, nil
}

// ProcessPath runs one file through the pipeline unless identical content
// was already attempted. Failed content is retried only once it changes.
func (s *Service) ProcessPath(ctx context.Context, path string) (bool, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	if len(blob) == 0 {
		return false, nil
	}

	hash := pipeline.HashContent(blob)
	if s.db != nil {
		prev, err := s.db.FindRunByHash(hash, internal.RunDone, internal.RunFailed)
		if err != nil {
			return false, err
		}
		if prev != nil {
			s.log.Debug("already processed", "path", path, "run", prev.ID, "status", prev.Status)
			return false, nil
		}
	}

	out := OutputPath(s.cfg.OutputDir, path)
	if _, err := s.processor.ProcessFile(ctx, path, out, sheet.LoadOptions{}); err != nil {
		return false, err
	}
	return true, nil
}

// OutputPath maps an input file to <dir>/<name>_clean.<ext>. Inputs that
// cannot be written back in their own format come out as CSV.
func OutputPath(dir, input string) string {
	ext := strings.ToLower(filepath.Ext(input))
	stem := util.SanitizeFileName(strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)))
	if ext != ".xlsx" {
		ext = ".csv"
	}
	return filepath.Join(dir, stem+"_clean"+ext)
}

func (s *Service) accepts(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return false
	}
	if _, err := sheet.DetectFormat(path); err != nil {
		return false
	}
	// outputs land next to inputs when both dirs are the same
	if sameDir(filepath.Dir(path), s.cfg.OutputDir) && strings.HasSuffix(strings.TrimSuffix(name, filepath.Ext(name)), "_clean") {
		return false
	}
	return true
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
