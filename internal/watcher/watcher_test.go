package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sheetclean/internal"
	"sheetclean/internal/config"
	"sheetclean/internal/logger"
	"sheetclean/internal/pipeline"
	"sheetclean/internal/storage"
)

const sampleCSV = "ID,email,category,website\n1,\"a@x.com,b@y.com\",\"News, Tech\",www.test.com\n"

func newTestService(t *testing.T) (*Service, config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		DBPath:                 filepath.Join(dir, "runs.db"),
		OutputDir:              filepath.Join(dir, "out"),
		WatchDir:               filepath.Join(dir, "inbox"),
		WatchIntervalSec:       60,
		IDColumn:               "ID",
		EmailColumn:            "email",
		EmailDelimiter:         ",",
		EmailPrefix:            "email_",
		CategoryColumn:         "category",
		CategoryDelimiter:      ",",
		CategoryPrefix:         "category",
		CategoryAllowedPattern: pipeline.DefaultCategoryPattern,
		TrimTokens:             true,
		WebsiteColumn:          "website",
		CanonicalProtocol:      "https://",
		ExtensionStrategy:      "heuristic",
		CSVComma:               ",",
	}
	if err := os.MkdirAll(cfg.WatchDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	proc, err := pipeline.NewProcessingService(db, cfg, logger.Discard())
	if err != nil {
		t.Fatalf("processor: %v", err)
	}
	svc := NewService(db, cfg, logger.Discard(), proc)
	svc.debounce = 10 * time.Millisecond
	return svc, cfg
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "/in/contacts.csv", want: filepath.Join("out", "contacts_clean.csv")},
		{in: "/in/Contacts.XLSX", want: filepath.Join("out", "Contacts_clean.xlsx")},
		{in: "/in/mail from bob.eml", want: filepath.Join("out", "mail_from_bob_clean.csv")},
		{in: "/in/page.html", want: filepath.Join("out", "page_clean.csv")},
	}
	for _, tc := range tests {
		if got := OutputPath("out", tc.in); got != tc.want {
			t.Fatalf("OutputPath(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestScanSkipsProcessedContent(t *testing.T) {
	svc, cfg := newTestService(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(cfg.WatchDir, "a.csv"), []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfg.WatchDir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	n, err := svc.Scan(ctx)
	if err != nil || n != 1 {
		t.Fatalf("first scan: n=%d err=%v", n, err)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "a_clean.csv")); err != nil {
		t.Fatalf("expected output: %v", err)
	}

	n, err = svc.Scan(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second scan should skip processed file: n=%d err=%v", n, err)
	}

	// same content under another name is still a duplicate
	if err := os.WriteFile(filepath.Join(cfg.WatchDir, "copy.csv"), []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if n, _ := svc.Scan(ctx); n != 0 {
		t.Fatalf("copy should be skipped, processed %d", n)
	}

	if v, _ := svc.db.GetMetadata("watch.lastScan"); v == nil {
		t.Fatalf("expected last scan timestamp")
	}
}

func TestScanRetriesFailedFiles(t *testing.T) {
	svc, cfg := newTestService(t)
	ctx := context.Background()

	path := filepath.Join(cfg.WatchDir, "bad.csv")
	if err := os.WriteFile(path, []byte("ID,email\n1,a@x.com\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if n, _ := svc.Scan(ctx); n != 0 {
		t.Fatalf("file without required columns must not count as processed")
	}

	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if n, _ := svc.Scan(ctx); n != 1 {
		t.Fatalf("fixed file should be processed, got %d", n)
	}
}

func TestScanDoesNotRetryUnchangedFailure(t *testing.T) {
	svc, cfg := newTestService(t)
	ctx := context.Background()

	dup := "ID,email,category,website\n1,a@x.com,,\n1,b@y.com,,\n"
	if err := os.WriteFile(filepath.Join(cfg.WatchDir, "dup.csv"), []byte(dup), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	for i := 0; i < 2; i++ {
		if n, _ := svc.Scan(ctx); n != 0 {
			t.Fatalf("scan %d processed %d files", i, n)
		}
	}

	runs, err := svc.db.ListRuns(10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != internal.RunFailed {
		t.Fatalf("expected one failed run, got %+v", runs)
	}
}

func TestRunPicksUpNewFiles(t *testing.T) {
	svc, cfg := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	if err := os.WriteFile(filepath.Join(cfg.WatchDir, "live.csv"), []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out := filepath.Join(cfg.OutputDir, "live_clean.csv")
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(out); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("output %s not written", out)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop after cancel")
	}
}
