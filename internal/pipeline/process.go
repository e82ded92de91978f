package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"sheetclean/internal"
	"sheetclean/internal/config"
	"sheetclean/internal/logger"
	"sheetclean/internal/sheet"
	"sheetclean/internal/storage"
)

type ProcessingService struct {
	db        *storage.DB
	cfg       config.Config
	log       *logger.Logger
	email     Expander
	category  Expander
	protocols *ProtocolNormalizer
	extension ExtensionFunc
}

// NewProcessingService builds the expanders and normalizer from cfg. db may
// be nil, in which case runs are not recorded.
func NewProcessingService(db *storage.DB, cfg config.Config, log *logger.Logger) (*ProcessingService, error) {
	if log == nil {
		log = logger.Discard()
	}
	cleaner, err := CharClassCleaner(cfg.CategoryAllowedPattern)
	if err != nil {
		return nil, err
	}
	rules, err := ParseRepairRules(cfg.RepairRules)
	if err != nil {
		return nil, err
	}
	extension, err := ExtensionStrategy(cfg.ExtensionStrategy)
	if err != nil {
		return nil, err
	}

	return &ProcessingService{
		db:  db,
		cfg: cfg,
		log: log,
		email: Expander{
			Delimiter:       cfg.EmailDelimiter,
			Prefix:          cfg.EmailPrefix,
			TrimTokens:      cfg.TrimTokens,
			KeepEmptyTokens: cfg.KeepEmptyTokens,
		},
		category: Expander{
			Delimiter:       cfg.CategoryDelimiter,
			Cleaner:         cleaner,
			Prefix:          cfg.CategoryPrefix,
			TrimTokens:      cfg.TrimTokens,
			KeepEmptyTokens: cfg.KeepEmptyTokens,
		},
		protocols: NewProtocolNormalizer(cfg.CanonicalProtocol, rules),
		extension: extension,
	}, nil
}

type Result struct {
	RunID           string
	Table           sheet.Table
	Rows            int
	EmailColumns    []string
	CategoryColumns []string
	Survey          internal.Survey
}

// ProcessTable expands emails and categories against the same base table,
// merges both by ID, then normalizes the website column in place.
func (s *ProcessingService) ProcessTable(ctx context.Context, t sheet.Table) (Result, error) {
	for _, col := range []string{s.cfg.IDColumn, s.cfg.EmailColumn, s.cfg.CategoryColumn, s.cfg.WebsiteColumn} {
		if _, err := t.MustColumnIndex(col); err != nil {
			return Result{}, err
		}
	}
	if _, err := ValidateIDs(t, s.cfg.IDColumn); err != nil {
		return Result{}, err
	}

	emails, err := s.email.Expand(t, s.cfg.IDColumn, s.cfg.EmailColumn)
	if err != nil {
		return Result{}, fmt.Errorf("expand %s: %w", s.cfg.EmailColumn, err)
	}
	categories, err := s.category.Expand(t, s.cfg.IDColumn, s.cfg.CategoryColumn)
	if err != nil {
		return Result{}, fmt.Errorf("expand %s: %w", s.cfg.CategoryColumn, err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	out, err := emails.Merge(t, s.cfg.IDColumn)
	if err != nil {
		return Result{}, fmt.Errorf("merge %s: %w", s.cfg.EmailColumn, err)
	}
	out, err = categories.Merge(out, s.cfg.IDColumn)
	if err != nil {
		return Result{}, fmt.Errorf("merge %s: %w", s.cfg.CategoryColumn, err)
	}

	websites, err := out.Column(s.cfg.WebsiteColumn)
	if err != nil {
		return Result{}, err
	}
	normalized, passes := s.protocols.NormalizeWithPasses(websites)
	out, err = out.ReplaceColumn(s.cfg.WebsiteColumn, normalized)
	if err != nil {
		return Result{}, err
	}

	survey := BuildSurvey(s.protocols, passes, websites, s.extension)
	for _, pass := range passes {
		s.log.Debug("protocol pass", "step", pass.Step, "rule", pass.Rule, "distinct", len(pass.Protocols), "missing", pass.Missing)
	}
	if len(survey.Unrepaired) > 0 {
		s.log.Warn("protocols left unrepaired", "protocols", survey.Unrepaired)
	}

	return Result{
		Table:           out,
		Rows:            len(out.Rows),
		EmailColumns:    emails.Columns,
		CategoryColumns: categories.Columns,
		Survey:          survey,
	}, nil
}

// ProcessFile loads inputPath, processes it and writes outputPath. Every
// attempt is recorded as a run, failed ones included.
func (s *ProcessingService) ProcessFile(ctx context.Context, inputPath, outputPath string, opts sheet.LoadOptions) (Result, error) {
	start := time.Now()
	blob, err := os.ReadFile(inputPath)
	if err != nil {
		return Result{}, err
	}

	run := internal.RunRow{
		ID:         uuid.NewString(),
		InputPath:  inputPath,
		InputHash:  HashContent(blob),
		OutputPath: outputPath,
		Status:     internal.RunRunning,
		StartedAt:  start,
	}
	log := s.log.With("run", run.ID, "input", inputPath)
	if s.db != nil {
		if err := s.db.InsertRun(run); err != nil {
			return Result{}, err
		}
	}

	res, err := s.processBlob(ctx, blob, inputPath, outputPath, opts)
	res.RunID = run.ID
	run.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		log.Error("run failed", "error", err)
		msg := err.Error()
		run.Status = internal.RunFailed
		run.Error = &msg
		s.finish(log, run, nil)
		return res, err
	}

	run.Status = internal.RunDone
	run.Rows = res.Rows
	run.EmailColumns = len(res.EmailColumns)
	run.CategoryColumns = len(res.CategoryColumns)
	s.finish(log, run, &res.Survey)

	log.Info("run done", "rows", res.Rows, "emailColumns", run.EmailColumns, "categoryColumns", run.CategoryColumns, "output", outputPath, "ms", run.DurationMs)
	return res, nil
}

// SurveyFile processes inputPath in memory and returns the survey without
// writing or recording anything.
func (s *ProcessingService) SurveyFile(ctx context.Context, inputPath string, opts sheet.LoadOptions) (internal.Survey, error) {
	t, err := s.load(inputPath, nil, opts)
	if err != nil {
		return internal.Survey{}, err
	}
	res, err := s.ProcessTable(ctx, t)
	if err != nil {
		return internal.Survey{}, err
	}
	return res.Survey, nil
}

func (s *ProcessingService) processBlob(ctx context.Context, blob []byte, inputPath, outputPath string, opts sheet.LoadOptions) (Result, error) {
	t, err := s.load(inputPath, blob, opts)
	if err != nil {
		return Result{}, err
	}
	res, err := s.ProcessTable(ctx, t)
	if err != nil {
		return Result{}, err
	}
	if err := sheet.Save(res.Table, outputPath, s.comma()); err != nil {
		return Result{}, err
	}
	return res, nil
}

func (s *ProcessingService) load(inputPath string, blob []byte, opts sheet.LoadOptions) (sheet.Table, error) {
	if opts.Comma == 0 {
		opts.Comma = s.comma()
	}
	if blob == nil {
		return sheet.Load(inputPath, opts)
	}
	if opts.Format == "" {
		format, err := sheet.DetectFormat(inputPath)
		if err != nil {
			return sheet.Table{}, err
		}
		opts.Format = format
	}
	return sheet.Decode(blob, opts)
}

func (s *ProcessingService) finish(log *logger.Logger, run internal.RunRow, survey *internal.Survey) {
	if s.db == nil {
		return
	}
	if err := s.db.FinishRun(run); err != nil {
		log.Error("record run", "error", err)
		return
	}
	if survey == nil {
		return
	}
	if err := s.db.InsertSurvey(run.ID, *survey); err != nil {
		log.Error("record survey", "error", err)
	}
}

func (s *ProcessingService) comma() rune {
	if s.cfg.CSVComma == "" {
		return ','
	}
	return []rune(s.cfg.CSVComma)[0]
}

// HashContent is the hex sha256 used to recognise already processed input.
func HashContent(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}
