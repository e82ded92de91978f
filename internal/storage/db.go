package storage

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sheetclean/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  inputPath TEXT NOT NULL,
  inputHash TEXT NOT NULL,
  outputPath TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'running',
  error TEXT,
  rowCount INTEGER NOT NULL DEFAULT 0,
  emailColumns INTEGER NOT NULL DEFAULT 0,
  categoryColumns INTEGER NOT NULL DEFAULT 0,
  durationMs INTEGER NOT NULL DEFAULT 0,
  startedAt TEXT NOT NULL,
  finishedAt TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_inputHash ON runs(inputHash);

CREATE TABLE IF NOT EXISTS protocol_survey (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  step INTEGER NOT NULL,
  rule TEXT NOT NULL,
  protocol TEXT,
  count INTEGER NOT NULL,
  FOREIGN KEY(runId) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_protocol_survey_runId ON protocol_survey(runId);

CREATE TABLE IF NOT EXISTS extension_survey (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  extension TEXT,
  count INTEGER NOT NULL,
  FOREIGN KEY(runId) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_extension_survey_runId ON extension_survey(runId);

CREATE TABLE IF NOT EXISTS unrepaired_protocols (
  runId TEXT NOT NULL,
  protocol TEXT NOT NULL,
  PRIMARY KEY(runId, protocol),
  FOREIGN KEY(runId) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

const runColumns = `id, inputPath, inputHash, outputPath, status, error, rowCount, emailColumns, categoryColumns, durationMs, startedAt, finishedAt`

func (d *DB) InsertRun(run internal.RunRow) error {
	if run.Status == "" {
		run.Status = internal.RunRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := d.conn.Exec(`
INSERT INTO runs (id, inputPath, inputHash, outputPath, status, startedAt)
VALUES (?, ?, ?, ?, ?, ?)
`, run.ID, run.InputPath, run.InputHash, run.OutputPath, string(run.Status), formatTime(run.StartedAt))
	return err
}

// FinishRun records the outcome of a run started with InsertRun.
func (d *DB) FinishRun(run internal.RunRow) error {
	finished := time.Now()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	res, err := d.conn.Exec(`
UPDATE runs SET status = ?, error = ?, rowCount = ?, emailColumns = ?, categoryColumns = ?, durationMs = ?, finishedAt = ?
WHERE id = ?
`, string(run.Status), run.Error, run.Rows, run.EmailColumns, run.CategoryColumns, run.DurationMs, formatTime(finished), run.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("run not found: " + run.ID)
	}
	return nil
}

func (d *DB) GetRun(id string) (*internal.RunRow, error) {
	row := d.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// FindRunByHash returns the latest run over identical input whose status is
// one of statuses, successful runs only when none are given.
func (d *DB) FindRunByHash(hash string, statuses ...internal.RunStatus) (*internal.RunRow, error) {
	if len(statuses) == 0 {
		statuses = []internal.RunStatus{internal.RunDone}
	}
	args := []any{hash}
	for _, st := range statuses {
		args = append(args, string(st))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")

	row := d.conn.QueryRow(`
SELECT `+runColumns+` FROM runs
WHERE inputHash = ? AND status IN (`+placeholders+`)
ORDER BY startedAt DESC LIMIT 1
`, args...)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (d *DB) ListRuns(limit int) ([]internal.RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`SELECT `+runColumns+` FROM runs ORDER BY startedAt DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunRow
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (d *DB) InsertSurvey(runID string, survey internal.Survey) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, pass := range survey.Passes {
		for _, vc := range pass.Protocols {
			if _, err := tx.Exec(`INSERT INTO protocol_survey (runId, step, rule, protocol, count) VALUES (?, ?, ?, ?, ?)`,
				runID, pass.Step, pass.Rule, vc.Value, vc.Count); err != nil {
				return err
			}
		}
		// a pass with nothing to count is kept as a single NULL row
		if pass.Missing > 0 || len(pass.Protocols) == 0 {
			if _, err := tx.Exec(`INSERT INTO protocol_survey (runId, step, rule, protocol, count) VALUES (?, ?, ?, NULL, ?)`,
				runID, pass.Step, pass.Rule, pass.Missing); err != nil {
				return err
			}
		}
	}

	for _, vc := range survey.Extensions {
		if _, err := tx.Exec(`INSERT INTO extension_survey (runId, extension, count) VALUES (?, ?, ?)`, runID, vc.Value, vc.Count); err != nil {
			return err
		}
	}
	if survey.MissingExtensions > 0 {
		if _, err := tx.Exec(`INSERT INTO extension_survey (runId, extension, count) VALUES (?, NULL, ?)`, runID, survey.MissingExtensions); err != nil {
			return err
		}
	}

	for _, p := range survey.Unrepaired {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO unrepaired_protocols (runId, protocol) VALUES (?, ?)`, runID, p); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) GetSurvey(runID string) (internal.Survey, error) {
	var survey internal.Survey

	rows, err := d.conn.Query(`
SELECT step, rule, protocol, count FROM protocol_survey
WHERE runId = ? ORDER BY step, count DESC, protocol
`, runID)
	if err != nil {
		return survey, err
	}
	defer rows.Close()

	for rows.Next() {
		var step, count int
		var rule string
		var protocol sql.NullString
		if err := rows.Scan(&step, &rule, &protocol, &count); err != nil {
			return survey, err
		}
		if n := len(survey.Passes); n == 0 || survey.Passes[n-1].Step != step {
			survey.Passes = append(survey.Passes, internal.ProtocolPass{Step: step, Rule: rule})
		}
		pass := &survey.Passes[len(survey.Passes)-1]
		if protocol.Valid {
			pass.Protocols = append(pass.Protocols, internal.ValueCount{Value: protocol.String, Count: count})
		} else {
			pass.Missing = count
		}
	}
	if err := rows.Err(); err != nil {
		return survey, err
	}

	extRows, err := d.conn.Query(`
SELECT extension, count FROM extension_survey
WHERE runId = ? ORDER BY count DESC, extension
`, runID)
	if err != nil {
		return survey, err
	}
	defer extRows.Close()

	for extRows.Next() {
		var ext sql.NullString
		var count int
		if err := extRows.Scan(&ext, &count); err != nil {
			return survey, err
		}
		if ext.Valid {
			survey.Extensions = append(survey.Extensions, internal.ValueCount{Value: ext.String, Count: count})
		} else {
			survey.MissingExtensions = count
		}
	}
	if err := extRows.Err(); err != nil {
		return survey, err
	}

	unrepaired, err := d.conn.Query(`SELECT protocol FROM unrepaired_protocols WHERE runId = ? ORDER BY protocol`, runID)
	if err != nil {
		return survey, err
	}
	defer unrepaired.Close()

	for unrepaired.Next() {
		var p string
		if err := unrepaired.Scan(&p); err != nil {
			return survey, err
		}
		survey.Unrepaired = append(survey.Unrepaired, p)
	}
	return survey, unrepaired.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (internal.RunRow, error) {
	var run internal.RunRow
	var status, startedAt string
	var errMsg, finishedAt sql.NullString
	if err := s.Scan(
		&run.ID, &run.InputPath, &run.InputHash, &run.OutputPath, &status, &errMsg,
		&run.Rows, &run.EmailColumns, &run.CategoryColumns, &run.DurationMs, &startedAt, &finishedAt,
	); err != nil {
		return run, err
	}
	run.Status = internal.RunStatus(status)
	if errMsg.Valid {
		run.Error = &errMsg.String
	}
	run.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		run.FinishedAt = &t
	}
	return run, nil
}

// Fixed width so timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
