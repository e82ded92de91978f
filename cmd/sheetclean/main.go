package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"sheetclean/internal"
	"sheetclean/internal/config"
	"sheetclean/internal/logger"
	"sheetclean/internal/pipeline"
	"sheetclean/internal/sheet"
	"sheetclean/internal/storage"
	"sheetclean/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "clean", "survey", "history", "runs:show", "watch":
	default:
		usage()
		os.Exit(1)
	}

	// flags may override config, so validate after parsing
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	switch cmd {
	case "clean":
		input := fs.String("input", "", "input file (csv|xlsx|html|eml)")
		output := fs.String("output", "", "output file (csv|xlsx), default OUTPUT_DIR/<name>_clean.<ext>")
		format := fs.String("format", "", "input format, detected from the extension when empty")
		sheetName := fs.String("sheet", "", "xlsx sheet name")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		if strings.TrimSpace(*output) == "" {
			*output = watcher.OutputPath(cfg.OutputDir, *input)
		}
		opts := loadOptions(*format, *sheetName)

		db, log, processor := setup(cfg)
		defer db.Close()
		res, err := processor.ProcessFile(context.Background(), *input, *output, opts)
		must(err)
		for _, p := range res.Survey.Unrepaired {
			log.Warn("unrepaired protocol", "protocol", p)
		}
		fmt.Printf("clean done run=%s rows=%d emailColumns=%d categoryColumns=%d output=%s\n",
			res.RunID, res.Rows, len(res.EmailColumns), len(res.CategoryColumns), *output)
	case "survey":
		input := fs.String("input", "", "input file (csv|xlsx|html|eml)")
		format := fs.String("format", "", "input format, detected from the extension when empty")
		sheetName := fs.String("sheet", "", "xlsx sheet name")
		asJSON := fs.Bool("json", false, "print JSON")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		must(cfg.Validate())
		processor, err := pipeline.NewProcessingService(nil, cfg, newLogger(cfg))
		must(err)
		survey, err := processor.SurveyFile(context.Background(), *input, loadOptions(*format, *sheetName))
		must(err)
		printSurvey(survey, *asJSON)
	case "history":
		limit := fs.Int("limit", 20, "max runs")
		_ = fs.Parse(os.Args[2:])
		must(cfg.Validate())
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		runs, err := db.ListRuns(*limit)
		must(err)
		for _, r := range runs {
			printRun(r)
		}
	case "runs:show":
		id := fs.String("id", "", "run id")
		asJSON := fs.Bool("json", false, "print survey as JSON")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*id) == "" {
			must(fmt.Errorf("--id is required"))
		}
		must(cfg.Validate())
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		run, err := db.GetRun(*id)
		must(err)
		if run == nil {
			must(fmt.Errorf("run not found: %s", *id))
		}
		printRun(*run)
		survey, err := db.GetSurvey(*id)
		must(err)
		printSurvey(survey, *asJSON)
	case "watch":
		dir := fs.String("dir", cfg.WatchDir, "directory to watch")
		out := fs.String("out", cfg.OutputDir, "output directory")
		_ = fs.Parse(os.Args[2:])
		cfg.WatchDir = *dir
		cfg.OutputDir = *out

		db, log, processor := setup(cfg)
		defer db.Close()
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		must(watcher.NewService(db, cfg, log, processor).Run(ctx))
	}
}

func setup(cfg config.Config) (*storage.DB, *logger.Logger, *pipeline.ProcessingService) {
	must(cfg.Validate())
	log := newLogger(cfg)
	db, err := storage.Open(cfg.DBPath)
	must(err)
	processor, err := pipeline.NewProcessingService(db, cfg, log)
	if err != nil {
		_ = db.Close()
		must(err)
	}
	return db, log, processor
}

func newLogger(cfg config.Config) *logger.Logger {
	return logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "sheetclean"})
}

func loadOptions(format, sheetName string) sheet.LoadOptions {
	opts := sheet.LoadOptions{Sheet: sheetName}
	if strings.TrimSpace(format) != "" {
		f, err := sheet.ParseFormat(format)
		must(err)
		opts.Format = f
	}
	return opts
}

func printRun(r internal.RunRow) {
	line := fmt.Sprintf("%s  %s  %-7s rows=%d email=%d category=%d %dms  %s -> %s",
		r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Status,
		r.Rows, r.EmailColumns, r.CategoryColumns, r.DurationMs, r.InputPath, r.OutputPath)
	if r.Error != nil {
		line += "  error: " + *r.Error
	}
	fmt.Println(line)
}

func printSurvey(s internal.Survey, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		must(enc.Encode(s))
		return
	}

	for _, pass := range s.Passes {
		label := pass.Rule
		if pass.Step == 0 {
			label = "input"
		}
		fmt.Printf("protocols after %s:\n", label)
		for _, vc := range pass.Protocols {
			fmt.Printf("  %-20s %d\n", vc.Value, vc.Count)
		}
		if pass.Missing > 0 {
			fmt.Printf("  %-20s %d\n", "(none)", pass.Missing)
		}
	}
	fmt.Println("domain extensions:")
	for _, vc := range s.Extensions {
		fmt.Printf("  %-20s %d\n", vc.Value, vc.Count)
	}
	if s.MissingExtensions > 0 {
		fmt.Printf("  %-20s %d\n", "(none)", s.MissingExtensions)
	}
	if len(s.Unrepaired) > 0 {
		fmt.Printf("unrepaired protocols: %s\n", strings.Join(s.Unrepaired, ", "))
	}
}

func usage() {
	fmt.Println("usage: sheetclean <command>")
	fmt.Println("commands:")
	fmt.Println("  clean --input=contacts.csv [--output=out/contacts_clean.csv] [--format=csv|xlsx|html|eml] [--sheet=Sheet1]")
	fmt.Println("  survey --input=contacts.csv [--json]")
	fmt.Println("  history [--limit=20]")
	fmt.Println("  runs:show --id=<run id> [--json]")
	fmt.Println("  watch [--dir=data/inbox] [--out=out]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
