package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ktanaka/fireprep/internal/bank"
	"github.com/ktanaka/fireprep/internal/gen"
	"github.com/ktanaka/fireprep/internal/handler"
	appI18n "github.com/ktanaka/fireprep/internal/i18n"
	"github.com/ktanaka/fireprep/internal/model"
	"github.com/ktanaka/fireprep/internal/sheet"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fireprep",
		Short: "Multiple-choice exam prep with AI question generation",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), exportCmd(), resetCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `fireprep --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func dbFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db-driver", string(sheet.DriverSQLite), "Database driver (sqlite, postgres)")
	f.String("db", "fireprep.db", "Database path (sqlite) or DSN (postgres)")
}

func logFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP quiz server",
		RunE:  runServe,
	}
	dbFlags(cmd)
	logFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for the generation API")
	f.String("llm-model", "llama3.2", "Model name for question generation")
	f.StringP("lang", "l", "ja", "UI message language (en, ja)")
	f.String("session-key", "", "Secret for signing session cookies (random if empty)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Append questions from a JSON file to the main bank",
		RunE:  runImport,
	}
	dbFlags(cmd)
	logFlags(cmd)
	cmd.Flags().StringP("file", "f", "", "Path to a JSON array of questions (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a bank as JSON",
		RunE:  runExport,
	}
	dbFlags(cmd)
	logFlags(cmd)
	f := cmd.Flags()
	f.String("bank", string(model.BankMain), "Bank to export (main, review)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func resetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear a bank and re-write its header row",
		RunE:  runReset,
	}
	dbFlags(cmd)
	logFlags(cmd)
	f := cmd.Flags()
	f.String("bank", "", "Bank to reset (main, review) (required)")
	f.Bool("yes", false, "Confirm the destructive reset")
	_ = cmd.MarkFlagRequired("bank")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	// A local .env is a convenience for development setups.
	_ = godotenv.Load()

	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("FIREPREP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("fireprep")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/fireprep")
	v.AddConfigPath("/etc/fireprep")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openBanks(ctx context.Context, v *viper.Viper) (*bank.Adapter, *sheet.Store, error) {
	rows, err := sheet.Open(ctx, sheet.Driver(v.GetString("db-driver")), v.GetString("db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open question store: %w", err)
	}
	banks := bank.New(rows)
	if err := banks.Init(ctx); err != nil {
		rows.Close()
		return nil, nil, fmt.Errorf("init banks: %w", err)
	}
	return banks, rows, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	banks, rows, err := openBanks(ctx, v)
	if err != nil {
		return err
	}
	defer rows.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	llmClient := gen.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
	)
	if err := llmClient.Ping(ctx); err != nil {
		return fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))

	sessionKey := []byte(v.GetString("session-key"))
	if len(sessionKey) == 0 {
		sessionKey = make([]byte, 32)
		if _, err := rand.Read(sessionKey); err != nil {
			return fmt.Errorf("generate session key: %w", err)
		}
		slog.Warn("using a random session key; sessions will not survive restarts")
	}

	pipeline := gen.NewPipeline(llmClient, banks)
	h := handler.New(banks, pipeline, sessionKey, v.GetBool("secure-cookies"))

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"db_driver", v.GetString("db-driver"),
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"lang", lang,
	)
	return http.ListenAndServe(addr, r)
}

func runImport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	banks, rows, err := openBanks(ctx, v)
	if err != nil {
		return err
	}
	defer rows.Close()

	path := v.GetString("file")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var questions []model.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for _, q := range questions {
		if err := banks.Append(ctx, model.BankMain, q); err != nil {
			return fmt.Errorf("append question from %s: %w", path, err)
		}
	}

	slog.Info("imported questions", "path", path, "count", len(questions))
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	b, err := model.ParseBank(v.GetString("bank"))
	if err != nil {
		return err
	}

	banks, rows, err := openBanks(ctx, v)
	if err != nil {
		return err
	}
	defer rows.Close()

	questions, err := banks.LoadAll(ctx, b)
	if err != nil {
		return fmt.Errorf("load bank: %w", err)
	}

	export := model.BankExport{
		Bank:      b,
		Columns:   model.Columns,
		Questions: questions,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	return nil
}

func runReset(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	b, err := model.ParseBank(v.GetString("bank"))
	if err != nil {
		return err
	}
	if !v.GetBool("yes") {
		return fmt.Errorf("resetting %q removes every question in it; re-run with --yes to confirm", b)
	}

	banks, rows, err := openBanks(ctx, v)
	if err != nil {
		return err
	}
	defer rows.Close()

	if err := banks.Reset(ctx, b); err != nil {
		return err
	}
	slog.Info("bank reset", "bank", b)
	return nil
}
