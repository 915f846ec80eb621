package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"docstore/internal/app"
	"docstore/internal/config"
	"docstore/internal/model"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file from the default location.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates a DocApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Ingest", "MigrateRun").
func newApp(operation string) (*app.DocApp, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewDocApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readPassphrase returns DOCSTORE_PASSPHRASE if set, otherwise prompts on the terminal.
func readPassphrase(prompt string) (string, error) {
	if p := os.Getenv("DOCSTORE_PASSPHRASE"); p != "" {
		return p, nil
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:          "docstore",
	Short:        "Tiered storage for sensitive clinic documents",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		secret := ""
		if cfg.Storage.SecretAccessKey != "" {
			secret = "(set)"
		}
		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("Log Level:     %s\n", cfg.LogLevel)
		fmt.Printf("Storage:       %s (bucket %q, region %q)\n", cfg.Storage.Type, cfg.Storage.Bucket, cfg.Storage.Region)
		fmt.Printf("Secret Key:    %s\n", secret)
		fmt.Printf("Local Root:    %s\n", cfg.Storage.LocalRoot)
		fmt.Printf("Database:      %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Encryption:    %s\n", cfg.Encryption.Type)
		fmt.Printf("Policy:        %d months, batch %d, %d worker(s)\n",
			cfg.Policy.MinAgeMonths, cfg.Policy.BatchSize, cfg.Policy.Workers)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the document registry",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := app.MigrateDatabase(cfg.Database)
		if err != nil {
			return fmt.Errorf("migrating registry: %w", err)
		}
		fmt.Printf("Registry schema at version %d\n", st.Current)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		if os.Getenv("DOCSTORE_PASSPHRASE") == "" {
			confirm, err := readPassphrase("Confirm passphrase: ")
			if err != nil {
				return err
			}
			if confirm != passphrase {
				return errors.New("passphrases do not match")
			}
		}

		if err := app.SetupKeys(cfg, passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Printf("Keys written to %s and %s\n", cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest FILE",
	Short: "Validate and store a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		mimeType, _ := cmd.Flags().GetString("mime")
		owner, _ := cmd.Flags().GetInt64("owner")

		a, err := newApp("Ingest")
		if err != nil {
			return err
		}
		defer a.Close()

		res, doc, err := a.Ingest(cmd.Context(), args[0], category, mimeType, owner)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}

		fmt.Printf("Document #%d stored\n", doc.ID)
		fmt.Printf("Key:      %s\n", res.Key)
		fmt.Printf("Location: %s/%s\n", res.Provider, res.Bucket)
		fmt.Printf("Size:     %d\n", res.Size)
		fmt.Printf("URL:      %s\n", res.URL)
		return nil
	},
}

// url command
var urlCmd = &cobra.Command{
	Use:   "url KEY",
	Short: "Print a fresh signed access URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetInt("ttl")

		a, err := newApp("AccessURL")
		if err != nil {
			return err
		}
		defer a.Close()

		url, err := a.AccessURL(cmd.Context(), args[0], time.Duration(ttl)*time.Second)
		if err != nil {
			return err
		}
		fmt.Println(url)
		return nil
	},
}

// get command
var getCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Download a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		a, err := newApp("Fetch")
		if err != nil {
			return err
		}
		defer a.Close()

		if a.NeedsPassphrase() {
			passphrase, err := readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
			if err := a.Unlock(passphrase); err != nil {
				return err
			}
		}

		data, err := a.Fetch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if output == "" || output == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(output, data, 0600); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %d bytes to %s\n", len(data), output)
		return nil
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete KEY",
	Short: "Purge a document and its registry record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Delete")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Storage class migration",
}

var migrateRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Demote aging hot documents to cold storage once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("MigrateRun")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.RunMigrationPolicy(cmd.Context())
		if err != nil {
			return fmt.Errorf("migration run failed: %w", err)
		}
		fmt.Printf("Candidates: %d  migrated: %d  failed: %d  deferred: %d  (%s)\n",
			result.Candidates, result.SuccessCount, result.FailCount, result.SkippedCount,
			result.Duration.Truncate(time.Millisecond))
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the migration policy on a schedule and expose metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("metrics-addr")

		a, err := newApp("Serve")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		errCh := make(chan error, 1)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		done := make(chan struct{})
		go func() {
			a.NewScheduler().Start(ctx)
			close(done)
		}()
		fmt.Fprintf(os.Stderr, "Serving metrics on %s\n", addr)

		var serveErr error
		select {
		case <-ctx.Done():
		case serveErr = <-errCh:
			stop()
		}
		<-done

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down metrics server: %w", err)
		}
		if serveErr != nil {
			return fmt.Errorf("metrics server: %w", serveErr)
		}
		return nil
	},
}

// audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the transition audit log",
}

var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "List storage class transitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		documentID, _ := cmd.Flags().GetInt64("document")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("AuditLog")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.AuditLog(cmd.Context(), documentID, limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No transitions recorded.")
			return nil
		}

		for _, e := range entries {
			simulated := ""
			if e.Simulated {
				simulated = "  [simulated]"
			}
			fmt.Printf("#%d  doc %-6d  %s -> %s  %s  %s  %d%s\n",
				e.ID,
				e.DocumentID,
				e.PreviousClass,
				e.NewClass,
				e.MigratedAt.Format("2006-01-02 15:04:05"),
				e.Reason,
				e.FileSizeBytes,
				simulated,
			)
		}
		return nil
	},
}

var auditRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List migration policy runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("PolicyRuns")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.PolicyRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No migration runs recorded.")
			return nil
		}

		for _, r := range runs {
			duration := ""
			if r.FinishedAt.Valid {
				duration = r.FinishedAt.Time.Sub(r.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("%s  %s  %-8s  %d/%d/%d of %d  %s\n",
				shortID(r.ID),
				r.StartedAt.Format("2006-01-02 15:04:05"),
				r.Status,
				r.SuccessCount,
				r.FailCount,
				r.SkippedCount,
				r.Candidates,
				duration,
			)
		}
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend, document counts and schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Status")
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.Status(cmd.Context())
		if err != nil {
			return err
		}

		tiering := "real tiering"
		if !st.SupportsTiering {
			tiering = "logical classes only"
		}
		fmt.Printf("Backend: %s (bucket %s, %s)\n", st.Provider, st.Bucket, tiering)

		classes := make([]string, 0, len(st.Counts))
		for c := range st.Counts {
			classes = append(classes, string(c))
		}
		sort.Strings(classes)
		for _, c := range classes {
			fmt.Printf("  %-5s %d\n", c, st.Counts[model.StorageClass(c)])
		}
		if st.Schema != nil {
			fmt.Printf("Schema:  version %d of %d", st.Schema.Current, st.Schema.Latest)
			if st.Schema.Dirty {
				fmt.Print(" (dirty)")
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	dbCmd.AddCommand(dbMigrateCmd)
	keysCmd.AddCommand(keysInitCmd)

	migrateCmd.AddCommand(migrateRunCmd)

	auditCmd.AddCommand(auditLogCmd)
	auditLogCmd.Flags().Int64("document", 0, "Only show transitions of this document ID")
	auditLogCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries to show")
	auditCmd.AddCommand(auditRunsCmd)
	auditRunsCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringP("category", "c", "", "Document category (default medical-records)")
	ingestCmd.Flags().StringP("mime", "m", "", "Declared MIME type (default: guessed from the file extension)")
	ingestCmd.Flags().Int64("owner", 0, "Owning user ID")
	ingestCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(urlCmd)
	urlCmd.Flags().Int("ttl", 0, "URL validity in seconds (default from config)")
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringP("output", "o", "", "Write to FILE instead of stdout")
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("metrics-addr", ":9090", "Listen address for /metrics")
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(statusCmd)
}

// shortID abbreviates a run ID for tabular output.
func shortID(id string) string {
	return id[:min(8, len(id))]
}
