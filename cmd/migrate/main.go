package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/gmail-finance-sync/internal/config"
	"github.com/dvloznov/gmail-finance-sync/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/api/iterator"
)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// Pattern to match migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

type options struct {
	configFile    string
	projectID     string
	datasetID     string
	appliedBy     string
	migrationsDir string
}

func main() {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply pending BigQuery schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.configFile, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&opts.projectID, "project", "", "GCP project ID (overrides store.project_id)")
	cmd.Flags().StringVar(&opts.datasetID, "dataset", "", "BigQuery dataset ID (overrides store.dataset)")
	cmd.Flags().StringVar(&opts.appliedBy, "applied-by", "migrate-cli", "Name of the tool applying migrations")
	cmd.Flags().StringVar(&opts.migrationsDir, "migrations", "migrations/bigquery", "Path to migrations directory")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options) error {
	cfg, err := config.Load(config.Options{ConfigFile: opts.configFile})
	if err != nil {
		return err
	}
	if opts.projectID == "" {
		opts.projectID = cfg.Store.ProjectID
	}
	if opts.datasetID == "" {
		opts.datasetID = cfg.Store.Dataset
	}
	if opts.projectID == "" {
		return fmt.Errorf("a GCP project is required: pass --project or set store.project_id")
	}

	log, err := logger.NewWithOptions(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}

	client, err := bigquery.NewClient(ctx, opts.projectID)
	if err != nil {
		return fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	defer client.Close()

	log.Info().Str("project", opts.projectID).Str("dataset", opts.datasetID).Msg("Connected to BigQuery")

	m := &migrator{client: client, opts: opts, log: log}
	return m.apply(ctx)
}

type migrator struct {
	client *bigquery.Client
	opts   *options
	log    zerolog.Logger
}

func (m *migrator) apply(ctx context.Context) error {
	// Ensure schema_migrations table exists
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}

	dir, err := findMigrationsDir(m.opts.migrationsDir)
	if err != nil {
		return err
	}
	migrations, err := readMigrations(dir, m.opts.projectID, m.opts.datasetID, m.log)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	m.log.Info().Int("files", len(migrations)).Msg("Found migration files")

	appliedMigrations, err := m.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}
	m.log.Info().Int("applied", len(appliedMigrations)).Msg("Found already applied migrations")

	pending := pendingMigrations(migrations, appliedMigrations, m.log)
	for _, migration := range pending {
		log := m.log.With().Int("version", migration.Version).Str("name", migration.Name).Logger()
		log.Info().Msg("Applying migration")

		if err := m.runStatement(ctx, migration.SQL, nil); err != nil {
			return fmt.Errorf("failed to execute migration %04d_%s: %w", migration.Version, migration.Name, err)
		}

		if err := m.recordMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to record migration %04d_%s: %w", migration.Version, migration.Name, err)
		}

		log.Info().Msg("Migration applied")
	}

	if len(pending) == 0 {
		m.log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		m.log.Info().Int("count", len(pending)).Msg("Successfully applied migrations")
	}
	return nil
}

// pendingMigrations returns the migrations whose version has not been
// applied, in version order. Checksum drift on applied versions is logged.
func pendingMigrations(all []Migration, applied []AppliedMigration, log zerolog.Logger) []Migration {
	appliedVersions := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		appliedVersions[am.Version] = am
	}

	var pending []Migration
	for _, migration := range all {
		am, ok := appliedVersions[migration.Version]
		if !ok {
			pending = append(pending, migration)
			continue
		}
		if am.Checksum != "" && am.Checksum != migration.Checksum {
			log.Warn().Int("version", migration.Version).Str("file", migration.Filename).
				Msg("Applied migration file changed since it was run")
		}
	}
	return pending
}

func (m *migrator) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", m.opts.projectID, m.opts.datasetID, name)
}

// ensureSchemaMigrationsTable creates the schema_migrations table if it doesn't exist
func (m *migrator) ensureSchemaMigrationsTable(ctx context.Context) error {
	sql := `
		CREATE TABLE IF NOT EXISTS ` + m.table("schema_migrations") + ` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`
	return m.runStatement(ctx, sql, nil)
}

// findMigrationsDir resolves dir relative to the working directory, or to the
// repository root when run from cmd/migrate.
func findMigrationsDir(dir string) (string, error) {
	if _, err := os.Stat(dir); err == nil {
		return dir, nil
	}
	alt := filepath.Join("..", "..", dir)
	if _, err := os.Stat(alt); err == nil {
		return alt, nil
	}
	return "", fmt.Errorf("migrations directory not found: %s", dir)
}

// parseMigrationFilename extracts the version and name from 0001_name.sql.
func parseMigrationFilename(filename string) (version int, name string, ok bool) {
	matches := migrationPattern.FindStringSubmatch(filename)
	if matches == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, "", false
	}
	return version, matches[2], true
}

// readMigrations reads all migration files from dir, substituting the
// {{PROJECT_ID}} and {{DATASET_ID}} placeholders.
func readMigrations(dir, projectID, datasetID string, log zerolog.Logger) ([]Migration, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		version, name, ok := parseMigrationFilename(file.Name())
		if !ok {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid format")
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		sql := string(content)
		sql = strings.ReplaceAll(sql, "{{PROJECT_ID}}", projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)

		// Checksum covers the file before substitution so it is stable across datasets.
		checksum := fmt.Sprintf("%x", sha256.Sum256(content))

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: file.Name(),
			SQL:      sql,
			Checksum: checksum,
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// getAppliedMigrations retrieves the list of already applied migrations
func (m *migrator) getAppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	sql := `
		SELECT version, name, applied_at, checksum, applied_by
		FROM ` + m.table("schema_migrations") + `
		ORDER BY version ASC
	`

	it, err := m.client.Query(sql).Read(ctx)
	if err != nil {
		// If table doesn't exist yet, return empty list
		if strings.Contains(err.Error(), "Not found") {
			return []AppliedMigration{}, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}

	return applied, nil
}

// recordMigration records a successfully applied migration in schema_migrations
func (m *migrator) recordMigration(ctx context.Context, migration Migration) error {
	sql := `
		INSERT INTO ` + m.table("schema_migrations") + `
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`
	return m.runStatement(ctx, sql, []bigquery.QueryParameter{
		{Name: "version", Value: migration.Version},
		{Name: "name", Value: migration.Name},
		{Name: "checksum", Value: migration.Checksum},
		{Name: "applied_by", Value: m.opts.appliedBy},
	})
}

func (m *migrator) runStatement(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	query := m.client.Query(sql)
	query.Parameters = params

	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}
