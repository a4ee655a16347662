package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/artpar/shipyard/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations. File DSNs
// get their parent directory created.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, NewStoreError("NewSQLiteStore", "", "", "failed to create database directory", ErrConnectionFailed)
			}
		}
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sqlx.Open("sqlite3", dsn+sep+"_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStoreError("Ping", "", "", err.Error(), ErrConnectionFailed)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateImage(ctx context.Context, img *domain.Image) error {
	return createImage(ctx, s.db, img)
}

func (s *SQLiteStore) GetImage(ctx context.Context, ref domain.ImageRef) (*domain.Image, error) {
	return getImage(ctx, s.db, ref)
}

func (s *SQLiteStore) GetImageBySourceDir(ctx context.Context, dir string) (*domain.Image, error) {
	return getImageBySourceDir(ctx, s.db, dir)
}

func (s *SQLiteStore) UpdateImage(ctx context.Context, img *domain.Image) error {
	return updateImage(ctx, s.db, img)
}

func (s *SQLiteStore) DeleteImage(ctx context.Context, ref domain.ImageRef) error {
	return deleteImage(ctx, s.db, ref)
}

func (s *SQLiteStore) ListImages(ctx context.Context, opts ListOptions) ([]domain.Image, error) {
	return listImages(ctx, s.db, opts)
}

func (s *SQLiteStore) CreateBuildTemplate(ctx context.Context, bt *domain.BuildTemplate) error {
	return createBuildTemplate(ctx, s.db, bt)
}

func (s *SQLiteStore) GetBuildTemplate(ctx context.Context, ref string) (*domain.BuildTemplate, error) {
	return getBuildTemplate(ctx, s.db, ref)
}

func (s *SQLiteStore) UpdateBuildTemplate(ctx context.Context, bt *domain.BuildTemplate) error {
	return updateBuildTemplate(ctx, s.db, bt)
}

func (s *SQLiteStore) DeleteBuildTemplate(ctx context.Context, ref string) error {
	return deleteBuildTemplate(ctx, s.db, ref)
}

func (s *SQLiteStore) ListBuildTemplates(ctx context.Context, opts ListOptions) ([]domain.BuildTemplate, error) {
	return listBuildTemplates(ctx, s.db, opts)
}

func (s *SQLiteStore) CreateApplication(ctx context.Context, app *domain.Application) error {
	return createApplication(ctx, s.db, app)
}

func (s *SQLiteStore) GetApplication(ctx context.Context, name string) (*domain.Application, error) {
	return getApplication(ctx, s.db, name)
}

func (s *SQLiteStore) UpdateApplication(ctx context.Context, app *domain.Application) error {
	return updateApplication(ctx, s.db, app)
}

func (s *SQLiteStore) DeleteApplication(ctx context.Context, name string) error {
	return deleteApplication(ctx, s.db, name)
}

func (s *SQLiteStore) ListApplications(ctx context.Context, opts ListOptions) ([]domain.Application, error) {
	return listApplications(ctx, s.db, opts)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateImage(ctx context.Context, img *domain.Image) error {
	return createImage(ctx, s.tx, img)
}

func (s *txSQLiteStore) GetImage(ctx context.Context, ref domain.ImageRef) (*domain.Image, error) {
	return getImage(ctx, s.tx, ref)
}

func (s *txSQLiteStore) GetImageBySourceDir(ctx context.Context, dir string) (*domain.Image, error) {
	return getImageBySourceDir(ctx, s.tx, dir)
}

func (s *txSQLiteStore) UpdateImage(ctx context.Context, img *domain.Image) error {
	return updateImage(ctx, s.tx, img)
}

func (s *txSQLiteStore) DeleteImage(ctx context.Context, ref domain.ImageRef) error {
	return deleteImage(ctx, s.tx, ref)
}

func (s *txSQLiteStore) ListImages(ctx context.Context, opts ListOptions) ([]domain.Image, error) {
	return listImages(ctx, s.tx, opts)
}

func (s *txSQLiteStore) CreateBuildTemplate(ctx context.Context, bt *domain.BuildTemplate) error {
	return createBuildTemplate(ctx, s.tx, bt)
}

func (s *txSQLiteStore) GetBuildTemplate(ctx context.Context, ref string) (*domain.BuildTemplate, error) {
	return getBuildTemplate(ctx, s.tx, ref)
}

func (s *txSQLiteStore) UpdateBuildTemplate(ctx context.Context, bt *domain.BuildTemplate) error {
	return updateBuildTemplate(ctx, s.tx, bt)
}

func (s *txSQLiteStore) DeleteBuildTemplate(ctx context.Context, ref string) error {
	return deleteBuildTemplate(ctx, s.tx, ref)
}

func (s *txSQLiteStore) ListBuildTemplates(ctx context.Context, opts ListOptions) ([]domain.BuildTemplate, error) {
	return listBuildTemplates(ctx, s.tx, opts)
}

func (s *txSQLiteStore) CreateApplication(ctx context.Context, app *domain.Application) error {
	return createApplication(ctx, s.tx, app)
}

func (s *txSQLiteStore) GetApplication(ctx context.Context, name string) (*domain.Application, error) {
	return getApplication(ctx, s.tx, name)
}

func (s *txSQLiteStore) UpdateApplication(ctx context.Context, app *domain.Application) error {
	return updateApplication(ctx, s.tx, app)
}

func (s *txSQLiteStore) DeleteApplication(ctx context.Context, name string) error {
	return deleteApplication(ctx, s.tx, name)
}

func (s *txSQLiteStore) ListApplications(ctx context.Context, opts ListOptions) ([]domain.Application, error) {
	return listApplications(ctx, s.tx, opts)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Ping(ctx context.Context) error {
	return nil
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Image Operations
// =============================================================================

// imageRow represents an image row in the database.
type imageRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Tag       string `db:"tag"`
	Remote    string `db:"remote"`
	BTRef     string `db:"bt_ref"`
	SourceDir string `db:"source_dir"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func createImage(ctx context.Context, exec executor, img *domain.Image) error {
	query := `
		INSERT INTO images (id, name, tag, remote, bt_ref, source_dir, created_at, updated_at)
		VALUES (:id, :name, :tag, :remote, :bt_ref, :source_dir, :created_at, :updated_at)`

	ref := img.Ref()
	row := map[string]any{
		"id":         img.ID,
		"name":       ref.Name,
		"tag":        ref.Tag,
		"remote":     img.Remote,
		"bt_ref":     img.BuildTemplateRef,
		"source_dir": img.SourceDir(),
		"created_at": img.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": img.UpdatedAt.UTC().Format(time.RFC3339),
	}

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		if isUniqueViolation(err) {
			return NewStoreError("CreateImage", "image", ref.String(), "image already exists", ErrDuplicate)
		}
		return NewStoreError("CreateImage", "image", ref.String(), err.Error(), err)
	}
	return nil
}

func getImage(ctx context.Context, exec executor, ref domain.ImageRef) (*domain.Image, error) {
	query := `SELECT * FROM images WHERE name = ? AND tag = ?`

	tag := domain.NormalizeTag(ref.Tag)
	var row imageRow
	if err := exec.GetContext(ctx, &row, query, ref.Name, tag); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetImage", "image", ref.String(), "image not found", ErrNotFound)
		}
		return nil, NewStoreError("GetImage", "image", ref.String(), err.Error(), err)
	}
	return rowToImage(&row), nil
}

// getImageBySourceDir finds the image owning a source tree directory. Two
// names can flatten to the same directory, so the column is unique.
func getImageBySourceDir(ctx context.Context, exec executor, dir string) (*domain.Image, error) {
	query := `SELECT * FROM images WHERE source_dir = ?`

	var row imageRow
	if err := exec.GetContext(ctx, &row, query, dir); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetImageBySourceDir", "image", dir, "image not found", ErrNotFound)
		}
		return nil, NewStoreError("GetImageBySourceDir", "image", dir, err.Error(), err)
	}
	return rowToImage(&row), nil
}

func updateImage(ctx context.Context, exec executor, img *domain.Image) error {
	query := `
		UPDATE images SET
			remote = :remote,
			bt_ref = :bt_ref,
			updated_at = :updated_at
		WHERE name = :name AND tag = :tag`

	ref := img.Ref()
	row := map[string]any{
		"name":       ref.Name,
		"tag":        ref.Tag,
		"remote":     img.Remote,
		"bt_ref":     img.BuildTemplateRef,
		"updated_at": img.UpdatedAt.UTC().Format(time.RFC3339),
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateImage", "image", ref.String(), err.Error(), err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return NewStoreError("UpdateImage", "image", ref.String(), "image not found", ErrNotFound)
	}
	return nil
}

func deleteImage(ctx context.Context, exec executor, ref domain.ImageRef) error {
	query := `DELETE FROM images WHERE name = ? AND tag = ?`

	result, err := exec.ExecContext(ctx, query, ref.Name, domain.NormalizeTag(ref.Tag))
	if err != nil {
		return NewStoreError("DeleteImage", "image", ref.String(), err.Error(), err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return NewStoreError("DeleteImage", "image", ref.String(), "image not found", ErrNotFound)
	}
	return nil
}

func listImages(ctx context.Context, exec executor, opts ListOptions) ([]domain.Image, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM images ORDER BY name, tag LIMIT ? OFFSET ?`

	var rows []imageRow
	if err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListImages", "image", "", err.Error(), err)
	}

	images := make([]domain.Image, 0, len(rows))
	for i := range rows {
		images = append(images, *rowToImage(&rows[i]))
	}
	return images, nil
}

// =============================================================================
// Build Template Operations
// =============================================================================

// buildTemplateRow represents a build template row in the database.
type buildTemplateRow struct {
	ID        string `db:"id"`
	Ref       string `db:"ref"`
	Name      string `db:"name"`
	Steps     string `db:"steps"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func createBuildTemplate(ctx context.Context, exec executor, bt *domain.BuildTemplate) error {
	stepsJSON, err := marshalList(bt.Steps)
	if err != nil {
		return NewStoreError("CreateBuildTemplate", "build_template", bt.Ref, "failed to serialize steps", ErrInvalidData)
	}

	query := `
		INSERT INTO build_templates (id, ref, name, steps, created_at, updated_at)
		VALUES (:id, :ref, :name, :steps, :created_at, :updated_at)`

	row := map[string]any{
		"id":         bt.ID,
		"ref":        bt.Ref,
		"name":       bt.Name,
		"steps":      stepsJSON,
		"created_at": bt.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": bt.UpdatedAt.UTC().Format(time.RFC3339),
	}

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		if isUniqueViolation(err) {
			return NewStoreError("CreateBuildTemplate", "build_template", bt.Ref, "build template already exists", ErrDuplicate)
		}
		return NewStoreError("CreateBuildTemplate", "build_template", bt.Ref, err.Error(), err)
	}
	return nil
}

func getBuildTemplate(ctx context.Context, exec executor, ref string) (*domain.BuildTemplate, error) {
	query := `SELECT * FROM build_templates WHERE ref = ?`

	var row buildTemplateRow
	if err := exec.GetContext(ctx, &row, query, ref); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetBuildTemplate", "build_template", ref, "build template not found", ErrNotFound)
		}
		return nil, NewStoreError("GetBuildTemplate", "build_template", ref, err.Error(), err)
	}
	return rowToBuildTemplate(&row)
}

func updateBuildTemplate(ctx context.Context, exec executor, bt *domain.BuildTemplate) error {
	stepsJSON, err := marshalList(bt.Steps)
	if err != nil {
		return NewStoreError("UpdateBuildTemplate", "build_template", bt.Ref, "failed to serialize steps", ErrInvalidData)
	}

	query := `
		UPDATE build_templates SET
			name = :name,
			steps = :steps,
			updated_at = :updated_at
		WHERE ref = :ref`

	row := map[string]any{
		"ref":        bt.Ref,
		"name":       bt.Name,
		"steps":      stepsJSON,
		"updated_at": bt.UpdatedAt.UTC().Format(time.RFC3339),
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateBuildTemplate", "build_template", bt.Ref, err.Error(), err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return NewStoreError("UpdateBuildTemplate", "build_template", bt.Ref, "build template not found", ErrNotFound)
	}
	return nil
}

func deleteBuildTemplate(ctx context.Context, exec executor, ref string) error {
	query := `DELETE FROM build_templates WHERE ref = ?`

	result, err := exec.ExecContext(ctx, query, ref)
	if err != nil {
		return NewStoreError("DeleteBuildTemplate", "build_template", ref, err.Error(), err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return NewStoreError("DeleteBuildTemplate", "build_template", ref, "build template not found", ErrNotFound)
	}
	return nil
}

func listBuildTemplates(ctx context.Context, exec executor, opts ListOptions) ([]domain.BuildTemplate, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM build_templates ORDER BY ref LIMIT ? OFFSET ?`

	var rows []buildTemplateRow
	if err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListBuildTemplates", "build_template", "", err.Error(), err)
	}

	templates := make([]domain.BuildTemplate, 0, len(rows))
	for i := range rows {
		bt, err := rowToBuildTemplate(&rows[i])
		if err != nil {
			return nil, err
		}
		templates = append(templates, *bt)
	}
	return templates, nil
}

// =============================================================================
// Application Operations
// =============================================================================

// applicationRow represents an application row in the database.
type applicationRow struct {
	ID             string `db:"id"`
	Name           string `db:"name"`
	ComposeVersion string `db:"compose_version"`
	Services       string `db:"services"`
	Volumes        string `db:"volumes"`
	CreatedAt      string `db:"created_at"`
	UpdatedAt      string `db:"updated_at"`
}

func applicationToRow(op string, app *domain.Application) (map[string]any, error) {
	servicesJSON, err := marshalList(app.Services)
	if err != nil {
		return nil, NewStoreError(op, "application", app.Name, "failed to serialize services", ErrInvalidData)
	}
	volumesJSON, err := marshalList(app.Volumes)
	if err != nil {
		return nil, NewStoreError(op, "application", app.Name, "failed to serialize volumes", ErrInvalidData)
	}
	return map[string]any{
		"id":              app.ID,
		"name":            app.Name,
		"compose_version": app.ComposeVersion,
		"services":        servicesJSON,
		"volumes":         volumesJSON,
		"created_at":      app.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":      app.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func createApplication(ctx context.Context, exec executor, app *domain.Application) error {
	row, err := applicationToRow("CreateApplication", app)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO applications (id, name, compose_version, services, volumes, created_at, updated_at)
		VALUES (:id, :name, :compose_version, :services, :volumes, :created_at, :updated_at)`

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		if isUniqueViolation(err) {
			return NewStoreError("CreateApplication", "application", app.Name, "application already exists", ErrDuplicate)
		}
		return NewStoreError("CreateApplication", "application", app.Name, err.Error(), err)
	}
	return nil
}

func getApplication(ctx context.Context, exec executor, name string) (*domain.Application, error) {
	query := `SELECT * FROM applications WHERE name = ?`

	var row applicationRow
	if err := exec.GetContext(ctx, &row, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetApplication", "application", name, "application not found", ErrNotFound)
		}
		return nil, NewStoreError("GetApplication", "application", name, err.Error(), err)
	}
	return rowToApplication(&row)
}

func updateApplication(ctx context.Context, exec executor, app *domain.Application) error {
	row, err := applicationToRow("UpdateApplication", app)
	if err != nil {
		return err
	}

	query := `
		UPDATE applications SET
			compose_version = :compose_version,
			services = :services,
			volumes = :volumes,
			updated_at = :updated_at
		WHERE name = :name`

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateApplication", "application", app.Name, err.Error(), err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return NewStoreError("UpdateApplication", "application", app.Name, "application not found", ErrNotFound)
	}
	return nil
}

func deleteApplication(ctx context.Context, exec executor, name string) error {
	query := `DELETE FROM applications WHERE name = ?`

	result, err := exec.ExecContext(ctx, query, name)
	if err != nil {
		return NewStoreError("DeleteApplication", "application", name, err.Error(), err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return NewStoreError("DeleteApplication", "application", name, "application not found", ErrNotFound)
	}
	return nil
}

func listApplications(ctx context.Context, exec executor, opts ListOptions) ([]domain.Application, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM applications ORDER BY name LIMIT ? OFFSET ?`

	var rows []applicationRow
	if err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListApplications", "application", "", err.Error(), err)
	}

	apps := make([]domain.Application, 0, len(rows))
	for i := range rows {
		app, err := rowToApplication(&rows[i])
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	return apps, nil
}

// =============================================================================
// Row Converters
// =============================================================================

func rowToImage(row *imageRow) *domain.Image {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, row.UpdatedAt)

	return &domain.Image{
		ID:               row.ID,
		Name:             row.Name,
		Tag:              row.Tag,
		Remote:           row.Remote,
		BuildTemplateRef: row.BTRef,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}
}

func rowToBuildTemplate(row *buildTemplateRow) (*domain.BuildTemplate, error) {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, row.UpdatedAt)

	steps := []string{}
	if err := unmarshalList(row.Steps, &steps); err != nil {
		return nil, NewStoreError("rowToBuildTemplate", "build_template", row.Ref, "failed to parse steps", ErrInvalidData)
	}

	return &domain.BuildTemplate{
		ID:        row.ID,
		Ref:       row.Ref,
		Name:      row.Name,
		Steps:     steps,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func rowToApplication(row *applicationRow) (*domain.Application, error) {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, row.UpdatedAt)

	var services []domain.Service
	if err := unmarshalList(row.Services, &services); err != nil {
		return nil, NewStoreError("rowToApplication", "application", row.Name, "failed to parse services", ErrInvalidData)
	}
	var volumes []string
	if err := unmarshalList(row.Volumes, &volumes); err != nil {
		return nil, NewStoreError("rowToApplication", "application", row.Name, "failed to parse volumes", ErrInvalidData)
	}

	app := &domain.Application{
		ID:             row.ID,
		Name:           row.Name,
		ComposeVersion: row.ComposeVersion,
		Services:       services,
		Volumes:        volumes,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
	app.Normalize()
	return app, nil
}

// =============================================================================
// Helpers
// =============================================================================

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func marshalList(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(data) == "null" {
		return "[]", nil
	}
	return string(data), nil
}

func unmarshalList(data string, dest any) error {
	if data == "" || data == "null" {
		return nil
	}
	return json.Unmarshal([]byte(data), dest)
}
