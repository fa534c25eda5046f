package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mcpchat/mcp"
)

// ErrServerNotFound is returned when no server with the given id is stored.
var ErrServerNotFound = errors.New("server not found")

// Sealer encrypts secret values before they are written and decrypts them
// on read. config.CredentialStore satisfies it.
type Sealer interface {
	Seal(value string) (string, error)
	Open(value string) (string, error)
}

// ServerRecord is a stored MCP server definition.
type ServerRecord struct {
	mcp.ServerConfig
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ServerStore persists MCP server definitions in sqlite.
type ServerStore struct {
	db     *sql.DB
	sealer Sealer
	now    func() time.Time
}

// NewServerStore opens (or creates) the database at dbPath. sealer may be
// nil, in which case env and header values are stored as given.
func NewServerStore(dbPath string, sealer Sealer) (*ServerStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &ServerStore{db: db, sealer: sealer, now: time.Now}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (s *ServerStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS servers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		transport TEXT NOT NULL,
		command TEXT,
		args TEXT,
		env TEXT,
		url TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_servers_name ON servers(name);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	if err := s.migrateSchema(); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	return nil
}

// migrateSchema adds columns introduced after the first schema version.
func (s *ServerStore) migrateSchema() error {
	columns := []struct {
		name string
		ddl  string
	}{
		{"headers", `ALTER TABLE servers ADD COLUMN headers TEXT DEFAULT ''`},
		{"working_dir", `ALTER TABLE servers ADD COLUMN working_dir TEXT DEFAULT ''`},
		{"enabled", `ALTER TABLE servers ADD COLUMN enabled INTEGER NOT NULL DEFAULT 1`},
	}

	for _, col := range columns {
		exists, err := s.columnExists("servers", col.name)
		if err != nil {
			return fmt.Errorf("failed to check for %s column: %w", col.name, err)
		}
		if exists {
			continue
		}
		if _, err := s.db.Exec(col.ddl); err != nil {
			return fmt.Errorf("failed to add %s column: %w", col.name, err)
		}
	}

	return nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info
func (s *ServerStore) columnExists(tableName, columnName string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid          int
			name         string
			dataType     string
			notNull      int
			defaultValue any
			pk           int
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return false, err
		}
		if name == columnName {
			return true, nil
		}
	}

	return false, rows.Err()
}

// Save inserts the server or replaces an existing definition with the same
// id. The creation time of an existing row is kept.
func (s *ServerStore) Save(cfg mcp.ServerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	args, err := json.Marshal(cfg.Args)
	if err != nil {
		return fmt.Errorf("failed to encode args: %w", err)
	}
	env, err := s.encodeSecrets(cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to encode env: %w", err)
	}
	headers, err := s.encodeSecrets(cfg.Headers)
	if err != nil {
		return fmt.Errorf("failed to encode headers: %w", err)
	}

	now := s.now().UTC()
	query := `
	INSERT INTO servers (id, name, transport, command, args, env, url, headers, working_dir, enabled, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		transport = excluded.transport,
		command = excluded.command,
		args = excluded.args,
		env = excluded.env,
		url = excluded.url,
		headers = excluded.headers,
		working_dir = excluded.working_dir,
		enabled = excluded.enabled,
		updated_at = excluded.updated_at
	`

	_, err = s.db.Exec(query,
		cfg.ID,
		cfg.Name,
		cfg.Transport,
		cfg.Command,
		string(args),
		env,
		cfg.URL,
		headers,
		cfg.WorkingDir,
		cfg.Enabled,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save server %s: %w", cfg.ID, err)
	}
	return nil
}

const selectServers = `
	SELECT id, name, transport, command, args, env, url, headers, working_dir, enabled, created_at, updated_at
	FROM servers
	`

// Get returns the server with the given id or ErrServerNotFound.
func (s *ServerStore) Get(id string) (*ServerRecord, error) {
	row := s.db.QueryRow(selectServers+`WHERE id = ?`, id)
	record, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrServerNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// List returns all stored servers ordered by name.
func (s *ServerStore) List() ([]ServerRecord, error) {
	rows, err := s.db.Query(selectServers + `ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ServerRecord
	for rows.Next() {
		record, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	return records, rows.Err()
}

// Configs returns the stored server definitions, ready for mcp.Manager.Start.
func (s *ServerStore) Configs() ([]mcp.ServerConfig, error) {
	records, err := s.List()
	if err != nil {
		return nil, err
	}
	configs := make([]mcp.ServerConfig, 0, len(records))
	for _, r := range records {
		configs = append(configs, r.ServerConfig)
	}
	return configs, nil
}

// Delete removes a server definition.
func (s *ServerStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete server %s: %w", id, err)
	}
	return expectOneRow(result, id)
}

// SetEnabled toggles whether the server is started by Manager.Start.
func (s *ServerStore) SetEnabled(id string, enabled bool) error {
	result, err := s.db.Exec(`UPDATE servers SET enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, s.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update server %s: %w", id, err)
	}
	return expectOneRow(result, id)
}

func (s *ServerStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *ServerStore) scan(row scanner) (*ServerRecord, error) {
	var (
		record                  ServerRecord
		command, args, env, url sql.NullString
		headers, workingDir     sql.NullString
	)
	err := row.Scan(
		&record.ID,
		&record.Name,
		&record.Transport,
		&command,
		&args,
		&env,
		&url,
		&headers,
		&workingDir,
		&record.Enabled,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Command = command.String
	record.URL = url.String
	record.WorkingDir = workingDir.String

	if args.String != "" && args.String != "null" {
		if err := json.Unmarshal([]byte(args.String), &record.Args); err != nil {
			return nil, fmt.Errorf("server %s: invalid args: %w", record.ID, err)
		}
	}
	if record.Env, err = s.decodeSecrets(env.String); err != nil {
		return nil, fmt.Errorf("server %s: invalid env: %w", record.ID, err)
	}
	if record.Headers, err = s.decodeSecrets(headers.String); err != nil {
		return nil, fmt.Errorf("server %s: invalid headers: %w", record.ID, err)
	}

	return &record, nil
}

func expectOneRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrServerNotFound, id)
	}
	return nil
}

var secretMarkers = []string{"KEY", "TOKEN", "SECRET", "PASSWORD", "AUTHORIZATION", "CREDENTIAL"}

// IsSecretKey reports whether an env var or header name looks like it
// carries a credential.
func IsSecretKey(name string) bool {
	upper := strings.ToUpper(name)
	for _, marker := range secretMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

func (s *ServerStore) encodeSecrets(values map[string]string) (string, error) {
	if len(values) == 0 {
		return "", nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if s.sealer != nil && IsSecretKey(k) {
			sealed, err := s.sealer.Seal(v)
			if err != nil {
				return "", fmt.Errorf("seal %s: %w", k, err)
			}
			v = sealed
		}
		out[k] = v
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *ServerStore) decodeSecrets(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	var values map[string]string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	if s.sealer == nil {
		return values, nil
	}
	for k, v := range values {
		if !IsSecretKey(k) {
			continue
		}
		opened, err := s.sealer.Open(v)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", k, err)
		}
		values[k] = opened
	}
	return values, nil
}
