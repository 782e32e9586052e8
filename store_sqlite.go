package rhema

import (
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	// SQLite backend for database/sql
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchemaVersion = 1

// SQLiteStore is a Store implementation backed by a SQLite database.
type SQLiteStore struct {
	conn *sql.DB
	path string
}

// OpenSQLiteStore opens (creating if necessary) a SQLite-backed store
// at the given path.
func OpenSQLiteStore(path string) (_ *SQLiteStore, defErr error) {
	conn, err := sql.Open("sqlite3", path+"?_loc=auto")
	if err != nil {
		return nil, fmt.Errorf("initializing sqlite database: %w", err)
	}
	defer func() {
		if defErr != nil {
			if err := conn.Close(); err != nil {
				logrus.Errorf("Error closing SQLite DB connection: %v", err)
			}
		}
	}()

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("cannot connect to database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("enabling foreign key support in database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("switching journal to WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		return nil, fmt.Errorf("setting synchronous mode in db: %w", err)
	}

	if err := sqliteInitTables(conn); err != nil {
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &SQLiteStore{conn: conn, path: path}, nil
}

func sqliteInitTables(conn *sql.DB) (defErr error) {
	const dbConfig = `
        CREATE TABLE IF NOT EXISTS DBConfig(
                Id            INTEGER PRIMARY KEY NOT NULL,
                SchemaVersion INTEGER NOT NULL,
                CHECK (Id IN (1))
        );`

	const definitions = `
        CREATE TABLE IF NOT EXISTS Definitions(
                Seq    INTEGER PRIMARY KEY AUTOINCREMENT,
                Name   TEXT    UNIQUE NOT NULL,
                Source TEXT    NOT NULL
        );`

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if defErr != nil {
			if err := tx.Rollback(); err != nil {
				logrus.Errorf("Error rolling back transaction to create tables: %v", err)
			}
		}
	}()

	for tblName, cmd := range map[string]string{
		"DBConfig":    dbConfig,
		"Definitions": definitions,
	} {
		if _, err := tx.Exec(cmd); err != nil {
			return fmt.Errorf("creating table %s: %w", tblName, err)
		}
	}

	row := tx.QueryRow("SELECT SchemaVersion FROM DBConfig WHERE Id=1;")
	var version int
	if err := row.Scan(&version); err != nil {
		if err != sql.ErrNoRows {
			return fmt.Errorf("querying schema version: %w", err)
		}
		if _, err := tx.Exec("INSERT INTO DBConfig (Id, SchemaVersion) VALUES (1, ?);", sqliteSchemaVersion); err != nil {
			return fmt.Errorf("recording schema version: %w", err)
		}
	} else if version != sqliteSchemaVersion {
		return fmt.Errorf("%w: database version %d, supported version %d", ErrBadStoreVersion, version, sqliteSchemaVersion)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// SaveDefinition records a definition. Redefining an existing name
// deletes the old row first so the name gets a fresh sequence number.
func (s *SQLiteStore) SaveDefinition(name, source string) (defErr error) {
	if s.conn == nil {
		return ErrStoreClosed
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if defErr != nil {
			if err := tx.Rollback(); err != nil {
				logrus.Errorf("Error rolling back transaction to save definition %s: %v", name, err)
			}
		}
	}()

	if _, err := tx.Exec("DELETE FROM Definitions WHERE Name=?;", name); err != nil {
		return fmt.Errorf("removing old definition %s: %w", name, err)
	}
	if _, err := tx.Exec("INSERT INTO Definitions (Name, Source) VALUES (?, ?);", name, source); err != nil {
		return fmt.Errorf("inserting definition %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// DeleteDefinition removes a definition by name.
func (s *SQLiteStore) DeleteDefinition(name string) error {
	if s.conn == nil {
		return ErrStoreClosed
	}

	if _, err := s.conn.Exec("DELETE FROM Definitions WHERE Name=?;", name); err != nil {
		return fmt.Errorf("deleting definition %s: %w", name, err)
	}
	return nil
}

// ListDefinitions returns all definitions in ascending Seq order.
func (s *SQLiteStore) ListDefinitions() ([]Definition, error) {
	if s.conn == nil {
		return nil, ErrStoreClosed
	}

	rows, err := s.conn.Query("SELECT Seq, Name, Source FROM Definitions ORDER BY Seq ASC;")
	if err != nil {
		return nil, fmt.Errorf("querying definitions: %w", err)
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		var def Definition
		if err := rows.Scan(&def.Seq, &def.Name, &def.Source); err != nil {
			return nil, fmt.Errorf("scanning definition row: %w", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading definition rows: %w", err)
	}

	return defs, nil
}

// Close closes the store and prevents further use.
func (s *SQLiteStore) Close() error {
	if s.conn == nil {
		return ErrStoreClosed
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
