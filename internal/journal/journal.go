// internal/journal/journal.go
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Journal records run and stage history in a sqlite file inside the output
// folder. A nil *Journal is a usable no-op, which keeps orchestration free
// of conditionals when journaling is unavailable.
type Journal struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	argv       TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	ended_at   TIMESTAMP,
	status     TEXT NOT NULL DEFAULT 'running',
	error      TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS stages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	name       TEXT NOT NULL,
	command    TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	ended_at   TIMESTAMP,
	exit_code  INTEGER,
	status     TEXT NOT NULL DEFAULT 'running'
);`

// Open creates or reopens the journal file and ensures the schema.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}

// BeginRun records a new run row.
func (j *Journal) BeginRun(id, argv string) error {
	if j == nil {
		return nil
	}
	_, err := j.db.Exec(
		`INSERT INTO runs (id, argv, started_at) VALUES (?, ?, ?)`,
		id, argv, time.Now(),
	)
	return err
}

// EndRun closes the run row with a final status.
func (j *Journal) EndRun(id, status, errMsg string) error {
	if j == nil {
		return nil
	}
	_, err := j.db.Exec(
		`UPDATE runs SET ended_at = ?, status = ?, error = ? WHERE id = ?`,
		time.Now(), status, errMsg, id,
	)
	return err
}

// BeginStage records a stage start and returns its row id.
func (j *Journal) BeginStage(runID, name, command string) (int64, error) {
	if j == nil {
		return 0, nil
	}
	res, err := j.db.Exec(
		`INSERT INTO stages (run_id, name, command, started_at) VALUES (?, ?, ?, ?)`,
		runID, name, command, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// EndStage closes a stage row.
func (j *Journal) EndStage(id int64, exitCode int, status string) error {
	if j == nil {
		return nil
	}
	_, err := j.db.Exec(
		`UPDATE stages SET ended_at = ?, exit_code = ?, status = ? WHERE id = ?`,
		time.Now(), exitCode, status, id,
	)
	return err
}
