package syslogs

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Sync kinds
const (
	KindTransparent = "transparent"
	KindShield      = "shield"
	KindMempool     = "mempool"
	KindBroadcast   = "broadcast"
)

type SyncLog struct {
	Kind       string `json:"kind"`
	FromHeight int    `json:"from_height"`
	ToHeight   int    `json:"to_height"`
	Blocks     int    `json:"blocks"`
	TxNum      int    `json:"tx_num"`
	DurationMs int64  `json:"duration_ms"`
	Timestamp  int64  `json:"timestamp"`
}

type ErrLog struct {
	Kind         string `json:"kind"`
	Height       int    `json:"height"`
	Timestamp    int64  `json:"timestamp"`
	ErrorMessage string `json:"error_message"`
}

// Journal is a sqlite log of sync rounds and their failures.
type Journal struct {
	db *sql.DB
}

func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set SQLite to WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	j := &Journal{db: db}
	if err = j.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return j, nil
}

func (j *Journal) createTables() error {
	syncLogTable := `CREATE TABLE IF NOT EXISTS SyncLog (
		ID INTEGER PRIMARY KEY AUTOINCREMENT,
		Kind TEXT,
		FromHeight INTEGER,
		ToHeight INTEGER,
		Blocks INTEGER,
		TxNum INTEGER,
		DurationMs INTEGER,
		Timestamp INTEGER
	)`

	errLogTable := `CREATE TABLE IF NOT EXISTS ErrLog (
		ID INTEGER PRIMARY KEY AUTOINCREMENT,
		Kind TEXT,
		Height INTEGER,
		Timestamp INTEGER,
		ErrorMessage TEXT
	)`

	if _, err := j.db.Exec(syncLogTable); err != nil {
		return fmt.Errorf("failed to create SyncLog table: %w", err)
	}
	if _, err := j.db.Exec(errLogTable); err != nil {
		return fmt.Errorf("failed to create ErrLog table: %w", err)
	}
	if _, err := j.db.Exec(`CREATE INDEX IF NOT EXISTS idx_synclog_kind ON SyncLog(Kind, ToHeight);`); err != nil {
		return fmt.Errorf("failed to create index on SyncLog: %w", err)
	}
	return nil
}

func (j *Journal) InsertSyncLog(log SyncLog) error {
	query := `INSERT INTO SyncLog (Kind, FromHeight, ToHeight, Blocks, TxNum, DurationMs, Timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := j.db.Exec(query, log.Kind, log.FromHeight, log.ToHeight, log.Blocks, log.TxNum, log.DurationMs, log.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert SyncLog: %w", err)
	}
	return nil
}

func (j *Journal) InsertErrLog(log ErrLog) error {
	query := `INSERT INTO ErrLog (Kind, Height, Timestamp, ErrorMessage)
		VALUES (?, ?, ?, ?)`
	_, err := j.db.Exec(query, log.Kind, log.Height, log.Timestamp, log.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to insert ErrLog: %w", err)
	}
	return nil
}

func (j *Journal) QuerySyncLogs(kind string, limit, offset int) ([]SyncLog, error) {
	query := `SELECT Kind, FromHeight, ToHeight, Blocks, TxNum, DurationMs, Timestamp FROM SyncLog WHERE Kind = ? ORDER BY ID DESC LIMIT ? OFFSET ?`
	rows, err := j.db.Query(query, kind, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query SyncLogs: %w", err)
	}
	defer rows.Close()

	var logs []SyncLog
	for rows.Next() {
		var log SyncLog
		if err := rows.Scan(&log.Kind, &log.FromHeight, &log.ToHeight, &log.Blocks, &log.TxNum, &log.DurationMs, &log.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan SyncLog: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (j *Journal) QueryErrLogs(limit, offset int) ([]ErrLog, error) {
	query := `SELECT Kind, Height, Timestamp, ErrorMessage FROM ErrLog ORDER BY ID DESC LIMIT ? OFFSET ?`
	rows, err := j.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query ErrLogs: %w", err)
	}
	defer rows.Close()

	var logs []ErrLog
	for rows.Next() {
		var log ErrLog
		if err := rows.Scan(&log.Kind, &log.Height, &log.Timestamp, &log.ErrorMessage); err != nil {
			return nil, fmt.Errorf("failed to scan ErrLog: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
