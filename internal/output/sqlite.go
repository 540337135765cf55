package output

/*
rxsub — concurrent subdomain discovery from wordlists and Certificate Transparency logs
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/x-stp/rxsub/internal/core"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS scans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	domain TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	finished_at DATETIME,
	candidates INTEGER,
	findings INTEGER,
	interrupted BOOLEAN
);

CREATE TABLE IF NOT EXISTS findings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	scan_id INTEGER NOT NULL,
	fqdn TEXT NOT NULL,
	source TEXT,
	record_type TEXT,
	addresses TEXT,
	url TEXT,
	status_code INTEGER,
	title TEXT,
	server TEXT,
	response_time_ms REAL,
	discovered_at DATETIME,
	FOREIGN KEY (scan_id) REFERENCES scans(id)
);

CREATE INDEX IF NOT EXISTS idx_findings_fqdn ON findings(fqdn);
`

// SQLiteSink keeps scan history: one scans row per run and one findings row per finding.
type SQLiteSink struct {
	mu     sync.Mutex
	db     *sql.DB
	scanID int64
}

// NewSQLiteSink opens (or creates) the database at path and ensures the schema.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	// One writer connection; sqlite serializes writes anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sqlite schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// ScanID returns the row id of the current scan, 0 before WriteHeader.
func (s *SQLiteSink) ScanID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanID
}

func (s *SQLiteSink) WriteHeader(info ScanInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`INSERT INTO scans (domain, started_at, candidates) VALUES (?, ?, ?)`,
		info.Domain, info.StartedAt.UTC(), info.Candidates)
	if err != nil {
		return fmt.Errorf("inserting scan: %w", err)
	}
	s.scanID, err = res.LastInsertId()
	return err
}

func (s *SQLiteSink) WriteFinding(f core.Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanID == 0 {
		return fmt.Errorf("sqlite sink: finding %s written before header", f.FQDN())
	}

	var (
		url, title, server sql.NullString
		status             sql.NullInt64
		rtt                sql.NullFloat64
	)
	if p := f.Probe; p != nil {
		url = sql.NullString{String: p.URL, Valid: true}
		title = sql.NullString{String: p.Title, Valid: true}
		server = sql.NullString{String: p.Server, Valid: true}
		status = sql.NullInt64{Int64: int64(p.StatusCode), Valid: true}
		rtt = sql.NullFloat64{Float64: p.ResponseTimeMs, Valid: true}
	}
	_, err := s.db.Exec(`INSERT INTO findings
		(scan_id, fqdn, source, record_type, addresses, url, status_code, title, server, response_time_ms, discovered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.scanID, f.FQDN(), string(f.Source), string(f.Resolved.RecordType),
		strings.Join(f.Resolved.Addresses, ","), url, status, title, server, rtt, f.DiscoveredAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting finding %s: %w", f.FQDN(), err)
	}
	return nil
}

func (s *SQLiteSink) WriteFooter(sum Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanID == 0 {
		return nil
	}
	_, err := s.db.Exec(`UPDATE scans SET finished_at = ?, findings = ?, interrupted = ? WHERE id = ?`,
		time.Now().UTC(), sum.Findings, sum.Interrupted, s.scanID)
	if err != nil {
		return fmt.Errorf("updating scan %d: %w", s.scanID, err)
	}
	return nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
