// Package storage persists consolidated scan results for downstream audit
// and history. The engine itself does not depend on it for correctness.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/repo-health-scanner/pkg/orchestrator"
)

// ScanRecord identifies one persisted consolidation.
type ScanRecord struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Name      string    `json:"name"`
	Ref       string    `json:"ref"`
	CommitSHA string    `json:"commit_sha"`
	Status    string    `json:"status"`
	ScannedAt time.Time `json:"scanned_at"`
}

// Store is the durable-storage interface consumed by the scan service.
type Store interface {
	Close() error
	SaveScan(rec ScanRecord, result *orchestrator.Result) error
	GetScan(id string) (ScanRecord, *orchestrator.Result, error)
	ListRecent(owner, name string, limit int) ([]ScanRecord, error)
}

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		ref TEXT NOT NULL,
		commit_sha TEXT NOT NULL,
		status TEXT NOT NULL,
		scanned_at DATETIME NOT NULL,
		result TEXT,
		total_vulnerabilities INTEGER NOT NULL DEFAULT 0,
		unique_packages_affected INTEGER NOT NULL DEFAULT 0,
		critical_count INTEGER NOT NULL DEFAULT 0,
		high_count INTEGER NOT NULL DEFAULT 0,
		moderate_count INTEGER NOT NULL DEFAULT 0,
		low_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS scan_vulnerabilities (
		scan_id TEXT NOT NULL REFERENCES scans(id),
		package_name TEXT NOT NULL,
		package_version TEXT NOT NULL,
		ecosystem TEXT NOT NULL,
		vulnerability_id TEXT NOT NULL,
		cve_id TEXT,
		severity TEXT NOT NULL,
		cvss_score REAL,
		summary TEXT,
		published_at DATETIME,
		fixed_version TEXT,
		source TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scans_repo ON scans(owner, name, scanned_at);
	CREATE INDEX IF NOT EXISTS idx_scan_vulns ON scan_vulnerabilities(scan_id);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveScan writes the scan record, the full result snapshot, and one
// normalized row per deduplicated vulnerability, atomically.
func (s *SQLiteStore) SaveScan(rec ScanRecord, result *orchestrator.Result) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var blob []byte
	var total, unique, critical, high, moderate, low int
	if result != nil {
		blob, err = json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		vs := result.Metrics.VulnerabilityStats
		total = vs.TotalVulnerabilities
		unique = vs.UniquePackagesAffected
		critical = vs.BySeverity.Critical
		high = vs.BySeverity.High
		moderate = vs.BySeverity.Moderate
		low = vs.BySeverity.Low
	}

	_, err = tx.Exec(`INSERT INTO scans
		(id, owner, name, ref, commit_sha, status, scanned_at, result,
		 total_vulnerabilities, unique_packages_affected,
		 critical_count, high_count, moderate_count, low_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Owner, rec.Name, rec.Ref, rec.CommitSHA, rec.Status, rec.ScannedAt,
		string(blob), total, unique, critical, high, moderate, low)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}

	if result != nil {
		insert, err := tx.Prepare(`INSERT INTO scan_vulnerabilities
			(scan_id, package_name, package_version, ecosystem, vulnerability_id,
			 cve_id, severity, cvss_score, summary, published_at, fixed_version, source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer insert.Close()

		for _, v := range result.Vulnerabilities {
			var score interface{}
			if v.CVSSScore != nil {
				score = *v.CVSSScore
			}
			var published interface{}
			if v.PublishedAt != nil {
				published = *v.PublishedAt
			}
			if _, err := insert.Exec(rec.ID, v.PackageName, v.PackageVersion, v.Ecosystem,
				v.ID, v.CVE, string(v.Severity), score, v.Summary, published, v.FixedVersion, v.Source); err != nil {
				return fmt.Errorf("insert vulnerability row: %w", err)
			}
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetScan(id string) (ScanRecord, *orchestrator.Result, error) {
	var rec ScanRecord
	var blob sql.NullString
	err := s.db.QueryRow(`SELECT id, owner, name, ref, commit_sha, status, scanned_at, result
		FROM scans WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Owner, &rec.Name, &rec.Ref, &rec.CommitSHA, &rec.Status, &rec.ScannedAt, &blob)
	if err != nil {
		return ScanRecord{}, nil, err
	}

	var result *orchestrator.Result
	if blob.Valid && blob.String != "" {
		result = &orchestrator.Result{}
		if err := json.Unmarshal([]byte(blob.String), result); err != nil {
			return rec, nil, fmt.Errorf("unmarshal stored result: %w", err)
		}
	}
	return rec, result, nil
}

func (s *SQLiteStore) ListRecent(owner, name string, limit int) ([]ScanRecord, error) {
	rows, err := s.db.Query(`SELECT id, owner, name, ref, commit_sha, status, scanned_at
		FROM scans WHERE owner = ? AND name = ?
		ORDER BY scanned_at DESC LIMIT ?`, owner, name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ScanRecord
	for rows.Next() {
		var rec ScanRecord
		if err := rows.Scan(&rec.ID, &rec.Owner, &rec.Name, &rec.Ref, &rec.CommitSHA, &rec.Status, &rec.ScannedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
