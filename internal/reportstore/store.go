// Package reportstore persists final analysis reports to SQLite so repeated
// runs of the CLI accumulate a browsable history.
package reportstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nivhenn/property-agency/internal/crew"
)

// ErrNotFound is returned when a report ID has no row.
var ErrNotFound = errors.New("report not found")

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	report_id     TEXT PRIMARY KEY,
	listing_id    TEXT NOT NULL DEFAULT '',
	address       TEXT NOT NULL DEFAULT '',
	ask_price     REAL NOT NULL DEFAULT 0,
	overall_score INTEGER NOT NULL DEFAULT 0,
	confidence    TEXT NOT NULL DEFAULT '',
	summary       TEXT NOT NULL DEFAULT '',
	memo_markdown TEXT NOT NULL DEFAULT '',
	payload       TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_listing ON reports (listing_id);
CREATE INDEX IF NOT EXISTS idx_reports_created ON reports (created_at);
`

// Store is a write-through report archive. Scalar columns carry the fields
// used for listing and filtering; the payload column keeps the full report
// JSON so nothing is lost between schema revisions.
type Store struct {
	db *sqlx.DB
}

func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create report dir: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Save(report crew.FinalReport) error {
	if report.ReportID == "" {
		return errors.New("report ID must be set")
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = s.db.Exec(`INSERT OR REPLACE INTO reports
		(report_id, listing_id, address, ask_price, overall_score, confidence, summary, memo_markdown, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ReportID,
		report.ListingID,
		report.Address,
		report.AskPrice,
		report.Scores.Overall,
		report.Confidence,
		report.Summary,
		report.MemoMarkdown,
		string(payload),
		report.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *Store) Get(reportID string) (crew.FinalReport, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM reports WHERE report_id = ?`, reportID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return crew.FinalReport{}, ErrNotFound
		}
		return crew.FinalReport{}, err
	}

	var report crew.FinalReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return crew.FinalReport{}, fmt.Errorf("decode report %s: %w", reportID, err)
	}
	return report, nil
}

// Summary is the compact row returned by List.
type Summary struct {
	ReportID     string    `json:"report_id"`
	ListingID    string    `json:"listing_id"`
	Address      string    `json:"address"`
	AskPrice     float64   `json:"ask_price"`
	OverallScore int       `json:"overall_score"`
	Confidence   string    `json:"confidence"`
	CreatedAt    time.Time `json:"created_at"`
}

// List returns report summaries newest first, capped at limit.
func (s *Store) List(limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT report_id, listing_id, address, ask_price, overall_score, confidence, created_at
		FROM reports ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		var createdAt string
		if err := rows.Scan(&sum.ReportID, &sum.ListingID, &sum.Address, &sum.AskPrice,
			&sum.OverallScore, &sum.Confidence, &createdAt); err != nil {
			return nil, err
		}
		sum.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// ListByListing returns all reports for one listing, newest first.
func (s *Store) ListByListing(listingID string) ([]crew.FinalReport, error) {
	rows, err := s.db.Query(`SELECT payload FROM reports WHERE listing_id = ? ORDER BY created_at DESC`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []crew.FinalReport
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var report crew.FinalReport
		if err := json.Unmarshal([]byte(payload), &report); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}
