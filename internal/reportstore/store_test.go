package reportstore

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nivhenn/property-agency/internal/crew"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReport(reportID, listingID string, overall int, created time.Time) crew.FinalReport {
	return crew.FinalReport{
		ReportID:  reportID,
		ListingID: listingID,
		Address:   "14225 Calvert St",
		AskPrice:  1699000,
		Scores: crew.AgentScores{
			Investment: 70, Location: 80, NewsSignal: 50,
			RiskReturn: 60, Construction: 75, Overall: overall,
		},
		Confidence:   "Medium",
		MemoMarkdown: "## Memo",
		Summary:      "solid deal",
		InvestmentOutput: crew.AgentOutput{
			Score: 70, Rationale: "resilient", Notes: []string{"n1"},
		},
		CreatedAt: created,
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	want := sampleReport("r-1", "L-1", 68, time.Now().UTC().Truncate(time.Millisecond))

	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get("r-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ReportID != want.ReportID || got.Scores.Overall != 68 {
		t.Fatalf("got %+v", got)
	}
	if got.InvestmentOutput.Rationale != "resilient" {
		t.Fatalf("specialist output lost: %+v", got.InvestmentOutput)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveRequiresReportID(t *testing.T) {
	s := openTestStore(t)
	if err := s.Save(crew.FinalReport{}); err == nil {
		t.Fatal("expected error for empty report ID")
	}
}

func TestListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"r-1", "r-2", "r-3"} {
		if err := s.Save(sampleReport(id, "L-1", 60+i, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	summaries, err := s.List(2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	if summaries[0].ReportID != "r-3" || summaries[1].ReportID != "r-2" {
		t.Fatalf("order = %s, %s", summaries[0].ReportID, summaries[1].ReportID)
	}
	if summaries[0].OverallScore != 62 {
		t.Fatalf("overall = %d", summaries[0].OverallScore)
	}
}

func TestListByListing(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	_ = s.Save(sampleReport("r-1", "L-1", 60, now))
	_ = s.Save(sampleReport("r-2", "L-2", 70, now.Add(time.Minute)))
	_ = s.Save(sampleReport("r-3", "L-1", 80, now.Add(2*time.Minute)))

	reports, err := s.ListByListing("L-1")
	if err != nil {
		t.Fatalf("ListByListing: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	if reports[0].ReportID != "r-3" {
		t.Fatalf("newest first expected, got %s", reports[0].ReportID)
	}
}

func TestSaveIsIdempotentPerReportID(t *testing.T) {
	s := openTestStore(t)
	report := sampleReport("r-1", "L-1", 60, time.Now().UTC())
	if err := s.Save(report); err != nil {
		t.Fatal(err)
	}
	report.Summary = "updated"
	if err := s.Save(report); err != nil {
		t.Fatal(err)
	}

	summaries, err := s.List(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 {
		t.Fatalf("got %d rows, want 1", len(summaries))
	}
	got, _ := s.Get("r-1")
	if got.Summary != "updated" {
		t.Fatalf("summary = %q", got.Summary)
	}
}
