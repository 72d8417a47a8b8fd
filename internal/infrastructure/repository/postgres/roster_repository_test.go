package postgres

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
)

func TestRosterFromRows(t *testing.T) {
	t.Parallel()

	roster := rosterFromRows("C1",
		[]contestProblemTableModel{
			{ProblemPublicID: "P1", ProblemKey: sql.NullString{String: "A", Valid: true}, Position: 1},
			{ProblemPublicID: "P2", Position: 2},
		},
		[]contestParticipantTableModel{
			{UserPublicID: "U1", Username: "alice", Email: sql.NullString{String: " alice@example.com ", Valid: true}},
			{UserPublicID: "U2", Username: "bob"},
		},
	)

	if roster.ContestID != "C1" || len(roster.Problems) != 2 || len(roster.Participants) != 2 {
		t.Fatalf("unexpected roster: %+v", roster)
	}
	if roster.Problems[0].Key != "A" || roster.Problems[1].Key != "" {
		t.Fatalf("unexpected problem keys: %+v", roster.Problems)
	}
	if roster.Participants[0].Email != "alice@example.com" || roster.Participants[1].Email != "" {
		t.Fatalf("unexpected emails: %+v", roster.Participants)
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows to be not found")
	}
	if isNotFound(fakeErr("pq: relation contests does not exist")) {
		t.Fatalf("expected unrelated error to be reported")
	}
}

func TestFormatQueryForTrace(t *testing.T) {
	got := formatQueryForTrace(" SELECT   *\nFROM contests \t WHERE public_id = $1 ")
	want := "SELECT * FROM contests WHERE public_id = $1"
	if got != want {
		t.Fatalf("unexpected formatted query: %q", got)
	}

	long := formatQueryForTrace("SELECT " + strings.Repeat("x", 600))
	if len(long) != maxTracedQueryLength+3 || !strings.HasSuffix(long, "...") {
		t.Fatalf("expected truncated query, got length %d", len(long))
	}
}

func TestRosterRepository_Integration(t *testing.T) {
	dbURL := strings.TrimSpace(os.Getenv("DB_URL"))
	if dbURL == "" {
		t.Skip("DB_URL not set")
	}
	db, err := Open(dbURL, "contests")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewRosterRepository(db)
	if _, ok, err := repo.GetRoster(context.Background(), "missing-contest-id"); err != nil || ok {
		t.Fatalf("expected missing contest, ok=%v err=%v", ok, err)
	}
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }
