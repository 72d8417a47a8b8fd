package querybuilder

import "testing"

func TestSelectBuilder(t *testing.T) {
	query, args, err := Select("user_public_id", "username").
		From("contest_participants").
		Where(Eq("contest_public_id", "C1"), IsNull("deleted_at"), Eq("status", "active")).
		OrderBy("joined_at", "id").
		Limit(10).
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}

	wantQuery := "SELECT user_public_id, username FROM contest_participants WHERE contest_public_id = $1 AND deleted_at IS NULL AND status = $2 ORDER BY joined_at, id LIMIT 10"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 2 || args[0] != "C1" || args[1] != "active" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestSelectBuilder_RequiresColumnsAndTable(t *testing.T) {
	if _, _, err := Select().From("contests").ToSQL(); err == nil {
		t.Fatalf("expected error without columns")
	}
	if _, _, err := Select("*").ToSQL(); err == nil {
		t.Fatalf("expected error without table")
	}
}

func TestSelectBuilder_NoWhere(t *testing.T) {
	query, args, err := Select("*").From("contests").ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}
	if query != "SELECT * FROM contests" || len(args) != 0 {
		t.Fatalf("unexpected query %q args %+v", query, args)
	}
}
