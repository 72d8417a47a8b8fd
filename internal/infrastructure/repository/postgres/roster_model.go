package postgres

import (
	"database/sql"
	"time"
)

type contestTableModel struct {
	ID        int64      `db:"id"`
	PublicID  string     `db:"public_id"`
	Name      string     `db:"name"`
	Status    string     `db:"status"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at"`
}

type contestProblemTableModel struct {
	ProblemPublicID string         `db:"problem_public_id"`
	ProblemKey      sql.NullString `db:"problem_key"`
	Position        int            `db:"position"`
}

type contestParticipantTableModel struct {
	UserPublicID string         `db:"user_public_id"`
	Username     string         `db:"username"`
	Email        sql.NullString `db:"email"`
	JoinedAt     time.Time      `db:"joined_at"`
}
