package contest

// Participant is a registered contestant as known to the system of record.
// Username and Email are display data copied into leaderboard rows.
type Participant struct {
	UserID   string
	Username string
	Email    string
}

// Problem is one contest problem. Key is the short column label ("A", "B")
// and stays stable for the lifetime of the contest.
type Problem struct {
	ID  string
	Key string
}

// Roster is the authoritative participant and problem set for a contest.
type Roster struct {
	ContestID    string
	Participants []Participant
	Problems     []Problem
}
