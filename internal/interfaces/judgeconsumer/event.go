package judgeconsumer

import (
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
)

// SubmissionJudgedEvent is published by the judge once a submission has a
// final verdict. ContestID is empty for practice submissions.
type SubmissionJudgedEvent struct {
	SubmissionID string    `json:"submissionId"`
	UserID       string    `json:"userId"`
	ProblemID    string    `json:"problemId"`
	ContestID    string    `json:"contestId,omitempty"`
	Verdict      string    `json:"verdict"`
	Score        float64   `json:"score"`
	Timestamp    time.Time `json:"timestamp"`
}

var errMalformedEvent = crerr.New("malformed submission judged event")

func decodeEvent(raw []byte) (SubmissionJudgedEvent, error) {
	var event SubmissionJudgedEvent
	if err := sonic.Unmarshal(raw, &event); err != nil {
		return SubmissionJudgedEvent{}, crerr.Mark(crerr.Wrap(err, "decode submission judged event"), errMalformedEvent)
	}
	event.SubmissionID = strings.TrimSpace(event.SubmissionID)
	event.UserID = strings.TrimSpace(event.UserID)
	event.ProblemID = strings.TrimSpace(event.ProblemID)
	event.ContestID = strings.TrimSpace(event.ContestID)
	return event, nil
}

// counts reports whether the event should reach the leaderboard at all.
func (e SubmissionJudgedEvent) counts() bool {
	return e.ContestID != ""
}
