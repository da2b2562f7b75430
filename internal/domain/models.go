package domain

import "time"

// Stage is an immutable catalog entry grouping a contiguous level range
// under one theme. TestLevel is the ascension test gating the next stage.
type Stage struct {
	Title     string `json:"title"`
	MinLevel  int    `json:"minLevel"`
	MaxLevel  int    `json:"maxLevel"`
	TestLevel int    `json:"testLevel"`
	Style     string `json:"style"`
}

// Choice represents a possible answer for a mission question.
type Choice struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Scoring holds the points awarded for a correct answer.
type Scoring struct {
	Points int `json:"points"` // defaults to 1 if zero
}

// MissionPayload is the quiz content of a mission.
type MissionPayload struct {
	Title    string   `json:"title"`
	Question string   `json:"question"`
	Choices  []Choice `json:"choices"`
	Scoring  Scoring  `json:"scoring"`
	TimeMS   int      `json:"time_ms"`
}

// Mission is a single quiz question placed at a level. Several missions may
// share a level; they are siblings in the progression path.
type Mission struct {
	ID      string         `json:"id"`
	Level   int            `json:"level"`
	Type    string         `json:"type"`
	Payload MissionPayload `json:"payload"`
}

// AttemptResult records the outcome of a finished attempt.
type AttemptResult struct {
	Correct bool `json:"correct"`
	Score   int  `json:"score"`
}

// Attempt is one recorded engagement with a mission. It is a log entry:
// multiple attempts may exist for the same (user, mission) pair and none
// are ever deleted.
type Attempt struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	MissionID  string         `json:"missionId"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
	Result     *AttemptResult `json:"result,omitempty"`
}

// Finished reports whether a result has been recorded.
func (a Attempt) Finished() bool { return a.Result != nil }

// Friendship edge states.
const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
	FriendshipBlocked  = "blocked"
)

// FriendshipEdge is a directed request/relationship record between two
// learners. At most one edge exists per unordered pair.
type FriendshipEdge struct {
	RequesterID string `json:"requesterId"`
	ReceiverID  string `json:"receiverId"`
	Status      string `json:"status"`
}

// Relation is an edge viewed from one side, annotated with the other
// learner's username, their daily streak, and whether the viewer sent the
// original request.
type Relation struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	Status      string `json:"status"`
	IsRequester bool   `json:"isRequester"`
	Streak      int    `json:"streak"`
}

// Profile is the public identity of a learner.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Candidate is a friend-search match.
type Candidate struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Badge is a static catalog entry; membership is tracked separately.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// PlayerStats is the aggregate view shown on the profile screen.
type PlayerStats struct {
	Correct           int `json:"correct"`
	Incorrect         int `json:"incorrect"`
	MissionsCompleted int `json:"missionsCompleted"`
	XP                int `json:"xp"`
	Streak            int `json:"streak"`
	TimeInvested      int `json:"timeInvested"` // minutes
}

// BoardEntry is one leaderboard row.
type BoardEntry struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	XP       int    `json:"xp"`
}

// Board is the ordered XP scoreboard.
type Board struct {
	Entries   []BoardEntry `json:"entries"`
	UpdatedAt time.Time    `json:"updatedAt"`
}
