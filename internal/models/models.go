package models

import "time"

// TargetKind enumerates the entity types a Vote can attach to. The set is
// closed: validation rejects anything else before it reaches storage.
type TargetKind int16

const (
	TargetPremier TargetKind = 1
	TargetComment TargetKind = 2
)

// ParseTargetKind maps the wire name of a votable target to its kind.
func ParseTargetKind(s string) (TargetKind, bool) {
	switch s {
	case "premier":
		return TargetPremier, true
	case "comment":
		return TargetComment, true
	}
	return 0, false
}

func (k TargetKind) String() string {
	switch k {
	case TargetPremier:
		return "premier"
	case TargetComment:
		return "comment"
	}
	return "unknown"
}

type User struct {
	ID                  int64
	Email               string
	PassHash            []byte
	IsActive            bool
	IsStaff             bool
	IsSuperuser         bool
	IsRestoringPassword bool
	DateJoined          time.Time
	LastLogin           *time.Time
}

type Premier struct {
	ID            int64
	UserID        *int64
	UserEmail     string
	Name          string
	URL           string
	Description   string
	Logo          string
	IsActive      bool
	PremierAt     time.Time
	CreatedAt     time.Time
	LastUpdatedAt time.Time

	// Annotations computed by the database on list queries.
	Rating       int64
	IsFuture     bool
	TopCommentID *int64
}

type Comment struct {
	ID            int64
	UserID        int64
	PremierID     int64
	Text          string
	CreatedAt     time.Time
	LastUpdatedAt time.Time
}

type Vote struct {
	ID         int64
	UserID     int64
	TargetKind TargetKind
	TargetID   int64
	Rating     int16
	CreatedAt  time.Time
}

// EmailMessage is the payload published to the mail queue.
type EmailMessage struct {
	Subject    string            `json:"subject"`
	Template   string            `json:"template"`
	Recipients []string          `json:"recipients"`
	Context    map[string]string `json:"context"`
}
