package event

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeLogin         = "user_login"
	EventTypePostView      = "post_view"
	EventTypePostCreate    = "post_create"
	EventTypePostLike      = "post_like"
	EventTypeCommentCreate = "comment_create"
	EventTypeSearch        = "search_performed"
	EventTypeRegister      = "user_register"
)

var knownEventTypes = map[string]struct{}{
	EventTypeLogin:         {},
	EventTypePostView:      {},
	EventTypePostCreate:    {},
	EventTypePostLike:      {},
	EventTypeCommentCreate: {},
	EventTypeSearch:        {},
	EventTypeRegister:      {},
}

// ActiveEventTypes is the canonical definition of "active" used by
// retention queries. Kept here as the single source of truth rather than
// re-derived per query.
var ActiveEventTypes = []string{EventTypeLogin, EventTypePostView, EventTypePostCreate}

// Metadata is the closed set of optional auxiliary fields stored with an
// event. Only IPHash is considered sensitive; it is derived server-side
// and never accepted from the client.
type Metadata struct {
	Device   string `json:"device,omitempty"`
	IPHash   string `json:"ipHash,omitempty"`
	Referrer string `json:"referrer,omitempty"`
	Path     string `json:"path,omitempty"`
	Query    string `json:"query,omitempty"`
}

func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *Metadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into Metadata", src)
	}
}

// Event is an immutable raw record. CreatedAt is assigned by the
// ingestion coordinator; client-supplied timestamps are discarded.
type Event struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	EventType string     `db:"event_type" json:"event"`
	UserID    *uuid.UUID `db:"user_id" json:"userId,omitempty"`
	PostID    *string    `db:"post_id" json:"postId,omitempty"`
	SessionID string     `db:"session_id" json:"sessionId"`
	Metadata  Metadata   `db:"metadata" json:"metadata"`
	CreatedAt time.Time  `db:"created_at" json:"timestamp"`
}

func KnownEventType(eventType string) bool {
	_, ok := knownEventTypes[eventType]
	return ok
}

// RequiresPostID reports whether the event type is post- or
// comment-scoped and therefore must carry a postId.
func RequiresPostID(eventType string) bool {
	return strings.HasPrefix(eventType, "post_") || strings.HasPrefix(eventType, "comment_")
}

func (e *Event) Validate() error {
	if !KnownEventType(e.EventType) {
		return ErrInvalidEventType
	}
	if e.SessionID == "" {
		return ErrMissingSessionID
	}
	if RequiresPostID(e.EventType) && (e.PostID == nil || *e.PostID == "") {
		return ErrMissingPostID
	}
	return nil
}
