package notifications

import (
	"encoding/json"
	"time"
)

// FeedChannel is the Redis channel carrying feed events between instances.
const FeedChannel = "feed:events"

// Feed event types.
const (
	EventPostCreated         = "post_created"
	EventPostDeleted         = "post_deleted"
	EventPostReactionUpdated = "post_reaction_updated"
	EventCommentCreated      = "comment_created"
)

// Event is the JSON envelope delivered to websocket clients.
type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"ts"`
}

// Encode marshals an event of eventType carrying payload.
func Encode(eventType string, payload any) ([]byte, error) {
	return json.Marshal(Event{Type: eventType, Payload: payload, Timestamp: time.Now().UTC()})
}

// eventType extracts the type field for metrics; unknown payloads yield "unknown".
func eventType(message []byte) string {
	var head struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(message, &head) != nil || head.Type == "" {
		return "unknown"
	}
	return head.Type
}
