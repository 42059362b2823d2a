package bus

import "time"

// Event represents a domain event published on the bus.
//
// Kinds used by the engine:
//
//	sync.completed       payload sync.CycleStats
//	sync.failed          payload the error string
//	sync.status_changed  payload status.StatusChange
//	conversation.updated payload the conversation id
//	message.upserted     payload map[string]string{"conversation_id", "message_id"}
//	message.send_failed  payload map[string]string{"local_id", "error"}
//	presence.updated     payload []string of user ids
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
