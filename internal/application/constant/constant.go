package constant

// Attribute keys for structured log records.
const (
	Error        = "error"
	UserID       = "user_id"
	RoomID       = "room_id"
	ConnectionID = "connection_id"
	InterviewID  = "interview_id"
	State        = "state"
	EventType    = "event_type"
)
