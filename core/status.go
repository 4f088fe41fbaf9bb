package core

// Status is a participant's movement status as seen by pathing.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusWalking  Status = "walking"
	StatusTalking  Status = "talking"
	StatusChatting Status = "chatting"
)

// Busy reports whether the status pins the participant in place.
func (s Status) Busy() bool { return s == StatusTalking || s == StatusChatting }

// StatusBoard is the shared movement status table. The engine writes
// StatusTalking on acquisition and StatusIdle on release; pathing reads it.
type StatusBoard interface {
	SetStatus(id string, s Status)
	Status(id string) Status
	Statuses() map[string]Status
}
