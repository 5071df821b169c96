package services

import "fmt"

// Outbound live events
const (
	EventNewMessage     = "new_message"
	EventMessageEdited  = "message_edited"
	EventMessageDeleted = "message_deleted"
	EventMessagesRead   = "messages_read"
	EventUserTyping     = "user_typing"
	EventUserStopTyping = "user_stop_typing"
	EventTicketClosed   = "ticket_closed"
	EventInboxUpdated   = "inbox_updated"
	EventTicketsUpdated = "tickets_updated"
)

// Broadcaster delivers events to the live connections of a room.
// Delivery is best effort and never blocks the caller on slow clients.
type Broadcaster interface {
	EmitToRoom(room, event string, data interface{}, exceptConnID string)
	// JoinConnection adds a live connection to a room. Unknown ids are ignored.
	JoinConnection(room, connID string) bool
}

func TicketRoom(ticketID uint) string {
	return fmt.Sprintf("ticket_%d", ticketID)
}

func UserRoom(userID uint) string {
	return fmt.Sprintf("user_%d", userID)
}

type noopBroadcaster struct{}

func (noopBroadcaster) EmitToRoom(string, string, interface{}, string) {}

func (noopBroadcaster) JoinConnection(string, string) bool { return false }

// NoopBroadcaster drops every event
func NoopBroadcaster() Broadcaster {
	return noopBroadcaster{}
}
