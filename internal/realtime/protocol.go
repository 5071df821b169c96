package realtime

import (
	"encoding/json"

	"github.com/SAP-F-2025/learning-service/internal/services"
)

// Inbound events
const (
	EventAuth              = "auth"
	EventJoinTicket        = "join_ticket"
	EventLeaveTicket       = "leave_ticket"
	EventSendMessage       = "send_message"
	EventEditMessage       = "edit_message"
	EventDeleteMessage     = "delete_message"
	EventMarkAsRead        = "mark_as_read"
	EventTyping            = "typing"
	EventStopTyping        = "stop_typing"
	EventCloseTicket       = "close_ticket"
	EventCreateTicket      = "create_ticket"
	EventGetSupportInbox   = "get_support_inbox"
	EventGetMessages       = "get_messages"
	EventGetStudentTickets = "get_student_tickets"
	EventJoinUserRoom      = "join_user_room"
)

// Outbound events that only go to the calling connection
const (
	EventConnected      = "connected"
	EventAck            = "ack"
	EventJoinedTicket   = "joined_ticket"
	EventJoinedUserRoom = "joined_user_room"
	EventSocketError    = "socket_error"
	EventError          = "error"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Frame is one websocket text message in either direction
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   string          `json:"ack,omitempty"`
}

type outboundFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
	Ack   string      `json:"ack,omitempty"`
}

func encodeFrame(event string, data interface{}, ack string) ([]byte, error) {
	return json.Marshal(outboundFrame{Event: event, Data: data, Ack: ack})
}

// okReply merges fields into a success acknowledgment
func okReply(fields map[string]interface{}) map[string]interface{} {
	reply := map[string]interface{}{"status": StatusOK}
	for k, v := range fields {
		reply[k] = v
	}
	return reply
}

func errorReply(err error) map[string]interface{} {
	return map[string]interface{}{
		"status":  StatusError,
		"code":    services.ErrorKind(err),
		"message": services.PublicMessage(err),
	}
}

// Payloads

type tokenPayload struct {
	Token string `json:"token"`
}

type ticketPayload struct {
	TicketID uint `json:"ticket_id"`
}

type messagePayload struct {
	MessageID uint `json:"message_id"`
}

var (
	errMalformedPayload = &services.DomainError{Kind: services.ErrInvalidInput, Message: "malformed payload"}
	errMissingTicketID  = &services.DomainError{Kind: services.ErrInvalidInput, Message: "ticket_id is required"}
	errMissingMessageID = &services.DomainError{Kind: services.ErrInvalidInput, Message: "message_id is required"}
	errUnknownEvent     = &services.DomainError{Kind: services.ErrInvalidInput, Message: "unknown event"}
	errTokenMismatch    = &services.DomainError{Kind: services.ErrAuthFailure, Message: "token does not belong to this connection"}
)

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errMalformedPayload
	}
	return nil
}

func decodeTicketID(data json.RawMessage) (uint, error) {
	var p ticketPayload
	if err := decode(data, &p); err != nil {
		return 0, err
	}
	if p.TicketID == 0 {
		return 0, errMissingTicketID
	}
	return p.TicketID, nil
}

func decodeMessageID(data json.RawMessage) (uint, error) {
	var p messagePayload
	if err := decode(data, &p); err != nil {
		return 0, err
	}
	if p.MessageID == 0 {
		return 0, errMissingMessageID
	}
	return p.MessageID, nil
}
