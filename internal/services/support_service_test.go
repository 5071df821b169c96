package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/learning-service/internal/events"
	"github.com/SAP-F-2025/learning-service/internal/models"
)

type supportFixture struct {
	*fixture
	svc     SupportService
	student *models.User
	other   *models.User
	agent   *models.User
	admin   *models.User
	ticket  *models.SupportTicket
}

func newSupportFixture(t *testing.T) *supportFixture {
	f := newFixture(t)
	sf := &supportFixture{
		fixture: f,
		svc:     f.support(),
		student: f.user("student", models.RoleStudent),
		other:   f.user("other", models.RoleStudent),
		agent:   f.user("agent", models.RoleSupport),
		admin:   f.user("admin", models.RoleAdmin),
	}
	sf.ticket = &models.SupportTicket{StudentID: sf.student.ID, Status: models.TicketOpen}
	f.create(sf.ticket)
	return sf
}

func (sf *supportFixture) status(ticketID uint) models.TicketStatus {
	sf.t.Helper()
	ticket, err := sf.repo.Ticket().GetByID(context.Background(), nil, ticketID)
	if err != nil {
		sf.t.Fatalf("failed to load ticket: %v", err)
	}
	return ticket.Status
}

func TestSupportService_Ownership(t *testing.T) {
	ctx := context.Background()
	sf := newSupportFixture(t)

	tests := []struct {
		name string
		user *models.User
		want error
	}{
		{"owner", sf.student, nil},
		{"support", sf.agent, nil},
		{"admin", sf.admin, nil},
		{"another student", sf.other, ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sf.svc.AuthorizeTicket(ctx, tt.user, sf.ticket.ID)
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("send to a foreign ticket", func(t *testing.T) {
		_, err := sf.svc.SendMessage(ctx, sf.other, &SendMessageRequest{TicketID: sf.ticket.ID, Message: "hi"})
		if !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("expected permission denied, got %v", err)
		}
		if n := sf.countRows(&models.SupportMessage{}, "ticket_id = ?", sf.ticket.ID); n != 0 {
			t.Errorf("expected no messages, got %d", n)
		}
	})

	t.Run("unknown ticket", func(t *testing.T) {
		_, err := sf.svc.AuthorizeTicket(ctx, sf.student, 999)
		if !errors.Is(err, ErrTicketNotFound) {
			t.Fatalf("expected ticket not found, got %v", err)
		}
	})
}

func TestSupportService_SendMessage(t *testing.T) {
	ctx := context.Background()
	sf := newSupportFixture(t)

	res, err := sf.svc.SendMessage(ctx, sf.student, &SendMessageRequest{TicketID: sf.ticket.ID, Message: "help"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if res.StatusChanged || res.Ticket.Status != models.TicketOpen {
		t.Errorf("student message must not change status: %+v", res)
	}
	if res.Message.SenderRole != models.RoleStudent || res.Message.ID == 0 {
		t.Errorf("unexpected message: %+v", res.Message)
	}
	if !res.Ticket.UpdatedAt.Equal(res.Message.CreatedAt) {
		t.Errorf("ticket updated_at %v, want message time %v", res.Ticket.UpdatedAt, res.Message.CreatedAt)
	}

	room := TicketRoom(sf.ticket.ID)
	if got := sf.hub.find(room, EventNewMessage); len(got) != 1 || got[0].Except != "" {
		t.Errorf("expected new_message to the whole room, got %+v", got)
	}
	if got := sf.hub.find(UserRoom(sf.student.ID), EventTicketsUpdated); len(got) != 1 {
		t.Errorf("expected tickets_updated for the student, got %d", len(got))
	}
	if got := sf.hub.find(UserRoom(sf.agent.ID), EventInboxUpdated); len(got) != 1 {
		t.Errorf("expected inbox_updated for the agent, got %d", len(got))
	}
	if got := sf.hub.find(UserRoom(sf.admin.ID), EventInboxUpdated); len(got) != 0 {
		t.Errorf("admin is not a support agent, got %d pushes", len(got))
	}

	t.Run("first support reply flips status once", func(t *testing.T) {
		first, err := sf.svc.SendMessage(ctx, sf.agent, &SendMessageRequest{TicketID: sf.ticket.ID, Message: "on it"})
		if err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
		if !first.StatusChanged || first.Ticket.Status != models.TicketInProgress {
			t.Errorf("expected IN_PROGRESS, got %+v", first)
		}

		second, err := sf.svc.SendMessage(ctx, sf.agent, &SendMessageRequest{TicketID: sf.ticket.ID, Message: "still on it"})
		if err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
		if second.StatusChanged || second.Ticket.Status != models.TicketInProgress {
			t.Errorf("status must change only once: %+v", second)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		blank := "  "
		_, err := sf.svc.SendMessage(ctx, sf.student, &SendMessageRequest{TicketID: sf.ticket.ID, Message: " ", FilePath: &blank})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected invalid input, got %v", err)
		}
	})

	t.Run("attachment only", func(t *testing.T) {
		path := "uploads/screen.png"
		res, err := sf.svc.SendMessage(ctx, sf.student, &SendMessageRequest{TicketID: sf.ticket.ID, FilePath: &path})
		if err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
		if res.Message.FilePath == nil || *res.Message.FilePath != path {
			t.Errorf("unexpected file path: %v", res.Message.FilePath)
		}
	})

	if got := len(sf.publisher.EventsOfType(events.MessageSent)); got != 4 {
		t.Errorf("expected 4 message events, got %d", got)
	}
}

func TestSupportService_ClosedTicket(t *testing.T) {
	ctx := context.Background()
	sf := newSupportFixture(t)

	t.Run("only support closes", func(t *testing.T) {
		for _, user := range []*models.User{sf.student, sf.admin} {
			if _, err := sf.svc.CloseTicket(ctx, user, sf.ticket.ID); !errors.Is(err, ErrPermissionDenied) {
				t.Errorf("%s: expected permission denied, got %v", user.Role, err)
			}
		}
	})

	closed, err := sf.svc.CloseTicket(ctx, sf.agent, sf.ticket.ID)
	if err != nil {
		t.Fatalf("CloseTicket failed: %v", err)
	}
	if closed.Status != models.TicketClosed {
		t.Fatalf("status = %s", closed.Status)
	}
	if got := sf.hub.find(TicketRoom(sf.ticket.ID), EventTicketClosed); len(got) != 1 {
		t.Errorf("expected ticket_closed broadcast, got %d", len(got))
	}

	t.Run("closing again succeeds", func(t *testing.T) {
		if _, err := sf.svc.CloseTicket(ctx, sf.agent, sf.ticket.ID); err != nil {
			t.Fatalf("second close failed: %v", err)
		}
	})

	sf.hub.reset()
	for _, user := range []*models.User{sf.student, sf.agent} {
		_, err := sf.svc.SendMessage(ctx, user, &SendMessageRequest{TicketID: sf.ticket.ID, Message: "hello?"})
		if !errors.Is(err, ErrConflict) {
			t.Errorf("%s: expected conflict, got %v", user.Role, err)
		}
	}
	if n := sf.countRows(&models.SupportMessage{}, "ticket_id = ?", sf.ticket.ID); n != 0 {
		t.Errorf("closed ticket persisted %d messages", n)
	}
	if len(sf.hub.emitted) != 0 {
		t.Errorf("failed sends broadcast %d events", len(sf.hub.emitted))
	}
	if sf.status(sf.ticket.ID) != models.TicketClosed {
		t.Errorf("closed ticket left CLOSED")
	}
}

func TestSupportService_MarkAsRead(t *testing.T) {
	ctx := context.Background()
	sf := newSupportFixture(t)

	for _, step := range []struct {
		user *models.User
		text string
	}{
		{sf.student, "q1"},
		{sf.student, "q2"},
		{sf.agent, "a1"},
	} {
		if _, err := sf.svc.SendMessage(ctx, step.user, &SendMessageRequest{TicketID: sf.ticket.ID, Message: step.text}); err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
	}

	res, err := sf.svc.MarkAsRead(ctx, sf.student, sf.ticket.ID)
	if err != nil {
		t.Fatalf("MarkAsRead failed: %v", err)
	}
	if res.Updated != 1 || res.ByRole != models.RoleStudent {
		t.Errorf("unexpected result: %+v", res)
	}

	messages, err := sf.svc.ListMessages(ctx, sf.student, sf.ticket.ID)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	for _, m := range messages {
		wantRead := m.SenderRole != models.RoleStudent
		if m.IsRead != wantRead {
			t.Errorf("message %q is_read = %v, want %v", m.Message, m.IsRead, wantRead)
		}
	}

	sf.hub.reset()
	res, err = sf.svc.MarkAsRead(ctx, sf.agent, sf.ticket.ID)
	if err != nil || res.Updated != 2 {
		t.Fatalf("support mark as read: %+v, %v", res, err)
	}
	if got := sf.hub.find(UserRoom(sf.agent.ID), EventInboxUpdated); len(got) != 1 {
		t.Errorf("expected support inbox refresh, got %d", len(got))
	}
	if got := sf.hub.find(UserRoom(sf.student.ID), EventTicketsUpdated); len(got) != 0 {
		t.Errorf("support read must not refresh the student list, got %d", len(got))
	}
}

func TestSupportService_EditDelete(t *testing.T) {
	ctx := context.Background()
	sf := newSupportFixture(t)

	sent, err := sf.svc.SendMessage(ctx, sf.student, &SendMessageRequest{TicketID: sf.ticket.ID, Message: "typo"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	id := sent.Message.ID

	for _, user := range []*models.User{sf.agent, sf.admin, sf.other} {
		if _, err := sf.svc.EditMessage(ctx, user, &EditMessageRequest{MessageID: id, Message: "hijack"}); !errors.Is(err, ErrPermissionDenied) {
			t.Errorf("edit by %s: expected permission denied, got %v", user.Username, err)
		}
		if _, err := sf.svc.DeleteMessage(ctx, user, id); !errors.Is(err, ErrPermissionDenied) {
			t.Errorf("delete by %s: expected permission denied, got %v", user.Username, err)
		}
	}

	edited, err := sf.svc.EditMessage(ctx, sf.student, &EditMessageRequest{MessageID: id, Message: "fixed"})
	if err != nil {
		t.Fatalf("EditMessage failed: %v", err)
	}
	if edited.Message != "fixed" || !edited.IsEdited {
		t.Errorf("unexpected edit: %+v", edited)
	}
	if got := sf.hub.find(TicketRoom(sf.ticket.ID), EventMessageEdited); len(got) != 1 {
		t.Errorf("expected message_edited, got %d", len(got))
	}

	if _, err := sf.svc.DeleteMessage(ctx, sf.student, id); err != nil {
		t.Fatalf("DeleteMessage failed: %v", err)
	}
	if got := sf.hub.find(TicketRoom(sf.ticket.ID), EventMessageDeleted); len(got) != 1 {
		t.Errorf("expected message_deleted, got %d", len(got))
	}
	if _, err := sf.svc.DeleteMessage(ctx, sf.student, id); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("expected message not found, got %v", err)
	}
}

func TestSupportService_CreateTicketJoinsOriginBeforeBroadcast(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		origin   string
		wantJoin bool
	}{
		{name: "websocket creator", origin: "conn-1", wantJoin: true},
		{name: "http creator", origin: "", wantJoin: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			student := f.user("newbie", models.RoleStudent)

			result, err := f.support().CreateTicket(ctx, student, &CreateTicketRequest{Message: "hello"}, tt.origin)
			if err != nil {
				t.Fatalf("CreateTicket failed: %v", err)
			}

			room := TicketRoom(result.Ticket.ID)
			joinAt, emitAt := -1, -1
			for i, e := range f.hub.emitted {
				if e.Room != room {
					continue
				}
				switch {
				case e.Event == joinEvent && joinAt < 0:
					joinAt = i
					if e.Except != tt.origin {
						t.Errorf("joined %q, want %q", e.Except, tt.origin)
					}
				case e.Event == EventNewMessage && emitAt < 0:
					emitAt = i
				}
			}

			if emitAt < 0 {
				t.Fatal("first message was not broadcast")
			}
			if got := joinAt >= 0; got != tt.wantJoin {
				t.Fatalf("joined = %v, want %v", got, tt.wantJoin)
			}
			if tt.wantJoin && joinAt > emitAt {
				t.Errorf("join at %d after broadcast at %d", joinAt, emitAt)
			}
		})
	}
}

func TestSupportService_CreateTicketConcurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewSupportService(f.repo, f.logger, f.validator, f.publisher, NoopBroadcaster(), testLocation)
	student := f.user("eager", models.RoleStudent)

	const n = 8
	results := make([]*CreateTicketResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.CreateTicket(ctx, student, &CreateTicketRequest{Message: "help"}, "")
		}(i)
	}
	wg.Wait()

	created := 0
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("CreateTicket %d failed: %v", i, errs[i])
		}
		if !results[i].Reused {
			created++
		}
		if results[i].Ticket.ID != results[0].Ticket.ID {
			t.Errorf("create %d got ticket %d, want %d", i, results[i].Ticket.ID, results[0].Ticket.ID)
		}
	}
	if created != 1 {
		t.Errorf("created %d tickets, want 1", created)
	}
	if got := f.countRows(&models.SupportTicket{}, "student_id = ?", student.ID); got != 1 {
		t.Errorf("ticket rows = %d, want 1", got)
	}
	if got := f.countRows(&models.SupportMessage{}, "sender_id = ?", student.ID); got != n {
		t.Errorf("message rows = %d, want %d", got, n)
	}
}

func TestSupportService_CreateTicket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.support()
	student := f.user("newbie", models.RoleStudent)
	agent := f.user("agent", models.RoleSupport)

	if _, err := svc.CreateTicket(ctx, agent, &CreateTicketRequest{Message: "hi"}, ""); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied for support, got %v", err)
	}

	first, err := svc.CreateTicket(ctx, student, &CreateTicketRequest{Message: "first"}, "")
	if err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}
	if first.Reused || first.Ticket.Status != models.TicketOpen {
		t.Errorf("unexpected first ticket: %+v", first)
	}

	second, err := svc.CreateTicket(ctx, student, &CreateTicketRequest{Message: "second"}, "")
	if err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}
	if !second.Reused || second.Ticket.ID != first.Ticket.ID {
		t.Errorf("expected reuse of ticket %d, got %+v", first.Ticket.ID, second)
	}

	if _, err := svc.CloseTicket(ctx, agent, first.Ticket.ID); err != nil {
		t.Fatalf("CloseTicket failed: %v", err)
	}

	third, err := svc.CreateTicket(ctx, student, &CreateTicketRequest{Message: "third"}, "")
	if err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}
	if third.Reused || third.Ticket.ID == first.Ticket.ID {
		t.Errorf("closed ticket must not be reused: %+v", third)
	}

	if got := len(f.publisher.EventsOfType(events.TicketCreated)); got != 2 {
		t.Errorf("expected 2 ticket created events, got %d", got)
	}

	tickets, err := svc.StudentTickets(ctx, student)
	if err != nil {
		t.Fatalf("StudentTickets failed: %v", err)
	}
	if len(tickets) != 2 || tickets[0].ID != third.Ticket.ID {
		t.Errorf("unexpected student tickets: %+v", tickets)
	}
}

func TestSupportService_InboxOrdering(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.support()
	student := f.user("student", models.RoleStudent)
	agent := f.user("agent", models.RoleSupport)

	base := time.Date(2025, 1, 1, 9, 0, 0, 0, testLocation)
	at := func(minutes int) time.Time { return base.Add(time.Duration(minutes) * time.Minute) }

	t1 := &models.SupportTicket{StudentID: student.ID, Status: models.TicketOpen, CreatedAt: at(0), UpdatedAt: at(0)}
	t2 := &models.SupportTicket{StudentID: student.ID, Status: models.TicketOpen, CreatedAt: at(0), UpdatedAt: at(0)}
	t3 := &models.SupportTicket{StudentID: student.ID, Status: models.TicketOpen, CreatedAt: at(1), UpdatedAt: at(1)}
	f.create(t1)
	f.create(t2)
	f.create(t3)

	f.create(&models.SupportMessage{TicketID: t1.ID, SenderID: student.ID, SenderRole: models.RoleStudent, Message: "t1", CreatedAt: at(5), UpdatedAt: at(5)})
	f.create(&models.SupportMessage{TicketID: t2.ID, SenderID: student.ID, SenderRole: models.RoleStudent, Message: "t2", CreatedAt: at(10), UpdatedAt: at(10)})
	f.create(&models.SupportMessage{TicketID: t2.ID, SenderID: agent.ID, SenderRole: models.RoleSupport, Message: "reply", CreatedAt: at(10), UpdatedAt: at(10)})

	inbox, err := svc.SupportInbox(ctx, agent)
	if err != nil {
		t.Fatalf("SupportInbox failed: %v", err)
	}

	want := []uint{t2.ID, t1.ID, t3.ID}
	if len(inbox) != len(want) {
		t.Fatalf("expected %d tickets, got %d", len(want), len(inbox))
	}
	for i, id := range want {
		if inbox[i].ID != id {
			t.Errorf("inbox[%d] = ticket %d, want %d", i, inbox[i].ID, id)
		}
	}

	if inbox[0].UnreadCount != 1 || inbox[0].LastMessage.Message != "reply" {
		t.Errorf("unexpected t2 summary: %+v", inbox[0])
	}
	if inbox[0].Student == nil || inbox[0].Student.Username != "student" {
		t.Errorf("support inbox must carry the student profile: %+v", inbox[0].Student)
	}
	if inbox[2].LastMessage != nil || inbox[2].UnreadCount != 0 {
		t.Errorf("unexpected t3 summary: %+v", inbox[2])
	}

	studentView, err := svc.StudentTickets(ctx, student)
	if err != nil {
		t.Fatalf("StudentTickets failed: %v", err)
	}
	if studentView[0].ID != t2.ID || studentView[0].UnreadCount != 1 || studentView[0].Student != nil {
		t.Errorf("unexpected student view: %+v", studentView[0])
	}

	if _, err := svc.SupportInbox(ctx, student); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected permission denied for a student, got %v", err)
	}
}

func TestSupportService_Typing(t *testing.T) {
	ctx := context.Background()
	sf := newSupportFixture(t)

	if err := sf.svc.Typing(ctx, sf.student, sf.ticket.ID, "conn-1", false); err != nil {
		t.Fatalf("Typing failed: %v", err)
	}
	if err := sf.svc.Typing(ctx, sf.student, sf.ticket.ID, "conn-1", true); err != nil {
		t.Fatalf("StopTyping failed: %v", err)
	}

	room := TicketRoom(sf.ticket.ID)
	for _, event := range []string{EventUserTyping, EventUserStopTyping} {
		got := sf.hub.find(room, event)
		if len(got) != 1 || got[0].Except != "conn-1" {
			t.Errorf("%s: expected one emission excluding conn-1, got %+v", event, got)
		}
	}

	if err := sf.svc.Typing(ctx, sf.other, sf.ticket.ID, "conn-2", false); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected permission denied, got %v", err)
	}
}
