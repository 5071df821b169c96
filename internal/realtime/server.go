package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SAP-F-2025/learning-service/internal/auth"
	"github.com/SAP-F-2025/learning-service/internal/config"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/services"
)

// Authenticator resolves an access token to an active user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// Server upgrades HTTP requests to chat connections and dispatches their frames
type Server struct {
	hub      *Hub
	auth     Authenticator
	support  services.SupportService
	cfg      config.WebSocketConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader
	routes   map[string]route
}

func NewServer(hub *Hub, authenticator Authenticator, support services.SupportService, cfg config.WebSocketConfig, logger *slog.Logger) *Server {
	s := &Server{
		hub:     hub,
		auth:    authenticator,
		support: support,
		cfg:     cfg,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from the frontend origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.routes = s.buildRoutes()
	return s
}

// handshakeToken looks for a token in the query string, then in the Authorization header
func handshakeToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return auth.BearerToken(r.Header.Get("Authorization"))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The request context is not tied to the hijacked connection
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	var user *models.User
	if token := handshakeToken(r); token != "" {
		u, err := s.auth.Authenticate(ctx, token)
		if err != nil {
			s.logger.Info("Websocket handshake rejected", "remote", r.RemoteAddr, "error", err)
			status := http.StatusUnauthorized
			if services.ErrorKind(err) == services.CodeInternal {
				status = http.StatusInternalServerError
			}
			http.Error(w, services.PublicMessage(err), status)
			return
		}
		user = u
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	var authAck string
	if user == nil {
		user, authAck, err = s.awaitAuthFrame(ctx, ws)
		if err != nil {
			s.logger.Info("Websocket auth frame rejected", "remote", r.RemoteAddr, "error", err)
			writeClose(ws, websocket.ClosePolicyViolation, services.PublicMessage(err), s.cfg.WriteTimeout)
			_ = ws.Close()
			return
		}
	}

	c := newConnection(ws, user, s.cfg, s.logger)
	s.hub.Register(c)
	defer s.hub.Unregister(c)

	go c.writePump()

	hello := map[string]interface{}{
		"status":        StatusOK,
		"connection_id": c.ID(),
		"user_id":       user.ID,
		"role":          user.Role,
	}
	if authAck != "" {
		c.reply(EventAck, hello, authAck)
	}
	c.Emit(EventConnected, hello)
	c.logger.Info("Websocket connected", "role", user.Role)

	c.readPump(func(f Frame) {
		s.dispatch(ctx, c, f)
	})
	c.logger.Info("Websocket disconnected")
}

// awaitAuthFrame reads the first frame, which must be an auth event carrying a token
func (s *Server) awaitAuthFrame(ctx context.Context, ws *websocket.Conn) (*models.User, string, error) {
	ws.SetReadLimit(s.cfg.MaxMessageBytes)
	if err := ws.SetReadDeadline(time.Now().Add(s.cfg.AuthTimeout)); err != nil {
		return nil, "", err
	}

	_, data, err := ws.ReadMessage()
	if err != nil {
		return nil, "", auth.ErrNoCredentials
	}

	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Event != EventAuth {
		return nil, "", auth.ErrNoCredentials
	}

	var payload tokenPayload
	if err := decode(frame.Data, &payload); err != nil {
		return nil, "", auth.ErrNoCredentials
	}

	user, err := s.auth.Authenticate(ctx, payload.Token)
	if err != nil {
		return nil, "", err
	}
	return user, frame.Ack, nil
}

// dispatch runs one inbound frame and answers the caller
func (s *Server) dispatch(ctx context.Context, c *Connection, f Frame) {
	result, err := s.handle(ctx, c, f)

	label := f.Event
	if _, ok := s.routes[label]; !ok {
		label = "unknown"
	}
	recordEvent(label, err)

	if err != nil {
		if services.ErrorKind(err) == services.CodeInternal {
			c.logger.Error("Websocket event failed", "event", f.Event, "error", err)
		} else {
			c.logger.Debug("Websocket event rejected", "event", f.Event, "error", err)
		}

		if f.Ack != "" {
			c.reply(EventAck, errorReply(err), f.Ack)
		} else {
			c.Emit(EventSocketError, errorReply(err))
		}

		if services.ErrorKind(err) == services.CodeAuthFailure {
			c.CloseAfterFlush(websocket.ClosePolicyViolation, services.PublicMessage(err))
		}
		return
	}

	if f.Ack != "" {
		c.reply(EventAck, okReply(result), f.Ack)
	}
}

func (s *Server) handle(ctx context.Context, c *Connection, f Frame) (map[string]interface{}, error) {
	r, ok := s.routes[f.Event]
	if !ok {
		return nil, errUnknownEvent
	}

	if err := s.checkFrameToken(ctx, c, f.Data); err != nil {
		return nil, err
	}

	if err := r.allow(c.User(), f.Event); err != nil {
		return nil, err
	}

	return r.handle(ctx, c, f.Data)
}

// checkFrameToken verifies a token carried in the payload belongs to the connection's user
func (s *Server) checkFrameToken(ctx context.Context, c *Connection, data json.RawMessage) error {
	var payload tokenPayload
	if err := decode(data, &payload); err != nil {
		return err
	}
	if payload.Token == "" {
		return nil
	}

	user, err := s.auth.Authenticate(ctx, payload.Token)
	if err != nil {
		return err
	}
	if user.ID != c.User().ID {
		return errTokenMismatch
	}
	return nil
}
