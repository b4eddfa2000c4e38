package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
	"github.com/nandanugg/schoolbus-tracker/module/tracking/service"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPongWait     = 60 * time.Second
	maxMessageSize      = 4096
)

type connectionHub interface {
	OnConnect(connID string, role domain.Role, t service.Transport) error
	OnDisconnect(connID string)
}

type locationIngress interface {
	HandleDeviceLocation(connID string, raw []byte) bool
}

type Options struct {
	WriteTimeout time.Duration
	PongWait     time.Duration
}

type inboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// SocketHandler upgrades device and viewer connections and bridges them to the hub.
type SocketHandler struct {
	hub      connectionHub
	ingress  locationIngress
	opts     Options
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewSocketHandler(hub connectionHub, ingress locationIngress, opts Options, logger zerolog.Logger) *SocketHandler {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	return &SocketHandler{
		hub:     hub,
		ingress: ingress,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "ws").Logger(),
	}
}

func (h *SocketHandler) Register(r gin.IRoutes) {
	r.GET("/ws/device", h.ServeDevice)
	r.GET("/ws/viewer", h.ServeViewer)
}

func (h *SocketHandler) ServeDevice(c *gin.Context) {
	h.serve(c, domain.RoleDevice)
}

func (h *SocketHandler) ServeViewer(c *gin.Context) {
	h.serve(c, domain.RoleViewer)
}

func (h *SocketHandler) serve(c *gin.Context, role domain.Role) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("role", string(role)).Msg("websocket upgrade failed")
		return
	}

	connID := uuid.NewString()
	t := newTransport(conn, h.opts.WriteTimeout)
	if err := h.hub.OnConnect(connID, role, t); err != nil {
		h.logger.Error().Err(err).Str("conn_id", connID).Msg("register connection")
		_ = t.Close()
		return
	}
	defer h.hub.OnDisconnect(connID)

	h.readPump(conn, connID, role)
}

// readPump owns all reads on conn until it fails. Viewers are read only to
// process control frames and notice the close.
func (h *SocketHandler) readPump(conn *websocket.Conn, connID string, role domain.Role) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	stop := make(chan struct{})
	defer close(stop)
	go h.pingLoop(conn, stop)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("conn_id", connID).Msg("connection read ended")
			}
			return
		}
		if role != domain.RoleDevice {
			continue
		}

		var env inboundEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.logger.Warn().Err(err).Str("conn_id", connID).Msg("malformed device message")
			continue
		}
		switch env.Event {
		case domain.EventLocationUpdate, domain.EventMobileLocationUpdate:
			h.ingress.HandleDeviceLocation(connID, env.Data)
		default:
			h.logger.Debug().Str("conn_id", connID).Str("event", env.Event).Msg("ignoring device event")
		}
	}
}

func (h *SocketHandler) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(h.opts.PongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.opts.WriteTimeout)); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}
