package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/liveshop/audit-core/internal/auth"
	"github.com/liveshop/audit-core/internal/config"
	"github.com/liveshop/audit-core/internal/events"
	"github.com/liveshop/audit-core/internal/rbac"
	"go.uber.org/zap"
)

// WSHub streams audit events to connected staff dashboards. Only
// principals whose role grants VIEW_AUDIT_LOG may attach.
type WSHub struct {
	cfg         *config.Config
	catalog     *rbac.Catalog
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[uuid.UUID][]*websocket.Conn
}

func NewWSHub(cfg *config.Config, catalog *rbac.Catalog, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		catalog:     catalog,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[uuid.UUID][]*websocket.Conn),
	}
}

func (h *WSHub) Start(ctx context.Context) {
	_ = h.subscriber.Subscribe(ctx, events.StreamAudit, func(event events.Event) {
		h.broadcast(event)
	})
}

func (h *WSHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conns := range h.connections {
		for _, conn := range conns {
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	role, err := rbac.ParseRole(claims.Role)
	if err != nil || !h.catalog.HasCapability(role, nil, rbac.CapViewAuditLog) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"audit feed requires VIEW_AUDIT_LOG"}`))
		conn.Close()
		return
	}

	principalID := claims.PrincipalID
	h.mu.Lock()
	h.connections[principalID] = append(h.connections[principalID], conn)
	h.mu.Unlock()

	h.log.Debug("audit feed attached", zap.String("principal_id", principalID.String()))

	// Block until the client disconnects; inbound messages are ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	conns := h.connections[principalID]
	for i, c := range conns {
		if c == conn {
			h.connections[principalID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.connections[principalID]) == 0 {
		delete(h.connections, principalID)
	}
	h.mu.Unlock()
	conn.Close()
}
