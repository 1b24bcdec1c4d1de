package controller

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hargapangan/pangan-monitor/internal/errors"
	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/internal/middleware"
	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	ws "github.com/hargapangan/pangan-monitor/internal/websocket"
)

// LiveFeed live comparison feed; *websocket.Feed implements it
type LiveFeed interface {
	Refresh(sess hargaapi.Session, commodityID uint) uint64
	Latest(commodityID uint) (*reconcile.Comparison, uint64, bool)
}

type LiveController struct {
	hub      *ws.Hub
	feed     LiveFeed
	upgrader websocket.Upgrader
}

func NewLiveController(hub *ws.Hub, feed LiveFeed, allowedOrigins []string) *LiveController {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &LiveController{
		hub:  hub,
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// non-browser clients send no origin
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// WebSocketHandler subscribes to live comparisons of one commodity, or all with commodity_id=0
// GET /api/v1/ws/prices?commodity_id=&token=
// the token arrives as a query parameter and is never logged
func (ctrl *LiveController) WebSocketHandler(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		errors.Unauthorized(c, "")
		return
	}
	commodityID, ok := queryUint(c, "commodity_id")
	if !ok {
		return
	}
	sess, _ := middleware.GetSession(c)

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade to WebSocket", err)
		return
	}

	client := &ws.Client{
		Hub:           ctrl.hub,
		Conn:          conn,
		UserID:        userID,
		CommodityID:   commodityID,
		Session:       sess,
		Send:          make(chan []byte, 256),
		LastResetTime: time.Now(),
	}

	// last known comparison first, then a fresh one
	if latest, gen, ok := ctrl.feed.Latest(commodityID); ok {
		if data, err := json.Marshal(ws.Event{
			Type:        ws.EventComparison,
			CommodityID: commodityID,
			Generation:  gen,
			Data:        latest,
		}); err == nil {
			client.Send <- data
		}
	}

	ctrl.hub.Register(client)

	client.Start()

	ctrl.feed.Refresh(sess, commodityID)

	log.Info("WebSocket connection established", map[string]interface{}{
		"user_id":      userID,
		"commodity_id": commodityID,
	})
}
