package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"taixiu/events"
	"taixiu/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientBuffer   = 32
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// FeedMessage is pushed to every connected client
type FeedMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type feedClient struct {
	conn *websocket.Conn
	send chan FeedMessage
}

// LiveFeed broadcasts round and bet events to WebSocket clients
type LiveFeed struct {
	mu      sync.RWMutex
	clients map[*feedClient]struct{}
}

// NewLiveFeed creates an empty feed
func NewLiveFeed() *LiveFeed {
	return &LiveFeed{
		clients: make(map[*feedClient]struct{}),
	}
}

// Subscribe forwards committed game events from the bus to the feed in emit order
func (f *LiveFeed) Subscribe(bus *events.Bus) {
	bus.SubscribeOrdered(func(ctx context.Context, event events.Event) {
		if msg, ok := feedMessageFor(event); ok {
			f.Broadcast(msg)
		}
	}, events.EventTypeRoundOpened, events.EventTypeRoundLocked, events.EventTypeRoundFinished, events.EventTypeBetPlaced)
}

func feedMessageFor(event events.Event) (FeedMessage, bool) {
	switch e := event.(type) {
	case events.RoundOpenedEvent:
		return FeedMessage{Type: "round_opened", Data: gin.H{
			"roundId":       e.RoundID,
			"roundNumber":   e.RoundNumber,
			"bettingEndsAt": e.BettingEndsAt,
		}}, true
	case events.RoundLockedEvent:
		return FeedMessage{Type: "round_locked", Data: gin.H{
			"roundId":     e.RoundID,
			"roundNumber": e.RoundNumber,
		}}, true
	case events.RoundFinishedEvent:
		return FeedMessage{Type: "round_finished", Data: gin.H{
			"roundId":     e.RoundID,
			"roundNumber": e.RoundNumber,
			"dice1":       e.Dice[0],
			"dice2":       e.Dice[1],
			"dice3":       e.Dice[2],
			"total":       e.Total,
			"result":      e.Result,
			"winnerCount": e.WinnerCount,
			"loserCount":  e.LoserCount,
		}}, true
	case events.BetPlacedEvent:
		return FeedMessage{Type: "bet_placed", Data: gin.H{
			"roundId":     e.RoundID,
			"displayName": e.DisplayName,
			"side":        e.Side,
			"amount":      models.FormatAmount(e.Amount),
		}}, true
	}
	return FeedMessage{}, false
}

// Broadcast queues a message for every client. Clients that cannot keep up are dropped.
func (f *LiveFeed) Broadcast(msg FeedMessage) {
	f.mu.RLock()
	var slow []*feedClient
	for client := range f.clients {
		select {
		case client.send <- msg:
		default:
			slow = append(slow, client)
		}
	}
	f.mu.RUnlock()

	for _, client := range slow {
		log.Warn("Dropping slow live feed client")
		f.unregister(client)
	}
}

// ClientCount returns the number of connected clients
func (f *LiveFeed) ClientCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// Close disconnects every client
func (f *LiveFeed) Close() {
	f.mu.Lock()
	clients := f.clients
	f.clients = make(map[*feedClient]struct{})
	f.mu.Unlock()

	for client := range clients {
		close(client.send)
	}
}

func (f *LiveFeed) register(client *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients[client] = struct{}{}
}

func (f *LiveFeed) unregister(client *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[client]; ok {
		delete(f.clients, client)
		close(client.send)
	}
}

// HandleWebSocket upgrades the request and streams feed messages until the client leaves
func (f *LiveFeed) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("Failed to upgrade to WebSocket")
		return
	}

	client := &feedClient{conn: conn, send: make(chan FeedMessage, clientBuffer)}
	f.register(client)
	log.WithField("clients", f.ClientCount()).Debug("Live feed client connected")

	go f.writePump(client)
	f.readPump(client)
}

// readPump only handles control frames, the feed is one-way
func (f *LiveFeed) readPump(client *feedClient) {
	defer func() {
		f.unregister(client)
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).Debug("Live feed client read error")
			}
			return
		}
	}
}

func (f *LiveFeed) writePump(client *feedClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
