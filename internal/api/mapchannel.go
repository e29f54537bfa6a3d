package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"fraatlas/pkg/annotate"
	"fraatlas/pkg/mapsync"
)

// Map command types sent to the browser map.
const (
	CommandRender   = "render"
	CommandAnnotate = "annotate"
	CommandFlyTo    = "fly_to"
)

const (
	clientBuffer = 256
	writeWait    = 10 * time.Second
)

// MapCommand is one instruction for the browser map widget.
// Bounds use Leaflet order: [[minLat, minLon], [maxLat, maxLon]].
type MapCommand struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Data     json.RawMessage  `json:"data,omitempty"`
	Bounds   *[2][2]float64   `json:"bounds,omitempty"`
	Padding  *mapsync.Padding `json:"padding,omitempty"`
	Duration float64          `json:"duration,omitempty"` // seconds
	Feature  *int             `json:"feature,omitempty"`
	Content  string           `json:"content,omitempty"`
}

type mapClient struct {
	id   string
	send chan []byte
}

// MapChannel is the map widget capability backed by WebSocket clients. Every
// command is broadcast to all connected browsers; a browser connecting later
// receives the commands since the last render so it shows the same view.
type MapChannel struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*mapClient
	replay  [][]byte
}

// NewMapChannel creates a channel accepting browsers from allowedOrigins
// (same-host connections are always accepted).
func NewMapChannel(allowedOrigins []string) *MapChannel {
	return &MapChannel{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		clients: make(map[string]*mapClient),
	}
}

// Render implements mapsync.Viewport.
func (m *MapChannel) Render(fc *geojson.FeatureCollection) {
	data := json.RawMessage("null")
	if fc != nil {
		raw, err := json.Marshal(fc)
		if err != nil {
			slog.Error("Failed to encode dataset for map", "error", err)
			return
		}
		data = raw
	}
	m.broadcast(MapCommand{Type: CommandRender, Data: data}, true)
}

// BoundsOf implements mapsync.Viewport.
func (m *MapChannel) BoundsOf(fc *geojson.FeatureCollection) (orb.Bound, bool) {
	return mapsync.Bounds(fc)
}

// FlyTo implements mapsync.Viewport.
func (m *MapChannel) FlyTo(b orb.Bound, padding mapsync.Padding, duration time.Duration) {
	bounds := [2][2]float64{
		{b.Min.Lat(), b.Min.Lon()},
		{b.Max.Lat(), b.Max.Lon()},
	}
	m.broadcast(MapCommand{
		Type:     CommandFlyTo,
		Bounds:   &bounds,
		Padding:  &padding,
		Duration: duration.Seconds(),
	}, false)
}

// AttachAnnotation implements annotate.Binder.
func (m *MapChannel) AttachAnnotation(layer annotate.LayerHandle, content annotate.Content) {
	idx := int(layer)
	m.broadcast(MapCommand{
		Type:    CommandAnnotate,
		Feature: &idx,
		Content: content.HTML(),
	}, false)
}

// ClientCount returns the number of connected browsers.
func (m *MapChannel) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

func (m *MapChannel) broadcast(cmd MapCommand, reset bool) {
	cmd.ID = uuid.NewString()
	msg, err := json.Marshal(cmd)
	if err != nil {
		slog.Error("Failed to encode map command", "type", cmd.Type, "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if reset {
		m.replay = m.replay[:0]
	}
	m.replay = append(m.replay, msg)

	for id, c := range m.clients {
		select {
		case c.send <- msg:
		default:
			slog.Warn("Map client too slow, disconnecting", "client", id)
			delete(m.clients, id)
			close(c.send)
		}
	}
}

// HandleWS upgrades the request and streams map commands to the browser.
func (m *MapChannel) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Map websocket upgrade failed", "error", err)
		return
	}

	c := &mapClient{id: uuid.NewString(), send: make(chan []byte, clientBuffer)}

	// the backlog is written by writeLoop; sends under mu must never block
	m.mu.Lock()
	backlog := slices.Clone(m.replay)
	m.clients[c.id] = c
	m.mu.Unlock()

	slog.Info("Map client connected", "client", c.id, "remote", r.RemoteAddr, "backlog", len(backlog))

	go m.writeLoop(conn, c, backlog)
	m.readLoop(conn, c)
}

// readLoop discards client messages and notices disconnects.
func (m *MapChannel) readLoop(conn *websocket.Conn, c *mapClient) {
	defer func() {
		m.mu.Lock()
		if _, ok := m.clients[c.id]; ok {
			delete(m.clients, c.id)
			close(c.send)
		}
		m.mu.Unlock()
		slog.Info("Map client disconnected", "client", c.id)
	}()

	conn.SetReadLimit(4096)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop sends the replay backlog, then every broadcast queued on c.send.
func (m *MapChannel) writeLoop(conn *websocket.Conn, c *mapClient, backlog [][]byte) {
	defer conn.Close()

	write := func(msg []byte) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			slog.Debug("Map client write failed", "client", c.id, "error", err)
			return false
		}
		return true
	}

	for _, msg := range backlog {
		if !write(msg) {
			return
		}
	}
	for msg := range c.send {
		if !write(msg) {
			return
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func originChecker(allowed []string) func(r *http.Request) bool {
	allowed = slices.Clone(allowed)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if slices.Contains(allowed, origin) || slices.Contains(allowed, "*") {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}
