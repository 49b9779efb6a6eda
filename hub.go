package main

import (
	"sync"
	"time"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// Session outlives a single connection so a client can reconnect to its
// body within the socket timeout
type Session struct {
	ID string

	mu     sync.Mutex
	body   EntityID
	client *Client // nil while disconnected
	reap   *time.Timer
}

// Body returns the session's body id, 0 when it has none
func (s *Session) Body() EntityID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.body
}

// Hub manages all connected clients and their sessions
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client

	sessMu   sync.Mutex
	sessions map[string]*Session

	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int

	game      *Game
	db        *DB
	auth      *Auth
	analytics *Analytics
}

// NewHub creates a new Hub serving game. db and analytics may be nil.
func NewHub(game *Game, db *DB, analytics *Analytics) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		sessions:   make(map[string]*Session),
		ipConns:    make(map[string]int),
		game:       game,
		db:         db,
		auth:       NewAuth(db),
		analytics:  analytics,
	}
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.game.AddViewer(client)

		case client := <-h.unregister:
			h.game.RemoveViewer(client)
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.detach(client)
		}
	}
}

// NewSession opens a session owned by c
func (h *Hub) NewSession(c *Client) *Session {
	sess := &Session{ID: GenerateUUID(), client: c}
	h.sessMu.Lock()
	h.sessions[sess.ID] = sess
	h.sessMu.Unlock()
	return sess
}

// Resume hands a disconnected session with a living body to c. It returns
// nil when the session is unknown, bodiless or still connected.
func (h *Hub) Resume(sid string, c *Client) *Session {
	h.sessMu.Lock()
	sess := h.sessions[sid]
	h.sessMu.Unlock()
	if sess == nil {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.body == 0 || sess.client != nil {
		return nil
	}
	if sess.reap != nil {
		sess.reap.Stop()
		sess.reap = nil
	}
	sess.client = c
	return sess
}

// BindBody records the body spawned for sess
func (h *Hub) BindBody(sess *Session, id EntityID) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.body = id
}

// BodyRemoved runs inside the tick when a session's body leaves the world
func (h *Hub) BodyRemoved(sess *Session, e *Entity) {
	sess.mu.Lock()
	if sess.body != e.ID {
		sess.mu.Unlock()
		return
	}
	sess.body = 0
	client := sess.client
	if sess.reap != nil {
		sess.reap.Stop()
		sess.reap = nil
	}
	sess.mu.Unlock()

	if h.analytics != nil {
		h.analytics.Track(EvtSessionEnd, e.ID, sess.ID, map[string]interface{}{
			"score": e.Score,
			"level": e.Level,
		})
	}

	if client == nil {
		h.dropSession(sess.ID)
		return
	}
	client.body.CompareAndSwap(uint32(e.ID), 0)
	client.SendJSON(Envelope{T: MsgDeath, Data: DeathMsg{Score: e.Score, Level: e.Level}})
}

// detach releases c's session. A living body is kept for SocketTimeout so
// the player can resume it; its inputs are released meanwhile.
func (h *Hub) detach(c *Client) {
	sess := c.session
	if sess == nil {
		return
	}

	sess.mu.Lock()
	if sess.client != c {
		sess.mu.Unlock()
		return
	}
	sess.client = nil
	id := sess.body
	if id != 0 {
		sess.reap = time.AfterFunc(h.game.cfg.SocketTimeout, func() { h.reap(sess) })
	}
	sess.mu.Unlock()

	if id == 0 {
		h.dropSession(sess.ID)
		return
	}
	h.game.Enqueue(func(w *World) {
		e := w.Get(id)
		if e == nil {
			return
		}
		if e.Messenger == Messenger(c) {
			e.Messenger = nil
		}
		e.Move = 0
		e.MoveAngle = nil
		e.Control.Fire = false
		e.Control.Alt = false
	})
}

// reap removes a body whose player never came back
func (h *Hub) reap(sess *Session) {
	sess.mu.Lock()
	if sess.client != nil || sess.body == 0 {
		sess.mu.Unlock()
		return
	}
	id := sess.body
	sess.mu.Unlock()

	h.game.Enqueue(func(w *World) {
		if e := w.Get(id); e != nil {
			w.Remove(e)
		}
	})
}

func (h *Hub) dropSession(id string) {
	h.sessMu.Lock()
	defer h.sessMu.Unlock()
	delete(h.sessions, id)
}

// SessionCount returns the number of sessions, connected or awaiting resume
func (h *Hub) SessionCount() int {
	h.sessMu.Lock()
	defer h.sessMu.Unlock()
	return len(h.sessions)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
