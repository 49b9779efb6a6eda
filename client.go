package main

import (
	"encoding/json"
	"log"
	"math"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 100
	maxNameLen        = 16
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	msgCount   int
	msgResetAt time.Time

	session *Session      // owned by ReadPump until unregister
	body    atomic.Uint32 // written only from mailbox closures
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
	}
}

// BodyID implements Viewer
func (c *Client) BodyID() EntityID { return EntityID(c.body.Load()) }

func (c *Client) setBody(id EntityID) { c.body.Store(uint32(id)) }

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Check for binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message
// Prefixes with 0xFF marker byte so WritePump can distinguish from text
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF // binary marker
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

// SendMessage implements Messenger
func (c *Client) SendMessage(text string) {
	c.SendJSON(Envelope{T: MsgMessage, Data: MessageMsg{Text: text}})
}

func (c *Client) sendError(msg string) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: msg}})
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("unmarshal error: %v", err)
		return
	}

	switch env.T {
	case MsgSpawn:
		c.handleSpawn(env.D)
	case MsgMove:
		c.handleMove(env.D)
	case MsgMoveAngle:
		c.handleMoveAngle(env.D)
	case MsgAngle:
		c.handleAngle(env.D)
	case MsgFire, MsgAlt:
		c.handleToggle(env.T, env.D)
	case MsgAim:
		c.handleAim(env.D)
	case MsgUpgrade:
		c.handleUpgrade(env.D)
	case MsgMockups:
		c.SendJSON(Envelope{T: MsgMockups, Data: c.hub.game.Mockups()})
	}
}

// withBody runs fn against the client's body at the next tick boundary
func (c *Client) withBody(fn func(w *World, e *Entity)) {
	id := c.BodyID()
	if id == 0 {
		return
	}
	c.hub.game.Enqueue(func(w *World) {
		if e := w.Get(id); e != nil {
			fn(w, e)
		}
	})
}

func (c *Client) handleSpawn(data json.RawMessage) {
	if c.BodyID() != 0 {
		return
	}
	var msg SpawnMsg
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
	}

	if msg.Token != "" {
		sid, err := c.hub.auth.ValidateToken(msg.Token)
		if err == nil {
			if sess := c.hub.Resume(sid, c); sess != nil {
				if c.session != nil && c.session != sess {
					c.hub.dropSession(c.session.ID)
				}
				c.session = sess
				c.resume(sess)
				return
			}
		}
	}

	if c.session == nil {
		c.session = c.hub.NewSession(c)
	}
	sess := c.session
	name := sanitizeName(msg.Name)
	g := c.hub.game

	g.Enqueue(func(w *World) {
		if c.BodyID() != 0 {
			return
		}
		e, err := g.spawnPlayer(w, name)
		if err != nil {
			log.Printf("spawn %s: %v", name, err)
			c.sendError("could not spawn")
			return
		}
		c.setBody(e.ID)
		e.Messenger = c
		c.hub.BindBody(sess, e.ID)
		e.OnRemove(func(e *Entity) { c.hub.BodyRemoved(sess, e) })

		c.welcome(sess, e, false)
		if text := w.Config().WelcomeMessage; text != "" {
			c.SendMessage(text)
		}
	})
}

// resume reattaches a living body left behind by an earlier connection
func (c *Client) resume(sess *Session) {
	id := sess.Body()
	c.hub.game.Enqueue(func(w *World) {
		e := w.Get(id)
		if e == nil {
			c.sendError("session expired")
			return
		}
		c.setBody(e.ID)
		e.Messenger = c
		c.welcome(sess, e, true)
	})
}

func (c *Client) welcome(sess *Session, e *Entity, resumed bool) {
	token, err := c.hub.auth.IssueToken(sess.ID)
	if err != nil {
		log.Printf("issue token: %v", err)
	}
	cfg := e.world.Config()
	c.SendJSON(Envelope{T: MsgWelcome, Data: WelcomeMsg{
		ID:      e.ID,
		Token:   token,
		Team:    e.Team,
		Width:   cfg.Width,
		Height:  cfg.Height,
		Resumed: resumed,
	}})
}

func (c *Client) handleMove(data json.RawMessage) {
	var msg MoveMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	dir, ok := moveDirection(msg.Dir)
	if !ok {
		return
	}
	c.withBody(func(_ *World, e *Entity) {
		if msg.Down {
			e.Move.Add(dir)
		} else {
			e.Move.Delete(dir)
		}
	})
}

func (c *Client) handleMoveAngle(data json.RawMessage) {
	var msg MoveAngleMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.A != nil && !finite(*msg.A) {
		return
	}
	c.withBody(func(_ *World, e *Entity) {
		if msg.A == nil {
			e.MoveAngle = nil
			return
		}
		a := NormalizeAngle(*msg.A)
		e.MoveAngle = &a
	})
}

func (c *Client) handleAngle(data json.RawMessage) {
	var msg AngleMsg
	if err := json.Unmarshal(data, &msg); err != nil || !finite(msg.A) {
		return
	}
	c.withBody(func(_ *World, e *Entity) {
		e.Angle = NormalizeAngle(msg.A)
	})
}

func (c *Client) handleToggle(kind string, data json.RawMessage) {
	var msg ToggleMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.withBody(func(_ *World, e *Entity) {
		if kind == MsgFire {
			e.Control.Fire = msg.On
		} else {
			e.Control.Alt = msg.On
		}
	})
}

func (c *Client) handleAim(data json.RawMessage) {
	var msg AimMsg
	if err := json.Unmarshal(data, &msg); err != nil || !finite(msg.X) || !finite(msg.Y) {
		return
	}
	c.withBody(func(w *World, e *Entity) {
		cfg := w.Config()
		e.SetSource(&Vector{
			X: Clamp(msg.X, -cfg.Width, cfg.Width),
			Y: Clamp(msg.Y, -cfg.Height, cfg.Height),
		})
	})
}

func (c *Client) handleUpgrade(data json.RawMessage) {
	var msg UpgradeMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	var sid string
	if c.session != nil {
		sid = c.session.ID
	}
	c.withBody(func(w *World, e *Entity) {
		if err := w.Upgrade(e, msg.I); err != nil {
			c.sendError(err.Error())
			return
		}
		if a := c.hub.game.analytics; a != nil {
			a.Track(EvtUpgrade, e.ID, sid, map[string]string{"to": e.Archetype.Label})
		}
	})
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
