package main

import (
	"encoding/json"
	"math"
)

// Client -> Server message types
const (
	MsgSpawn     = "spawn"
	MsgMove      = "move"      // hold or release a movement key
	MsgMoveAngle = "moveAngle" // analog stick direction, null to release
	MsgAngle     = "angle"     // facing
	MsgFire      = "fire"
	MsgAlt       = "alt"
	MsgAim       = "aim" // hierarchy aim point relative to the body
	MsgUpgrade   = "upgrade"
	MsgMockups   = "mockups"
)

// Server -> Client message types
const (
	MsgWelcome = "welcome"
	MsgMessage = "message"
	MsgDeath   = "death"
	MsgError   = "error"
)

// Binary frame kinds
const (
	FrameState       = "s"
	FrameLeaderboard = "l"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// SpawnMsg asks for a body. A valid token resumes the previous one.
type SpawnMsg struct {
	Name  string `json:"name"`
	Token string `json:"token,omitempty"`
}

// MoveMsg toggles one movement key
type MoveMsg struct {
	Dir  string `json:"dir"` // up, down, left, right
	Down bool   `json:"down"`
}

// MoveAngleMsg sets or clears the analog move direction
type MoveAngleMsg struct {
	A *float64 `json:"a"`
}

// AngleMsg sets the body's facing
type AngleMsg struct {
	A float64 `json:"a"`
}

// ToggleMsg switches fire or alt
type ToggleMsg struct {
	On bool `json:"on"`
}

// AimMsg points the hierarchy at a position relative to the body
type AimMsg struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// UpgradeMsg picks one of the unlocked upgrades
type UpgradeMsg struct {
	I int `json:"i"`
}

// WelcomeMsg is sent once a body is assigned
type WelcomeMsg struct {
	ID      EntityID `json:"id"`
	Token   string   `json:"token"`
	Team    int      `json:"team"`
	Width   float64  `json:"w"`
	Height  float64  `json:"h"`
	Resumed bool     `json:"resumed,omitempty"`
}

// MessageMsg is a line of chat-style text for one player
type MessageMsg struct {
	Text string `json:"text"`
}

// DeathMsg tells a player their body is gone
type DeathMsg struct {
	Score float64 `json:"score"`
	Level int     `json:"level"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// Mockup describes an archetype so the client can draw it
type Mockup struct {
	ID     int     `json:"id"`
	Key    string  `json:"key"`
	Label  string  `json:"label"`
	Size   float64 `json:"size"`
	Sides  int     `json:"sides"`
	Color  string  `json:"color"`
	Border string  `json:"border"`
	Stroke float64 `json:"stroke"`
	Alpha  float64 `json:"alpha"`
	Tier   int     `json:"tier"`
}

// EntityState is the per-frame kinematic delta of one visible entity
type EntityState struct {
	ID     EntityID `msgpack:"id"`
	X      float64  `msgpack:"x"`
	Y      float64  `msgpack:"y"`
	R      float64  `msgpack:"r"` // facing, radians
	Size   float64  `msgpack:"s"`
	Health float64  `msgpack:"h"`
	Shield float64  `msgpack:"sh"`
	MaxHP  float64  `msgpack:"mh"`
	MaxSH  float64  `msgpack:"ms"`
	Score  float64  `msgpack:"sc"`
	Quiet  int      `msgpack:"q"` // ticks since last attacked
}

// EntityInfo is the descriptive part of an entity, sent when a viewer first
// sees it or when it changes
type EntityInfo struct {
	ID     EntityID `msgpack:"id"`
	Mockup int      `msgpack:"m"`
	Name   string   `msgpack:"n"`
	Team   int      `msgpack:"t"`
	Score  float64  `msgpack:"sc"`
	Master EntityID `msgpack:"ma,omitempty"`
	Color  string   `msgpack:"c"`
	Border string   `msgpack:"b"`
	FOV    float64  `msgpack:"fov"`
	Health bool     `msgpack:"sh"`
	Label  bool     `msgpack:"sn"`
	Points bool     `msgpack:"ss"`
}

// UpgradeOption is one archetype the viewer's body can upgrade into
type UpgradeOption struct {
	Index  int    `msgpack:"i"`
	Mockup int    `msgpack:"m"`
	Label  string `msgpack:"l"`
	Color  string `msgpack:"c"`
	Border string `msgpack:"b"`
}

// ScoreState is the viewer's own progress
type ScoreState struct {
	Score      float64 `msgpack:"score"`
	Level      int     `msgpack:"level"`
	LevelScore float64 `msgpack:"next"`
}

// MiniMapEntry is one dot on the minimap
type MiniMapEntry struct {
	ID    EntityID `msgpack:"id"`
	X     float64  `msgpack:"x"`
	Y     float64  `msgpack:"y"`
	Team  int      `msgpack:"t"`
	Size  float64  `msgpack:"s"`
	Fixed bool     `msgpack:"f,omitempty"`
}

// StateFrame is the binary per-viewer broadcast
type StateFrame struct {
	K        string          `msgpack:"k"`
	Tick     int             `msgpack:"tick"`
	Self     EntityID        `msgpack:"self,omitempty"`
	Entities []EntityState   `msgpack:"e"`
	Info     []EntityInfo    `msgpack:"i,omitempty"`
	Removed  []EntityID      `msgpack:"rm,omitempty"`
	Upgrades []UpgradeOption `msgpack:"up,omitempty"`
	Score    *ScoreState     `msgpack:"sc,omitempty"`
	MiniMap  []MiniMapEntry  `msgpack:"mm,omitempty"`
}

// LeaderboardFrame is the binary leaderboard broadcast
type LeaderboardFrame struct {
	K    string             `msgpack:"k"`
	Rows []LeaderboardEntry `msgpack:"rows"`
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ToState converts an entity to its broadcast delta
func (e *Entity) ToState() EntityState {
	return EntityState{
		ID:     e.ID,
		X:      round1(e.Pos.X),
		Y:      round1(e.Pos.Y),
		R:      round2(e.Angle),
		Size:   round1(e.Size),
		Health: round1(e.Health),
		Shield: round1(e.Shield),
		MaxHP:  round1(e.MaxHealth()),
		MaxSH:  round1(e.MaxShield()),
		Score:  math.Round(e.Score),
		Quiet:  max(0, e.Tick-e.LastTickAttacked),
	}
}

// ToInfo converts an entity to its descriptor
func (e *Entity) ToInfo() EntityInfo {
	info := EntityInfo{
		ID:     e.ID,
		Mockup: e.Archetype.MockupID,
		Name:   e.Name,
		Team:   e.Team,
		Score:  math.Round(e.Score),
		Color:  e.Archetype.Color,
		Border: e.Archetype.Border,
		FOV:    e.Skill.FOV,
		Health: e.Archetype.ShowHealth,
		Label:  e.Archetype.ShowName,
		Points: e.Archetype.ShowScore,
	}
	if m := e.Master(); m != nil {
		info.Master = m.ID
	}
	return info
}

// upgradeOptions lists e's unlocked upgrades
func upgradeOptions(e *Entity) []UpgradeOption {
	out := make([]UpgradeOption, 0, len(e.Upgrades))
	for i, a := range e.Upgrades {
		out = append(out, UpgradeOption{
			Index:  i,
			Mockup: a.MockupID,
			Label:  a.Label,
			Color:  a.Color,
			Border: a.Border,
		})
	}
	return out
}

// mockupsOf describes every archetype in the registry
func mockupsOf(r *ArchetypeRegistry) []Mockup {
	list := r.Mockups()
	out := make([]Mockup, 0, len(list))
	for _, a := range list {
		out = append(out, Mockup{
			ID:     a.MockupID,
			Key:    a.Key,
			Label:  a.Label,
			Size:   a.Size,
			Sides:  a.Sides,
			Color:  a.Color,
			Border: a.Border,
			Stroke: a.StrokeWidth,
			Alpha:  a.Alpha,
			Tier:   a.Tier,
		})
	}
	return out
}

func moveDirection(s string) (MoveDirection, bool) {
	switch s {
	case "up":
		return MoveUp, true
	case "down":
		return MoveDown, true
	case "left":
		return MoveLeft, true
	case "right":
		return MoveRight, true
	}
	return 0, false
}
