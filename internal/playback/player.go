package playback

import (
	"errors"
	"math"
)

var ErrNoMedia = errors.New("no video loaded")

// VirtualPlayer mirrors the UI's media element inside the agent. Commands
// (seek, play, pause) change the mirror and bump Generation so the UI can
// tell a new command from one it already applied; the UI reports position
// and duration back.
type VirtualPlayer struct {
	loaded     bool
	position   float64
	duration   float64
	playing    bool
	generation uint64
}

// PlayerState is a copy of the mirror for snapshots.
type PlayerState struct {
	Loaded     bool    `json:"loaded"`
	Position   float64 `json:"position"`
	Duration   float64 `json:"duration"`
	Playing    bool    `json:"playing"`
	Generation uint64  `json:"generation"`
}

func NewVirtualPlayer() *VirtualPlayer {
	return &VirtualPlayer{}
}

// Load resets the mirror for a new video. duration may be 0 when unknown.
func (p *VirtualPlayer) Load(duration float64) {
	p.loaded = true
	p.position = 0
	p.playing = false
	p.duration = sanitize(duration)
	p.generation++
}

func (p *VirtualPlayer) Seek(t float64) {
	p.position = sanitize(t)
	p.generation++
}

func (p *VirtualPlayer) Play() error {
	if !p.loaded {
		return ErrNoMedia
	}
	p.playing = true
	p.generation++
	return nil
}

func (p *VirtualPlayer) Pause() {
	if !p.playing {
		return
	}
	p.playing = false
	p.generation++
}

func (p *VirtualPlayer) Position() float64 {
	return p.position
}

func (p *VirtualPlayer) Duration() float64 {
	return p.duration
}

// ReportTime records the position observed by the UI.
func (p *VirtualPlayer) ReportTime(t float64) {
	p.position = sanitize(t)
}

// ReportDuration records the media length observed by the UI.
func (p *VirtualPlayer) ReportDuration(d float64) {
	p.duration = sanitize(d)
}

func (p *VirtualPlayer) State() PlayerState {
	return PlayerState{
		Loaded:     p.loaded,
		Position:   p.position,
		Duration:   p.duration,
		Playing:    p.playing,
		Generation: p.generation,
	}
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
