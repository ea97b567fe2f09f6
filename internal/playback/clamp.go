// Package playback keeps playback of the loaded video inside the highlight
// being watched and serves the video file to the UI.
package playback

// DefaultSkip is the jump, in seconds, of a single skip forward or back.
const DefaultSkip = 10.0

// Player is the media element being controlled.
type Player interface {
	Seek(t float64)
	Play() error
	Pause()
	Position() float64
	// Duration is the media length in seconds, or 0 when not yet known.
	Duration() float64
}

// Clamp stops playback at the end of the highlight being played. It is not
// safe for concurrent use.
type Clamp struct {
	player Player
	end    float64
	active bool
}

func NewClamp(p Player) *Clamp {
	return &Clamp{player: p}
}

// SeekAndPlay moves to t and starts playback. A non-nil end arms the clamp;
// nil means free playback and clears any previous clamp.
func (c *Clamp) SeekAndPlay(t float64, end *float64) error {
	c.player.Seek(t)
	if end != nil {
		c.end, c.active = *end, true
	} else {
		c.end, c.active = 0, false
	}
	return c.player.Play()
}

// OnTimeAdvance is called on every position update. Once now reaches the
// armed end, playback pauses and the clamp is cleared.
func (c *Clamp) OnTimeAdvance(now float64) {
	if c.active && now >= c.end {
		c.player.Pause()
		c.active = false
	}
}

// Skip moves the position by delta seconds within [0, duration] and returns
// the new position. An unknown duration leaves the upper bound open. Skip
// neither arms nor clears the clamp.
func (c *Clamp) Skip(delta float64) float64 {
	target := max(0, c.player.Position()+delta)
	if d := c.player.Duration(); d > 0 {
		target = min(target, d)
	}
	c.player.Seek(target)
	return target
}

// ActiveEnd returns the armed end and whether the clamp is armed.
func (c *Clamp) ActiveEnd() (float64, bool) {
	return c.end, c.active
}

// Clear disarms the clamp.
func (c *Clamp) Clear() {
	c.end, c.active = 0, false
}
