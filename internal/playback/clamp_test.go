package playback

import (
	"errors"
	"testing"
)

func loadedPlayer(duration float64) *VirtualPlayer {
	p := NewVirtualPlayer()
	p.Load(duration)
	return p
}

func ptr(v float64) *float64 { return &v }

func TestClamp_PausesAtHighlightEnd(t *testing.T) {
	p := loadedPlayer(600)
	c := NewClamp(p)

	if err := c.SeekAndPlay(100, ptr(110)); err != nil {
		t.Fatalf("SeekAndPlay() error = %v", err)
	}
	if p.Position() != 100 || !p.State().Playing {
		t.Fatalf("state after SeekAndPlay = %+v", p.State())
	}

	c.OnTimeAdvance(109.9)
	if !p.State().Playing {
		t.Fatal("paused before the end was reached")
	}
	if end, ok := c.ActiveEnd(); !ok || end != 110 {
		t.Fatalf("ActiveEnd() = %v, %v", end, ok)
	}

	c.OnTimeAdvance(110.0)
	if p.State().Playing {
		t.Fatal("still playing at the end")
	}
	if _, ok := c.ActiveEnd(); ok {
		t.Fatal("clamp should be cleared after pausing")
	}

	// Resuming past the end must not pause again.
	p.Play()
	c.OnTimeAdvance(120)
	if !p.State().Playing {
		t.Fatal("cleared clamp paused playback")
	}
}

func TestClamp_FreePlaybackClearsEnd(t *testing.T) {
	p := loadedPlayer(600)
	c := NewClamp(p)

	c.SeekAndPlay(100, ptr(110))
	c.SeekAndPlay(300, nil)
	if _, ok := c.ActiveEnd(); ok {
		t.Fatal("free seek should clear the clamp")
	}
	c.OnTimeAdvance(500)
	if !p.State().Playing {
		t.Fatal("free playback was paused")
	}
}

func TestClamp_Skip(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		from     float64
		delta    float64
		want     float64
	}{
		{"forward", 600, 100, DefaultSkip, 110},
		{"back", 600, 100, -DefaultSkip, 90},
		{"clamped at zero", 600, 4, -DefaultSkip, 0},
		{"clamped at duration", 600, 595, DefaultSkip, 600},
		{"unknown duration", 0, 595, DefaultSkip, 605},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := loadedPlayer(tt.duration)
			p.Seek(tt.from)
			c := NewClamp(p)
			if got := c.Skip(tt.delta); got != tt.want {
				t.Fatalf("Skip() = %v, want %v", got, tt.want)
			}
			if p.Position() != tt.want {
				t.Fatalf("Position() = %v, want %v", p.Position(), tt.want)
			}
		})
	}
}

func TestClamp_SkipKeepsClamp(t *testing.T) {
	p := loadedPlayer(600)
	c := NewClamp(p)
	c.SeekAndPlay(100, ptr(110))
	c.Skip(DefaultSkip)
	if end, ok := c.ActiveEnd(); !ok || end != 110 {
		t.Fatalf("ActiveEnd() after skip = %v, %v", end, ok)
	}
}

func TestClamp_NoMedia(t *testing.T) {
	c := NewClamp(NewVirtualPlayer())
	if err := c.SeekAndPlay(5, nil); !errors.Is(err, ErrNoMedia) {
		t.Fatalf("SeekAndPlay() error = %v, want ErrNoMedia", err)
	}
}

func TestClamp_OnTimeAdvanceDoesNotAllocate(t *testing.T) {
	c := NewClamp(loadedPlayer(600))
	c.SeekAndPlay(0, ptr(1e9))
	allocs := testing.AllocsPerRun(100, func() { c.OnTimeAdvance(42) })
	if allocs != 0 {
		t.Fatalf("OnTimeAdvance allocated %v times", allocs)
	}
}

func TestVirtualPlayer_GenerationAndSanitize(t *testing.T) {
	p := loadedPlayer(600)
	g := p.State().Generation
	p.ReportTime(12)
	if p.State().Generation != g {
		t.Fatal("reported time should not bump generation")
	}
	p.Seek(-3)
	if p.Position() != 0 || p.State().Generation == g {
		t.Fatalf("Seek(-3) state = %+v", p.State())
	}
	p.Pause()
	p.Pause()
}
