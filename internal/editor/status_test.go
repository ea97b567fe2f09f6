package editor

import (
	"testing"
	"time"
)

func TestStatusBoard(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	b := NewStatusBoard(clock)

	b.Post(ChannelExport, LevelError, "export failed", TTLExportFailed)
	b.Post(ChannelSave, LevelInfo, "changes saved", TTLSaveOK)
	b.Post(ChannelSave, LevelInfo, "changes saved again", TTLSaveOK)

	msgs := b.Active()
	if len(msgs) != 2 || msgs[0].Channel != ChannelSave || msgs[1].Channel != ChannelExport {
		t.Fatalf("Active() = %+v", msgs)
	}
	if msgs[0].Text != "changes saved again" {
		t.Fatalf("newer message should replace older on the same channel, got %q", msgs[0].Text)
	}

	clock.Advance(TTLSaveOK)
	if _, ok := b.Get(ChannelSave); ok {
		t.Fatal("save message should have expired")
	}
	if _, ok := b.Get(ChannelExport); !ok {
		t.Fatal("export message expired early")
	}

	clock.Advance(TTLExportFailed)
	if len(b.Active()) != 0 {
		t.Fatal("all messages should have expired")
	}
}
