package replay

import (
	"encoding/gob"
	"io"
	"os"
	"testing"
	"time"

	"mina-core/internal/action"
	"mina-core/internal/types"
	"mina-core/internal/watched"
)

func init() {
	gob.Register(watched.AccountWatchedAction{})
	gob.Register(watched.AccountUnwatchedAction{})
}

func tempLogPath(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "replay-*.log")
	if err != nil {
		t.Fatalf("tempfile: %v", err)
	}
	path := f.Name()
	f.Close()
	return path
}

func TestRecordAndPlaybackRoundTrip(t *testing.T) {
	path := tempLogPath(t)

	initial := watched.NewState()
	rec, err := NewRecorder(path, initial)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	addr := types.Address{0x01}
	meta1 := action.NewMeta(watched.KindAccountWatched, nil, time.Unix(1000, 0))
	a1 := watched.AccountWatchedAction{Base: action.Base{Meta: meta1}, Address: addr}
	if err := rec.Record(a1, meta1); err != nil {
		t.Fatalf("Record: %v", err)
	}

	meta2 := action.NewMeta(watched.KindAccountUnwatched, nil, time.Unix(1005, 0))
	a2 := watched.AccountUnwatchedAction{Base: action.Base{Meta: meta2}, Address: addr}
	if err := rec.Record(a2, meta2); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var replayedInitial watched.State
	player, err := OpenPlayer(path, &replayedInitial)
	if err != nil {
		t.Fatalf("OpenPlayer: %v", err)
	}
	defer player.Close()

	var applied []action.Action
	err = Run(player, func(a action.Action) bool {
		applied = append(applied, a)
		return true
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("expected 2 replayed actions, got %d", len(applied))
	}
	if w, ok := applied[0].(watched.AccountWatchedAction); !ok || w.Address != addr {
		t.Fatalf("unexpected first action: %+v", applied[0])
	}
}

func TestRunStopsOnPauseAndResumes(t *testing.T) {
	path := tempLogPath(t)

	rec, err := NewRecorder(path, watched.NewState())
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	for i := 0; i < 3; i++ {
		meta := action.NewMeta(watched.KindAccountWatched, nil, time.Unix(int64(1000+i), 0))
		a := watched.AccountWatchedAction{Base: action.Base{Meta: meta}, Address: types.Address{byte(i)}}
		if err := rec.Record(a, meta); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	rec.Close()

	var st watched.State
	player, err := OpenPlayer(path, &st)
	if err != nil {
		t.Fatalf("OpenPlayer: %v", err)
	}
	defer player.Close()

	count := 0
	err = Run(player, func(action.Action) bool { count++; return true }, func(action.Action, action.Meta) Decision {
		if count == 1 {
			return Pause
		}
		return Continue
	})
	if err != ErrPaused {
		t.Fatalf("expected ErrPaused, got %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one action before pause, got %d", count)
	}

	err = Run(player, func(action.Action) bool { count++; return true }, nil)
	if err != nil {
		t.Fatalf("resume Run: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 total actions after resume, got %d", count)
	}

	if _, _, err := player.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF after fully drained log, got %v", err)
	}
}
