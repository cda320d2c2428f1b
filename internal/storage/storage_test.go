package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"draft-analyzer/internal/model"
)

func testMatch(id string) *model.Match {
	return &model.Match{
		MatchID:     id,
		GameVersion: "14.3.1",
		QueueID:     420,
		Participants: []model.Participant{
			{MatchID: id, ParticipantID: 1, ChampionID: 103, TeamID: 100, Win: true},
		},
	}
}

func TestRotator_WriteRotateRead(t *testing.T) {
	base := t.TempDir()
	r, err := NewFileRotator(base, nil)
	if err != nil {
		t.Fatalf("NewFileRotator() error = %v", err)
	}

	for _, id := range []string{"NA1_1", "NA1_2", "NA1_3"} {
		if err := r.WriteMatch(testMatch(id)); err != nil {
			t.Fatalf("WriteMatch(%s) error = %v", id, err)
		}
	}
	if n, _ := r.Stats(); n != 3 {
		t.Errorf("matches in current file = %d, want 3", n)
	}
	if err := r.Rotate(); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	files, err := WarmFiles(r.WarmDir())
	if err != nil || len(files) != 1 {
		t.Fatalf("WarmFiles() = %v, %v", files, err)
	}

	var ids []string
	res, err := ReadMatches(files[0], func(m *model.Match) error {
		ids = append(ids, m.MatchID)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Matches != 3 || len(ids) != 3 || ids[2] != "NA1_3" {
		t.Errorf("read %+v ids=%v", res, ids)
	}

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	hot, _ := os.ReadDir(filepath.Join(base, "hot"))
	if len(hot) != 0 {
		t.Errorf("empty hot file should be removed on close, found %d", len(hot))
	}
	if err := r.WriteMatch(testMatch("NA1_4")); err == nil {
		t.Error("WriteMatch after Close should fail")
	}
}

func TestRotator_EmptyRotateIsNoop(t *testing.T) {
	r, err := NewFileRotator(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if err := r.Rotate(); err != nil {
		t.Fatal(err)
	}
	if files, _ := WarmFiles(r.WarmDir()); len(files) != 0 {
		t.Errorf("warm files = %v, want none", files)
	}
}

func TestReadMatches_SkipsBadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.jsonl")
	content := `{"matchId":"NA1_1","queueId":420}
not json
{"queueId":420}

{"matchId":"NA1_2"}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := ReadMatches(path, func(*model.Match) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	if res.Matches != 2 || res.Skipped != 2 {
		t.Errorf("ReadMatches() = %+v, want 2 matches / 2 skipped", res)
	}
}

func TestReadMatches_CallbackErrorStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "two.jsonl")
	os.WriteFile(path, []byte("{\"matchId\":\"a\"}\n{\"matchId\":\"b\"}\n"), 0644)

	stop := errors.New("stop")
	res, err := ReadMatches(path, func(*model.Match) error { return stop })
	if !errors.Is(err, stop) || res.Matches != 0 {
		t.Errorf("ReadMatches() = %+v, %v", res, err)
	}
}

func TestCompressToCold_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	warm := filepath.Join(dir, "raw.jsonl")
	os.WriteFile(warm, []byte("{\"matchId\":\"NA1_9\"}\n"), 0644)

	cold, err := CompressToCold(warm, dir)
	if err != nil {
		t.Fatalf("CompressToCold() error = %v", err)
	}
	if _, err := os.Stat(warm); !os.IsNotExist(err) {
		t.Error("warm file should be removed")
	}

	res, err := ReadMatches(cold, func(m *model.Match) error {
		if m.MatchID != "NA1_9" {
			t.Errorf("MatchID = %q", m.MatchID)
		}
		return nil
	})
	if err != nil || res.Matches != 1 {
		t.Errorf("reading gzip archive = %+v, %v", res, err)
	}
}

func TestWatch_SeesExistingAndNewFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "a.jsonl")
	os.WriteFile(existing, []byte("{}\n"), 0644)

	var mu sync.Mutex
	seen := make(map[string]bool)
	got := make(chan struct{}, 16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, dir, 50*time.Millisecond, nil, func(path string) {
			mu.Lock()
			seen[filepath.Base(path)] = true
			mu.Unlock()
			select {
			case got <- struct{}{}:
			default:
			}
		})
	}()

	<-got
	os.WriteFile(filepath.Join(dir, "b.jsonl"), []byte("{}\n"), 0644)
	os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0644)

	deadline := time.After(5 * time.Second)
	for {
		mu.Lock()
		ok := seen["a.jsonl"] && seen["b.jsonl"]
		mu.Unlock()
		if ok {
			break
		}
		select {
		case <-got:
		case <-deadline:
			t.Fatalf("files not seen: %v", seen)
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
	if seen["ignored.txt"] {
		t.Error("non-JSONL file passed to callback")
	}
}
