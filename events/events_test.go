package events

import (
	"testing"

	"github.com/Hooolee/novel-splitter/model"
)

func TestHubBroadcastAndUnsubscribe(t *testing.T) {
	hub := NewHub(4)
	a := hub.Subscribe()
	b := hub.Subscribe()

	Progress(hub, "正在获取元数据", model.StatusRunning)

	for _, ch := range []chan Message{a, b} {
		msg := <-ch
		if msg.Name != DownloadProgress {
			t.Fatalf("unexpected event %q", msg.Name)
		}
		if p := msg.Payload.(model.ProgressEvent); p.Status != model.StatusRunning {
			t.Fatalf("unexpected status %q", p.Status)
		}
	}

	hub.Unsubscribe(a)
	if _, ok := <-a; ok {
		t.Fatalf("channel should be closed after unsubscribe")
	}
	if hub.Subscribers() != 1 {
		t.Fatalf("expected one subscriber left")
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(1)
	ch := hub.Subscribe()
	AiChunk(hub, "a")
	AiChunk(hub, "b")
	if len(ch) != 1 {
		t.Fatalf("expected buffered message only, got %d", len(ch))
	}
}

func TestRecorderFilters(t *testing.T) {
	var r Recorder
	Progress(&r, "a", model.StatusSkipped)
	AiStatus(&r, "b", model.StatusDone)
	Progress(&r, "c", model.StatusRunning)

	if got := r.Progress(model.StatusSkipped); len(got) != 1 || got[0].Message != "a" {
		t.Fatalf("unexpected filter result %+v", got)
	}
	if got := r.Progress(); len(got) != 2 {
		t.Fatalf("expected 2 progress events, got %d", len(got))
	}
	if len(r.Records()) != 3 {
		t.Fatalf("expected 3 records")
	}
}
