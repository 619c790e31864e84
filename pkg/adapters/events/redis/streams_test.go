package redis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dagrun-io/dagrun/internal/application/orchestrator"
)

func newTestSink(t *testing.T) (*StreamsSink, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStreamsSink(client, 0, zap.NewNop()), client
}

func TestPublishAppendsToStream(t *testing.T) {
	sink, client := newTestSink(t)
	ctx := context.Background()

	events := []orchestrator.Event{
		{Type: orchestrator.EventNodeReady, ExecutionID: "exec-1", NodeID: "a"},
		{Type: orchestrator.EventNodeSkipped, ExecutionID: "exec-1", NodeID: "b", Reason: "Dependency failed"},
		{Type: orchestrator.EventWorkflowFailed, ExecutionID: "exec-1"},
	}
	for _, ev := range events {
		if err := sink.Publish(ctx, ev); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	entries, err := client.XRange(ctx, streamKey, "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 stream entries, got %d", len(entries))
	}

	var decoded orchestrator.Event
	if err := json.Unmarshal([]byte(entries[1].Values["data"].(string)), &decoded); err != nil {
		t.Fatalf("unmarshal entry: %v", err)
	}
	if decoded.Type != orchestrator.EventNodeSkipped || decoded.NodeID != "b" {
		t.Fatalf("decoded entry mismatch: %+v", decoded)
	}
}

func TestPublishOrderPreserved(t *testing.T) {
	sink, client := newTestSink(t)
	ctx := context.Background()

	for _, id := range []string{"n1", "n2", "n3"} {
		ev := orchestrator.Event{Type: orchestrator.EventNodeReady, ExecutionID: "exec-1", NodeID: id}
		if err := sink.Publish(ctx, ev); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	entries, err := client.XRange(ctx, streamKey, "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange: %v", err)
	}
	for i, want := range []string{"n1", "n2", "n3"} {
		var decoded orchestrator.Event
		if err := json.Unmarshal([]byte(entries[i].Values["data"].(string)), &decoded); err != nil {
			t.Fatalf("unmarshal entry %d: %v", i, err)
		}
		if decoded.NodeID != want {
			t.Fatalf("entry %d: expected %s, got %s", i, want, decoded.NodeID)
		}
	}
}

func TestClose(t *testing.T) {
	sink, _ := newTestSink(t)
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
