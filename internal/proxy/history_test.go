package proxy

import (
	"testing"

	"github.com/rshield/rshield/internal/model"
)

func TestHistoryAddAndAll(t *testing.T) {
	h := NewHistory()
	h.Add(model.ProxyRequestRecord{ID: "a", Method: "GET"})
	h.Add(model.ProxyRequestRecord{ID: "b", Method: "POST"})

	all := h.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	if all[0].ID != "a" || all[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", all)
	}
}

func TestHistoryEvictsOldestOnOverflow(t *testing.T) {
	h := NewHistory()
	for i := 0; i < model.MaxRequestHistory+5; i++ {
		h.Add(model.ProxyRequestRecord{ID: string(rune('a' + i%26)), Method: "GET"})
	}
	if h.Len() != model.MaxRequestHistory {
		t.Fatalf("expected history capped at %d, got %d", model.MaxRequestHistory, h.Len())
	}
}

func TestHistoryUpdateResponse(t *testing.T) {
	h := NewHistory()
	h.Add(model.ProxyRequestRecord{ID: "a"})

	if !h.UpdateResponse("a", 200, map[string]string{"X": "Y"}, "body") {
		t.Fatal("expected update to succeed for existing id")
	}
	all := h.All()
	if all[0].Status != 200 || all[0].ResponseBody != "body" {
		t.Fatalf("unexpected record after update: %+v", all[0])
	}

	if h.UpdateResponse("missing", 404, nil, "") {
		t.Fatal("expected update to fail for unknown id")
	}
}
