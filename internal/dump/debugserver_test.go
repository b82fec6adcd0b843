package dump

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestDebugServerBroadcastsToAttachedClients(t *testing.T) {
	srv := NewDebugServer()
	ts := httptest.NewServer(http.HandlerFunc(srv.Handler))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/debug/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && srv.ClientCount() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if srv.ClientCount() != 1 {
		t.Fatalf("want 1 attached client, got %d", srv.ClientCount())
	}

	srv.Broadcast("snap", fakeDump("cells{} top"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if !strings.Contains(string(msg), "snap") || !strings.Contains(string(msg), "cells{} top") {
		t.Errorf("got message %q, want it to contain the label and dumped body", msg)
	}
}
