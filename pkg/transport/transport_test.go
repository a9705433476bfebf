// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Thermoquad/magician/pkg/dobot"
)

// bridge is a WebSocket echo server that records the auth header
func bridge(t *testing.T, gotAuth chan<- string) string {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotAuth != nil {
			gotAuth <- r.Header.Get("Authorization")
		}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		// A text message the client must skip
		c.WriteMessage(websocket.TextMessage, []byte("hello"))
		for {
			mt, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocket_RoundTrip(t *testing.T) {
	auth := make(chan string, 1)
	url := bridge(t, auth)

	conn, err := OpenWebSocket(context.Background(), url, "arm", "secret", false)
	if err != nil {
		t.Fatalf("OpenWebSocket: %v", err)
	}
	defer conn.Close()

	if got := <-auth; got != "Basic YXJtOnNlY3JldA==" {
		t.Errorf("Authorization = %q", got)
	}

	frame := dobot.MustEncodeFrame(dobot.NewGetPose())
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Read in small pieces to exercise the message buffer
	got := make([]byte, 0, len(frame))
	small := make([]byte, 2)
	for len(got) < len(frame) {
		n, err := conn.Read(small)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, small[:n]...)
	}
	if !bytes.Equal(got, frame) {
		t.Errorf("echo = % X, want % X", got, frame)
	}
}

func TestWebSocket_ServerCloseEndsReads(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		time.Sleep(10 * time.Millisecond)
		c.Close()
	}))
	defer srv.Close()

	conn, err := OpenWebSocket(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), "", "", false)
	if err != nil {
		t.Fatalf("OpenWebSocket: %v", err)
	}
	defer conn.Close()

	buf := make([]byte, 8)
	if _, err := conn.Read(buf); err != io.EOF {
		t.Errorf("Read after close = %v, want io.EOF", err)
	}
	if _, err := conn.Read(buf); err != ErrConnectionClosed {
		t.Errorf("second Read = %v, want ErrConnectionClosed", err)
	}
}

func TestOpenWebSocket_BadScheme(t *testing.T) {
	if _, err := OpenWebSocket(context.Background(), "http://example.com", "", "", false); err == nil {
		t.Error("http:// accepted")
	}
}

func TestGetPassword_FromEnv(t *testing.T) {
	t.Setenv(PasswordEnv, "hunter2")
	pw, err := GetPassword()
	if err != nil || pw != "hunter2" {
		t.Errorf("GetPassword = %q, %v", pw, err)
	}
}

func TestOpen_Selection(t *testing.T) {
	conn, desc, err := Open(context.Background(), Config{Sim: true, Port: "/dev/null"})
	if err != nil {
		t.Fatalf("Open sim: %v", err)
	}
	defer conn.Close()
	if desc != "Simulator" {
		t.Errorf("desc = %q", desc)
	}

	if _, _, err := Open(context.Background(), Config{}); err == nil {
		t.Error("empty config accepted")
	}
}
