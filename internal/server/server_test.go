package server

import (
	"bufio"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/nasutils/ledd/internal/state"
)

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledd.sock")
	leds := []state.LED{{Available: true}, {Available: true}}
	srv := New(path, state.New(leds, nil), nil)
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("server did not stop")
		}
	})

	return srv, path
}

func dial(t *testing.T, path string) net.Conn {
	t.Helper()
	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	return conn
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", msg)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestSessionCommandsAndStatus(t *testing.T) {
	srv, path := startTestServer(t)

	conn := dial(t, path)
	defer conn.Close()

	// Each write must land as its own read on the server side, so wait
	// for the command's effect before sending the next one.
	send := func(cmd string, settled func() bool) {
		t.Helper()
		if _, err := conn.Write([]byte(cmd)); err != nil {
			t.Fatalf("Write(%q) error = %v", cmd, err)
		}
		waitFor(t, cmd, settled)
	}

	send("0 brightness_set 80", func() bool {
		led, _ := srv.store.ReadPending(0)
		return led.Brightness == 80
	})
	send("0 color_set 10 20 30", func() bool {
		led, _ := srv.store.ReadPending(0)
		return led.R == 10 && led.G == 20 && led.B == 30
	})

	if _, err := conn.Write([]byte("0 status")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString() error = %v", err)
	}
	if reply != "1 1 80 10 20 30 0 0\n" {
		t.Errorf("status reply = %q, want %q", reply, "1 1 80 10 20 30 0 0\n")
	}

	if _, err := conn.Write([]byte("0 exit")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	led, _ := srv.store.ReadPending(0)
	if led.Mode != state.ModeOn || led.Brightness != 80 {
		t.Errorf("pending after session = %+v, want on/80", led)
	}
}

func TestSessionAbortsOnBadCommand(t *testing.T) {
	_, path := startTestServer(t)

	conn := dial(t, path)
	defer conn.Close()

	if _, err := conn.Write([]byte("0 sparkle")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// The server closes the connection without any error reply.
	buf := make([]byte, 16)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if n, err := conn.Read(buf); err == nil {
		t.Errorf("got reply %q, want closed connection", buf[:n])
	}
}

func TestSessionsAreSerial(t *testing.T) {
	srv, path := startTestServer(t)

	first := dial(t, path)
	defer first.Close()
	if _, err := first.Write([]byte("0 on")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	waitFor(t, "first session served", func() bool {
		led, _ := srv.store.ReadPending(0)
		return led.Mode == state.ModeOn
	})

	// Second client's commands are not processed until the first
	// session ends.
	second := dial(t, path)
	defer second.Close()
	if _, err := second.Write([]byte("1 on")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// The first session keeps being served after the second client's
	// write; once its next command lands, the second client's command
	// has had every chance to be (wrongly) processed.
	if _, err := first.Write([]byte("0 off")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	waitFor(t, "first session still served", func() bool {
		led, _ := srv.store.ReadPending(0)
		return led.Mode == state.ModeOff
	})
	if led, _ := srv.store.ReadPending(1); led.Mode == state.ModeOn {
		t.Fatal("second session processed while first still open")
	}

	first.Close()
	waitFor(t, "second session served", func() bool {
		led, _ := srv.store.ReadPending(1)
		return led.Mode == state.ModeOn
	})
}

func TestListenReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledd.sock")

	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	ln.Close() // leaves the socket file behind on some platforms

	srv := New(path, state.New(nil, nil), nil)
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() over stale socket error = %v", err)
	}
	srv.ln.Close()
}
