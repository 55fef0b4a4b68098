package main

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/Zereker/ipc"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	root := newRootCmd()
	root.SetOut(buf)
	root.SetErr(new(bytes.Buffer))
	// Never pick up the developer's own config file.
	root.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := root.Execute()
	return buf.String(), err
}

// freeAddr returns a loopback address whose port was free a moment ago.
func freeAddr(t *testing.T, network string) string {
	t.Helper()

	switch network {
	case "udp":
		c, err := net.ListenPacket("udp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		defer c.Close()
		return c.LocalAddr().String()
	default:
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		defer l.Close()
		return l.Addr().String()
	}
}

func TestSendCommand(t *testing.T) {
	server, err := ipc.Listen("127.0.0.1:0", ipc.LoggerOption(ipc.DiscardLogger()), ipc.PollIntervalOption(5*time.Millisecond))
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Serve(ctx, ipc.HandlerFunc(func(msg *ipc.Message) error {
		_, err := server.Send(msg.Body(), msg.Addr)
		return err
	}))

	out, err := executeCommand(t, "--server", server.Addr().String(), "send", "--timeout", "2s", "hello")
	if err != nil {
		t.Fatalf("send command failed: %v", err)
	}
	if !strings.Contains(out, "reply from") || !strings.Contains(out, "hello") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestSendCommand_NoWait(t *testing.T) {
	server, err := ipc.Listen("127.0.0.1:0", ipc.LoggerOption(ipc.DiscardLogger()))
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer server.Close()

	out, err := executeCommand(t, "--server", server.Addr().String(), "send", "--no-wait", "fire")
	if err != nil {
		t.Fatalf("send command failed: %v", err)
	}
	if !strings.Contains(out, "sent 4 bytes") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestSendCommand_Timeout(t *testing.T) {
	silent, err := ipc.Listen("127.0.0.1:0", ipc.LoggerOption(ipc.DiscardLogger()))
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer silent.Close()

	out, err := executeCommand(t, "--server", silent.Addr().String(), "send", "--timeout", "100ms", "hello")
	if !errors.Is(err, ipc.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !strings.Contains(out, "no reply") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestFrameCommand(t *testing.T) {
	l, err := ipc.ListenStream("127.0.0.1:0", ipc.LoggerOption(ipc.DiscardLogger()))
	if err != nil {
		t.Fatalf("ListenStream failed: %v", err)
	}
	defer l.Close()

	out, err := executeCommand(t, "--stream", l.Addr().String(), "frame", "framed")
	if err != nil {
		t.Fatalf("frame command failed: %v", err)
	}
	if !strings.Contains(out, "sent 6 byte frame") {
		t.Errorf("unexpected output: %s", out)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msg, err := l.Poll(64)
		if err != nil {
			t.Fatalf("Poll failed: %v", err)
		}
		if msg != nil {
			if string(msg.Body()) != "framed" {
				t.Errorf("payload = %q, want framed", msg.Body())
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("frame never arrived")
}

func TestFrameCommand_NoStream(t *testing.T) {
	if _, err := executeCommand(t, "frame", "x"); err == nil {
		t.Error("expected error without a stream address")
	}
}

func TestServeCommand(t *testing.T) {
	serverAddr := freeAddr(t, "udp")
	streamAddr := freeAddr(t, "tcp")

	done := make(chan error, 1)
	go func() {
		_, err := executeCommand(t, "--server", serverAddr, "--stream", streamAddr, "serve")
		done <- err
	}()

	client, err := ipc.Bind("127.0.0.1:0", ipc.LoggerOption(ipc.DiscardLogger()), ipc.ReadTimeoutOption(100*time.Millisecond))
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	defer client.Close()

	dst, _ := net.ResolveUDPAddr("udp", serverAddr)

	// The server binds asynchronously; retry until it echoes.
	var msg *ipc.Message
	for i := 0; i < 50 && msg == nil; i++ {
		msg, err = client.SendAndWait([]byte("ping"), dst, 64)
		if err != nil && !errors.Is(err, ipc.ErrTimeout) {
			// ICMP port unreachable surfaces as a read error before bind.
			time.Sleep(20 * time.Millisecond)
		}
	}
	if msg == nil || string(msg.Body()) != "ping" {
		t.Fatalf("no echo from serve: %v, %v", msg, err)
	}

	// A peer declaring an oversized frame must not bring either endpoint down.
	bad, err := net.Dial("tcp", streamAddr)
	if err != nil {
		t.Fatalf("dial stream: %v", err)
	}
	defer bad.Close()
	if _, err := bad.Write([]byte{0xff, 0xff, 0xff, 0xff}); err != nil {
		t.Fatalf("write stream: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	client.SetReadTimeout(2 * time.Second)
	msg, err = client.SendAndWait([]byte("still there"), dst, 64)
	if err != nil {
		t.Fatalf("echo after bad stream peer: %v", err)
	}
	if string(msg.Body()) != "still there" {
		t.Errorf("payload = %q", msg.Body())
	}

	if _, err := client.Send([]byte("exit"), dst); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop on exit")
	}
}
