package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
)

func TestProbe_ServerReady(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := grpc.NewServer()
	go srv.Serve(ln)
	defer srv.Stop()

	if err := Probe(ln.Addr().String(), 5*time.Second); err != nil {
		t.Errorf("Probe() = %v, want nil", err)
	}
}

func TestProbe_NoServer(t *testing.T) {
	// Grab a free port and release it so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	start := time.Now()
	err = Probe(addr, 500*time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Probe() = %v, want context.DeadlineExceeded", err)
	}
	if elapsed < 400*time.Millisecond {
		t.Errorf("Probe returned after %v, want a bounded wait near the timeout", elapsed)
	}
}

func TestWaitForReady_CanceledContext(t *testing.T) {
	conn, err := DialSimple("127.0.0.1:1")
	if err != nil {
		t.Fatalf("DialSimple: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitForReady(ctx, conn); !errors.Is(err, context.Canceled) {
		t.Errorf("WaitForReady() = %v, want context.Canceled", err)
	}
}

func TestWaitForReady_ClosedConnection(t *testing.T) {
	conn, err := DialSimple("127.0.0.1:1")
	if err != nil {
		t.Fatalf("DialSimple: %v", err)
	}
	conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := WaitForReady(ctx, conn); err == nil {
		t.Error("WaitForReady on closed connection should fail")
	}
}
