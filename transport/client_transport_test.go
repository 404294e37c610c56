package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
)

// startRep binds a REP socket on an ephemeral port. handle returns the reply for each
// request; a nil reply means "never answer".
func startRep(t *testing.T, handle func([]byte) []byte) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	rep := zmq4.NewRep(ctx)
	if err := rep.Listen("tcp://127.0.0.1:0"); err != nil {
		cancel()
		t.Fatalf("listen failed: %v", err)
	}
	t.Cleanup(func() {
		rep.Close()
		cancel()
	})

	go func() {
		for {
			msg, err := rep.Recv()
			if err != nil {
				return
			}
			reply := handle(msg.Bytes())
			if reply == nil {
				continue
			}
			if err := rep.Send(zmq4.NewMsg(reply)); err != nil {
				return
			}
		}
	}()

	return "tcp://" + rep.Addr().String()
}

func echo(req []byte) []byte {
	return append([]byte("echo:"), req...)
}

func TestEndpoint(t *testing.T) {
	if got := Endpoint("localhost", 5050); got != "tcp://localhost:5050" {
		t.Fatalf("expect tcp://localhost:5050, got %s", got)
	}
	if got := Endpoint("::1", 5050); got != "tcp://[::1]:5050" {
		t.Fatalf("expect tcp://[::1]:5050, got %s", got)
	}
}

func TestReqTransportSerial(t *testing.T) {
	endpoint := startRep(t, echo)

	tr, err := DialReq(endpoint, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	for i := 0; i < 3; i++ {
		req := []byte(fmt.Sprintf("req-%d", i))
		resp, err := tr.RoundTrip(context.Background(), req)
		if err != nil {
			t.Fatalf("round trip %d failed: %v", i, err)
		}
		if want := echo(req); !bytes.Equal(resp, want) {
			t.Fatalf("expect %s, got %s", want, resp)
		}
	}
}

// Concurrent callers are serialised: every caller gets the reply to its own request.
func TestReqTransportConcurrent(t *testing.T) {
	endpoint := startRep(t, echo)

	tr, err := DialReq(endpoint, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			req := []byte(fmt.Sprintf("req-%d", n))
			resp, err := tr.RoundTrip(context.Background(), req)
			if err != nil {
				t.Errorf("round trip %d failed: %v", n, err)
				return
			}
			if want := echo(req); !bytes.Equal(resp, want) {
				t.Errorf("expect %s, got %s", want, resp)
			}
		}(i)
	}
	wg.Wait()
}

func TestReqTransportCancelBreaks(t *testing.T) {
	endpoint := startRep(t, func([]byte) []byte { return nil })

	tr, err := DialReq(endpoint, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = tr.RoundTrip(ctx, []byte("lost"))
	if !errors.Is(err, ErrBroken) {
		t.Fatalf("expect ErrBroken, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expect DeadlineExceeded in chain, got %v", err)
	}

	var terr *Error
	if !errors.As(err, &terr) || terr.Op != "recv" {
		t.Fatalf("expect recv *Error, got %#v", err)
	}

	// The socket still owes a reply, so the transport refuses further requests.
	_, err = tr.RoundTrip(context.Background(), []byte("next"))
	if !errors.Is(err, ErrBroken) {
		t.Fatalf("expect ErrBroken on reuse, got %v", err)
	}
}

func TestReqTransportClosed(t *testing.T) {
	endpoint := startRep(t, echo)

	tr, err := DialReq(endpoint, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}

	_, err = tr.RoundTrip(context.Background(), []byte("late"))
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expect ErrClosed, got %v", err)
	}
}

func TestDialReqNoListener(t *testing.T) {
	// Port 1 is reserved and nothing listens on it in the test environment
	_, err := DialReq("tcp://127.0.0.1:1", 10*time.Millisecond)
	var terr *Error
	if !errors.As(err, &terr) || terr.Op != "dial" {
		t.Fatalf("expect dial *Error, got %v", err)
	}
	if terr.Endpoint != "tcp://127.0.0.1:1" {
		t.Fatalf("expect endpoint in error, got %s", terr.Endpoint)
	}
}

// A reply that arrived before ctx ended must be returned, however select picks.
func TestAwaitReplyPrefersReply(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 200; i++ {
		done := make(chan recvResult, 1)
		done <- recvResult{msg: zmq4.NewMsg([]byte("reply"))}

		r, err := awaitReply(ctx, done)
		if err != nil {
			t.Fatalf("iteration %d: expect the reply, got %v", i, err)
		}
		if string(r.msg.Bytes()) != "reply" {
			t.Fatalf("iteration %d: unexpected reply %q", i, r.msg.Bytes())
		}
	}
}

func TestAwaitReplyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := awaitReply(ctx, make(chan recvResult))
	if !errors.Is(err, ErrBroken) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expect ErrBroken wrapping context.Canceled, got %v", err)
	}
}
