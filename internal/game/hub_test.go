package game

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

func waitFrames(t *testing.T, conn *fakeConn, n int) [][]byte {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for conn.count() < n && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	frames := conn.snapshot()
	if len(frames) < n {
		t.Fatalf("got %d frames, want %d", len(frames), n)
	}
	return frames
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.clients == nil {
		t.Error("Hub clients map is nil")
	}
	if count := hub.GetClientCount(); count != 0 {
		t.Errorf("GetClientCount() = %v, want 0", count)
	}
}

func TestHub_PublishAndSend(t *testing.T) {
	hub := NewHub()
	a, b := &fakeConn{}, &fakeConn{}
	hub.Register("a", a)
	hub.Register("b", b)
	defer hub.Unregister("a")
	defer hub.Unregister("b")

	hub.Publish(EventOnlineUpdate, OnlineData{Online: 2})
	hub.Send("a", EventBetSuccess, BalanceData{Balance: 90})

	framesA := waitFrames(t, a, 2)
	framesB := waitFrames(t, b, 1)
	time.Sleep(10 * time.Millisecond)
	if b.count() != 1 {
		t.Errorf("targeted send reached another connection: %d frames", b.count())
	}

	var msg struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(framesA[1], &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != EventBetSuccess || string(msg.Data) != `{"balance":90}` {
		t.Errorf("frame = %s", framesA[1])
	}
	if err := json.Unmarshal(framesB[0], &msg); err != nil || msg.Type != EventOnlineUpdate {
		t.Errorf("frame = %s", framesB[0])
	}
}

func TestHub_PerConnectionOrder(t *testing.T) {
	hub := NewHub()
	conn := &fakeConn{}
	hub.Register("a", conn)
	defer hub.Unregister("a")

	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			hub.Publish(EventTimerUpdate, TimerData{Timer: i})
		} else {
			hub.Send("a", EventTimerUpdate, TimerData{Timer: i})
		}
	}

	frames := waitFrames(t, conn, 100)
	for i, frame := range frames {
		var msg struct {
			Data TimerData `json:"data"`
		}
		if err := json.Unmarshal(frame, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Data.Timer != i {
			t.Fatalf("frame %d carries timer %d", i, msg.Data.Timer)
		}
	}
}

func TestHub_UnregisterClosesConnection(t *testing.T) {
	hub := NewHub()
	conn := &fakeConn{}
	hub.Register("a", conn)

	hub.Unregister("a")
	if !conn.closed {
		t.Error("connection not closed")
	}
	if hub.GetClientCount() != 0 {
		t.Errorf("GetClientCount() = %d, want 0", hub.GetClientCount())
	}

	hub.Send("a", EventPong, nil)
	hub.Unregister("a")
	if conn.count() != 0 {
		t.Errorf("frames written after unregister: %d", conn.count())
	}
}

func TestHub_WriteErrorDoesNotBlock(t *testing.T) {
	hub := NewHub()
	conn := &fakeConn{err: errors.New("broken pipe")}
	hub.Register("a", conn)

	done := make(chan struct{})
	go func() {
		for i := 0; i < CLIENT_BUFFER_SIZE*2; i++ {
			hub.Publish(EventPong, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish() blocked on a failing connection")
	}
	hub.Unregister("a")
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n))
			hub.Register(id, &fakeConn{})
			hub.Publish(EventPong, nil)
			_ = hub.GetClientCount()
			hub.Unregister(id)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("concurrent hub access timed out")
	}
}

func BenchmarkHub_Publish(b *testing.B) {
	hub := NewHub()
	hub.Register("a", &fakeConn{})
	defer hub.Unregister("a")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.Publish(EventMultiplierUpdate, MultiplierData{Multiplier: 1.23})
	}
}
