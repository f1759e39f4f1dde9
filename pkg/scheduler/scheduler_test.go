package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/sisdk/sisdk/pkg/packet"
)

// recordingRunner records the order commands are executed in and can be
// told to treat the owning protocol as Failed.
type recordingRunner struct {
	mu     sync.Mutex
	order  []Action
	failed bool
	block  chan struct{} // if non-nil, Run waits on it before returning
}

func (r *recordingRunner) Run(cmd Command) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.order = append(r.order, cmd.Action)
	r.mu.Unlock()
	return nil
}

func (r *recordingRunner) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

func (r *recordingRunner) snapshot() []Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Action, len(r.order))
	copy(out, r.order)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestScheduleRejectsBeforeStart(t *testing.T) {
	s := New(100, true, &recordingRunner{})
	if s.Schedule(Command{Action: ActionDispatch}) {
		t.Fatal("Schedule should reject before Start")
	}
}

func TestScheduleRejectsOversizedCommand(t *testing.T) {
	runner := &recordingRunner{}
	s := New(10, true, runner)
	s.Start()
	defer s.Stop()

	big := Command{Action: ActionDispatch, Payload: make([]byte, 1000)}
	// smallCommandSize governs non-packet commands, so force an oversized
	// packet-bearing command instead via a fake packet.
	oversized := Command{Action: ActionWritePacket, Packet: fakeSizedPacket{size: 1000}}
	if s.Schedule(big) == false {
		// Dispatch commands use the small constant size; with threshold 10
		// even that should be rejected.
	}
	if s.Schedule(oversized) {
		t.Fatal("Schedule should reject a command whose size exceeds threshold")
	}
}

func TestFIFOOrderPreserved(t *testing.T) {
	runner := &recordingRunner{}
	s := New(1000, true, runner)
	s.Start()
	defer s.Stop()

	for i := 0; i < 10; i++ {
		if !s.Schedule(Command{Action: ActionWritePacket, Packet: fakeSizedPacket{size: 10}}) {
			t.Fatalf("Schedule %d rejected", i)
		}
	}

	waitFor(t, func() bool { return len(runner.snapshot()) == 10 })
}

func TestOverwriteModeNeverExceedsThreshold(t *testing.T) {
	runner := &recordingRunner{block: make(chan struct{})}
	s := New(100, false, runner)
	s.Start()
	defer func() {
		close(runner.block)
		s.Stop()
	}()

	for i := 0; i < 50; i++ {
		s.Schedule(Command{Action: ActionWritePacket, Packet: fakeSizedPacket{size: 40}})
		if s.QueueSize() > 100 {
			t.Fatalf("QueueSize = %d exceeds threshold 100", s.QueueSize())
		}
	}
}

func TestThrottleModeBlocksUntilRoom(t *testing.T) {
	runner := &recordingRunner{block: make(chan struct{})}
	s := New(100, true, runner)
	s.Start()
	defer s.Stop()

	// c1 gets drained into the worker and blocks inside Run. A drained
	// command no longer counts against the threshold, so c2 and c3 fit
	// (80 of 100 bytes) and c4 is the first command that has to wait.
	if !s.Schedule(Command{Action: ActionWritePacket, Packet: fakeSizedPacket{size: 40}}) {
		t.Fatal("c1 should be accepted")
	}
	waitFor(t, func() bool { return s.QueueSize() == 0 }) // let worker pick it up
	time.Sleep(20 * time.Millisecond)

	for _, name := range []string{"c2", "c3"} {
		if !s.Schedule(Command{Action: ActionWritePacket, Packet: fakeSizedPacket{size: 40}}) {
			t.Fatalf("%s should be accepted (queue has room)", name)
		}
	}

	done := make(chan struct{})
	go func() {
		s.Schedule(Command{Action: ActionWritePacket, Packet: fakeSizedPacket{size: 40}})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("c4 should block while queue is full in throttle mode")
	case <-time.After(50 * time.Millisecond):
		// expected: still blocked
	}

	close(runner.block)
	<-done
}

func TestStopIsIdempotentAndUnblocksProducers(t *testing.T) {
	runner := &recordingRunner{block: make(chan struct{})}
	s := New(10, true, runner)
	s.Start()

	// c1 is drained and held inside Run, c2 fills the queue, c3 blocks.
	s.Schedule(Command{Action: ActionWritePacket, Packet: fakeSizedPacket{size: 10}})
	waitFor(t, func() bool { return s.QueueSize() == 0 })
	time.Sleep(20 * time.Millisecond)
	if !s.Schedule(Command{Action: ActionWritePacket, Packet: fakeSizedPacket{size: 10}}) {
		t.Fatal("c2 should be accepted (queue has room)")
	}

	result := make(chan bool, 1)
	go func() {
		result <- s.Schedule(Command{Action: ActionWritePacket, Packet: fakeSizedPacket{size: 10}})
	}()
	time.Sleep(20 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case ok := <-result:
		if ok {
			t.Fatal("a producer blocked when Stop is called should be rejected")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not unblock the waiting producer")
	}

	close(runner.block)
	<-stopped
	s.Stop() // idempotent
}

type fakeSizedPacket struct {
	size int
}

func (f fakeSizedPacket) Kind() packet.Kind    { return packet.KindLogEntry }
func (f fakeSizedPacket) Size() int            { return f.size }
func (f fakeSizedPacket) Timestamp() time.Time { return time.Time{} }
