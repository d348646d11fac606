package http2

import "testing"

func TestFlowControlStreamIDAllocation(t *testing.T) {
	fc := newFlowControl()

	first := fc.allocStreamID()
	second := fc.allocStreamID()

	if first != 1 {
		t.Fatalf("first id = %d, want 1", first)
	}
	if second != 3 {
		t.Fatalf("second id = %d, want 3", second)
	}
}

func TestFlowControlAdmitRespectsMaxConcurrentStreams(t *testing.T) {
	fc := newFlowControl()
	fc.remote.SetMaxConcurrentStreams(2)

	if !fc.admit() {
		t.Fatal("expected admit() true with no active streams")
	}

	fc.addActive()
	fc.addActive()

	if fc.admit() {
		t.Fatal("expected admit() false at the concurrency limit")
	}

	fc.removeActive()
	if !fc.admit() {
		t.Fatal("expected admit() true after a stream closes")
	}
}

func TestFlowControlSendWindowOverflow(t *testing.T) {
	fc := newFlowControl()
	fc.connSendWindow = maxWindowSize - 1

	if err := fc.incrConnSendWindow(10); err == nil {
		t.Fatal("expected overflow error")
	}

	if err := fc.incrConnSendWindow(1); err != nil {
		t.Fatalf("unexpected error at the boundary: %s", err)
	}
}

func TestFlowControlDrainRespectsAdmission(t *testing.T) {
	fc := newFlowControl()
	fc.remote.SetMaxConcurrentStreams(1)

	p1 := &pendingRequest{resultCh: make(chan *requestResult, 1)}
	p2 := &pendingRequest{resultCh: make(chan *requestResult, 1)}
	fc.enqueue(p1)
	fc.enqueue(p2)

	ready := fc.drain()
	if len(ready) != 1 {
		t.Fatalf("drained %d requests, want 1", len(ready))
	}
	if len(fc.pending) != 1 {
		t.Fatalf("%d requests left pending, want 1", len(fc.pending))
	}

	fc.removeActive()
	ready = fc.drain()
	if len(ready) != 1 {
		t.Fatalf("drained %d requests after admission freed up, want 1", len(ready))
	}
}

func TestApplyRemoteSettingsReturnsWindowDelta(t *testing.T) {
	fc := newFlowControl()

	s := AcquireSettings()
	defer ReleaseSettings(s)
	s.SetInitialWindowSize(DefaultInitialWindowSize + 1000)

	delta := fc.applyRemoteSettings(s)
	if delta != 1000 {
		t.Fatalf("delta = %d, want 1000", delta)
	}
}
