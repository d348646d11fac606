package http2

import "testing"

func TestStreamHalfCloseLocalThenRemote(t *testing.T) {
	s := newStream(1, DefaultInitialWindowSize, DefaultInitialWindowSize)
	s.state = StreamOpen

	s.halfCloseLocal()
	if s.State() != StreamHalfClosedLocal {
		t.Fatalf("state = %s, want half-closed(local)", s.State())
	}

	s.halfCloseRemote()
	if s.State() != StreamClosed {
		t.Fatalf("state = %s, want closed", s.State())
	}
}

func TestStreamHalfCloseRemoteThenLocal(t *testing.T) {
	s := newStream(1, DefaultInitialWindowSize, DefaultInitialWindowSize)
	s.state = StreamOpen

	s.halfCloseRemote()
	if s.State() != StreamHalfClosedRemote {
		t.Fatalf("state = %s, want half-closed(remote)", s.State())
	}

	s.halfCloseLocal()
	if s.State() != StreamClosed {
		t.Fatalf("state = %s, want closed", s.State())
	}
}

func TestStreamSendWindowOverflow(t *testing.T) {
	s := newStream(1, maxWindowSize-1, 0)

	if err := s.IncrSendWindow(10); err == nil {
		t.Fatal("expected FlowControlError on overflow")
	}
	if err := s.IncrSendWindow(1); err != nil {
		t.Fatalf("unexpected error at the boundary: %s", err)
	}
}

func TestStreamHeaderFragmentAccumulation(t *testing.T) {
	s := newStream(1, 0, 0)

	s.appendHeaderFragment([]byte("abc"), false)
	if !s.awaitingContinuation {
		t.Fatal("expected awaitingContinuation after a fragment without END_HEADERS")
	}

	s.appendHeaderFragment([]byte("def"), true)
	if s.awaitingContinuation {
		t.Fatal("expected awaitingContinuation cleared after END_HEADERS")
	}
	if string(s.headerBlock) != "abcdef" {
		t.Fatalf("headerBlock = %q, want %q", s.headerBlock, "abcdef")
	}
}

func TestStreamRegistry(t *testing.T) {
	r := newStreamRegistry()

	s1 := newStream(1, 0, 0)
	s3 := newStream(3, 0, 0)
	r.put(s1)
	r.put(s3)

	if r.len() != 2 {
		t.Fatalf("len() = %d, want 2", r.len())
	}
	if r.get(1) != s1 {
		t.Fatal("get(1) did not return s1")
	}

	r.del(1)
	if r.get(1) != nil {
		t.Fatal("expected stream 1 to be gone after del")
	}
	if r.len() != 1 {
		t.Fatalf("len() = %d, want 1", r.len())
	}
}
