package http2

import "testing"

func TestSettingsDefaults(t *testing.T) {
	s := AcquireSettings()
	defer ReleaseSettings(s)

	if s.HeaderTableSize() != DefaultHeaderTableSize {
		t.Fatalf("HeaderTableSize() = %d, want %d", s.HeaderTableSize(), DefaultHeaderTableSize)
	}
	if !s.EnablePush() {
		t.Fatal("EnablePush() = false, want true")
	}
	if s.MaxFrameSize() != DefaultMaxFrameSize {
		t.Fatalf("MaxFrameSize() = %d, want %d", s.MaxFrameSize(), DefaultMaxFrameSize)
	}
}

func TestSettingsSerializeOnlyExplicitFields(t *testing.T) {
	s := AcquireSettings()
	defer ReleaseSettings(s)

	s.SetMaxConcurrentStreams(100)
	s.SetInitialWindowSize(1 << 18)

	frh := AcquireFrameHeader()
	defer ReleaseFrameHeader(frh)
	frh.SetBody(s)
	s.Serialize(frh)

	if len(frh.payload)%6 != 0 {
		t.Fatalf("payload length %d not a multiple of 6", len(frh.payload))
	}
	if len(frh.payload) != 12 {
		t.Fatalf("payload length = %d, want 12 (two explicit settings)", len(frh.payload))
	}
}

func TestSettingsDeserializeRejectsBadLength(t *testing.T) {
	s := AcquireSettings()
	defer ReleaseSettings(s)

	frh := AcquireFrameHeader()
	defer ReleaseFrameHeader(frh)
	frh.payload = []byte{1, 2, 3}

	err := s.Deserialize(frh)
	if err == nil {
		t.Fatal("expected error for malformed SETTINGS payload")
	}
}

func TestSettingsAckHasEmptyPayload(t *testing.T) {
	s := AcquireSettings()
	defer ReleaseSettings(s)
	s.SetAck(true)

	frh := AcquireFrameHeader()
	defer ReleaseFrameHeader(frh)
	s.Serialize(frh)

	if len(frh.payload) != 0 {
		t.Fatalf("ACK payload length = %d, want 0", len(frh.payload))
	}
	if !frh.Flags().Has(FlagAck) {
		t.Fatal("expected FlagAck set on serialized ACK")
	}
}

func TestSettingsRejectsOversizedWindow(t *testing.T) {
	s := AcquireSettings()
	defer ReleaseSettings(s)

	frh := AcquireFrameHeader()
	defer ReleaseFrameHeader(frh)

	payload := appendSetting(nil, settingInitialWindowSize, maxWindowSize+1)
	frh.payload = payload

	if err := s.Deserialize(frh); err == nil {
		t.Fatal("expected FlowControlError for oversized initial window")
	}
}
