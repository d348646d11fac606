package http2

import "testing"

func TestHPackEncodeDecodeRoundTrip(t *testing.T) {
	enc := AcquireHPack()
	dec := AcquireHPack()
	defer ReleaseHPack(enc)
	defer ReleaseHPack(dec)

	fields := []HeaderField{
		{Name: StringMethod, Value: "GET"},
		{Name: StringScheme, Value: "https"},
		{Name: StringPath, Value: "/index.html"},
		{Name: "user-agent", Value: "kadabra-test"},
	}

	block := enc.Encode(nil, fields)

	got, err := dec.Decode(block)
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}
	if len(got) != len(fields) {
		t.Fatalf("decoded %d fields, want %d", len(got), len(fields))
	}
	for i, f := range fields {
		if got[i].Name != f.Name || got[i].Value != f.Value {
			t.Fatalf("field %d = %+v, want %+v", i, got[i], f)
		}
	}
}

func TestHeaderFieldIsPseudo(t *testing.T) {
	if !(HeaderField{Name: ":path"}).IsPseudo() {
		t.Fatal(":path should be pseudo")
	}
	if (HeaderField{Name: "content-type"}).IsPseudo() {
		t.Fatal("content-type should not be pseudo")
	}
}
