package varint

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 255, 256, 16383, 16384, 1 << 20, 1<<31 - 1}
	for _, v := range values {
		buf := Append(nil, v)
		got, n := Decode(buf)
		if n != len(buf) {
			t.Fatalf("Decode(%d) consumed %d of %d bytes", v, n, len(buf))
		}
		if got != v {
			t.Fatalf("round trip %d: got %d", v, got)
		}
	}
}

func TestRoundTripSweep(t *testing.T) {
	// Exercise every encoded length boundary rather than a mechanical grid.
	for v := uint32(1); v < 1<<31; v <<= 1 {
		for _, x := range []uint32{v - 1, v, v + 1} {
			buf := Append(nil, x)
			got, n := Decode(buf)
			if n == 0 || got != x {
				t.Fatalf("round trip %d: got %d (n=%d)", x, got, n)
			}
		}
	}
}

func TestContinuationBits(t *testing.T) {
	buf := Append(nil, 300)
	if len(buf) != 2 {
		t.Fatalf("encoding 300: want 2 bytes, got %d", len(buf))
	}
	if buf[0]&0x80 == 0 {
		t.Error("first byte of multi-byte encoding must have high bit set")
	}
	if buf[1]&0x80 != 0 {
		t.Error("last byte must have high bit clear")
	}
}

func TestDecodeTruncated(t *testing.T) {
	buf := Append(nil, 1<<20)
	if _, n := Decode(buf[:len(buf)-1]); n != 0 {
		t.Errorf("truncated input: want n=0, got %d", n)
	}
}

func TestReadFrom(t *testing.T) {
	var buf []byte
	values := []uint32{7, 129, 1 << 18, 0}
	for _, v := range values {
		buf = Append(buf, v)
	}
	r := bytes.NewReader(buf)
	for _, want := range values {
		got, err := ReadFrom(r)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("ReadFrom: want %d, got %d", want, got)
		}
	}
}
