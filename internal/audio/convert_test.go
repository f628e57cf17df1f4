package audio

import (
	"bytes"
	"math"
	"testing"
)

func TestBytesToInt16_LittleEndian(t *testing.T) {
	out := BytesToInt16([]byte{0x34, 0x12, 0xff, 0xff})
	if len(out) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(out))
	}
	if out[0] != 0x1234 {
		t.Errorf("expected 0x1234, got %#x", out[0])
	}
	if out[1] != -1 {
		t.Errorf("expected -1, got %d", out[1])
	}
}

func TestBytesToInt16_OddLength(t *testing.T) {
	out := BytesToInt16([]byte{0x01, 0x00, 0x7f})
	if len(out) != 1 {
		t.Fatalf("trailing byte should be dropped, got %d samples", len(out))
	}
}

func TestInt16ToBytes_LittleEndian(t *testing.T) {
	out := Int16ToBytes([]int16{0x1234})
	if !bytes.Equal(out, []byte{0x34, 0x12}) {
		t.Fatalf("unexpected bytes % x", out)
	}
}

func TestBytesInt16_Roundtrip(t *testing.T) {
	in := []int16{0, 1, -1, math.MaxInt16, math.MinInt16, 12345}
	got := BytesToInt16(Int16ToBytes(in))
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], in[i])
		}
	}
}

func TestDownmixStereo(t *testing.T) {
	stereo := Int16ToBytes([]int16{
		100, 300,
		math.MaxInt16, math.MaxInt16,
		math.MinInt16, math.MinInt16,
		-50, 50,
	})
	// 多一个不完整的帧
	stereo = append(stereo, 0x01, 0x00)

	mono := BytesToInt16(DownmixStereo(stereo))
	want := []int16{200, math.MaxInt16, math.MinInt16, 0}
	if len(mono) != len(want) {
		t.Fatalf("expected %d frames, got %d", len(want), len(mono))
	}
	for i := range want {
		if mono[i] != want[i] {
			t.Errorf("frame %d: got %d, want %d", i, mono[i], want[i])
		}
	}
}
