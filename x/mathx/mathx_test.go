package mathx

import "testing"

func TestClampAndBetween(t *testing.T) {
	if got := Clamp(150.0, 0, 100); got != 100 {
		t.Fatalf("Clamp high = %v", got)
	}
	if got := Clamp(-3, 10, 0); got != 0 {
		t.Fatalf("Clamp swapped bounds = %v", got)
	}
	if !Between(float32(-40), -40, 85) || Between(float32(85.1), -40, 85) {
		t.Fatalf("Between edges wrong")
	}
	if Min(3, 4) != 3 || Max(3, 4) != 4 {
		t.Fatalf("Min/Max wrong")
	}
}

func TestCeilDivAndScale(t *testing.T) {
	if got := CeilDiv(uint(320), uint(32)); got != 10 {
		t.Fatalf("CeilDiv exact = %d", got)
	}
	if got := CeilDiv(uint(160), uint(51)); got != 4 {
		t.Fatalf("CeilDiv rounded = %d", got)
	}
	if got := CeilDiv(uint(5), uint(0)); got != 0 {
		t.Fatalf("CeilDiv by zero = %d", got)
	}
	if got := Scale(50, 0xFFFF); got != 0x7FFF {
		t.Fatalf("Scale 50%% = %#x", got)
	}
	if got := Scale(250, 1000); got != 1000 {
		t.Fatalf("Scale clamps = %d", got)
	}
}
