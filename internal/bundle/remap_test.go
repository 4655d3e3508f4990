package bundle

import "testing"

func TestRemapLegacySlot(t *testing.T) {
	tests := []struct {
		platform Platform
		want     []int
	}{
		{PC, []int{0, 1, 2, slotAbsent}},
		{Xbox360, []int{0, slotAbsent, 1, 2, slotAbsent}},
		{PS3, []int{0, slotAbsent, slotAbsent, slotAbsent, 1, 2}},
	}
	for _, tt := range tests {
		if got := tt.platform.legacyBlockCount(); got != len(tt.want) {
			t.Errorf("%s: legacyBlockCount = %d, want %d", tt.platform, got, len(tt.want))
		}
		for j, want := range tt.want {
			if got := remapLegacySlot(tt.platform, j); got != want {
				t.Errorf("%s slot %d: remap = %d, want %d", tt.platform, j, got, want)
			}
		}
	}
}

func TestRemapOutOfRange(t *testing.T) {
	if remapLegacySlot(PC, 4) != slotAbsent {
		t.Error("slot beyond platform count should be absent")
	}
	if remapLegacySlot(Platform(0xDEAD), 0) != slotAbsent {
		t.Error("unknown platform should have no canonical slots")
	}
}
