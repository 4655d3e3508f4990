package bundle

import (
	"hash/crc32"
	"strings"
	"testing"
)

func TestHashResourceNameIsCaseInsensitive(t *testing.T) {
	names := []string{
		"GRAPHICS/CAR.DAT",
		"graphics/car.dat",
		"Graphics/Car.Dat",
	}
	want := crc32.ChecksumIEEE([]byte("graphics/car.dat"))
	for _, name := range names {
		if got := HashResourceName(name); got != want {
			t.Errorf("HashResourceName(%q) = %#08x, want %#08x", name, got, want)
		}
	}
}

func TestHashResourceNameUpperLowerEquivalence(t *testing.T) {
	for _, name := range []string{"", "a", "VEHICLES/XUS_BIKE", "traffic{data}~42"} {
		if HashResourceName(name) != HashResourceName(strings.ToUpper(name)) {
			t.Errorf("hash of %q differs from its uppercase form", name)
		}
	}
}

func TestHashResourceNameLeavesNonLettersAlone(t *testing.T) {
	// Only ASCII letters fold; bytes outside 'A'..'Z' hash as-is.
	if HashResourceName("{}[]") != crc32.ChecksumIEEE([]byte("{}[]")) {
		t.Error("non-letter bytes were altered before hashing")
	}
}
