package kiln

import "testing"

func TestMask256MarkTest(t *testing.T) {
	var m Mask256
	m.Mark(0)
	m.Mark(63)
	m.Mark(64)
	m.Mark(255)

	for _, bit := range []uint32{0, 63, 64, 255} {
		if !m.Test(bit) {
			t.Fatalf("expected bit %d set", bit)
		}
	}
	if m.Test(1) {
		t.Fatalf("expected bit 1 unset")
	}
}

func TestMask256UnmarkClearsOnlyThatBit(t *testing.T) {
	var m Mask256
	m.Mark(5)
	m.Mark(6)
	m.Unmark(5)

	if m.Test(5) {
		t.Fatalf("bit 5 should be cleared")
	}
	if !m.Test(6) {
		t.Fatalf("bit 6 should remain set")
	}
}

func TestMask256ContainsAll(t *testing.T) {
	var required, m Mask256
	required.Mark(1)
	required.Mark(2)
	m.Mark(1)
	m.Mark(2)
	m.Mark(3)

	if !m.ContainsAll(required) {
		t.Fatalf("expected m to contain required")
	}
	required.Mark(9)
	if m.ContainsAll(required) {
		t.Fatalf("expected m to not contain required after adding bit 9")
	}
}

func TestMask256ContainsAnyEmptyOtherIsFalse(t *testing.T) {
	var m Mask256
	m.Mark(1)
	var empty Mask256
	if m.ContainsAny(empty) {
		t.Fatalf("ContainsAny with an empty mask must report false")
	}
}

func TestMask256ContainsNone(t *testing.T) {
	var m, excluded Mask256
	m.Mark(1)
	excluded.Mark(2)
	if !m.ContainsNone(excluded) {
		t.Fatalf("expected no shared bits")
	}
	excluded.Mark(1)
	if m.ContainsNone(excluded) {
		t.Fatalf("expected a shared bit once excluded has bit 1")
	}
}

func TestMask256WithBitWithoutBitDoNotMutateReceiver(t *testing.T) {
	var m Mask256
	m.Mark(1)
	withExtra := m.WithBit(2)

	if m.Test(2) {
		t.Fatalf("WithBit must not mutate the receiver")
	}
	if !withExtra.Test(1) || !withExtra.Test(2) {
		t.Fatalf("WithBit result should carry both bits")
	}

	withoutFirst := withExtra.WithoutBit(1)
	if !withExtra.Test(1) {
		t.Fatalf("WithoutBit must not mutate the receiver")
	}
	if withoutFirst.Test(1) || !withoutFirst.Test(2) {
		t.Fatalf("WithoutBit result should have removed only bit 1")
	}
}

func TestXOROfBitsMatchesUnionForDistinctBits(t *testing.T) {
	bits := []uint32{3, 10, 200}
	xored := XOROfBits(bits)

	var union Mask256
	for _, b := range bits {
		union.Mark(b)
	}
	if !xored.Equals(union) {
		t.Fatalf("XOR over distinct bits should equal their union")
	}
}

func TestMask256UsableAsMapKey(t *testing.T) {
	var a, b Mask256
	a.Mark(4)
	b.Mark(4)

	m := map[Mask256]string{a: "present"}
	if m[b] != "present" {
		t.Fatalf("two masks with identical bits must compare equal as map keys")
	}
}
