package types

import "testing"

func TestChannels_CanonicalOrder(t *testing.T) {
	got := Channels()
	want := []Channel{ChannelRed, ChannelBlue, ChannelGreen, ChannelYellow}
	if len(got) != len(want) {
		t.Fatalf("Channels() returned %d channels, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Channels()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestChannel_IsTarget(t *testing.T) {
	for _, c := range Channels() {
		if c.IsTarget() != (c == ChannelGreen) {
			t.Errorf("%s.IsTarget() = %v", c, c.IsTarget())
		}
	}
}

func TestParseChannel(t *testing.T) {
	if _, err := ParseChannel("magenta"); err == nil {
		t.Error("ParseChannel(magenta) should fail")
	}
	c, err := ParseChannel("Yellow")
	if err != nil {
		t.Fatalf("ParseChannel(Yellow): %v", err)
	}
	if c != ChannelYellow {
		t.Errorf("ParseChannel(Yellow) = %q, want %q", c, ChannelYellow)
	}
}

func TestSampleKey_Stem(t *testing.T) {
	k := SampleKey{PlateID: "1", Position: "A1", Sample: "2"}
	if got := k.Stem(); got != "1_A1_2_" {
		t.Errorf("Stem() = %q, want %q", got, "1_A1_2_")
	}

	k.ZSlice = "z01"
	if got := k.Stem(); got != "1_A1_2_z01_" {
		t.Errorf("Stem() with z tag = %q, want %q", got, "1_A1_2_z01_")
	}
}

func TestSampleRecord_Validate(t *testing.T) {
	valid := SampleRecord{
		PlateID:  "1",
		Position: "A1",
		Sample:   "1",
		Antibody: "HPA000992",
		Locator:  SourceLocator{BaseURL: "https://images.example.org"},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	missing := valid
	missing.Position = ""
	missing.Antibody = ""
	err := missing.Validate()
	if err == nil {
		t.Fatal("record missing position and antibody should be rejected")
	}

	// Local-copy records do not need an antibody: the path is resolved
	// against the archive layout, not a remote URL.
	local := valid
	local.Antibody = ""
	local.Locator = SourceLocator{LocalDir: "/data/crate"}
	if err := local.Validate(); err != nil {
		t.Errorf("local record without antibody rejected: %v", err)
	}
}

func TestSourceLocator_Validate(t *testing.T) {
	if err := (SourceLocator{}).Validate(); err == nil {
		t.Error("empty locator should be rejected")
	}
	both := SourceLocator{BaseURL: "https://x", LocalDir: "/y"}
	if err := both.Validate(); err == nil {
		t.Error("locator with both fields should be rejected")
	}
}
