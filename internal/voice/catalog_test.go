package voice

import "testing"

func TestCatalog_Contents(t *testing.T) {
	want := map[string]Gender{
		"Kore":   Female,
		"Puck":   Male,
		"Zephyr": Female,
		"Charon": Female,
		"Fenrir": Male,
	}
	all := All()
	if len(all) != len(want) {
		t.Fatalf("expected %d voices, got %d", len(want), len(all))
	}
	if all[0].ID != DefaultID {
		t.Errorf("first voice should be the default %s, got %s", DefaultID, all[0].ID)
	}
	for _, o := range all {
		g, ok := want[o.ID]
		if !ok {
			t.Errorf("unexpected voice %s", o.ID)
			continue
		}
		if o.Gender != g {
			t.Errorf("%s gender: got %s, want %s", o.ID, o.Gender, g)
		}
		if o.Accent != "English (US), Multilingual" {
			t.Errorf("%s accent: got %q", o.ID, o.Accent)
		}
	}
}

func TestAll_ReturnsCopy(t *testing.T) {
	a := All()
	a[0].Name = "mutated"
	if o, _ := Find(a[0].ID); o.Name == "mutated" {
		t.Fatal("All should not expose the underlying table")
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("Puck"); got != "Puck" {
		t.Errorf("DisplayName(Puck) = %q", got)
	}
	if got := DisplayName("Nobody"); got != UnknownName {
		t.Errorf("DisplayName(Nobody) = %q, want %q", got, UnknownName)
	}
	if Known("Nobody") {
		t.Error("Known(Nobody) should be false")
	}
}
