package gadget

import (
	"regexp"
	"testing"
)

var probabilityPattern = regexp.MustCompile(`^(\d|[1-9]\d)% success probability$`)

func TestMissionProbability_Format(t *testing.T) {
	for range 200 {
		got := MissionProbability(nil)
		if !probabilityPattern.MatchString(got) {
			t.Fatalf("MissionProbability() = %q, want 0-99%% format", got)
		}
	}
}

func TestMissionProbability_Bounds(t *testing.T) {
	tests := []struct {
		roll int
		want string
	}{
		{0, "0% success probability"},
		{99, "99% success probability"},
	}
	for _, tt := range tests {
		got := MissionProbability(func(n int) int {
			if n != 100 {
				t.Errorf("intn called with %d, want 100", n)
			}
			return tt.roll
		})
		if got != tt.want {
			t.Errorf("MissionProbability() = %q, want %q", got, tt.want)
		}
	}
}

func TestDecorate_RollsPerItem(t *testing.T) {
	rolls := 0
	seq := func(int) int {
		rolls++
		return rolls
	}

	out := decorate([]Gadget{{ID: "a"}, {ID: "b"}}, seq)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].MissionProbability == out[1].MissionProbability {
		t.Errorf("each item should get its own roll, both got %q", out[0].MissionProbability)
	}
	if out[1].ID != "b" {
		t.Errorf("order not preserved: %q", out[1].ID)
	}
}
