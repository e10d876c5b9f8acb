package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestColoredPlainWhenColorDisabled(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	cases := []struct {
		input string
		want  string
	}{
		{"0.1.0-dev", "0.1.0-dev"},
		{"1.2.3", "1.2.3"},
		{"dev", "dev"},
		{"1.2", "1.2"},
	}
	for _, tc := range cases {
		if got := Colored(tc.input); got != tc.want {
			t.Fatalf("Colored(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestColoredAddsEscapes(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = prev }()

	got := Colored("1.2.3-rc1")
	if got == "1.2.3-rc1" {
		t.Fatalf("Colored returned plain text with colors enabled")
	}
	if want := "-rc1"; got[len(got)-len(want):] != want {
		t.Fatalf("Colored(%q) = %q, want suffix %q", "1.2.3-rc1", got, want)
	}
}

func TestVersionCanBeOverridden(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	Version = "1.2.3"
	if Version != "1.2.3" {
		t.Errorf("Version = %q, want %q", Version, "1.2.3")
	}
}
