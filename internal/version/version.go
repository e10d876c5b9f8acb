package version

import (
	"strings"

	"github.com/fatih/color"
)

// Build metadata, overridable via -ldflags "-X importwaterfall/internal/version.Version=...".
var (
	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// Colored renders v with one color per semantic version component. Any
// pre-release suffix is left plain. Colors follow color.NoColor.
func Colored(v string) string {
	core, suffix, _ := strings.Cut(v, "-")
	parts := strings.SplitN(core, ".", 3)
	if len(parts) != 3 {
		return v
	}
	// built per call so color.NoColor changes after init are honored
	majorColor := color.New(color.FgYellow, color.Bold)
	minorColor := color.New(color.FgGreen, color.Bold)
	patchColor := color.New(color.FgBlue, color.Bold)
	out := majorColor.Sprint(parts[0]) + "." + minorColor.Sprint(parts[1]) + "." + patchColor.Sprint(parts[2])
	if suffix != "" {
		out += "-" + suffix
	}
	return out
}
