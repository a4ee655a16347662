// Package dockerfile renders build template steps into Dockerfile text.
// This is part of the Functional Core - all functions are pure with no I/O.
package dockerfile

import "strings"

// FileName is the name the rendered Dockerfile is written under at the root
// of a source tree.
const FileName = "Dockerfile"

// StepSeparator separates consecutive instruction blocks.
const StepSeparator = "\n\n"

// Render joins steps with a blank line between them. Nothing is added
// before, after or between the steps; an empty list renders as an empty
// document and is left for the build to reject.
func Render(steps []string) string {
	return strings.Join(steps, StepSeparator)
}
