package cmd

import "github.com/fatih/color"

// Status symbols printed ahead of CLI result lines, grounded on the
// teacher's okStatus/warnStatus/failStatus convention in its root command.
var (
	okStatus   = color.New(color.FgGreen, color.Bold).SprintFunc()("√") // √
	failStatus = color.New(color.FgRed, color.Bold).SprintFunc()("×")   // ×
)
