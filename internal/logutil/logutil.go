// Package logutil renders seqhound's console output: leveled log lines and
// a specially formatted line for each emitted correlation match.
package logutil

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// VerbosityLevel represents the logging verbosity.
type VerbosityLevel int

const (
	// NormalLevel shows standard output (default).
	NormalLevel VerbosityLevel = iota
	// VerboseLevel shows additional details and timestamps.
	VerboseLevel
)

// ANSI color codes.
const (
	colorReset       = "\033[0m"
	colorRed         = "\033[91m"
	colorGreen       = "\033[92m"
	colorYellow      = "\033[93m"
	colorOrange      = "\033[38;5;208m"
	colorCyan        = "\033[96m"
	colorGray        = "\033[90m"
	colorDimGray     = "\033[38;5;240m" // very dim gray for timestamps
	colorContextGray = "\033[38;5;8m"   // dim gray for context
	colorBrightWhite = "\033[97m"       // bright white for rule IDs
	colorNormalWhite = "\033[37m"       // normal white for rule names
	colorBold        = "\033[1m"
)

var (
	// CurrentVerbosity is the current verbosity level.
	CurrentVerbosity = NormalLevel
	// ShowTimestamps controls whether timestamps are shown.
	ShowTimestamps = false

	checkMark = colorGreen + "✓" + colorReset
	warnMark  = colorYellow + "⚠" + colorReset
	crossMark = colorRed + "✗" + colorReset
	infoMark  = colorGray + "ℹ" + colorReset

	severityIcons = map[string]string{
		"critical": "🔴",
		"high":     "🟠",
		"medium":   "🟡",
		"low":      "🟢",
		"info":     "🔵",
	}

	severityColors = map[string]string{
		"critical": colorRed,
		"high":     colorOrange,
		"medium":   colorYellow,
		"low":      colorGreen,
		"info":     colorCyan,
	}
)

func init() {
	log.SetFlags(0)
	log.SetOutput(os.Stderr)
}

// SetVerbosity sets the current verbosity level.
func SetVerbosity(level VerbosityLevel) {
	CurrentVerbosity = level
}

// SetTimestamps enables or disables timestamps.
func SetTimestamps(enabled bool) {
	ShowTimestamps = enabled
}

func timestamp() string {
	if ShowTimestamps {
		return colorDimGray + time.Now().Format("15:04:05") + colorReset + " "
	}
	return ""
}

func Info(format string, args ...any) {
	if CurrentVerbosity < NormalLevel {
		return
	}
	log.Println(timestamp() + infoMark + " " + fmt.Sprintf(format, args...))
}

func Warn(format string, args ...any) {
	log.Println(timestamp() + warnMark + " " + fmt.Sprintf(format, args...))
}

func Error(format string, args ...any) {
	log.Println(timestamp() + crossMark + " " + fmt.Sprintf(format, args...))
}

func Success(format string, args ...any) {
	if CurrentVerbosity < NormalLevel {
		return
	}
	log.Println(timestamp() + checkMark + " " + fmt.Sprintf(format, args...))
}

// Verbose logs a message only in verbose mode.
func Verbose(format string, args ...any) {
	if CurrentVerbosity < VerboseLevel {
		return
	}
	log.Println(timestamp() + infoMark + " " + fmt.Sprintf(format, args...))
}

func severityLabel(severity string) string {
	s := strings.ToLower(severity)
	if s == "" {
		s = "info"
	}
	color, ok := severityColors[s]
	if !ok {
		color = severityColors["info"]
		s = "info"
	}
	icon := severityIcons[s]
	if icon == "" {
		icon = "•"
	}
	return icon + " " + color + colorBold + strings.ToUpper(s) + colorReset
}

// Match renders one emitted correlation match: a severity-colored header
// line naming the rule, followed (in verbose mode only) by the fully
// rendered match line as context.
func Match(ruleID, severity, ruleName, formatted string) {
	if CurrentVerbosity >= VerboseLevel {
		fmt.Println()
	}

	ts := timestamp()
	sev := severityLabel(severity)

	s := strings.ToLower(severity)
	sevColor, ok := severityColors[s]
	if !ok {
		sevColor = severityColors["info"]
	}

	ruleIDStyled := colorBrightWhite + colorBold + ruleID + colorReset
	colonStyled := sevColor + colorBold + ":" + colorReset

	spacesNeeded := 12 - len(ruleID) - 1
	if spacesNeeded < 0 {
		spacesNeeded = 0
	}
	ruleIDDisplay := ruleIDStyled + colonStyled + strings.Repeat(" ", spacesNeeded)

	nameStyled := colorNormalWhite + ruleName + colorReset

	log.Println(fmt.Sprintf("%s%s %s %s", ts, sev, ruleIDDisplay, nameStyled))

	if CurrentVerbosity >= VerboseLevel {
		indent := "         "
		if ShowTimestamps {
			indent = "          "
		}
		log.Printf("%s%s└─ %s%s\n", indent, colorContextGray, formatted, colorReset)
	}
}

// CompileError logs a rule-load failure, naming the offending rule file.
func CompileError(path string, err error) {
	Error("failed to load rules from %s: %v", path, err)
}

// Reload logs a successful hot-reload swap.
func Reload(path string, ruleCount int) {
	Success("reloaded %d rule(s) from %s", ruleCount, path)
}
