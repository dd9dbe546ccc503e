package logging

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

type ConsoleSink struct{}

func (c *ConsoleSink) Write(level zerolog.Level, event map[string]any) {
	// Extract fields safely
	stepID := getString(event, "step_id")
	system := getString(event, "system")
	stage := getString(event, "stage")
	detail := getString(event, "detail")
	msg := getString(event, "message")
	errorMsg := getString(event, "error")
	timestamp := getString(event, "time")

	// Define colors per log level
	levelColor := map[zerolog.Level]*color.Color{
		zerolog.DebugLevel: color.New(color.FgCyan),
		zerolog.InfoLevel:  color.New(color.FgGreen),
		zerolog.WarnLevel:  color.New(color.FgYellow),
		zerolog.ErrorLevel: color.New(color.FgRed),
		zerolog.FatalLevel: color.New(color.FgRed, color.Bold),
	}

	lc, ok := levelColor[level]
	if !ok {
		lc = color.New(color.FgWhite)
	}
	levelFmt := lc.SprintFunc()
	timestampFmt := color.New(color.FgWhite).SprintFunc()

	label := stepID
	if label == "" {
		label = stage
	}
	if label == "" {
		label = "run"
	}
	if system != "" {
		label = label + "/" + system
	}

	switch {
	case errorMsg != "":
		fmt.Printf("[%s %s] %s: %s\n",
			levelFmt(strings.ToUpper(level.String())),
			timestampFmt(timestamp),
			color.RedString(label),
			errorMsg)

	case detail != "" && msg != "":
		fmt.Printf("[%s %s] %s: %s (%s)\n",
			levelFmt(strings.ToUpper(level.String())),
			timestampFmt(timestamp),
			color.CyanString(label),
			msg,
			detail)

	case msg != "":
		fmt.Printf("[%s %s] %s: %s\n",
			levelFmt(strings.ToUpper(level.String())),
			timestampFmt(timestamp),
			color.CyanString(label),
			msg)

	default:
		// Fallback: print entire event
		jsonStr, _ := json.MarshalIndent(event, "", "  ")
		fmt.Printf("[%s %s] %s: %s\n",
			levelFmt(strings.ToUpper(level.String())),
			timestampFmt(timestamp),
			color.CyanString(label),
			string(jsonStr))
	}
}

// getString safely extracts a string from a map
func getString(m map[string]any, key string) string {
	if val, ok := m[key]; ok && val != nil {
		return fmt.Sprintf("%v", val)
	}
	return ""
}

// Close implements the io.Closer interface. We don't want to close os.Stdout,
// this is a no-op.
func (c *ConsoleSink) Close() error {
	return nil
}
