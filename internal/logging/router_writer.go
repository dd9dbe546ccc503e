package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// RouterWriter adapts the LoggerRouter to io.Writer so zerolog can emit
// straight into it.
type RouterWriter struct {
	Router *LoggerRouter
}

func (rw *RouterWriter) Write(p []byte) (n int, err error) {
	p = bytes.TrimSpace(p)
	if len(p) == 0 {
		return len(p), nil
	}

	var event map[string]any
	if err := json.Unmarshal(p, &event); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse log line: %s\n", string(p))
		return len(p), nil
	}

	level := zerolog.InfoLevel
	if levelStr, ok := event["level"].(string); ok {
		if parsedLevel, err := zerolog.ParseLevel(levelStr); err == nil {
			level = parsedLevel
		}
	}

	rw.Router.Log(level, event)
	return len(p), nil
}
