package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"fraatlas/pkg/logging"
)

// key=value or key="value with \"escapes\""
var logRegex = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"((?:[^"\\]|\\.)*)"|([^ ]+))`)

// Session attributes from the filter loop, always shown and in this order.
var sessionKeys = []string{"category", "seq", "latest", "key", "state", "district"}

const (
	maxParamLen = 20
	maxErrorLen = 60
)

// LatestLogResponse is the body of GET /api/log/latest. Recent is only set
// when the request asks for ?n= lines.
type LatestLogResponse struct {
	Log    string   `json:"log"`
	Recent []string `json:"recent,omitempty"`
}

// handleLatestLog returns the last server log line, formatted for the status
// bar, and optionally the n most recent ones (oldest first).
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	resp := LatestLogResponse{Log: formatLogLine(logging.Activity.Last())}

	if q := r.URL.Query().Get("n"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			http.Error(w, "n must be a non-negative integer", http.StatusBadRequest)
			return
		}
		for _, line := range logging.Activity.Recent(min(n, logging.DefaultActivitySize)) {
			resp.Recent = append(resp.Recent, formatLogLine(line))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to write log response", "error", err)
	}
}

// formatLogLine turns a slog text record into a status line:
//
//	HH:MM:SS [WARN ]msg (session attrs, other attrs)
//
// Session attributes keep their full value. Errors are shortened, other
// values longer than maxParamLen (URLs, sources) are left out.
func formatLogLine(raw string) string {
	matches := logRegex.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return raw
	}

	var msg, timeStr, level string
	session := make(map[string]string)
	var params []string

	for _, m := range matches {
		key, val := m[1], m[3]
		if m[3] == "" {
			val = strings.ReplaceAll(m[2], `\"`, `"`)
		}
		val = strings.TrimSpace(val)

		switch {
		case key == "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				timeStr = t.Format("15:04:05")
			}
		case key == "level":
			if val == "WARN" || val == "ERROR" {
				level = val
			}
		case key == "msg":
			msg = val
		case slices.Contains(sessionKeys, key):
			session[key] = val
		case key == "error":
			params = append(params, "error="+truncate(val, maxErrorLen))
		case len(val) <= maxParamLen:
			params = append(params, key+"="+val)
		}
	}

	if msg == "" {
		return raw
	}

	slices.Sort(params)
	attrs := make([]string, 0, len(session)+len(params))
	for _, k := range sessionKeys {
		if v, ok := session[k]; ok {
			attrs = append(attrs, k+"="+v)
		}
	}
	attrs = append(attrs, params...)

	output := msg
	if level != "" {
		output = level + " " + output
	}
	if timeStr != "" {
		output = timeStr + " " + output
	}
	if len(attrs) > 0 {
		return fmt.Sprintf("%s (%s)", output, strings.Join(attrs, ", "))
	}
	return output
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
