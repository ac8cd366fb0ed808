package helmcli

import (
	"encoding/json"
	"strings"
)

func decodeJSON(lines []string, v any) error {
	payload := strings.TrimSpace(strings.Join(lines, "\n"))
	if payload == "" {
		payload = "[]"
	}
	return json.Unmarshal([]byte(payload), v)
}
