package webhook

import (
	"encoding/json"
	"time"
)

func decodeJSON(body []byte, out *map[string]any) error {
	return json.Unmarshal(body, out)
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
