// services/hal/internal/util/util.go
package util

import "encoding/json"

// DecodeJSON decodes params that arrive as raw bytes, a JSON string or an
// already-decoded value (e.g. map[string]any from the config service).
func DecodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	case json.RawMessage:
		return json.Unmarshal(v, dst)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}

// Fingerprint returns a canonical encoding of v for change detection.
func Fingerprint(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
