package device

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Reply is a decoded device-manager response.
type Reply struct {
	// Nats is natsResponse when it is a JSON object.
	Nats map[string]any
	// NatsRaw is natsResponse as received; nil when the field is absent.
	NatsRaw any
	// Error is the top-level "error" field, stringified.
	Error string
	Body  json.RawMessage
}

// ParseReply decodes body. Only invalid JSON is an error; any well-formed
// document yields a Reply, possibly without a natsResponse.
func ParseReply(body []byte) (Reply, error) {
	r := Reply{Body: append(json.RawMessage(nil), body...)}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return r, fmt.Errorf("invalid JSON response: %w", err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return r, nil
	}
	if e, ok := obj["error"]; ok && e != nil {
		r.Error = stringify(e)
	}
	r.NatsRaw = obj["natsResponse"]
	r.Nats, _ = r.NatsRaw.(map[string]any)
	return r, nil
}

// Malformed reports whether natsResponse is missing or not an object.
func (r Reply) Malformed() bool { return r.Nats == nil }

// ConfigValue returns the value of key from natsResponse.configuration_key.
func (r Reply) ConfigValue(key string) (string, bool) {
	items, _ := r.Nats["configuration_key"].([]any)
	for _, it := range items {
		kv, ok := it.(map[string]any)
		if !ok || kv["key"] != key {
			continue
		}
		v, ok := kv["value"]
		if !ok || v == nil {
			return "", false
		}
		return stringify(v), true
	}
	return "", false
}

// Status returns natsResponse.status.
func (r Reply) Status() string {
	s, _ := r.Nats["status"].(string)
	return s
}

// Reason returns the first non-empty of natsResponse error, message and
// reason, falling back to the serialized natsResponse.
func (r Reply) Reason() string {
	for _, k := range []string{"error", "message", "reason"} {
		if v, ok := r.Nats[k]; ok && v != nil {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	b, err := json.Marshal(r.NatsRaw)
	if err != nil {
		return fmt.Sprint(r.NatsRaw)
	}
	return string(b)
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	case float64, bool:
		return fmt.Sprint(x)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSpace(string(b))
}
