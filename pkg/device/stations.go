package device

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Station is one entry of a station listing.
type Station struct {
	PFID  string `json:"pfid"`
	Model string `json:"evse_type"`
}

// decodeStations reads a listing, either an object keyed by station or an
// array, keeping the server's order.
func decodeStations(body []byte) ([]Station, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode stations: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, errors.New("decode stations: unexpected document")
	}
	var out []Station
	switch delim {
	case '[':
		for dec.More() {
			var s Station
			if err := dec.Decode(&s); err != nil {
				return nil, fmt.Errorf("decode stations: %w", err)
			}
			out = append(out, s)
		}
	case '{':
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("decode stations: %w", err)
			}
			key, _ := kt.(string)
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, fmt.Errorf("decode stations: %w", err)
			}
			var s Station
			if err := json.Unmarshal(raw, &s); err != nil {
				// non-object members (counts, metadata) are not stations
				continue
			}
			if s.PFID == "" {
				s.PFID = key
			}
			out = append(out, s)
		}
	default:
		return nil, errors.New("decode stations: unexpected document")
	}
	return out, nil
}
