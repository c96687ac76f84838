package service

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// maxEchoedPayload bounds how much of a rejected payload is echoed back in
// the InvalidArgument message.
const maxEchoedPayload = 1024

// imageURLPaths are tried in order on object payloads.
var imageURLPaths = [][]string{{"imageUrl"}, {"data", "imageUrl"}}

// ExtractImageURL recovers the image reference from a callable payload.
// Accepted shapes:
//
//	{"imageUrl": "..."}
//	{"data": {"imageUrl": "..."}}
//	"{\"imageUrl\": \"...\"}"            (a JSON string holding either object)
//	"https://..."                        (a JSON string holding the URL itself)
//
// Every other payload fails with ErrInvalidArgument.
func ExtractImageURL(payload json.RawMessage) (string, error) {
	if !gjson.ValidBytes(payload) {
		return "", invalidPayload(payload)
	}
	root := gjson.ParseBytes(payload)

	var url string
	switch {
	case root.Type == gjson.String:
		url = fromString(root.Str)
	case root.IsObject():
		url = fromObject(root)
	}

	if url == "" {
		return "", invalidPayload(payload)
	}
	return url, nil
}

// fromString handles string payloads: JSON-encoded objects are unpacked,
// anything that is not JSON is the URL itself.
func fromString(s string) string {
	if !gjson.Valid(s) {
		return s
	}
	return fromObject(gjson.Parse(s))
}

func fromObject(obj gjson.Result) string {
	if !obj.IsObject() {
		return ""
	}
	for _, p := range imageURLPaths {
		v := lookup(obj, p)
		if !v.Exists() || isBlank(v) {
			continue
		}
		// The first present key decides; a non-string value is not retried
		// at the nested path.
		if v.Type != gjson.String {
			return ""
		}
		return v.Str
	}
	return ""
}

// lookup walks path through nested objects. Duplicate keys resolve to their
// last occurrence, as encoding/json and JSON.parse do.
func lookup(obj gjson.Result, path []string) gjson.Result {
	cur := obj
	for _, key := range path {
		if !cur.IsObject() {
			return gjson.Result{}
		}
		var found gjson.Result
		cur.ForEach(func(k, v gjson.Result) bool {
			if k.Str == key {
				found = v
			}
			return true
		})
		cur = found
	}
	return cur
}

// isBlank reports values treated as absent: null, false, 0 and "".
func isBlank(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return true
	case gjson.Number:
		return v.Num == 0
	case gjson.String:
		return v.Str == ""
	default:
		return false
	}
}

func invalidPayload(payload json.RawMessage) error {
	received := "undefined"
	if len(payload) > 0 {
		received = string(payload)
	}
	if len(received) > maxEchoedPayload {
		received = received[:maxEchoedPayload] + "..."
	}
	return fmt.Errorf("%w: imageUrl is required, received: %s", ErrInvalidArgument, received)
}
