package ingest

import (
	"bytes"
	"encoding/json"
	"strings"
)

// The archive's notification hook has shipped several body shapes over
// time. Extraction is an ordered list of strategies tried in sequence;
// the first one yielding a non-empty identifier wins.
type extractStrategy func(raw []byte, body map[string]any) (string, bool)

var extractStrategies = []extractStrategy{
	fieldStrategy("ID"),
	fieldStrategy("instanceId"),
	firstKeyStrategy,
}

func fieldStrategy(name string) extractStrategy {
	return func(_ []byte, body map[string]any) (string, bool) {
		v, ok := body[name].(string)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
}

// firstKeyStrategy is a compatibility fallback for hooks that post the
// identifier as a bare key. It reads the raw bytes because Go maps do not
// preserve the document's key order.
func firstKeyStrategy(raw []byte, _ map[string]any) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return "", false
	}
	tok, err := dec.Token()
	if err != nil {
		return "", false
	}
	key, ok := tok.(string)
	key = strings.TrimSpace(key)
	return key, ok && key != ""
}

// ExtractInstanceID pulls the archive instance identifier out of a
// notification body. Returns false when the body carries no usable
// identifier.
func ExtractInstanceID(raw []byte) (string, bool) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil || len(body) == 0 {
		return "", false
	}
	for _, strat := range extractStrategies {
		if id, ok := strat(raw, body); ok {
			return id, true
		}
	}
	return "", false
}
