package provider

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/splitserve/pkg/models"
)

// payloadMarker is the variable the provider's bootstrap script assigns its
// experiment payload to. Everything else in the script is noise to us.
const payloadMarker = "_cxpayload"

// payload is the JSON object embedded in the provider script.
type payload struct {
	Experiments map[string]payloadExperiment `json:"experiments"`
	Errors      map[string]string            `json:"errors"`
}

type payloadExperiment struct {
	Variations []models.VariationRecord `json:"variations"`
}

// extractPayload locates the payload object inside the provider script and
// decodes it. The script surrounding the object is arbitrary JavaScript, so
// the object is found by marker and read with a balanced-brace scan that
// respects string literals.
func extractPayload(script []byte) (*payload, error) {
	idx := bytes.Index(script, []byte(payloadMarker))
	if idx < 0 {
		return nil, fmt.Errorf("%w: marker %q not present", ErrMalformedPayload, payloadMarker)
	}

	open := bytes.IndexByte(script[idx:], '{')
	if open < 0 {
		return nil, fmt.Errorf("%w: no object after marker", ErrMalformedPayload)
	}
	open += idx

	raw, err := balancedObject(script[open:])
	if err != nil {
		return nil, err
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &p, nil
}

// balancedObject returns the JSON object starting at data[0], which must be
// '{'. Braces inside string literals do not count toward nesting.
func balancedObject(data []byte) ([]byte, error) {
	depth := 0
	inString := false
	escaped := false

	for i, b := range data {
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return data[:i+1], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: unterminated object", ErrMalformedPayload)
}
