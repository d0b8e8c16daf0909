package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	apperrors "github.com/kagent-dev/toolchat/pkg/errors"
)

// PayloadKind tags how a function-call argument payload arrived on the wire.
type PayloadKind int

const (
	// PayloadAbsent means the part carried no args field, or null.
	PayloadAbsent PayloadKind = iota
	// PayloadRawString means the args were a JSON document encoded as a string.
	PayloadRawString
	// PayloadStructured means the args were a native JSON object.
	PayloadStructured
	// PayloadUnsupported means the args were some other JSON value.
	PayloadUnsupported
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadAbsent:
		return "absent"
	case PayloadRawString:
		return "raw_string"
	case PayloadStructured:
		return "structured"
	default:
		return "unsupported"
	}
}

// ArgumentPayload holds function-call arguments exactly as received. The
// shape is sniffed once while decoding; Normalize turns it into a mapping.
type ArgumentPayload struct {
	Kind  PayloadKind
	Raw   string
	Value map[string]any
}

// RawStringPayload wraps a JSON document received as a string.
func RawStringPayload(text string) ArgumentPayload {
	return ArgumentPayload{Kind: PayloadRawString, Raw: text}
}

// StructuredPayload wraps arguments received as a JSON object.
func StructuredPayload(value map[string]any) ArgumentPayload {
	return ArgumentPayload{Kind: PayloadStructured, Value: value}
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ArgumentPayload) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*p = ArgumentPayload{Kind: PayloadAbsent}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*p = RawStringPayload(text)
	case '{':
		var value map[string]any
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return err
		}
		*p = StructuredPayload(value)
	default:
		*p = ArgumentPayload{Kind: PayloadUnsupported, Raw: string(trimmed)}
	}
	return nil
}

// Normalize returns the arguments as a mapping. A raw string must hold a JSON
// object; anything else fails with MALFORMED_TOOL_CALL.
func (p ArgumentPayload) Normalize() (map[string]any, error) {
	switch p.Kind {
	case PayloadAbsent:
		return map[string]any{}, nil
	case PayloadStructured:
		if p.Value == nil {
			return map[string]any{}, nil
		}
		return p.Value, nil
	case PayloadRawString:
		if len(bytes.TrimSpace([]byte(p.Raw))) == 0 {
			return map[string]any{}, nil
		}
		var value map[string]any
		if err := json.Unmarshal([]byte(p.Raw), &value); err != nil {
			return nil, apperrors.New(apperrors.ErrCodeMalformedToolCall,
				"function call arguments are not a valid JSON object", err).
				WithDetail("raw", p.Raw)
		}
		if value == nil {
			value = map[string]any{}
		}
		return value, nil
	default:
		return nil, apperrors.New(apperrors.ErrCodeMalformedToolCall,
			fmt.Sprintf("function call arguments have unsupported shape: %s", p.Raw), nil).
			WithDetail("raw", p.Raw)
	}
}
