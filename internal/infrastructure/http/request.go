package http

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"

	"github.com/0xcro3dile/policyqa-go/internal/domain/entities"
)

// askBody is the POST /api/ask payload. Browsers and scripts send scalars
// of any JSON type for both fields.
type askBody struct {
	Question     looseString `json:"question"`
	PrototypeKey looseString `json:"prototypeKey"`
}

func (b askBody) request() *entities.AskRequest {
	return &entities.AskRequest{
		Question:     string(b.Question),
		PrototypeKey: string(b.PrototypeKey),
	}
}

// looseString decodes any JSON scalar into its text form. null, false and
// zero decode to the empty string. Objects and arrays are rejected.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty value")
	}

	switch data[0] {
	case '"':
		var v string
		if err := sonic.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
	case 'n', 'f':
		*s = ""
	case 't':
		*s = "true"
	case '{', '[':
		return fmt.Errorf("expected a string, got %s", data[:1])
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid number %s: %w", data, err)
		}
		if f == 0 {
			*s = ""
			return nil
		}
		*s = looseString(strconv.FormatFloat(f, 'f', -1, 64))
	}
	return nil
}
