package jukeboxv1

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// CodecName is the content subtype of the JSON codec.
const CodecName = "json"

// Codec encodes the plain message structs of this package as JSON.
// It replaces the protobuf-backed JSON codec connect installs by default.
type Codec struct{}

// Name returns the codec name.
func (Codec) Name() string {
	return CodecName
}

// Marshal encodes a message.
func (Codec) Marshal(msg any) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %T", msg)
	}
	return b, nil
}

// Unmarshal decodes a message. An empty body leaves msg at its zero value.
func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return errors.Wrapf(err, "unmarshal %T", msg)
	}
	return nil
}
