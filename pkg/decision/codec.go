package decision

import "encoding/json"

// JSONCodec is a Codec that encodes records as plain JSON; the tests
// that exercise SharedHistory without a real shared store use it.
type JSONCodec struct{}

func (JSONCodec) Marshal(r Record) ([]byte, error) { return json.Marshal(r) }

func (JSONCodec) Unmarshal(b []byte) (Record, error) {
	var r Record
	err := json.Unmarshal(b, &r)
	return r, err
}
