package main

import (
	"encoding/json"

	"github.com/sealedreview/reviewpipeline/pkg/decision"
)

// jsonCodec marshals decision records to JSON for the shared-store
// history backend; pkg/decision takes it as an injected Codec (see
// pkg/decision/history.go).
type jsonCodec struct{}

func (jsonCodec) Marshal(rec decision.Record) ([]byte, error) { return json.Marshal(rec) }

func (jsonCodec) Unmarshal(data []byte) (decision.Record, error) {
	var rec decision.Record
	err := json.Unmarshal(data, &rec)
	return rec, err
}
