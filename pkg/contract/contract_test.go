package contract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_IsPureFunctionOfSchema(t *testing.T) {
	c1 := Build(time.Unix(0, 0))
	c2 := Build(time.Unix(1000, 0))
	assert.Equal(t, c1.ContractHash, c2.ContractHash, "contract hash must not depend on created_at")
}

func TestValidate_IdenticalContractsOK(t *testing.T) {
	active := Build(time.Unix(0, 0))
	live := Build(time.Unix(0, 0))
	result := Validate(active, live)
	assert.True(t, result.OK())
	assert.Empty(t, result.Mismatches)
}

func TestValidate_VersionMismatchIsFatal(t *testing.T) {
	active := Build(time.Unix(0, 0))
	live := active
	live.Version = "2.0.0"
	result := Validate(active, live)
	require.False(t, result.OK())
	assert.Equal(t, MismatchFatal, result.Mismatches[0].Severity)
}

func TestValidate_StateRemovalIsFatal(t *testing.T) {
	active := Build(time.Unix(0, 0))
	live := active
	live.FSMSchema.States = live.FSMSchema.States[1:]
	result := Validate(active, live)
	require.False(t, result.OK())
}

func TestValidate_SeverityOnlyChangeIsError(t *testing.T) {
	active := Build(time.Unix(0, 0))
	live := active
	live.InvariantSchema.SeverityMap = copyMap(live.InvariantSchema.SeverityMap)
	for id, sev := range live.InvariantSchema.SeverityMap {
		if sev == "warn" {
			live.InvariantSchema.SeverityMap[id] = "error"
		} else {
			live.InvariantSchema.SeverityMap[id] = "warn"
		}
		break
	}
	result := Validate(active, live)
	require.NotEmpty(t, result.Mismatches)
	assert.Equal(t, MismatchError, result.Mismatches[0].Severity)
	assert.True(t, result.OK(), "a severity-only drift on an otherwise identical schema is error, not fatal")
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
