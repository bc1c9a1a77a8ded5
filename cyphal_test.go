package cyphal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransferID_Next(t *testing.T) {
	tid := TransferID(0)
	for i := 1; i < 32; i++ {
		tid = tid.Next()
		assert.Equal(t, TransferID(i), tid)
		assert.LessOrEqual(t, tid, TransferID(TransferIDMax))
	}
	tid = tid.Next()
	assert.Equal(t, TransferID(0), tid)
}

func TestTransferID_NextWrapsOutOfRangeValue(t *testing.T) {
	assert.Equal(t, TransferID(1), TransferID(32).Next())
}

func TestPriority_String(t *testing.T) {
	assert.Equal(t, "exceptional", PriorityExceptional.String())
	assert.Equal(t, "nominal", PriorityNominal.String())
	assert.Equal(t, "optional", PriorityOptional.String())
	assert.Equal(t, "priority(9)", Priority(9).String())
}

func TestParsePriority(t *testing.T) {
	var testCases = []struct {
		name        string
		when        string
		expect      Priority
		expectError error
	}{
		{name: "ok, mnemonic", when: "slow", expect: PrioritySlow},
		{name: "ok, ordinal", when: "3", expect: PriorityHigh},
		{name: "nok, ordinal out of range", when: "8", expectError: ErrOutOfRange},
		{name: "nok, unknown", when: "urgent", expectError: ErrOutOfRange},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := ParsePriority(tc.when)
			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expect, p)
		})
	}
}

func TestNodeID_IsSet(t *testing.T) {
	assert.True(t, NodeID(0).IsSet())
	assert.True(t, NodeID(NodeIDMax).IsSet())
	assert.False(t, NodeID(128).IsSet())
	assert.False(t, NodeIDUnset.IsSet())
}
