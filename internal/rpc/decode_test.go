package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeIntoTypedStruct(t *testing.T) {
	src := map[string]any{
		"members": []any{
			map[string]any{"name": "a:1", "state": 1, "health": 1},
			map[string]any{"name": "b:2", "state": 2, "health": 1},
		},
	}

	var status ReplSetStatus
	require.NoError(t, decodeInto(src, &status))
	require.Len(t, status.Members, 2)
	assert.Equal(t, "a:1", status.Members[0].Name)
	assert.True(t, status.Members[0].Healthy())
}

func TestDecodeIntoNilOutIsNoop(t *testing.T) {
	assert.NoError(t, decodeInto(map[string]any{"a": 1}, nil))
}

func TestDecodeIntoGenericMap(t *testing.T) {
	src := map[string]any{"ok": true}
	var out map[string]any
	require.NoError(t, decodeInto(src, &out))
	assert.Equal(t, true, out["ok"])
}
