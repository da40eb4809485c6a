package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}
	in := isMasterResponse{IsPrimary: true, Hosts: []string{"a:1", "b:2"}, Primary: "a:1"}

	data, err := c.Marshal(&in)
	require.NoError(t, err)

	var out isMasterResponse
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestJSONCodecRegistered(t *testing.T) {
	assert.Equal(t, jsonCodecName, "json")
	assert.NotNil(t, encoding.GetCodec(jsonCodecName))
}

func TestReplSetMemberHealthy(t *testing.T) {
	assert.True(t, ReplSetMember{Health: 1, State: 1}.Healthy())
	assert.True(t, ReplSetMember{Health: 1, State: 2}.Healthy())
	assert.False(t, ReplSetMember{Health: 0, State: 1}.Healthy())
	assert.False(t, ReplSetMember{Health: 1, State: 8}.Healthy())
}

func TestQueryOptionsHasSecondaryOk(t *testing.T) {
	assert.True(t, QueryOptionSecondaryOk.HasSecondaryOk())
	assert.False(t, QueryOptions(0).HasSecondaryOk())
}
