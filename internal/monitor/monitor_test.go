package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devrev/rsmon/internal/config"
	"github.com/devrev/rsmon/internal/rpc"
	"github.com/devrev/rsmon/internal/topology"
)

func testCfg() config.MonitorConfig {
	return config.MonitorConfig{
		ConnectTimeout: 100 * time.Millisecond,
		CheckRounds:    2,
		RoundInterval:  1 * time.Millisecond,
	}
}

func TestNewDiscoversHostsAndPrimaryFromSeed(t *testing.T) {
	addrA := topology.Addr{Host: "a", Port: 1}
	addrB := topology.Addr{Host: "b", Port: 2}

	dialer := newFakeDialer()
	dialer.register(addrA, &fakeConn{isMasterReply: rpc.IsMasterReply{IsPrimary: true, Hosts: []string{"a:1", "b:2"}}})
	dialer.register(addrB, &fakeConn{isMasterReply: rpc.IsMasterReply{IsPrimary: false, Hosts: []string{"a:1", "b:2"}, Primary: "a:1"}})

	mon := New(context.Background(), "rs0", []topology.Addr{addrA}, dialer, testCfg(), zap.NewNop(), nil)

	master, err := mon.GetMaster(context.Background())
	require.NoError(t, err)
	assert.Equal(t, addrA, master)

	slave, ok := mon.GetSlave()
	require.True(t, ok)
	assert.Equal(t, addrB, slave)
}

func TestGetMasterChasesHintToFindPrimary(t *testing.T) {
	addrA := topology.Addr{Host: "a", Port: 1}
	addrB := topology.Addr{Host: "b", Port: 2}

	dialer := newFakeDialer()
	dialer.register(addrA, &fakeConn{isMasterReply: rpc.IsMasterReply{IsPrimary: false, Hosts: []string{"a:1", "b:2"}, Primary: "b:2"}})
	dialer.register(addrB, &fakeConn{isMasterReply: rpc.IsMasterReply{IsPrimary: true, Hosts: []string{"a:1", "b:2"}}})

	mon := New(context.Background(), "rs0", []topology.Addr{addrA}, dialer, testCfg(), zap.NewNop(), nil)

	master, err := mon.GetMaster(context.Background())
	require.NoError(t, err)
	assert.Equal(t, addrB, master)
}

func TestGetMasterFailsWithoutAnyReachablePrimary(t *testing.T) {
	addrA := topology.Addr{Host: "a", Port: 1}

	dialer := newFakeDialer()
	dialer.register(addrA, &fakeConn{isMasterReply: rpc.IsMasterReply{IsPrimary: false}})

	mon := New(context.Background(), "rs0", []topology.Addr{addrA}, dialer, testCfg(), zap.NewNop(), nil)

	_, err := mon.GetMaster(context.Background())
	assert.Error(t, err)
}

func TestNotifyFailureClearsPrimaryAndForcesRecheck(t *testing.T) {
	addrA := topology.Addr{Host: "a", Port: 1}

	dialer := newFakeDialer()
	dialer.register(addrA, &fakeConn{isMasterReply: rpc.IsMasterReply{IsPrimary: true}})

	mon := New(context.Background(), "rs0", []topology.Addr{addrA}, dialer, testCfg(), zap.NewNop(), nil)

	master, err := mon.GetMaster(context.Background())
	require.NoError(t, err)
	assert.Equal(t, addrA, master)

	mon.NotifyFailure(addrA)

	master, err = mon.GetMaster(context.Background())
	require.NoError(t, err)
	assert.Equal(t, addrA, master)
}

func TestNotifySlaveFailureMarksNodeUnhealthy(t *testing.T) {
	addrA := topology.Addr{Host: "a", Port: 1}
	addrB := topology.Addr{Host: "b", Port: 2}

	dialer := newFakeDialer()
	dialer.register(addrA, &fakeConn{isMasterReply: rpc.IsMasterReply{IsPrimary: true, Hosts: []string{"a:1", "b:2"}}})
	dialer.register(addrB, &fakeConn{isMasterReply: rpc.IsMasterReply{IsPrimary: false}})

	mon := New(context.Background(), "rs0", []topology.Addr{addrA}, dialer, testCfg(), zap.NewNop(), nil)

	mon.NotifySlaveFailure(addrB)

	mon.mu.Lock()
	idx := mon.table.Find(addrB)
	ok := mon.table.Node(idx).Ok
	mon.mu.Unlock()

	assert.False(t, ok)
}

func TestHasKnownPrimary(t *testing.T) {
	addrA := topology.Addr{Host: "a", Port: 1}

	dialer := newFakeDialer()
	dialer.register(addrA, &fakeConn{isMasterReply: rpc.IsMasterReply{IsPrimary: true}})

	mon := New(context.Background(), "rs0", []topology.Addr{addrA}, dialer, testCfg(), zap.NewNop(), nil)
	assert.True(t, mon.HasKnownPrimary())
}
