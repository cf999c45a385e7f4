package mixstate

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m-vo/psurface/internal/channel"
	"github.com/m-vo/psurface/internal/config"
	"github.com/m-vo/psurface/internal/transport"
	"github.com/m-vo/psurface/internal/wire"
)

func testSession(t *testing.T) *Session {
	t.Helper()
	top := TopologyFromConfig(config.Tracking{
		InputCount:           16,
		MonoAuxCount:         4,
		StereoAuxCount:       2,
		MonoFXCount:          2,
		StereoFXCount:        2,
		ExternalFXStart1:     5,
		ExternalFXCount:      2,
		VirtualStripStart1:   1,
		FeedbackMatrixIndex1: 16,
		TalkToMonitorIndex1:  1,
		TalkToStageIndex1:    2,
	})

	outClient, outServer := net.Pipe()
	inClient, inServer := net.Pipe()
	t.Cleanup(func() {
		outClient.Close()
		outServer.Close()
		inClient.Close()
		inServer.Close()
	})
	go discard(outServer)
	go discard(inServer)

	outPort, err := transport.DialFromConnForTest(outClient)
	require.NoError(t, err)
	inPort, err := transport.DialFromConnForTest(inClient)
	require.NoError(t, err)

	return New(top, 0, outPort, inPort)
}

func discard(c net.Conn) {
	buf := make([]byte, 256)
	for {
		if _, err := c.Read(buf); err != nil {
			return
		}
	}
}

func TestSession_AllocatesConfiguredTopology(t *testing.T) {
	s := testSession(t)
	assert.Len(t, s.InputIDs(), 16)
	assert.Len(t, s.AuxIDs(), 6)
	assert.Len(t, s.FXIDs(), 4)
}

func TestSession_ResolveSendLevelSetsCurrent(t *testing.T) {
	s := testSession(t)
	from := channel.New(channel.Input, 0)
	to := channel.New(channel.Input, 1)

	s.resolve(wire.SendLevelMsg{From: from, To: to, Level: channel.ZeroDB})

	c, ok := s.Channel(from)
	require.True(t, ok)
	sends := c.Sends()
	v, ok := sends[to]
	require.True(t, ok)
	cur, ok := v.Current()
	require.True(t, ok)
	assert.Equal(t, channel.ZeroDB, cur)
}

func TestSession_TalkToChannelsFromConfig(t *testing.T) {
	s := testSession(t)
	assert.Equal(t, channel.New(channel.Input, 0), s.TalkToMonitorChannel())
	assert.Equal(t, channel.New(channel.Input, 1), s.TalkToStageChannel())
}
