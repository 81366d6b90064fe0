package pcm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_ChannelMap_Validate(t *testing.T) {
	assert.NoError(t, ChannelMap{ChannelFrontLeft, ChannelFrontRight}.Validate())
	assert.NoError(t, ChannelMap{}.Validate())

	// NONE may repeat, anything else may not.
	assert.NoError(t, ChannelMap{ChannelNone, ChannelNone, ChannelFrontCenter}.Validate())
	assert.Error(t, ChannelMap{ChannelFrontLeft, ChannelFrontLeft}.Validate())
}

func Test_ChannelMap_Unspecified(t *testing.T) {
	assert.True(t, ChannelMap{}.Unspecified())
	assert.True(t, ChannelMap{ChannelNone, ChannelFrontLeft}.Unspecified())
	assert.False(t, ChannelMap{ChannelFrontLeft}.Unspecified())
}

func Test_DefaultMap(t *testing.T) {
	assert.Equal(t, ChannelMap{ChannelFrontCenter}, DefaultMap(1))
	assert.Equal(t, ChannelMap{ChannelFrontLeft, ChannelFrontRight}, DefaultMap(2))
	assert.Nil(t, DefaultMap(0))
	assert.Nil(t, DefaultMap(MaxChannels+1))

	for ch := 1; ch <= MaxChannels; ch++ {
		m := DefaultMap(ch)
		assert.Len(t, m, ch, "channel count %d", ch)
		assert.NoError(t, m.Validate(), "channel count %d", ch)
	}
}

func Test_ChannelMap_Equal(t *testing.T) {
	a := ChannelMap{ChannelFrontLeft, ChannelFrontRight}
	assert.True(t, a.Equal(ChannelMap{ChannelFrontLeft, ChannelFrontRight}))
	assert.False(t, a.Equal(ChannelMap{ChannelFrontRight, ChannelFrontLeft}))
	assert.False(t, a.Equal(ChannelMap{ChannelFrontLeft}))
}
