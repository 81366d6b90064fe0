package pcm

import (
	"strconv"
	"strings"
)

// Channel identifies the speaker position a sample within a frame is bound
// for. The zero value ChannelNone marks an unused slot; a map whose first
// entry is ChannelNone means "no particular layout requested".
type Channel uint8

const (
	ChannelNone Channel = iota
	ChannelFrontLeft
	ChannelFrontRight
	ChannelFrontCenter
	ChannelLFE
	ChannelBackLeft
	ChannelBackRight
	ChannelFrontLeftCenter
	ChannelFrontRightCenter
	ChannelBackCenter
	ChannelSideLeft
	ChannelSideRight
	ChannelTopCenter
	ChannelTopFrontLeft
	ChannelTopFrontCenter
	ChannelTopFrontRight
	ChannelTopBackLeft
	ChannelTopBackCenter
	ChannelTopBackRight
	ChannelAux0 // auxiliary slots 19..32
	ChannelAux1
	ChannelAux2
	ChannelAux3
	ChannelAux4
	ChannelAux5
	ChannelAux6
	ChannelAux7
	ChannelAux8
	ChannelAux9
	ChannelAux10
	ChannelAux11
	ChannelAux12
	ChannelAux13
)

// MaxChannels is the largest channel count a device or map may carry.
const MaxChannels = 32

var channelNames = map[Channel]string{
	ChannelNone:             "NONE",
	ChannelFrontLeft:        "FL",
	ChannelFrontRight:       "FR",
	ChannelFrontCenter:      "FC",
	ChannelLFE:              "LFE",
	ChannelBackLeft:         "BL",
	ChannelBackRight:        "BR",
	ChannelFrontLeftCenter:  "FLC",
	ChannelFrontRightCenter: "FRC",
	ChannelBackCenter:       "BC",
	ChannelSideLeft:         "SL",
	ChannelSideRight:        "SR",
	ChannelTopCenter:        "TC",
	ChannelTopFrontLeft:     "TFL",
	ChannelTopFrontCenter:   "TFC",
	ChannelTopFrontRight:    "TFR",
	ChannelTopBackLeft:      "TBL",
	ChannelTopBackCenter:    "TBC",
	ChannelTopBackRight:     "TBR",
}

func (c Channel) String() string {
	if s, ok := channelNames[c]; ok {
		return s
	}
	if c >= ChannelAux0 && c <= ChannelAux13 {
		return "AUX" + strconv.Itoa(int(c-ChannelAux0))
	}
	return "?"
}

// ChannelMap is an ordered assignment of speaker positions to the
// interleaved sample slots of a frame. Its length is the channel count.
type ChannelMap []Channel

// Unspecified reports whether the map requests no particular layout, either
// because it is empty or because it leads with ChannelNone.
func (m ChannelMap) Unspecified() bool {
	return len(m) == 0 || m[0] == ChannelNone
}

// Validate checks the map invariant: at most MaxChannels entries and no
// non-NONE identifier appearing twice.
func (m ChannelMap) Validate() error {
	if len(m) > MaxChannels {
		return ResultInvalidArgs
	}
	var seen [MaxChannels + 1]bool
	for _, c := range m {
		if c == ChannelNone {
			continue
		}
		if int(c) > MaxChannels || seen[c] {
			return ResultInvalidArgs
		}
		seen[c] = true
	}
	return nil
}

// Equal reports whether two maps are identical position for position.
func (m ChannelMap) Equal(other ChannelMap) bool {
	if len(m) != len(other) {
		return false
	}
	for i := range m {
		if m[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the map.
func (m ChannelMap) Clone() ChannelMap {
	if m == nil {
		return nil
	}
	out := make(ChannelMap, len(m))
	copy(out, m)
	return out
}

func (m ChannelMap) String() string {
	parts := make([]string, len(m))
	for i, c := range m {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// DefaultMap returns the standard speaker layout for a channel count, used
// whenever a configuration leaves the map unspecified. Counts beyond 7.1
// continue into the auxiliary slots.
func DefaultMap(channels int) ChannelMap {
	if channels <= 0 || channels > MaxChannels {
		return nil
	}
	var base ChannelMap
	switch channels {
	case 1:
		base = ChannelMap{ChannelFrontCenter}
	case 2:
		base = ChannelMap{ChannelFrontLeft, ChannelFrontRight}
	case 3:
		base = ChannelMap{ChannelFrontLeft, ChannelFrontRight, ChannelLFE}
	case 4:
		base = ChannelMap{ChannelFrontLeft, ChannelFrontRight, ChannelBackLeft, ChannelBackRight}
	case 5:
		base = ChannelMap{ChannelFrontLeft, ChannelFrontRight, ChannelBackLeft, ChannelBackRight, ChannelLFE}
	case 6:
		base = ChannelMap{ChannelFrontLeft, ChannelFrontRight, ChannelFrontCenter, ChannelLFE, ChannelBackLeft, ChannelBackRight}
	case 7:
		base = ChannelMap{ChannelFrontLeft, ChannelFrontRight, ChannelFrontCenter, ChannelLFE, ChannelBackCenter, ChannelSideLeft, ChannelSideRight}
	default:
		base = ChannelMap{ChannelFrontLeft, ChannelFrontRight, ChannelFrontCenter, ChannelLFE, ChannelBackLeft, ChannelBackRight, ChannelSideLeft, ChannelSideRight}
		for c := ChannelAux0; len(base) < channels && c <= ChannelAux13; c++ {
			base = append(base, c)
		}
		for len(base) < channels {
			base = append(base, ChannelNone)
		}
	}
	return base
}
