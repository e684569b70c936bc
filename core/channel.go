package core

// Channel identifies one output of the 6-channel actuator bus.
// Numbering is part of the external protocol and never changes.
type Channel uint8

const (
	ChannelAileron  Channel = 1
	ChannelThrottle Channel = 2
	ChannelElevator Channel = 3
	ChannelRudder   Channel = 4
	ChannelAuxA     Channel = 5
	ChannelAuxB     Channel = 6
)

// NumChannels is the number of outputs on the bus
const NumChannels = 6

// AllChannels lists every channel in bus order
var AllChannels = [NumChannels]Channel{
	ChannelAileron,
	ChannelThrottle,
	ChannelElevator,
	ChannelRudder,
	ChannelAuxA,
	ChannelAuxB,
}

var channelNames = [NumChannels]string{
	"aileron",
	"throttle",
	"elevator",
	"rudder",
	"aux_a",
	"aux_b",
}

// Valid reports whether c is one of the six bus channels
func (c Channel) Valid() bool {
	return c >= ChannelAileron && c <= ChannelAuxB
}

// Index returns the 0-based slot of the channel.
// Callers must check Valid first.
func (c Channel) Index() int {
	return int(c) - 1
}

func (c Channel) String() string {
	if !c.Valid() {
		return "channel(" + itoa(int(c)) + ")"
	}
	return channelNames[c.Index()]
}

// ChannelNames returns the wire names of all channels in bus order
func ChannelNames() []string {
	names := make([]string, NumChannels)
	copy(names, channelNames[:])
	return names
}

// ParseChannel resolves a channel from its name or its number ("1".."6")
func ParseChannel(s string) (Channel, bool) {
	for i, name := range channelNames {
		if s == name {
			return Channel(i + 1), true
		}
	}
	if len(s) == 1 && s[0] >= '1' && s[0] <= '6' {
		return Channel(s[0] - '0'), true
	}
	return 0, false
}

// Axis is a logical flight-control input
type Axis uint8

const (
	AxisThrottle Axis = iota
	AxisPitch
	AxisRoll
	AxisYaw

	numAxes = 4
)

var axisNames = [numAxes]string{"throttle", "pitch", "roll", "yaw"}

func (a Axis) String() string {
	if int(a) >= numAxes {
		return "axis(" + itoa(int(a)) + ")"
	}
	return axisNames[a]
}

// ParseAxis resolves an axis from its name
func ParseAxis(s string) (Axis, bool) {
	for i, name := range axisNames {
		if s == name {
			return Axis(i), true
		}
	}
	return 0, false
}

// AxisBinding maps each logical axis to the channel it drives.
// It is fixed once a FlightController is built.
type AxisBinding [numAxes]Channel

// DefaultAxisBinding binds throttle, elevator (pitch), aileron (roll) and
// rudder (yaw) to their standard receiver channels.
func DefaultAxisBinding() AxisBinding {
	return AxisBinding{
		AxisThrottle: ChannelThrottle,
		AxisPitch:    ChannelElevator,
		AxisRoll:     ChannelAileron,
		AxisYaw:      ChannelRudder,
	}
}

// Channel returns the channel bound to an axis
func (b AxisBinding) Channel(a Axis) Channel {
	return b[a]
}

// Validate checks that every axis drives a distinct, valid channel
func (b AxisBinding) Validate() error {
	var seen [NumChannels]bool
	for a, ch := range b {
		if !ch.Valid() {
			return &ChannelError{Op: "bind " + Axis(a).String(), Channel: ch, Err: ErrInvalidChannel}
		}
		if seen[ch.Index()] {
			return &ChannelError{Op: "bind " + Axis(a).String(), Channel: ch, Err: ErrInvalidInput}
		}
		seen[ch.Index()] = true
	}
	return nil
}
