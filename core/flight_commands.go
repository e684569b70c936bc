package core

import (
	"strings"

	"flightemu/protocol"
)

// ResponseSender frames one response message. protocol.Transport's
// SendCommand has this signature.
type ResponseSender func(cmdID uint16, args func(output protocol.OutputBuffer))

// Wire names of the result codes, indexed by code
var resultNames = []string{
	"success",
	"protocol_failure",
	"mode_swap_failure",
	"invalid_input",
	"invalid_channel",
	"out_of_range",
	"backend_failure",
	"unsupported",
}

// FlightCommands binds the wire commands to one FlightController
type FlightCommands struct {
	fc   *FlightController
	dict *Dictionary
	send ResponseSender

	identifyResponseID uint16
	resultID           uint16
	stateID            uint16
	channelStateID     uint16
}

// RegisterFlightCommands registers the bootstrap messages, every flight
// command and their responses on reg, and describes them in dict.
//
// IMPORTANT: registration order matters. Hosts assume the bootstrap ids:
//
//	identify_response = ID 0
//	identify = ID 1
func RegisterFlightCommands(reg *CommandRegistry, dict *Dictionary, fc *FlightController, send ResponseSender) *FlightCommands {
	c := &FlightCommands{fc: fc, dict: dict, send: send}

	c.identifyResponseID = reg.RegisterResponse("identify_response", "offset=%u data=%*s")
	reg.Register("identify", "offset=%u count=%c", c.handleIdentify)

	c.resultID = reg.RegisterResponse("flight_result", "code=%c")
	c.stateID = reg.RegisterResponse("flight_state", "state=%c")
	c.channelStateID = reg.RegisterResponse("channel_state", "channel=%c duty=%u output=%u")

	reg.Register("flight_init", "", c.simple(fc.Init))
	reg.Register("flight_start", "", c.simple(fc.Start))
	reg.Register("flight_stop", "", c.simple(fc.Stop))
	reg.Register("flight_idle", "", c.simple(fc.Idle))
	reg.Register("flight_reset_control", "", c.simple(fc.ResetControl))
	reg.Register("flight_set_throttle", "value=%i", c.axis(fc.SetThrottle))
	reg.Register("flight_set_pitch", "value=%i", c.axis(fc.SetPitch))
	reg.Register("flight_set_roll", "value=%i", c.axis(fc.SetRoll))
	reg.Register("flight_set_yaw", "value=%i", c.axis(fc.SetYaw))
	reg.Register("flight_set_controls", "throttle=%i pitch=%i roll=%i yaw=%i", c.handleSetControls)
	reg.Register("flight_set_aux", "channel=%c value=%i", c.channel(fc.SetAux))
	reg.Register("pwm_set_channel_output", "channel=%c value=%i", c.channel(fc.SetChannelOutput))
	reg.Register("pwm_set_duty", "channel=%c value=%i", c.channel(fc.SetDuty))
	reg.Register("flight_query", "", c.handleQuery)

	dict.AddConstant("FLIGHT_PROTOCOL", fc.Protocol().String())
	dict.AddConstant("CHANNEL_COUNT", NumChannels)
	dict.AddConstant("FIXED_SCALE", protocol.FixedScale)
	cal := fc.Output().Calibration()
	for _, ch := range AllChannels {
		b := cal[ch.Index()]
		name := strings.ToUpper(ch.String())
		dict.AddConstant("DUTY_MIN_"+name, protocol.ToFixed(b.Min))
		dict.AddConstant("DUTY_MAX_"+name, protocol.ToFixed(b.Max))
	}

	channels := append([]string{""}, ChannelNames()...)
	dict.AddEnumeration("channel", channels)
	dict.AddEnumeration("flight_state", flightStateNames[:])
	dict.AddEnumeration("flight_result", resultNames)

	return c
}

// handleIdentify returns chunks of the data dictionary
func (c *FlightCommands) handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	chunk := c.dict.GetChunk(offset, uint8(count))
	c.send(c.identifyResponseID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
	return nil
}

func (c *FlightCommands) simple(op func() error) CommandHandler {
	return func(data *[]byte) error {
		c.reply(op())
		return nil
	}
}

// axis decodes one milli-unit value
func (c *FlightCommands) axis(op func(float64) error) CommandHandler {
	return func(data *[]byte) error {
		v, err := protocol.DecodeFixed(data)
		if err != nil {
			return err
		}
		c.reply(op(v))
		return nil
	}
}

// channel decodes a channel number and a milli-unit value
func (c *FlightCommands) channel(op func(Channel, float64) error) CommandHandler {
	return func(data *[]byte) error {
		ch, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		v, err := protocol.DecodeFixed(data)
		if err != nil {
			return err
		}
		if ch > 0xFF {
			c.reply(&ChannelError{Op: "decode", Err: ErrInvalidChannel})
			return nil
		}
		c.reply(op(Channel(ch), v))
		return nil
	}
}

func (c *FlightCommands) handleSetControls(data *[]byte) error {
	var v [4]float64
	for i := range v {
		var err error
		if v[i], err = protocol.DecodeFixed(data); err != nil {
			return err
		}
	}
	c.reply(c.fc.SetControls(v[0], v[1], v[2], v[3]))
	return nil
}

// handleQuery reports the state then every channel's duty and output, both
// in milli-percent
func (c *FlightCommands) handleQuery(data *[]byte) error {
	state := c.fc.State()
	c.send(c.stateID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(state))
	})

	duties := c.fc.Output().Duties()
	outputs := c.fc.Output().Outputs()
	for _, ch := range AllChannels {
		duty := protocol.ToFixed(duties[ch.Index()])
		out := protocol.ToFixed(outputs[ch.Index()])
		c.send(c.channelStateID, func(output protocol.OutputBuffer) {
			protocol.EncodeVLQUint(output, uint32(ch))
			protocol.EncodeVLQUint(output, uint32(duty))
			protocol.EncodeVLQUint(output, uint32(out))
		})
	}
	return nil
}

func (c *FlightCommands) reply(err error) {
	code := ResultCode(err)
	if err != nil {
		DebugPrintln("[CMD] " + err.Error())
	}
	c.send(c.resultID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(code))
	})
}
