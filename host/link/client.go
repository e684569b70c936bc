// Package link drives a flight controller board over the framed serial
// protocol: it retrieves the board's dictionary and exposes the flight
// commands as typed calls returning core errors.
package link

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"flightemu/core"
	"flightemu/host/serial"
	"flightemu/protocol"
)

// Bootstrap ids every board registers first
const (
	identifyResponseID = 0
	identifyID         = 1
)

// DefaultResponseTimeout bounds the wait for a command's result
const DefaultResponseTimeout = time.Second

var (
	ErrNoDictionary   = errors.New("link: dictionary not loaded")
	ErrUnknownCommand = errors.New("link: command not in dictionary")
)

// Dictionary is the parsed board dictionary
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// ChannelStatus is one channel as reported by flight_query
type ChannelStatus struct {
	Duty   float64 // percent of the period
	Output float64 // calibrated percentage
}

// Status is the answer to flight_query
type Status struct {
	State    core.FlightState
	Channels [core.NumChannels]ChannelStatus
}

// Client is a connection to one board. Calls are serialized.
type Client struct {
	mu        sync.Mutex
	transport *protocol.HostTransport
	timeout   time.Duration

	dictionary     *Dictionary
	dictionaryData []byte
	commands       map[string]uint16 // by message name
	responses      map[string]uint16
}

// NewClient speaks the protocol over port. The dictionary must be retrieved
// before flight commands can be sent.
func NewClient(port io.ReadWriteCloser) *Client {
	return &Client{
		transport: protocol.NewHostTransport(port),
		timeout:   DefaultResponseTimeout,
	}
}

// Dial opens the serial device and retrieves its dictionary
func Dial(cfg *serial.Config) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	c := NewClient(port)
	if err := c.RetrieveDictionary(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// SetTimeout changes how long calls wait for ACKs and responses
func (c *Client) SetTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

// Close closes the transport and the port
func (c *Client) Close() error {
	return c.transport.Close()
}

// RetrieveDictionary downloads the dictionary in identify chunks
func (c *Client) RetrieveDictionary() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var dictBuffer bytes.Buffer
	const chunkSize = 40
	for offset := uint32(0); ; {
		chunk, err := c.identify(offset, chunkSize)
		if err != nil {
			return fmt.Errorf("link: dictionary chunk at offset %d: %w", offset, err)
		}
		if len(chunk) == 0 {
			break
		}
		dictBuffer.Write(chunk)
		offset += uint32(len(chunk))
		if len(chunk) < chunkSize {
			break
		}
	}

	dict := &Dictionary{}
	if err := json.Unmarshal(dictBuffer.Bytes(), dict); err != nil {
		return fmt.Errorf("link: parse dictionary: %w", err)
	}
	c.dictionary = dict
	c.dictionaryData = dictBuffer.Bytes()
	c.commands = indexByName(dict.Commands)
	c.responses = indexByName(dict.Responses)
	return nil
}

func (c *Client) identify(offset uint32, count uint8) ([]byte, error) {
	err := c.transport.SendCommandWithTimeout(identifyID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(count))
	}, c.timeout)
	if err != nil {
		return nil, err
	}

	payload, err := c.await(identifyResponseID)
	if err != nil {
		return nil, err
	}
	respOffset, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, err
	}
	if respOffset != offset {
		return nil, fmt.Errorf("offset mismatch: expected %d, got %d", offset, respOffset)
	}
	return protocol.DecodeVLQBytes(&payload)
}

// await returns the arguments of the next response with id, skipping others
func (c *Client) await(id uint16) ([]byte, error) {
	deadline := time.Now().Add(c.timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: waiting for response %d", protocol.ErrTimeout, id)
		}
		frame, err := c.transport.ReceiveResponse(remaining)
		if err != nil {
			return nil, err
		}
		payload := frame.Payload
		got, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			continue
		}
		if uint16(got) == id {
			return payload, nil
		}
	}
}

// indexByName maps "name arg=%u ..." signatures to their ids by name
func indexByName(sigs map[string]int) map[string]uint16 {
	out := make(map[string]uint16, len(sigs))
	for sig, id := range sigs {
		name, _, _ := strings.Cut(sig, " ")
		out[name] = uint16(id)
	}
	return out
}

// Dictionary returns the parsed dictionary, nil before retrieval
func (c *Client) Dictionary() *Dictionary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dictionary
}

// DictionaryRaw returns the dictionary as received
func (c *Client) DictionaryRaw() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dictionaryData
}

// Calibration rebuilds the board's calibration table from the dictionary
// constants
func (c *Client) Calibration() (core.CalibrationTable, error) {
	dict := c.Dictionary()
	var table core.CalibrationTable
	if dict == nil {
		return table, ErrNoDictionary
	}
	for _, ch := range core.AllChannels {
		name := strings.ToUpper(ch.String())
		lo, err := fixedConstant(dict, "DUTY_MIN_"+name)
		if err != nil {
			return table, err
		}
		hi, err := fixedConstant(dict, "DUTY_MAX_"+name)
		if err != nil {
			return table, err
		}
		table[ch.Index()] = core.Bounds{Min: lo, Max: hi}
	}
	return table, nil
}

func fixedConstant(dict *Dictionary, name string) (float64, error) {
	s, ok := dict.Config[name]
	if !ok {
		return 0, fmt.Errorf("link: constant %s missing", name)
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("link: constant %s: %w", name, err)
	}
	return protocol.FromFixed(int32(v)), nil
}

// command sends a flight command and translates its flight_result
func (c *Client) command(name string, args ...int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(name, args...); err != nil {
		return err
	}
	payload, err := c.await(c.responses["flight_result"])
	if err != nil {
		return fmt.Errorf("link: %s: %w", name, err)
	}
	code, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return fmt.Errorf("link: %s: %w", name, err)
	}
	if err := core.ErrorFromCode(uint8(code)); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// send must be called with mu held
func (c *Client) send(name string, args ...int32) error {
	if c.dictionary == nil {
		return ErrNoDictionary
	}
	id, ok := c.commands[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return c.transport.SendCommandWithTimeout(id, func(output protocol.OutputBuffer) {
		for _, a := range args {
			protocol.EncodeVLQInt(output, a)
		}
	}, c.timeout)
}

func (c *Client) Init() error         { return c.command("flight_init") }
func (c *Client) Start() error        { return c.command("flight_start") }
func (c *Client) Stop() error         { return c.command("flight_stop") }
func (c *Client) Idle() error         { return c.command("flight_idle") }
func (c *Client) ResetControl() error { return c.command("flight_reset_control") }

// SetThrottle sets throttle in [0,100]
func (c *Client) SetThrottle(v float64) error {
	return c.command("flight_set_throttle", protocol.ToFixed(v))
}

// SetPitch sets pitch in [-1,1]
func (c *Client) SetPitch(v float64) error {
	return c.command("flight_set_pitch", protocol.ToFixed(v))
}

// SetRoll sets roll in [-1,1]
func (c *Client) SetRoll(v float64) error {
	return c.command("flight_set_roll", protocol.ToFixed(v))
}

// SetYaw sets yaw in [-1,1]
func (c *Client) SetYaw(v float64) error {
	return c.command("flight_set_yaw", protocol.ToFixed(v))
}

// SetControls sets all four flight axes in one command
func (c *Client) SetControls(throttle, pitch, roll, yaw float64) error {
	return c.command("flight_set_controls",
		protocol.ToFixed(throttle), protocol.ToFixed(pitch), protocol.ToFixed(roll), protocol.ToFixed(yaw))
}

// SetAux sets an auxiliary channel in [0,100]
func (c *Client) SetAux(ch core.Channel, v float64) error {
	return c.command("flight_set_aux", int32(ch), protocol.ToFixed(v))
}

// SetChannelOutput sets any channel's calibrated output percentage
func (c *Client) SetChannelOutput(ch core.Channel, percentage float64) error {
	return c.command("pwm_set_channel_output", int32(ch), protocol.ToFixed(percentage))
}

// SetDuty sets any channel's raw duty percentage
func (c *Client) SetDuty(ch core.Channel, dutyPct float64) error {
	return c.command("pwm_set_duty", int32(ch), protocol.ToFixed(dutyPct))
}

// Query reads the flight state and every channel's duty and output
func (c *Client) Query() (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var status Status
	if err := c.send("flight_query"); err != nil {
		return status, err
	}

	payload, err := c.await(c.responses["flight_state"])
	if err != nil {
		return status, fmt.Errorf("link: flight_query: %w", err)
	}
	state, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return status, fmt.Errorf("link: flight_query: %w", err)
	}
	status.State = core.FlightState(state)

	channelStateID := c.responses["channel_state"]
	for range core.AllChannels {
		payload, err := c.await(channelStateID)
		if err != nil {
			return status, fmt.Errorf("link: flight_query: %w", err)
		}
		ch, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return status, err
		}
		duty, err := protocol.DecodeFixed(&payload)
		if err != nil {
			return status, err
		}
		output, err := protocol.DecodeFixed(&payload)
		if err != nil {
			return status, err
		}
		if !core.Channel(ch).Valid() {
			return status, fmt.Errorf("link: flight_query: %w", core.ErrInvalidChannel)
		}
		status.Channels[core.Channel(ch).Index()] = ChannelStatus{Duty: duty, Output: output}
	}
	return status, nil
}
