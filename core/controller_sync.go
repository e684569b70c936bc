package core

import "math"

// SyncedPWMController spreads the channels over several timer units and
// keeps the pulses of each unit back to back. Every channel's timer is
// resynchronized with an offset derived from the duties of the channels
// ahead of it in its group.
type SyncedPWMController struct {
	channelBank
	groups  [][]Channel
	offsets [NumChannels]uint32
}

// NewSyncedPWMController builds a phase synchronized controller. Timer
// groups are the board's units, phase order is bus order inside a unit.
// Sync offsets are per timer, so every channel needs a timer of its own.
func NewSyncedPWMController(backend PWMBackend, board BoardConfig) (*SyncedPWMController, error) {
	for i, o := range board.Outputs {
		for j := 0; j < i; j++ {
			if p := board.Outputs[j]; p.Unit == o.Unit && p.Timer == o.Timer {
				return nil, &ChannelError{
					Op:      "sync timer shared with " + Channel(j+1).String(),
					Channel: Channel(i + 1),
					Err:     ErrInvalidInput,
				}
			}
		}
	}
	bank, err := newChannelBank(backend, board)
	if err != nil {
		return nil, err
	}
	return &SyncedPWMController{channelBank: bank, groups: bank.board.Groups()}, nil
}

// Init programs the outputs then enables sync on every channel's timer
func (c *SyncedPWMController) Init() error {
	if err := c.initOutputs(); err != nil {
		return err
	}
	for _, group := range c.groups {
		if err := c.applySync(group, 0); err != nil {
			return err
		}
	}
	return nil
}

func (c *SyncedPWMController) SetDuty(ch Channel, dutyPct float64) error {
	if err := c.writeDuty(ch, dutyPct); err != nil {
		return err
	}
	group, pos := c.position(ch)
	return c.applySync(group, pos)
}

func (c *SyncedPWMController) SetChannelOutput(ch Channel, percentage float64) error {
	return setCalibrated(c, &c.board.Calibration, ch, percentage)
}

func (c *SyncedPWMController) SetChannelOutputAll(percentages [NumChannels]float64) error {
	return setCalibratedAll(c, &c.board.Calibration, percentages)
}

func (c *SyncedPWMController) SetAllOutputsByAxis(aileron, throttle, elevator, rudder, auxA, auxB float64) error {
	return c.SetChannelOutputAll([NumChannels]float64{aileron, throttle, elevator, rudder, auxA, auxB})
}

// SyncOffsets returns the last offset applied to each channel's timer
func (c *SyncedPWMController) SyncOffsets() [NumChannels]uint32 {
	return c.offsets
}

// position finds the group holding ch and ch's index inside it
func (c *SyncedPWMController) position(ch Channel) ([]Channel, int) {
	for _, group := range c.groups {
		for i, member := range group {
			if member == ch {
				return group, i
			}
		}
	}
	return nil, 0
}

// applySync recomputes the group's offsets and re-applies those at
// positions from..end. Earlier positions do not depend on later duties.
func (c *SyncedPWMController) applySync(group []Channel, from int) error {
	duties := make([]float64, len(group))
	for i, ch := range group {
		duties[i] = c.duties[ch.Index()]
	}
	offsets := syncOffsets(duties, c.board.Sync.Window, c.board.Sync.Scale)

	for i := from; i < len(group); i++ {
		ch := group[i]
		o := c.board.Output(ch)
		if err := c.backend.SyncEnable(o.Unit, o.Timer, c.board.Sync.Source, offsets[i]); err != nil {
			return c.backendError("sync enable offset "+itoa(int(offsets[i])), ch, err)
		}
		c.offsets[ch.Index()] = offsets[i]
	}
	return nil
}

// syncOffsets returns scale*(window - sum of the preceding duties) for every
// position, rounded to the nearest tick and clamped at zero.
func syncOffsets(duties []float64, window, scale float64) []uint32 {
	offsets := make([]uint32, len(duties))
	delay := 0.0
	for i, d := range duties {
		ticks := math.Round(scale * (window - delay))
		if ticks > 0 {
			offsets[i] = uint32(ticks)
		}
		delay += d
	}
	return offsets
}

var _ ChannelOutputBackend = (*SyncedPWMController)(nil)
