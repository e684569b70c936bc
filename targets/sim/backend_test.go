package sim

import (
	"errors"
	"testing"

	"flightemu/core"
)

var testPins = [core.NumChannels]core.PinID{12, 27, 33, 15, 32, 14}

func TestBackendTracksState(t *testing.T) {
	b := New()
	ctrl, err := core.NewPWMController(b, core.SingleUnitBoard(0, testPins))
	if err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Init(); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.SetChannelOutput(core.ChannelThrottle, 100); err != nil {
		t.Fatal(err)
	}

	// throttle is operator B of timer 0
	ts, ok := b.Timer(0, 0)
	if !ok || !ts.Configured || !ts.Running {
		t.Fatalf("timer 0 state %+v", ts)
	}
	if ts.Duty[core.OperatorB] != core.DutyThrottleMax {
		t.Errorf("throttle duty %v, expected %v", ts.Duty[core.OperatorB], core.DutyThrottleMax)
	}
	if ts.FrequencyHz != core.DefaultApproxFrequencyHz {
		t.Errorf("frequency %d", ts.FrequencyHz)
	}
	if sig, ok := b.PinSignal(33); !ok || sig != 2 {
		t.Errorf("elevator pin routed to %d", sig)
	}

	if err := ctrl.Stop(); err != nil {
		t.Fatal(err)
	}
	if ts, _ := b.Timer(0, 2); ts.Running {
		t.Error("timer 2 still running after stop")
	}
}

func TestBackendFailOn(t *testing.T) {
	b := New()
	b.FailOn(OpSetDuty, 2)

	for i, want := range []bool{true, true, false} {
		err := b.SetDuty(0, 0, core.OperatorA, 7)
		if failed := errors.Is(err, ErrInjected); failed != want {
			t.Errorf("call %d: err %v", i, err)
		}
	}

	b.FailOn(OpStart, -1)
	for i := 0; i < 3; i++ {
		if err := b.Start(0, 1); !errors.Is(err, ErrInjected) {
			t.Errorf("sticky failure %d: %v", i, err)
		}
	}
	b.FailOn(OpStart, 0)
	if err := b.Start(0, 1); err != nil {
		t.Errorf("disarmed start: %v", err)
	}

	// failed calls are recorded but do not change state
	if ts, _ := b.Timer(0, 0); ts.Duty[core.OperatorA] != 7 {
		t.Errorf("duty %v", ts.Duty[core.OperatorA])
	}
	if n := len(b.Calls(OpSetDuty)); n != 3 {
		t.Errorf("%d set_duty calls recorded", n)
	}
}

func TestBackendInjectedFailureReachesFlight(t *testing.T) {
	b := New()
	ctrl, err := core.NewPWMController(b, core.SingleUnitBoard(0, testPins))
	if err != nil {
		t.Fatal(err)
	}
	fc, err := core.NewFlightController(core.ProtocolPWM, ctrl)
	if err != nil {
		t.Fatal(err)
	}
	if err := fc.Init(); err != nil {
		t.Fatal(err)
	}

	b.FailOn(OpSetDuty, 1)
	err = fc.SetThrottle(40)
	if !errors.Is(err, core.ErrProtocolFailure) || !errors.Is(err, ErrInjected) {
		t.Errorf("throttle error %v", err)
	}
	if core.ResultCode(err) != core.ResultProtocolFailure {
		t.Errorf("code %d", core.ResultCode(err))
	}
	if err := fc.SetThrottle(40); err != nil {
		t.Errorf("retry after single failure: %v", err)
	}
}

func TestBackendSyncState(t *testing.T) {
	b := New()
	board := core.DualUnitBoard(testPins)
	ctrl, err := core.NewSyncedPWMController(b, board)
	if err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Init(); err != nil {
		t.Fatal(err)
	}

	offsets := ctrl.SyncOffsets()
	for i, ch := range core.AllChannels {
		o := board.Output(ch)
		ts, _ := b.Timer(o.Unit, o.Timer)
		if !ts.Synced || ts.SyncOffset != offsets[i] {
			t.Errorf("%s: synced=%v offset %d, controller %d", ch, ts.Synced, ts.SyncOffset, offsets[i])
		}
	}
	if len(b.Calls("")) == 0 {
		t.Error("no calls recorded")
	}
}
