package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"flightemu/core"
	"flightemu/host/link"
)

var errQuit = errors.New("quit")

type shellCommand struct {
	args  string
	help  string
	nargs int
	run   func(c *link.Client, args []string, out io.Writer) error
}

var shellCommands map[string]shellCommand

func init() {
	shellCommands = map[string]shellCommand{
		"init":  {help: "Initialize the PWM outputs", run: simple((*link.Client).Init)},
		"start": {help: "Idle the controls and start the outputs", run: simple((*link.Client).Start)},
		"stop":  {help: "Stop the outputs", run: simple((*link.Client).Stop)},
		"idle":  {help: "Center aileron, throttle and rudder, zero elevator", run: simple((*link.Client).Idle)},
		"reset": {help: "Center pitch, roll and yaw", run: simple((*link.Client).ResetControl)},

		"throttle": {args: "<0..100>", nargs: 1, help: "Set throttle", run: axis((*link.Client).SetThrottle)},
		"pitch":    {args: "<-1..1>", nargs: 1, help: "Set pitch", run: axis((*link.Client).SetPitch)},
		"roll":     {args: "<-1..1>", nargs: 1, help: "Set roll", run: axis((*link.Client).SetRoll)},
		"yaw":      {args: "<-1..1>", nargs: 1, help: "Set yaw", run: axis((*link.Client).SetYaw)},

		"controls": {args: "<throttle> <pitch> <roll> <yaw>", nargs: 4, help: "Set all flight axes at once", run: runControls},
		"aux":      {args: "<aux_a|aux_b> <0..100>", nargs: 2, help: "Set an auxiliary channel", run: channel((*link.Client).SetAux)},
		"output":   {args: "<channel> <0..100>", nargs: 2, help: "Set a channel's calibrated output", run: channel((*link.Client).SetChannelOutput)},
		"duty":     {args: "<channel> <percent>", nargs: 2, help: "Set a channel's raw duty cycle", run: channel((*link.Client).SetDuty)},

		"status": {help: "Show flight state and channel outputs", run: runStatus},
		"dict":   {help: "Print dictionary summary", run: runDict},
		"raw":    {help: "Print raw dictionary data", run: runRaw},
		"help":   {help: "Show this help message", run: runHelp},
		"quit":   {help: "Exit the program", run: func(*link.Client, []string, io.Writer) error { return errQuit }},
	}
}

// execute runs one tokenized command line
func execute(c *link.Client, args []string, out io.Writer) error {
	name := args[0]
	switch name {
	case "exit", "q":
		name = "quit"
	case "?":
		name = "help"
	}

	cmd, ok := shellCommands[name]
	if !ok {
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", args[0])
	}
	if len(args)-1 != cmd.nargs {
		return fmt.Errorf("usage: %s %s", name, cmd.args)
	}
	return cmd.run(c, args[1:], out)
}

func simple(op func(*link.Client) error) func(*link.Client, []string, io.Writer) error {
	return func(c *link.Client, _ []string, out io.Writer) error {
		if err := op(c); err != nil {
			return err
		}
		fmt.Fprintln(out, "ok")
		return nil
	}
}

func axis(op func(*link.Client, float64) error) func(*link.Client, []string, io.Writer) error {
	return func(c *link.Client, args []string, out io.Writer) error {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("bad value %q", args[0])
		}
		if err := op(c, v); err != nil {
			return err
		}
		fmt.Fprintln(out, "ok")
		return nil
	}
}

func channel(op func(*link.Client, core.Channel, float64) error) func(*link.Client, []string, io.Writer) error {
	return func(c *link.Client, args []string, out io.Writer) error {
		ch, ok := core.ParseChannel(args[0])
		if !ok {
			return fmt.Errorf("unknown channel %q", args[0])
		}
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("bad value %q", args[1])
		}
		if err := op(c, ch, v); err != nil {
			return err
		}
		fmt.Fprintln(out, "ok")
		return nil
	}
}

func runControls(c *link.Client, args []string, out io.Writer) error {
	var v [4]float64
	for i, a := range args {
		var err error
		if v[i], err = strconv.ParseFloat(a, 64); err != nil {
			return fmt.Errorf("bad value %q", a)
		}
	}
	if err := c.SetControls(v[0], v[1], v[2], v[3]); err != nil {
		return err
	}
	fmt.Fprintln(out, "ok")
	return nil
}

func runStatus(c *link.Client, _ []string, out io.Writer) error {
	status, err := c.Query()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "state: %s\n", status.State)
	for _, ch := range core.AllChannels {
		s := status.Channels[ch.Index()]
		fmt.Fprintf(out, "  %d %-9s output %7.3f%%  duty %7.4f%%\n", ch, ch, s.Output, s.Duty)
	}
	return nil
}

func runDict(c *link.Client, _ []string, out io.Writer) error {
	dict := c.Dictionary()
	if dict == nil {
		return link.ErrNoDictionary
	}
	fmt.Fprintf(out, "Version: %s\n", dict.Version)
	fmt.Fprintf(out, "Build: %s\n", dict.BuildVersions)

	fmt.Fprintln(out, "\nConfig:")
	for _, k := range sortedKeys(dict.Config) {
		fmt.Fprintf(out, "  %s = %s\n", k, dict.Config[k])
	}
	fmt.Fprintf(out, "\nCommands (%d):\n", len(dict.Commands))
	for _, k := range sortedKeys(dict.Commands) {
		fmt.Fprintf(out, "  [%d] %s\n", dict.Commands[k], k)
	}
	fmt.Fprintf(out, "\nResponses (%d):\n", len(dict.Responses))
	for _, k := range sortedKeys(dict.Responses) {
		fmt.Fprintf(out, "  [%d] %s\n", dict.Responses[k], k)
	}
	return nil
}

func runRaw(c *link.Client, _ []string, out io.Writer) error {
	raw := c.DictionaryRaw()
	fmt.Fprintf(out, "Raw dictionary data (%d bytes):\n%s\n", len(raw), raw)
	return nil
}

func runHelp(_ *link.Client, _ []string, out io.Writer) error {
	fmt.Fprintln(out, "\nAvailable commands:")
	for _, name := range sortedKeys(shellCommands) {
		cmd := shellCommands[name]
		fmt.Fprintf(out, "  %-34s - %s\n", name+" "+cmd.args, cmd.help)
	}
	fmt.Fprintln(out)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
