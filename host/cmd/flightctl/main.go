// Command flightctl is an interactive shell for a flight controller board
// connected over USB serial, or for an in-process simulated board.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"

	"github.com/google/shlex"

	"flightemu/core"
	"flightemu/host/link"
	"flightemu/host/serial"
	"flightemu/targets/sim"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud    = flag.Int("baud", 250000, "Baud rate (ignored for USB CDC)")
	simMode = flag.Bool("sim", false, "Talk to a simulated board instead of a serial device")
	verbose = flag.Bool("verbose", false, "Log core debug output")
)

func main() {
	flag.Parse()

	if *verbose {
		core.SetDebugWriter(func(s string) { log.Println(s) })
		core.SetDebugEnabled(true)
	}

	client, err := connect()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	// One-shot mode: the remaining arguments are a single command
	if flag.NArg() > 0 {
		if err := execute(client, flag.Args(), os.Stdout); err != nil && !errors.Is(err, errQuit) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		args, err := shlex.Split(strings.TrimSpace(scanner.Text()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		if err := execute(client, args, os.Stdout); err != nil {
			if errors.Is(err, errQuit) {
				fmt.Println("Goodbye!")
				return
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

// connect opens the serial board, or starts a simulated single-unit board
// behind an in-memory pipe
func connect() (*link.Client, error) {
	if !*simMode {
		fmt.Printf("Connecting to %s...\n", *device)
		cfg := serial.DefaultConfig(*device)
		cfg.Baud = *baud
		return link.Dial(cfg)
	}

	board := core.SingleUnitBoard(0, [core.NumChannels]core.PinID{12, 27, 33, 15, 32, 14})
	ctrl, err := core.NewPWMController(sim.New(), board)
	if err != nil {
		return nil, err
	}
	fc, err := core.NewFlightController(core.ProtocolPWM, ctrl)
	if err != nil {
		return nil, err
	}

	hostConn, devConn := net.Pipe()
	go func() {
		if err := sim.NewDevice(fc).Serve(devConn); err != nil {
			log.Printf("sim: %v", err)
		}
	}()

	client := link.NewClient(hostConn)
	if err := client.RetrieveDictionary(); err != nil {
		client.Close()
		return nil, err
	}
	fmt.Println("Connected to simulated board")
	return client, nil
}
