package main

import (
	"fmt"
	"os"
	"strings"

	"aria/internal/ipc"
)

const usage = `usage: aria-ctl <command> [arg]

commands:
  trigger          arm the microphone for one utterance
  mic-on, mic-off  switch the persistent microphone toggle
  query <text>     submit a typed query
  wake-on          enable the wake-word listener
  wake-off         disable the wake-word listener
  logout           end the active session
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd := os.Args[1]
	arg := strings.Join(os.Args[2:], " ")

	switch cmd {
	case "trigger", "mic-on", "mic-off", "wake-on", "wake-off", "logout":
	case "query":
		if arg == "" {
			fmt.Fprintln(os.Stderr, "query requires text")
			os.Exit(2)
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := ipc.SendCommand(cmd, arg); err != nil {
		fmt.Println("aria-daemon not running:", err)
		os.Exit(1)
	}
}
