package server

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/nasutils/ledd/internal/metrics"
	"github.com/nasutils/ledd/internal/state"
)

// Protocol errors. Any of these aborts the session; the client gets no
// error reply, just a closed connection.
var (
	ErrBadLEDID    = errors.New("invalid led id")
	ErrBadCommand  = errors.New("invalid command")
	ErrBadArgument = errors.New("invalid argument")
)

// exec parses and runs one command line. It returns cont=false when
// the session should end cleanly (exit) and an error when the session
// must be aborted.
func (s *Server) exec(out io.Writer, session, line string) (cont bool, err error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return false, fmt.Errorf("%w: %q", ErrBadCommand, line)
	}

	id, err := strconv.Atoi(fields[0])
	if err != nil || id < 0 || id >= state.MaxLEDs {
		return false, fmt.Errorf("%w: %q", ErrBadLEDID, fields[0])
	}

	cmd, args := fields[1], fields[2:]
	switch cmd {
	case "brightness_set":
		level, err := byteArg(args, 0)
		if err != nil {
			return false, err
		}
		if err := s.store.SetBrightness(id, level); err != nil {
			return false, err
		}

	case "color_set":
		var rgb [3]uint8
		for i := range rgb {
			v, err := byteArg(args, i)
			if err != nil {
				return false, err
			}
			rgb[i] = v
		}
		if err := s.store.SetColor(id, rgb[0], rgb[1], rgb[2]); err != nil {
			return false, err
		}

	case "on":
		if err := s.store.SetMode(id, state.ModeOn); err != nil {
			return false, err
		}

	case "off":
		if err := s.store.SetMode(id, state.ModeOff); err != nil {
			return false, err
		}

	case "blink":
		if len(args) < 3 {
			return false, fmt.Errorf("%w: blink needs type and timings", ErrBadArgument)
		}
		var mode state.OpMode
		switch args[0] {
		case "blink":
			mode = state.ModeBlink
		case "breath":
			mode = state.ModeBreath
		default:
			return false, fmt.Errorf("%w: blink type %q", ErrBadArgument, args[0])
		}
		tOn, tOff, err := timingArgs(args[1:])
		if err != nil {
			return false, err
		}
		if err := s.store.SetBlink(id, mode, tOn, tOff); err != nil {
			return false, err
		}

	case "oneshot_set":
		tOn, tOff, err := timingArgs(args)
		if err != nil {
			return false, err
		}
		if err := s.store.SetOneshot(id, tOn, tOff); err != nil {
			return false, err
		}

	case "shot":
		if err := s.store.Shot(id); err != nil {
			return false, err
		}

	case "status":
		led, err := s.store.ReadPending(id)
		if err != nil {
			return false, err
		}
		avail := 0
		if id < s.store.ProbedCount() {
			avail = 1
		}
		_, err = fmt.Fprintf(out, "%d %d %d %d %d %d %d %d\n",
			avail, int(led.Mode), led.Brightness, led.R, led.G, led.B, led.TOn, led.TOff)
		if err != nil {
			return false, err
		}

	case "exit":
		return false, nil

	default:
		return false, fmt.Errorf("%w: %q", ErrBadCommand, cmd)
	}

	metrics.Commands.WithLabelValues(cmd).Inc()
	if s.ledger != nil && cmd != "status" {
		if err := s.ledger.Append(session, id, cmd, args); err != nil {
			log.Warn().Err(err).Msg("Ledger append failed")
		}
	}
	return true, nil
}

// byteArg parses args[i] as an integer in [0, 255].
func byteArg(args []string, i int) (uint8, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%w: missing value", ErrBadArgument)
	}
	v, err := strconv.Atoi(args[i])
	if err != nil || v < 0 || v > 255 {
		return 0, fmt.Errorf("%w: %q", ErrBadArgument, args[i])
	}
	return uint8(v), nil
}

// timingArgs parses two millisecond values. Out-of-range timings are
// accepted here; the store clamps them.
func timingArgs(args []string) (tOn, tOff int, err error) {
	if len(args) < 2 {
		return 0, 0, fmt.Errorf("%w: missing timings", ErrBadArgument)
	}
	tOn, err = strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadArgument, args[0])
	}
	tOff, err = strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadArgument, args[1])
	}
	return tOn, tOff, nil
}
