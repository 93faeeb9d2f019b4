// Package server implements the unix-socket text protocol. Sessions
// are strictly serial: one connection is processed to completion
// before the next is accepted, and all light mutations go through the
// state store; hardware is never touched here.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nasutils/ledd/internal/ledger"
	"github.com/nasutils/ledd/internal/metrics"
	"github.com/nasutils/ledd/internal/state"
)

// DefaultSocketPath is the well-known endpoint clients connect to.
const DefaultSocketPath = "/var/run/ugreen-ledd.sock"

// readBufferSize bounds one command; the protocol has no framing and
// assumes a whole command fits a single read.
const readBufferSize = 256

// Server owns the listening socket and the session loop.
type Server struct {
	path   string
	store  *state.Store
	ledger *ledger.Ledger // nil when auditing is disabled
	ln     net.Listener
}

// New creates a server for the given socket path.
func New(path string, store *state.Store, audit *ledger.Ledger) *Server {
	if path == "" {
		path = DefaultSocketPath
	}
	return &Server{path: path, store: store, ledger: audit}
}

// Listen binds the unix socket, replacing any stale socket file left
// by a previous run. A bind failure here is fatal to startup.
func (s *Server) Listen() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return err
	}
	s.ln = ln
	log.Info().Str("socket", s.path).Msg("Listening")
	return nil
}

// Run accepts and processes one connection at a time until ctx is
// cancelled. Accept errors are logged and the loop continues; a slow
// or idle client blocks further accepts by design.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				log.Info().Msg("Server stopping")
				return nil
			default:
			}
			log.Error().Err(err).Msg("Accept failed")
			continue
		}
		s.handle(conn)
	}
}

// handle processes one session to completion.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	session := uuid.NewString()
	metrics.Sessions.Inc()
	log.Debug().Str("session", session).Msg("Client connected")

	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if err != io.EOF {
				log.Debug().Err(err).Str("session", session).Msg("Read failed")
			}
			return
		}

		// One read is one command.
		cont, err := s.exec(conn, session, string(buf[:n]))
		if err != nil {
			log.Warn().Err(err).Str("session", session).Msg("Session aborted")
			return
		}
		if !cont {
			log.Debug().Str("session", session).Msg("Session closed")
			return
		}
	}
}
