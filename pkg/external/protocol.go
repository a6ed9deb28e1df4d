// Package external implements a line-oriented TCP protocol for playing a
// session from a terminal or a bot.
//
// Protocol overview:
// - Server listens on a TCP port
// - Client connects and sends one command per line
// - Commands include: new, miss, hit, open, cycle, sink, raise, show, best, exit
// - Each response ends with a newline, followed by a prompt when enabled
// - Sessions are shared with the HTTP API through the session manager
package external

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/yourusername/bsengine/pkg/game"
)

// Server implements the line protocol server.
type Server struct {
	manager  *game.Manager
	listener net.Listener
	mu       sync.Mutex
	running  bool
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	options  ServerOptions
	logger   *slog.Logger
}

// ServerOptions configures the line protocol server.
type ServerOptions struct {
	Host          string         // Host to bind to
	Port          int            // TCP port to listen on, 0 picks a free port
	PromptEnabled bool           // Send prompts after responses
	Game          game.FleetSpec // Board and fleet for 'new'
}

// DefaultServerOptions returns sensible defaults.
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		Host:          "localhost",
		Port:          8081,
		PromptEnabled: true,
		Game:          game.StandardFleetSpec(),
	}
}

// NewServer creates a new line protocol server.
func NewServer(m *game.Manager, opts ServerOptions, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Game.Width == 0 {
		opts.Game = game.StandardFleetSpec()
	}
	return &Server{
		manager: m,
		options: opts,
		conns:   make(map[net.Conn]struct{}),
		logger:  logger,
	}
}

// Start begins listening for connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("server already running")
	}

	addr := net.JoinHostPort(s.options.Host, strconv.Itoa(s.options.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.running = true
	s.logger.Info("line protocol listening", slog.String("addr", listener.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the listening address, or nil when stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every open connection, and waits for the
// connection handlers to finish.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	err := s.listener.Close()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("line protocol stopped")
	return err
}

// Serve starts the server and stops it when ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

// acceptLoop accepts incoming connections.
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if !running {
				return // Server stopped
			}
			s.logger.Warn("accept failed", slog.Any("error", err))
			continue
		}

		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.handleConnection(conn)
	}
}

// handleConnection handles a single client connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		s.wg.Done()
	}()

	logger := s.logger.With(slog.String("remote", conn.RemoteAddr().String()))
	logger.Debug("client connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := NewInterpreter(s.manager, s.options.Game)
	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	prompt := func() {
		if s.options.PromptEnabled {
			writer.WriteString("> ")
		}
		writer.Flush()
	}
	prompt()

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logger.Debug("read failed", slog.Any("error", err))
			}
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		response, quit := execute(ctx, in, line, logger)
		writer.WriteString(response)
		if quit {
			writer.Flush()
			logger.Debug("client quit")
			return
		}
		prompt()
	}
}

// execute runs one line, turning a panic into an error reply so that a bad
// command cannot take down the process.
func execute(ctx context.Context, in *Interpreter, line string, logger *slog.Logger) (response string, quit bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("command panicked", slog.String("line", strings.TrimSpace(line)), slog.Any("panic", r))
			response, quit = errorf("internal error"), false
		}
	}()
	return in.Execute(ctx, line)
}
