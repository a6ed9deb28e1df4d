package external

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/yourusername/bsengine/pkg/engine"
	"github.com/yourusername/bsengine/pkg/game"
	"github.com/yourusername/bsengine/pkg/record"
)

// Version is reported by the version command.
const Version = "bsengine line protocol 1.0"

var (
	sinkArgsRE  = regexp.MustCompile(`^(?:"([^"]+)"|(\S+))\s+(-?\d+)\s+(\S+)$`)
	raiseArgsRE = regexp.MustCompile(`^(?:"([^"]+)"|(\S.*))$`)
)

// Interpreter runs text commands against one session at a time.
// It is not safe for concurrent use; each connection gets its own.
type Interpreter struct {
	manager *game.Manager
	spec    game.FleetSpec
	session *game.Session
}

// NewInterpreter creates an interpreter. Sessions are created through m so
// they are shared with the other front ends; m may be nil for private sessions.
func NewInterpreter(m *game.Manager, spec game.FleetSpec) *Interpreter {
	return &Interpreter{manager: m, spec: spec}
}

// Session returns the current session, or nil.
func (in *Interpreter) Session() *game.Session {
	return in.session
}

// Execute runs one command line and returns its output.
// quit reports whether the client asked to end the conversation.
func (in *Interpreter) Execute(ctx context.Context, line string) (out string, quit bool) {
	line = strings.TrimSpace(line)
	command, args, _ := strings.Cut(line, " ")
	command = strings.ToLower(command)
	args = strings.TrimSpace(args)

	switch command {
	case "":
		return "Error: empty command\n", false
	case "version":
		return Version + "\n", false
	case "help":
		return helpText, false
	case "exit", "quit":
		return "Goodbye\n", true
	case "new":
		return in.handleNew(ctx, args), false
	case "attach":
		return in.handleAttach(ctx, args), false
	}

	if in.session == nil {
		return "Error: no session, start one with 'new'\n", false
	}

	switch command {
	case "open", "miss", "hit":
		return in.handleState(ctx, command, args), false
	case "cycle":
		return in.handleCycle(ctx, args), false
	case "sink":
		return in.handleSink(ctx, args), false
	case "raise":
		return in.handleRaise(ctx, args), false
	case "show":
		return in.handleShow(args), false
	case "best":
		return in.handleBest(args), false
	case "ships":
		return in.handleShips(), false
	case "id":
		return in.session.StateID() + "\n", false
	case "record":
		return in.handleRecord(), false
	default:
		return fmt.Sprintf("Error: unknown command '%s'\n", command), false
	}
}

const helpText = `Available commands:
  new [W H]              - Start a session (default board and fleet)
  attach ID              - Continue an existing session
  miss|hit|open X,Y      - Set a square
  cycle X,Y              - Advance a square open -> miss -> hit -> open
  sink SHIP ROT X,Y      - Sink a ship (quote names with spaces)
  raise SHIP             - Undo a sink
  show [states|counts|prob|ship SHIP]
                         - Print a board matrix
  best [N] [probability|count]
                         - Suggest squares to fire at
  ships                  - List ships and their placements
  id                     - Print the state id
  record                 - Print the session record
  version                - Show version information
  exit                   - Close connection
`

func errorf(format string, args ...any) string {
	return "Error: " + fmt.Sprintf(format, args...) + "\n"
}

// mutate applies fn to the current session, persisting it when shared.
func (in *Interpreter) mutate(ctx context.Context, fn func(*game.Session) error) error {
	if in.manager == nil {
		return fn(in.session)
	}
	return in.manager.Update(ctx, in.session.ID(), fn)
}

func (in *Interpreter) handleNew(ctx context.Context, args string) string {
	spec := in.spec
	if fields := strings.Fields(args); len(fields) > 0 {
		if len(fields) != 2 {
			return errorf("new takes a width and a height")
		}
		w, errW := strconv.Atoi(fields[0])
		h, errH := strconv.Atoi(fields[1])
		if errW != nil || errH != nil {
			return errorf("invalid board size %q", args)
		}
		spec.Width, spec.Height = w, h
	}
	fleet, err := spec.Build()
	if err != nil {
		return errorf("%v", err)
	}

	var s *game.Session
	if in.manager != nil {
		s, err = in.manager.Create(ctx, spec.Width, spec.Height, fleet)
	} else {
		s, err = game.NewSession(uuid.NewString(), spec.Width, spec.Height, fleet, nil)
	}
	if err != nil {
		return errorf("%v", err)
	}
	in.session = s
	return fmt.Sprintf("session %s %dx%d, %d ships\n", s.ID(), spec.Width, spec.Height, len(fleet))
}

func (in *Interpreter) handleAttach(ctx context.Context, args string) string {
	if in.manager == nil {
		return errorf("no shared sessions")
	}
	if args == "" {
		return errorf("attach needs a session id")
	}
	s, err := in.manager.Get(ctx, args)
	if err != nil {
		return errorf("%v", err)
	}
	in.session = s
	w, h := s.Size()
	return fmt.Sprintf("session %s %dx%d, %d ships\n", s.ID(), w, h, len(s.Fleet()))
}

func (in *Interpreter) handleState(ctx context.Context, command, args string) string {
	sq, err := engine.ParseSquare(args)
	if err != nil {
		return errorf("%v", err)
	}
	state, _ := engine.ParseSquareState(command)
	if err := in.mutate(ctx, func(s *game.Session) error {
		return s.SetState(sq.X, sq.Y, state)
	}); err != nil {
		return errorf("%v", err)
	}
	return fmt.Sprintf("%d,%d %s\n", sq.X, sq.Y, state)
}

func (in *Interpreter) handleCycle(ctx context.Context, args string) string {
	sq, err := engine.ParseSquare(args)
	if err != nil {
		return errorf("%v", err)
	}
	var state engine.SquareState
	if err := in.mutate(ctx, func(s *game.Session) error {
		state, err = s.Cycle(sq.X, sq.Y)
		return err
	}); err != nil {
		return errorf("%v", err)
	}
	return fmt.Sprintf("%d,%d %s\n", sq.X, sq.Y, state)
}

func (in *Interpreter) handleSink(ctx context.Context, args string) string {
	m := sinkArgsRE.FindStringSubmatch(args)
	if m == nil {
		return errorf("usage: sink SHIP ROT X,Y")
	}
	name := m[1] + m[2]
	rot, _ := strconv.Atoi(m[3])
	sq, err := engine.ParseSquare(m[4])
	if err != nil {
		return errorf("%v", err)
	}

	var sunk bool
	if err := in.mutate(ctx, func(s *game.Session) error {
		sunk, err = s.Sink(name, rot, sq.X, sq.Y)
		return err
	}); err != nil {
		return errorf("%v", err)
	}
	if !sunk {
		return fmt.Sprintf("%s cannot be sunk there\n", name)
	}
	return fmt.Sprintf("%s sunk\n", name)
}

func (in *Interpreter) handleRaise(ctx context.Context, args string) string {
	m := raiseArgsRE.FindStringSubmatch(args)
	if m == nil {
		return errorf("usage: raise SHIP")
	}
	name := m[1] + strings.TrimSpace(m[2])
	if err := in.mutate(ctx, func(s *game.Session) error {
		return s.Raise(name)
	}); err != nil {
		return errorf("%v", err)
	}
	return fmt.Sprintf("%s raised\n", name)
}

func (in *Interpreter) handleShow(args string) string {
	what, rest, _ := strings.Cut(args, " ")
	view := in.session.View()
	switch strings.ToLower(what) {
	case "", "states":
		return RenderStates(view.States)
	case "counts":
		return RenderCounts(view.Counts)
	case "prob", "probability":
		return RenderProbability(view.Probability, view.States)
	case "ship":
		name := strings.Trim(strings.TrimSpace(rest), `"`)
		prob, err := in.session.ShipProbability(name)
		if err != nil {
			return errorf("%v", err)
		}
		return RenderProbability(prob, view.States)
	default:
		return errorf("unknown matrix '%s'", what)
	}
}

func (in *Interpreter) handleBest(args string) string {
	n, by := 5, engine.RankByProbability
	for _, field := range strings.Fields(args) {
		if v, err := strconv.Atoi(field); err == nil {
			n = v
			continue
		}
		r, err := engine.ParseRankBy(field)
		if err != nil {
			return errorf("%v", err)
		}
		by = r
	}

	targets := in.session.Targets(n, by)
	if len(targets) == 0 {
		return "no open squares\n"
	}
	var sb strings.Builder
	for i, t := range targets {
		fmt.Fprintf(&sb, "%d. %d,%d %5.1f%% (%d placements)\n",
			i+1, t.Square.X, t.Square.Y, t.Probability*100, t.Count)
	}
	return sb.String()
}

func (in *Interpreter) handleShips() string {
	var sb strings.Builder
	for _, ship := range in.session.View().Ships {
		if ship.Sunk {
			fmt.Fprintf(&sb, "%-20s size %d  sunk\n", ship.Name, ship.Size)
			continue
		}
		fmt.Fprintf(&sb, "%-20s size %d  %d/%d placements\n", ship.Name, ship.Size, ship.Active, ship.Placements)
	}
	return sb.String()
}

func (in *Interpreter) handleRecord() string {
	var sb strings.Builder
	if err := record.Export(&sb, in.session.Record()); err != nil {
		return errorf("%v", err)
	}
	return sb.String()
}
