// Package game runs battleships sessions on top of the placement engine.
//
// A Session owns one board and the named fleet on it, journals every change
// as a record action and pushes events to subscribers. A Manager keeps the
// sessions of a server and optionally persists them.
package game

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yourusername/bsengine/internal/stateid"
	"github.com/yourusername/bsengine/pkg/engine"
	"github.com/yourusername/bsengine/pkg/record"
)

var (
	// ErrUnknownSession is returned when no session has the requested id.
	ErrUnknownSession = errors.New("unknown session")
	// ErrUnknownShipName is returned when no ship of the session has the requested name.
	ErrUnknownShipName = errors.New("unknown ship name")
	// ErrInvalidRecord wraps every reason a record cannot be replayed.
	ErrInvalidRecord = errors.New("invalid record")
)

// EventType identifies what changed in a session.
type EventType string

const (
	EventState  EventType = "state"
	EventSink   EventType = "sink"
	EventRaise  EventType = "raise"
	EventClosed EventType = "closed"
)

// Event is pushed to subscribers after every change.
type Event struct {
	Type     EventType          `json:"type"`
	Session  string             `json:"session"`
	Seq      int                `json:"seq"`
	Square   *engine.Square     `json:"square,omitempty"`
	State    engine.SquareState `json:"state"`
	Ship     string             `json:"ship,omitempty"`
	Rotation int                `json:"rotation,omitempty"`
	StateID  string             `json:"state_id"`
}

// Session is a single game. It is safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id     string
	board  *engine.IndependentBoard
	fleet  Fleet
	byName map[string]*engine.Ship
	rec    *record.Record

	subs   map[chan Event]struct{}
	logger *slog.Logger

	created time.Time
	updated time.Time

	// persistMu orders the manager's saves of this session
	persistMu sync.Mutex
	removed   bool
}

// NewSession creates a session on a width x height board with the given fleet.
// The fleet is copied.
func NewSession(id string, width, height int, fleet Fleet, logger *slog.Logger) (*Session, error) {
	if err := fleet.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	board, err := engine.NewIndependentBoard(width, height)
	if err != nil {
		return nil, err
	}
	if err := fleet.Fits(width, height); err != nil {
		return nil, err
	}

	s := &Session{
		id:      id,
		board:   board,
		fleet:   fleet.Clone(),
		byName:  make(map[string]*engine.Ship, len(fleet)),
		rec:     record.NewRecord(width, height),
		subs:    make(map[chan Event]struct{}),
		logger:  logger.With(slog.String("session", id)),
		created: time.Now(),
	}
	s.updated = s.created

	for _, ns := range s.fleet {
		if err := board.AddShip(ns.Ship); err != nil {
			return nil, fmt.Errorf("add ship %q: %w", ns.Name, err)
		}
		s.byName[ns.Name] = ns.Ship
		s.rec.AddShip(ns.Name, ns.Ship)
	}

	s.logger.Debug("session created",
		slog.Int("width", width),
		slog.Int("height", height),
		slog.Int("ships", len(fleet)),
		slog.Int("placements", board.NumPlacements()))
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Size returns the board width and height.
func (s *Session) Size() (int, int) {
	return s.board.Width(), s.board.Height()
}

// Fleet returns a copy of the session's fleet.
func (s *Session) Fleet() Fleet {
	return s.fleet.Clone()
}

// Updated returns the time of the last change.
func (s *Session) Updated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updated
}

func (s *Session) ship(name string) (*engine.Ship, error) {
	ship, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownShipName, name)
	}
	return ship, nil
}

// SetState sets the square at (x, y) to Open, Miss or Hit.
func (s *Session) SetState(x, y int, state engine.SquareState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setStateLocked(x, y, state)
}

func (s *Session) setStateLocked(x, y int, state engine.SquareState) error {
	current, err := s.board.State(x, y)
	if err != nil {
		return err
	}
	if err := s.board.SetState(x, y, state); err != nil {
		return err
	}
	if current == state {
		return nil
	}

	s.rec.AddState(x, y, state)
	sq := engine.Square{X: x, Y: y}
	s.publishLocked(Event{Type: EventState, Square: &sq, State: state})
	s.logger.Debug("state changed",
		slog.String("square", sq.String()),
		slog.String("from", current.String()),
		slog.String("to", state.String()))
	return nil
}

// Cycle advances the square at (x, y) through Open, Miss, Hit and back to
// Open, and returns the new state. Sunk squares are left unchanged.
func (s *Session) Cycle(x, y int) (engine.SquareState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.board.State(x, y)
	if err != nil {
		return current, err
	}

	var next engine.SquareState
	switch current {
	case engine.Open:
		next = engine.Miss
	case engine.Miss:
		next = engine.Hit
	case engine.Hit:
		next = engine.Open
	default:
		return current, nil
	}
	if err := s.setStateLocked(x, y, next); err != nil {
		return current, err
	}
	return next, nil
}

// Sink sinks the named ship, rotated and anchored at (x, y).
// It reports false, without error, when the footprint is not all Hit or the
// ship is already sunk.
func (s *Session) Sink(name string, rotation, x, y int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ship, err := s.ship(name)
	if err != nil {
		return false, err
	}
	ok, err := s.board.Sink(ship, rotation, x, y)
	if err != nil || !ok {
		return false, err
	}

	s.rec.AddSink(name, rotation, x, y)
	anchor := engine.Square{X: x, Y: y}
	s.publishLocked(Event{Type: EventSink, Square: &anchor, State: engine.Sunk, Ship: name, Rotation: rotation})
	s.logger.Info("ship sunk", slog.String("ship", name), slog.Int("rotation", rotation), slog.String("anchor", anchor.String()))
	return true, nil
}

// Raise reverts the sink of the named ship.
func (s *Session) Raise(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ship, err := s.ship(name)
	if err != nil {
		return err
	}
	if err := s.board.Raise(ship); err != nil {
		return err
	}

	s.rec.AddRaise(name)
	s.publishLocked(Event{Type: EventRaise, State: engine.Hit, Ship: name})
	s.logger.Info("ship raised", slog.String("ship", name))
	return nil
}

// StateID returns the compact id of the current board states.
func (s *Session) StateID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stateid.StateID(s.board.StatesMatrix())
}

// ShipView summarizes one ship of a session.
type ShipView struct {
	Name        string          `json:"name"`
	Size        int             `json:"size"`
	Placements  int             `json:"placements"`
	Active      int             `json:"active"`
	Sunk        bool            `json:"sunk"`
	SunkSquares []engine.Square `json:"sunk_squares,omitempty"`
}

// View is a snapshot of a session.
type View struct {
	ID          string                 `json:"id"`
	StateID     string                 `json:"state_id"`
	Width       int                    `json:"width"`
	Height      int                    `json:"height"`
	States      [][]engine.SquareState `json:"states"`
	Counts      [][]int                `json:"counts"`
	Probability [][]float64            `json:"probability"`
	Normalized  [][]float64            `json:"normalized"`
	Ships       []ShipView             `json:"ships"`
	Actions     int                    `json:"actions"`
	Updated     time.Time              `json:"updated"`
}

// View returns a snapshot of the board and its matrices. Matrices are indexed [x][y].
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	states := s.board.StatesMatrix()
	counts := s.board.ShipsMatrix()
	v := View{
		ID:          s.id,
		StateID:     stateid.StateID(states),
		Width:       s.board.Width(),
		Height:      s.board.Height(),
		States:      states,
		Counts:      counts,
		Probability: s.board.ProbabilityMatrix(),
		Normalized:  engine.Normalize(counts),
		Ships:       make([]ShipView, 0, len(s.fleet)),
		Actions:     len(s.rec.Actions),
		Updated:     s.updated,
	}
	for _, ns := range s.fleet {
		total, _ := s.board.Total(ns.Ship)
		placements, _ := s.board.NumShipPlacements(ns.Ship)
		sunkSquares, sunk := s.board.SunkSquares(ns.Ship)
		v.Ships = append(v.Ships, ShipView{
			Name:        ns.Name,
			Size:        ns.Ship.NumSquares(),
			Placements:  placements,
			Active:      total,
			Sunk:        sunk,
			SunkSquares: sunkSquares,
		})
	}
	return v
}

// Targets returns up to n recommended Open squares, best first.
func (s *Session) Targets(n int, by engine.RankBy) []engine.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return engine.BestTargets(s.board, n, by)
}

// ShipProbability returns the probability matrix of the named ship.
func (s *Session) ShipProbability(name string) ([][]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ship, err := s.ship(name)
	if err != nil {
		return nil, err
	}
	return s.board.ShipProbabilityMatrix(ship)
}

// Record returns a copy of the session's record with the current state id.
func (s *Session) Record() *record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.rec.Clone()
	rec.State = stateid.StateID(s.board.StatesMatrix())
	return rec
}

// Replay creates a session from a record by applying its actions in order.
//
// A journal entry that no longer applies (a sink whose squares are not all
// hit, for example) is an error. If the record carries a state id, the
// replayed board must match it.
func Replay(id string, rec *record.Record, logger *slog.Logger) (*Session, error) {
	fleet := make(Fleet, 0, len(rec.Ships))
	for _, entry := range rec.Ships {
		fleet = append(fleet, NamedShip{Name: entry.Name, Ship: engine.NewShip(entry.Squares...)})
	}

	s, err := NewSession(id, rec.Width, rec.Height, fleet, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	s.rec.Event = rec.Event
	s.rec.Date = rec.Date
	s.rec.Place = rec.Place
	s.rec.Comment = rec.Comment

	for i, action := range rec.Actions {
		if err := s.apply(action); err != nil {
			return nil, fmt.Errorf("%w: action %d (%s): %w", ErrInvalidRecord, i+1, action, err)
		}
	}

	if rec.State != "" {
		want, err := stateid.StatesFromID(rec.State)
		if err != nil {
			return nil, fmt.Errorf("%w: record state: %w", ErrInvalidRecord, err)
		}
		if !stateid.Equal(want, s.board.StatesMatrix()) {
			return nil, fmt.Errorf("%w: replayed board %s does not match record state %s",
				ErrInvalidRecord, stateid.StateID(s.board.StatesMatrix()), rec.State)
		}
	}
	return s, nil
}

var errSinkRejected = errors.New("sink rejected")

// apply performs one record action.
func (s *Session) apply(a record.Action) error {
	switch a.Type {
	case record.ActionSink:
		ok, err := s.Sink(a.Ship, a.Rotation, a.Square.X, a.Square.Y)
		if err != nil {
			return err
		}
		if !ok {
			return errSinkRejected
		}
		return nil
	case record.ActionRaise:
		return s.Raise(a.Ship)
	default:
		state, ok := a.Type.State()
		if !ok {
			return fmt.Errorf("unknown action type %d", a.Type)
		}
		return s.SetState(a.Square.X, a.Square.Y, state)
	}
}

// Subscribe returns a channel of events and a function that cancels the
// subscription. Events are dropped for subscribers whose buffer is full.
func (s *Session) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Close notifies and disconnects every subscriber.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.publishLocked(Event{Type: EventClosed})
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
}

// publishLocked numbers the event and fans it out without blocking.
func (s *Session) publishLocked(ev Event) {
	s.updated = time.Now()
	ev.Session = s.id
	ev.Seq = len(s.rec.Actions)
	ev.StateID = stateid.StateID(s.board.StatesMatrix())

	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Warn("dropping event for slow subscriber", slog.String("type", string(ev.Type)))
		}
	}
}
