package game

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yourusername/bsengine/pkg/engine"
)

// Standard game dimensions.
const (
	StandardWidth  = 10
	StandardHeight = 10
)

// ErrInvalidFleet wraps every reason a fleet cannot be used.
var ErrInvalidFleet = errors.New("invalid fleet")

// NamedShip is a ship with the name players know it by.
type NamedShip struct {
	Name string
	Ship *engine.Ship
}

// Fleet is an ordered list of named ships.
type Fleet []NamedShip

// LineShip returns a straight ship of length squares along y.
func LineShip(length int) *engine.Ship {
	s := engine.NewShip()
	for j := 0; j < length; j++ {
		s.AddSquare(0, j)
	}
	return s
}

// StandardFleet returns the five ships of a standard game:
// aircraft carrier (5), battleship (4), submarine (3), cruiser (3) and destroyer (2).
func StandardFleet() Fleet {
	return Fleet{
		{Name: "Aircraft carrier", Ship: LineShip(5)},
		{Name: "Battleship", Ship: LineShip(4)},
		{Name: "Submarine", Ship: LineShip(3)},
		{Name: "Cruiser", Ship: LineShip(3)},
		{Name: "Destroyer", Ship: LineShip(2)},
	}
}

// Validate checks that every ship has a unique printable name and at least one square.
func (f Fleet) Validate() error {
	seen := make(map[string]bool, len(f))
	for i, ns := range f {
		name := strings.TrimSpace(ns.Name)
		switch {
		case name == "":
			return fmt.Errorf("%w: ship %d: empty name", ErrInvalidFleet, i)
		case name != ns.Name || strings.ContainsAny(name, "\"\n\r"):
			return fmt.Errorf("%w: ship %q: invalid name", ErrInvalidFleet, ns.Name)
		case seen[name]:
			return fmt.Errorf("%w: ship %q: duplicate name", ErrInvalidFleet, ns.Name)
		case ns.Ship == nil || ns.Ship.NumSquares() == 0:
			return fmt.Errorf("%w: ship %q: %w", ErrInvalidFleet, ns.Name, engine.ErrEmptyShip)
		}
		seen[name] = true
	}
	return nil
}

// Fits checks that every ship fits a width x height board in at least one rotation.
func (f Fleet) Fits(width, height int) error {
	for _, ns := range f {
		if ns.Ship == nil {
			continue
		}
		shape := ns.Ship.Clone()
		shape.Normalize()
		br := shape.BottomRight()
		w, h := br.X+1, br.Y+1
		if (w > width || h > height) && (h > width || w > height) {
			return fmt.Errorf("%w: ship %q (%dx%d) does not fit a %dx%d board", ErrInvalidFleet, ns.Name, w, h, width, height)
		}
	}
	return nil
}

// Clone returns a fleet of independent copies of the ships.
func (f Fleet) Clone() Fleet {
	out := make(Fleet, len(f))
	for i, ns := range f {
		out[i] = NamedShip{Name: ns.Name, Ship: ns.Ship.Clone()}
	}
	return out
}

// ShipSpec describes one ship in a configuration file.
// Exactly one of Length, Shape or Squares must be set.
type ShipSpec struct {
	Name    string   `yaml:"name" json:"name" validate:"required"`
	Length  int      `yaml:"length,omitempty" json:"length,omitempty" validate:"gte=0,lte=256"`
	Shape   string   `yaml:"shape,omitempty" json:"shape,omitempty"`
	Squares []string `yaml:"squares,omitempty" json:"squares,omitempty"`
}

// Build creates the ship described by the spec.
func (s ShipSpec) Build() (*engine.Ship, error) {
	set := 0
	if s.Length > 0 {
		set++
	}
	if s.Shape != "" {
		set++
	}
	if len(s.Squares) > 0 {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: ship %q: exactly one of length, shape or squares is required", ErrInvalidFleet, s.Name)
	}
	if s.Length > engine.MaxDimension || len(s.Squares) > engine.MaxDimension*engine.MaxDimension {
		return nil, fmt.Errorf("%w: ship %q is larger than any board", ErrInvalidFleet, s.Name)
	}

	switch {
	case s.Length > 0:
		return LineShip(s.Length), nil
	case s.Shape != "":
		ship, err := engine.ParseShape(s.Shape)
		if err != nil {
			return nil, fmt.Errorf("ship %q: %w", s.Name, err)
		}
		return ship, nil
	default:
		ship := engine.NewShip()
		for _, text := range s.Squares {
			sq, err := engine.ParseSquare(text)
			if err != nil {
				return nil, fmt.Errorf("ship %q: %w", s.Name, err)
			}
			ship.AddSquare(sq.X, sq.Y)
		}
		ship.Normalize()
		return ship, nil
	}
}

// FleetSpec describes a board and its fleet in a configuration file.
type FleetSpec struct {
	Width  int        `yaml:"width" json:"width" validate:"required,gt=0,lte=256"`
	Height int        `yaml:"height" json:"height" validate:"required,gt=0,lte=256"`
	Ships  []ShipSpec `yaml:"ships" json:"ships" validate:"required,min=1,dive"`
}

// StandardFleetSpec returns the spec of a standard game.
func StandardFleetSpec() FleetSpec {
	spec := FleetSpec{Width: StandardWidth, Height: StandardHeight}
	for _, ns := range StandardFleet() {
		spec.Ships = append(spec.Ships, ShipSpec{Name: ns.Name, Length: ns.Ship.NumSquares()})
	}
	return spec
}

// Build creates the fleet described by the spec.
func (s FleetSpec) Build() (Fleet, error) {
	if s.Width <= 0 || s.Height <= 0 || s.Width > engine.MaxDimension || s.Height > engine.MaxDimension {
		return nil, fmt.Errorf("board %dx%d: %w", s.Width, s.Height, engine.ErrInvalidDimensions)
	}
	if len(s.Ships) == 0 {
		return nil, fmt.Errorf("%w: no ships", ErrInvalidFleet)
	}
	fleet := make(Fleet, 0, len(s.Ships))
	for _, ss := range s.Ships {
		ship, err := ss.Build()
		if err != nil {
			return nil, err
		}
		fleet = append(fleet, NamedShip{Name: ss.Name, Ship: ship})
	}
	if err := fleet.Validate(); err != nil {
		return nil, err
	}
	if err := fleet.Fits(s.Width, s.Height); err != nil {
		return nil, err
	}
	return fleet, nil
}

// LoadFleetSpec reads a YAML fleet spec.
func LoadFleetSpec(r io.Reader) (FleetSpec, error) {
	var spec FleetSpec
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return FleetSpec{}, fmt.Errorf("decode fleet spec: %w", err)
	}
	return spec, nil
}
