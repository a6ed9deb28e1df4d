package record

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/yourusername/bsengine/pkg/engine"
)

// Record text format.
// Example:
//
//	; [Event "Friday night"]
//	; [Date "2026-10-14"]
//	10x10 board
//	ship "Destroyer": 0,0 0,1
//
//	1) miss 3,4
//	2) hit 5,5
//	3) sink "Destroyer" 1 5,5
//	4) raise "Destroyer"

var (
	tagRE    = regexp.MustCompile(`\[(\w+)\s+"([^"]*)"\]`)
	boardRE  = regexp.MustCompile(`^(\d+)\s*x\s*(\d+)\s+board$`)
	shipRE   = regexp.MustCompile(`^ship\s+"([^"]+)"\s*:\s*(.*)$`)
	actionRE = regexp.MustCompile(`^(\d+)\)\s*(\w+)\s*(.*)$`)
	sinkRE   = regexp.MustCompile(`^"([^"]+)"\s+(-?\d+)\s+(\S+)$`)
	raiseRE  = regexp.MustCompile(`^"([^"]+)"$`)
)

// ErrSyntax is returned for lines that cannot be parsed.
var ErrSyntax = errors.New("record syntax error")

// Import reads a record in text format.
func Import(r io.Reader) (*Record, error) {
	scanner := bufio.NewScanner(r)
	rec := NewRecord(0, 0)
	names := make(map[string]bool)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines
		if line == "" {
			continue
		}

		// Parse metadata comments
		if strings.HasPrefix(line, ";") {
			if m := tagRE.FindStringSubmatch(line); m != nil {
				switch strings.ToLower(m[1]) {
				case "event":
					rec.Event = m[2]
				case "date":
					rec.Date = m[2]
				case "site", "place":
					rec.Place = m[2]
				case "comment":
					rec.Comment = m[2]
				case "state":
					rec.State = m[2]
				}
			}
			continue
		}

		if m := boardRE.FindStringSubmatch(line); m != nil {
			if rec.Width > 0 {
				return nil, lineError(lineNum, "duplicate board line")
			}
			w, errW := strconv.Atoi(m[1])
			h, errH := strconv.Atoi(m[2])
			if errW != nil || errH != nil {
				return nil, lineError(lineNum, "board size %sx%s", m[1], m[2])
			}
			if w <= 0 || h <= 0 || w > engine.MaxDimension || h > engine.MaxDimension {
				return nil, lineError(lineNum, "board size %dx%d", w, h)
			}
			rec.Width, rec.Height = w, h
			continue
		}

		if rec.Width == 0 {
			return nil, lineError(lineNum, "expected board line, got %q", line)
		}

		if m := shipRE.FindStringSubmatch(line); m != nil {
			if len(rec.Actions) > 0 {
				return nil, lineError(lineNum, "ship %q declared after the first action", m[1])
			}
			if names[m[1]] {
				return nil, lineError(lineNum, "duplicate ship %q", m[1])
			}
			squares, err := parseSquares(m[2])
			if err != nil {
				return nil, lineError(lineNum, "ship %q: %v", m[1], err)
			}
			names[m[1]] = true
			rec.Ships = append(rec.Ships, ShipEntry{Name: m[1], Squares: squares})
			continue
		}

		if m := actionRE.FindStringSubmatch(line); m != nil {
			action, err := parseAction(m[2], m[3], names)
			if err != nil {
				return nil, lineError(lineNum, "%v", err)
			}
			rec.Actions = append(rec.Actions, action)
			continue
		}

		return nil, lineError(lineNum, "unrecognized line %q", line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading record: %w", err)
	}
	if rec.Width == 0 {
		return nil, fmt.Errorf("%w: missing board line", ErrSyntax)
	}
	return rec, nil
}

func lineError(lineNum int, format string, args ...any) error {
	return fmt.Errorf("line %d: %w: %s", lineNum, ErrSyntax, fmt.Sprintf(format, args...))
}

// parseSquares parses a space separated list like "0,0 0,1".
func parseSquares(text string) ([]engine.Square, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, errors.New("no squares")
	}
	squares := make([]engine.Square, 0, len(fields))
	for _, f := range fields {
		sq, err := engine.ParseSquare(f)
		if err != nil {
			return nil, err
		}
		squares = append(squares, sq)
	}
	return squares, nil
}

// parseAction parses the keyword and arguments of an action line.
// Format: "miss 3,4", "sink \"Destroyer\" 1 5,5" or "raise \"Destroyer\""
func parseAction(keyword, args string, names map[string]bool) (Action, error) {
	t, err := ParseActionType(keyword)
	if err != nil {
		return Action{}, err
	}
	args = strings.TrimSpace(args)

	switch t {
	case ActionSink:
		m := sinkRE.FindStringSubmatch(args)
		if m == nil {
			return Action{}, fmt.Errorf("sink arguments %q", args)
		}
		if !names[m[1]] {
			return Action{}, fmt.Errorf("sink of undeclared ship %q", m[1])
		}
		rotation, err := strconv.Atoi(m[2])
		if err != nil {
			return Action{}, err
		}
		sq, err := engine.ParseSquare(m[3])
		if err != nil {
			return Action{}, err
		}
		return Action{Type: t, Ship: m[1], Rotation: rotation, Square: sq}, nil

	case ActionRaise:
		m := raiseRE.FindStringSubmatch(args)
		if m == nil {
			return Action{}, fmt.Errorf("raise arguments %q", args)
		}
		if !names[m[1]] {
			return Action{}, fmt.Errorf("raise of undeclared ship %q", m[1])
		}
		return Action{Type: t, Ship: m[1]}, nil

	default:
		sq, err := engine.ParseSquare(args)
		if err != nil {
			return Action{}, err
		}
		return Action{Type: t, Square: sq}, nil
	}
}

// Export writes a record in text format.
func Export(w io.Writer, rec *Record) error {
	bw := bufio.NewWriter(w)

	// Write metadata
	writeTag(bw, "Event", rec.Event)
	writeTag(bw, "Date", rec.Date)
	writeTag(bw, "Site", rec.Place)
	writeTag(bw, "Comment", rec.Comment)
	writeTag(bw, "State", rec.State)

	fmt.Fprintf(bw, "%dx%d board\n", rec.Width, rec.Height)
	for _, ship := range rec.Ships {
		if strings.Contains(ship.Name, `"`) {
			return fmt.Errorf("ship name %q contains a quote", ship.Name)
		}
		fmt.Fprintf(bw, "ship \"%s\": %s\n", ship.Name, formatSquares(ship.Squares))
	}
	fmt.Fprintln(bw)

	for i, action := range rec.Actions {
		fmt.Fprintf(bw, "%d) %s\n", i+1, formatAction(action))
	}
	return bw.Flush()
}

func writeTag(w io.Writer, key, value string) {
	if value != "" {
		fmt.Fprintf(w, "; [%s \"%s\"]\n", key, strings.ReplaceAll(value, `"`, "'"))
	}
}

func formatSquare(sq engine.Square) string {
	return strconv.Itoa(sq.X) + "," + strconv.Itoa(sq.Y)
}

func formatSquares(squares []engine.Square) string {
	parts := make([]string, len(squares))
	for i, sq := range squares {
		parts[i] = formatSquare(sq)
	}
	return strings.Join(parts, " ")
}

// formatAction formats an action without its number.
func formatAction(a Action) string {
	switch a.Type {
	case ActionSink:
		return fmt.Sprintf("sink \"%s\" %d %s", a.Ship, a.Rotation, formatSquare(a.Square))
	case ActionRaise:
		return fmt.Sprintf("raise \"%s\"", a.Ship)
	default:
		return a.Type.String() + " " + formatSquare(a.Square)
	}
}

// String formats the action as it appears in a record.
func (a Action) String() string {
	return formatAction(a)
}
