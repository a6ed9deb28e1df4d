// Package stateid encodes board states as compact printable IDs.
//
// An ID has the form "<width>x<height>:<key>". The key packs two bits per
// square, column by column, least significant bits first, and prints the
// packed bytes with the base64 alphabet (no padding). A 10x10 board fits
// in 34 characters.
package stateid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/yourusername/bsengine/pkg/engine"
)

// MaxSquares bounds the board size accepted by Decode.
const MaxSquares = 1 << 16

const bitsPerSquare = 2

// Base64 alphabet used for the key
const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// ErrInvalidStateID is returned when an ID cannot be decoded
var ErrInvalidStateID = errors.New("invalid state ID")

// Key is the packed binary form of a board state.
type Key struct {
	Width  int
	Height int
	Data   []byte
}

// keyLength returns the number of bytes needed for width x height squares.
func keyLength(width, height int) int {
	return (width*height*bitsPerSquare + 7) / 8
}

// MakeKey packs states, indexed [x][y], into a key.
func MakeKey(states [][]engine.SquareState) Key {
	width := len(states)
	height := 0
	if width > 0 {
		height = len(states[0])
	}

	key := Key{Width: width, Height: height, Data: make([]byte, keyLength(width, height))}
	bitPos := 0
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			key.Data[bitPos/8] |= byte(states[x][y]&0x3) << (bitPos & 0x7)
			bitPos += bitsPerSquare
		}
	}
	return key
}

// States unpacks the key into a matrix indexed [x][y].
func (k Key) States() [][]engine.SquareState {
	states := make([][]engine.SquareState, k.Width)
	bitPos := 0
	for x := range states {
		states[x] = make([]engine.SquareState, k.Height)
		for y := range states[x] {
			states[x][y] = engine.SquareState((k.Data[bitPos/8] >> (bitPos & 0x7)) & 0x3)
			bitPos += bitsPerSquare
		}
	}
	return states
}

// String renders the key as an ID.
func (k Key) String() string {
	return fmt.Sprintf("%dx%d:%s", k.Width, k.Height, encodeKey(k.Data))
}

// encodeKey prints 3 bytes as 4 characters; a trailing group of 1 or 2
// bytes prints as 2 or 3 characters.
func encodeKey(data []byte) string {
	var sb strings.Builder
	sb.Grow((len(data)*8 + 5) / 6)

	p := data
	for len(p) >= 3 {
		sb.WriteByte(base64Chars[p[0]>>2])
		sb.WriteByte(base64Chars[((p[0]&0x03)<<4)|(p[1]>>4)])
		sb.WriteByte(base64Chars[((p[1]&0x0F)<<2)|(p[2]>>6)])
		sb.WriteByte(base64Chars[p[2]&0x3F])
		p = p[3:]
	}

	switch len(p) {
	case 1:
		sb.WriteByte(base64Chars[p[0]>>2])
		sb.WriteByte(base64Chars[(p[0]&0x03)<<4])
	case 2:
		sb.WriteByte(base64Chars[p[0]>>2])
		sb.WriteByte(base64Chars[((p[0]&0x03)<<4)|(p[1]>>4)])
		sb.WriteByte(base64Chars[(p[1]&0x0F)<<2])
	}
	return sb.String()
}

// base64Decode decodes a base64 character to its value
func base64Decode(ch byte) uint8 {
	if ch >= 'A' && ch <= 'Z' {
		return ch - 'A'
	}
	if ch >= 'a' && ch <= 'z' {
		return ch - 'a' + 26
	}
	if ch >= '0' && ch <= '9' {
		return ch - '0' + 52
	}
	if ch == '+' {
		return 62
	}
	if ch == '/' {
		return 63
	}
	return 255
}

// decodeKey reverses encodeKey into n bytes.
func decodeKey(s string, n int) ([]byte, error) {
	if len(s) != (n*8+5)/6 {
		return nil, ErrInvalidStateID
	}

	ach := make([]uint8, len(s))
	for i := 0; i < len(s); i++ {
		ach[i] = base64Decode(s[i])
		if ach[i] == 255 {
			return nil, ErrInvalidStateID
		}
	}

	data := make([]byte, 0, n)
	p := ach
	for len(p) >= 4 {
		data = append(data,
			(p[0]<<2)|(p[1]>>4),
			(p[1]<<4)|(p[2]>>2),
			(p[2]<<6)|p[3])
		p = p[4:]
	}

	// Unused low bits of the last character must be zero
	switch len(p) {
	case 2:
		if p[1]&0x0F != 0 {
			return nil, ErrInvalidStateID
		}
		data = append(data, (p[0]<<2)|(p[1]>>4))
	case 3:
		if p[2]&0x03 != 0 {
			return nil, ErrInvalidStateID
		}
		data = append(data, (p[0]<<2)|(p[1]>>4), (p[1]<<4)|(p[2]>>2))
	}
	return data, nil
}

// StateID returns the ID of states, indexed [x][y].
func StateID(states [][]engine.SquareState) string {
	return MakeKey(states).String()
}

// ParseKey decodes an ID into a key.
func ParseKey(id string) (Key, error) {
	dims, enc, ok := strings.Cut(strings.TrimSpace(id), ":")
	if !ok {
		return Key{}, ErrInvalidStateID
	}
	ws, hs, ok := strings.Cut(dims, "x")
	if !ok {
		return Key{}, ErrInvalidStateID
	}
	width, err := strconv.Atoi(ws)
	if err != nil {
		return Key{}, fmt.Errorf("%w: width %q", ErrInvalidStateID, ws)
	}
	height, err := strconv.Atoi(hs)
	if err != nil {
		return Key{}, fmt.Errorf("%w: height %q", ErrInvalidStateID, hs)
	}
	if width <= 0 || height <= 0 || width*height > MaxSquares {
		return Key{}, fmt.Errorf("%w: size %dx%d", ErrInvalidStateID, width, height)
	}

	n := keyLength(width, height)
	data, err := decodeKey(enc, n)
	if err != nil {
		return Key{}, err
	}

	// Bits past the last square must be zero
	if used := width * height * bitsPerSquare % 8; used != 0 && data[n-1]>>used != 0 {
		return Key{}, ErrInvalidStateID
	}
	return Key{Width: width, Height: height, Data: data}, nil
}

// StatesFromID decodes an ID into a matrix indexed [x][y].
func StatesFromID(id string) ([][]engine.SquareState, error) {
	key, err := ParseKey(id)
	if err != nil {
		return nil, err
	}
	return key.States(), nil
}

// Equal reports whether two state matrices are identical.
func Equal(a, b [][]engine.SquareState) bool {
	if len(a) != len(b) {
		return false
	}
	for x := range a {
		if len(a[x]) != len(b[x]) {
			return false
		}
		for y := range a[x] {
			if a[x][y] != b[x][y] {
				return false
			}
		}
	}
	return true
}
