// Package corpus reads corpus splits that were numericalized elsewhere.
package corpus

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/samcharles93/lmeval/internal/batch"
)

var (
	ErrMalformed     = errors.New("corpus: malformed token file")
	ErrUnknownFormat = errors.New("corpus: unknown token file format")
)

// Format identifies an on-disk token id encoding.
type Format string

const (
	FormatText   Format = "txt"  // whitespace separated decimal ids
	FormatJSON   Format = "json" // a single JSON array of ids
	FormatUint16 Format = "u16"  // little-endian uint16, no header
	FormatUint32 Format = "u32"  // little-endian uint32, no header
)

// FormatFor picks a format from the file extension. ".bin" is treated as
// uint16, the usual layout for GPT-2 sized vocabularies.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".ids":
		return FormatText, nil
	case ".json":
		return FormatJSON, nil
	case ".bin", ".u16":
		return FormatUint16, nil
	case ".u32":
		return FormatUint32, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Load reads the token file at path using the format implied by its name.
func Load(path string) (batch.Stream, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	return LoadFormat(path, format)
}

func LoadFormat(path string, format Format) (batch.Stream, error) {
	switch format {
	case FormatUint16, FormatUint32:
		data, release, err := mapFile(path)
		if err != nil {
			return nil, err
		}
		defer release()
		width := 2
		if format == FormatUint32 {
			width = 4
		}
		return DecodeBinary(data, width)
	case FormatText, FormatJSON:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		if format == FormatJSON {
			return ReadJSON(f)
		}
		return ReadText(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ReadText parses whitespace separated non-negative decimal ids.
func ReadText(r io.Reader) (batch.Stream, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	sc.Split(bufio.ScanWords)
	var out batch.Stream
	for sc.Scan() {
		id, err := strconv.Atoi(sc.Text())
		if err != nil || id < 0 {
			return nil, fmt.Errorf("%w: token %d: %q", ErrMalformed, len(out), sc.Text())
		}
		out = append(out, id)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadJSON decodes one JSON array of ids.
func ReadJSON(r io.Reader) (batch.Stream, error) {
	var ids []int
	if err := json.NewDecoder(r).Decode(&ids); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	s := batch.Stream(ids)
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return s, nil
}

// DecodeBinary decodes little-endian unsigned ids of the given byte width
// (2 or 4). The result never aliases data.
func DecodeBinary(data []byte, width int) (batch.Stream, error) {
	if width != 2 && width != 4 {
		return nil, fmt.Errorf("%w: width %d", ErrUnknownFormat, width)
	}
	if len(data)%width != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrMalformed, len(data), width)
	}
	out := make(batch.Stream, len(data)/width)
	for i := range out {
		if width == 2 {
			out[i] = int(binary.LittleEndian.Uint16(data[i*2:]))
		} else {
			out[i] = int(binary.LittleEndian.Uint32(data[i*4:]))
		}
	}
	return out, nil
}

// WriteBinary encodes s as little-endian ids of the given width.
func WriteBinary(w io.Writer, s batch.Stream, width int) error {
	if width != 2 && width != 4 {
		return fmt.Errorf("%w: width %d", ErrUnknownFormat, width)
	}
	limit := 1<<(8*width) - 1
	buf := make([]byte, len(s)*width)
	for i, tok := range s {
		if tok < 0 || tok > limit {
			return fmt.Errorf("%w: token %d does not fit in %d bytes", ErrMalformed, tok, width)
		}
		if width == 2 {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(tok))
		} else {
			binary.LittleEndian.PutUint32(buf[i*4:], uint32(tok))
		}
	}
	_, err := w.Write(buf)
	return err
}
