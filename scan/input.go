package scan

import (
	"bufio"
	"io"

	"github.com/chazu/bibtex/buffer"
)

// Input reads a source line by line into a Buffer.
type Input struct {
	r       *bufio.Reader
	lineNum int
	eof     bool
}

// NewInput wraps r.
func NewInput(r io.Reader) *Input {
	return &Input{r: bufio.NewReaderSize(r, 4096)}
}

// Line returns the number of the last line read (1-based).
func (in *Input) Line() int { return in.lineNum }

// ReadLine replaces the content of buf with the next line, without its
// terminator and without trailing whitespace. It returns false at end of
// input.
func (in *Input) ReadLine(buf *buffer.Buffer) (bool, error) {
	if in.eof {
		return false, nil
	}
	buf.Reset()
	sawAny := false
	for {
		chunk, err := in.r.ReadSlice('\n')
		if len(chunk) > 0 {
			sawAny = true
			if aerr := buf.Append(chunk); aerr != nil {
				return false, aerr
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF {
			in.eof = true
			if !sawAny {
				return false, nil
			}
			break
		}
		if err != nil {
			return false, err
		}
		break
	}
	in.lineNum++

	n := buf.Len()
	for n > 0 && IsWhite(buf.At(n-1)) {
		n--
	}
	buf.Truncate(n)
	return true, nil
}
