package redisserver

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Protocol limits.
const (
	// MaxArgs bounds the elements of a command array. LINK commands take
	// at most four.
	MaxArgs = 64

	// MaxBulkLen bounds a single argument.
	MaxBulkLen = 64 * 1024

	// MaxInlineLen bounds an inline command line ("PING\r\n").
	MaxInlineLen = 4 * 1024

	maxHeaderLen = 32
)

var (
	ErrProtocol      = errors.New("resp: protocol error")
	ErrLimitExceeded = errors.New("resp: limit exceeded")
)

// ReadCommand reads one command, either as an array of bulk strings or as
// a whitespace separated inline line. An empty command yields nil args.
func ReadCommand(r *bufio.Reader) ([][]byte, error) {
	first, err := r.Peek(1)
	if err != nil {
		return nil, err
	}
	if first[0] != '*' {
		line, err := readLine(r, MaxInlineLen)
		if err != nil {
			return nil, err
		}
		return bytes.Fields(line), nil
	}

	n, err := readHeader(r, '*')
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	if n > MaxArgs {
		return nil, fmt.Errorf("%w: %d arguments", ErrLimitExceeded, n)
	}

	args := make([][]byte, n)
	for i := range args {
		size, err := readHeader(r, '$')
		if err != nil {
			return nil, err
		}
		if size < 0 || size > MaxBulkLen {
			return nil, fmt.Errorf("%w: bulk length %d", ErrLimitExceeded, size)
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		if buf[size] != '\r' || buf[size+1] != '\n' {
			return nil, fmt.Errorf("%w: bad bulk terminator", ErrProtocol)
		}
		args[i] = buf[:size]
	}
	return args, nil
}

// readHeader reads "<prefix><int>\r\n".
func readHeader(r *bufio.Reader, prefix byte) (int, error) {
	line, err := readLine(r, maxHeaderLen)
	if err != nil {
		return 0, err
	}
	if len(line) < 2 || line[0] != prefix {
		return 0, fmt.Errorf("%w: expected %q", ErrProtocol, prefix)
	}
	n, err := strconv.Atoi(string(line[1:]))
	if err != nil {
		return 0, fmt.Errorf("%w: bad length %q", ErrProtocol, line[1:])
	}
	return n, nil
}

// readLine reads up to CRLF, which is stripped.
func readLine(r *bufio.Reader, limit int) ([]byte, error) {
	var line []byte
	for {
		frag, err := r.ReadSlice('\n')
		line = append(line, frag...)
		if len(line) > limit+2 {
			return nil, fmt.Errorf("%w: line longer than %d", ErrLimitExceeded, limit)
		}
		if err == nil {
			break
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return nil, err
		}
	}
	if !bytes.HasSuffix(line, []byte("\r\n")) {
		return nil, fmt.Errorf("%w: missing CRLF", ErrProtocol)
	}
	return line[:len(line)-2], nil
}

// replyWriter encodes RESP2 replies. Write errors surface on Flush.
type replyWriter struct {
	*bufio.Writer
}

func (w replyWriter) simple(s string) {
	w.WriteByte('+')
	w.WriteString(s)
	w.WriteString("\r\n")
}

func (w replyWriter) err(s string) {
	w.WriteByte('-')
	w.WriteString(s)
	w.WriteString("\r\n")
}

func (w replyWriter) integer(n int64) {
	w.WriteByte(':')
	w.WriteString(strconv.FormatInt(n, 10))
	w.WriteString("\r\n")
}

func (w replyWriter) bulk(s string) {
	w.WriteByte('$')
	w.WriteString(strconv.Itoa(len(s)))
	w.WriteString("\r\n")
	w.WriteString(s)
	w.WriteString("\r\n")
}

func (w replyWriter) null() {
	w.WriteString("$-1\r\n")
}

func (w replyWriter) array(n int) {
	w.WriteByte('*')
	w.WriteString(strconv.Itoa(n))
	w.WriteString("\r\n")
}
