package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"kimichat/kimichat/utils/logging"
	"kimichat/kimichat/utils/types"

	"go.uber.org/zap"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
	readChunk    = 4096
)

// ErrStreamIncomplete means the body ended before the [DONE] sentinel.
var ErrStreamIncomplete = errors.New("stream ended without completion marker")

// StreamError is a failure the relay reported inside the stream.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return "relay stream error: " + e.Message
}

// LineBuffer splits arbitrarily chunked input into lines. A trailing
// partial line is held until a later chunk completes it.
type LineBuffer struct {
	pending strings.Builder
}

func (b *LineBuffer) Feed(chunk string) []string {
	b.pending.WriteString(chunk)
	buf := b.pending.String()
	idx := strings.LastIndexByte(buf, '\n')
	if idx < 0 {
		return nil
	}
	complete, rest := buf[:idx], buf[idx+1:]
	b.pending.Reset()
	b.pending.WriteString(rest)

	lines := strings.Split(complete, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Rest is the unterminated remainder.
func (b *LineBuffer) Rest() string {
	return strings.TrimSuffix(b.pending.String(), "\r")
}

// Frame is one decoded data: line.
type Frame struct {
	Content string
	Error   string
	Done    bool
}

// ParseFrame decodes a single line. ok is false for lines that carry no
// data field (comments, blanks, other fields).
func ParseFrame(line string) (Frame, bool, error) {
	if !strings.HasPrefix(line, dataPrefix) {
		return Frame{}, false, nil
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == doneSentinel {
		return Frame{Done: true}, true, nil
	}
	var chunk types.StreamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return Frame{}, true, fmt.Errorf("malformed frame %q: %w", payload, err)
	}
	return Frame{Content: chunk.Content, Error: chunk.Error}, true, nil
}

// ReadStream consumes an event stream from r, calling onDelta for each
// non-empty delta. It returns nil only after [DONE].
func ReadStream(ctx context.Context, r io.Reader, onDelta func(string)) error {
	var lines LineBuffer
	buf := make([]byte, readChunk)

	handle := func(line string) (bool, error) {
		frame, ok, err := ParseFrame(line)
		if err != nil {
			logging.AppLogger.Warn("Skipping stream frame", zap.Error(err))
			return false, nil
		}
		if !ok {
			return false, nil
		}
		switch {
		case frame.Done:
			return true, nil
		case frame.Error != "":
			return false, &StreamError{Message: frame.Error}
		case frame.Content != "":
			onDelta(frame.Content)
		}
		return false, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			for _, line := range lines.Feed(string(buf[:n])) {
				done, err := handle(line)
				if err != nil {
					return err
				}
				if done {
					return nil
				}
			}
		}
		if readErr == io.EOF {
			// a final line without its newline still counts
			if rest := lines.Rest(); rest != "" {
				done, err := handle(rest)
				if err != nil {
					return err
				}
				if done {
					return nil
				}
			}
			return ErrStreamIncomplete
		}
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return readErr
		}
	}
}
