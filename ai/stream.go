package ai

import (
	"bytes"

	"github.com/Hooolee/novel-splitter/utils"
)

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"
)

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// StreamParser splits a chat-completion event stream into delta contents.
// Bytes may arrive split anywhere, including inside a UTF-8 sequence; only
// complete lines are decoded.
type StreamParser struct {
	buf  []byte
	emit func(chunk string)
}

func NewStreamParser(emit func(chunk string)) *StreamParser {
	return &StreamParser{emit: emit}
}

func (p *StreamParser) Feed(data []byte) {
	p.buf = append(p.buf, data...)
	for {
		idx := bytes.IndexByte(p.buf, '\n')
		if idx < 0 {
			return
		}
		p.line(p.buf[:idx])
		p.buf = p.buf[idx+1:]
	}
}

// Flush handles a final line the server did not terminate.
func (p *StreamParser) Flush() {
	if len(p.buf) > 0 {
		p.line(p.buf)
		p.buf = nil
	}
}

func (p *StreamParser) line(raw []byte) {
	line := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return
	}
	data := line[len(dataPrefix):]
	if string(data) == doneMarker {
		return
	}
	var chunk streamChunk
	if err := utils.Unmarshal(data, &chunk); err != nil {
		return
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == nil {
		return
	}
	if content := *chunk.Choices[0].Delta.Content; content != "" {
		p.emit(content)
	}
}
