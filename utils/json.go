package utils

import (
	"github.com/bytedance/sonic"
)

// JSON is shared by info.json persistence and the LLM stream decoder.
// Map keys are sorted so rewritten info.json files diff cleanly.
var JSON = sonic.Config{
	UseNumber:   true,
	EscapeHTML:  false,
	SortMapKeys: true,
}.Froze()

func MarshalIndent(v interface{}) ([]byte, error) {
	return JSON.MarshalIndent(v, "", "  ")
}

func Unmarshal(data []byte, v interface{}) error {
	return JSON.Unmarshal(data, v)
}
