package tools

import (
	"errors"
	"relay-im/proto"
	"strings"
)

var (
	ErrQuit  = errors.New("quit requested")
	ErrEmpty = errors.New("empty input")
)

// ParseInput turns one console line into the text to send. The quit sentinel
// is matched exactly and case-sensitively after the line terminator is removed.
func ParseInput(input string) (string, error) {
	line := strings.TrimRight(input, "\r\n")
	if line == proto.QuitCommand {
		return "", ErrQuit
	}
	if line == "" {
		return "", ErrEmpty
	}
	return line, nil
}
