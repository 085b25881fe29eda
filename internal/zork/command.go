package zork

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// protocolVersion is the fixed constant the "version" command replies
// with. The wire protocol has never needed a second value.
const protocolVersion = "zork-1"

var wordSplit = regexp.MustCompile(`\W+`)

// tokenize splits line on one-or-more non-word characters, per spec.md
// §4.2, dropping any empty tokens a leading/trailing separator leaves
// behind.
func tokenize(line string) []string {
	fields := wordSplit.Split(strings.TrimSpace(line), -1)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// handleCommand dispatches one command line while s.mode == ModeUnset and
// returns the single-line reply to send, or "" if the command has no
// reply (quit, getters' counterparts give/get, and the two recognized
// "transform" forms).
func (s *Session) handleCommand(line string) string {
	tokens := tokenize(line)
	if len(tokens) == 0 {
		return ""
	}
	verb := strings.ToLower(tokens[0])

	switch verb {
	case "ping":
		return "ping"
	case "xyzzy":
		return "Nothing happens."
	case "version":
		return protocolVersion
	case "quit":
		s.closeTransport()
		return ""
	case "getters":
		return strconv.Itoa(s.reg.Getters())
	case "transform":
		return s.handleTransform(line)
	case "give":
		s.handleGive()
		return ""
	case "get":
		s.handleGet()
		return ""
	default:
		return fmt.Sprintf("I don't understand that command. (%s)", verb)
	}
}

// handleTransform implements the three "transform ..." forms spec.md
// §4.2 names. Unlike every other command, its arguments are taken from
// the raw line rather than tokenize's output: "transform config ..." must
// preserve whatever raw text follows the " config " marker verbatim
// (spec.md scenario S3 round-trips a JSON blob through it unparsed).
func (s *Session) handleTransform(line string) string {
	trimmed := strings.TrimSpace(line)
	lower := strings.ToLower(trimmed)

	if strings.HasPrefix(lower, "transform with ") {
		name := strings.TrimSpace(trimmed[len("transform with "):])
		s.setTransformName(name)
		return ""
	}

	const marker = " config "
	if idx := strings.Index(lower, marker); idx >= 0 {
		rest := trimmed[idx+len(marker):]
		s.setTransformConfig(rest)
		return ""
	}

	return "usage: transform with <name> | transform config <config>"
}
