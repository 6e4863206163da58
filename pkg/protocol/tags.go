package protocol

import "strings"

// Server response tags. Every server-to-client frame starts with one of
// these followed by a colon; clients switch on the tag to decide where
// the text goes (auth prompt, status line, chat pane, ...).
const (
	TagAuth    = "AUTH"    // authentication-phase prompt
	TagOK      = "OK"      // command succeeded
	TagErr     = "ERR"     // command or transport failure
	TagNotice  = "NOTICE"  // system notice (joins, requests, expiries)
	TagHistory = "HISTORY" // replayed history line
	TagChat    = "MSG"     // live chat line
)

// Tagged builds a tagged server frame payload.
func Tagged(tag, text string) string {
	return tag + ":" + text
}

// SplitTag splits a server frame into its tag and text. Frames without
// a recognizable tag come back with an empty tag and the full text.
func SplitTag(s string) (tag, text string) {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return "", s
	}
	switch s[:i] {
	case TagAuth, TagOK, TagErr, TagNotice, TagHistory, TagChat:
		return s[:i], s[i+1:]
	}
	return "", s
}
