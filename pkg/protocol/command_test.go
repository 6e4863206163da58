package protocol

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line string
		want Command
	}{
		{"/list", Command{Kind: CmdList}},
		{"/ls", Command{Kind: CmdList}},
		{"/back", Command{Kind: CmdBack}},
		{"/history", Command{Kind: CmdHistory}},
		{"/his", Command{Kind: CmdHistory}},
		{"/help", Command{Kind: CmdHelp}},
		{"/exit", Command{Kind: CmdExit}},
		{"/msg bob hi there", Command{Kind: CmdMsg, Target: "bob", Text: "hi there"}},
		{"/accept alice", Command{Kind: CmdAccept, Target: "alice"}},
		{"/decline alice", Command{Kind: CmdDecline, Target: "alice"}},
		{"/changepass old1234 new1234", Command{Kind: CmdChangePass, OldPass: "old1234", NewPass: "new1234"}},
		{"hello everyone", Command{Kind: CmdChat, Text: "hello everyone"}},
		{"  ", Command{Kind: CmdNone}},
		{"", Command{Kind: CmdNone}},
	}
	for _, tc := range cases {
		got, err := ParseCommand(tc.line)
		if err != nil {
			t.Fatalf("ParseCommand(%q): %v", tc.line, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("ParseCommand(%q) mismatch (-want +got):\n%s", tc.line, diff)
		}
	}
}

func TestParseCommandUsageErrors(t *testing.T) {
	for _, line := range []string{
		"/msg", "/msg bob", "/msg  ", "/accept", "/accept two words",
		"/decline", "/changepass onlyone",
	} {
		if _, err := ParseCommand(line); err == nil {
			t.Fatalf("ParseCommand(%q): expected usage error", line)
		}
	}
}

func TestParseCommandUnknown(t *testing.T) {
	_, err := ParseCommand("/frobnicate now")
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}

	// Commands are case-sensitive: /LIST is not /list.
	if _, err := ParseCommand("/LIST"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand for /LIST, got %v", err)
	}
}
