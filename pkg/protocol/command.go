package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// CommandKind identifies one entry of the post-auth command grammar.
type CommandKind int

const (
	CmdNone       CommandKind = iota // blank line, nothing to do
	CmdChat                          // plain text in the sender's current room
	CmdList                          // /list, /ls
	CmdMsg                           // /msg <user> <text>
	CmdAccept                        // /accept <user>
	CmdDecline                       // /decline <user>
	CmdBack                          // /back
	CmdHistory                       // /history, /his
	CmdChangePass                    // /changepass <old> <new>
	CmdHelp                          // /help
	CmdExit                          // /exit
)

// Command is one parsed client line.
type Command struct {
	Kind    CommandKind
	Target  string // /msg, /accept, /decline
	Text    string // /msg body or chat body
	OldPass string // /changepass
	NewPass string // /changepass
}

var ErrUnknownCommand = errors.New("unknown command")

// ParseCommand parses one client line against the command grammar.
// Commands are case-sensitive; any non-empty line that does not start
// with '/' is a chat message. Usage mistakes come back as errors whose
// text is the usage string, suitable for sending straight to the client.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return Command{Kind: CmdNone}, nil
	}
	if !strings.HasPrefix(line, "/") {
		return Command{Kind: CmdChat, Text: line}, nil
	}

	name, rest, _ := strings.Cut(line, " ")
	switch name {
	case "/list", "/ls":
		return Command{Kind: CmdList}, nil
	case "/back":
		return Command{Kind: CmdBack}, nil
	case "/history", "/his":
		return Command{Kind: CmdHistory}, nil
	case "/help":
		return Command{Kind: CmdHelp}, nil
	case "/exit":
		return Command{Kind: CmdExit}, nil
	case "/msg":
		target, text, ok := strings.Cut(strings.TrimSpace(rest), " ")
		if !ok || target == "" || strings.TrimSpace(text) == "" {
			return Command{}, errors.New("usage: /msg <user> <text>")
		}
		return Command{Kind: CmdMsg, Target: target, Text: strings.TrimSpace(text)}, nil
	case "/accept":
		target := strings.TrimSpace(rest)
		if target == "" || strings.ContainsRune(target, ' ') {
			return Command{}, errors.New("usage: /accept <user>")
		}
		return Command{Kind: CmdAccept, Target: target}, nil
	case "/decline":
		target := strings.TrimSpace(rest)
		if target == "" || strings.ContainsRune(target, ' ') {
			return Command{}, errors.New("usage: /decline <user>")
		}
		return Command{Kind: CmdDecline, Target: target}, nil
	case "/changepass":
		fields := strings.Fields(rest)
		if len(fields) != 2 {
			return Command{}, errors.New("usage: /changepass <old> <new>")
		}
		return Command{Kind: CmdChangePass, OldPass: fields[0], NewPass: fields[1]}, nil
	default:
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
}

// HelpText lists the command grammar, one command per line.
func HelpText() string {
	return strings.Join([]string{
		"/list            who is in the public room",
		"/msg <user> <t>  invite <user> to a private chat, opening with <t>",
		"/accept <user>   accept a pending invitation from <user>",
		"/decline <user>  decline a pending invitation from <user>",
		"/back            leave your private chat and rejoin the public room",
		"/history         replay recent messages for your current room",
		"/changepass <old> <new>  change your password",
		"/exit            disconnect",
		"anything else    chat in your current room",
	}, "\n")
}
