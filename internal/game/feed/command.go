package feed

import "strings"

// CommandKind identifies a chat command.
type CommandKind int

const (
	// CommandChat is ordinary chat; not a command.
	CommandChat CommandKind = iota
	CommandEnhance
	CommandBattle
	// CommandScroll buys one protection scroll.
	CommandScroll
	CommandShowoff
	CommandWhisper
)

// Command is a parsed chat input.
type Command struct {
	Kind   CommandKind
	Target string
	Body   string
}

var commandAliases = map[string]CommandKind{
	"enhance": CommandEnhance,
	"강화":      CommandEnhance,
	"battle":  CommandBattle,
	"전투":      CommandBattle,
	"scroll":  CommandScroll,
	"주문서":     CommandScroll,
	"showoff": CommandShowoff,
	"자랑":      CommandShowoff,
	"w":       CommandWhisper,
	"whisper": CommandWhisper,
	"귓":       CommandWhisper,
}

// ParseCommand interprets a chat line. Inputs that do not start with "/",
// name an unknown command, or carry arguments to an argument-less command
// are chat. A whisper needs a target and a body; "/w name" alone is chat.
//
// Postcondition: For CommandChat, Body is the trimmed input.
func ParseCommand(input string) Command {
	line := strings.TrimSpace(input)
	chat := Command{Kind: CommandChat, Body: line}
	if !strings.HasPrefix(line, "/") {
		return chat
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	kind, ok := commandAliases[strings.ToLower(name)]
	if !ok {
		return chat
	}
	if kind != CommandWhisper {
		if strings.TrimSpace(rest) != "" {
			return chat
		}
		return Command{Kind: kind}
	}

	target, body, _ := strings.Cut(strings.TrimSpace(rest), " ")
	body = strings.TrimSpace(body)
	if target == "" || body == "" {
		return chat
	}
	return Command{Kind: CommandWhisper, Target: target, Body: body}
}
