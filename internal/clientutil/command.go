// Package clientutil implements the non-interactive pieces of the
// client: stdin command parsing, request dispatch, the streamed-upload
// sender, and human-readable size formatting. The interactive stdin
// loop and argument parsing live in cmd/parcel-client.
package clientutil

import "strings"

// CommandKind classifies one parsed stdin line.
type CommandKind int

const (
	// KindMessage is a plain text line, sent as a Text request.
	KindMessage CommandKind = iota
	// KindFile is a ".file <path>" line.
	KindFile
	// KindImage is a ".image <path>" line.
	KindImage
	// KindNickname is a ".nick <name>" line.
	KindNickname
	// KindQuit is the ".quit" line.
	KindQuit
)

// Command is one parsed stdin line.
type Command struct {
	Kind CommandKind
	Path string // set for KindFile/KindImage
	Text string // set for KindMessage
	Nick string // set for KindNickname
}

// ParseCommand classifies a line read from stdin. Lines not matching a
// known "." prefix are plain text messages.
func ParseCommand(line string) Command {
	if line == ".quit" {
		return Command{Kind: KindQuit}
	}

	if path, ok := strings.CutPrefix(line, ".file "); ok {
		return Command{Kind: KindFile, Path: path}
	}

	if path, ok := strings.CutPrefix(line, ".image "); ok {
		return Command{Kind: KindImage, Path: path}
	}

	if nick, ok := strings.CutPrefix(line, ".nick "); ok {
		return Command{Kind: KindNickname, Nick: nick}
	}

	return Command{Kind: KindMessage, Text: line}
}
