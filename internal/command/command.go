// Package command interprets chat message text into bot command requests.
// The parse result is a closed tagged union so the dispatch site can switch
// exhaustively over the command kinds.
package command

import (
	"strconv"
	"strings"
)

// Command keywords recognized in group messages.
const (
	SummaryKeyword = "!summary"
	ImagineKeyword = "!imagine"
)

// Hours window applied when a count or question is given without an
// explicit window. The value is a fallback for the eventual database
// query; when a count is present it takes priority over hours.
const fallbackHours = 168

// Kind identifies which command a message resolved to.
type Kind int

const (
	// KindPlain is a regular chat message, not a command.
	KindPlain Kind = iota
	// KindSummary is a request to summarize recent messages.
	KindSummary
	// KindImagine is a request to generate an image.
	KindImagine
	// KindInvalid is a malformed command that needs a user-facing reply.
	KindInvalid
)

// Request is the interpretation of one message. Exactly one of Summary and
// Imagine is non-nil for their respective kinds; Reason carries the
// user-facing explanation for KindInvalid.
type Request struct {
	Kind    Kind
	Summary *SummaryRequest
	Imagine *ImagineRequest
	Reason  string
}

// SummaryRequest carries the resolved summary arguments. Count and Hours
// are optional; the interpreter always fills Hours with a default, and a
// question is mutually exclusive with a count.
type SummaryRequest struct {
	Count    *int
	Hours    *int
	Question string
}

// ImagineRequest carries the image generation prompt.
type ImagineRequest struct {
	Prompt string
}

// Interpret maps message text to exactly one command request.
// defaultHours is the window used for a bare "!summary".
//
// For "!summary" the whitespace-tokenized arguments resolve in order:
// no arguments → the default window; a single numeric token → a message
// count; a single "<N>h" token → an hours window; remaining text ending
// in "?" → a question; anything else is invalid.
func Interpret(text string, defaultHours int) Request {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Request{Kind: KindPlain}
	}

	switch fields[0] {
	case SummaryKeyword:
		return interpretSummary(fields, defaultHours)
	case ImagineKeyword:
		prompt := strings.TrimSpace(strings.TrimPrefix(text, ImagineKeyword))
		if !strings.HasPrefix(text, ImagineKeyword+" ") || prompt == "" {
			return Request{Kind: KindInvalid, Reason: "what should I imagine? Usage: !imagine <prompt>"}
		}
		return Request{Kind: KindImagine, Imagine: &ImagineRequest{Prompt: prompt}}
	default:
		return Request{Kind: KindPlain}
	}
}

func interpretSummary(fields []string, defaultHours int) Request {
	if len(fields) == 1 {
		hours := defaultHours
		return Request{Kind: KindSummary, Summary: &SummaryRequest{Hours: &hours}}
	}

	if len(fields) == 2 {
		arg := fields[1]

		if isDigits(arg) {
			n, _ := strconv.Atoi(arg)
			hours := fallbackHours
			return Request{Kind: KindSummary, Summary: &SummaryRequest{Count: &n, Hours: &hours}}
		}

		if h, ok := parseHoursToken(arg); ok {
			return Request{Kind: KindSummary, Summary: &SummaryRequest{Hours: &h}}
		}
	}

	if strings.HasSuffix(fields[len(fields)-1], "?") {
		hours := fallbackHours
		question := strings.Join(fields[1:], " ")
		return Request{Kind: KindSummary, Summary: &SummaryRequest{Hours: &hours, Question: question}}
	}

	return Request{Kind: KindInvalid, Reason: "was that a question?"}
}

// parseHoursToken recognizes a numeric token with a trailing 'h', e.g. "5h".
func parseHoursToken(arg string) (int, bool) {
	digits := strings.TrimSuffix(arg, "h")
	if digits == arg || !isDigits(digits) {
		return 0, false
	}
	h, _ := strconv.Atoi(digits)
	return h, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
