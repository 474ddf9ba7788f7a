package brain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Fixed phrases used for checklist replies. The title doubles as the
// detection sentinel: a reply is checklist-shaped only when it carries
// the title plus at least one bullet.
const (
	ChecklistTitle    = "Here's what you've asked for so far:"
	ChecklistQuestion = "Shall I go ahead with these changes?"
)

// Tone selects how checklist content reads when rewritten as prose.
type Tone string

const (
	// ToneAnswer phrases the content as the answer to a question.
	ToneAnswer Tone = "answer"
	// ToneAcknowledgment phrases it as a receipt of a confirmation.
	ToneAcknowledgment Tone = "acknowledgment"
	// ToneRestatement is the neutral default.
	ToneRestatement Tone = "restatement"
)

// Reply is the structured form of an assistant reply. Checklist handling
// operates on this representation instead of scraping rendered text, so
// the prose rewrite can never mangle natural language.
type Reply struct {
	IsChecklist bool
	Intro       string   // text preceding the checklist title
	Bullets     []string // bullet content without the "- " prefix
	Question    string   // trailing confirmation question
	Text        string   // raw text, authoritative for non-checklist replies
}

// ParseReply classifies raw reply text as checklist or prose and, for
// checklists, lifts the parts into structure.
func ParseReply(text string) Reply {
	reply := Reply{Text: text}

	lower := strings.ToLower(text)
	titleIdx := strings.Index(lower, strings.ToLower(ChecklistTitle))
	if titleIdx == -1 {
		return reply
	}

	reply.Intro = strings.TrimSpace(text[:titleIdx])

	rest := text[titleIdx+len(ChecklistTitle):]
	var after []string
	for _, line := range strings.Split(rest, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "- ") {
			bullet := strings.TrimSpace(strings.TrimPrefix(line, "- "))
			if bullet != "" {
				reply.Bullets = append(reply.Bullets, bullet)
			}
			continue
		}
		if len(reply.Bullets) > 0 {
			after = append(after, line)
		}
	}

	if len(reply.Bullets) == 0 {
		// Title without bullets is not a checklist.
		return Reply{Text: text}
	}

	reply.IsChecklist = true
	reply.Question = strings.Join(after, " ")
	return reply
}

// Render produces the canonical checklist text.
func (r Reply) Render() string {
	if !r.IsChecklist {
		return r.Text
	}

	var b strings.Builder
	if r.Intro != "" {
		b.WriteString(r.Intro)
		b.WriteString("\n\n")
	}
	b.WriteString(ChecklistTitle)
	b.WriteString("\n")
	for _, bullet := range r.Bullets {
		b.WriteString("- ")
		b.WriteString(bullet)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if r.Question != "" {
		b.WriteString(r.Question)
	} else {
		b.WriteString(ChecklistQuestion)
	}
	return b.String()
}

// Prose flattens checklist content into a single sentence so the user
// never sees approval framing when no approval is pending. Non-checklist
// replies pass through unchanged.
func (r Reply) Prose(tone Tone) string {
	if !r.IsChecklist || len(r.Bullets) == 0 {
		return r.Text
	}

	clauses := make([]string, 0, len(r.Bullets))
	for _, bullet := range r.Bullets {
		clause := strings.TrimRight(strings.TrimSpace(bullet), ".;")
		if clause == "" {
			continue
		}
		clauses = append(clauses, lowerFirst(clause))
	}
	if len(clauses) == 0 {
		return r.Text
	}

	joined := joinClauses(clauses)

	switch tone {
	case ToneAnswer:
		return "Based on this conversation, you've asked to " + joined + "."
	case ToneAcknowledgment:
		return "Noted. You've asked to " + joined + "."
	default:
		return "So far you've asked to " + joined + "."
	}
}

// joinClauses renders a natural-language list: "a", "a and b",
// "a, b, and c".
func joinClauses(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}

// lowerFirst lowercases a leading capital unless the word looks like an
// acronym or proper all-caps token.
func lowerFirst(s string) string {
	first, size := utf8.DecodeRuneInString(s)
	if first == utf8.RuneError || !unicode.IsUpper(first) {
		return s
	}
	next, _ := utf8.DecodeRuneInString(s[size:])
	if next != utf8.RuneError && unicode.IsUpper(next) {
		return s
	}
	return string(unicode.ToLower(first)) + s[size:]
}
