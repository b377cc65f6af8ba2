package port

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/slack-go/slack"
)

const (
	DefaultFieldLimit   = 1024
	DefaultMessageLimit = 6000

	maxFieldsPerMessage = 25
	codeFence           = "```"
	// Room for the bold markers, line break and " (Part n)" around a field name.
	partSuffix = "**\n (Part 000)"
)

// Field is a titled chunk of a reply, rendered as its own section.
type Field struct {
	Name  string
	Value string
	// Code wraps the value in a preformatted block. Each part is fenced separately.
	Code bool
}

// Reply is what a command produces before it is fitted to Slack's limits.
type Reply struct {
	Ephemeral   bool
	Text        string
	Title       string
	Description string
	Fields      []Field
	Footer      string
}

func ephemeral(format string, args ...interface{}) *Reply {
	return &Reply{Ephemeral: true, Text: fmt.Sprintf(format, args...)}
}

// ChunkPolicy caps the size of one section and of one message, in characters.
type ChunkPolicy struct {
	FieldLimit   int
	MessageLimit int
}

func DefaultChunkPolicy() ChunkPolicy {
	return ChunkPolicy{FieldLimit: DefaultFieldLimit, MessageLimit: DefaultMessageLimit}
}

// Render splits a reply into as many Slack messages as its content needs.
func (p ChunkPolicy) Render(r *Reply) []*slack.Msg {
	responseType := slack.ResponseTypeInChannel
	if r.Ephemeral {
		responseType = slack.ResponseTypeEphemeral
	}

	if r.Title == "" && r.Description == "" && len(r.Fields) == 0 {
		var msgs []*slack.Msg
		for _, chunk := range SplitText(r.Text, p.MessageLimit) {
			msgs = append(msgs, &slack.Msg{ResponseType: responseType, Text: chunk})
		}
		return msgs
	}

	description, fields := p.splitFields(r)
	pages := p.paginate(r.Title, description, r.Footer, fields)

	msgs := make([]*slack.Msg, 0, len(pages))
	for i, page := range pages {
		var blocks []slack.Block
		title := r.Title
		if i > 0 && title != "" {
			title += " (cont.)"
		}
		if title != "" {
			blocks = append(blocks, slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, title, true, false)))
		}
		if i == 0 && description != "" {
			blocks = append(blocks, markdownSection(description))
		}
		for _, f := range page {
			text := f.Value
			if f.Name != "" {
				text = "*" + f.Name + "*\n" + f.Value
			}
			blocks = append(blocks, markdownSection(text))
		}
		if i == len(pages)-1 && r.Footer != "" {
			blocks = append(blocks, slack.NewContextBlock("", slack.NewTextBlockObject(slack.MarkdownType, r.Footer, false, false)))
		}

		fallback := r.Text
		if fallback == "" {
			fallback = title
		}
		msgs = append(msgs, &slack.Msg{
			ResponseType: responseType,
			Text:         fallback,
			Blocks:       slack.Blocks{BlockSet: blocks},
		})
	}

	return msgs
}

func markdownSection(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)
}

// splitFields cuts the description and every field value down to FieldLimit. Overflowing
// description text becomes untitled fields, and split fields are numbered.
func (p ChunkPolicy) splitFields(r *Reply) (string, []Field) {
	var fields []Field

	description := ""
	if r.Description != "" {
		parts := SplitText(r.Description, p.FieldLimit)
		description = parts[0]
		for _, part := range parts[1:] {
			fields = append(fields, Field{Value: part})
		}
	}

	for _, f := range r.Fields {
		limit := p.FieldLimit
		if f.Code {
			limit -= 2*len(codeFence) + 2
		}
		if f.Name != "" {
			limit -= utf8.RuneCountInString(f.Name) + len(partSuffix)
		}

		parts := SplitText(f.Value, limit)
		for i, part := range parts {
			name := f.Name
			if len(parts) > 1 && name != "" {
				name = fmt.Sprintf("%s (Part %d)", f.Name, i+1)
			}
			if f.Code {
				part = codeFence + "\n" + part + "\n" + codeFence
			}
			fields = append(fields, Field{Name: name, Value: part})
		}
	}

	return description, fields
}

func (p ChunkPolicy) paginate(title, description, footer string, fields []Field) [][]Field {
	overhead := utf8.RuneCountInString(title) + len(" (cont.)") + utf8.RuneCountInString(footer)

	pages := [][]Field{nil}
	used := overhead + utf8.RuneCountInString(description)
	for _, f := range fields {
		size := fieldSize(f)
		current := pages[len(pages)-1]
		if len(current) > 0 && (used+size > p.MessageLimit || len(current) >= maxFieldsPerMessage) {
			pages = append(pages, nil)
			used = overhead
		}
		pages[len(pages)-1] = append(pages[len(pages)-1], f)
		used += size
	}

	return pages
}

func fieldSize(f Field) int {
	size := utf8.RuneCountInString(f.Value)
	if f.Name != "" {
		size += utf8.RuneCountInString(f.Name) + len("**\n")
	}
	return size
}

// SplitText breaks text into chunks of at most limit characters, preferring line breaks.
// Lines longer than limit are cut.
func SplitText(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var (
		chunks  []string
		current strings.Builder
		length  int
	)
	flush := func() {
		if chunk := strings.TrimSuffix(current.String(), "\n"); chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
		length = 0
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		runes := []rune(line)
		for len(runes) > 0 {
			if len(runes) <= limit-length {
				current.WriteString(string(runes))
				length += len(runes)
				break
			}
			if length > 0 {
				flush()
				continue
			}
			current.WriteString(string(runes[:limit]))
			runes = runes[limit:]
			flush()
		}
	}
	flush()

	return chunks
}
