package usecase

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
)

func samplePromptInput(format domain.OutputFormat) PromptInput {
	spec := DefaultPromptSpec()
	spec.Output.Format = format
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return PromptInput{
		Spec:    spec,
		Context: PromptContext{Admins: []domain.ChatAdmin{{UserID: 1, Username: "boss"}}},
		History: []domain.StoredHistoryEntry{
			{
				Message: domain.BufferedMessage{ChatID: -100, UserID: 5, MessageID: 100, Text: "old <spam>", Timestamp: ts},
				Sender:  domain.SenderUser,
				Decision: &domain.HistoryDecision{
					Classification: domain.ClassificationViolation,
					Actions:        []domain.ModerationAction{domain.ActionDelete},
				},
			},
		},
		Messages: []domain.BufferedMessage{
			{ChatID: -100, UserID: 7, MessageID: 201, Text: "hello", Username: "alice", Timestamp: ts.Add(time.Minute)},
			{ChatID: -100, UserID: 8, MessageID: 202, Text: "@bot help", ReplyToMessageID: 201, Timestamp: ts.Add(2 * time.Minute)},
		},
	}
}

func TestBuildPromptVerbose(t *testing.T) {
	asm := NewPromptAssembler()
	prompt := asm.BuildPrompt(samplePromptInput(domain.OutputVerbose))

	for _, want := range []string{
		"<system>", "ПРАВИЛА МОДЕРАЦИИ", "ФОРМАТ СООБЩЕНИЙ", "</system>",
		"<admins>", "@boss",
		"<history>", `<entry id="1"`, `<response classification="violation" action="delete">`,
		"old &lt;spam&gt;",
		"<chat>", `<message chatId="-100" userId="7" messageId="201" username="alice" timestamp="2026-03-01T12:01:00Z">hello</message>`,
		`replyToMessageId="201"`,
		"Верни только JSON",
	} {
		assert.Contains(t, prompt, want)
	}
	assert.Less(t, strings.Index(prompt, "<history>"), strings.Index(prompt, "<chat>"))
}

func TestBuildPromptCompact(t *testing.T) {
	asm := NewPromptAssembler()
	prompt := asm.BuildPrompt(samplePromptInput(domain.OutputCompact))

	assert.Contains(t, prompt, "M 201 7 ")
	assert.Contains(t, prompt, "r=201")
	assert.Contains(t, prompt, "H 100 5 ")
	assert.Contains(t, prompt, "c1 a2")
	assert.Contains(t, prompt, CompactSchema)
	assert.NotContains(t, prompt, "<chat>")
}

func TestBuildPromptDeterministic(t *testing.T) {
	asm := NewPromptAssembler()
	for _, f := range []domain.OutputFormat{domain.OutputVerbose, domain.OutputCompact} {
		in := samplePromptInput(f)
		assert.Equal(t, asm.BuildPrompt(in), asm.BuildPrompt(in))
	}
}

func TestHistorySizeIsAdditive(t *testing.T) {
	asm := NewPromptAssembler()
	for _, f := range []domain.OutputFormat{domain.OutputVerbose, domain.OutputCompact} {
		in := samplePromptInput(f)
		full := PromptLength(asm.BuildPrompt(in))

		empty := in
		empty.History = nil
		base := PromptLength(asm.BuildPrompt(empty))

		assert.Equal(t, full, base+asm.HistorySize(in.Spec, in.History), "format %s", f)
		assert.Equal(t, 0, asm.HistorySize(in.Spec, nil))
	}
}

func TestBuildPromptCustomSchema(t *testing.T) {
	in := samplePromptInput(domain.OutputCompact)
	in.Spec.Output.Schema = "{custom}"
	prompt := NewPromptAssembler().BuildPrompt(in)
	require.Contains(t, prompt, "{custom}")
	assert.NotContains(t, prompt, CompactSchema)
}
