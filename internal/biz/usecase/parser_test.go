package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
)

func allowedIDs(ids ...int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func TestParseDropsForeignIDs(t *testing.T) {
	text := `{"results":[
		{"messageId":201,"classification":{"type":"violation","requiresResponse":false},"moderationAction":"delete"},
		{"messageId":999,"classification":{"type":"violation","requiresResponse":false},"moderationAction":"ban"}
	]}`

	results := NewResponseParser().Parse(text, allowedIDs(201, 202))
	require.Len(t, results, 1)
	assert.Equal(t, int64(201), results[0].MessageID)
	assert.Equal(t, domain.ActionDelete, results[0].ModerationAction)
}

func TestParseCoercesUnknownValues(t *testing.T) {
	text := `{"results":[{"messageId":5,"classification":{"type":"spam"},"moderationAction":"explode",
		"durationMinutes":-3,"targetUserId":"abc","targetMessageId":0}]}`

	results := NewResponseParser().Parse(text, allowedIDs(5))
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, domain.ClassificationNormal, r.Classification.Type)
	assert.Equal(t, domain.ActionNone, r.ModerationAction)
	assert.Zero(t, r.DurationMinutes)
	assert.Zero(t, r.TargetUserID)
	assert.Zero(t, r.TargetMessageID)
}

func TestParseKeepsValidOptionalFields(t *testing.T) {
	text := `{"results":[{"messageId":5,"classification":{"type":"violation","requiresResponse":true},
		"moderationAction":"mute","durationMinutes":30,"targetUserId":"42","targetMessageId":7,"responseText":"stop"}]}`

	results := NewResponseParser().Parse(text, allowedIDs(5))
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, 30, r.DurationMinutes)
	assert.Equal(t, int64(42), r.TargetUserID)
	assert.Equal(t, int64(7), r.TargetMessageID)
	assert.True(t, r.Classification.RequiresResponse)
	assert.Equal(t, "stop", r.ResponseText)
}

func TestParseCompactForm(t *testing.T) {
	text := `{"r":[{"mid":10,"c":2,"rr":1,"a":0,"t":"hi"},{"mid":11,"c":1,"rr":0,"a":3,"d":15}]}`

	results := NewResponseParser().Parse(text, allowedIDs(10, 11))
	require.Len(t, results, 2)
	assert.Equal(t, domain.ClassificationBotMention, results[0].Classification.Type)
	assert.True(t, results[0].Classification.RequiresResponse)
	assert.Equal(t, "hi", results[0].ResponseText)
	assert.Equal(t, domain.ActionMute, results[1].ModerationAction)
	assert.Equal(t, 15, results[1].DurationMinutes)
}

func TestParseBraceExtractionFallback(t *testing.T) {
	text := "Sure, here you go:\n```json\n{\"results\":[{\"messageId\":3,\"moderationAction\":\"warn\"}]}\n```\nThanks"

	results := NewResponseParser().Parse(text, allowedIDs(3))
	require.Len(t, results, 1)
	assert.Equal(t, domain.ActionWarn, results[0].ModerationAction)
}

func TestParseLenientJSON(t *testing.T) {
	text := `result: {results: [{messageId: 3, moderationAction: 'delete',},],}`

	results := NewResponseParser().Parse(text, allowedIDs(3))
	require.Len(t, results, 1)
	assert.Equal(t, domain.ActionDelete, results[0].ModerationAction)
}

func TestParseMalformedNeverFails(t *testing.T) {
	p := NewResponseParser()
	for _, text := range []string{"", "nope", "{", `{"results":"x"}`, `{"results":[1,2,null]}`, `[{"messageId":"x"}]`} {
		results := p.Parse(text, allowedIDs(1))
		assert.NotNil(t, results, text)
		assert.Empty(t, results, text)
	}
}

func TestParseDuplicateIDsFirstWins(t *testing.T) {
	text := `{"results":[{"messageId":1,"moderationAction":"warn"},{"messageId":1,"moderationAction":"ban"}]}`
	results := NewResponseParser().Parse(text, allowedIDs(1))
	require.Len(t, results, 1)
	assert.Equal(t, domain.ActionWarn, results[0].ModerationAction)
}
