package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/titanous/json5"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
)

// MessageIDSet builds the allowed-id set for a batch
func MessageIDSet(messages []domain.BufferedMessage) map[int64]struct{} {
	set := make(map[int64]struct{}, len(messages))
	for _, m := range messages {
		set[m.MessageID] = struct{}{}
	}
	return set
}

// ResponseParser turns raw model output into validated results for one batch
type ResponseParser struct{}

// NewResponseParser creates a new response parser
func NewResponseParser() *ResponseParser {
	return &ResponseParser{}
}

// Parse never fails: unusable output yields an empty list.
// Results referencing ids outside allowed are dropped.
func (p *ResponseParser) Parse(text string, allowed map[int64]struct{}) (results []domain.ClassificationResult) {
	results = []domain.ClassificationResult{}
	defer func() {
		if r := recover(); r != nil {
			results = []domain.ClassificationResult{}
		}
	}()

	root, ok := decodeModelOutput(text)
	if !ok {
		return results
	}

	seen := make(map[int64]struct{})
	for _, raw := range resultItems(root) {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		res, ok := parseItem(item)
		if !ok {
			continue
		}
		if _, ok := allowed[res.MessageID]; !ok {
			continue
		}
		if _, dup := seen[res.MessageID]; dup {
			continue
		}
		seen[res.MessageID] = struct{}{}
		results = append(results, res)
	}
	return results
}

// decodeModelOutput tries strict JSON, then the outermost brace span strictly and leniently
func decodeModelOutput(text string) (interface{}, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	if v, err := decodeStrict(text); err == nil {
		return v, true
	}

	span := extractJSONSpan(text)
	if span == "" {
		return nil, false
	}
	if v, err := decodeStrict(span); err == nil {
		return v, true
	}
	var v interface{}
	if err := json5.Unmarshal([]byte(span), &v); err == nil {
		return v, true
	}
	return nil, false
}

func decodeStrict(text string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	// trailing garbage is a fallback case
	if dec.More() {
		return nil, errTrailingData
	}
	return v, nil
}

var errTrailingData = errors.New("trailing data after JSON value")

// extractJSONSpan returns the text between the first opening and last closing brace
func extractJSONSpan(text string) string {
	text = stripCodeFences(text)
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		start = strings.IndexByte(text, '[')
		end = strings.LastIndexByte(text, ']')
		if start < 0 || end <= start {
			return ""
		}
	}
	return text[start : end+1]
}

func stripCodeFences(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}
	var buf bytes.Buffer
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.String()
}

func resultItems(root interface{}) []interface{} {
	switch v := root.(type) {
	case []interface{}:
		return v
	case map[string]interface{}:
		for _, key := range []string{"results", "r"} {
			if items, ok := v[key].([]interface{}); ok {
				return items
			}
		}
		// a single bare result object
		if _, ok := v["messageId"]; ok {
			return []interface{}{v}
		}
		if _, ok := v["mid"]; ok {
			return []interface{}{v}
		}
	}
	return nil
}

func parseItem(item map[string]interface{}) (domain.ClassificationResult, bool) {
	if _, compact := item["mid"]; compact {
		return parseCompactItem(item)
	}
	return parseVerboseItem(item)
}

func parseVerboseItem(item map[string]interface{}) (domain.ClassificationResult, bool) {
	id, ok := positiveInt(firstOf(item, "messageId", "message_id"))
	if !ok {
		return domain.ClassificationResult{}, false
	}

	res := domain.ClassificationResult{
		MessageID:        id,
		Classification:   domain.Classification{Type: domain.ClassificationNormal},
		ModerationAction: domain.ActionNone,
	}

	switch c := item["classification"].(type) {
	case map[string]interface{}:
		if s, ok := c["type"].(string); ok {
			res.Classification.Type = domain.ParseClassificationType(s)
		}
		res.Classification.RequiresResponse = truthy(c["requiresResponse"])
	case string:
		res.Classification.Type = domain.ParseClassificationType(c)
	}
	if _, ok := item["requiresResponse"]; ok {
		res.Classification.RequiresResponse = truthy(item["requiresResponse"])
	}

	res.ModerationAction = parseAction(item["moderationAction"])
	if s, ok := item["responseText"].(string); ok {
		res.ResponseText = s
	}
	res.TargetUserID, _ = positiveInt(item["targetUserId"])
	res.TargetMessageID, _ = positiveInt(item["targetMessageId"])
	res.DurationMinutes = positiveMinutes(item["durationMinutes"])
	return res, true
}

func parseCompactItem(item map[string]interface{}) (domain.ClassificationResult, bool) {
	id, ok := positiveInt(item["mid"])
	if !ok {
		return domain.ClassificationResult{}, false
	}

	res := domain.ClassificationResult{
		MessageID:        id,
		Classification:   domain.Classification{Type: domain.ClassificationNormal},
		ModerationAction: parseAction(item["a"]),
	}
	switch c := item["c"].(type) {
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(c)); err == nil {
			res.Classification.Type = domain.ClassificationFromCode(n)
		} else {
			res.Classification.Type = domain.ParseClassificationType(c)
		}
	default:
		if n, ok := integer(c); ok {
			res.Classification.Type = domain.ClassificationFromCode(int(n))
		}
	}
	res.Classification.RequiresResponse = truthy(item["rr"])
	if s, ok := item["t"].(string); ok {
		res.ResponseText = s
	}
	res.TargetUserID, _ = positiveInt(item["tu"])
	res.TargetMessageID, _ = positiveInt(item["tm"])
	res.DurationMinutes = positiveMinutes(item["d"])
	return res, true
}

func parseAction(v interface{}) domain.ModerationAction {
	switch a := v.(type) {
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(a)); err == nil {
			return domain.ModerationActionFromCode(n)
		}
		return domain.ParseModerationAction(a)
	default:
		if n, ok := integer(a); ok {
			return domain.ModerationActionFromCode(int(n))
		}
	}
	return domain.ActionNone
}

func firstOf(item map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := item[k]; ok {
			return v
		}
	}
	return nil
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func integer(v interface{}) (int64, bool) {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	}
	if s, ok := v.(string); ok {
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return i, true
		}
	}
	f, ok := number(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

func positiveInt(v interface{}) (int64, bool) {
	n, ok := integer(v)
	if !ok || n <= 0 {
		return 0, false
	}
	return n, true
}

// positiveMinutes rounds fractional minutes up, non-positive values become 0
func positiveMinutes(v interface{}) int {
	f, ok := number(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Ceil(f))
}

func truthy(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true" || b == "1"
	}
	if n, ok := number(v); ok {
		return n != 0
	}
	return false
}
