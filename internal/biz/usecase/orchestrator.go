package usecase

import "github.com/DevRickLin/chat-moderator/internal/biz/domain"

// DecisionOrchestrator combines moderation and response policies for a batch
type DecisionOrchestrator struct {
	moderation *ModerationPolicy
	response   *ResponsePolicy
}

// NewDecisionOrchestrator creates a new decision orchestrator
func NewDecisionOrchestrator(moderation *ModerationPolicy, response *ResponsePolicy) *DecisionOrchestrator {
	return &DecisionOrchestrator{moderation: moderation, response: response}
}

// BuildResolutions returns one resolution per message, in batch order
func (o *DecisionOrchestrator) BuildResolutions(chatID int64, messages []domain.BufferedMessage, results []domain.ClassificationResult) []domain.AgentResolution {
	byID := make(map[int64]*domain.ClassificationResult, len(results))
	for i := range results {
		if _, ok := byID[results[i].MessageID]; !ok {
			byID[results[i].MessageID] = &results[i]
		}
	}

	reply := o.response.Select(chatID, messages, results)

	resolutions := make([]domain.AgentResolution, 0, len(messages))
	for _, msg := range messages {
		res := domain.AgentResolution{Message: msg}
		if r, ok := byID[msg.MessageID]; ok {
			cp := *r
			res.Result = &cp
			res.Moderation = o.moderation.Evaluate(msg, cp)
		}
		if reply != nil && reply.MessageID == msg.MessageID {
			res.Response = reply
		}
		resolutions = append(resolutions, res)
	}
	return resolutions
}

// SelectedResponse returns the single reply carried by the resolutions, if any
func SelectedResponse(resolutions []domain.AgentResolution) *domain.AgentResponseDecision {
	for _, r := range resolutions {
		if r.Response != nil {
			return r.Response
		}
	}
	return nil
}
