package usecase

import "github.com/DevRickLin/chat-moderator/internal/biz/domain"

// ModerationPolicyConfig contains moderation policy configuration
type ModerationPolicyConfig struct {
	MaxMuteMinutes int    // Upper bound for mute durations (0 = no limit)
	ProtectAdmins  bool   // Never apply punitive actions to admin authors
	DefaultWarning string // Text for warn decisions
}

// DefaultModerationPolicyConfig returns default moderation policy configuration
func DefaultModerationPolicyConfig() ModerationPolicyConfig {
	return ModerationPolicyConfig{
		MaxMuteMinutes: 7 * 24 * 60,
		ProtectAdmins:  true,
		DefaultWarning: DefaultPromptSpec().Strings.DefaultWarning,
	}
}

// ModerationPolicy turns a validated classification result into concrete decisions
type ModerationPolicy struct {
	config ModerationPolicyConfig
}

// NewModerationPolicy creates a new moderation policy
func NewModerationPolicy(config ModerationPolicyConfig) *ModerationPolicy {
	return &ModerationPolicy{config: config}
}

// Evaluate returns zero or more decisions for msg
func (p *ModerationPolicy) Evaluate(msg domain.BufferedMessage, result domain.ClassificationResult) []domain.ModerationDecision {
	action := result.ModerationAction
	if action == "" || action == domain.ActionNone {
		return nil
	}

	targetUser := result.TargetUserID
	if targetUser == 0 {
		targetUser = msg.UserID
	}
	if p.config.ProtectAdmins && action.IsPunitive() && msg.IsAdmin && targetUser == msg.UserID {
		return nil
	}

	decision := domain.ModerationDecision{
		MessageID: msg.MessageID,
		UserID:    targetUser,
		Action:    action,
	}

	switch action {
	case domain.ActionMute:
		if result.DurationMinutes <= 0 {
			return nil
		}
		decision.DurationMinutes = result.DurationMinutes
		if max := p.config.MaxMuteMinutes; max > 0 && decision.DurationMinutes > max {
			decision.DurationMinutes = max
		}
	case domain.ActionDelete:
		decision.TargetMessageID = result.TargetMessageID
		if decision.TargetMessageID == 0 {
			decision.TargetMessageID = msg.MessageID
		}
	case domain.ActionWarn:
		decision.Text = p.config.DefaultWarning
	case domain.ActionBan:
		// optional ban duration, 0 = permanent
		decision.DurationMinutes = result.DurationMinutes
	}

	return []domain.ModerationDecision{decision}
}
