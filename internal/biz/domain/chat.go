package domain

// ChatConfig is the per-chat configuration consumed by the scheduler
type ChatConfig struct {
	ChatID            int64
	Title             string
	GroupAgentEnabled bool
	Spec              *PromptSpec // nil means use the default spec
	ProviderAPIKey    string
	ProviderModel     string
}

// ChatAdmin is an administrator who can confirm reviews
type ChatAdmin struct {
	UserID    int64
	Username  string
	FirstName string
}

// Mention returns the @-notification text for the admin
func (a ChatAdmin) Mention() string {
	if a.Username != "" {
		return "@" + a.Username
	}
	return a.FirstName
}
