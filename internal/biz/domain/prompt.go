package domain

// OutputFormat selects the prompt/response encoding
type OutputFormat string

const (
	OutputVerbose OutputFormat = "verbose"
	OutputCompact OutputFormat = "compact"
)

// PromptSpec is the read-only configuration that shapes a classifier prompt
type PromptSpec struct {
	Persona       string        `yaml:"persona"`
	Constraints   []string      `yaml:"constraints"`
	MessageFormat string        `yaml:"message_format"`
	Output        OutputSpec    `yaml:"output"`
	Strings       CannedStrings `yaml:"strings"`
}

// OutputSpec describes what the model must return
type OutputSpec struct {
	Format      OutputFormat `yaml:"format"`
	Schema      string       `yaml:"schema"`
	Instruction string       `yaml:"instruction"`
}

// CannedStrings are fixed texts used around the model output
type CannedStrings struct {
	AdminsHeader       string `yaml:"admins_header"`
	ReviewAnnouncement string `yaml:"review_announcement"` // supports {{mentions}}, {{action}}, {{context}}
	ReviewApprove      string `yaml:"review_approve"`
	ReviewReject       string `yaml:"review_reject"`
	ReviewApproved     string `yaml:"review_approved"`
	ReviewRejected     string `yaml:"review_rejected"`
	ReviewExpired      string `yaml:"review_expired"`
	DefaultWarning     string `yaml:"default_warning"`
}
