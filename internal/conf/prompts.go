package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
	"github.com/DevRickLin/chat-moderator/internal/biz/usecase"
)

// candidatePaths returns where to look for a config file when no explicit path is set
func candidatePaths(explicit, name string) []string {
	if explicit != "" {
		return []string{explicit}
	}
	paths := []string{
		filepath.Join("configs", name),
		filepath.Join("/etc/chat-moderator", name),
	}
	// Add path relative to executable
	if execPath, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", name))
	}
	return paths
}

// readFirst returns the contents of the first readable path
func readFirst(paths []string) ([]byte, string) {
	for _, p := range paths {
		if data, err := os.ReadFile(p); err == nil {
			return data, p
		}
	}
	return nil, ""
}

// LoadPromptSpec loads the prompt spec from YAML.
// Without a file the built-in spec is returned and loadedPath is empty.
func LoadPromptSpec(configPath string) (spec *domain.PromptSpec, loadedPath string, err error) {
	data, loadedPath := readFirst(candidatePaths(configPath, "prompts.yaml"))
	if data == nil {
		if configPath != "" {
			return nil, "", fmt.Errorf("prompts config %s not readable", configPath)
		}
		return usecase.DefaultPromptSpec(), "", nil
	}

	spec = &domain.PromptSpec{}
	if err := yaml.Unmarshal(data, spec); err != nil {
		return nil, "", fmt.Errorf("failed to parse %s: %w", loadedPath, err)
	}
	fillDefaults(spec, usecase.DefaultPromptSpec())
	if err := validateSpec(spec); err != nil {
		return nil, "", fmt.Errorf("%s: %w", loadedPath, err)
	}
	return spec, loadedPath, nil
}

// fillDefaults fills in values from base for empty fields
func fillDefaults(spec, base *domain.PromptSpec) {
	if spec.Persona == "" {
		spec.Persona = base.Persona
	}
	if len(spec.Constraints) == 0 {
		spec.Constraints = base.Constraints
	}
	if spec.MessageFormat == "" {
		spec.MessageFormat = base.MessageFormat
	}

	if spec.Output.Format == "" {
		spec.Output.Format = base.Output.Format
	}
	if spec.Output.Schema == "" && spec.Output.Format == base.Output.Format {
		spec.Output.Schema = base.Output.Schema
	}
	if spec.Output.Instruction == "" {
		spec.Output.Instruction = base.Output.Instruction
	}

	s, d := &spec.Strings, base.Strings
	if s.AdminsHeader == "" {
		s.AdminsHeader = d.AdminsHeader
	}
	if s.ReviewAnnouncement == "" {
		s.ReviewAnnouncement = d.ReviewAnnouncement
	}
	if s.ReviewApprove == "" {
		s.ReviewApprove = d.ReviewApprove
	}
	if s.ReviewReject == "" {
		s.ReviewReject = d.ReviewReject
	}
	if s.ReviewApproved == "" {
		s.ReviewApproved = d.ReviewApproved
	}
	if s.ReviewRejected == "" {
		s.ReviewRejected = d.ReviewRejected
	}
	if s.ReviewExpired == "" {
		s.ReviewExpired = d.ReviewExpired
	}
	if s.DefaultWarning == "" {
		s.DefaultWarning = d.DefaultWarning
	}
}

func validateSpec(spec *domain.PromptSpec) error {
	switch spec.Output.Format {
	case domain.OutputVerbose, domain.OutputCompact:
		return nil
	}
	return fmt.Errorf("unknown output format %q", spec.Output.Format)
}

// ChatsConfig is the per-chat configuration file
type ChatsConfig struct {
	DefaultEnabled bool        `yaml:"default_enabled"`
	Chats          []ChatEntry `yaml:"chats"`
}

// ChatEntry configures one chat
type ChatEntry struct {
	ChatID         int64              `yaml:"chat_id"`
	Title          string             `yaml:"title"`
	Enabled        bool               `yaml:"enabled"`
	ProviderAPIKey string             `yaml:"provider_api_key"`
	ProviderModel  string             `yaml:"provider_model"`
	Prompt         *domain.PromptSpec `yaml:"prompt"`
}

// LoadChatsConfig loads per-chat configuration from YAML.
// A missing file yields an empty config.
func LoadChatsConfig(configPath string) (*ChatsConfig, string, error) {
	data, loadedPath := readFirst(candidatePaths(configPath, "chats.yaml"))
	if data == nil {
		if configPath != "" {
			return nil, "", fmt.Errorf("chats config %s not readable", configPath)
		}
		return &ChatsConfig{}, "", nil
	}

	var config ChatsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, "", fmt.Errorf("failed to parse %s: %w", loadedPath, err)
	}

	seen := make(map[int64]bool, len(config.Chats))
	for i, c := range config.Chats {
		if c.ChatID == 0 {
			return nil, "", fmt.Errorf("%s: chat entry %d has no chat_id", loadedPath, i)
		}
		if seen[c.ChatID] {
			return nil, "", fmt.Errorf("%s: duplicate chat_id %d", loadedPath, c.ChatID)
		}
		seen[c.ChatID] = true
	}
	return &config, loadedPath, nil
}

// ToChatConfigs resolves entries against the base prompt spec
func (c *ChatsConfig) ToChatConfigs(base *domain.PromptSpec) ([]domain.ChatConfig, error) {
	out := make([]domain.ChatConfig, 0, len(c.Chats))
	for _, e := range c.Chats {
		cfg := domain.ChatConfig{
			ChatID:            e.ChatID,
			Title:             e.Title,
			GroupAgentEnabled: e.Enabled,
			ProviderAPIKey:    e.ProviderAPIKey,
			ProviderModel:     e.ProviderModel,
		}
		if e.Prompt != nil {
			spec := *e.Prompt
			fillDefaults(&spec, base)
			if err := validateSpec(&spec); err != nil {
				return nil, fmt.Errorf("chat %d: %w", e.ChatID, err)
			}
			cfg.Spec = &spec
		}
		out = append(out, cfg)
	}
	return out, nil
}
