package usecase

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
)

const partSeparator = "\n\n"

// Default response schemas per output format
const (
	VerboseSchema = `{"results":[{"messageId":number,"classification":{"type":"normal"|"violation"|"bot_mention","requiresResponse":boolean},"moderationAction":"none"|"warn"|"delete"|"mute"|"unmute"|"kick"|"ban"|"unban","responseText"?:string,"targetUserId"?:number,"targetMessageId"?:number,"durationMinutes"?:number}]}`
	CompactSchema = `{ r: [{ mid, c, rr, a, t?, tu?, tm?, d? }] }`
)

const compactLegend = "mid: id сообщения; c: 0 normal, 1 violation, 2 bot_mention; rr: 1 если нужен ответ; " +
	"a: 0 none, 1 warn, 2 delete, 3 mute, 4 unmute, 5 kick, 6 ban, 7 unban; " +
	"t: текст ответа; tu: id пользователя; tm: id сообщения; d: минуты"

// DefaultPromptSpec returns the built-in prompt configuration
func DefaultPromptSpec() *domain.PromptSpec {
	return &domain.PromptSpec{
		Persona: "Ты модератор группового чата. Ты читаешь новые сообщения, решаешь, нарушают ли они правила, " +
			"и отвечаешь, когда к тебе обращаются напрямую.",
		Constraints: []string{
			"Спам, реклама и мошеннические ссылки: delete, при повторении mute.",
			"Оскорбления участников: warn, при повторении mute на 60 минут.",
			"kick и ban только за злостные нарушения, их подтверждает администратор.",
			"Не применяй наказания к администраторам.",
			"Если сомневаешься, выбирай none.",
		},
		MessageFormat: "Каждое новое сообщение содержит chatId, userId, messageId, имя автора и время. " +
			"В ответе используй только messageId из блока новых сообщений.",
		Output: domain.OutputSpec{
			Format:      domain.OutputVerbose,
			Instruction: "Верни только JSON без пояснений по схеме:",
		},
		Strings: domain.CannedStrings{
			AdminsHeader:       "Администраторы чата:",
			ReviewAnnouncement: "{{mentions}} требуется подтверждение: {{action}}\n{{context}}",
			ReviewApprove:      "Подтвердить",
			ReviewReject:       "Отклонить",
			ReviewApproved:     "Решение подтверждено.",
			ReviewRejected:     "Решение отклонено.",
			ReviewExpired:      "Время на подтверждение истекло.",
			DefaultWarning:     "Пожалуйста, соблюдайте правила чата.",
		},
	}
}

// PromptContext is optional chat context rendered before the history
type PromptContext struct {
	Admins []domain.ChatAdmin
}

// PromptInput is everything the assembler renders
type PromptInput struct {
	Spec     *domain.PromptSpec
	Context  PromptContext
	History  []domain.StoredHistoryEntry
	Messages []domain.BufferedMessage
}

// PromptAssembler renders classifier prompts.
// The output is a pure function of the input.
type PromptAssembler struct{}

// NewPromptAssembler creates a new prompt assembler
func NewPromptAssembler() *PromptAssembler {
	return &PromptAssembler{}
}

// BuildPrompt renders the full prompt.
// len(BuildPrompt(in)) == len(BuildPrompt(in without history)) + HistorySize(spec, history).
func (a *PromptAssembler) BuildPrompt(in PromptInput) string {
	spec := in.Spec
	if spec == nil {
		spec = DefaultPromptSpec()
	}

	var head, tail []string
	if spec.Output.Format == domain.OutputCompact {
		head = a.compactHead(spec, in.Context)
		tail = a.compactTail(spec, in.Messages)
	} else {
		head = a.verboseHead(spec, in.Context)
		tail = a.verboseTail(spec, in.Messages)
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(head, partSeparator))
	sb.WriteString(a.historyPart(spec, in.History))
	sb.WriteString(partSeparator)
	sb.WriteString(strings.Join(tail, partSeparator))
	return sb.String()
}

// HistorySize returns the number of characters the history adds to a prompt
func (a *PromptAssembler) HistorySize(spec *domain.PromptSpec, history []domain.StoredHistoryEntry) int {
	if spec == nil {
		spec = DefaultPromptSpec()
	}
	return utf8.RuneCountInString(a.historyPart(spec, history))
}

// PromptLength counts characters the same way budgets are expressed
func PromptLength(prompt string) int {
	return utf8.RuneCountInString(prompt)
}

func (a *PromptAssembler) historyPart(spec *domain.PromptSpec, history []domain.StoredHistoryEntry) string {
	if len(history) == 0 {
		return ""
	}
	if spec.Output.Format == domain.OutputCompact {
		return partSeparator + a.compactHistory(history)
	}
	return partSeparator + a.verboseHistory(history)
}

func schemaFor(spec *domain.PromptSpec) string {
	if spec.Output.Schema != "" {
		return spec.Output.Schema
	}
	if spec.Output.Format == domain.OutputCompact {
		return CompactSchema
	}
	return VerboseSchema
}

// ========== Verbose tagged encoding ==========

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func (a *PromptAssembler) verboseHead(spec *domain.PromptSpec, pc PromptContext) []string {
	var sb strings.Builder
	sb.WriteString("<system>\n")
	sb.WriteString(strings.TrimSpace(spec.Persona))
	if len(spec.Constraints) > 0 {
		sb.WriteString("\n\nПРАВИЛА МОДЕРАЦИИ:\n")
		for _, c := range spec.Constraints {
			fmt.Fprintf(&sb, "- %s\n", strings.TrimSpace(c))
		}
	} else {
		sb.WriteString("\n")
	}
	if spec.MessageFormat != "" {
		sb.WriteString("\nФОРМАТ СООБЩЕНИЙ:\n")
		sb.WriteString(strings.TrimSpace(spec.MessageFormat))
		sb.WriteString("\n")
	}
	sb.WriteString("</system>")

	parts := []string{sb.String()}
	if len(pc.Admins) > 0 {
		parts = append(parts, a.verboseAdmins(spec, pc.Admins))
	}
	return parts
}

func (a *PromptAssembler) verboseAdmins(spec *domain.PromptSpec, admins []domain.ChatAdmin) string {
	var sb strings.Builder
	sb.WriteString("<admins>\n")
	if spec.Strings.AdminsHeader != "" {
		sb.WriteString(spec.Strings.AdminsHeader)
		sb.WriteString("\n")
	}
	for _, adm := range admins {
		fmt.Fprintf(&sb, `<admin userId="%d">%s</admin>`+"\n", adm.UserID, xmlEscaper.Replace(adm.Mention()))
	}
	sb.WriteString("</admins>")
	return sb.String()
}

func (a *PromptAssembler) verboseHistory(history []domain.StoredHistoryEntry) string {
	var sb strings.Builder
	sb.WriteString("<history>\n")
	for i, e := range history {
		m := e.Message
		sender := e.Sender
		if sender == "" {
			sender = domain.SenderUser
		}
		fmt.Fprintf(&sb, `<entry id="%d" sender="%s" userId="%d" messageId="%d" timestamp="%s">`,
			i+1, sender, m.UserID, m.MessageID, formatTimestamp(m.Timestamp))
		sb.WriteString(xmlEscaper.Replace(m.Text))
		if d := e.Decision; d != nil {
			actions := make([]string, 0, len(d.Actions))
			for _, act := range d.Actions {
				actions = append(actions, string(act))
			}
			if len(actions) == 0 {
				actions = append(actions, string(domain.ActionNone))
			}
			fmt.Fprintf(&sb, "\n"+`<response classification="%s" action="%s">`, d.Classification, strings.Join(actions, ","))
			sb.WriteString(xmlEscaper.Replace(d.ResponseText))
			sb.WriteString("</response>")
		}
		sb.WriteString("</entry>\n")
	}
	sb.WriteString("</history>")
	return sb.String()
}

func (a *PromptAssembler) verboseTail(spec *domain.PromptSpec, messages []domain.BufferedMessage) []string {
	var sb strings.Builder
	sb.WriteString("<chat>\n")
	for _, m := range messages {
		fmt.Fprintf(&sb, `<message chatId="%d" userId="%d" messageId="%d"`, m.ChatID, m.UserID, m.MessageID)
		if m.Username != "" {
			fmt.Fprintf(&sb, ` username="%s"`, xmlEscaper.Replace(m.Username))
		}
		if m.FirstName != "" {
			fmt.Fprintf(&sb, ` firstName="%s"`, xmlEscaper.Replace(m.FirstName))
		}
		if m.IsAdmin {
			sb.WriteString(` isAdmin="true"`)
		}
		if m.ReplyToMessageID != 0 {
			fmt.Fprintf(&sb, ` replyToMessageId="%d"`, m.ReplyToMessageID)
		}
		if m.ReplyToUserID != 0 {
			fmt.Fprintf(&sb, ` replyToUserId="%d"`, m.ReplyToUserID)
		}
		fmt.Fprintf(&sb, ` timestamp="%s">`, formatTimestamp(m.Timestamp))
		sb.WriteString(xmlEscaper.Replace(m.Text))
		sb.WriteString("</message>\n")
	}
	sb.WriteString("</chat>")

	instruction := spec.Output.Instruction
	if instruction == "" {
		instruction = "Верни только JSON по схеме:"
	}
	return []string{sb.String(), instruction + "\n" + schemaFor(spec)}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// ========== Compact numeric encoding ==========

var lineFlattener = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func (a *PromptAssembler) compactHead(spec *domain.PromptSpec, pc PromptContext) []string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(spec.Persona))
	for i, c := range spec.Constraints {
		if i == 0 {
			sb.WriteString("\nПравила:")
		}
		fmt.Fprintf(&sb, "\n%d. %s", i+1, strings.TrimSpace(c))
	}
	sb.WriteString("\nФормат: M mid uid unix имя [r=mid] [adm]: текст; H mid uid unix c a: текст > ответ")

	parts := []string{sb.String()}
	if len(pc.Admins) > 0 {
		mentions := make([]string, 0, len(pc.Admins))
		for _, adm := range pc.Admins {
			mentions = append(mentions, strconv.FormatInt(adm.UserID, 10)+"="+adm.Mention())
		}
		parts = append(parts, "A: "+strings.Join(mentions, ","))
	}
	return parts
}

func (a *PromptAssembler) compactHistory(history []domain.StoredHistoryEntry) string {
	var sb strings.Builder
	sb.WriteString("H:")
	for _, e := range history {
		m := e.Message
		c, act := 0, 0
		reply := ""
		if d := e.Decision; d != nil {
			c = d.Classification.Code()
			if len(d.Actions) > 0 {
				act = d.Actions[0].Code()
			}
			reply = d.ResponseText
		}
		fmt.Fprintf(&sb, "\nH %d %d %d c%d a%d", m.MessageID, m.UserID, m.Timestamp.Unix(), c, act)
		if e.Sender == domain.SenderBot {
			sb.WriteString(" bot")
		}
		sb.WriteString(": ")
		sb.WriteString(lineFlattener.Replace(m.Text))
		if reply != "" {
			sb.WriteString(" > ")
			sb.WriteString(lineFlattener.Replace(reply))
		}
	}
	return sb.String()
}

func (a *PromptAssembler) compactTail(spec *domain.PromptSpec, messages []domain.BufferedMessage) []string {
	var sb strings.Builder
	sb.WriteString("M:")
	for _, m := range messages {
		name := m.Username
		if name == "" {
			name = m.FirstName
		}
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(&sb, "\nM %d %d %d %s", m.MessageID, m.UserID, m.Timestamp.Unix(), lineFlattener.Replace(name))
		if m.ReplyToMessageID != 0 {
			fmt.Fprintf(&sb, " r=%d", m.ReplyToMessageID)
		}
		if m.IsAdmin {
			sb.WriteString(" adm")
		}
		sb.WriteString(": ")
		sb.WriteString(lineFlattener.Replace(m.Text))
	}

	return []string{sb.String(), "JSON: " + schemaFor(spec) + "\n" + compactLegend}
}
