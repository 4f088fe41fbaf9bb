package content

import (
	"strings"

	"github.com/hupe1980/encounter/core"
	"github.com/hupe1980/encounter/internal/util"
	"github.com/hupe1980/encounter/model"
)

// Request asks a Backend for dialogue between two participants.
type Request struct {
	Participant1 core.Participant          `json:"participant1"`
	Participant2 core.Participant          `json:"participant2"`
	Memory       []core.ConversationRecord `json:"memoryContext,omitempty"`
}

// Participants returns both participants in order.
func (r Request) Participants() []core.Participant {
	return []core.Participant{r.Participant1, r.Participant2}
}

var promptTemplate = util.MustParse("dialogue", `{{ .A.Name }}{{ with .A.Role }} ({{ . }}){{ end }} and {{ .B.Name }}{{ with .B.Role }} ({{ . }}){{ end }} just bumped into each other while walking around town.
{{- if .History }}

They have talked before:
{{- range .History }}
{{ range $i, $t := . }}{{ if $i }} / {{ end }}{{ $t }}{{ end }}
{{- end }}
{{- end }}

Write a short, natural conversation of 4 to 6 lines between them, in character. Each line under 30 words.
Respond ONLY with a JSON array like:
[{"speaker": {{ quote .A.ID }}, "text": "..."}, {"speaker": {{ quote .B.ID }}, "text": "..."}]
Use exactly the speaker ids {{ quote .A.ID }} and {{ quote .B.ID }}.`)

// Instructions returns the system prompt for a participant.
type Instructions func(p core.Participant) string

// DefaultInstructions describes the participant by name and role.
func DefaultInstructions(p core.Participant) string {
	var b strings.Builder
	b.WriteString("You are ")
	b.WriteString(p.Name())
	if p.Role != "" {
		b.WriteString(", known for ")
		b.WriteString(strings.ToLower(p.Role))
	}
	b.WriteString(". Stay in character and keep it brief.")
	return b.String()
}

type promptData struct {
	A, B    core.Participant
	History [][]string
}

// BuildPrompt renders the model request for r. The first participant's
// instructions become the system prompt; the second's are folded into the
// user message.
func BuildPrompt(r Request, instr Instructions) (model.Request, error) {
	if instr == nil {
		instr = DefaultInstructions
	}
	data := promptData{A: r.Participant1, B: r.Participant2}
	for _, rec := range r.Memory {
		var lines []string
		for _, t := range rec.Turns {
			name := t.SpeakerID
			for _, p := range r.Participants() {
				if p.ID == t.SpeakerID {
					name = p.Name()
				}
			}
			lines = append(lines, name+": "+t.Text)
		}
		if len(lines) > 0 {
			data.History = append(data.History, lines)
		}
	}
	text, err := util.Execute(promptTemplate, data)
	if err != nil {
		return model.Request{}, err
	}
	system := instr(r.Participant1) + "\n" + instr(r.Participant2)
	return model.UserText(system, text), nil
}

