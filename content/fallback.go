package content

import (
	"fmt"

	"github.com/hupe1980/encounter/core"
)

// script renders a scripted exchange between a and b. ia and ib are one
// insight of each.
type script func(a, b core.Participant, ia, ib string) []core.DialogueTurn

func say(p core.Participant, format string, args ...any) core.DialogueTurn {
	return core.DialogueTurn{SpeakerID: p.ID, Text: fmt.Sprintf(format, args...)}
}

var scripts = []script{
	func(a, b core.Participant, _, _ string) []core.DialogueTurn {
		return []core.DialogueTurn{
			say(a, "Hello %s! Interesting running into you here.", b.Name()),
			say(b, "Indeed, %s. Always good to exchange ideas.", a.Name()),
			say(a, "Perhaps we should discuss our approaches sometime."),
			say(b, "I'd like that. Until next time."),
		}
	},
	func(a, b core.Participant, ia, ib string) []core.DialogueTurn {
		return []core.DialogueTurn{
			say(a, "%s! I was just thinking: %s.", b.Name(), ia),
			say(b, "Funny, I'd put it differently. %s.", capitalize(ib)),
			say(a, "Maybe we're saying the same thing from two ends."),
			say(b, "Maybe. Let's argue about it properly next time."),
		}
	},
	func(a, b core.Participant, ia, ib string) []core.DialogueTurn {
		return []core.DialogueTurn{
			say(a, "Quick question, %s. What's the one idea you keep coming back to?", b.Name()),
			say(b, "Simple: %s. And you?", ib),
			say(a, "%s. Took me years to learn that.", capitalize(ia)),
			say(b, "Worth every one of them, I'd bet."),
		}
	},
	func(a, b core.Participant, ia, _ string) []core.DialogueTurn {
		return []core.DialogueTurn{
			say(a, "%s, you look like someone with a plan.", b.Name()),
			say(b, "Always. Though plans rarely survive the first hour."),
			say(a, "That's why I remind myself: %s.", ia),
			say(b, "I'll steal that. Good seeing you, %s.", a.Name()),
		}
	},
}

// Fallback returns a scripted conversation between a and b. It never touches
// the network and always succeeds. The template and insights are chosen with
// rnd; a nil rnd uses the default source.
func Fallback(a, b core.Participant, rnd core.Random) []core.DialogueTurn {
	if rnd == nil {
		rnd = core.NewRandom()
	}
	t := scripts[rnd.IntN(len(scripts))]
	return t(a, b, pickInsight(a, rnd), pickInsight(b, rnd))
}

func pickInsight(p core.Participant, rnd core.Random) string {
	if len(p.Insights) == 0 {
		return "small steps compound"
	}
	return p.Insights[rnd.IntN(len(p.Insights))]
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] -= 'a' - 'A'
	}
	return string(r)
}
