package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/encounter/core"
)

func TestBuildPrompt(t *testing.T) {
	a := core.Participant{ID: "naval", DisplayName: "Naval Ravikant", Role: "Wealth & Wisdom"}
	b := core.Participant{ID: "feynman", DisplayName: "Richard Feynman"}
	req := Request{
		Participant1: a,
		Participant2: b,
		Memory: []core.ConversationRecord{
			core.NewConversationRecord([]string{"naval", "feynman"}, []core.DialogueTurn{
				{SpeakerID: "naval", Text: "Leverage."},
				{SpeakerID: "feynman", Text: "Curiosity."},
			}, time.Unix(0, 0), 4),
		},
	}

	mreq, err := BuildPrompt(req, nil)
	require.NoError(t, err)
	assert.Contains(t, mreq.Instructions, "You are Naval Ravikant, known for wealth & wisdom.")
	assert.Contains(t, mreq.Instructions, "You are Richard Feynman. Stay in character")

	require.Len(t, mreq.Messages, 1)
	text := mreq.Messages[0].Content
	assert.Contains(t, text, "Naval Ravikant (Wealth & Wisdom) and Richard Feynman just bumped")
	assert.Contains(t, text, "Naval Ravikant: Leverage. / Richard Feynman: Curiosity.")
	assert.Contains(t, text, `"speaker": "naval"`)
	assert.Contains(t, text, `"speaker": "feynman"`)
}

func TestBuildPrompt_NoHistory(t *testing.T) {
	mreq, err := BuildPrompt(Request{Participant1: naval, Participant2: feynman}, nil)
	require.NoError(t, err)
	assert.NotContains(t, mreq.Messages[0].Content, "talked before")
}
