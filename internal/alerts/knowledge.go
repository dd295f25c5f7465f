package alerts

import (
	"fmt"
	"strings"
)

// defaultKnowledgeBase is the canned caregiver guidance per event type, used
// both to ground the generated message and as the degradation path when the
// text backend is unavailable.
var defaultKnowledgeBase = map[string]string{
	"fall":           "Falls in Parkinson's patients are often due to postural instability or 'freezing of gait.' This is a medical emergency. The patient may need assistance and their care team should be notified. Check for signs of injury and reassure the patient.",
	"rigidity_spike": "A sudden spike in rigidity can be a sign of medication 'wearing-off' or significant muscle distress. This can be painful. The patient may need to rest or perform light stretches. This event should be logged for their doctor's review.",
	"tremor_spike":   "A pronounced tremor episode can indicate medication timing issues or heightened stress. Help the patient to a comfortable seated position and note the time for their care team.",
}

const defaultKnowledge = "A notable health event was detected."

// KnowledgeBase retrieves canned guidance per event type with a generic
// default for unknown types.
type KnowledgeBase map[string]string

// NewKnowledgeBase merges overrides onto the built-in entries.
func NewKnowledgeBase(overrides map[string]string) KnowledgeBase {
	kb := make(KnowledgeBase, len(defaultKnowledgeBase)+len(overrides))
	for event, text := range defaultKnowledgeBase {
		kb[event] = text
	}
	for event, text := range overrides {
		if text != "" {
			kb[event] = text
		}
	}
	return kb
}

// Lookup returns the guidance text for an event type.
func (kb KnowledgeBase) Lookup(eventType string) string {
	if text, ok := kb[eventType]; ok {
		return text
	}
	return defaultKnowledge
}

// FallbackMessage formats the canned message for an event type.
func (kb KnowledgeBase) FallbackMessage(eventType string) string {
	return fmt.Sprintf("**EVENT: %s**\n%s", strings.ToUpper(eventType), kb.Lookup(eventType))
}
