package intent

import (
	"regexp"
	"strings"
	"sync/atomic"
)

// DefaultTriggers are used when no trigger phrases are configured.
var DefaultTriggers = []string{"@bot"}

// Input is everything classification looks at.
type Input struct {
	Text         string // raw, unmodified message text
	Direct       bool   // one-to-one chat
	PendingImage bool   // result of a cache peek
}

// Classifier applies the trigger phrases and the ordered rule list.
// Trigger phrases can be swapped at runtime (config hot reload).
type Classifier struct {
	triggers atomic.Pointer[triggerSet]
}

type triggerSet struct {
	phrases []string
	re      *regexp.Regexp // nil when no phrase is configured
}

func NewClassifier(triggers []string) *Classifier {
	c := &Classifier{}
	c.SetTriggers(triggers)
	return c
}

// SetTriggers replaces the trigger phrases. Empty phrases are dropped; an
// empty list disables triggering entirely.
func (c *Classifier) SetTriggers(triggers []string) {
	set := &triggerSet{}
	quoted := make([]string, 0, len(triggers))
	for _, t := range triggers {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		set.phrases = append(set.phrases, t)
		quoted = append(quoted, regexp.QuoteMeta(t))
	}
	if len(quoted) > 0 {
		set.re = regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
	}
	c.triggers.Store(set)
}

// PrimaryTrigger returns the first configured trigger phrase, or "" if none.
func (c *Classifier) PrimaryTrigger() string {
	if set := c.triggers.Load(); len(set.phrases) > 0 {
		return set.phrases[0]
	}
	return ""
}

// Detect reports whether text contains a trigger phrase and returns the text
// with every trigger occurrence removed. Removal repeats until nothing is
// left to remove, so Strip(Strip(x)) == Strip(x).
func (c *Classifier) Detect(text string) (triggered bool, cleaned string) {
	re := c.triggers.Load().re
	if re == nil {
		return false, strings.TrimSpace(text)
	}
	triggered = re.MatchString(text)
	for re.MatchString(text) {
		text = re.ReplaceAllString(text, "")
	}
	return triggered, strings.TrimSpace(text)
}

// Strip returns text without any trigger phrase.
func (c *Classifier) Strip(text string) string {
	_, cleaned := c.Detect(text)
	return cleaned
}

// Classify maps a message to exactly one intent. It never fails; Ignore is
// the fallback.
func (c *Classifier) Classify(in Input) Intent {
	triggered, cleaned := c.Detect(in.Text)
	m := &message{
		Input:     in,
		triggered: triggered,
		cleaned:   cleaned,
	}
	for _, r := range rules {
		if it, ok := r.match(m); ok {
			return it
		}
	}
	return Ignore{}
}
