package mood

import (
	"regexp"
	"strings"
)

// Label 表示从用户输入推断出的学习情绪。
type Label string

const (
	Tired    Label = "tired"
	Confused Label = "confused"
	Happy    Label = "happy"
	Neutral  Label = "neutral"
)

// 按优先级排列，第一个命中的规则生效。
var rules = []struct {
	label   Label
	pattern *regexp.Regexp
}{
	{Tired, regexp.MustCompile(`(?i)tired|exhausted|sleepy|bored|overwhelmed`)},
	{Confused, regexp.MustCompile(`(?i)confused|don't understand|help|stuck|hard|difficult`)},
	{Happy, regexp.MustCompile(`(?i)great|awesome|got it|understand|thanks|good`)},
}

// Classify 返回文本对应的情绪标签；没有规则命中时返回 Neutral。
func Classify(text string) Label {
	text = strings.TrimSpace(text)
	if text == "" {
		return Neutral
	}
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return r.label
		}
	}
	return Neutral
}

// Valid reports whether s names a known label.
func Valid(s string) bool {
	switch Label(s) {
	case Tired, Confused, Happy, Neutral:
		return true
	}
	return false
}
