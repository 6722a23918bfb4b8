package models

import (
	"fmt"
	"strings"
)

// TopicKey identifies a topic within its repository. Zero is never a live key.
type TopicKey uint64

// TopicTag classifies the role a topic plays.
type TopicTag int

const (
	TagDefault TopicTag = iota
	TagQuiz
	TagConfigure
	TagNone
)

func (t TopicTag) String() string {
	switch t {
	case TagQuiz:
		return "quiz"
	case TagConfigure:
		return "configure"
	case TagDefault:
		return "default"
	case TagNone:
		return "none"
	default:
		return fmt.Sprintf("TopicTag(%d)", int(t))
	}
}

// Valid reports whether t is one of the declared tags.
func (t TopicTag) Valid() bool {
	return t >= TagDefault && t <= TagNone
}

// ParseTopicTag parses a tag name case-insensitively.
func ParseTopicTag(s string) (TopicTag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quiz":
		return TagQuiz, nil
	case "configure":
		return TagConfigure, nil
	case "default", "":
		return TagDefault, nil
	case "none":
		return TagNone, nil
	default:
		return TagDefault, fmt.Errorf("unknown topic tag %q", s)
	}
}

func (t TopicTag) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid topic tag %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *TopicTag) UnmarshalText(b []byte) error {
	v, err := ParseTopicTag(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

type Topic struct {
	Key          TopicKey       `json:"key" yaml:"key"`
	Content      string         `json:"content" yaml:"content"`
	Tag          TopicTag       `json:"tag" yaml:"tag"`
	Enabled      bool           `json:"enabled" yaml:"enabled"`
	QuestionRefs []FlashcardKey `json:"question_refs" yaml:"question_refs"`
}

// Clone returns a copy that shares no slices with t.
func (t Topic) Clone() Topic {
	out := t
	out.QuestionRefs = append([]FlashcardKey(nil), t.QuestionRefs...)
	return out
}

// NormalizeContent is the form used when matching topics by name.
func NormalizeContent(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
