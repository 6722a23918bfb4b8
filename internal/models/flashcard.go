package models

import "fmt"

// FlashcardKey identifies a flashcard within its repository. Zero is never a live key.
type FlashcardKey uint64

type Flashcard struct {
	Key       FlashcardKey `json:"key" yaml:"key"`
	Question  string       `json:"question" yaml:"question"`
	Answer    string       `json:"answer" yaml:"answer"`
	Number    uint32       `json:"number" yaml:"number"`
	TopicRefs []TopicKey   `json:"topic_refs" yaml:"topic_refs"`
}

// Clone returns a copy that shares no slices with c.
func (c Flashcard) Clone() Flashcard {
	out := c
	out.TopicRefs = append([]TopicKey(nil), c.TopicRefs...)
	return out
}

// Field names an editable flashcard text field.
type Field int

const (
	FieldQuestion Field = iota + 1
	FieldAnswer
)

func (f Field) String() string {
	switch f {
	case FieldQuestion:
		return "question"
	case FieldAnswer:
		return "answer"
	default:
		return fmt.Sprintf("Field(%d)", int(f))
	}
}

func ParseField(s string) (Field, error) {
	switch s {
	case "question":
		return FieldQuestion, nil
	case "answer":
		return FieldAnswer, nil
	default:
		return 0, fmt.Errorf("unknown flashcard field %q", s)
	}
}
