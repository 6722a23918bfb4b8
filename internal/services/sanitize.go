package services

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	apperrors "github.com/vytor/studyflash/internal/errors"
	"github.com/vytor/studyflash/internal/study"
)

var strictPolicy = bluemonday.StrictPolicy()

// CleanText trims user input and returns it unchanged otherwise. Input the
// strict policy would alter (tags, or text that parses as a tag such as
// "a<b") is rejected, so stored text and judged answers are always exactly
// what the user typed.
func CleanText(field, input string) (string, error) {
	text := strings.TrimSpace(input)
	if html.UnescapeString(strictPolicy.Sanitize(text)) != text {
		return "", apperrors.NewValidationError(field, "must not contain markup")
	}
	return text, nil
}

// cleanNames cleans topic names and drops the blank ones.
func cleanNames(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, name := range names {
		name, err := CleanText("topics", name)
		if err != nil {
			return nil, err
		}
		if name != "" {
			out = append(out, name)
		}
	}
	return out, nil
}

// checkSnapshotText applies the CleanText rule to every text field of an
// imported snapshot.
func checkSnapshotText(snap study.Snapshot) error {
	if _, err := CleanText("staging_topic", snap.StagingTopic); err != nil {
		return err
	}
	for _, t := range snap.Topics {
		if _, err := CleanText(fmt.Sprintf("topic %d content", t.Key), t.Content); err != nil {
			return err
		}
	}
	for _, c := range snap.Flashcards {
		if _, err := CleanText(fmt.Sprintf("flashcard %d question", c.Key), c.Question); err != nil {
			return err
		}
		if _, err := CleanText(fmt.Sprintf("flashcard %d answer", c.Key), c.Answer); err != nil {
			return err
		}
	}
	return nil
}
