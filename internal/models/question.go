package models

// Question is one entry of a quiz queue, copied from a flashcard when the run is built.
type Question struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Number   uint32 `json:"number"`
}

func QuestionFromFlashcard(c Flashcard) Question {
	return Question{Question: c.Question, Answer: c.Answer, Number: c.Number}
}
