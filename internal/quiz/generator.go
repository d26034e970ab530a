// Package quiz serves POST /quiz/. Questions are synthesized locally from
// the submitted summary; no upstream model call is involved.
package quiz

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// questionTemplates drive the generated question text. A template without a
// placeholder is used verbatim.
var questionTemplates = []string{
	"What is the main topic of this text?",
	"According to the summary, what does it say about %s?",
	"What key point is made regarding %s?",
	"How does the text describe %s?",
	"What conclusion can be drawn about %s?",
}

type Option struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type Question struct {
	Question string   `json:"question"`
	Options  []Option `json:"options"`
}

// keyPhrases picks the candidate subjects for questions: whitespace-split
// words longer than four characters, deduplicated in order of first
// appearance, capped at limit.
func keyPhrases(summary string, limit int) []string {
	seen := make(map[string]struct{})
	var phrases []string
	for _, word := range strings.Fields(summary) {
		if len(word) <= 4 {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		phrases = append(phrases, word)
		if len(phrases) == limit {
			break
		}
	}
	return phrases
}

// Generate builds up to numQuestions multiple-choice questions from the
// summary. Fewer questions come back when the summary has fewer than
// numQuestions distinct key phrases.
func Generate(summary string, numQuestions int) []Question {
	phrases := keyPhrases(summary, numQuestions)
	questions := make([]Question, 0, len(phrases))

	for _, phrase := range phrases {
		template := questionTemplates[rand.IntN(len(questionTemplates))]
		text := template
		if strings.Contains(template, "%s") {
			text = fmt.Sprintf(template, phrase)
		}

		options := []Option{
			{Text: fmt.Sprintf("The text discusses %s in detail.", phrase), IsCorrect: true},
			{Text: fmt.Sprintf("The text mentions %s briefly.", phrase)},
			{Text: fmt.Sprintf("%s is not covered in the text.", phrase)},
			{Text: fmt.Sprintf("The text contradicts information about %s.", phrase)},
		}
		rand.Shuffle(len(options), func(i, j int) {
			options[i], options[j] = options[j], options[i]
		})

		questions = append(questions, Question{Question: text, Options: options})
	}
	return questions
}
