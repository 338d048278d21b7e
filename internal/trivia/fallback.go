// internal/trivia/fallback.go
package trivia

import "github.com/quizwire/quizwire/internal/models"

// fallbackQuestions is the built-in demo set served when the upstream
// source is unreachable. A game started offline still plays end to end.
var fallbackQuestions = []models.Question{
	{
		Text:         "What is the capital of France?",
		Answers:      []string{"London", "Berlin", "Paris", "Madrid"},
		CorrectIndex: 2,
		Category:     "Geography",
		Difficulty:   "easy",
		Type:         "multiple",
	},
	{
		Text:         "Which planet is known as the Red Planet?",
		Answers:      []string{"Venus", "Mars", "Jupiter", "Saturn"},
		CorrectIndex: 1,
		Category:     "Science",
		Difficulty:   "easy",
		Type:         "multiple",
	},
	{
		Text:         "Who painted the Mona Lisa?",
		Answers:      []string{"Vincent van Gogh", "Pablo Picasso", "Leonardo da Vinci", "Michelangelo"},
		CorrectIndex: 2,
		Category:     "Art",
		Difficulty:   "medium",
		Type:         "multiple",
	},
	{
		Text:         "What is the largest mammal in the world?",
		Answers:      []string{"African Elephant", "Blue Whale", "Giraffe", "Hippopotamus"},
		CorrectIndex: 1,
		Category:     "Animals",
		Difficulty:   "easy",
		Type:         "multiple",
	},
	{
		Text:         "In which year did World War II end?",
		Answers:      []string{"1944", "1945", "1946", "1947"},
		CorrectIndex: 1,
		Category:     "History",
		Difficulty:   "medium",
		Type:         "multiple",
	},
	{
		Text:         "What is the chemical symbol for gold?",
		Answers:      []string{"Go", "Gd", "Au", "Ag"},
		CorrectIndex: 2,
		Category:     "Science",
		Difficulty:   "medium",
		Type:         "multiple",
	},
	{
		Text:         "Which Shakespeare play features the character Hamlet?",
		Answers:      []string{"Romeo and Juliet", "Macbeth", "Othello", "Hamlet"},
		CorrectIndex: 3,
		Category:     "Literature",
		Difficulty:   "easy",
		Type:         "multiple",
	},
	{
		Text:         "What is the smallest country in the world?",
		Answers:      []string{"Monaco", "Vatican City", "Nauru", "San Marino"},
		CorrectIndex: 1,
		Category:     "Geography",
		Difficulty:   "medium",
		Type:         "multiple",
	},
	{
		Text:         "How many sides does a hexagon have?",
		Answers:      []string{"5", "6", "7", "8"},
		CorrectIndex: 1,
		Category:     "Mathematics",
		Difficulty:   "easy",
		Type:         "multiple",
	},
	{
		Text:         "Which element has the atomic number 1?",
		Answers:      []string{"Helium", "Hydrogen", "Lithium", "Carbon"},
		CorrectIndex: 1,
		Category:     "Science",
		Difficulty:   "medium",
		Type:         "multiple",
	},
	{
		Text:         "What is the derivative of x² with respect to x?",
		Answers:      []string{"x", "2x", "x²", "2"},
		CorrectIndex: 1,
		Category:     "Mathematics",
		Difficulty:   "hard",
		Type:         "multiple",
	},
}

// Fallback returns exactly amount questions from the demo set, truncating
// or cycling through it as needed so the game length always matches the
// lobby settings.
func Fallback(amount int) []models.Question {
	if amount <= 0 {
		amount = len(fallbackQuestions)
	}
	out := make([]models.Question, amount)
	for i := range out {
		out[i] = fallbackQuestions[i%len(fallbackQuestions)]
	}
	return out
}
