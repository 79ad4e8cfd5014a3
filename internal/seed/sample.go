// Package seed holds sample Grade 4 maths and science assessments used by the
// in-memory setup and by the seed command.
package seed

import (
	"context"
	"encoding/json"
	"fmt"

	"assessment-service/internal/domain"
)

// Chapters and topics the sample assessments reference.
const (
	ChapterNumberAlgebra       = "number-algebra"
	ChapterMeasurementGeometry = "measurement-geometry"
	ChapterPhysicalWorld       = "physical-world"
	ChapterLivingWorld         = "living-world"

	TopicAdditionSubtraction    = "addition-subtraction"
	TopicMultiplicationDivision = "multiplication-division"
	TopicLengthArea             = "length-area"
	TopicForces                 = "forces"
	TopicLifeCycles             = "life-cycles"
)

// Saver persists an assessment together with its questions.
type Saver interface {
	SaveAssessment(ctx context.Context, a domain.Assessment) error
}

// Load writes every sample assessment through s.
func Load(ctx context.Context, s Saver) (int, error) {
	all := Assessments()
	for _, a := range all {
		if err := s.SaveAssessment(ctx, a); err != nil {
			return 0, fmt.Errorf("seed %s: %w", a.ID, err)
		}
	}
	return len(all), nil
}

// Assessments returns fresh copies of the sample assessments.
func Assessments() []domain.Assessment {
	return []domain.Assessment{
		{
			ID:           "add-sub-3digit",
			Title:        "Adding and Subtracting 3-digit Numbers",
			ChapterID:    ChapterNumberAlgebra,
			TopicID:      TopicAdditionSubtraction,
			PassingScore: 60,
			Questions: []domain.Question{
				choice("add-sub-q1", "What is 245 + 132?", []string{"367", "377", "387"}, "377"),
				choice("add-sub-q2", "What is 500 - 275?", []string{"225", "235", "325"}, "225"),
				choice("add-sub-q3", "What is 398 + 206?", []string{"594", "604", "614"}, "604"),
				trueFalse("add-sub-q4", "Regrouping is needed to work out 456 - 128.", true),
				short("add-sub-q5", "What is 720 - 315? Answer with a number.", json.RawMessage(`405`)),
			},
		},
		{
			ID:           "mul-div-basics",
			Title:        "Multiplication and Division",
			ChapterID:    ChapterNumberAlgebra,
			TopicID:      TopicMultiplicationDivision,
			PassingScore: 60,
			Questions: []domain.Question{
				choice("mul-div-q1", "What is 23 x 12?", []string{"256", "266", "276"}, "276"),
				choice("mul-div-q2", "What is the remainder of 47 / 5?", []string{"1", "2", "3"}, "2"),
				trueFalse("mul-div-q3", "Multiplying a number by 10 adds a zero to the end of a whole number.", true),
				choice("mul-div-q4", "What is 84 / 7?", []string{"11", "12", "14"}, "12"),
			},
		},
		{
			ID:           "length-area",
			Title:        "Length and Area",
			ChapterID:    ChapterMeasurementGeometry,
			TopicID:      TopicLengthArea,
			PassingScore: 70,
			Questions: []domain.Question{
				choice("len-area-q1", "How many centimetres are in 1 metre?", []string{"10", "100", "1000"}, "100"),
				choice("len-area-q2", "What is the area of a 4 cm by 3 cm rectangle?", []string{"7 cm²", "12 cm²", "14 cm²"}, "12 cm²"),
				trueFalse("len-area-q3", "A square with 5 cm sides has an area of 20 cm².", false),
			},
		},
		{
			ID:           "forces-push-pull",
			Title:        "Push and Pull",
			ChapterID:    ChapterPhysicalWorld,
			TopicID:      TopicForces,
			PassingScore: 60,
			Questions: []domain.Question{
				choice("forces-q1", "Opening a drawer towards you is a...", []string{"push", "pull"}, "pull"),
				trueFalse("forces-q2", "Friction slows down a rolling ball.", true),
				choice("forces-q3", "Which force pulls objects towards the Earth?", []string{"magnetism", "gravity", "friction"}, "gravity"),
			},
		},
		{
			ID:           "life-cycles",
			Title:        "Plant and Animal Life Cycles",
			ChapterID:    ChapterLivingWorld,
			TopicID:      TopicLifeCycles,
			PassingScore: 60,
			Questions: []domain.Question{
				choice("life-q1", "What does a seed grow into first?", []string{"flower", "seedling", "fruit"}, "seedling"),
				choice("life-q2", "Which stage comes after the caterpillar?", []string{"egg", "pupa", "adult"}, "pupa"),
				trueFalse("life-q3", "Frogs begin life as tadpoles.", true),
				short("life-q4", "What do plants need from the sun to make food?", json.RawMessage(`"light"`)),
			},
		},
	}
}

func choice(id, text string, options []string, correct string) domain.Question {
	raw, _ := json.Marshal(correct)
	return domain.Question{ID: id, Text: text, Type: domain.QuestionSingleChoice, Options: options, CorrectAnswer: raw}
}

func trueFalse(id, text string, correct bool) domain.Question {
	raw, _ := json.Marshal(correct)
	return domain.Question{ID: id, Text: text, Type: domain.QuestionTrueFalse, Options: []string{"true", "false"}, CorrectAnswer: raw}
}

func short(id, text string, correct json.RawMessage) domain.Question {
	return domain.Question{ID: id, Text: text, Type: domain.QuestionShortAnswer, CorrectAnswer: correct}
}
