package httpapi

import (
	"context"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/bobotlabs/bobot/internal/model"
)

const (
	answerConfidenceThreshold = 35
	answerMaxSources          = 3
	answerMinTokenLength      = 2
)

// AnswerSource describes one FAQ entry that contributed to an answer.
type AnswerSource struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category,omitempty"`
}

// Answer is the outcome of answering one visitor question.
type Answer struct {
	Text       string
	HadAnswer  bool
	Confidence int
	Sources    []AnswerSource
}

// Answerer produces an answer for a visitor question scoped to one company.
type Answerer interface {
	Answer(ctx context.Context, companyID string, question string) (Answer, error)
}

// FAQAnswerer answers questions by token-overlap matching against the company's
// stored FAQ entries. Confidence is the share of question tokens covered by the
// best-matching entry, scaled to 0..100.
type FAQAnswerer struct {
	database *gorm.DB
}

// NewFAQAnswerer constructs a FAQAnswerer backed by the given database.
func NewFAQAnswerer(database *gorm.DB) *FAQAnswerer {
	return &FAQAnswerer{database: database}
}

type scoredEntry struct {
	entry model.FAQEntry
	score int
}

// Answer implements Answerer.
func (answerer *FAQAnswerer) Answer(ctx context.Context, companyID string, question string) (Answer, error) {
	var entries []model.FAQEntry
	if err := answerer.database.WithContext(ctx).Where("company_id = ?", companyID).Find(&entries).Error; err != nil {
		return Answer{}, err
	}

	questionTokens := tokenizeQuestion(question)
	if len(questionTokens) == 0 || len(entries) == 0 {
		return Answer{HadAnswer: false}, nil
	}

	scored := make([]scoredEntry, 0, len(entries))
	for _, entry := range entries {
		score := overlapScore(questionTokens, tokenizeQuestion(entry.Question+" "+entry.Category))
		if score > 0 {
			scored = append(scored, scoredEntry{entry: entry, score: score})
		}
	}
	if len(scored) == 0 {
		return Answer{HadAnswer: false}, nil
	}

	sort.SliceStable(scored, func(left int, right int) bool {
		return scored[left].score > scored[right].score
	})

	best := scored[0]
	sources := make([]AnswerSource, 0, answerMaxSources)
	for index, candidate := range scored {
		if index == answerMaxSources {
			break
		}
		sources = append(sources, AnswerSource{
			Question: candidate.entry.Question,
			Answer:   candidate.entry.Answer,
			Category: candidate.entry.Category,
		})
	}

	return Answer{
		Text:       best.entry.Answer,
		HadAnswer:  best.score >= answerConfidenceThreshold,
		Confidence: best.score,
		Sources:    sources,
	}, nil
}

func tokenizeQuestion(value string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, fieldValue := range strings.FieldsFunc(strings.ToLower(value), func(character rune) bool {
		return !('a' <= character && character <= 'z') && !('0' <= character && character <= '9') && character < 128
	}) {
		trimmedToken := strings.TrimSpace(fieldValue)
		if len(trimmedToken) < answerMinTokenLength {
			continue
		}
		tokens[trimmedToken] = struct{}{}
	}
	return tokens
}

func overlapScore(questionTokens map[string]struct{}, entryTokens map[string]struct{}) int {
	if len(questionTokens) == 0 {
		return 0
	}
	matched := 0
	for token := range questionTokens {
		if _, found := entryTokens[token]; found {
			matched++
		}
	}
	return matched * 100 / len(questionTokens)
}
