package models

// Difficulty is the coarse interview intensity of a question set
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// DefaultDifficulty is used whenever classification cannot produce an answer
const DefaultDifficulty = DifficultyMedium

// every known difficulty tier, in probe order
func DifficultyTiers() []Difficulty {
	return []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}
}

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Category groups interview questions by the skill they probe
type Category string

const (
	CategoryTechnical   Category = "technical"
	CategoryBehavioral  Category = "behavioral"
	CategorySituational Category = "situational"
	CategoryCompany     Category = "company"
)

func Categories() []Category {
	return []Category{CategoryTechnical, CategoryBehavioral, CategorySituational, CategoryCompany}
}

func (c Category) Valid() bool {
	switch c {
	case CategoryTechnical, CategoryBehavioral, CategorySituational, CategoryCompany:
		return true
	}
	return false
}

// SessionStatus is the lifecycle state of an interview session.
// in-progress is the only non-terminal state.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in-progress"
	StatusCompleted  SessionStatus = "completed"
	StatusAbandoned  SessionStatus = "abandoned"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusAbandoned:
		return true
	}
	return false
}

func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// supported interview languages (ISO 639-1)
const (
	LanguageEnglish    = "en"
	LanguageVietnamese = "vi"
	LanguageJapanese   = "ja"
	LanguageKorean     = "ko"
	LanguageChinese    = "zh"
	LanguageFrench     = "fr"
	LanguageGerman     = "de"
	LanguageSpanish    = "es"
	LanguagePortuguese = "pt"
)

// DefaultLanguage is the base Latin-script language
const DefaultLanguage = LanguageEnglish

var SupportedLanguages = map[string]bool{
	LanguageEnglish:    true,
	LanguageVietnamese: true,
	LanguageJapanese:   true,
	LanguageKorean:     true,
	LanguageChinese:    true,
	LanguageFrench:     true,
	LanguageGerman:     true,
	LanguageSpanish:    true,
	LanguagePortuguese: true,
}

func SupportedLanguagesList() []string {
	return []string{
		LanguageEnglish, LanguageVietnamese, LanguageJapanese, LanguageKorean, LanguageChinese,
		LanguageFrench, LanguageGerman, LanguageSpanish, LanguagePortuguese,
	}
}

// question count bounds for a single session
const (
	MinQuestionCount     = 1
	DefaultQuestionCount = 10
	MaxQuestionCount     = 30
)

// score bounds for a single evaluated answer
const (
	MinScore = 1
	MaxScore = 10
)
