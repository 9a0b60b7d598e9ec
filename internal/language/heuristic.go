package language

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"cvone/interview/internal/models"
)

// latin-script languages scored by stop words and diacritics
var latinLanguages = []string{
	models.LanguageEnglish,
	models.LanguageFrench,
	models.LanguageGerman,
	models.LanguageSpanish,
	models.LanguagePortuguese,
}

var stopWords = map[string][]string{
	models.LanguageEnglish: {
		"the", "and", "with", "for", "you", "are", "our", "will", "have", "this",
		"that", "of", "to", "in", "is", "we", "experience", "years", "team", "work",
	},
	models.LanguageFrench: {
		"le", "la", "les", "des", "et", "avec", "pour", "vous", "nous", "une",
		"est", "dans", "sur", "du", "au", "expérience", "ans", "équipe", "poste", "être",
	},
	models.LanguageGerman: {
		"der", "die", "das", "und", "mit", "für", "sie", "wir", "ein", "eine",
		"ist", "im", "den", "von", "zu", "erfahrung", "jahre", "team", "sind", "auf",
	},
	models.LanguageSpanish: {
		"el", "la", "los", "las", "y", "con", "para", "usted", "nosotros", "una",
		"es", "en", "del", "por", "que", "experiencia", "años", "equipo", "trabajo", "se",
	},
	models.LanguagePortuguese: {
		"o", "os", "as", "e", "com", "para", "você", "nós", "uma", "um",
		"é", "em", "do", "da", "que", "experiência", "anos", "equipe", "trabalho", "não",
	},
}

// letters that only (or almost only) occur in one latin language
var diacriticHints = map[rune]string{
	'ß': models.LanguageGerman,
	'ä': models.LanguageGerman,
	'ö': models.LanguageGerman,
	'ü': models.LanguageGerman,
	'ç': models.LanguageFrench,
	'è': models.LanguageFrench,
	'ë': models.LanguageFrench,
	'î': models.LanguageFrench,
	'œ': models.LanguageFrench,
	'ù': models.LanguageFrench,
	'ñ': models.LanguageSpanish,
	'¿': models.LanguageSpanish,
	'¡': models.LanguageSpanish,
	'ã': models.LanguagePortuguese,
	'õ': models.LanguagePortuguese,
}

var stopWordIndex = func() map[string][]string {
	idx := make(map[string][]string)
	for lang, words := range stopWords {
		for _, w := range words {
			idx[w] = append(idx[w], lang)
		}
	}
	return idx
}()

// Guess is the outcome of the rule-based layer
type Guess struct {
	Language string
	// Confident is false when the text is short or the signals disagree
	Confident bool
}

type scriptCounts struct {
	kana, hangul, han, vietnamese, latin, ascii, letters int
}

func countScripts(text string) scriptCounts {
	var c scriptCounts
	for _, r := range text {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			c.ascii++
		}
		if !unicode.IsLetter(r) {
			continue
		}
		c.letters++
		switch {
		case unicode.In(r, unicode.Hiragana, unicode.Katakana):
			c.kana++
		case unicode.Is(unicode.Hangul, r):
			c.hangul++
		case unicode.Is(unicode.Han, r):
			c.han++
		case unicode.Is(unicode.Latin, r):
			c.latin++
			if isVietnameseLetter(r) {
				c.vietnamese++
			}
		}
	}
	return c
}

// isVietnameseLetter matches letters used by Vietnamese and rarely elsewhere:
// đ ă ơ ư and the tone-marked vowels of Latin Extended Additional.
func isVietnameseLetter(r rune) bool {
	switch unicode.ToLower(r) {
	case 'đ', 'ă', 'ơ', 'ư':
		return true
	}
	return r >= 0x1EA0 && r <= 0x1EF9
}

// Heuristic guesses the language of text without any AI call. Empty
// input yields the default language.
func Heuristic(text string) Guess {
	text = strings.TrimSpace(norm.NFC.String(text))
	if text == "" {
		return Guess{Language: models.DefaultLanguage, Confident: true}
	}

	c := countScripts(text)
	if c.letters == 0 {
		return Guess{Language: models.DefaultLanguage, Confident: true}
	}

	// CJK scripts are unambiguous once they make up a real share of the text.
	// Japanese mixes kana with Han, so any kana decides it.
	cjk := c.kana + c.hangul + c.han
	if cjk*5 >= c.letters {
		switch {
		case c.kana > 0 && c.kana >= c.hangul:
			return Guess{Language: models.LanguageJapanese, Confident: true}
		case c.hangul > 0 && c.hangul >= c.han:
			return Guess{Language: models.LanguageKorean, Confident: true}
		case c.han > 0:
			return Guess{Language: models.LanguageChinese, Confident: true}
		}
	}

	if c.vietnamese >= 2 && c.vietnamese*20 >= c.latin {
		return Guess{Language: models.LanguageVietnamese, Confident: true}
	}

	return scoreLatin(text, c)
}

func scoreLatin(text string, c scriptCounts) Guess {
	lower := strings.ToLower(text)
	scores := make(map[string]int, len(latinLanguages))

	for _, r := range lower {
		if lang, ok := diacriticHints[r]; ok {
			scores[lang] += 2
		}
	}

	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	for _, w := range words {
		for _, lang := range stopWordIndex[w] {
			scores[lang]++
		}
	}

	best, second := "", 0
	bestScore := 0
	for _, lang := range latinLanguages {
		s := scores[lang]
		switch {
		case s > bestScore:
			second = bestScore
			best, bestScore = lang, s
		case s > second:
			second = s
		}
	}

	if best == "" {
		// mostly ASCII with no signal reads as English, otherwise ask
		if c.ascii*10 >= c.letters*9 {
			return Guess{Language: models.DefaultLanguage, Confident: len(words) >= 3}
		}
		return Guess{Language: models.DefaultLanguage}
	}

	confident := bestScore >= 2 && bestScore > second && len(words) >= 3
	if bestScore == second && best != models.LanguageEnglish && scores[models.LanguageEnglish] == bestScore {
		best = models.LanguageEnglish
	}
	return Guess{Language: best, Confident: confident}
}
