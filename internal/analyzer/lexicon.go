package analyzer

import (
	"regexp"
	"unicode"
)

// Lexicon category names, in matching order.
const (
	CategoryAISignatures   = "aiSignatures"
	CategoryFormalAcademic = "formalAcademic"
	CategoryTransitions    = "transitions"
	CategoryHedging        = "hedging"
	CategoryGenericFillers = "genericFillers"
	CategoryExplanatory    = "explanatory"
	CategoryListIntros     = "listIntros"
	CategoryConclusions    = "conclusions"
	CategoryDiplomatic     = "diplomatic"
	CategoryBuzzwords      = "buzzwords"
)

// Category is a named, ordered list of indicator phrases.
type Category struct {
	Name    string
	Phrases []string
}

// Phrase is a compiled lexicon entry.
type Phrase struct {
	Text     string
	Category string
	pattern  *regexp.Regexp
}

// Count returns the number of non-overlapping matches of the phrase in text.
func (p Phrase) Count(text string) int {
	return len(p.pattern.FindAllStringIndex(text, -1))
}

// Lexicon holds the indicator phrases and the common-word set used by the
// metric calculators. A Lexicon is built once and only read afterwards, so a
// single instance can be shared by concurrent analyses.
type Lexicon struct {
	categories  []Category
	phrases     []Phrase
	commonWords map[string]bool
}

// NewLexicon compiles the given categories. Phrases are matched
// case-insensitively; word boundaries are asserted only on edges that are
// word characters, so entries such as "e.g." or "first," match literally.
func NewLexicon(categories []Category, commonWords []string) *Lexicon {
	lex := &Lexicon{
		categories:  make([]Category, len(categories)),
		commonWords: make(map[string]bool, len(commonWords)),
	}
	for i, c := range categories {
		lex.categories[i] = Category{Name: c.Name, Phrases: append([]string(nil), c.Phrases...)}
		for _, phrase := range c.Phrases {
			lex.phrases = append(lex.phrases, Phrase{
				Text:     phrase,
				Category: c.Name,
				pattern:  PhrasePattern(phrase),
			})
		}
	}
	for _, w := range commonWords {
		lex.commonWords[w] = true
	}
	return lex
}

// PhrasePattern compiles a literal, case-insensitive matcher for phrase.
func PhrasePattern(phrase string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + PhraseExpr(phrase))
}

// PhraseExpr returns the quoted expression for phrase with \b on its word
// character edges, for callers that combine several phrases into one regexp.
func PhraseExpr(phrase string) string {
	expr := regexp.QuoteMeta(phrase)
	runes := []rune(phrase)
	if len(runes) > 0 && isWordRune(runes[0]) {
		expr = `\b` + expr
	}
	if len(runes) > 0 && isWordRune(runes[len(runes)-1]) {
		expr = expr + `\b`
	}
	return expr
}

func isWordRune(r rune) bool {
	return r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
}

// Categories returns the categories in matching order.
func (l *Lexicon) Categories() []Category {
	out := make([]Category, len(l.categories))
	copy(out, l.categories)
	return out
}

// Phrases returns every compiled phrase, flattened across categories.
// Phrases listed under several categories appear once per category.
func (l *Lexicon) Phrases() []Phrase {
	out := make([]Phrase, len(l.phrases))
	copy(out, l.phrases)
	return out
}

// IsCommon reports whether a cleaned lower-case word is in the common-word set.
func (l *Lexicon) IsCommon(word string) bool {
	return l.commonWords[word]
}

var defaultLexicon = NewLexicon(defaultCategories(), defaultCommonWords())

// DefaultLexicon returns the shared built-in lexicon.
func DefaultLexicon() *Lexicon {
	return defaultLexicon
}

func defaultCategories() []Category {
	return []Category{
		{Name: CategoryAISignatures, Phrases: []string{
			"as an ai", "as an artificial intelligence", "i cannot", "i'm unable to",
			"i don't have personal", "i don't have the ability", "my knowledge cutoff",
			"i was trained", "my training data", "language model", "large language model",
			"i'm here to help", "i'm happy to help", "i'd be happy to", "feel free to ask",
			"let me know if", "hope this helps", "is there anything else", "i can assist",
			"delve into", "dive into", "explore the", "unpack this", "break this down",
		}},
		{Name: CategoryFormalAcademic, Phrases: []string{
			"it is important to note", "it should be noted that", "it is worth mentioning",
			"it is crucial to understand", "it is imperative that", "it is essential to",
			"it bears mentioning", "one must consider", "we must acknowledge",
			"this highlights the importance", "this underscores the need", "this demonstrates",
			"in light of", "in the context of", "with regard to", "pertaining to",
			"in terms of", "on the basis of", "for the purpose of", "in order to",
			"due to the fact that", "owing to the fact", "by virtue of", "in accordance with",
		}},
		{Name: CategoryTransitions, Phrases: []string{
			"furthermore", "moreover", "additionally", "consequently", "subsequently",
			"nevertheless", "nonetheless", "conversely", "alternatively", "correspondingly",
			"in addition", "in contrast", "on the contrary", "on the other hand",
			"by the same token", "in a similar vein", "along these lines", "to that end",
			"with that said", "that being said", "having said that", "all things considered",
			"taking everything into account", "when all is said and done", "at the end of the day",
			"first and foremost", "last but not least", "above all", "in essence",
			"to summarize", "to sum up", "in summary", "in conclusion", "to conclude",
			"all in all", "overall", "ultimately", "finally",
		}},
		{Name: CategoryHedging, Phrases: []string{
			"may", "might", "could", "would", "should", "possibly", "potentially",
			"perhaps", "likely", "unlikely", "presumably", "apparently", "seemingly",
			"arguably", "conceivably", "supposedly", "generally", "typically",
			"tends to", "appears to", "seems to", "is known to", "is believed to",
			"is thought to", "is considered to", "is said to", "is reported to",
			"one might argue", "it could be argued", "some may say", "some believe",
			"research suggests", "studies indicate", "evidence shows", "data suggests",
		}},
		{Name: CategoryGenericFillers, Phrases: []string{
			"a wide range of", "a variety of", "a number of", "a plethora of",
			"an array of", "a myriad of", "a multitude of", "countless",
			"numerous", "various", "diverse", "manifold", "innumerable",
			"plays a crucial role", "plays a vital role", "plays an important role",
			"plays a significant role", "plays a key role", "plays a pivotal role",
			"serves as a", "acts as a", "functions as a", "operates as a",
			"in today's world", "in modern society", "in contemporary times",
			"in this day and age", "in the current landscape", "in the modern era",
			"the importance of", "the significance of", "the relevance of",
			"the impact of", "the influence of", "the role of", "the nature of",
		}},
		{Name: CategoryExplanatory, Phrases: []string{
			"this means that", "what this means is", "in other words", "put simply",
			"to put it simply", "simply put", "to clarify", "to elaborate",
			"more specifically", "to be more specific", "in particular", "particularly",
			"for instance", "for example", "such as", "including", "namely",
			"that is to say", "i.e.", "e.g.", "viz.", "specifically",
			"let me explain", "allow me to", "consider the following", "take for example",
		}},
		{Name: CategoryListIntros, Phrases: []string{
			"here are", "below are", "the following", "these include",
			"there are several", "there are many", "there are numerous",
			"key points include", "main points are", "important factors include",
			"primary considerations", "essential elements", "crucial aspects",
			"first,", "second,", "third,", "fourth,", "fifth,",
			"firstly,", "secondly,", "thirdly,", "fourthly,", "fifthly,",
			"1.", "2.", "3.", "4.", "5.",
			"step 1", "step 2", "step 3", "step 4", "step 5",
		}},
		{Name: CategoryConclusions, Phrases: []string{
			"in conclusion", "to conclude", "in summary", "to summarize",
			"summing up", "wrapping up", "to wrap up", "in closing",
			"final thoughts", "concluding remarks", "closing thoughts",
			"the bottom line", "the key takeaway", "the main point",
			"what we can learn", "what this tells us", "what we see here",
		}},
		{Name: CategoryDiplomatic, Phrases: []string{
			"on one hand", "on the other hand", "while it is true that",
			"although", "even though", "despite", "in spite of",
			"both sides", "pros and cons", "advantages and disadvantages",
			"benefits and drawbacks", "strengths and weaknesses",
			"it's worth noting", "it's important to remember",
			"we should consider", "we must take into account",
		}},
		{Name: CategoryBuzzwords, Phrases: []string{
			"leverage", "synergy", "optimize", "streamline", "maximize",
			"facilitate", "implement", "utilize", "prioritize", "incentivize",
			"robust", "scalable", "sustainable", "innovative", "cutting-edge",
			"state-of-the-art", "best practices", "paradigm shift", "holistic",
			"comprehensive", "multifaceted", "nuanced", "dynamic", "proactive",
			"actionable", "impactful", "transformative", "game-changing",
		}},
	}
}

// defaultCommonWords returns the fifty most frequent English words, used as
// the predictability signal of the perplexity metric.
func defaultCommonWords() []string {
	return []string{
		"the", "be", "to", "of", "and", "a", "in", "that", "have", "i",
		"it", "for", "not", "on", "with", "he", "as", "you", "do", "at",
		"this", "but", "his", "by", "from", "they", "we", "say", "her", "she",
		"or", "an", "will", "my", "one", "all", "would", "there", "their", "what",
		"so", "up", "out", "if", "about", "who", "get", "which", "go", "me",
	}
}
