package prioritizer

import (
	"regexp"
	"strings"

	"letterpod/internal/newsletter"
)

// Classifier derives a rank from document content.
type Classifier interface {
	Classify(doc newsletter.Document) (newsletter.Rank, []string)
}

type cueSet struct {
	rank     newsletter.Rank
	patterns []*regexp.Regexp
}

// KeywordClassifier ranks documents by lexical cues. A rank applies when a
// cue appears in the subject or at least twice in the opening of the body.
type KeywordClassifier struct {
	sets      []cueSet
	bodyLimit int
}

const (
	subjectWeight   = 2
	bodyWeight      = 1
	flagThreshold   = 2
	classifyBodyLen = 3000
)

var datePattern = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.? \d{1,2}\b`

// NewKeywordClassifier returns the default cue sets in rank order.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		bodyLimit: classifyBodyLen,
		sets: []cueSet{
			{newsletter.RankTimeSensitive, compile(
				`\bbreaking\b`, `\btoday\b`, `\btonight\b`, `\btomorrow\b`, `\bthis (?:week|weekend|friday|monday)\b`,
				`\bdeadline\b`, `\blast chance\b`, `\bexpires?\b`, `\bends (?:today|soon|tonight)\b`,
				`\bregister by\b`, `\brsvp\b`, `\bannounc(?:es|ed|ement)\b`, `\blaunch(?:es|ed)?\b`,
				`\bjust (?:released|announced)\b`, `\bhappening now\b`, datePattern,
			)},
			{newsletter.RankActionable, compile(
				`\bhow to\b`, `\btips?\b`, `\bsteps?\b`, `\bchecklist\b`, `\bplaybook\b`, `\bguide\b`,
				`\byou should\b`, `\btry (?:this|these|it)\b`, `\baction items?\b`, `\brecommend(?:s|ed|ation)?\b`,
				`\bdo this\b`, `\btemplate\b`,
			)},
			{newsletter.RankAnalysis, compile(
				`\banalysis\b`, `\btrends?\b`, `\bdeep dive\b`, `\bwhy\b`, `\bdata\b`, `\breport\b`,
				`\boutlook\b`, `\bforecast\b`, `\bmarket\b`, `\bstrategy\b`, `\d+(?:\.\d+)?%`,
			)},
			{newsletter.RankEvergreen, compile(
				`\bexplained\b`, `\blessons?\b`, `\bhistory\b`, `\bprimer\b`, `\b101\b`, `\blearn(?:ing)?\b`,
				`\bfundamentals\b`, `\bessay\b`, `\bprinciples?\b`, `\bintroduction to\b`,
			)},
		},
	}
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// Classify returns the highest rank whose cues reach the threshold, plus the
// cues that matched for it.
func (k *KeywordClassifier) Classify(doc newsletter.Document) (newsletter.Rank, []string) {
	subject := doc.Subject
	body := doc.Body
	if runes := []rune(body); len(runes) > k.bodyLimit {
		body = string(runes[:k.bodyLimit])
	}
	for _, set := range k.sets {
		score := 0
		var signals []string
		for _, re := range set.patterns {
			if m := re.FindString(subject); m != "" {
				score += subjectWeight
				signals = append(signals, "subject:"+strings.ToLower(m))
			}
			if hits := re.FindAllString(body, 3); len(hits) > 0 {
				score += bodyWeight * len(hits)
				signals = append(signals, "body:"+strings.ToLower(hits[0]))
			}
		}
		if score >= flagThreshold {
			return set.rank, signals
		}
	}
	return newsletter.RankOther, nil
}
