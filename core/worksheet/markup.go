package worksheet

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Exercises are stored as a single HTML-subset string ("markdown") that is at
// once the authored content, the machine-readable answer key and renderable
// markup. A fill-gap blank is `<input data-answer="ESCAPED"/>` (optionally
// carrying a `value="ESCAPED"` draft); a dictation exercise is a fixed
// audio+textarea wrapper whose `data-answer` holds the whole transcription.
// The answer key is always re-derived from the markdown, never stored apart.

var (
	inputRegex    = regexp.MustCompile(`(?i)<input[^>]*data-answer="([^"]*)"[^>]*/?>`)
	textareaRegex = regexp.MustCompile(`(?is)<textarea[^>]*data-answer="([^"]*)"[^>]*>(.*?)</textarea>`)
	valueRegex    = regexp.MustCompile(`(?i)value="([^"]*)"`)

	pOpenRegex  = regexp.MustCompile(`(?i)<p[^>]*>`)
	pCloseRegex = regexp.MustCompile(`(?i)</p>`)
	brRegex     = regexp.MustCompile(`(?i)<br\s*/?>`)
	tagRegex    = regexp.MustCompile(`(?i)<[^>]+>`)

	// authoring convention for generated text: `____ (answer)`
	gapRegex     = regexp.MustCompile(`_{4,}`)
	gapPairRegex = regexp.MustCompile(`_{4,}\s*\(([^)]*)\)`)

	// ErrNoGapsFound reports generated text without a single gap.
	ErrNoGapsFound = errors.New("no gaps found")
)

// GapCountError reports generated text whose gap and answer counts disagree.
type GapCountError struct {
	Gaps    int
	Answers int
}

func (e *GapCountError) Error() string {
	return fmt.Sprintf("%d gap(s) but %d answer(s)", e.Gaps, e.Answers)
}

// Part is one render token of a fill-gap exercise: either a text run or a
// scored blank.
type Part struct {
	IsGap         bool   `json:"is_gap"`
	Text          string `json:"text,omitempty"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// unescapeHTML inverts exactly the five escapeHTML substitutions.
// `&amp;` is decoded last so escaped entities do not double-unescape.
func unescapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")
	return strings.ReplaceAll(s, "&amp;", "&")
}

// ExtractAnswers returns the decoded answer key of the markdown: all input
// gap answers in document order, then all textarea answers. Markdown without
// gaps yields an empty slice, never an error.
func ExtractAnswers(markdown string) []string {
	answers := make([]string, 0)
	for _, m := range inputRegex.FindAllStringSubmatch(markdown, -1) {
		answers = append(answers, unescapeHTML(m[1]))
	}
	for _, m := range textareaRegex.FindAllStringSubmatch(markdown, -1) {
		answers = append(answers, unescapeHTML(m[1]))
	}
	return answers
}

// Tokenize splits fill-gap markdown into render parts: text runs and gaps, in
// document order. `<p>` is stripped, `</p>` becomes a single space, `<br>` a
// newline; any other tag is stripped without replacement. Dictation markdown
// is not tokenized; it renders as a single audio+free-text block (see
// IsDictationMarkdown).
func Tokenize(markdown string) []Part {
	parts := make([]Part, 0)
	if markdown == "" {
		return parts
	}

	last := 0
	for _, loc := range inputRegex.FindAllStringSubmatchIndex(markdown, -1) {
		if text := cleanTextSegment(markdown[last:loc[0]]); strings.TrimSpace(text) != "" {
			parts = append(parts, Part{Text: text})
		}
		parts = append(parts, Part{IsGap: true, CorrectAnswer: unescapeHTML(markdown[loc[2]:loc[3]])})
		last = loc[1]
	}
	if text := cleanTextSegment(markdown[last:]); strings.TrimSpace(text) != "" {
		parts = append(parts, Part{Text: text})
	}
	return parts
}

func cleanTextSegment(s string) string {
	s = pOpenRegex.ReplaceAllString(s, "")
	s = pCloseRegex.ReplaceAllString(s, " ")
	s = brRegex.ReplaceAllString(s, "\n")
	s = tagRegex.ReplaceAllString(s, "")
	return unescapeHTML(s)
}

// FillAnswers bakes the given answers into the markdown for audit: each input
// gap is replaced, in encounter order, by the escaped answer text; each
// textarea keeps its tag but has its content replaced, with newlines escaped
// to `<br>`. Answers missing from a short slice fill in as empty strings.
func FillAnswers(markdown string, answers []string) string {
	var i int
	next := func() string {
		var ans string
		if i < len(answers) {
			ans = answers[i]
		}
		i++
		return ans
	}

	out := inputRegex.ReplaceAllStringFunc(markdown, func(string) string {
		return escapeHTML(next())
	})
	return textareaRegex.ReplaceAllStringFunc(out, func(m string) string {
		content := strings.ReplaceAll(escapeHTML(next()), "\n", "<br>")
		idx := textareaRegex.FindStringSubmatchIndex(m)
		return m[:idx[4]] + content + m[idx[5]:]
	})
}

// ValidateGeneratedText converts raw generated text using the `____ (answer)`
// authoring convention into gap markdown. It fails when no gap is present or
// when the gap and answer counts disagree; both failures are recoverable by
// regenerating the text. On success the result is wrapped in `<p>...</p>`
// unless it already starts with a tag.
func ValidateGeneratedText(raw string) (string, error) {
	text := strings.TrimSpace(raw)

	gaps := gapRegex.FindAllString(text, -1)
	if len(gaps) == 0 {
		return "", ErrNoGapsFound
	}
	pairs := gapPairRegex.FindAllString(text, -1)
	if len(pairs) != len(gaps) {
		return "", &GapCountError{Gaps: len(gaps), Answers: len(pairs)}
	}

	out := gapPairRegex.ReplaceAllStringFunc(text, func(m string) string {
		sub := gapPairRegex.FindStringSubmatch(m)
		return fmt.Sprintf(`<input data-answer="%s"/>`, escapeHTML(strings.TrimSpace(sub[1])))
	})
	if !strings.HasPrefix(out, "<") {
		out = "<p>" + out + "</p>"
	}
	return out, nil
}

// ExtractDraftAnswers returns the in-progress answers persisted in the
// markdown: the `value=` attribute of each input gap (empty when absent) and
// the inline content of each textarea.
func ExtractDraftAnswers(markdown string) []string {
	drafts := make([]string, 0)
	for _, m := range inputRegex.FindAllString(markdown, -1) {
		var draft string
		if vm := valueRegex.FindStringSubmatch(m); vm != nil {
			draft = unescapeHTML(vm[1])
		}
		drafts = append(drafts, draft)
	}
	for _, m := range textareaRegex.FindAllStringSubmatch(markdown, -1) {
		drafts = append(drafts, unescapeHTML(brRegex.ReplaceAllString(m[2], "\n")))
	}
	return drafts
}

// UpdateDraftAnswers persists in-progress answers inside the markdown so a
// worksheet survives a reload: input gaps get a `value=` attribute, textareas
// get inline content (newlines escaped to `<br>`). The answer key is left
// untouched, so ExtractDraftAnswers(UpdateDraftAnswers(m, drafts)) == drafts
// whenever len(drafts) equals the gap count.
func UpdateDraftAnswers(markdown string, drafts []string) string {
	var i int
	next := func() string {
		var draft string
		if i < len(drafts) {
			draft = drafts[i]
		}
		i++
		return draft
	}

	out := inputRegex.ReplaceAllStringFunc(markdown, func(m string) string {
		return setInputValue(m, next())
	})
	return textareaRegex.ReplaceAllStringFunc(out, func(m string) string {
		content := strings.ReplaceAll(escapeHTML(next()), "\n", "<br>")
		idx := textareaRegex.FindStringSubmatchIndex(m)
		return m[:idx[4]] + content + m[idx[5]:]
	})
}

// setInputValue sets the value attribute on an input tag, replacing an
// existing one; the rest of the tag is kept verbatim.
func setInputValue(tag, draft string) string {
	val := fmt.Sprintf(`value="%s"`, escapeHTML(draft))
	if valueRegex.MatchString(tag) {
		return valueRegex.ReplaceAllStringFunc(tag, func(string) string { return val })
	}
	i := len("<input")
	return tag[:i] + " " + val + tag[i:]
}

// DictationMarkdown builds the fixed dictation wrapper around a transcription
// and its audio file.
func DictationMarkdown(transcript, audioURL string) string {
	return fmt.Sprintf(
		`<div class="dictation-exercise"><audio controls src="%s"></audio>`+
			`<textarea data-answer="%s" rows="5" cols="50" placeholder="Write what you hear..."></textarea></div>`,
		audioURL, escapeHTML(transcript),
	)
}

// IsDictationMarkdown reports whether the markdown is a dictation exercise.
func IsDictationMarkdown(markdown string) bool {
	return textareaRegex.MatchString(markdown)
}
