// Package match anchors free-text review findings onto lines of the original
// contract. The backend returns no character offsets or stable anchors, so
// placement is heuristic: clause references first, explicit line references
// second, keyword scoring last. A miss is a normal outcome, not an error.
package match

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Config holds the matcher's scoring thresholds. The defaults mirror the
// tuned production values; they are configuration, not magic literals, so
// they can be adjusted and tested in isolation.
type Config struct {
	// MinAcceptScore is the minimum score a candidate line must reach to be
	// reported as a match at all.
	MinAcceptScore float64 `yaml:"min_accept_score" mapstructure:"min_accept_score"`
	// FullMatchScore is awarded for whole-keyword containment and
	// short-circuits the scan.
	FullMatchScore float64 `yaml:"full_match_score" mapstructure:"full_match_score"`
	// PartScoreScale scales the matched-part ratio in partial scoring.
	PartScoreScale float64 `yaml:"part_score_scale" mapstructure:"part_score_scale"`
	// PartLengthCap caps the average-part-length bonus.
	PartLengthCap float64 `yaml:"part_length_cap" mapstructure:"part_length_cap"`
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinAcceptScore: 15,
		FullMatchScore: 100,
		PartScoreScale: 60,
		PartLengthCap:  10,
	}
}

// minKeywordRunes is the shortest candidate keyword (and keyword part) worth
// scanning for. Anything shorter matches everywhere and means nothing.
const minKeywordRunes = 2

// clausePatterns recognize clause numbering at the start of a line.
var clausePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^第([一二三四五六七八九十百千0-9]+)条`), // 第一条 / 第1条
	regexp.MustCompile(`^([一二三四五六七八九十百千]+)[、.]`),   // 一、
	regexp.MustCompile(`^([0-9]+)[、.]`),              // 1、 / 1.
	regexp.MustCompile(`^第([一二三四五六七八九十百千0-9]+)款`), // 第一款 / 第1款
	regexp.MustCompile(`^([一二三四五六七八九十百千]+)是`),     // 一是
}

var (
	clauseRefPattern = regexp.MustCompile(`第([一二三四五六七八九十百千0-9]+)条`)
	lineRefPatterns  = []*regexp.Regexp{
		regexp.MustCompile(`第([0-9]+)行`),
		regexp.MustCompile(`(?i)line\s*([0-9]+)`),
		regexp.MustCompile(`([0-9]+)行`),
	}

	clauseMarkerStrip = regexp.MustCompile(`第[一二三四五六七八九十百千0-9]+[条款行]|(?i)line\s*[0-9]+`)
	hintFillerStrip   = regexp.MustCompile(`合同中|关于|相关`)
	quotedText        = regexp.MustCompile(`["「『]([^"」』]+)["」』]`)
	problemBoilerOne  = regexp.MustCompile(`缺少|没有|未|缺失|应该|建议|存在|过于|偏高|偏低|不明确|不当|风险`)
	problemBoilerTwo  = regexp.MustCompile(`条款|规定|内容|约定|问题|事项`)
	demonstratives    = regexp.MustCompile(`该|此|本`)
	suggestionBoiler  = regexp.MustCompile(`建议|修改|增加|补充|删除|调整为|改为`)
	partSeparator     = regexp.MustCompile(`[，、；;,\s]+`)
)

// Anchorable is the subset of an issue the matcher consumes.
type Anchorable struct {
	LocationHint string
	OriginalText string
	Problem      string
	Suggestion   string
}

// Matcher locates issues within a fixed snapshot of contract lines.
type Matcher struct {
	cfg         Config
	lines       []string
	clauseIndex map[int]int // clause number -> 1-based line
}

// New builds a matcher over the contract text. Lines are split on newlines;
// the clause index is computed once up front.
func New(text string, cfg Config) *Matcher {
	lines := strings.Split(text, "\n")
	return &Matcher{
		cfg:         cfg,
		lines:       lines,
		clauseIndex: buildClauseIndex(lines),
	}
}

// Lines returns the matcher's view of the contract, one entry per line.
func (m *Matcher) Lines() []string {
	return m.lines
}

// buildClauseIndex scans every line for a clause-numbering pattern and maps
// the clause number to its 1-based line. First occurrence wins.
func buildClauseIndex(lines []string) map[int]int {
	index := make(map[int]int)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		for _, pattern := range clausePatterns {
			groups := pattern.FindStringSubmatch(trimmed)
			if groups == nil {
				continue
			}
			if n := ChineseNumeral(groups[1]); n > 0 {
				if _, seen := index[n]; !seen {
					index[n] = i + 1
				}
			}
			break
		}
	}
	return index
}

var chineseDigits = map[rune]int{
	'一': 1, '二': 2, '三': 3, '四': 4, '五': 5,
	'六': 6, '七': 7, '八': 8, '九': 9,
	'十': 10, '百': 100, '千': 1000,
}

// ChineseNumeral converts a Chinese or Arabic numeral string to an int using
// positional decomposition ("十二" -> 12, "二十三" -> 23, bare "十" -> 10).
// Returns 0 when the string is not a recognizable numeral.
func ChineseNumeral(s string) int {
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}

	runes := []rune(s)
	if len(runes) == 1 {
		return chineseDigits[runes[0]]
	}

	// 十X (11..19)
	if runes[0] == '十' {
		rest := ChineseNumeral(string(runes[1:]))
		if rest == 0 {
			return 0
		}
		return 10 + rest
	}

	// X十 / X十Y / X百... : positional decomposition on the largest unit.
	for _, unit := range []struct {
		r rune
		v int
	}{{'千', 1000}, {'百', 100}, {'十', 10}} {
		idx := -1
		for i, r := range runes {
			if r == unit.r {
				idx = i
				break
			}
		}
		if idx <= 0 {
			continue
		}
		head := ChineseNumeral(string(runes[:idx]))
		if head == 0 {
			return 0
		}
		total := head * unit.v
		if idx+1 < len(runes) {
			tail := ChineseNumeral(string(runes[idx+1:]))
			if tail == 0 {
				return 0
			}
			total += tail
		}
		return total
	}

	return 0
}

// Locate returns the best-guess 1-based line for an issue, or ok=false when
// nothing scores above the acceptance threshold. Callers must tolerate both
// wrong lines and misses.
func (m *Matcher) Locate(issue Anchorable) (line int, ok bool) {
	// Explicit clause reference beats everything.
	if groups := clauseRefPattern.FindStringSubmatch(issue.LocationHint); groups != nil {
		if n := ChineseNumeral(groups[1]); n > 0 {
			if at, found := m.clauseIndex[n]; found {
				return at, true
			}
		}
	}

	// Explicit line reference, bounds-checked.
	for _, pattern := range lineRefPatterns {
		groups := pattern.FindStringSubmatch(issue.LocationHint)
		if groups == nil {
			continue
		}
		n, err := strconv.Atoi(groups[1])
		if err == nil && n >= 1 && n <= len(m.lines) {
			return n, true
		}
	}

	return m.locateByKeywords(issue)
}

// candidate is one keyword to scan for, with its priority (1 = strongest).
type candidate struct {
	keyword  string
	priority int
}

// locateByKeywords scans every line for each derived keyword and keeps the
// single best score. A full match short-circuits.
func (m *Matcher) locateByKeywords(issue Anchorable) (int, bool) {
	bestLine := 0
	bestScore := 0.0

	for _, cand := range deriveCandidates(issue) {
		if utf8.RuneCountInString(cand.keyword) < minKeywordRunes {
			continue
		}
		for i, raw := range m.lines {
			line := strings.TrimSpace(raw)
			score := m.score(cand.keyword, line, cand.priority)
			if score > bestScore {
				bestScore = score
				bestLine = i + 1
			}
			if score >= m.cfg.FullMatchScore {
				return i + 1, true
			}
		}
	}

	if bestScore >= m.cfg.MinAcceptScore {
		return bestLine, true
	}
	return 0, false
}

// deriveCandidates extracts keywords from the issue, strongest hint first:
// the verbatim excerpt, the location hint stripped of markers, the quoted
// (or de-boilerplated) problem text, and the de-boilerplated suggestion.
func deriveCandidates(issue Anchorable) []candidate {
	var out []candidate

	// A verbatim excerpt from the contract is the strongest possible anchor.
	if kw := strings.TrimSpace(issue.OriginalText); utf8.RuneCountInString(kw) >= minKeywordRunes {
		out = append(out, candidate{keyword: kw, priority: 1})
	}

	if issue.LocationHint != "" {
		kw := clauseMarkerStrip.ReplaceAllString(issue.LocationHint, "")
		kw = hintFillerStrip.ReplaceAllString(kw, "")
		kw = strings.TrimSpace(kw)
		if utf8.RuneCountInString(kw) >= minKeywordRunes {
			out = append(out, candidate{keyword: kw, priority: 1})
		}
	}

	if issue.Problem != "" {
		var kw string
		if groups := quotedText.FindStringSubmatch(issue.Problem); groups != nil {
			kw = groups[1]
		} else {
			kw = problemBoilerOne.ReplaceAllString(issue.Problem, "")
			kw = problemBoilerTwo.ReplaceAllString(kw, "")
			kw = demonstratives.ReplaceAllString(kw, "")
			kw = strings.TrimSpace(kw)
		}
		if utf8.RuneCountInString(kw) >= minKeywordRunes {
			out = append(out, candidate{keyword: kw, priority: 2})
		}
	}

	if issue.Suggestion != "" {
		kw := suggestionBoiler.ReplaceAllString(issue.Suggestion, "")
		kw = demonstratives.ReplaceAllString(kw, "")
		kw = strings.TrimSpace(kw)
		if utf8.RuneCountInString(kw) >= minKeywordRunes {
			out = append(out, candidate{keyword: kw, priority: 3})
		}
	}

	return out
}

// score rates how well a keyword matches one line. Containment scores
// FullMatchScore/priority. Otherwise the keyword is split into parts and the
// score is matched ratio times PartScoreScale plus a capped average-length
// bonus, divided by priority.
func (m *Matcher) score(keyword, line string, priority int) float64 {
	if keyword == "" || line == "" {
		return 0
	}

	if strings.Contains(line, keyword) {
		return m.cfg.FullMatchScore / float64(priority)
	}

	var parts []string
	for _, p := range partSeparator.Split(keyword, -1) {
		p = strings.TrimSpace(p)
		if utf8.RuneCountInString(p) >= minKeywordRunes {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return 0
	}

	matched := 0
	totalLen := 0
	for _, p := range parts {
		totalLen += utf8.RuneCountInString(p)
		if strings.Contains(line, p) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}

	ratio := float64(matched) / float64(len(parts))
	avgLen := float64(totalLen) / float64(len(parts))

	score := ratio * m.cfg.PartScoreScale
	score += math.Min(avgLen, m.cfg.PartLengthCap) * 2
	return math.Round(score / float64(priority))
}
