// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package ingest

import (
	"regexp"
	"strings"
)

// NoiseConfig holds the tunable thresholds and pattern sets the Noise
// Filter uses. The zero value is invalid; use DefaultNoiseConfig.
type NoiseConfig struct {
	MinLength int
	MaxLength int

	DenialPatterns       []*regexp.Regexp
	MetaQuestionPatterns []*regexp.Regexp
	Boilerplate          map[string]struct{}
}

// DefaultNoiseConfig returns the thresholds and patterns named in §4.B:
// a ~10 char floor, ~5000 char ceiling, English/Chinese denial and
// meta-question regexes, and an EN/ZH greeting-and-acknowledgment list.
func DefaultNoiseConfig() NoiseConfig {
	return NoiseConfig{
		MinLength: 10,
		MaxLength: 5000,
		DenialPatterns: compileAll(
			`(?i)i don'?t (have|recall|remember) (any )?(data|information|memory)`,
			`(?i)i don'?t know (that|this|about)`,
			`(?i)i'?m not (sure|aware) (of|about)`,
			`没有(相关)?(数据|记忆|信息)`,
			`我不记得`,
		),
		MetaQuestionPatterns: compileAll(
			`(?i)do you remember`,
			`(?i)what do you (recall|know) about`,
			`(?i)can you remind me`,
			`你还记得`,
			`你知道.*吗[?？]?$`,
		),
		Boilerplate: boilerplateSet(
			"hi", "hello", "hey", "thanks", "thank you", "ok", "okay", "got it",
			"sure", "sounds good", "np", "no problem", "you're welcome",
			"你好", "谢谢", "好的", "嗯", "收到", "没问题", "不客气",
		),
	}
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

func boilerplateSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

var (
	fencedCodeRe   = regexp.MustCompile(`(?s)^\s*` + "```" + `.*` + "```" + `\s*$`)
	logPrefixRe    = regexp.MustCompile(`^\s*\[?\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}`)
	markdownHeadRe = regexp.MustCompile(`^\s*(#{1,6}\s|[-*+]\s|\d+\.\s)`)
)

// IsNoise reports whether text carries too little information to bother
// extracting facts from, per §4.B. It is a pure function of text and cfg.
func IsNoise(text string, cfg NoiseConfig) bool {
	trimmed := strings.TrimSpace(text)
	length := len([]rune(trimmed))

	if length < cfg.MinLength || length > cfg.MaxLength {
		return true
	}
	for _, re := range cfg.DenialPatterns {
		if re.MatchString(trimmed) {
			return true
		}
	}
	for _, re := range cfg.MetaQuestionPatterns {
		if re.MatchString(trimmed) {
			return true
		}
	}
	if _, ok := cfg.Boilerplate[strings.ToLower(trimmed)]; ok {
		return true
	}
	if fencedCodeRe.MatchString(trimmed) {
		return true
	}
	if isPureJSON(trimmed) {
		return true
	}
	if logPrefixRe.MatchString(trimmed) {
		return true
	}
	if markdownHeadRe.MatchString(trimmed) {
		return true
	}
	return false
}

// isPureJSON reports whether text is entirely a JSON object or array,
// with no surrounding prose — a strong signal of raw tool output rather
// than something an assistant actually said.
func isPureJSON(text string) bool {
	if len(text) == 0 {
		return false
	}
	first, last := text[0], text[len(text)-1]
	isObject := first == '{' && last == '}'
	isArray := first == '[' && last == ']'
	return isObject || isArray
}

// FilterMessages applies IsNoise at message granularity, the pipeline's
// per-message usage named in §4.B.
func FilterMessages(messages []Message, cfg NoiseConfig) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if !IsNoise(m.Text, cfg) {
			out = append(out, m)
		}
	}
	return out
}
