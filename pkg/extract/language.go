// Package extract detects caller language and pulls reservation entities
// out of free text with fixed patterns. Everything here is pure.
package extract

import (
	"strings"
	"unicode"
)

const (
	LangEnglish   = "en"
	LangRussian   = "ru"
	LangUkrainian = "uk"
	LangSlovak    = "sk"

	DefaultLanguage = LangEnglish
)

const (
	ukrainianLetters = "іїєґІЇЄҐ"
	slovakLetters    = "áäčďéíĺľňóôŕšťúýžÁÄČĎÉÍĹĽŇÓÔŔŠŤÚÝŽ"
)

// DetectLanguage applies an ordered rule chain; the first rule that fires wins.
func DetectLanguage(text string) string {
	for _, r := range text {
		if unicode.Is(unicode.Cyrillic, r) {
			if strings.ContainsAny(text, ukrainianLetters) {
				return LangUkrainian
			}
			return LangRussian
		}
	}
	if strings.ContainsAny(text, slovakLetters) {
		return LangSlovak
	}
	return DefaultLanguage
}

// Supported reports whether lang has its own phrase table.
func Supported(lang string) bool {
	switch lang {
	case LangEnglish, LangRussian, LangUkrainian, LangSlovak:
		return true
	}
	return false
}
