// Package langutil maps between the language code forms the pipeline meets:
// BCP-47 locales from recognizers and clients ("ms-MY", "cmn-Hans-CN"), bare
// ISO 639 codes from translators ("ms", "zh-TW"), and English display names
// for prompts.
//
// All functions are pure and safe for concurrent use.
package langutil

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Undetermined is the ISO 639 code for "language not identified".
const Undetermined = "und"

// isoToLocale maps detector output to the locale the recognizers and voices
// are configured with.
var isoToLocale = map[string]string{
	"en":    "en-US",
	"ms":    "ms-MY",
	"id":    "id-ID",
	"fil":   "fil-PH",
	"tl":    "fil-PH",
	"th":    "th-TH",
	"vi":    "vi-VN",
	"km":    "km-KH",
	"my":    "my-MM",
	"zh":    "cmn-Hans-CN",
	"zh-cn": "cmn-Hans-CN",
	"zh-tw": "cmn-Hant-TW",
	"ta":    "ta-IN",
}

// Chinese macrolanguage members that translators only know as "zh".
var chineseVariants = map[string]bool{"cmn": true, "zh": true}

func split(code string) []string {
	code = strings.TrimSpace(strings.ReplaceAll(code, "_", "-"))
	if code == "" {
		return nil
	}
	return strings.Split(code, "-")
}

// Base returns the lower-cased primary language subtag of code, with Chinese
// variants folded to "zh". Empty input yields "".
//
//	Base("ms-MY")       == "ms"
//	Base("cmn-Hans-CN") == "zh"
func Base(code string) string {
	parts := split(code)
	if len(parts) == 0 {
		return ""
	}
	b := strings.ToLower(parts[0])
	if chineseVariants[b] {
		return "zh"
	}
	return b
}

// SameBase reports whether a and b share a primary language. Empty codes
// never match.
func SameBase(a, b string) bool {
	ba, bb := Base(a), Base(b)
	return ba != "" && ba == bb
}

// IsUndetermined reports whether code carries no usable language.
func IsUndetermined(code string) bool {
	b := Base(code)
	return b == "" || b == Undetermined
}

// Normalize returns the canonical BCP-47 form of code ("en_us" -> "en-US").
// Codes x/text cannot parse are returned trimmed but otherwise unchanged.
func Normalize(code string) string {
	code = strings.TrimSpace(strings.ReplaceAll(code, "_", "-"))
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return tag.String()
}

// FromISO converts a detector's ISO 639 code into a full locale. Codes
// outside the known table are normalised and returned as-is; undetermined
// input yields "".
func FromISO(code string) string {
	if IsUndetermined(code) {
		return ""
	}
	key := strings.ToLower(strings.TrimSpace(code))
	if loc, ok := isoToLocale[key]; ok {
		return loc
	}
	if loc, ok := isoToLocale[Base(key)]; ok && !strings.Contains(key, "-") {
		return loc
	}
	return Normalize(code)
}

// TranslatorCode returns the code a machine translator expects for locale:
// the base language, except Chinese which keeps its script distinction
// ("zh-CN" simplified, "zh-TW" traditional).
func TranslatorCode(locale string) string {
	b := Base(locale)
	if b != "zh" {
		return b
	}
	lower := strings.ToLower(locale)
	if strings.Contains(lower, "hant") || strings.HasSuffix(lower, "-tw") || strings.HasSuffix(lower, "-hk") {
		return "zh-TW"
	}
	return "zh-CN"
}

// Name returns the English display name of code's language, e.g. "Malay".
// Unknown codes produce "Language code <base>"; empty input yields
// "Unknown Language".
func Name(code string) string {
	b := Base(code)
	if b == "" {
		return "Unknown Language"
	}
	tag, err := language.Parse(b)
	if err == nil {
		if n := display.English.Languages().Name(tag); n != "" {
			return n
		}
	}
	return "Language code " + b
}

// Contains reports whether list holds code, compared case-insensitively.
func Contains(list []string, code string) bool {
	for _, l := range list {
		if strings.EqualFold(l, code) {
			return true
		}
	}
	return false
}
