package langutil

import "testing"

func TestBase(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"ms-MY", "ms"},
		{"EN_us", "en"},
		{"cmn-Hans-CN", "zh"},
		{"zh-TW", "zh"},
		{"fil-PH", "fil"},
		{"", ""},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := Base(tt.in); got != tt.want {
			t.Errorf("Base(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSameBase(t *testing.T) {
	t.Parallel()
	if !SameBase("en-US", "en") {
		t.Error("en-US and en should match")
	}
	if SameBase("", "") {
		t.Error("empty codes must not match")
	}
	if SameBase("ms-MY", "id-ID") {
		t.Error("ms and id must not match")
	}
}

func TestIsUndetermined(t *testing.T) {
	t.Parallel()
	for _, c := range []string{"", "und", "UND"} {
		if !IsUndetermined(c) {
			t.Errorf("IsUndetermined(%q) = false", c)
		}
	}
	if IsUndetermined("en") {
		t.Error("en is determined")
	}
}

func TestFromISO(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"en", "en-US"},
		{"ms", "ms-MY"},
		{"zh-CN", "cmn-Hans-CN"},
		{"zh-TW", "cmn-Hant-TW"},
		{"zh", "cmn-Hans-CN"},
		{"ta", "ta-IN"},
		{"fr", "fr"},
		{"und", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FromISO(tt.in); got != tt.want {
			t.Errorf("FromISO(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTranslatorCode(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"ms-MY", "ms"},
		{"cmn-Hans-CN", "zh-CN"},
		{"cmn-Hant-TW", "zh-TW"},
		{"cmn-CN", "zh-CN"},
		{"en", "en"},
	}
	for _, tt := range tests {
		if got := TranslatorCode(tt.in); got != tt.want {
			t.Errorf("TranslatorCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestName(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"ms-MY", "Malay"},
		{"th-TH", "Thai"},
		{"en", "English"},
		{"", "Unknown Language"},
	}
	for _, tt := range tests {
		if got := Name(tt.in); got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	if got := Normalize("en_us"); got != "en-US" {
		t.Errorf("Normalize(en_us) = %q", got)
	}
	if got := Normalize("!!"); got != "!!" {
		t.Errorf("unparseable input should pass through, got %q", got)
	}
}

func TestContains(t *testing.T) {
	t.Parallel()
	if !Contains([]string{"en-SG", "ms-MY"}, "MS-my") {
		t.Error("case-insensitive match failed")
	}
	if Contains(nil, "en") {
		t.Error("nil list contains nothing")
	}
}
