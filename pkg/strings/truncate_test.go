package strings

import (
	"strings"
	"testing"
)

func TestSingleLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{name: "short string unchanged", input: "hello", maxLen: 10, expected: "hello"},
		{name: "exact length unchanged", input: "hello", maxLen: 5, expected: "hello"},
		{name: "long string truncated", input: "hello world this is a long string", maxLen: 15, expected: "hello world ..."},
		{name: "pretty printed json collapsed", input: "{\n  \"error\": \"invalid_client\"\n}", maxLen: 100, expected: `{ "error": "invalid_client" }`},
		{name: "crlf and tabs collapsed", input: "bad\r\n\trequest", maxLen: 20, expected: "bad request"},
		{name: "unicode truncation safe", input: "日本語テスト文字列", maxLen: 6, expected: "日本語..."},
		{name: "whitespace only becomes empty", input: "   \n\t  ", maxLen: 10, expected: ""},
		{name: "maxLen clamped to MinTruncateLen", input: "hello", maxLen: 0, expected: "h..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SingleLine(tt.input, tt.maxLen)
			if result != tt.expected {
				t.Errorf("SingleLine(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
			}
		})
	}
}

func TestBody(t *testing.T) {
	if got := Body(nil); got != "<empty body>" {
		t.Errorf("Body(nil) = %q", got)
	}

	long := strings.Repeat("x", DefaultBodyMaxLen+10)
	got := Body([]byte(long))
	if len([]rune(got)) != DefaultBodyMaxLen || !strings.HasSuffix(got, "...") {
		t.Errorf("Body did not truncate to %d runes: %d", DefaultBodyMaxLen, len([]rune(got)))
	}
}
