package filename

import (
	"path/filepath"
	"strings"
	"testing"
	"testing/quick"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Song - Band.mp3", "Song - Band.mp3"},
		{"unsafe chars", `a<b>c:d"e/f\g|h?i*j.mp4`, "a_b_c_d_e_f_g_h_i_j.mp4"},
		{"controls", "a\x00b\x1fc\x7fd.mp3", "a_b_c_d.mp3"},
		{"trimmed", "  Song  .mp3", "Song.mp3"},
		{"empty base", ".mp3", "download.mp3"},
		{"only unsafe", "???", "___"},
		{"unicode kept", "日本語の歌.mp3", "日本語の歌.mp3"},
		{"odd extension is part of base", "file.tar gz", "file.tar gz"},
		{"invalid utf8", "a\xffb.mp3", "a_b.mp3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitize_ASCIIOnly(t *testing.T) {
	s := Sanitizer{MaxLength: 100, ASCIIOnly: true}
	assert.Equal(t, "Caf_ ___.mp3", s.Sanitize("Café 日本語.mp3"))
}

func TestSanitize_TruncatesAfterSanitizing(t *testing.T) {
	s := Sanitizer{MaxLength: 5}
	assert.Equal(t, "a_b_c.mp3", s.Sanitize("a/b/cdefgh.mp3"))
	assert.Equal(t, "日本語の歌.mp4", s.Sanitize("日本語の歌声です.mp4"))
	// Trailing space left behind by truncation is dropped.
	assert.Equal(t, "abc", s.Sanitize("abc  defgh"))
}

func TestSanitize_ExtensionPreserved(t *testing.T) {
	s := Sanitizer{MaxLength: 3}
	assert.Equal(t, "Lon.webm", s.Sanitize("Long title.webm"))
	assert.Equal(t, "Lon.MP3", s.Sanitize("Long title.MP3"))
}

func TestSanitize_Properties(t *testing.T) {
	for _, s := range []Sanitizer{
		{MaxLength: 100},
		{MaxLength: 7},
		{MaxLength: 1, ASCIIOnly: true},
	} {
		prop := func(in string) bool {
			out := s.Sanitize(in)
			if s.Sanitize(out) != out {
				t.Logf("not idempotent: %q -> %q -> %q", in, out, s.Sanitize(out))
				return false
			}
			if strings.ContainsAny(out, `<>:"/\|?*`) {
				return false
			}
			for _, r := range out {
				if r < 0x20 || r == 0x7F {
					return false
				}
				if s.ASCIIOnly && r > 0x7E {
					return false
				}
			}
			base := strings.TrimSuffix(out, filepath.Ext(out))
			if extPattern.MatchString(filepath.Ext(out)) && utf8.RuneCountInString(base) > s.MaxLength {
				return false
			}
			return out != ""
		}
		assert.NoError(t, quick.Check(prop, &quick.Config{MaxCount: 2000}))
	}
}

func TestSanitize_IdempotentSamples(t *testing.T) {
	s := Sanitizer{MaxLength: 6}
	for _, in := range []string{"x .mp3 z", "abc.de fg", "  .  ", "a..b..", "...mp3", "ab .cd ef", "abcde\u2003f.mp3"} {
		out := s.Sanitize(in)
		assert.Equal(t, out, s.Sanitize(out), "input %q", in)
	}
}

func TestSanitize_SinglePassIsStable(t *testing.T) {
	tests := []struct {
		name string
		max  int
		in   string
		want string
	}{
		{"truncation exposes extension", 5, "ab .cd ef", "ab.c"},
		{"truncation leaves ideographic space", 3, "ab\u3000cd", "ab"},
		{"trailing dots before exposed extension", 6, "x .mp3 z", "x.mp3"},
		{"trailing no-break space", 100, "Song\u00a0.mp3", "Song.mp3"},
		{"nested extensions", 100, "a.mp3.mp4", "a.mp3.mp4"},
		{"dots only", 100, "  .  ", "download"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Sanitizer{MaxLength: tt.max}
			out := s.Sanitize(tt.in)
			assert.Equal(t, tt.want, out)
			assert.Equal(t, out, s.Sanitize(out))
		})
	}
}

func TestIsASCII(t *testing.T) {
	assert.True(t, IsASCII("Song.mp3"))
	assert.False(t, IsASCII("Café.mp3"))
}
