package media

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatMP3, false},
		{"mp3", FormatMP3, false},
		{"mp4", FormatMP4, false},
		{" mp4 ", FormatMP4, false},
		{"MP3", "", true},
		{"wav", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat_ContentType(t *testing.T) {
	assert.Equal(t, "audio/mpeg", FormatMP3.ContentType())
	assert.Equal(t, "video/mp4", FormatMP4.ContentType())
}

func TestInfo_Metadata(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want Metadata
	}{
		{
			name: "all fields",
			doc:  `{"title":"Song","uploader":"Band","channel":"BandVEVO","thumbnail":"https://i/x.jpg","duration":212}`,
			want: Metadata{Title: "Song", Artist: "Band", Thumbnail: strPtr("https://i/x.jpg"), Duration: 212},
		},
		{
			name: "missing title",
			doc:  `{"uploader":"Band"}`,
			want: Metadata{Title: UnknownTitle, Artist: "Band"},
		},
		{
			name: "channel when uploader missing",
			doc:  `{"title":"Song","channel":"BandVEVO"}`,
			want: Metadata{Title: "Song", Artist: "BandVEVO"},
		},
		{
			name: "empty uploader falls through",
			doc:  `{"title":"Song","uploader":"","channel":"BandVEVO"}`,
			want: Metadata{Title: "Song", Artist: "BandVEVO"},
		},
		{
			name: "nothing",
			doc:  `{}`,
			want: Metadata{Title: UnknownTitle, Artist: UnknownArtist},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var info Info
			require.NoError(t, json.Unmarshal([]byte(tt.doc), &info))
			assert.Equal(t, tt.want, info.Metadata())
		})
	}
}

func TestMetadata_NullThumbnail(t *testing.T) {
	b, err := json.Marshal(Metadata{Title: "a", Artist: "b"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"a","artist":"b","thumbnail":null}`, string(b))
}

func strPtr(s string) *string { return &s }
