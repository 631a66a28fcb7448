package metadata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHandle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", "fooCreator", "fooCreator"},
		{"at prefixed", "@fooCreator", "fooCreator"},
		{"twitter url", "https://twitter.com/fooCreator", "fooCreator"},
		{"x url", "https://x.com/fooCreator", "fooCreator"},
		{"url with query", "https://x.com/fooCreator?s=21", "fooCreator"},
		{"whitespace", "  @fooCreator  ", "fooCreator"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeHandle(tt.in))
		})
	}
}

func TestDocumentTwitterHandle(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			"nested creator username wins",
			`{"metadata":{"tweetCreatorUsername":"creator1"},"twitter":"https://x.com/other"}`,
			"creator1",
		},
		{
			"top level twitter url",
			`{"twitter":"https://twitter.com/creator2"}`,
			"creator2",
		},
		{
			"top level at handle",
			`{"twitter":"@creator3"}`,
			"creator3",
		},
		{
			"top level bare handle",
			`{"twitter":"creator4"}`,
			"creator4",
		},
		{
			"twitter object shape ignored",
			`{"twitter":{"url":"https://x.com/nested"},"properties":{"twitter_username":"creator5"}}`,
			"creator5",
		},
		{
			"properties twitter",
			`{"properties":{"twitter":"@creator6"}}`,
			"creator6",
		},
		{
			"flat twitter_username",
			`{"twitter_username":"creator7"}`,
			"creator7",
		},
		{
			"external url",
			`{"external_url":"https://x.com/creator8"}`,
			"creator8",
		},
		{
			"nothing",
			`{"name":"T","symbol":"TT"}`,
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d document
			require.NoError(t, json.Unmarshal([]byte(tt.doc), &d))
			assert.Equal(t, tt.want, d.twitterHandle())
		})
	}
}
