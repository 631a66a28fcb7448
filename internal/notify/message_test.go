package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sittingbulll/tokenwatch/internal/domain/model"
	"github.com/sittingbulll/tokenwatch/internal/notables"
)

func TestFormatCompact(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1K"},
		{1500, "1.5K"},
		{659700, "659.7K"},
		{1_000_000, "1M"},
		{1_500_000, "1.5M"},
		{2_000_000, "2M"},
		{12_345_678, "12.3M"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCompact(tt.in), "input %d", tt.in)
	}
}

func TestBuildMessage(t *testing.T) {
	meta := &model.TokenMetadata{
		Address:       "MintX11111111111111111111111111111111111111",
		Name:          "Foo Token",
		Symbol:        "FOO",
		TwitterHandle: "fooCreator",
	}
	res := notables.Result{
		Total: 12,
		Top: []notables.Follower{
			{Username: "whale1", FollowersCount: 1_500_000},
			{Username: "whale2", FollowersCount: 659_700},
		},
	}

	msg := BuildMessage(meta, res, "Believe")

	assert.Contains(t, msg, "<b>New Believe Token Detected!</b>")
	assert.Contains(t, msg, "<b>Name</b>: Foo Token")
	assert.Contains(t, msg, `<a href="https://solscan.io/token/MintX11111111111111111111111111111111111111">$FOO</a>`)
	assert.Contains(t, msg, "<b>CA</b>: MintX11111111111111111111111111111111111111")
	assert.Contains(t, msg, `<b>Creator</b>: <a href="https://twitter.com/fooCreator">@fooCreator</a>`)
	assert.Contains(t, msg, "<b>Notable Followers</b>: 12")
	assert.Contains(t, msg, `– 1. <a href="https://twitter.com/whale1">@whale1</a> (1.5M followers)`)
	assert.Contains(t, msg, `– 2. <a href="https://twitter.com/whale2">@whale2</a> (659.7K followers)`)
	assert.Contains(t, msg, "💰 <b>Trade on:</b>")
	assert.Contains(t, msg, "https://axiom.trade/t/MintX11111111111111111111111111111111111111/@notable")
	assert.Contains(t, msg, "https://photon-sol.tinyastro.io/en/r/@notable/MintX11111111111111111111111111111111111111")
	assert.Contains(t, msg, "https://t.me/maestro?start=MintX11111111111111111111111111111111111111-sittingbulll")
}

func TestBuildMessage_NoWalletLabelNoCreator(t *testing.T) {
	meta := &model.TokenMetadata{Address: "CA1", Name: "Bare", Symbol: "BR"}

	msg := BuildMessage(meta, notables.Result{}, "")

	assert.Contains(t, msg, "<b>New Token Detected!</b>")
	assert.Contains(t, msg, "<b>Creator</b>: Not available")
	assert.Contains(t, msg, "<b>Notable Followers</b>: 0")
}
