package notify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sittingbulll/tokenwatch/internal/domain/model"
	"github.com/sittingbulll/tokenwatch/internal/notables"
)

// tradeBots are the trading deep links appended to every alert.
var tradeBots = []struct {
	name string
	url  string
}{
	{"AXIOM", "https://axiom.trade/t/%s/@notable"},
	{"MAESTRO", "https://t.me/maestro?start=%s-sittingbulll"},
	{"TROJAN", "https://t.me/nestor_trojanbot?start=r-sittingbulll-%s"},
	{"BONK", "https://t.me/bonkbot_bot?start=ref_g8ra9_ca_%s"},
	{"PHOTON", "https://photon-sol.tinyastro.io/en/r/@notable/%s"},
}

// FormatCompact renders a follower count the way the channel displays it:
// 1500000 -> "1.5M", 659700 -> "659.7K", 2000000 -> "2M".
func FormatCompact(n int64) string {
	format := func(v float64, suffix string) string {
		s := fmt.Sprintf("%.1f", v)
		s = strings.TrimSuffix(s, ".0")
		return s + suffix
	}
	switch {
	case n >= 1_000_000:
		return format(float64(n)/1_000_000, "M")
	case n >= 1_000:
		return format(float64(n)/1_000, "K")
	default:
		return strconv.FormatInt(n, 10)
	}
}

// BuildMessage renders the HTML alert for an approved token.
func BuildMessage(meta *model.TokenMetadata, res notables.Result, walletLabel string) string {
	title := "New Token Detected!"
	if walletLabel != "" {
		title = fmt.Sprintf("New %s Token Detected!", walletLabel)
	}

	creator := "Not available"
	if meta.TwitterHandle != "" {
		creator = fmt.Sprintf(`<a href="https://twitter.com/%s">@%s</a>`, meta.TwitterHandle, meta.TwitterHandle)
	}
	tokenLink := fmt.Sprintf(`<a href="https://solscan.io/token/%s">$%s</a>`, meta.Address, meta.Symbol)

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n\n", title)
	fmt.Fprintf(&b, "<b>Name</b>: %s (%s)\n", meta.Name, tokenLink)
	fmt.Fprintf(&b, "<b>CA</b>: %s\n\n", meta.Address)
	fmt.Fprintf(&b, "<b>Creator</b>: %s\n", creator)
	fmt.Fprintf(&b, "<b>Notable Followers</b>: %d\n", res.Total)
	b.WriteString("<b>Top 5 Notables</b>:\n")
	for i, f := range res.Top {
		link := fmt.Sprintf(`<a href="https://twitter.com/%s">@%s</a>`, f.Username, f.Username)
		fmt.Fprintf(&b, "– %d. %s (%s followers)\n", i+1, link, FormatCompact(f.FollowersCount))
	}

	links := make([]string, 0, len(tradeBots))
	for _, bot := range tradeBots {
		links = append(links, fmt.Sprintf("<a href='%s'>%s</a>", fmt.Sprintf(bot.url, meta.Address), bot.name))
	}
	fmt.Fprintf(&b, "\n💰 <b>Trade on:</b>\n%s\n", strings.Join(links, " | "))
	return b.String()
}
