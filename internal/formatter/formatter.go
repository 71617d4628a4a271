// Package formatter assembles the Telegram HTML alert text for a Pick,
// caching the static, pick-invariant block the same way this codebase caches
// any other expensive-to-rebuild-but-rarely-changing value.
package formatter

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/fortuna-bet/retador/pkg/contracts"
	"github.com/fortuna-bet/retador/pkg/models"
)

var madrid *time.Location

func init() {
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		loc = time.UTC
	}
	madrid = loc
}

var spanishWeekdays = [...]string{
	"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado",
}

var sportEmoji = map[string]string{
	"soccer":        "⚽",
	"basketball":    "🏀",
	"tennis":        "🎾",
	"esports_lol":   "🎮",
	"esports_csgo":  "🎮",
	"esports_dota2": "🎮",
}

// marketSubstitutions is ordered most-specific-first: win1retx must replace
// before win1 gets a chance to match its prefix, same for winonly1/win1.
var marketSubstitutions = []rewriteRule{
	{"win1retx", "dnb1"},
	{"win2retx", "dnb2"},
	{"winonly1", "win1"},
	{"winonly2", "win2"},
	{"win1", "win1"},
	{"win2", "win2"},
	{"_1x", "1x"},
	{"_x2", "x2"},
	{"_12", "12"},
}

var stopWords = map[string]bool{
	"point":       true,
	"points":      true,
	"overall":     true,
	"regular":     true,
	"overtime":    true,
	"regulartime": true,
	"goal":        true,
	"goals":       true,
	"set":         true,
	"time":        true,
	"game":        true,
	"games":       true,
	"total":       true,
	"match":       true,
	"matches":     true,
}

// Formatter builds Telegram alert HTML, caching the static per-event block.
type Formatter struct {
	cache contracts.LocalCache
	ttl   time.Duration
}

// New builds a Formatter backed by the given cache, using ttl for the
// static-block cache entries (~60 s per the reference contract).
func New(cache contracts.LocalCache, ttl time.Duration) *Formatter {
	return &Formatter{cache: cache, ttl: ttl}
}

// Render produces the full HTML message for a calculated pick.
func (f *Formatter) Render(p models.Pick) string {
	dynamic := f.renderDynamic(p)
	static := f.staticBlock(p)
	return dynamic + "\n" + static
}

func (f *Formatter) renderDynamic(p models.Pick) string {
	market := cleanMarketTerm(p.SoftLeg.Market + p.SoftLeg.Variety)
	return fmt.Sprintf(
		"%s <b>%s</b>\nCuota: <b>%.2f</b> | Min: <b>%.2f</b>",
		p.Tier, html.EscapeString(strings.ToUpper(market)), p.SoftLeg.Odds, p.MinOdds,
	)
}

func (f *Formatter) staticBlock(p models.Pick) string {
	leg := p.SoftLeg
	key := fmt.Sprintf("static:%s:%s:%d:%s", leg.Teams[0], leg.Teams[1], leg.EventTimeMs, leg.Bookmaker)

	if cached, ok := f.cache.Get(key); ok {
		if s, ok := cached.(string); ok {
			return s
		}
	}

	emoji := sportEmoji[leg.Sport]
	if emoji == "" {
		emoji = "🏆"
	}

	eventTime := time.UnixMilli(leg.EventTimeMs).In(madrid)
	dateLine := formatSpanishDate(eventTime)

	block := fmt.Sprintf(
		"%s <b>%s vs %s</b>\n🏆 %s\n📅 %s\n🔗 %s",
		emoji,
		html.EscapeString(leg.Teams[0]),
		html.EscapeString(leg.Teams[1]),
		html.EscapeString(leg.Tournament),
		dateLine,
		html.EscapeString(rewriteDeepLink(leg.DeepLink)),
	)

	f.cache.Set(key, block, f.ttl)
	return block
}

func formatSpanishDate(t time.Time) string {
	weekday := spanishWeekdays[int(t.Weekday())]
	return fmt.Sprintf("%s (%s %02d:%02d)", t.Format("02/01/2006"), weekday, t.Hour(), t.Minute())
}

// cleanMarketTerm removes stop-words from the term, then applies the
// substitution table, in that order — matching the reference clean_text:
// lowercase, strip stop-words, then substring-replace every known term.
func cleanMarketTerm(market string) string {
	lower := strings.ToLower(market)

	fields := strings.Fields(lower)
	out := make([]string, 0, len(fields))
	for _, w := range fields {
		if stopWords[w] {
			continue
		}
		out = append(out, w)
	}
	cleaned := strings.Join(out, " ")

	for _, rule := range marketSubstitutions {
		cleaned = strings.ReplaceAll(cleaned, rule.from, rule.to)
	}

	return strings.Join(strings.Fields(cleaned), " ")
}

type rewriteRule struct {
	from string
	to   string
}

var domainRewrites = []rewriteRule{
	{"sportswidget.versus.es/sports", "www.versus.es/apuestas/sports"},
	{"sports.betway.com/en/sports", "sports.betway.es/es/sports"},
	{"sports.bwin.com/en/", "sports.bwin.es/es/"},
	{"versus.es/sports", "www.versus.es/apuestas/sports"},
	{"pokerstars.uk/", "pokerstars.es/"},
}

// rewriteDeepLink applies the bit-exact domain rewrite table for deep links.
func rewriteDeepLink(link string) string {
	if strings.Contains(link, "bet365.com") {
		return rewriteBet365(link)
	}
	for _, rule := range domainRewrites {
		if strings.Contains(link, rule.from) {
			return strings.Replace(link, rule.from, rule.to, 1)
		}
	}
	return link
}

func rewriteBet365(link string) string {
	const marker = "bet365.com"
	idx := strings.Index(link, marker)
	if idx < 0 {
		return link
	}
	rewritten := link[:idx] + "bet365.es" + link[idx+len(marker):]

	const host = "bet365.es"
	hostIdx := strings.Index(rewritten, host)
	pathStart := hostIdx + len(host)
	if pathStart >= len(rewritten) {
		return rewritten
	}
	return rewritten[:pathStart] + strings.ToUpper(rewritten[pathStart:])
}
