package ugg

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page structure selectors. The fallback row selector is looser and
// catches layout changes that drop the padding class.
const (
	primaryRowSelector     = `a.flex.items-center[class*="p-[12px]"]`
	fallbackRowSelector    = `a:has(div.text-white.font-bold.truncate)`
	nameSelector           = `div.text-white.font-bold.truncate`
	counterWinRateSelector = `div.text-accent-orange-500`
	accentSelector         = `div[class*="text-accent-"]`
	gamesSelector          = `div.text-accent-gray-100[class*="text-[11px]"]`
)

var tierPattern = regexp.MustCompile(`^[1-5]$`)

func rows(doc *goquery.Document) *goquery.Selection {
	sel := doc.Find(primaryRowSelector)
	if sel.Length() == 0 {
		sel = doc.Find(fallbackRowSelector)
	}
	return sel
}

func rowName(row *goquery.Selection) string {
	return strings.TrimSpace(row.Find(nameSelector).First().Text())
}

// leafDivs returns the divs in row that have no element children.
func leafDivs(row *goquery.Selection) *goquery.Selection {
	return row.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Children().Length() == 0
	})
}

// winRateText prefers the dedicated selector and falls back to any
// accent-coloured cell labelled "WR".
func winRateText(row *goquery.Selection, preferred string) string {
	if preferred != "" {
		if s := row.Find(preferred).First(); s.Length() > 0 {
			return strings.TrimSpace(s.Text())
		}
	}
	var text string
	row.Find(accentSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := strings.TrimSpace(s.Text())
		if strings.Contains(t, "WR") {
			text = t
			return false
		}
		return true
	})
	return text
}

func gamesText(row *goquery.Selection) string {
	if s := row.Find(gamesSelector).First(); s.Length() > 0 {
		return strings.TrimSpace(s.Text())
	}
	var text string
	leafDivs(row).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := strings.TrimSpace(s.Text())
		if strings.Contains(strings.ToLower(t), "games") {
			text = t
			return false
		}
		return true
	})
	return text
}

// tierValue returns the first 1-5 cell in row, or 0 if there is none.
func tierValue(row *goquery.Selection) int {
	tier := 0
	leafDivs(row).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := strings.TrimSpace(s.Text())
		if tierPattern.MatchString(t) {
			tier = int(t[0] - '0')
			return false
		}
		return true
	})
	return tier
}

// parsePercent reads "52.3% WR" style cells. ok is false for anything
// unparsable or outside [0,100].
func parsePercent(s string) (float64, bool) {
	s = strings.NewReplacer("WR", "", "%", "", ",", "").Replace(s)
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}

// parseCount reads "1,234 games" style cells.
func parseCount(s string) (int, bool) {
	s = strings.ToLower(s)
	s = strings.NewReplacer("games", "", "game", "", ",", "").Replace(s)
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func parseCounters(doc *goquery.Document) []CounterData {
	out := make([]CounterData, 0)
	seen := make(map[string]bool)

	rows(doc).Each(func(_ int, row *goquery.Selection) {
		name := rowName(row)
		if name == "" || seen[name] {
			return
		}
		wr, ok := parsePercent(winRateText(row, counterWinRateSelector))
		if !ok {
			return
		}
		games, ok := parseCount(gamesText(row))
		if !ok {
			return
		}
		seen[name] = true
		out = append(out, CounterData{ChampionName: name, WinRate: wr, Games: games})
	})
	return out
}

func parseSynergy(doc *goquery.Document) map[string]float64 {
	out := make(map[string]float64)
	rows(doc).Each(func(_ int, row *goquery.Selection) {
		name := rowName(row)
		if name == "" {
			return
		}
		if _, dup := out[name]; dup {
			return
		}
		wr, ok := parsePercent(winRateText(row, ""))
		if !ok {
			return
		}
		out[name] = wr
	})
	return out
}

func parseTierList(doc *goquery.Document) map[string]int {
	out := make(map[string]int)
	rows(doc).Each(func(_ int, row *goquery.Selection) {
		name := rowName(row)
		if name == "" {
			return
		}
		if tier := tierValue(row); tier != 0 {
			if _, dup := out[name]; !dup {
				out[name] = tier
			}
		}
	})
	return out
}

func parseChampionStats(doc *goquery.Document) map[string]ChampionStats {
	out := make(map[string]ChampionStats)
	rows(doc).Each(func(_ int, row *goquery.Selection) {
		name := rowName(row)
		if name == "" {
			return
		}
		if _, dup := out[name]; dup {
			return
		}
		wr, ok := parsePercent(winRateText(row, ""))
		if !ok {
			return
		}
		out[name] = ChampionStats{WinRate: wr, Tier: tierValue(row)}
	})
	return out
}

// Slug is the lower-case alphanumeric form of a champion or role name
// used in URLs and cache keys ("Kai'Sa" -> "kaisa").
func Slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// roleSlug maps match-data positions onto the site's role names.
func roleSlug(role string) string {
	switch Slug(role) {
	case "middle", "mid":
		return "mid"
	case "bottom", "bot", "adc":
		return "adc"
	case "utility", "support", "sup":
		return "support"
	case "jungle", "jg":
		return "jungle"
	case "top":
		return "top"
	default:
		return Slug(role)
	}
}
