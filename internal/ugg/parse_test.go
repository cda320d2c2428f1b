package ugg

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const counterPage = `<html><body>
<a class="flex items-center p-[12px] border-b" href="/lol/champions/lux">
  <div class="text-white font-bold truncate">Lux</div>
  <div class="text-accent-orange-500">54.2% WR</div>
  <div class="text-accent-gray-100 text-[11px]">1,234 games</div>
</a>
<a class="flex items-center p-[12px] border-b" href="/lol/champions/zed">
  <div class="text-white font-bold truncate">Zed</div>
  <div class="text-accent-orange-500">112% WR</div>
  <div class="text-accent-gray-100 text-[11px]">300 games</div>
</a>
<a class="flex items-center p-[12px] border-b" href="/lol/champions/yasuo">
  <div class="text-white font-bold truncate">Yasuo</div>
  <div class="text-accent-orange-500">51.0% WR</div>
  <div class="text-accent-gray-100 text-[11px]">many games</div>
</a>
<a class="flex items-center p-[12px] border-b" href="/lol/champions/kaisa">
  <div class="text-white font-bold truncate">Kai'Sa</div>
  <div class="text-accent-orange-500">50.5%</div>
  <div class="text-accent-gray-100 text-[11px]">0 games</div>
</a>
</body></html>`

// No padding class on the rows, so only the fallback selector matches.
const fallbackPage = `<html><body>
<a class="flex" href="/lol/champions/ahri">
  <div class="text-white font-bold truncate">Ahri</div>
  <div class="text-accent-blue-500">48.1% WR</div>
  <div class="meta"><span>532 games</span></div>
  <div>532 games</div>
</a>
</body></html>`

const tierPage = `<html><body>
<a class="flex items-center p-[12px]" href="/lol/champions/ahri/build">
  <div class="rank">1</div>
  <div class="text-white font-bold truncate">Ahri</div>
  <div class="text-accent-blue-500">52.5% WR</div>
</a>
<a class="flex items-center p-[12px]" href="/lol/champions/lux/build">
  <div class="tier">4</div>
  <div class="text-white font-bold truncate">Lux</div>
  <div class="text-accent-blue-500">49.5% WR</div>
</a>
<a class="flex items-center p-[12px]" href="/lol/champions/zed/build">
  <div class="tier">S+</div>
  <div class="text-white font-bold truncate">Zed</div>
  <div class="text-accent-blue-500">NaN% WR</div>
</a>
</body></html>`

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestParseCounters_PrimarySelector(t *testing.T) {
	got := parseCounters(mustDoc(t, counterPage))

	want := []CounterData{
		{ChampionName: "Lux", WinRate: 54.2, Games: 1234},
		{ChampionName: "Kai'Sa", WinRate: 50.5, Games: 0},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d rows (%+v), want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseCounters_FallbackSelector(t *testing.T) {
	got := parseCounters(mustDoc(t, fallbackPage))
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1", len(got))
	}
	if got[0].ChampionName != "Ahri" || got[0].WinRate != 48.1 || got[0].Games != 532 {
		t.Errorf("unexpected row %+v", got[0])
	}
}

func TestParseCounters_EmptyPage(t *testing.T) {
	got := parseCounters(mustDoc(t, `<html><body><p>maintenance</p></body></html>`))
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestParseSynergy(t *testing.T) {
	got := parseSynergy(mustDoc(t, fallbackPage))
	if wr, ok := got["Ahri"]; !ok || wr != 48.1 {
		t.Errorf("Ahri = (%v, %v), want 48.1", wr, ok)
	}
}

func TestParseTierList(t *testing.T) {
	got := parseTierList(mustDoc(t, tierPage))

	if got["Ahri"] != 1 {
		t.Errorf("Ahri tier = %d, want 1", got["Ahri"])
	}
	if got["Lux"] != 4 {
		t.Errorf("Lux tier = %d, want 4", got["Lux"])
	}
	if _, ok := got["Zed"]; ok {
		t.Error("Zed has no valid tier and should be dropped")
	}
}

func TestParseChampionStats(t *testing.T) {
	got := parseChampionStats(mustDoc(t, tierPage))

	if s := got["Lux"]; s.WinRate != 49.5 || s.Tier != 4 {
		t.Errorf("Lux = %+v", s)
	}
	if _, ok := got["Zed"]; ok {
		t.Error("NaN win rate should be rejected")
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"52.3% WR", 52.3, true},
		{"100%", 100, true},
		{"0%", 0, true},
		{"-1%", 0, false},
		{"100.1%", 0, false},
		{"", 0, false},
		{"WR", 0, false},
		{"NaN", 0, false},
	}
	for _, tt := range tests {
		got, ok := parsePercent(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("parsePercent(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"1,234 games", 1234, true},
		{"1 game", 1, true},
		{"0 Games", 0, true},
		{"-5 games", 0, false},
		{"lots", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseCount(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseCount(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSlugAndRole(t *testing.T) {
	if got := Slug("Kai'Sa"); got != "kaisa" {
		t.Errorf("Slug(Kai'Sa) = %q", got)
	}
	if got := Slug("Lee Sin"); got != "leesin" {
		t.Errorf("Slug(Lee Sin) = %q", got)
	}
	roles := map[string]string{
		"MIDDLE":  "mid",
		"BOTTOM":  "adc",
		"UTILITY": "support",
		"JUNGLE":  "jungle",
		"TOP":     "top",
	}
	for in, want := range roles {
		if got := roleSlug(in); got != want {
			t.Errorf("roleSlug(%q) = %q, want %q", in, got, want)
		}
	}
}
