package market

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"weather-engine/pkg/types"
)

// Temperature component of a bucket suffix. Negative temperatures appear
// either as "neg2" or "-2" in slugs.
const tempPat = `(?:neg)?-?\d+`

// Bucket suffix patterns, most specific first. A suffix like "44forhigher"
// would otherwise match the exact pattern with a mangled temperature.
var bucketPatterns = []struct {
	re  *regexp.Regexp
	typ types.BucketType
}{
	{regexp.MustCompile(`^(` + tempPat + `)(f|c)orhigher$`), types.BucketOrHigher},
	{regexp.MustCompile(`^(` + tempPat + `)(f|c)orbelow$`), types.BucketOrBelow},
	{regexp.MustCompile(`^(` + tempPat + `)-(` + tempPat + `)(f|c)$`), types.BucketRange},
	{regexp.MustCompile(`^(` + tempPat + `)(f|c)$`), types.BucketExact},
}

func parseTemp(s string) int {
	if strings.HasPrefix(s, "neg") {
		n, _ := strconv.Atoi(strings.TrimLeft(s[3:], "-"))
		return -n
	}
	n, _ := strconv.Atoi(s)
	return n
}

func parseUnit(s string) types.TemperatureUnit {
	if s == "c" {
		return types.UnitCelsius
	}
	return types.UnitFahrenheit
}

// ParseBucketSuffix parses the trailing bucket component of a market slug,
// e.g. "42-43f", "22f", "44forhigher", "neg1-2c". Returns false when the
// suffix matches no known pattern.
func ParseBucketSuffix(suffix string) (types.TemperatureBucket, bool) {
	suffix = strings.ToLower(strings.TrimSpace(suffix))
	for _, p := range bucketPatterns {
		m := p.re.FindStringSubmatch(suffix)
		if m == nil {
			continue
		}
		switch p.typ {
		case types.BucketRange:
			return types.TemperatureBucket{
				Type: p.typ,
				Low:  parseTemp(m[1]),
				High: parseTemp(m[2]),
				Unit: parseUnit(m[3]),
			}, true
		default:
			temp := parseTemp(m[1])
			return types.TemperatureBucket{
				Type: p.typ,
				Low:  temp,
				High: temp,
				Unit: parseUnit(m[2]),
			}, true
		}
	}
	return types.TemperatureBucket{}, false
}

// BuildEventSlug builds the deterministic event slug for a city and date,
// e.g. "highest-temperature-in-nyc-on-february-11-2026".
func BuildEventSlug(citySlug string, date time.Time) string {
	return fmt.Sprintf(
		"highest-temperature-in-%s-on-%s-%d-%d",
		citySlug,
		strings.ToLower(date.Month().String()),
		date.Day(),
		date.Year(),
	)
}

var eventSlugRe = regexp.MustCompile(`^highest-temperature-in-(\w+)-on-([a-z]+)-(\d+)-(\d+)$`)

// ParseEventSlug extracts the city slug and target date from an event slug.
func ParseEventSlug(slug string) (citySlug string, date time.Time, ok bool) {
	m := eventSlugRe.FindStringSubmatch(strings.ToLower(slug))
	if m == nil {
		return "", time.Time{}, false
	}
	var month time.Month
	for mo := time.January; mo <= time.December; mo++ {
		if strings.ToLower(mo.String()) == m[2] {
			month = mo
			break
		}
	}
	if month == 0 {
		return "", time.Time{}, false
	}
	day, _ := strconv.Atoi(m[3])
	year, _ := strconv.Atoi(m[4])
	return m[1], time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
}
