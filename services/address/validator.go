package address

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
)

const maxSuggestions = 3

var postalCodePattern = regexp.MustCompile(`^[1-9][0-9]{3}$`)

type Suggestion struct {
	PostalCode string `json:"postalCode"`
	City       string `json:"city"`
	Region     string `json:"region"`
}

type Result struct {
	Valid       bool         `json:"valid"`
	Region      string       `json:"region,omitempty"`
	Message     string       `json:"message"`
	Zone        *Zone        `json:"zone,omitempty"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

type Validator struct {
	zones []Zone
}

func NewValidator() *Validator {
	return &Validator{zones: Zones}
}

// Validate checks a postal code and city pair against the zone table.
// Malformed input is rejected before the table is consulted.
func (v *Validator) Validate(postalCode, city string) Result {
	postalCode = strings.TrimSpace(postalCode)
	city = strings.TrimSpace(city)

	if postalCode == "" || city == "" {
		return Result{Message: "postal code and city are required"}
	}
	if !postalCodePattern.MatchString(postalCode) {
		return Result{Message: "postal code must be 4 digits"}
	}

	code, _ := strconv.Atoi(postalCode)
	zone, found := zoneForPostalCode(v.zones, code)
	if found && cityMatches(zone, city) {
		return Result{
			Valid:   true,
			Region:  zone.Region,
			Message: fmt.Sprintf("We deliver to %s %s", postalCode, zone.City),
			Zone:    &zone,
		}
	}

	message := fmt.Sprintf("We do not deliver to %s %s yet", postalCode, city)
	if found {
		message = fmt.Sprintf("Postal code %s belongs to %s", postalCode, zone.City)
	}

	return Result{
		Message:     message,
		Suggestions: v.suggest(city, zone, found),
	}
}

func normalize(s string) string {
	return slug.Make(s)
}

func cityMatches(z Zone, city string) bool {
	want := normalize(city)
	if normalize(z.City) == want {
		return true
	}
	for _, alias := range z.Aliases {
		if normalize(alias) == want {
			return true
		}
	}
	return false
}

// suggest ranks zones by city name similarity. The zone owning the postal
// code, when there is one, always comes first.
func (v *Validator) suggest(city string, owner Zone, hasOwner bool) []Suggestion {
	type scored struct {
		zone  Zone
		score float64
	}

	target := normalize(city)
	ranked := make([]scored, 0, len(v.zones))
	for _, z := range v.zones {
		if hasOwner && z.Code == owner.Code {
			continue
		}

		best := similarity(target, normalize(z.City))
		for _, alias := range z.Aliases {
			if s := similarity(target, normalize(alias)); s > best {
				best = s
			}
		}
		ranked = append(ranked, scored{zone: z, score: best})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]Suggestion, 0, maxSuggestions)
	if hasOwner {
		out = append(out, toSuggestion(owner))
	}
	for _, r := range ranked {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, toSuggestion(r.zone))
	}

	return out
}

func toSuggestion(z Zone) Suggestion {
	return Suggestion{
		PostalCode: strconv.Itoa(z.PostalFrom),
		City:       z.City,
		Region:     z.Region,
	}
}

// similarity is 1 - levenshtein(a, b) / max(len(a), len(b)).
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
