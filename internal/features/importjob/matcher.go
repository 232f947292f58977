package importjob

import (
	"math"
	"sort"
	"strings"
	"time"

	"go-cohort/internal/config"
	"go-cohort/internal/features/patient"
)

// Identity is the matching signature of one row or one stored patient:
// the mapped identity fields, parsed. Missing fields stay nil/empty.
type Identity struct {
	Reference   string
	FirstName   string
	LastName    string
	DateOfBirth *time.Time
	Age         *int
	Gender      patient.Gender
	Latitude    *float64
	Longitude   *float64
}

func (id Identity) FullName() string {
	return normalizeName(id.FirstName + " " + id.LastName)
}

func (id Identity) HasName() bool {
	return strings.TrimSpace(id.FirstName) != "" || strings.TrimSpace(id.LastName) != ""
}

// Empty means the row carries no identity signal at all.
func (id Identity) Empty() bool {
	return id.Reference == "" && !id.HasName() && id.DateOfBirth == nil &&
		id.Age == nil && id.Latitude == nil
}

func (id Identity) ageYears(now time.Time) (int, bool) {
	if id.Age != nil {
		return *id.Age, true
	}
	if id.DateOfBirth != nil {
		years := now.Year() - id.DateOfBirth.Year()
		if now.YearDay() < id.DateOfBirth.YearDay() {
			years--
		}
		return years, true
	}
	return 0, false
}

// normalizeName case-folds and collapses internal whitespace.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Confidence weights. The sum is 1.0 so a full match scores exactly 1.
const (
	weightName = 0.50
	weightDOB  = 0.35
	weightGeo  = 0.15

	// Partial DOB credit when only ages agree within a year.
	dobAgeSignal = 0.6
)

// scoreIdentities computes the weighted match confidence between two
// signatures. An exact reference match short-circuits to 1.0. The same
// function serves store matching and intra-file grouping so preview and
// execution classify identically.
func scoreIdentities(a, b Identity, cfg config.ImportConfig) (float64, []string) {
	if a.Reference != "" && b.Reference != "" &&
		strings.EqualFold(strings.TrimSpace(a.Reference), strings.TrimSpace(b.Reference)) {
		return 1.0, []string{FieldReference}
	}

	var matchedOn []string

	nameSignal := 0.0
	if a.HasName() && b.HasName() {
		aName, bName := a.FullName(), b.FullName()
		if aName == bName {
			nameSignal = 1.0
		} else if sim := levenshteinSimilarity(aName, bName); sim >= cfg.NameSimilarityThreshold {
			nameSignal = sim
		}
		if nameSignal > 0 {
			matchedOn = append(matchedOn, "name")
		}
	}

	dobSignal := 0.0
	if a.DateOfBirth != nil && b.DateOfBirth != nil {
		if sameDate(*a.DateOfBirth, *b.DateOfBirth) {
			dobSignal = 1.0
			matchedOn = append(matchedOn, FieldDateOfBirth)
		}
	}
	if dobSignal == 0 {
		now := time.Now()
		if aAge, ok := a.ageYears(now); ok {
			if bAge, ok := b.ageYears(now); ok {
				if abs(aAge-bAge) <= 1 {
					dobSignal = dobAgeSignal
					matchedOn = append(matchedOn, FieldAge)
				}
			}
		}
	}

	geoSignal := 0.0
	if a.Latitude != nil && a.Longitude != nil && b.Latitude != nil && b.Longitude != nil {
		dist := haversineMeters(*a.Latitude, *a.Longitude, *b.Latitude, *b.Longitude)
		if dist <= cfg.GeoRadiusMeters {
			geoSignal = 1.0
			matchedOn = append(matchedOn, "location")
		}
	}

	// Proximity never confirms identity on its own. When a name is
	// mapped but disagrees, the candidate is out; with no name mapped
	// the geo signal survives as a soft match only.
	if nameSignal == 0 {
		if a.HasName() || geoSignal == 0 {
			return 0, nil
		}
		return weightGeo * geoSignal, matchedOn
	}

	return weightName*nameSignal + weightDOB*dobSignal + weightGeo*geoSignal, matchedOn
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// levenshteinSimilarity is 1 - editDistance/maxLen over runes, in [0,1].
func levenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(ra, rb))/float64(maxLen)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

const earthRadiusMeters = 6371000.0

func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Matcher ranks a row's identity against the patient store. The whole
// store is indexed up front so per-row matching needs no queries.
type Matcher struct {
	cfg        config.ImportConfig
	patients   []patient.Patient
	identities []Identity
}

func NewMatcher(patients []patient.Patient, cfg config.ImportConfig) *Matcher {
	m := &Matcher{
		cfg:        cfg,
		patients:   patients,
		identities: make([]Identity, len(patients)),
	}
	for i, p := range patients {
		m.identities[i] = identityFromPatient(p)
	}
	return m
}

func identityFromPatient(p patient.Patient) Identity {
	return Identity{
		Reference:   p.Reference,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DateOfBirth: p.DateOfBirth,
		Gender:      p.Gender,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
	}
}

// Match returns all candidates with non-zero confidence, best first.
func (m *Matcher) Match(id Identity) []MatchCandidate {
	var candidates []MatchCandidate

	for i, stored := range m.identities {
		confidence, matchedOn := scoreIdentities(id, stored, m.cfg)
		if confidence <= 0 {
			continue
		}
		p := m.patients[i]
		candidates = append(candidates, MatchCandidate{
			PatientID:   p.ID,
			Reference:   p.Reference,
			DisplayName: strings.TrimSpace(p.FirstName + " " + p.LastName),
			Confidence:  confidence,
			MatchedOn:   matchedOn,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	return candidates
}

// Best picks at most one candidate. The bool reports ambiguity: either
// the top two scores tie, or the best score lands between the ambiguous
// floor and the confirm threshold. Ambiguous rows are created as new
// and flagged, never silently merged.
func (m *Matcher) Best(id Identity) (*MatchCandidate, bool) {
	candidates := m.Match(id)
	if len(candidates) == 0 {
		return nil, false
	}

	best := candidates[0]

	if best.Confidence >= m.cfg.ConfirmThreshold {
		if len(candidates) > 1 && candidates[1].Confidence >= best.Confidence-1e-9 {
			return &best, true
		}
		return &best, false
	}

	if best.Confidence >= m.cfg.AmbiguousThreshold {
		return &best, true
	}

	return nil, false
}
