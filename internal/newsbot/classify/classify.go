// Package classify assigns category, department and type to news items from
// their text. Every function here is pure and deterministic.
package classify

import (
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/news"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/sources"
)

// RegionalDepartment is the single department the regional tier covers.
const RegionalDepartment = "puno"

// Result is the output of Classify. Department is empty when no region applies.
type Result struct {
	Category   string
	Department string
}

type region struct {
	code    string
	aliases []string
}

// regions is ordered; the first region with any alias hit wins.
var regions = []region{
	{"amazonas", []string{"amazonas"}},
	{"ancash", []string{"ancash", "áncash"}},
	{"apurimac", []string{"apurimac", "apurímac"}},
	{"arequipa", []string{"arequipa"}},
	{"ayacucho", []string{"ayacucho"}},
	{"cajamarca", []string{"cajamarca"}},
	{"callao", []string{"callao"}},
	{"cusco", []string{"cusco", "cuzco"}},
	{"huancavelica", []string{"huancavelica"}},
	{"huanuco", []string{"huanuco", "huánuco"}},
	{"ica", []string{"ica"}},
	{"junin", []string{"junin", "junín"}},
	{"la-libertad", []string{"la-libertad", "la libertad"}},
	{"lambayeque", []string{"lambayeque"}},
	{"lima", []string{"lima"}},
	{"loreto", []string{"loreto"}},
	{"madre-de-dios", []string{"madre-de-dios", "madre de dios"}},
	{"moquegua", []string{"moquegua"}},
	{"pasco", []string{"pasco"}},
	{"piura", []string{"piura"}},
	{"puno", []string{"puno"}},
	{"san-martin", []string{"san-martin", "san martín", "san martin"}},
	{"tacna", []string{"tacna"}},
	{"tumbes", []string{"tumbes"}},
	{"ucayali", []string{"ucayali"}},
}

// DefaultType is returned by Tag when no bucket matches.
const DefaultType = "informativo"

type bucket struct {
	name     string
	keywords []string
}

// buckets is ordered; the first bucket with any keyword hit wins.
var buckets = []bucket{
	{"deporte", []string{
		"deporte", "deportes", "deportivo", "futbol", "fútbol", "gol", "goles", "selección peruana",
		"liga 1", "copa", "mundial", "alianza lima", "sporting cristal", "tenis", "voley", "vóley",
		"atletismo", "olimpiadas", "entrenador", "campeonato", "hinchas",
	}},
	{"comedia", []string{
		"comedia", "humor", "comediante", "cómico", "chiste", "chistes", "parodia", "risas", "stand up", "meme", "memes",
	}},
	{"economia", []string{
		"economía", "económico", "económica", "dólar", "inflación", "bcrp", "mef", "sunat", "pbi", "bolsa", "precios",
		"exportaciones", "inversión", "empleo", "impuestos", "tipo de cambio", "mercado",
	}},
	{"politica", []string{
		"política", "político", "congreso", "congresista", "presidente", "presidenta", "gobierno", "ministro",
		"ministra", "elecciones", "jne", "onpe", "premier", "vacancia", "alcalde", "gobernador", "partido político",
	}},
	{"policial", []string{
		"policía", "policial", "pnp", "crimen", "asesinato", "robo", "delincuente", "delincuentes", "detenido",
		"detenidos", "homicidio", "extorsión", "sicario", "fiscalía", "captura", "balacera", "feminicidio",
	}},
	{"salud", []string{
		"salud", "minsa", "hospital", "essalud", "dengue", "vacuna", "vacunación", "covid", "médico", "médicos",
		"enfermedad", "epidemia", "anemia", "pacientes",
	}},
	{"educacion", []string{
		"educación", "minedu", "colegio", "colegios", "escolar", "escolares", "universidad", "sunedu", "docentes",
		"maestros", "estudiantes", "clases", "matrícula",
	}},
}

// Categories lists the category vocabulary.
func Categories() []string {
	return sources.Categories()
}

// Departments lists the department codes in table order.
func Departments() []string {
	out := make([]string, len(regions))
	for i, r := range regions {
		out[i] = r.code
	}
	return out
}

// Types lists the type buckets in match order followed by DefaultType.
func Types() []string {
	out := make([]string, 0, len(buckets)+1)
	for _, b := range buckets {
		out = append(out, b.name)
	}
	return append(out, DefaultType)
}

// IsDepartment reports whether code is a known department code.
func IsDepartment(code string) bool {
	for _, r := range regions {
		if r.code == code {
			return true
		}
	}
	return false
}

var (
	regionTable = newTable(len(regions), func(i int) []string { return regions[i].aliases })
	bucketTable = newTable(len(buckets), func(i int) []string { return buckets[i].keywords })
)

// Classify resolves category and department. A regional hint always yields
// the regional department; otherwise a region named in the text makes the
// item national; otherwise the hint decides between national and
// international.
func Classify(title, summary, hint string) Result {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == sources.CategoryRegional {
		return Result{Category: sources.CategoryRegional, Department: RegionalDepartment}
	}
	if idx, ok := regionTable.first(title + " " + summary); ok {
		return Result{Category: sources.CategoryNacional, Department: regions[idx].code}
	}
	if hint == sources.CategoryNacional {
		return Result{Category: sources.CategoryNacional}
	}
	return Result{Category: sources.CategoryInternacional}
}

// Tag returns the first type bucket with a keyword in the combined text, or
// DefaultType.
func Tag(title, summary, section, source string) string {
	if idx, ok := bucketTable.first(strings.Join([]string{title, summary, section, source}, " ")); ok {
		return buckets[idx].name
	}
	return DefaultType
}

// table is a whole-word multi-pattern matcher mapping each keyword back to
// the index of the group (region or bucket) that owns it.
type table struct {
	matcher *ahocorasick.Matcher
	owner   []int
}

func newTable(n int, keywords func(int) []string) *table {
	var dict []string
	var owner []int
	seen := make(map[string]bool)
	for i := range n {
		for _, kw := range keywords(i) {
			k := news.Fold(kw)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			// Padding with spaces turns substring search into whole-word search.
			dict = append(dict, " "+k+" ")
			owner = append(owner, i)
		}
	}
	return &table{matcher: ahocorasick.NewStringMatcher(dict), owner: owner}
}

// first returns the lowest group index with a hit.
func (t *table) first(text string) (int, bool) {
	folded := news.Fold(text)
	if folded == "" {
		return 0, false
	}
	hits := t.matcher.MatchThreadSafe([]byte(" " + folded + " "))
	best := -1
	for _, h := range hits {
		if g := t.owner[h]; best < 0 || g < best {
			best = g
		}
	}
	return best, best >= 0
}
