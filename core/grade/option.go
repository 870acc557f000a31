package grade

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/gradebook/core"
)

// optionNamespace scopes OptionID; changing it changes every option ID.
var optionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://masomo.app/gradebook/options"))

// Option is a selectable assignment or grade type on the grading sheet.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OptionID derives a stable identifier from a name: a version 5 UUID over its UTF-8 bytes.
// Equal names always give the same ID; distinct names collide with negligible probability (~2^-122).
func OptionID(name string) string {
	return uuid.NewSHA1(optionNamespace, []byte(name)).String()
}

// Options builds de-duplicated options sorted by name (case-insensitive). Blank names are skipped.
func Options(names ...string) []Option {
	seen := make(map[string]bool, len(names))
	opts := make([]Option, 0, len(names))
	for _, n := range names {
		n = core.CleanString(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		opts = append(opts, Option{ID: OptionID(n), Name: n})
	}
	sort.SliceStable(opts, func(i, j int) bool {
		li, lj := strings.ToLower(opts[i].Name), strings.ToLower(opts[j].Name)
		if li != lj {
			return li < lj
		}
		return opts[i].Name < opts[j].Name
	})
	return opts
}

// FindOption returns the option matching id.
func FindOption(opts []Option, id string) (Option, bool) {
	for _, o := range opts {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// TypeOptions lists the grade types as options, in declaration order.
func TypeOptions() []Option {
	opts := make([]Option, 0, len(Types))
	for _, t := range Types {
		opts = append(opts, Option{ID: OptionID(string(t)), Name: string(t)})
	}
	return opts
}
