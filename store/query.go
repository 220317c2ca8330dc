package store

import (
	"strconv"
	"strings"
)

const techniqueColumns = `id, name, version, category, summary, tier_required, full_spec, created_at`

// TechniqueFilters narrows the technique list. Empty fields are ignored.
type TechniqueFilters struct {
	Category string `form:"category" json:"category,omitempty"`
	Tier     string `form:"tier" json:"tier,omitempty"`
	Search   string `form:"search" json:"search,omitempty"`
	Limit    int    `form:"limit" json:"limit,omitempty"`
}

// IsZero reports whether no filter is set.
func (f TechniqueFilters) IsZero() bool {
	return f.Category == "" && f.Tier == "" && strings.TrimSpace(f.Search) == "" && f.Limit <= 0
}

// BuildTechniqueQuery composes the technique list query. Category and tier are
// equality predicates, the search term matches name OR summary case-insensitively,
// and all present predicates are ANDed.
func BuildTechniqueQuery(f TechniqueFilters) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	next := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Category != "" {
		where = append(where, "category = "+next(f.Category))
	}
	if f.Tier != "" {
		where = append(where, "tier_required = "+next(f.Tier))
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		p := next("%" + escapeLike(term) + "%")
		where = append(where, "(name ILIKE "+p+" OR summary ILIKE "+p+")")
	}

	var b strings.Builder
	b.WriteString("SELECT " + techniqueColumns + " FROM techniques")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC")
	if f.Limit > 0 {
		b.WriteString(" LIMIT " + next(f.Limit))
	}
	return b.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
