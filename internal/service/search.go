package service

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/jask-aran/uniapp/internal/core"
	"github.com/jask-aran/uniapp/internal/domain"
)

// Match pairs a student with its name similarity score.
type Match struct {
	Student    *domain.Student
	Similarity float64
}

// Search finds students by approximate name.
type Search struct {
	Store     *core.Store
	Threshold float64
	Limit     int
}

// ByName scores every live student against the query and returns the
// matches at or above the threshold, best first.
func (s *Search) ByName(query string) []Match {
	query = strings.ToUpper(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	var out []Match
	for _, snap := range s.Store.List() {
		st := snap.Entity.(*domain.Student)
		score := nameSimilarity(query, strings.ToUpper(st.Name))
		if score >= s.Threshold {
			out = append(out, Match{Student: st, Similarity: score})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Student.ID < out[j].Student.ID
	})
	if s.Limit > 0 && len(out) > s.Limit {
		out = out[:s.Limit]
	}
	return out
}

// nameSimilarity scores the query against the whole name and each of its
// words, keeping the best ratio. Both sides arrive upper-cased.
func nameSimilarity(query, name string) float64 {
	best := ratio(query, name)
	for _, word := range strings.Fields(name) {
		if r := ratio(query, word); r > best {
			best = r
		}
	}
	return best
}

func ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	maxlen := len(a)
	if len(b) > maxlen {
		maxlen = len(b)
	}
	if maxlen == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxlen)
}
