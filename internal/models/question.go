package models

// Hints lets a caller pin entities the text alone may not reveal.
type Hints struct {
	Companies []string `json:"companies,omitempty"`
	Years     []int    `json:"years,omitempty"`
	Metrics   []string `json:"metrics,omitempty"`
}

func (h *Hints) Empty() bool {
	return h == nil || (len(h.Companies) == 0 && len(h.Years) == 0 && len(h.Metrics) == 0)
}

type Question struct {
	Text  string `json:"question"`
	Hints *Hints `json:"hints,omitempty"`
}

// ExtractedEntities keeps every category in order of first mention.
type ExtractedEntities struct {
	Companies []string `json:"companies"`
	Years     []int    `json:"years"`
	Metrics   []string `json:"metrics"`
}

func (e ExtractedEntities) Empty() bool {
	return len(e.Companies) == 0 && len(e.Years) == 0 && len(e.Metrics) == 0
}

func (e ExtractedEntities) HasCompany(ticker string) bool {
	for _, c := range e.Companies {
		if c == ticker {
			return true
		}
	}
	return false
}

func (e ExtractedEntities) HasYear(year int) bool {
	for _, y := range e.Years {
		if y == year {
			return true
		}
	}
	return false
}

// Merge appends entities from other that are not already present.
func (e ExtractedEntities) Merge(other ExtractedEntities) ExtractedEntities {
	out := ExtractedEntities{
		Companies: append([]string{}, e.Companies...),
		Years:     append([]int{}, e.Years...),
		Metrics:   append([]string{}, e.Metrics...),
	}
	for _, c := range other.Companies {
		if !out.HasCompany(c) {
			out.Companies = append(out.Companies, c)
		}
	}
	for _, y := range other.Years {
		if !out.HasYear(y) {
			out.Years = append(out.Years, y)
		}
	}
	seen := make(map[string]bool, len(out.Metrics))
	for _, m := range out.Metrics {
		seen[m] = true
	}
	for _, m := range other.Metrics {
		if !seen[m] {
			out.Metrics = append(out.Metrics, m)
			seen[m] = true
		}
	}
	return out
}
