package pipeline

import (
	"sort"

	"sheetclean/internal"
)

// CountValues tallies present values, most frequent first, and returns the
// number of missing ones separately.
func CountValues(values []*string) ([]internal.ValueCount, int) {
	counts := map[string]int{}
	missing := 0
	for _, v := range values {
		if v == nil {
			missing++
			continue
		}
		counts[*v]++
	}

	out := make([]internal.ValueCount, 0, len(counts))
	for value, count := range counts {
		out = append(out, internal.ValueCount{Value: value, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out, missing
}

// BuildSurvey collects the protocol passes and the extensions of the input
// URLs, taken before any repair. Nothing here is written back to the table.
func BuildSurvey(n *ProtocolNormalizer, passes []internal.ProtocolPass, urls []*string, extension ExtensionFunc) internal.Survey {
	if extension == nil {
		extension = ExtractDomainExtension
	}
	extensions := make([]*string, len(urls))
	for i, u := range urls {
		extensions[i] = extension(u)
	}
	counts, missing := CountValues(extensions)

	return internal.Survey{
		Passes:            passes,
		Extensions:        counts,
		MissingExtensions: missing,
		Unrepaired:        n.Unrepaired(passes),
	}
}
