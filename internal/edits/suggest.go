package edits

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// maxSuggestDistance 编辑距离超过该值时不给出建议
const maxSuggestDistance = 2

// suggest 在候选别名中找出与 alias 最接近的一个
func suggest(alias string, candidates []string) string {
	if alias == "" || len(candidates) == 0 {
		return ""
	}

	// 大小写或缺字符（如 s1、TL）优先用子序列匹配
	if ranks := fuzzy.RankFindFold(alias, candidates); len(ranks) > 0 {
		sort.Stable(ranks)
		return ranks[0].Target
	}

	best, bestDist := "", -1
	upper := strings.ToUpper(alias)
	for _, c := range candidates {
		d := fuzzy.LevenshteinDistance(upper, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist > maxSuggestDistance {
		return ""
	}
	return best
}

// withSuggestion 在消息后附加“did you mean”提示
func withSuggestion(msg, alias string, candidates []string) string {
	if s := suggest(alias, candidates); s != "" && s != alias {
		return fmt.Sprintf("%s (did you mean %s?)", msg, s)
	}
	return msg
}
