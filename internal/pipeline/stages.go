package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/contentpulse/backend/internal/domain"
	"github.com/contentpulse/backend/internal/policy"
	"github.com/contentpulse/backend/internal/promptctx"
	"github.com/contentpulse/backend/internal/service"
)

func (o *Orchestrator) stageInitialKeywords(ctx context.Context, _ *domain.Report, state *runState) stageResult {
	groups, err := o.gen.SynthesizeKeywords(ctx, state.product)
	if err != nil {
		return stageResult{err: fmt.Errorf("synthesize keywords: %w", err)}
	}

	state.prospect = groups.Prospect
	state.seo = groups.SEO
	return stageResult{payload: map[string]any{
		"prospect": groups.Prospect,
		"seo":      groups.SEO,
	}}
}

func (o *Orchestrator) stageKeywordExpand(ctx context.Context, _ *domain.Report, state *runState) stageResult {
	if o.serp == nil || !o.serp.Available() {
		state.expanded = append([]string(nil), state.seo...)
		return stageResult{
			payload: map[string]any{"keywords": state.expanded},
			warn:    "expansion provider disabled, using unexpanded keywords",
		}
	}

	expanded, err := o.serp.ExpandKeywords(ctx, state.seo, 20, 5)
	if err != nil {
		return stageResult{err: fmt.Errorf("expand keywords: %w", err)}
	}

	selected, err := o.gen.SelectCandidates(ctx, state.product, "expanded keywords", expanded, o.config.KeywordLimit)
	if err != nil || len(selected) == 0 {
		if len(expanded) > o.config.KeywordLimit {
			expanded = expanded[:o.config.KeywordLimit]
		}
		state.expanded = expanded
		return stageResult{
			payload: map[string]any{"keywords": state.expanded},
			warn:    "keyword down-select unavailable, truncated raw expansion",
		}
	}

	state.expanded = selected
	return stageResult{payload: map[string]any{"keywords": selected}}
}

func (o *Orchestrator) stageTwitterTrends(ctx context.Context, _ *domain.Report, state *runState) stageResult {
	if o.social == nil || !o.social.Available() {
		return stageResult{
			payload: map[string]any{"trends": []string{}},
			warn:    "social provider disabled, no trends collected",
		}
	}

	raw, err := o.social.TrendingTopics(ctx, 20)
	if err != nil {
		return stageResult{err: fmt.Errorf("fetch trends: %w", err)}
	}
	if len(raw) == 0 {
		return stageResult{
			payload: map[string]any{"trends": []string{}},
			warn:    "no trends returned by provider",
		}
	}

	filtered, err := o.gen.SelectCandidates(ctx, state.product, "trending topics", raw, o.config.TrendLimit)
	warn := ""
	if err != nil || len(filtered) == 0 {
		filtered = sampleStrings(state.rng, raw, o.config.TrendLimit)
		warn = "trend filter yielded nothing, sampled raw trends"
	}

	state.trends = filtered
	return stageResult{payload: map[string]any{"trends": filtered}, warn: warn}
}

func (o *Orchestrator) stageSocialCorpus(ctx context.Context, _ *domain.Report, state *runState) stageResult {
	if o.social == nil || !o.social.Available() {
		return stageResult{
			payload: map[string]any{"queries": []any{}},
			warn:    "social provider disabled, no posts collected",
		}
	}

	type query struct {
		sourceType domain.SourceType
		text       string
	}
	queries := make([]query, 0, len(state.trends)+len(state.prospect)+len(state.expanded))
	for _, trend := range state.trends {
		queries = append(queries, query{domain.SourceTrendingTopic, trend})
	}
	for _, keyword := range state.prospect {
		queries = append(queries, query{domain.SourceKeywordG1, keyword})
	}
	for _, keyword := range keywordsOrFallback(state.expanded, state.seo) {
		queries = append(queries, query{domain.SourceKeywordG2, keyword})
	}

	summaries := make([]map[string]any, 0, len(queries))
	failures := 0
	var lastErr error
	for _, q := range queries {
		results, err := o.social.SearchPosts(ctx, q.text, o.config.PostsPerQuery)
		if err != nil {
			failures++
			lastErr = err
			continue
		}

		posts := append(append([]domain.PostSummary(nil), results.Top...), results.Latest...)
		posts = dedupePosts(posts)
		if len(posts) > 0 {
			state.groups = append(state.groups, postGroup{
				SourceType: q.sourceType,
				Origin:     q.text,
				Posts:      posts,
			})
		}

		sample := ""
		if len(posts) > 0 {
			sample = snippet(posts[0].Text, 140)
		}
		summaries = append(summaries, map[string]any{
			"query":        q.text,
			"source_type":  string(q.sourceType),
			"top_count":    len(results.Top),
			"latest_count": len(results.Latest),
			"sample":       sample,
		})
	}

	if len(state.groups) == 0 && failures > 0 {
		return stageResult{err: fmt.Errorf("search posts (%d queries failed): %w", failures, lastErr)}
	}

	payload := map[string]any{"queries": summaries}
	warn := ""
	if failures > 0 {
		warn = fmt.Sprintf("%d of %d post queries failed", failures, len(queries))
	}
	return stageResult{payload: payload, warn: warn}
}

func (o *Orchestrator) stageMediumTags(ctx context.Context, _ *domain.Report, state *runState) stageResult {
	if o.tags == nil || !o.tags.Available() {
		return stageResult{
			payload: map[string]any{"tags": []string{}},
			warn:    "publication provider disabled, no tags collected",
		}
	}

	raw, err := o.tags.ListTags(ctx, 25)
	if err != nil {
		return stageResult{err: fmt.Errorf("list tags: %w", err)}
	}
	if len(raw) == 0 {
		return stageResult{
			payload: map[string]any{"tags": []string{}},
			warn:    "no tags returned by provider",
		}
	}

	selected, err := o.gen.SelectCandidates(ctx, state.product, "publication tags", raw, o.config.TagLimit)
	warn := ""
	if err != nil || len(selected) == 0 {
		if len(raw) > o.config.TagLimit {
			raw = raw[:o.config.TagLimit]
		}
		selected = raw
		warn = "tag down-select unavailable, truncated raw list"
	}
	state.tags = selected

	articleCounts := make(map[string]int, len(selected))
	for _, tag := range selected {
		articles, err := o.tags.TrendingForTag(ctx, tag, 3)
		if err != nil {
			o.logf("trending articles for tag %q: %v", tag, err)
			continue
		}
		state.articles[tag] = articles
		articleCounts[tag] = len(articles)
	}

	return stageResult{
		payload: map[string]any{"tags": selected, "articles_per_tag": articleCounts},
		warn:    warn,
	}
}

func (o *Orchestrator) stageHeadlines(ctx context.Context, report *domain.Report, state *runState) stageResult {
	type origin struct {
		sourceType domain.SourceType
		text       string
	}
	origins := make([]origin, 0, len(state.trends)+len(state.prospect)+len(state.expanded)+len(state.tags))
	for _, trend := range state.trends {
		origins = append(origins, origin{domain.SourceTrendingTopic, trend})
	}
	for _, keyword := range state.prospect {
		origins = append(origins, origin{domain.SourceKeywordG1, keyword})
	}
	for _, keyword := range keywordsOrFallback(state.expanded, state.seo) {
		origins = append(origins, origin{domain.SourceKeywordG2, keyword})
	}
	for _, tag := range state.tags {
		origins = append(origins, origin{domain.SourceMediumTag, tag})
	}

	created := 0
	failures := 0
	for _, item := range origins {
		headlines, err := o.gen.GenerateHeadlines(ctx, service.HeadlineRequest{
			Product:     state.product,
			Origin:      item.text,
			SourceType:  item.sourceType,
			ContextText: o.contextFor(state, item.sourceType, item.text, "headlines"),
			Count:       3,
		})
		if err != nil {
			o.logf("headlines for %q: %v", item.text, err)
			failures++
			continue
		}

		for _, headline := range headlines {
			meta, err := json.Marshal(policy.HeadlineMeta{Origin: item.text, Description: headline.Description})
			if err != nil {
				continue
			}
			o.persistSuggestion(ctx, report, state, item.sourceType, domain.KindArticleHeadline, headline.Title, meta)
			if state.bookkeepingErr != nil {
				return stageResult{}
			}
			created++
		}
	}

	payload := map[string]any{"created": created, "origins": len(origins)}
	warn := ""
	if failures > 0 {
		warn = fmt.Sprintf("%d of %d headline batches failed", failures, len(origins))
	}
	return stageResult{payload: payload, warn: warn}
}

func (o *Orchestrator) stageTweetDrafts(ctx context.Context, report *domain.Report, state *runState) stageResult {
	created := 0
	failures := 0
	for _, trend := range state.trends {
		drafts, err := o.gen.GenerateTweetDrafts(ctx, service.DraftRequest{
			Product:     state.product,
			Origin:      trend,
			ContextText: o.contextFor(state, domain.SourceTrendingTopic, trend, "drafts"),
			Count:       3,
		})
		if err != nil {
			o.logf("tweet drafts for %q: %v", trend, err)
			failures++
			continue
		}

		for _, draft := range drafts {
			meta, err := json.Marshal(policy.DraftMeta{Origin: trend})
			if err != nil {
				continue
			}
			o.persistSuggestion(ctx, report, state, domain.SourceTrendingTopic, domain.KindTweet, draft, meta)
			if state.bookkeepingErr != nil {
				return stageResult{}
			}
			created++
		}
	}

	payload := map[string]any{"created": created, "trends": len(state.trends)}
	warn := ""
	if failures > 0 {
		warn = fmt.Sprintf("%d of %d draft batches failed", failures, len(state.trends))
	}
	return stageResult{payload: payload, warn: warn}
}

func (o *Orchestrator) stageVisualConcepts(ctx context.Context, report *domain.Report, state *runState) stageResult {
	type origin struct {
		sourceType domain.SourceType
		text       string
	}
	origins := make([]origin, 0, 2)
	if len(state.trends) > 0 {
		origins = append(origins, origin{domain.SourceTrendingTopic, state.trends[0]})
	}
	if len(state.tags) > 0 {
		origins = append(origins, origin{domain.SourceMediumTag, state.tags[0]})
	}
	if len(origins) == 0 {
		return stageResult{
			payload: map[string]any{"created": 0},
			warn:    "no trend or tag available for visual concepts",
		}
	}

	created := 0
	failures := 0
	for _, item := range origins {
		for _, kind := range []domain.SuggestionKind{domain.KindMemeConcept, domain.KindSlopConcept} {
			concepts, err := o.gen.GenerateConcepts(ctx, service.ConceptRequest{
				Product:     state.product,
				Kind:        kind,
				Origin:      item.text,
				ContextText: o.contextFor(state, item.sourceType, item.text, "concepts"),
				Count:       2,
			})
			if err != nil {
				o.logf("%s concepts for %q: %v", kind, item.text, err)
				failures++
				continue
			}

			for _, concept := range concepts {
				meta, err := json.Marshal(policy.ConceptMeta{Origin: item.text, Instructions: concept.Instructions})
				if err != nil {
					continue
				}
				o.persistSuggestion(ctx, report, state, item.sourceType, kind, concept.Caption, meta)
				if state.bookkeepingErr != nil {
					return stageResult{}
				}
				created++
			}
		}
	}

	payload := map[string]any{"created": created}
	warn := ""
	if failures > 0 {
		warn = fmt.Sprintf("%d concept batches failed", failures)
	}
	return stageResult{payload: payload, warn: warn}
}

func (o *Orchestrator) stageTweetReplies(ctx context.Context, report *domain.Report, state *runState) stageResult {
	if len(state.groups) == 0 {
		return stageResult{
			payload: map[string]any{"created": 0},
			warn:    "no posts collected, skipping replies",
		}
	}

	type candidate struct {
		group postGroup
		post  domain.PostSummary
		text  string
		score float64
	}

	created := 0
	failures := 0
	perGroup := make(map[domain.SourceType][]candidate)
	for _, group := range state.groups {
		sampled := samplePosts(state.rng, group.Posts, 4)
		replies, err := o.gen.GenerateReplies(ctx, service.ReplyRequest{
			Product: state.product,
			Posts:   sampled,
		})
		if err != nil {
			o.logf("replies for %q: %v", group.Origin, err)
			failures++
			continue
		}

		byID := make(map[string]domain.PostSummary, len(sampled))
		for _, post := range sampled {
			byID[post.ID] = post
		}
		for _, reply := range replies {
			post, ok := byID[reply.PostID]
			if !ok {
				continue
			}
			perGroup[group.SourceType] = append(perGroup[group.SourceType], candidate{
				group: group,
				post:  post,
				text:  reply.Text,
				score: replyScore(reply.Text),
			})
		}
	}

	// Keep only the top-K per source group. The length proxy stands in for
	// a real relevance signal; the mechanism is what matters.
	sourceOrder := []domain.SourceType{
		domain.SourceTrendingTopic,
		domain.SourceKeywordG1,
		domain.SourceKeywordG2,
	}
	for _, sourceType := range sourceOrder {
		candidates := perGroup[sourceType]
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].score > candidates[j].score
		})
		if len(candidates) > o.config.RepliesTopK {
			candidates = candidates[:o.config.RepliesTopK]
		}

		for _, item := range candidates {
			meta, err := json.Marshal(policy.ReplyMeta{
				Origin:     item.group.Origin,
				SourcePost: item.post,
				Score:      item.score,
			})
			if err != nil {
				continue
			}
			o.persistSuggestion(ctx, report, state, sourceType, domain.KindTweetReply, item.text, meta)
			if state.bookkeepingErr != nil {
				return stageResult{}
			}
			created++
		}
	}

	payload := map[string]any{"created": created, "groups": len(state.groups)}
	warn := ""
	if failures > 0 {
		warn = fmt.Sprintf("%d of %d reply batches failed", failures, len(state.groups))
	}
	return stageResult{payload: payload, warn: warn}
}

// contextFor assembles the bounded prompt context for one origin from the
// collected posts and publication articles.
func (o *Orchestrator) contextFor(state *runState, sourceType domain.SourceType, origin, task string) string {
	snippets := make([]promptctx.Snippet, 0, 16)
	for _, group := range state.groups {
		for index, post := range group.Posts {
			score := engagementScore(post)
			if group.SourceType == sourceType && group.Origin == origin {
				score += 10
			}
			snippets = append(snippets, promptctx.Snippet{
				ID:    fmt.Sprintf("%s-%d", group.Origin, index),
				Text:  fmt.Sprintf("Post about %q: %s", group.Origin, snippet(post.Text, 200)),
				Score: score,
			})
		}
	}
	for tag, articles := range state.articles {
		for index, article := range articles {
			score := 1.0
			if sourceType == domain.SourceMediumTag && tag == origin {
				score += 10
			}
			snippets = append(snippets, promptctx.Snippet{
				ID:    fmt.Sprintf("%s-a%d", tag, index),
				Text:  fmt.Sprintf("Trending article under %q: %s", tag, article.Title),
				Score: score,
			})
		}
	}

	if len(snippets) == 0 {
		return ""
	}
	return promptctx.Build(promptctx.BuildInput{Task: task, Snippets: snippets}).ContextText
}

func engagementScore(post domain.PostSummary) float64 {
	return float64(post.LikeCount) + 2*float64(post.RetweetCount) + float64(post.ReplyCount)
}

// replyScore is the normalized-length proxy used to pick the top replies.
func replyScore(text string) float64 {
	score := float64(len([]rune(text))) / 280
	if score > 1 {
		score = 1
	}
	return score
}

func keywordsOrFallback(expanded, seo []string) []string {
	if len(expanded) > 0 {
		return expanded
	}
	return seo
}

func dedupePosts(posts []domain.PostSummary) []domain.PostSummary {
	seen := make(map[string]struct{}, len(posts))
	result := make([]domain.PostSummary, 0, len(posts))
	for _, post := range posts {
		key := post.ID
		if key == "" {
			key = strings.ToLower(strings.TrimSpace(post.Text))
		}
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, post)
	}
	return result
}

func samplePosts(rng *rand.Rand, posts []domain.PostSummary, limit int) []domain.PostSummary {
	if limit >= len(posts) {
		return append([]domain.PostSummary(nil), posts...)
	}

	picked := rng.Perm(len(posts))[:limit]
	mask := make(map[int]struct{}, limit)
	for _, index := range picked {
		mask[index] = struct{}{}
	}

	result := make([]domain.PostSummary, 0, limit)
	for index, post := range posts {
		if _, ok := mask[index]; ok {
			result = append(result, post)
		}
	}
	return result
}

func snippet(text string, maxLen int) string {
	trimmed := strings.Join(strings.Fields(text), " ")
	runes := []rune(trimmed)
	if len(runes) <= maxLen {
		return trimmed
	}
	return strings.TrimSpace(string(runes[:maxLen]))
}
