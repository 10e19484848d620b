package service

// Built-in copies of the prompt templates. A file with the same name under
// the prompts directory takes precedence, so operators can tune wording
// without a rebuild.
var defaultPrompts = map[string]string{
	"keywords_v1.tmpl": `You are a content strategist for the product below.

Product: {{.ProductName}}
Description: {{.Description}}

Produce two groups of search keywords:
- "prospect": queries a potential buyer would type while evaluating options.
- "seo": informational queries the product could rank for with articles.

Respond with JSON only:
{"prospect": ["..."], "seo": ["..."]}
Up to 10 keywords per group, each under 6 words.`,

	"select_v1.tmpl": `You are filtering {{.Label}} for relevance to the product below.

Product: {{.ProductName}}
Description: {{.Description}}

Candidates:
{{range .Candidates}}- {{.}}
{{end}}
Keep at most {{.Limit}} candidates that are genuinely relevant to the product
and its audience. Copy them verbatim from the list above.

Respond with JSON only:
{"selected": ["..."]}`,

	"headlines_v1.tmpl": `You are writing article headlines for the product below.

Product: {{.ProductName}}
Description: {{.Description}}
Angle: {{.Origin}}

{{.Context}}

Write {{.Count}} article headlines tying the angle to the product, each with
a one-sentence description of what the article would cover.

Respond with JSON only:
{"headlines": [{"title": "...", "description": "..."}]}`,

	"drafts_v1.tmpl": `You are drafting tweets for the product below.

Product: {{.ProductName}}
Description: {{.Description}}
Angle: {{.Origin}}

{{.Context}}

Write {{.Count}} standalone tweets about the angle from the product's
perspective. Under 280 characters each, no hashtag stuffing, no links.

Respond with JSON only:
{"drafts": ["..."]}`,

	"concepts_v1.tmpl": `You are pitching {{.Format}} concepts for the product below.

Product: {{.ProductName}}
Description: {{.Description}}
Angle: {{.Origin}}

{{.Context}}

Pitch {{.Count}} {{.Format}} concepts. Each has a short caption and a
structured instructions object a production tool could execute (scene,
overlay text, pacing notes).

Respond with JSON only:
{"concepts": [{"caption": "...", "instructions": {"scene": "...", "overlay": "..."}}]}`,

	"replies_v1.tmpl": `You are replying to public posts on behalf of the product below.

Product: {{.ProductName}}
Description: {{.Description}}

Posts:
{{range .Posts}}[{{.id}}] {{.text}}
{{end}}
Write one witty, non-promotional reply per post. Keep each under 280
characters and reference the post it answers.

Respond with JSON only:
{"replies": [{"post_id": "...", "text": "..."}]}`,

	"article_v1.tmpl": `You are writing a full article.

Title: {{.Title}}
Summary: {{.Description}}

{{.Context}}

Write the complete article in Markdown with an introduction, three to five
sections with headings, and a closing takeaway. Also provide an HTML
rendering of the same content.

Respond with JSON only:
{"content_md": "...", "content_html": "..."}`,
}
