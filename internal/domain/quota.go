package domain

// UsageQuota counts paid units of work consumed by one user on one day.
// Day uses the YYYY-MM-DD form in UTC.
type UsageQuota struct {
	UserID       string
	Day          string
	ContentCount int
	ArticleCount int
	VideoCount   int
}
