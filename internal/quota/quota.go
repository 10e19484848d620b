// Package quota holds the plan table and the access gate consulted before
// any paid unit of work starts: a pipeline run, an article expansion or a
// video expansion. The pipeline itself performs no quota checks.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/contentpulse/backend/internal/repository"
)

type OperationKind string

const (
	OpContent OperationKind = "content"
	OpArticle OperationKind = "article"
	OpVideo   OperationKind = "video"
)

// Unlimited marks a plan dimension with no daily cap.
const Unlimited = -1

type Plan struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ContentPerDay  int    `json:"content_per_day"`
	ArticlesPerDay int    `json:"articles_per_day"`
	VideosPerDay   int    `json:"videos_per_day"`
}

var plans = map[string]Plan{
	"basic":    {ID: "basic", Name: "Basic", ContentPerDay: 3, ArticlesPerDay: 1, VideosPerDay: 0},
	"pro":      {ID: "pro", Name: "Pro", ContentPerDay: 10, ArticlesPerDay: 5, VideosPerDay: 2},
	"advanced": {ID: "advanced", Name: "Advanced", ContentPerDay: Unlimited, ArticlesPerDay: Unlimited, VideosPerDay: Unlimited},
}

var planOrder = []string{"basic", "pro", "advanced"}

func Plans() []Plan {
	result := make([]Plan, 0, len(plans))
	for _, id := range planOrder {
		result = append(result, plans[id])
	}
	return result
}

func PlanByID(id string) (Plan, bool) {
	plan, ok := plans[id]
	return plan, ok
}

// Actor is whoever is asking for work. Guests carry an empty UserID and no
// plan; authenticated users fall back to basic when their plan is unknown.
type Actor struct {
	UserID  string
	GuestID string
	PlanID  string
}

func (a Actor) IsGuest() bool {
	return a.UserID == "" && a.GuestID != ""
}

type Gate struct {
	repo repository.ReportsRepository
	now  func() time.Time
}

func NewGate(repo repository.ReportsRepository) *Gate {
	return &Gate{repo: repo, now: time.Now}
}

type Decision struct {
	Allowed bool
	Reason  string
}

// Authorize decides whether the actor may consume one unit of the given
// operation kind and, when allowed, attributes the usage immediately.
// Guests never get article or video work; their single daily content run is
// on top of the one-report rule enforced at report creation.
func (g *Gate) Authorize(ctx context.Context, actor Actor, kind OperationKind) (Decision, error) {
	if actor.IsGuest() {
		if kind != OpContent {
			return Decision{Reason: "guest_not_allowed"}, nil
		}
		return Decision{Allowed: true}, nil
	}
	if actor.UserID == "" {
		return Decision{Reason: "unknown_actor"}, nil
	}

	plan, ok := plans[actor.PlanID]
	if !ok {
		plan = plans["basic"]
	}

	day := g.now().UTC().Format("2006-01-02")
	usage, err := g.repo.GetUsage(ctx, actor.UserID, day)
	if err != nil {
		return Decision{}, fmt.Errorf("read usage for %s: %w", actor.UserID, err)
	}

	var used, limit int
	switch kind {
	case OpContent:
		used, limit = usage.ContentCount, plan.ContentPerDay
	case OpArticle:
		used, limit = usage.ArticleCount, plan.ArticlesPerDay
	case OpVideo:
		used, limit = usage.VideoCount, plan.VideosPerDay
	default:
		return Decision{Reason: "unknown_operation"}, nil
	}

	if limit != Unlimited && used >= limit {
		return Decision{Reason: "quota_exceeded"}, nil
	}

	if err := g.repo.IncrementUsage(ctx, actor.UserID, day, string(kind)); err != nil {
		return Decision{}, fmt.Errorf("attribute usage for %s: %w", actor.UserID, err)
	}
	return Decision{Allowed: true}, nil
}

// Remaining reports how many units of each kind the actor still has today.
// Unlimited dimensions stay at -1.
func (g *Gate) Remaining(ctx context.Context, actor Actor) (map[OperationKind]int, error) {
	result := map[OperationKind]int{OpContent: 0, OpArticle: 0, OpVideo: 0}
	if actor.IsGuest() {
		result[OpContent] = 1
		return result, nil
	}

	plan, ok := plans[actor.PlanID]
	if !ok {
		plan = plans["basic"]
	}

	day := g.now().UTC().Format("2006-01-02")
	usage, err := g.repo.GetUsage(ctx, actor.UserID, day)
	if err != nil {
		return nil, fmt.Errorf("read usage for %s: %w", actor.UserID, err)
	}

	result[OpContent] = remaining(plan.ContentPerDay, usage.ContentCount)
	result[OpArticle] = remaining(plan.ArticlesPerDay, usage.ArticleCount)
	result[OpVideo] = remaining(plan.VideosPerDay, usage.VideoCount)
	return result, nil
}

func remaining(limit, used int) int {
	if limit == Unlimited {
		return Unlimited
	}
	left := limit - used
	if left < 0 {
		return 0
	}
	return left
}
