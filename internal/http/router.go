package httpserver

import (
	"log"
	"net/http"

	"github.com/contentpulse/backend/internal/http/handlers"
	"github.com/contentpulse/backend/internal/http/middleware"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         *log.Logger
	AuthTokens     map[string]string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", deps.API.Health)
	mux.HandleFunc("/v1/products", deps.API.Products)
	mux.HandleFunc("/v1/products/", deps.API.ProductReports)
	mux.HandleFunc("/v1/reports", deps.API.Reports)
	mux.HandleFunc("/v1/reports/", deps.API.ReportByID)
	mux.HandleFunc("/v1/articles", deps.API.Articles)
	mux.HandleFunc("/v1/articles/", deps.API.ArticleByID)
	mux.HandleFunc("/v1/memes", deps.API.Memes)
	mux.HandleFunc("/v1/memes/", deps.API.MemeByID)
	mux.HandleFunc("/v1/slops", deps.API.Slops)
	mux.HandleFunc("/v1/slops/", deps.API.SlopByID)
	mux.HandleFunc("/v1/guest/merge", deps.API.MergeGuest)
	mux.HandleFunc("/v1/plans", deps.API.Plans)
	mux.HandleFunc("/v1/me/limits", deps.API.MyLimits)

	handler := http.Handler(mux)
	handler = middleware.Identity(deps.AuthTokens)(handler)
	handler = middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: deps.CORSOrigins,
	})(handler)
	handler = middleware.Trace(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
