package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jobprep_backend/internal/apperrors"
	"jobprep_backend/internal/metrics"
	"jobprep_backend/internal/oauth"
	"jobprep_backend/internal/resume"
	"jobprep_backend/internal/service"
)

const sessionName = "jobprep_session"

type TokenService interface {
	Issue(claims map[string]any, ttl time.Duration) (string, error)
	Verify(token string) (map[string]any, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Ingestor interface {
	Ingest(ctx context.Context, filename, contentType string, data []byte) (resume.Upload, error)
}

type SessionOptions struct {
	Secret string
	MaxAge time.Duration
	Secure bool
}

// Dependencies groups everything the HTTP layer talks to. Ingestor may be
// nil, which leaves the upload route unregistered.
type Dependencies struct {
	Service     service.Service
	Tokens      TokenService
	Providers   []oauth.Provider
	Ingestor    Ingestor
	DB          Pinger
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Session     SessionOptions
	CORSOrigins []string
}

type Handler struct {
	serviceLayer service.Service
	tokens       TokenService
	providers    []oauth.Provider
	ingestor     Ingestor
	db           Pinger
	metrics      *metrics.Metrics
	gatherer     prometheus.Gatherer
	session      SessionOptions
	corsOrigins  []string
	log          *slog.Logger
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func newErrorResponse(c *gin.Context, statusCode int, detail string) {
	c.AbortWithStatusJSON(statusCode, errorResponse{Detail: detail})
}

// respondError writes err using the taxonomy status and detail. Causes
// outside the taxonomy are logged and replaced by a generic message.
func respondError(c *gin.Context, log *slog.Logger, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.Any("error", err))
	}
	newErrorResponse(c, status, apperrors.Detail(err))
}

func NewHandler(deps Dependencies, lgr *slog.Logger) *Handler {
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Handler{
		serviceLayer: deps.Service,
		tokens:       deps.Tokens,
		providers:    deps.Providers,
		ingestor:     deps.Ingestor,
		db:           deps.DB,
		metrics:      deps.Metrics,
		gatherer:     gatherer,
		session:      deps.Session,
		corsOrigins:  deps.CORSOrigins,
		log:          lgr,
	}
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()

	router.Use(
		requestID(),
		h.requestLogger(),
		h.metricsMiddleware(),
		h.recovery(),
	)

	router.Use(cors.New(cors.Config{
		AllowOrigins:     h.corsOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	store := cookie.NewStore([]byte(h.session.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(h.session.MaxAge.Seconds()),
		Secure:   h.session.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(sessionName, store))

	health := router.Group("/health")
	{
		health.GET("/live", h.Live)
		health.GET("/ready", h.Ready)
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	auth := router.Group("/auth")
	{
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)

		for _, p := range h.providers {
			auth.GET("/"+p.Name(), h.OAuthLogin(p))
			auth.GET("/"+p.Name()+"/callback", h.OAuthCallback(p))
		}

		auth.GET("/me", AuthMiddleware(h.tokens), h.Me)
	}

	if h.ingestor != nil {
		router.POST("/pdf_parser/upload", h.UploadResume)
	}

	return router
}
