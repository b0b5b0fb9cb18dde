package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/surveytrends-backend/internal/http/handlers"
	httpMW "github.com/yungbote/surveytrends-backend/internal/http/middleware"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string

	QuestionHandler *httpH.QuestionHandler
	ResponseHandler *httpH.ResponseHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "surveytrends"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics())
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		if cfg.QuestionHandler != nil {
			v1.GET("/questions/resolve", cfg.QuestionHandler.Resolve)
			v1.POST("/questions/index/invalidate", cfg.QuestionHandler.InvalidateIndex)
			v1.GET("/themes/:theme/groups", cfg.QuestionHandler.Groups)
		}
		if cfg.ResponseHandler != nil {
			v1.POST("/responses/aggregate", cfg.ResponseHandler.Aggregate)
		}
	}

	return r
}
