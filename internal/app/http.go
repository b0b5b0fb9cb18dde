package app

import (
	"context"

	"github.com/yungbote/surveytrends-backend/internal/data/partition"
	"github.com/yungbote/surveytrends-backend/internal/http"
	httpH "github.com/yungbote/surveytrends-backend/internal/http/handlers"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
)

type Handlers struct {
	Health    *httpH.HealthHandler
	Questions *httpH.QuestionHandler
	Responses *httpH.ResponseHandler
}

func wireHandlers(log *logger.Logger, services Services, router *partition.Router) Handlers {
	log.Info("Wiring handlers...")
	catalog := router.Catalog()
	return Handlers{
		Health: httpH.NewHealthHandler(func(ctx context.Context) error {
			sqlDB, err := catalog.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
		Questions: httpH.NewQuestionHandler(services.Analytics),
		Responses: httpH.NewResponseHandler(services.Analytics),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:             log,
		ServiceName:     cfg.Otel.ServiceName,
		CORSOrigins:     cfg.CORSOrigins,
		HealthHandler:   handlers.Health,
		QuestionHandler: handlers.Questions,
		ResponseHandler: handlers.Responses,
	})
}
