package main

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bobotlabs/bobot/internal/httpapi"
)

const (
	publicRouteWidgetConfigByKey     = "/widget/key/:widgetKey/config"
	publicRouteWidgetConfigByCompany = "/widget/:companyId/config"
	publicRouteChat                  = "/chat/:companyId"
	publicRouteChatFeedback          = "/chat/:companyId/feedback"
	publicRouteConsent               = "/gdpr/:companyId/consent"
	publicRouteMyData                = "/gdpr/:companyId/my-data"
	metricsRoute                     = "/metrics"
	adminRoutePrefix                 = "/api/admin"
	adminRouteCompanies              = "/companies"
	adminRouteWidgetConfigByCompany  = "/companies/:id/widget-config"
	adminRouteFAQByCompany           = "/companies/:id/faq"
	adminRouteConversationsByCompany = "/companies/:id/conversations"
	corsOriginWildcard               = "*"
	corsHeaderAuthorization          = "Authorization"
	corsHeaderContentType            = "Content-Type"
	httpMethodGet                    = "GET"
	httpMethodPost                   = "POST"
	httpMethodDelete                 = "DELETE"
	httpMethodPut                    = "PUT"
	httpMethodOptions                = "OPTIONS"
)

var (
	corsAllowedMethods = []string{httpMethodPost, httpMethodGet, httpMethodDelete, httpMethodPut, httpMethodOptions}
	corsAllowedHeaders = []string{corsHeaderAuthorization, corsHeaderContentType}
	corsExposedHeaders = []string{corsHeaderContentType}
	corsAllowOrigins   = []string{corsOriginWildcard}
)

// buildRouter assembles the public widget surface, the GDPR endpoints, the
// bearer-protected admin group, and the Prometheus scrape endpoint. The public
// surface allows any origin because the widget is embedded on customer sites.
func buildRouter(database *gorm.DB, logger *zap.Logger, adminBearerToken string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger))
	router.Use(httpapi.RequestMetrics())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsAllowOrigins,
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	answerer := httpapi.NewFAQAnswerer(database)
	publicHandlers := httpapi.NewPublicHandlers(database, logger, answerer)
	gdprHandlers := httpapi.NewGDPRHandlers(database, logger)
	adminHandlers := httpapi.NewAdminHandlers(database, logger)

	router.GET(publicRouteWidgetConfigByKey, publicHandlers.WidgetConfigByKey)
	router.GET(publicRouteWidgetConfigByCompany, publicHandlers.WidgetConfigByCompany)
	router.POST(publicRouteChat, publicHandlers.Chat)
	router.POST(publicRouteChatFeedback, publicHandlers.ChatFeedback)

	router.POST(publicRouteConsent, gdprHandlers.UpdateConsent)
	router.GET(publicRouteMyData, gdprHandlers.MyData)
	router.DELETE(publicRouteMyData, gdprHandlers.DeleteMyData)

	router.GET(metricsRoute, gin.WrapH(promhttp.Handler()))

	adminGroup := router.Group(adminRoutePrefix)
	adminGroup.Use(httpapi.AdminAuthMiddleware(adminBearerToken))
	adminGroup.POST(adminRouteCompanies, adminHandlers.CreateCompany)
	adminGroup.GET(adminRouteCompanies, adminHandlers.ListCompanies)
	adminGroup.PUT(adminRouteWidgetConfigByCompany, adminHandlers.UpsertWidgetConfig)
	adminGroup.POST(adminRouteFAQByCompany, adminHandlers.CreateFAQEntry)
	adminGroup.GET(adminRouteConversationsByCompany, adminHandlers.ListConversations)

	return router
}
