package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tripledger/tripledger/internal/metrics"
	"github.com/tripledger/tripledger/internal/middleware"
	"github.com/tripledger/tripledger/internal/models"
	"github.com/tripledger/tripledger/internal/service"
)

// Services bundles the service layer the API exposes.
type Services struct {
	Trips    *service.TripService
	Expenses *service.ExpenseService
	Ledger   *service.Ledger
}

// NewRouter builds the gin engine with the full middleware chain and all
// routes. m may be nil to run without metrics.
func NewRouter(svcs Services, m *metrics.Metrics, serviceName, version string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS())
	if m != nil {
		router.Use(m.Middleware())
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": serviceName,
			"version": version,
		})
	})
	if m != nil {
		router.GET("/metrics", m.Handler())
	}

	trips := &TripHandlers{trips: svcs.Trips}
	expenses := &ExpenseHandlers{expenses: svcs.Expenses}
	ledger := &LedgerHandlers{ledger: svcs.Ledger, trips: svcs.Trips}

	api := router.Group("/api")
	{
		api.GET("/currencies", listCurrencies)

		api.POST("/trips", trips.Create)
		api.GET("/trips", trips.List)
		api.GET("/trips/:tripID", trips.Get)
		api.POST("/trips/:tripID/members", trips.AddMember)
		api.GET("/trips/:tripID/members", trips.ListMembers)

		api.POST("/trips/:tripID/expenses", expenses.Create)
		api.GET("/trips/:tripID/expenses", expenses.List)
		api.GET("/trips/:tripID/expenses/:expenseID", expenses.Get)
		api.PUT("/trips/:tripID/expenses/:expenseID", expenses.Update)
		api.DELETE("/trips/:tripID/expenses/:expenseID", expenses.Delete)

		api.GET("/trips/:tripID/balances", ledger.Balances)
		api.GET("/trips/:tripID/members/:memberID/balance", ledger.MemberBalance)
		api.GET("/trips/:tripID/debts", ledger.Debts)
		api.GET("/trips/:tripID/settlements/plan", ledger.SettlementPlan)
		api.POST("/trips/:tripID/settlements", ledger.RecordSettlement)
		api.POST("/trips/:tripID/debts/convert", ledger.ConvertDebts)
		api.POST("/trips/:tripID/debts/merge", ledger.MergeDebt)
	}

	return router
}

func listCurrencies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"currencies": models.SupportedCurrencies})
}
