package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	billingcycledomain "github.com/hearthshare/hearth/internal/billingcycle/domain"
	"github.com/hearthshare/hearth/internal/config"
	costdomain "github.com/hearthshare/hearth/internal/cost/domain"
	housematedomain "github.com/hearthshare/hearth/internal/housemate/domain"
	ledgerdomain "github.com/hearthshare/hearth/internal/ledger/domain"
	"github.com/hearthshare/hearth/internal/orchestrator"
	"github.com/hearthshare/hearth/internal/scheduler"
	statementdomain "github.com/hearthshare/hearth/internal/statement/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine    *gin.Engine
	cfg       config.Config
	cycleSvc  billingcycledomain.Service
	costSvc   costdomain.Service
	hmSvc     housematedomain.Service
	ledgerSvc ledgerdomain.Service
	stmtSvc   statementdomain.Service
	orch      *orchestrator.Orchestrator
	sched     *scheduler.Scheduler
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	CycleSvc  billingcycledomain.Service
	CostSvc   costdomain.Service
	HmSvc     housematedomain.Service
	LedgerSvc ledgerdomain.Service
	StmtSvc   statementdomain.Service
	Orch      *orchestrator.Orchestrator
	Sched     *scheduler.Scheduler
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		cycleSvc:  p.CycleSvc,
		costSvc:   p.CostSvc,
		hmSvc:     p.HmSvc,
		ledgerSvc: p.LedgerSvc,
		stmtSvc:   p.StmtSvc,
		orch:      p.Orch,
		sched:     p.Sched,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Housemates --------
	api.GET("/housemates", s.ListHousemates)
	api.POST("/housemates", s.CreateHousemate)
	api.GET("/housemates/:id", s.GetHousemate)
	api.POST("/housemates/:id/deactivate", s.DeactivateHousemate)

	// -------- Accounts --------
	api.GET("/accounts", s.ListAccounts)
	api.POST("/accounts", s.CreateAccount)
	api.GET("/accounts/:id/balance", s.GetAccountBalance)
	api.POST("/transfers", s.CreateTransfer)

	// -------- Billing cycles --------
	api.GET("/billing-cycles", s.ListBillingCycles)
	api.GET("/billing-cycles/:id", s.GetBillingCycle)
	api.POST("/billing-cycles/populate", s.PopulateBillingCycles)
	api.GET("/billing-cycles/:id/reconciliation", s.GetBillingCycleReconciliation)
	api.POST("/billing-cycles/:id/send-statements", s.SendStatements)

	// -------- Recurring costs --------
	api.GET("/costs", s.ListCosts)
	api.POST("/costs", s.CreateCost)
	api.GET("/costs/:id", s.GetCost)
	api.GET("/costs/:id/billed", s.GetCostBilledAmount)
	api.POST("/costs/:id/disable", s.DisableCost)
	api.POST("/costs/:id/enact", s.EnactCost)

	// -------- Bank statements --------
	api.POST("/statements/import", s.ImportStatement)
	api.GET("/statements/lines", s.ListStatementLines)
	api.POST("/statements/lines/:id/reconcile", s.ReconcileStatementLine)

	// -------- Operations --------
	api.POST("/sweep", s.RunSweep)
}
