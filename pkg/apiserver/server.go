package apiserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/folio-sites/folio-domains/pkg/lifecycle"
	"github.com/folio-sites/folio-domains/pkg/scheduler"
	"github.com/folio-sites/folio-domains/pkg/version"
	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type apiServer struct {
	ctx  context.Context
	log  *logrus.Entry
	port int
}

func NewAPIServer(ctx context.Context, log *logrus.Entry, port int) *apiServer {
	return &apiServer{
		ctx:  ctx,
		log:  log,
		port: port,
	}
}

// Start serves the tenant-facing API and runs the verification scheduler
// until the context is cancelled.
func (a *apiServer) Start(controller *lifecycle.Controller, tenants TenantResolver, sched *scheduler.Scheduler) error {
	logrus.Infof("Version: %s", version.Get())

	router := newRouter(a.log, controller, tenants)

	// Below this point is where the server is started and graceful shutdown occurs.
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: ghandlers.CORS()(router),
	}

	go func() {
		a.log.WithField("port", a.port).Info("starting api server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Fatalf("listen: %s\n", err)
		}
	}()

	go sched.Start(a.ctx.Done())

	<-a.ctx.Done()

	a.log.Info("shutting down the api server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer func() {
		cancel()
	}()

	if err := srv.Shutdown(ctx); err != nil {
		a.log.WithError(err).Error("unable to shutdown the api server gracefully")
		return err
	}

	return nil
}

func newRouter(log *logrus.Entry, controller *lifecycle.Controller, tenants TenantResolver) *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	router.Use(loggingMiddleware(log))
	h := newHandler(controller)

	// When functioning properly, these routes will return the version of the app that is running
	router.Path("/").HandlerFunc(h.root)
	router.Path("/healthz").HandlerFunc(h.root)

	api := router.PathPrefix("/v1").Subrouter()

	// Every domain route is tenant-scoped; the resolver decides who the
	// caller is, the handlers never see anything but the tenant ID.
	authedRoutes := api.PathPrefix("/domains").Subrouter()
	authedRoutes.Use(tenantAuthMiddleware(tenants))

	authedRoutes.Path("").Methods("POST").HandlerFunc(h.createDomain)
	authedRoutes.Path("").Methods("GET").HandlerFunc(h.listDomains)
	authedRoutes.Path("/{domain}").Methods("GET").HandlerFunc(h.getDomain)
	authedRoutes.Path("/{domain}").Methods("DELETE").HandlerFunc(h.removeDomain)

	// These are "actions" that can be taken on a domain
	authedRoutes.Path("/{domain}/check").Methods("POST").HandlerFunc(h.checkDomain)
	authedRoutes.Path("/{domain}/primary").Methods("POST").HandlerFunc(h.setPrimaryDomain)

	// Note: this allows not found urls to be logged via the middleware
	// It **HAS** to be defined after all other paths are defined.
	router.NotFoundHandler = router.NewRoute().HandlerFunc(http.NotFound).GetHandler()

	return router
}
