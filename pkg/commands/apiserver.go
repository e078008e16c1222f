package commands

import (
	"context"

	"github.com/folio-sites/folio-domains/pkg/apiserver"
	"github.com/folio-sites/folio-domains/pkg/backend"
	"github.com/folio-sites/folio-domains/pkg/db"
	"github.com/folio-sites/folio-domains/pkg/lifecycle"
	"github.com/folio-sites/folio-domains/pkg/resolver"
	"github.com/folio-sites/folio-domains/pkg/scheduler"
	"github.com/folio-sites/folio-domains/pkg/verifier"
	"github.com/folio-sites/folio-domains/pkg/version"
	"github.com/rancher/wrangler/pkg/signals"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

type apiServerCommand struct{}

func (s *apiServerCommand) Execute(c *cli.Context) error {
	ctx := signals.SetupSignalHandler(context.Background())

	log := logrus.WithField("command", "api-server")

	log.Infof("version: %v", version.Get())

	database, err := db.New(ctx, c.String("sql-dialect"), c.String("sql-dsn"), &gorm.Config{
		Logger: db.NewLogger(c.String("log-level")),
	})
	if err != nil {
		return err
	}

	ingressIPs := c.StringSlice("ingress-ip")

	var zone backend.Backend
	if zoneID := c.String("route53-zone-id"); zoneID != "" {
		zone, err = backend.NewRoute53(zoneID, c.String("cname-target"), ingressIPs, c.Int64("record-ttl"))
		if err != nil {
			return err
		}
	} else {
		zone = backend.NewNoop()
	}

	if err := zone.EnsureRoutingTarget(ctx); err != nil {
		return err
	}

	res := resolver.New(c.Duration("resolver-timeout"))
	ver := verifier.New(res, ingressIPs)

	controller := lifecycle.New(database, ver, lifecycle.LogNotifier{}, lifecycle.Options{
		CNAMETarget:       c.String("cname-target"),
		MismatchThreshold: c.Int("mismatch-threshold"),
	}, logrus.WithField("component", "lifecycle"))

	sched := scheduler.New(database, controller,
		c.Duration("check-interval"),
		c.Duration("recheck-interval"),
		c.Int("workers"),
		logrus.WithField("component", "scheduler"))

	apiServer := apiserver.NewAPIServer(ctx, log, c.Int("port"))

	if err := apiServer.Start(controller, apiserver.NewTokenResolver(database), sched); err != nil {
		return err
	}

	return nil
}

func serverCommand() *cli.Command {
	cmd := apiServerCommand{}

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Usage:   "Port for the HTTP Server Port",
			EnvVars: []string{"FOLIO_PORT", "PORT"},
			Value:   4380,
		},
		&cli.StringFlag{
			Name:    "sql-dialect",
			Usage:   "The type of sql to use, sqlite or mysql",
			EnvVars: []string{"FOLIO_SQL_DIALECT", "SQL_DIALECT"},
			Value:   "sqlite",
		},
		&cli.StringFlag{
			Name:    "sql-dsn",
			Usage:   "The DSN to use to connect to",
			EnvVars: []string{"FOLIO_SQL_DSN", "SQL_DSN"},
			Value:   "file:folio-domains.sqlite?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		},
		&cli.DurationFlag{
			Name:    "check-interval",
			Usage:   "How often pending domains are re-probed",
			EnvVars: []string{"FOLIO_CHECK_INTERVAL"},
			Value:   scheduler.DefaultInterval,
		},
		&cli.DurationFlag{
			Name:    "recheck-interval",
			Usage:   "How often verified domains are re-checked for drift, 0 to disable",
			EnvVars: []string{"FOLIO_RECHECK_INTERVAL"},
			Value:   scheduler.DefaultRecheckInterval,
		},
		&cli.DurationFlag{
			Name:    "resolver-timeout",
			Usage:   "Timeout for a single DNS lookup or HTTP probe",
			EnvVars: []string{"FOLIO_RESOLVER_TIMEOUT"},
			Value:   resolver.DefaultTimeout,
		},
		&cli.IntFlag{
			Name:    "workers",
			Usage:   "Max concurrent domain checks per sweep",
			EnvVars: []string{"FOLIO_WORKERS"},
			Value:   scheduler.DefaultWorkers,
		},
		&cli.IntFlag{
			Name:    "mismatch-threshold",
			Usage:   "Consecutive conclusive mismatches before a domain is parked in ERROR, 0 to never",
			EnvVars: []string{"FOLIO_MISMATCH_THRESHOLD"},
			Value:   lifecycle.DefaultMismatchThreshold,
		},
		&cli.StringFlag{
			Name:    "cname-target",
			Usage:   "Platform hostname tenant CNAME records must point at",
			EnvVars: []string{"FOLIO_CNAME_TARGET"},
			Value:   lifecycle.DefaultCNAMETarget,
		},
		&cli.StringSliceFlag{
			Name:    "ingress-ip",
			Usage:   "Platform edge IPs tenant A records are expected to resolve to",
			EnvVars: []string{"FOLIO_INGRESS_IPS"},
		},
		&cli.StringFlag{
			Name:    "route53-zone-id",
			Usage:   "Hosted zone to manage the cname-target record in; leave empty if managed elsewhere",
			EnvVars: []string{"FOLIO_ROUTE53_ZONE_ID"},
		},
		&cli.Int64Flag{
			Name:    "record-ttl",
			Usage:   "TTL in seconds for the managed routing record",
			EnvVars: []string{"FOLIO_RECORD_TTL"},
			Value:   300,
		},
	}

	return &cli.Command{
		Name:   "api-server",
		Usage:  "folio domains api server",
		Action: cmd.Execute,
		Flags:  append(flags, GlobalFlags()...),
		Before: Before,
	}
}
