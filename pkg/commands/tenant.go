package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/folio-sites/folio-domains/pkg/db"
	"github.com/folio-sites/folio-domains/pkg/model"
	"github.com/folio-sites/folio-domains/pkg/rand"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const tenantSecretLength = 32

func createTenant(c *cli.Context) error {
	database, err := db.New(context.Background(), c.String("sql-dialect"), c.String("sql-dsn"), &gorm.Config{
		Logger: db.NewLogger(c.String("log-level")),
	})
	if err != nil {
		return err
	}

	secret := rand.Token(tenantSecretLength)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	tenant, err := database.CreateTenant(c.String("name"), string(hash))
	if err != nil {
		return err
	}

	// The token is only printed once; we store nothing but the hash.
	out, err := json.Marshal(model.TenantResponse{
		ID:    tenant.ID,
		Name:  tenant.Name,
		Token: fmt.Sprintf("%d.%s", tenant.ID, secret),
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", out)
	return nil
}

func createTenantCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "name",
			Usage:    "Tenant name",
			Required: true,
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
	}

	return &cli.Command{
		Name:   "create-tenant",
		Usage:  "register a tenant and print its API token",
		Action: createTenant,
		Flags:  append(flags, GlobalFlags()...),
		Before: Before,
	}
}
