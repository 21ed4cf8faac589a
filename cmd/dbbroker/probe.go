package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/koustreak/dbbroker/internal/broker"
	"github.com/koustreak/dbbroker/internal/connector"
	"github.com/koustreak/dbbroker/internal/dialect"
	"github.com/koustreak/dbbroker/internal/errs"
	"github.com/koustreak/dbbroker/internal/logger"
	"github.com/koustreak/dbbroker/internal/pool"
)

// requestFlags are the connection parameters shared by probe and resolve.
type requestFlags struct {
	dbType   string
	server   string
	port     int
	database string
	instance string
	sslMode  string
	driver   string
	urls     []string
	options  map[string]string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.dbType, "type", "t", "", "Database type (oracle, mysql, mssql, sybase, netcool, db2, postgresql, custom)")
	cmd.Flags().StringVarP(&f.server, "server", "s", "", "Database host")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "Database port (0 uses the type's default)")
	cmd.Flags().StringVarP(&f.database, "database", "d", "", "Database, service name or SID")
	cmd.Flags().StringVar(&f.instance, "instance", "", "SQL Server named instance")
	cmd.Flags().StringVar(&f.sslMode, "sslmode", "", "PostgreSQL sslmode")
	cmd.Flags().StringVar(&f.driver, "driver", "", "database/sql driver name for the custom type")
	cmd.Flags().StringSliceVar(&f.urls, "url", nil, "Explicit candidate URL, tried before built ones (repeatable or comma-separated)")
	cmd.Flags().StringToStringVar(&f.options, "option", nil, "Extra URL query option key=value (repeatable)")
	_ = cmd.MarkFlagRequired("type")
}

func (f *requestFlags) params() dialect.Params {
	var urls []string
	for _, u := range f.urls {
		urls = append(urls, dialect.SplitURLs(u)...)
	}
	return dialect.Params{
		Server:   f.server,
		Port:     f.port,
		Database: f.database,
		Instance: f.instance,
		SSLMode:  f.sslMode,
		URLs:     urls,
		Driver:   f.driver,
		Options:  f.options,
	}
}

func newResolveCmd() *cobra.Command {
	var req requestFlags

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the candidate URLs for a database type, in probe order",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := dialect.Parse(req.dbType)
			if err != nil {
				return err
			}
			driver, err := dialect.DriverName(t, req.params())
			if err != nil {
				return err
			}
			urls, err := dialect.Resolve(t, req.params())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "driver: %s\n", driver)
			for _, u := range urls {
				if strings.TrimSpace(u) == "" {
					continue
				}
				fmt.Fprintln(out, dialect.Redact(u))
			}
			return nil
		},
	}
	req.register(cmd)
	return cmd
}

func newProbeCmd() *cobra.Command {
	var (
		req         requestFlags
		user        string
		passwordEnv string
		pooling     bool
		properties  map[string]string
		timeout     time.Duration
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Connect through the broker, ping, and print the URL that answered",
		Long: `Probe resolves the candidate URLs for a database type and connects to
the first that answers. The password is read from an environment variable
so it never appears in the process list.

Example:
  DBBROKER_PASSWORD=tiger dbbroker probe --type oracle --server db1 --database ORCL --user scott`,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, ok := os.LookupEnv(passwordEnv)
			if !ok {
				return errs.Newf(errs.ErrKindInvalidInput, "password environment variable %s is not set", passwordEnv)
			}

			poolCfg, err := pool.ParseProperties(properties)
			if err != nil {
				return err
			}
			if pooling {
				poolCfg.Enabled = true
			}

			log := logger.New(&logger.Config{Level: logLevel, Format: "console", Output: cmd.ErrOrStderr()})
			reg := pool.NewRegistry(connector.New(connector.WithLogger(log)), pool.WithLogger(log))
			defer reg.Shutdown()
			b := broker.New(reg, broker.WithLogger(log))

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			r := &broker.Request{
				Type:     req.dbType,
				Params:   req.params(),
				Username: user,
				Password: password,
				Pooling:  &poolCfg,
			}
			conn, err := b.Connect(ctx, r)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := conn.Ping(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dialect.Redact(r.URL))
			return nil
		},
	}

	req.register(cmd)
	cmd.Flags().StringVarP(&user, "user", "u", "", "Database username")
	cmd.Flags().StringVar(&passwordEnv, "password-env", "DBBROKER_PASSWORD", "Environment variable holding the password")
	cmd.Flags().BoolVar(&pooling, "pooling", false, "Obtain the connection through a pooled source")
	cmd.Flags().StringToStringVar(&properties, "property", nil, "Pooling property key=value, e.g. oracle.maxTotalPoolSize=50 (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall probe timeout")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
