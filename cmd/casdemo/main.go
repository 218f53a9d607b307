// Command casdemo is a small web application protected by CAS.
//
//	GET /hello        prints <user>@<host>
//	GET /logout       drops the local session
//	GET /failed.html  failure page
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/three-plus-three/casauth/filter"
	"github.com/three-plus-three/casauth/filter/echo_cas"
	"github.com/three-plus-three/casauth/resolver"
	"github.com/three-plus-three/casauth/session"
)

const (
	guest   = "guest"
	unknown = "unknown"
)

func main() {
	var configFile string
	config := defaultConfig()

	flag.StringVar(&configFile, "config", "", "the path of the yaml config file")
	listenAt := flag.String("listen", "", "listen address, overrides the config file")
	dbType := flag.String("db.type", "", "database of the users table, e.g. postgres or sqlite")
	dbURL := flag.String("db.url", "", "data source of the users table")
	store := flag.String("session.store", "", "sqlite file keeping the sessions across restarts")

	flag.Parse()
	if nil != flag.Args() && 0 != len(flag.Args()) {
		flag.Usage()
		return
	}

	if err := readConfig(configFile, config); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *listenAt != "" {
		config.ListenAt = *listenAt
	}
	if *dbType != "" {
		config.Db.DbType = *dbType
	}
	if *dbURL != "" {
		config.Db.DbURL = *dbURL
	}
	if *store != "" {
		config.Session.Store = *store
	}

	if err := run(config); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newResolver(config *Config) (resolver.Resolver, func(), error) {
	if config.Db.DbType == "" {
		return resolver.NewMap(config.ResourceIDs), func() {}, nil
	}
	params := map[string]interface{}{}
	if config.Db.QuerySQL != "" {
		params["querySQL"] = config.Db.QuerySQL
	}
	db, err := resolver.OpenDB(config.Db.DbType, config.Db.DbURL, params)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { db.Close() }, nil
}

func run(config *Config) error {
	logger, err := newLogger(config.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	res, closeResolver, err := newResolver(config)
	if err != nil {
		return err
	}
	defer closeResolver()

	opt := &session.Options{
		CookieName:     config.Session.CookieName,
		CookieHTTPOnly: true,
		MaxInactive:    config.Session.MaxInactive,
		Logger:         logger.Named("session"),
	}
	if config.Session.SecretKey != "" {
		opt.SecretKey = []byte(config.Session.SecretKey)
	}
	if config.Session.Store != "" {
		if config.Session.SecretKey == "" {
			logger.Warn("session.secret_key is empty, stored sessions can't be resumed after a restart")
		}
		st, err := session.NewSQLiteStore(config.Session.Store)
		if err != nil {
			return err
		}
		opt.Store = st
	}
	sessions := session.NewManager(opt)

	auth, err := filter.New(&filter.Options{
		Config:   config.CAS,
		Resolver: res,
		Sessions: sessions,
		Logger:   logger.Named("cas"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sessions.Open(ctx); err != nil {
		return err
	}
	sessions.Start(ctx)
	defer sessions.Close()

	names := map[int64]string{}
	for name, id := range config.ResourceIDs {
		names[id] = name
	}
	defaultResourceID := auth.Config().DefaultResourceID

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(echo_cas.CAS(auth))

	e.GET("/hello", func(c echo.Context) error {
		resourceID := echo_cas.ResourceID(c)
		name, ok := names[resourceID]
		if resourceID == defaultResourceID {
			name = guest
		} else if !ok {
			name = unknown
		}
		host, _, err := net.SplitHostPort(c.Request().Host)
		if err != nil {
			host = c.Request().Host
		}
		return c.String(http.StatusOK, name+"@"+host)
	})
	e.GET("/logout", echo_cas.SessionLogout(sessions, "/hello"))
	e.GET("/failed.html", func(c echo.Context) error {
		return c.HTML(http.StatusUnauthorized, "<html><body>CAS authentication failed</body></html>")
	})

	errc := make(chan error, 1)
	go func() {
		logger.Info("casdemo is listening", zap.String("address", config.ListenAt))
		errc <- e.Start(config.ListenAt)
	}()

	select {
	case err := <-errc:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
