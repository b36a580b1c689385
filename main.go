package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"gorm.io/gorm"

	"miniTweet/crud"
	"miniTweet/http"
)

// rootFlags holds the flags shared by all commands.
type rootFlags struct {
	config string
	prod   bool
}

// main is the app's entry point.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	root := &cobra.Command{
		Use:          "minitweet",
		Short:        "A tiny twitter: post tweets, read the feed, like tweets",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.config, "config", ".config.json", "Path to a json or yaml config file")
	pf.BoolVar(&flags.prod, "prod", false, "Run in production. The config file is then required.")

	root.AddCommand(
		newServeCmd(&flags),
		newMigrateCmd(&flags),
		newDeleteUserCmd(&flags),
	)
	return root
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate the database and serve the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(flags)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.services.AutoMigrate(); err != nil {
				return err
			}

			server, err := http.NewServer(http.Config{
				IsProd:    a.cfg.IsProd(),
				ClientURL: a.cfg.ClientURL,
				CSRFKey:   []byte(a.cfg.CSRFKey),
				Github:    githubOAuth(a.cfg.Github),
			}, a.services)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx, ":"+strconv.Itoa(a.cfg.Port))
		},
	}
}

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(flags)
			if err != nil {
				return err
			}
			defer a.close()

			if reset {
				if a.cfg.IsProd() {
					return errors.New("refusing to reset the production database")
				}
				zap.L().Warn("dropping all tables")
				return a.services.DestructiveReset()
			}
			return a.services.AutoMigrate()
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "Drop all tables before migrating")
	return cmd
}

func newDeleteUserCmd(flags *rootFlags) *cobra.Command {
	var id int
	cmd := &cobra.Command{
		Use:   "delete-user",
		Short: "Delete a user along with their tweets and likes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(flags)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.services.User.Delete(cmd.Context(), id); err != nil {
				return err
			}
			zap.L().Info("deleted user", zap.Int("id", id))
			return nil
		},
	}
	cmd.Flags().IntVar(&id, "id", 0, "ID of the user to delete")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

// app bundles what every command needs.
type app struct {
	cfg      Config
	logger   *zap.Logger
	db       *gorm.DB
	services *crud.Services
}

// setup loads the config, installs the logger, opens the database and starts the crud services.
func setup(flags *rootFlags) (*app, error) {
	cfg, err := LoadConfig(flags.config, flags.prod)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.IsProd())
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	db, err := OpenDB(cfg.Database.ConnectionInfo(), cfg.IsProd())
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	services, err := crud.NewServices(db,
		crud.WithUser(cfg.Pepper, cfg.HMACKey),
		crud.WithOAuth(),
		crud.WithTweet(),
		crud.WithLike(),
	)
	if err != nil {
		_ = CloseDB(db)
		_ = logger.Sync()
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, db: db, services: services}, nil
}

func (a *app) close() {
	if err := CloseDB(a.db); err != nil {
		zap.L().Error("closing database", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// newLogger builds the process-wide logger and installs it as zap's global logger.
func newLogger(isProd bool) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if isProd {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// githubOAuth returns the oauth config for signing in with Github, or nil if no
// Github app is configured.
func githubOAuth(gc GithubConfig) *oauth2.Config {
	if gc.ID == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     gc.ID,
		ClientSecret: gc.Secret,
		RedirectURL:  gc.RedirectURL,
		Scopes:       []string{"read:user", "user:email"},
		Endpoint:     github.Endpoint,
	}
}
