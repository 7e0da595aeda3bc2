package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/alceccentric/mltd-borderbot/internal/channels"
	"github.com/alceccentric/mltd-borderbot/internal/config"
	"github.com/alceccentric/mltd-borderbot/internal/dao"
	"github.com/alceccentric/mltd-borderbot/internal/discord"
	"github.com/alceccentric/mltd-borderbot/internal/jobs"
	"github.com/alceccentric/mltd-borderbot/internal/matsuri"
	"github.com/alceccentric/mltd-borderbot/internal/metrics"
	"github.com/alceccentric/mltd-borderbot/internal/utils"
	"github.com/alceccentric/mltd-borderbot/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Set via ldflags
	Version = "dev"

	configPath string
	cacheMode  string
)

func main() {
	logrus.SetLevel(logrus.InfoLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := rootCmd.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

var rootCmd = &cobra.Command{
	Use:           "borderbot",
	Short:         "Posts MLTD event borders to Discord channels every half hour",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DEFAULT_CONFIG_PATH, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&cacheMode, "mode", "", "Cache mode: local or r2 (overrides cache_mode)")

	showCmd.Flags().Int("event", 0, "Show the border of this event id instead of the current one")
	showCmd.Flags().Bool("json", false, "Print the stored snapshot as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(pullCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cacheMode != "" {
		cfg.CacheMode = cacheMode
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	logrus.SetLevel(cfg.Level())
	return cfg, nil
}

func openCache(ctx context.Context, cfg *config.Config) (dao.Cache, dao.History, error) {
	switch cfg.CacheMode {
	case config.CACHE_MODE_R2:
		cache, err := dao.NewR2Cache(ctx, cfg.R2.Bucket, cfg.R2.Prefix, cfg.R2.Credentials())
		if err != nil {
			return nil, nil, err
		}
		return cache, cache.History(cfg.HistoryDir), nil
	default:
		cache, history, err := dao.NewLocalCache(cfg.CacheRoot, cfg.HistoryDir)
		if err != nil {
			return nil, nil, err
		}
		return cache, history, nil
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Discord and broadcast borders on the half-hour cadence",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.RequireTokens(); err != nil {
			return fmt.Errorf("%w, shutting down", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cache, history, err := openCache(ctx, cfg)
		if err != nil {
			return err
		}
		registry, err := channels.LoadRegistry(ctx, cache)
		if err != nil {
			return err
		}

		session, err := discord.NewSession(cfg.Token)
		if err != nil {
			return err
		}
		broadcaster := channels.NewBroadcaster(registry, discord.NewMessenger(session, session.State), cfg.BroadcastRate)

		client := matsuri.NewMatsurihiMeClient(cfg.APIBaseURL, cfg.APIToken, cfg.RequestTimeout.Std())
		directory := matsuri.NewDirectory(client, time.Now)
		fetcher := matsuri.NewFetcher(client)
		store := jobs.NewStore(cache)

		bot := discord.NewBot(session, registry, broadcaster, jobs.NewLookup(store, directory, fetcher), cfg.Texts, cfg.AnnouncementPath)
		bot.Attach(ctx, session)
		if err := session.Open(); err != nil {
			return fmt.Errorf("failed to connect to discord: %w", err)
		}
		defer session.Close()

		if cfg.MetricsAddr != "" {
			go func() {
				if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
					logrus.WithError(err).Error("Metrics server stopped")
				}
			}()
		}

		scheduler := jobs.NewScheduler(jobs.SchedulerConfig{
			Offset:      cfg.Delay.Std(),
			MinimumWait: cfg.MinimumWait.Std(),
			RetryDelay:  cfg.Retry.Std(),
		}, directory, fetcher, jobs.NewUpdater(store, broadcaster, history), nil)

		err = scheduler.Run(ctx)
		if errors.Is(err, context.Canceled) {
			logrus.Info("Shutting down")
			return nil
		}
		return err
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current border, or the border of a past event",
	RunE: func(cmd *cobra.Command, args []string) error {
		eventId, _ := cmd.Flags().GetInt("event")
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		cache, _, err := openCache(ctx, cfg)
		if err != nil {
			return err
		}
		client := matsuri.NewMatsurihiMeClient(cfg.APIBaseURL, cfg.APIToken, cfg.RequestTimeout.Std())
		lookup := jobs.NewLookup(jobs.NewStore(cache), matsuri.NewDirectory(client, time.Now), matsuri.NewFetcher(client))

		var id *int
		if cmd.Flags().Changed("event") {
			id = &eventId
		}

		if asJSON {
			var doc models.BorderDocument
			if id == nil {
				doc, _, err = lookup.Current(ctx)
			} else {
				doc, err = lookup.Past(ctx, *id)
			}
			if err != nil {
				return err
			}
			return utils.WriteJSONFile(os.Stdout, models.Serialize(doc), true)
		}

		text, err := lookup.Render(ctx, id)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download the R2 cache into cache_root",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.R2.Endpoint == "" {
			return errors.New("R2_ENDPOINT is not set")
		}
		ctx := cmd.Context()
		client, err := dao.NewS3Client(ctx, cfg.R2.Credentials())
		if err != nil {
			return err
		}
		n, err := dao.Mirror(ctx, client, cfg.R2.Bucket, cfg.R2.Prefix, cfg.CacheRoot)
		logrus.Infof("Downloaded %d objects into %s", n, cfg.CacheRoot)
		return err
	},
}
