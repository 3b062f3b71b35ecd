package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"quarterload/server"
	"quarterload/util"
)

// Version is overridden at build time
var Version = "dev"

var (
	log     = util.NewLogger("main")
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:     "quarterload",
	Short:   "Quarter-hour power averaging daemon",
	Version: Version,
	Run:     runRoot,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default \"quarterload.yaml\" in ., $HOME or /etc)")
	rootCmd.PersistentFlags().StringP("log", "l", "info", "Log level (fatal, error, warn, info, debug, trace)")
	bind(rootCmd.PersistentFlags().Lookup("log"))

	rootCmd.Flags().StringP("uri", "u", "0.0.0.0:7070", "Listen address")
	bind(rootCmd.Flags().Lookup("uri"))
}

// bind exposes a flag through viper, precedence flag > config file > default
func bind(flag *pflag.Flag) {
	_ = viper.BindPFlag(flag.Name, flag)
}

// initConfig reads the config file and environment variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("quarterload")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.AddConfigPath("/etc")
	}

	viper.AutomaticEnv()
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// clientID returns a unique mqtt client id
func clientID() string {
	return fmt.Sprintf("quarterload-%s", uuid.NewString()[:8])
}

func runRoot(cmd *cobra.Command, args []string) {
	util.LogLevel(viper.GetString("log"), nil)
	log.INFO.Printf("quarterload %s", Version)

	var conf config
	if err := loadConfigFile(&conf); err != nil {
		log.FATAL.Fatal(err)
	}

	// re-apply per-area levels from the config file
	util.LogLevel(viper.GetString("log"), conf.Levels)

	if err := configureEnvironment(conf); err != nil {
		log.FATAL.Fatal(err)
	}

	site, err := configureSite(conf)
	if err != nil {
		log.FATAL.Fatal(err)
	}
	site.DumpConfig()

	// fan the parameter stream out to the sinks
	tee := new(util.Tee)

	cache := util.NewCache()
	go cache.Run(tee.Attach())

	hub := server.NewSocketHub()
	go hub.Run(tee.Attach(), cache)

	go new(server.Prometheus).Run(tee.Attach())

	if conf.Influx.URL != "" {
		influx := server.NewInfluxClient(
			conf.Influx.URL,
			conf.Influx.Token,
			conf.Influx.Org,
			conf.Influx.User,
			conf.Influx.Password,
			conf.Influx.Database,
		)
		go influx.Run(tee.Attach())
	}

	if conf.Mqtt.Broker != "" && conf.Mqtt.Topic != "" {
		publisher := server.NewMQTT(conf.Mqtt.Topic)
		go publisher.Run(tee.Attach())
	}

	if conf.Redis.Addr != "" {
		redis, err := server.NewRedisClient(conf.Redis.Addr, conf.Redis.Password, conf.Redis.DB, conf.Redis.TTL)
		if err != nil {
			log.FATAL.Fatal(err)
		}
		go redis.Run(tee.Attach())
	}

	if len(conf.Kafka.Brokers) > 0 {
		kafka := server.NewKafka(conf.Kafka.Brokers, conf.Kafka.Topic)
		go kafka.Run(tee.Attach())
	}

	valueChan := make(chan util.Param)
	go tee.Run(valueChan)

	pushChan := configureMessengers(conf.Messaging, cache)

	site.Prepare(valueChan, pushChan)
	valueChan <- util.Param{Key: "version", Val: Version}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := site.Run(ctx); err != nil {
			log.ERROR.Println(err)
		}
	}()

	uri := viper.GetString("uri")
	httpd := server.NewHTTPd(uri, site, hub, cache)

	go func() {
		<-ctx.Done()
		timeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpd.Shutdown(timeout)
	}()

	log.INFO.Printf("listening at %s", uri)

	if err := httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.FATAL.Fatal(err)
	}
}
