package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/scrimm/scrimm/internal/utils"
	"github.com/scrimm/scrimm/pkg/detect"
	"github.com/scrimm/scrimm/pkg/whttp"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `
	 _____ _____ _____ _____ _____ _____
	|   __|     | __  |     |     |     |
	|__   |   --|    -|-   -| | | | | | |
	|_____|_____|__|__|_____|_|_|_|_|_|_|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "scrimm",
	Short: "Find the video on a web page and play it in a real player.",
	Long: LOGO + `scrimm looks at a page the way a browser would, picks the one video the page is
actually playing and hands it to mpv, remembering where you stopped.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.scrimm.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to the recents database (default: ~/.config/scrimm/scrimm.sqlite)")

	viper.BindPFlag("http.proxy", rootCmd.PersistentFlags().Lookup("proxy"))
	viper.BindPFlag("db.path", rootCmd.PersistentFlags().Lookup("dbpath"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".scrimm")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("scrimm")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := filepath.Join(home, ".scrimm.yaml")
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

func setDefaults() {
	viper.SetDefault("db.path", "")
	viper.SetDefault("player.command", "mpv")
	viper.SetDefault("player.args", []string{})
	viper.SetDefault("providers.file", "")
	viper.SetDefault("detector.scan_interval", detect.DefaultScanInterval)
	viper.SetDefault("detector.keywords", detect.DefaultKeywords)
	viper.SetDefault("http.proxy", "")
	viper.SetDefault("http.retries", 2)
	viper.SetDefault("http.user_agent", whttp.DefaultUserAgent)
	viper.SetDefault("http.rate", 0)
	viper.SetDefault("bridge.listen", "127.0.0.1:7311")
	viper.SetDefault("bridge.username", "")
	viper.SetDefault("bridge.password", "")
}
