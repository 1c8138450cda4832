package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/insomniacslk/bbcs/pkg/chat"
	"github.com/insomniacslk/bbcs/pkg/codesearch"
	"github.com/kirsle/configdir"
	"github.com/ollama/ollama/api"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	progname         = "bbcs"
	defaultModel     = "llama3.3"
	defaultOllamaURL = "http://localhost:11434"
)

var (
	configFile      string
	flagLogLevel    string
	flagWorkspace   string
	flagModel       string
	flagPrompt      string
	flagTemperature float64
	flagNumCtx      int
	flagDebug       bool
	flagDebugJSON   bool
	flagInteractive bool
	flagAPIURL      string
	flagOllamaURL   string
	flagMaxPages    int
	flagCacheDir    string
	flagCacheTTL    time.Duration
	flagNoCache     bool

	textBold = color.New(color.Bold)
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Logging level (debug, info, warning, error)")
	rootCmd.Flags().StringVarP(&flagWorkspace, "workspace", "w", "", "Bitbucket workspace name")
	rootCmd.Flags().StringVarP(&flagModel, "model", "m", defaultModel, "Ollama model to use")
	rootCmd.Flags().StringVarP(&flagPrompt, "prompt", "p", "", "Prompt to send to the model")
	rootCmd.Flags().Float64VarP(&flagTemperature, "temperature", "t", 0.2, "Sampling temperature for the model")
	rootCmd.Flags().IntVar(&flagNumCtx, "n_ctx", 8192, "Context window size in tokens")
	rootCmd.Flags().BoolVarP(&flagDebug, "debug", "d", false, "Print the formatted search results for the prompt and exit")
	rootCmd.Flags().BoolVarP(&flagDebugJSON, "debug_json", "D", false, "Print the raw JSON search results for the prompt and exit")
	rootCmd.Flags().BoolVarP(&flagInteractive, "interactive", "i", false, "Drop into an interactive command loop after the first response")
	rootCmd.Flags().StringVar(&flagAPIURL, "api-url", codesearch.DefaultAPIURL, "Bitbucket API URL")
	rootCmd.Flags().StringVar(&flagOllamaURL, "ollama-url", defaultOllamaURL, "Ollama server URL")
	rootCmd.Flags().IntVar(&flagMaxPages, "max-pages", codesearch.DefaultMaxPages, "Maximum number of result pages to fetch per query")
	rootCmd.Flags().StringVar(&flagCacheDir, "cache-dir", codesearch.DefaultCacheDir, "Directory holding the page cache")
	rootCmd.Flags().DurationVar(&flagCacheTTL, "cache-ttl", codesearch.DefaultCacheTTL, "Expiration of cached page responses")
	rootCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Disable the page cache")
}

func initConfig() {
	level, err := logrus.ParseLevel(flagLogLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level %q: %v", flagLogLevel, err)
	}
	logrus.SetLevel(level)

	if configFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath(configdir.LocalConfig(progname))
	}

	viper.AutomaticEnv()
	if err := viper.BindEnv("username", "APP_USERNAME"); err != nil {
		logrus.Fatalf("Failed to bind APP_USERNAME: %v", err)
	}
	if err := viper.BindEnv("password", "APP_PASSWORD"); err != nil {
		logrus.Fatalf("Failed to bind APP_PASSWORD: %v", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		// The config file is optional, flags and environment variables are
		// enough to run.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logrus.Fatalf("Failed to read config file: %v", err)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:           progname,
	Short:         fmt.Sprintf("%q searches code on Bitbucket Cloud through a local LLM", progname),
	Long:          fmt.Sprintf("%s lets a local Ollama model search code in a Bitbucket Cloud workspace. The model is given tools backed by the Bitbucket code search API and a prompt, and its response is streamed to standard output. Page responses are cached on disk to stay clear of API rate limits.", progname),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func run() error {
	// Configuration errors are raised before any network activity.
	if flagPrompt == "" {
		return fmt.Errorf("a prompt must be provided")
	}
	if flagWorkspace == "" {
		flagWorkspace = viper.GetString("workspace")
	}
	config := codesearch.Config{
		APIURL:    flagAPIURL,
		Workspace: flagWorkspace,
		Username:  viper.GetString("username"),
		Password:  viper.GetString("password"),
		MaxPages:  flagMaxPages,
		CacheDir:  flagCacheDir,
		CacheTTL:  flagCacheTTL,
		NoCache:   flagNoCache,
	}
	bitbucket, err := codesearch.New(config)
	if err != nil {
		return fmt.Errorf("failed to set up Bitbucket client: %w", err)
	}
	defer bitbucket.Close()

	if flagDebugJSON {
		results, err := bitbucket.RawMatches(flagPrompt)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		fmt.Println(results)
		return nil
	}
	if flagDebug {
		results, err := bitbucket.Matches(flagPrompt, true)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		for _, result := range results {
			fmt.Printf("File: %s\n", textBold.Sprint(result.Name))
			fmt.Println(result.Matches)
			fmt.Println(strings.Repeat("-", 40))
		}
		return nil
	}

	ollamaURL, err := url.Parse(flagOllamaURL)
	if err != nil {
		return fmt.Errorf("invalid Ollama URL %q: %w", flagOllamaURL, err)
	}
	client := api.NewClient(ollamaURL, http.DefaultClient)
	conversation := chat.NewConversation(client, flagModel, bitbucket, chat.Options{
		Temperature: flagTemperature,
		NumCtx:      flagNumCtx,
	})
	ctx := context.Background()

	if flagInteractive {
		shell := chat.NewShell(conversation, os.Stdin, os.Stdout)
		if err := shell.Prompt(ctx, flagPrompt); err != nil {
			return fmt.Errorf("conversation failed: %w", err)
		}
		return shell.Run(ctx)
	}

	if err := conversation.Send(ctx, flagPrompt, os.Stdout); err != nil {
		return fmt.Errorf("conversation failed: %w", err)
	}
	fmt.Println()
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatalf("Failed to execute command: %v", err)
	}
}
