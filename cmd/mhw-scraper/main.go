package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/andrew/mhw-rag/pkg/app"
	"github.com/andrew/mhw-rag/pkg/config"
	"github.com/andrew/mhw-rag/pkg/scraper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "😡 %v\n", err)
		os.Exit(1)
	}
}

// flagKeys binds flags over config keys
var flagKeys = map[string]string{
	"data_dir":        "data-dir",
	"scraper.fetcher": "fetcher",
}

// recentEntries is how many sync log entries --log prints
const recentEntries = 10

func newRootCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
		list       bool
		showLog    bool
	)

	cmd := &cobra.Command{
		Use:   "mhw-scraper",
		Short: "Download the latest marine heatwave forecast discussion",
		Long: `Fetches the NOAA PSL marine heatwave report, extracts the forecast
discussion and saves it as markdown, one file per forecast date. A
discussion that is already saved is never rewritten. Every attempt is
recorded in the sync log.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.Setup(app.Options{
				Tool:       "mhw-scraper",
				ConfigPath: configPath,
				Debug:      debug,
				Flags:      cmd.Flags(),
				Keys:       flagKeys,
			})
			if err != nil {
				return err
			}
			defer env.Close()

			cfg := env.Config
			archive := scraper.Archive{Dir: cfg.DataDir}
			syncLog := scraper.SyncLog{Path: cfg.Scraper.SyncLog, Cap: cfg.Scraper.SyncLogCap}
			out := cmd.OutOrStdout()

			switch {
			case list:
				return listDiscussions(out, archive)
			case showLog:
				printLog(out, syncLog)
				return nil
			}

			s := scraper.New(newFetcher(cfg), cfg.Scraper.URL, archive, syncLog, env.Logger.Logger)
			fmt.Fprintln(out, "🌊 Starting marine heatwave discussion scraping...")
			res, err := s.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("scraping failed: %w", err)
			}
			if res.Status == scraper.StatusAlreadyExists {
				fmt.Fprintf(out, "\n📋 Discussion for %s already exists - skipped scraping\n", res.ForecastDate)
				return nil
			}
			color.New(color.FgGreen).Fprintln(out, "\n🎉 Successfully scraped marine heatwave discussion!")
			fmt.Fprintf(out, "📁 Data saved in: %s\n", res.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file (yaml, json or toml)")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.Flags().BoolVar(&list, "list", false, "list local discussions only")
	cmd.Flags().BoolVar(&showLog, "log", false, "show recent scraping activity")
	cmd.Flags().String("data-dir", "data", "directory for saved discussions")
	cmd.Flags().String("fetcher", "http", "page fetcher: http or chromedp")
	return cmd
}

func newFetcher(cfg *config.Config) scraper.Fetcher {
	if cfg.Scraper.Fetcher == "chromedp" {
		return &scraper.BrowserFetcher{Timeout: cfg.Scraper.Timeout}
	}
	return scraper.NewHTTPFetcher(cfg.Scraper.Timeout, "")
}

func listDiscussions(out io.Writer, archive scraper.Archive) error {
	files, err := archive.List()
	if err != nil {
		return fmt.Errorf("listing discussions: %w", err)
	}
	if len(files) == 0 {
		fmt.Fprintln(out, "📁 No local discussions found")
		return nil
	}
	fmt.Fprintln(out, "📁 Local marine heatwave discussions:")
	for _, f := range files {
		fmt.Fprintf(out, "  - %s (%s bytes)\n", f.Name, groupDigits(f.Size))
	}
	return nil
}

func printLog(out io.Writer, syncLog scraper.SyncLog) {
	entries := syncLog.Recent(recentEntries)
	if len(entries) == 0 {
		fmt.Fprintln(out, "📋 No scraping activity logged yet")
		return
	}
	fmt.Fprintln(out, "📋 Recent scraping activity (newest first):")
	for _, e := range entries {
		fmt.Fprintf(out, "  %s %s - %s (%s)\n",
			statusIcon(e.Status), e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.ForecastDate, e.Status)
	}
}

func statusIcon(status string) string {
	switch status {
	case scraper.StatusSuccess:
		return "✅"
	case scraper.StatusAlreadyExists:
		return "⏭️"
	}
	return "❌"
}

// groupDigits formats n with thousands separators
func groupDigits(n int64) string {
	s := fmt.Sprint(n)
	if n < 0 {
		return "-" + groupDigits(-n)
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}
