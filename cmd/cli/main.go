package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/gitee-activity-harvester/internal/aggregator"
	"github.com/kurihiro0119/gitee-activity-harvester/internal/collector"
	"github.com/kurihiro0119/gitee-activity-harvester/internal/config"
	"github.com/kurihiro0119/gitee-activity-harvester/internal/domain"
	"github.com/kurihiro0119/gitee-activity-harvester/internal/gitee"
	"github.com/kurihiro0119/gitee-activity-harvester/internal/storage"
	"github.com/kurihiro0119/gitee-activity-harvester/internal/storage/postgres"
	"github.com/kurihiro0119/gitee-activity-harvester/internal/storage/sqlite"
)

var (
	cfg *config.Config

	categoryFlags    []string
	fromFlag         string
	toFlag           string
	filterClassified bool
	jsonOutput       bool
)

var rootCmd = &cobra.Command{
	Use:   "gitee-harvest",
	Short: "Harvest activity data from Gitee repositories",
	Long:  "Incrementally fetches issues, pull requests and repository snapshots from the Gitee API and stores them locally.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		return cfg.Validate()
	},
}

var harvestCmd = &cobra.Command{
	Use:   "harvest <owner> <repo>",
	Short: "Fetch repository activity and store it",
	Args:  cobra.ExactArgs(2),
	RunE:  runHarvest,
}

var showCmd = &cobra.Command{
	Use:   "show <owner> <repo>",
	Short: "Show stored activity for a repository",
	Args:  cobra.ExactArgs(2),
	RunE:  runShow,
}

func init() {
	harvestCmd.Flags().StringSliceVarP(&categoryFlags, "category", "c", nil, "categories to fetch (issue, pull_request, repository; default all)")
	harvestCmd.Flags().StringVar(&fromFlag, "from", "", "only fetch items updated on or after this date (YYYY-MM-DD or RFC3339)")
	harvestCmd.Flags().StringVar(&toFlag, "to", "", "only fetch items updated on or before this date (YYYY-MM-DD or RFC3339)")
	harvestCmd.Flags().BoolVar(&filterClassified, "filter-classified", false, "leave personal data fields empty and skip user lookups")
	harvestCmd.Flags().BoolVar(&jsonOutput, "json", false, "print each harvested item as a JSON line instead of storing progress")

	showCmd.Flags().StringSliceVarP(&categoryFlags, "category", "c", nil, "categories to show (default all)")
	showCmd.Flags().StringVar(&fromFlag, "from", "", "only show items updated on or after this date")
	showCmd.Flags().StringVar(&toFlag, "to", "", "only show items updated on or before this date")

	rootCmd.AddCommand(harvestCmd)
	rootCmd.AddCommand(showCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runHarvest(cmd *cobra.Command, args []string) error {
	owner, repo := args[0], args[1]
	ctx := context.Background()

	categories, err := parseCategories(categoryFlags)
	if err != nil {
		return err
	}
	from, to, err := parseWindow(fromFlag, toFlag)
	if err != nil {
		return err
	}

	client, err := gitee.NewClient(ctx, gitee.Config{
		Owner:           owner,
		Repository:      repo,
		Tokens:          cfg.APITokens,
		APIURL:          cfg.APIURL,
		RefreshTokenURL: cfg.RefreshTokenURL,
		PerPage:         cfg.PerPage,
		MaxRetries:      cfg.MaxRetries,
		SleepTime:       cfg.SleepTime,
	})
	if err != nil {
		return err
	}

	store, err := getStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	harvester := collector.NewHarvester(client)
	encoder := json.NewEncoder(os.Stdout)
	counts := make(map[domain.Category]int)

	for _, category := range categories {
		slog.Info("harvesting", "owner", owner, "repo", repo, "category", category)

		for item, err := range harvester.Fetch(ctx, category, from, to, filterClassified) {
			if err != nil {
				return err
			}

			if jsonOutput {
				if err := encoder.Encode(item.Fields); err != nil {
					return err
				}
			}

			updatedOn, err := item.UpdatedOn()
			if err != nil {
				return err
			}
			record := &domain.Record{
				ID:          uuid.New().String(),
				Owner:       owner,
				Repo:        repo,
				Category:    item.Category,
				UID:         item.UID(),
				UpdatedOn:   updatedOn,
				Fields:      item.Fields,
				HarvestedAt: time.Now().UTC(),
			}
			if err := store.SaveItem(ctx, record); err != nil {
				return err
			}
			counts[item.Category]++
		}
	}

	if !jsonOutput {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Category", "Items"})
		total := 0
		for _, category := range domain.Categories {
			if n, ok := counts[category]; ok {
				table.Append([]string{string(category), strconv.Itoa(n)})
				total += n
			}
		}
		table.SetFooter([]string{"Total", strconv.Itoa(total)})
		table.Render()
	}

	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	owner, repo := args[0], args[1]
	ctx := context.Background()

	from, to, err := parseWindow(fromFlag, toFlag)
	if err != nil {
		return err
	}
	timeRange := domain.TimeRange{Start: from, End: to}

	var category domain.Category
	if len(categoryFlags) == 1 {
		category, err = domain.ParseCategory(categoryFlags[0])
		if err != nil {
			return err
		}
	}

	store, err := getStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.GetItems(ctx, owner, repo, category, timeRange)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Category", "UID", "Updated On", "Title"})
	for _, record := range records {
		title, _ := record.Fields["title"].(string)
		if len(title) > 60 {
			title = title[:57] + "..."
		}
		table.Append([]string{
			string(record.Category),
			record.UID,
			record.UpdatedOn.Format("2006-01-02 15:04"),
			title,
		})
	}
	table.Render()

	summary := aggregator.Summarize(owner, repo, records, timeRange)
	fmt.Printf("\n%d items", summary.Total)
	for _, c := range domain.Categories {
		if n := summary.ByCategory[c]; n > 0 {
			fmt.Printf("  %s=%d", c, n)
		}
	}
	fmt.Println()

	return nil
}

func getStorage() (storage.Storage, error) {
	switch cfg.StorageType {
	case "postgres":
		return postgres.NewPostgresStorage(cfg.PostgresURL)
	default:
		return sqlite.NewSQLiteStorage(cfg.SQLitePath)
	}
}

func parseCategories(flags []string) ([]domain.Category, error) {
	if len(flags) == 0 {
		return domain.Categories, nil
	}
	categories := make([]domain.Category, 0, len(flags))
	for _, raw := range flags {
		category, err := domain.ParseCategory(raw)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, nil
}

func parseWindow(fromRaw, toRaw string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error

	if fromRaw != "" {
		if from, err = parseDate(fromRaw); err != nil {
			return from, to, fmt.Errorf("invalid --from date %q: %w", fromRaw, err)
		}
	}
	if toRaw != "" {
		if to, err = parseDate(toRaw); err != nil {
			return from, to, fmt.Errorf("invalid --to date %q: %w", toRaw, err)
		}
	}
	return from, to, nil
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
