package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cooking-ops/internal/app"
	"cooking-ops/internal/config"
	"cooking-ops/internal/logger"
	"cooking-ops/internal/selection"
	"cooking-ops/internal/shopping"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, cleanup, err := app.Build(ctx, cfg, log, prometheus.NewRegistry())
	if err != nil {
		log.Fatal("failed to initialize application", zap.Error(err))
	}
	defer cleanup()

	if err := run(ctx, application, cfg, os.Args[1], os.Args[2:]); err != nil {
		log.Error("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		cleanup()
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, cfg *config.Config, command string, args []string) error {
	switch command {
	case "recipes":
		return runRecipes(ctx, a, args)
	case "schedule":
		return runSchedule(ctx, a, args)
	case "plan":
		return runPlan(ctx, a, args)
	case "ingest":
		report, err := a.IngestFromGhost(ctx, cfg.CatalogOwnerID)
		if err != nil {
			return err
		}
		fmt.Printf("Fetched %d posts: %d saved, %d unchanged, %d failed, %d removed.\n",
			report.Fetched, report.Saved, report.Skipped, report.Failed, report.Removed)
		return nil
	case "clip":
		if len(args) < 1 {
			return fmt.Errorf("usage: cooking-ops clip <url>")
		}
		res, err := a.ClipURL(ctx, app.DefaultUserID, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Saved %q (%s) as %s.\n", res.Recipe.DishName, res.Recipe.Category, res.Recipe.ID)
		if res.Post != nil {
			fmt.Printf("Published to Ghost: %s\n", res.Post.URL)
		}
		return nil
	case "usage":
		cmd := flag.NewFlagSet("usage", flag.ExitOnError)
		days := cmd.Int("days", 7, "Report the last N days")
		cmd.Parse(args)
		usage, err := a.UsageReport(ctx, *days)
		if err != nil {
			return err
		}
		for _, d := range usage {
			fmt.Printf("%s  prompt=%d completion=%d executions=%d failures=%d\n",
				d.Date, d.TotalPrompt, d.TotalCompletion, d.TotalExecution, d.Failures)
		}
		return nil
	case "metrics-cleanup":
		cmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cmd.Int("days", 30, "Keep records for the last N days")
		cmd.Parse(args)
		affected, err := a.CleanupMetrics(ctx, *days)
		if err != nil {
			return err
		}
		fmt.Printf("Successfully removed %d old metric records.\n", affected)
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runRecipes(ctx context.Context, a *app.App, args []string) error {
	cmd := flag.NewFlagSet("recipes", flag.ExitOnError)
	query := cmd.String("q", "", "Search text")
	rawCategory := cmd.String("category", "all", "Category filter (all, breakfast, lunch, snack)")
	cmd.Parse(args)

	category, err := selection.ParseCategory(*rawCategory)
	if err != nil {
		return err
	}
	view, err := a.Recipes(ctx, app.DefaultUserID, *query, category)
	if err != nil {
		return err
	}
	if !view.IsLive {
		fmt.Printf("Showing demo recipes: %s\n\n", view.Error)
	}
	for _, r := range view.Recipes {
		fmt.Printf("%-10s %-28s %-14s %3d min\n", r.ID, r.DishName, r.Category, r.TotalTime())
	}
	return nil
}

func runSchedule(ctx context.Context, a *app.App, args []string) error {
	cmd := flag.NewFlagSet("schedule", flag.ExitOnError)
	ids := cmd.String("ids", "", "Comma-separated recipe IDs")
	cooks := cmd.Int("cooks", 2, "Number of cooks")
	stoves := cmd.Int("stoves", 4, "Number of stove burners")
	cmd.Parse(args)

	if _, err := a.Recipes(ctx, app.DefaultUserID, "", selection.CategoryAll); err != nil {
		return err
	}
	for _, id := range parseIDs(*ids) {
		if _, err := a.ToggleSelection(ctx, app.DefaultUserID, id); err != nil {
			return err
		}
	}
	if err := a.SetResources(ctx, app.DefaultUserID, *cooks, *stoves); err != nil {
		return err
	}
	schedule, err := a.Optimize(ctx, app.DefaultUserID)
	if err != nil {
		return err
	}
	return printJSON(schedule)
}

// parseIDs splits a comma-separated ID list, dropping blanks and repeats.
func parseIDs(raw string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func runPlan(ctx context.Context, a *app.App, args []string) error {
	cmd := flag.NewFlagSet("plan", flag.ExitOnError)
	days := cmd.Int("days", 7, "Number of days to plan")
	notes := cmd.String("notes", "", "Fridge contents")
	cmd.Parse(args)

	plan, err := a.GeneratePlan(ctx, app.DefaultUserID, *days, *notes, true)
	if err != nil {
		return err
	}
	if err := printJSON(plan); err != nil {
		return err
	}
	items, err := a.BuildShoppingList(ctx, app.DefaultUserID)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(shopping.FormatMarkdown(items))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage() {
	fmt.Println("Usage: cooking-ops <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  recipes [-q text] [-category c]        List the recipe catalog")
	fmt.Println("  schedule -ids a,b [-cooks n] [-stoves n] Build an optimized cooking timeline")
	fmt.Println("  plan [-days n] [-notes text]            Suggest a meal plan and shopping list")
	fmt.Println("  ingest                                  Import recipes from Ghost")
	fmt.Println("  clip <url>                              Import a recipe from a web page")
	fmt.Println("  usage [-days n]                         Show LLM usage")
	fmt.Println("  metrics-cleanup [-days n]               Remove old metric records")
}
