package telegram

import (
	"errors"
	"fmt"
	"strings"

	"cooking-ops/internal/app"
	"cooking-ops/internal/llm"
	"cooking-ops/internal/metrics"
	"cooking-ops/internal/planner"
	"cooking-ops/internal/recipe"
	"cooking-ops/internal/scheduler"
	"cooking-ops/internal/selection"
	"cooking-ops/internal/session"
	"cooking-ops/internal/shopping"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// esc escapes user and model supplied text for Markdown replies.
func esc(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

const helpText = `👩‍🍳 *Kitchen Ops*

/recipes [search] - browse the catalog
/category <all|breakfast|lunch|snack> - filter by category
/pick <n> - select or deselect recipe n
/resources <cooks> <stoves> - set kitchen resources
/optimize - build a cooking timeline for the selection
/plan <days> [fridge contents] - suggest a meal plan
/replan <days> [fridge contents] - regenerate even if a plan is running
/servings <breakfast> <lunch> <snack> - people per meal
/list - build the shopping list from the plan
/check <n> - tick item n
/clear - remove ticked items
/debug - recent session events

Send a recipe URL to add it to the catalog.`

var slotLabels = map[planner.Slot]string{
	planner.SlotBreakfast:   "🍳 Breakfast",
	planner.SlotLunchDinner: "🍲 Lunch/Dinner",
	planner.SlotSnack:       "🌙 Snack",
}

func formatRecipeList(view app.RecipeView, selected []recipe.Recipe, category recipe.Category) string {
	var sb strings.Builder
	if category == selection.CategoryAll {
		sb.WriteString("📖 *Recipes*\n")
	} else {
		fmt.Fprintf(&sb, "📖 *Recipes* (%s)\n", category)
	}
	if !view.IsLive {
		sb.WriteString("_Showing demo recipes")
		if view.Error != "" {
			fmt.Fprintf(&sb, ": %s", esc(view.Error))
		}
		sb.WriteString("_\n")
	}
	sb.WriteString("\n")

	if len(view.Recipes) == 0 {
		sb.WriteString("No recipes match.")
		return sb.String()
	}
	for i, r := range view.Recipes {
		box := "▫️"
		if selection.Contains(selected, r.ID) {
			box = "✅"
		}
		fmt.Fprintf(&sb, "%s %d. *%s* (%s, %d min)\n", box, i+1, esc(r.DishName), esc(string(r.Category)), r.TotalTime())
	}
	fmt.Fprintf(&sb, "\n%d selected. Use /pick <n> to toggle.", len(selected))
	return sb.String()
}

func formatSchedule(s *scheduler.OptimizedSchedule) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "⏱ *Cooking Timeline* (%d min total)\n\n", s.TotalDuration)
	for _, step := range s.Timeline {
		fmt.Fprintf(&sb, "`T+%d` %s", step.TimeOffset, esc(step.Action))
		if len(step.InvolvedRecipes) > 0 {
			fmt.Fprintf(&sb, " _(%s)_", esc(strings.Join(step.InvolvedRecipes, ", ")))
		}
		if len(step.Assignees) > 0 {
			cooks := make([]string, 0, len(step.Assignees))
			for _, a := range step.Assignees {
				cooks = append(cooks, fmt.Sprintf("#%d", a))
			}
			fmt.Fprintf(&sb, " 👩‍🍳%s", strings.Join(cooks, ","))
		}
		if step.ResourceUsed != "" {
			fmt.Fprintf(&sb, " 🔥%s", esc(step.ResourceUsed))
		}
		if step.IsParallel {
			sb.WriteString(" ⇉")
		}
		sb.WriteString("\n")
	}
	if len(s.CriticalWarnings) > 0 {
		sb.WriteString("\n⚠️ *Warnings*\n")
		for _, w := range s.CriticalWarnings {
			fmt.Fprintf(&sb, "• %s\n", esc(w))
		}
	}
	return sb.String()
}

func formatPlan(plan []planner.MealPlanDay) string {
	var sb strings.Builder
	sb.WriteString("📅 *Meal Plan*\n")
	for _, day := range plan {
		fmt.Fprintf(&sb, "\n*%s*\n", day.Date)
		for _, slot := range planner.Slots {
			name := "—"
			if r := day.Recipe(slot); r != nil {
				name = esc(r.DishName)
			}
			fmt.Fprintf(&sb, "%s: %s\n", slotLabels[slot], name)
		}
	}
	sb.WriteString("\nUse /list to build the shopping list.")
	return sb.String()
}

func formatUsage(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		fmt.Fprintf(&sb, "• *%s*: %d tokens (%d execs, %d failed)\n", esc(d.Date), d.TotalPrompt+d.TotalCompletion, d.TotalExecution, d.Failures)
	}

	sb.WriteString("\n🧠 *System Health*\n")
	fmt.Fprintf(&sb, "• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB)
	fmt.Fprintf(&sb, "• Goroutines: %d\n", health.Goroutines)
	fmt.Fprintf(&sb, "• Uptime: %s\n", esc(health.Uptime))
	fmt.Fprintf(&sb, "• Disk Data: %s\n", esc(health.DataDiskSize))
	return sb.String()
}

func formatDebugLog(events []session.Event, limit int) string {
	if len(events) == 0 {
		return "_No events yet._"
	}
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	var sb strings.Builder
	sb.WriteString("🪵 *Recent events*\n```\n")
	for _, e := range events {
		fmt.Fprintf(&sb, "%s %s\n", e.At.Format("15:04:05"), strings.ReplaceAll(e.Message, "`", "'"))
	}
	sb.WriteString("```")
	return sb.String()
}

// formatError turns an error into a message with a remediation hint.
func formatError(err error) string {
	switch {
	case errors.Is(err, llm.ErrCredentialMissing):
		return "🔑 The optimization service is not configured. Set an API key and try again."
	case errors.Is(err, llm.ErrServiceUnreachable):
		return "📡 Cannot reach the optimization service. Check the connection and try again."
	case errors.Is(err, session.ErrBusy):
		return "⏳ Still working on the previous request."
	case errors.Is(err, app.ErrSuperseded):
		return "↪️ A newer request replaced this one."
	case llm.IsRequestFailed(err):
		safeErr := strings.ReplaceAll(err.Error(), "`", "'")
		return fmt.Sprintf("❌ *The request failed:*\n```\n%s\n```\nYour previous results are unchanged.", safeErr)
	default:
		return "⚠️ " + esc(err.Error())
	}
}

// formatShoppingList renders the list with item names and units escaped.
func formatShoppingList(items []shopping.Item) string {
	escaped := make([]shopping.Item, len(items))
	for i, it := range items {
		it.Name = esc(it.Name)
		it.Unit = esc(it.Unit)
		escaped[i] = it
	}
	return shopping.FormatMarkdown(escaped)
}
