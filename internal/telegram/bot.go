package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cooking-ops/internal/app"
	"cooking-ops/internal/config"
	"cooking-ops/internal/metrics"
	"cooking-ops/internal/planner"
	"cooking-ops/internal/selection"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// requestTimeout bounds a single command including its model call.
const requestTimeout = 2 * time.Minute

// Sender is the part of the Telegram API the bot talks to.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot exposes the kitchen assistant over Telegram.
type Bot struct {
	api    *tgbotapi.BotAPI
	sender Sender
	app    *app.App
	cfg    *config.Config
	log    *zap.Logger
}

// NewBot authorizes against the Telegram API and, when a webhook URL is
// configured, registers it.
func NewBot(cfg *config.Config, application *app.App, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	log.Info("authorized on telegram", zap.String("account", api.Self.UserName))

	if cfg.TelegramWebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
		if err != nil {
			return nil, fmt.Errorf("invalid webhook url: %w", err)
		}
		resp, err := api.Request(wh)
		if err != nil {
			return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
		}
		log.Info("webhook set", zap.String("description", resp.Description))
	}

	b := newBot(api, application, cfg, log)
	b.api = api
	return b, nil
}

func newBot(sender Sender, application *app.App, cfg *config.Config, log *zap.Logger) *Bot {
	return &Bot{sender: sender, app: application, cfg: cfg, log: log}
}

// HandleWebhook decodes a Telegram update and processes it in the background.
func (b *Bot) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		b.log.Warn("error parsing update", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
	go b.HandleUpdate(context.Background(), update)
}

// Poll consumes updates by long polling until ctx is cancelled. It is used
// when no webhook is configured.
func (b *Bot) Poll(ctx context.Context) {
	if b.api == nil {
		return
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes a single update from an allowed user.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !b.allowed(msg.From.ID) {
		b.log.Warn("unauthorized access attempt",
			zap.Int64("telegram_id", msg.From.ID),
			zap.String("username", msg.From.UserName),
		)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic while handling update",
				zap.Int64("telegram_id", msg.From.ID),
				zap.String("text", msg.Text),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			b.reply(msg.Chat.ID, "⚠️ Something went wrong handling that message.")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	b.processMessage(ctx, msg)
}

func (b *Bot) allowed(id int64) bool {
	for _, allowed := range b.cfg.TelegramAllowedUserIDs {
		if id == allowed {
			return true
		}
	}
	return false
}

func userID(msg *tgbotapi.Message) string {
	return strconv.FormatInt(msg.From.ID, 10)
}

func (b *Bot) processMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
		b.handleClip(ctx, msg, text)
		return
	}
	if !msg.IsCommand() {
		b.reply(msg.Chat.ID, helpText)
		return
	}

	args := strings.Fields(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		b.reply(msg.Chat.ID, helpText)
	case "recipes":
		b.handleRecipes(ctx, msg, strings.Join(args, " "))
	case "category":
		b.handleCategory(ctx, msg, args)
	case "pick":
		b.handlePick(ctx, msg, args)
	case "resources":
		b.handleResources(ctx, msg, args)
	case "optimize":
		b.handleOptimize(ctx, msg)
	case "plan":
		b.handlePlan(ctx, msg, args, false)
	case "replan":
		b.handlePlan(ctx, msg, args, true)
	case "servings":
		b.handleServings(ctx, msg, args)
	case "list":
		b.handleList(ctx, msg)
	case "check":
		b.handleCheck(ctx, msg, args)
	case "clear":
		b.handleClear(ctx, msg)
	case "debug":
		b.reply(msg.Chat.ID, formatDebugLog(b.app.Session(ctx, userID(msg)).DebugLog(), 15))
	case "metrics":
		b.handleMetrics(ctx, msg)
	default:
		b.reply(msg.Chat.ID, helpText)
	}
}

func (b *Bot) handleRecipes(ctx context.Context, msg *tgbotapi.Message, search string) {
	st := b.app.Session(ctx, userID(msg))
	category := st.Snapshot().Category
	view, err := b.app.Recipes(ctx, st.UserID(), search, category)
	if err != nil {
		b.reply(msg.Chat.ID, formatError(err))
		return
	}
	b.reply(msg.Chat.ID, formatRecipeList(view, st.Snapshot().Selected, category))
}

func (b *Bot) handleCategory(ctx context.Context, msg *tgbotapi.Message, args []string) {
	category, err := selection.ParseCategory(strings.Join(args, " "))
	if err != nil {
		b.reply(msg.Chat.ID, "⚠️ "+esc(err.Error()))
		return
	}
	st := b.app.Session(ctx, userID(msg))
	view, err := b.app.Recipes(ctx, st.UserID(), st.Snapshot().Search, category)
	if err != nil {
		b.reply(msg.Chat.ID, formatError(err))
		return
	}
	b.reply(msg.Chat.ID, formatRecipeList(view, st.Snapshot().Selected, category))
}

func (b *Bot) handlePick(ctx context.Context, msg *tgbotapi.Message, args []string) {
	n, err := positiveArg(args, 0)
	if err != nil {
		b.reply(msg.Chat.ID, "Usage: /pick <n>")
		return
	}
	st := b.app.Session(ctx, userID(msg))
	snap := st.Snapshot()
	view, err := b.app.Recipes(ctx, st.UserID(), snap.Search, snap.Category)
	if err != nil {
		b.reply(msg.Chat.ID, formatError(err))
		return
	}
	if n > len(view.Recipes) {
		b.reply(msg.Chat.ID, fmt.Sprintf("⚠️ There is no recipe %d in the current list.", n))
		return
	}
	r := view.Recipes[n-1]
	selected, err := b.app.ToggleSelection(ctx, st.UserID(), r.ID)
	if err != nil {
		b.reply(msg.Chat.ID, formatError(err))
		return
	}
	if selected {
		b.reply(msg.Chat.ID, fmt.Sprintf("✅ Selected *%s*.", esc(r.DishName)))
	} else {
		b.reply(msg.Chat.ID, fmt.Sprintf("▫️ Removed *%s*.", esc(r.DishName)))
	}
}

func (b *Bot) handleResources(ctx context.Context, msg *tgbotapi.Message, args []string) {
	cooks, err1 := positiveArg(args, 0)
	stoves, err2 := positiveArg(args, 1)
	if err1 != nil || err2 != nil {
		b.reply(msg.Chat.ID, "Usage: /resources <cooks> <stoves>")
		return
	}
	if err := b.app.SetResources(ctx, userID(msg), cooks, stoves); err != nil {
		b.reply(msg.Chat.ID, formatError(err))
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("👩‍🍳 %d cooks, 🔥 %d stoves.", cooks, stoves))
}

func (b *Bot) handleOptimize(ctx context.Context, msg *tgbotapi.Message) {
	status := b.reply(msg.Chat.ID, "🧑‍🍳 *Optimizing...*\n(Interleaving your recipes)")
	schedule, err := b.app.Optimize(ctx, userID(msg))
	if err != nil {
		b.edit(msg.Chat.ID, status, formatError(err))
		return
	}
	b.edit(msg.Chat.ID, status, formatSchedule(schedule))
}

func (b *Bot) handlePlan(ctx context.Context, msg *tgbotapi.Message, args []string, force bool) {
	st := b.app.Session(ctx, userID(msg))
	days := st.Snapshot().PlanDays
	notes := args
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			days = n
			notes = args[1:]
		}
	}

	status := b.reply(msg.Chat.ID, "🧑‍🍳 *Thinking...*\n(Picking dishes for your plan)")
	plan, err := b.app.GeneratePlan(ctx, st.UserID(), days, strings.Join(notes, " "), force)
	if err != nil {
		b.edit(msg.Chat.ID, status, formatError(err))
		return
	}
	b.edit(msg.Chat.ID, status, formatPlan(plan))
}

func (b *Bot) handleServings(ctx context.Context, msg *tgbotapi.Message, args []string) {
	var v [3]int
	for i := range v {
		n, err := nonNegativeArg(args, i)
		if err != nil {
			b.reply(msg.Chat.ID, "Usage: /servings <breakfast> <lunch> <snack>")
			return
		}
		v[i] = n
	}
	servings := planner.Servings{Breakfast: v[0], LunchDinner: v[1], Snack: v[2]}
	if err := b.app.SetServings(ctx, userID(msg), servings); err != nil {
		b.reply(msg.Chat.ID, formatError(err))
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("🍽 Servings set: breakfast %d, lunch/dinner %d, snack %d.", v[0], v[1], v[2]))
}

func (b *Bot) handleList(ctx context.Context, msg *tgbotapi.Message) {
	items, err := b.app.BuildShoppingList(ctx, userID(msg))
	if err != nil {
		b.reply(msg.Chat.ID, formatError(err))
		return
	}
	b.reply(msg.Chat.ID, formatShoppingList(items))
}

func (b *Bot) handleCheck(ctx context.Context, msg *tgbotapi.Message, args []string) {
	n, err := positiveArg(args, 0)
	if err != nil {
		b.reply(msg.Chat.ID, "Usage: /check <n>")
		return
	}
	items, err := b.app.ToggleItem(ctx, userID(msg), n-1)
	if err != nil {
		b.reply(msg.Chat.ID, formatError(err))
		return
	}
	b.reply(msg.Chat.ID, formatShoppingList(items))
}

func (b *Bot) handleClear(ctx context.Context, msg *tgbotapi.Message) {
	items, err := b.app.ClearChecked(ctx, userID(msg))
	if err != nil {
		b.reply(msg.Chat.ID, formatError(err))
		return
	}
	b.reply(msg.Chat.ID, formatShoppingList(items))
}

func (b *Bot) handleClip(ctx context.Context, msg *tgbotapi.Message, url string) {
	status := b.reply(msg.Chat.ID, "✂️ *Clipping recipe...*\n(Extracting and adding it to your catalog)")
	res, err := b.app.ClipURL(ctx, userID(msg), url)
	if err != nil {
		b.edit(msg.Chat.ID, status, formatError(err))
		return
	}
	text := fmt.Sprintf("✅ *Recipe Saved!*\n\n*Title:* %s\n*Category:* %s", esc(res.Recipe.DishName), esc(string(res.Recipe.Category)))
	if res.Post != nil && res.Post.URL != "" {
		text += "\n*Blog:* " + res.Post.URL
	}
	b.edit(msg.Chat.ID, status, text)
}

func (b *Bot) handleMetrics(ctx context.Context, msg *tgbotapi.Message) {
	if b.cfg.AdminTelegramID == 0 || msg.From.ID != b.cfg.AdminTelegramID {
		b.reply(msg.Chat.ID, "⛔ *Access Denied*: Admin only.")
		return
	}
	usage, err := b.app.UsageReport(ctx, 7)
	if err != nil {
		b.log.Error("failed to fetch metrics", zap.Error(err))
		b.reply(msg.Chat.ID, "❌ Error fetching metrics.")
		return
	}
	health := metrics.GetSysHealth(filepath.Dir(b.cfg.DatabasePath))
	b.reply(msg.Chat.ID, formatUsage(usage, health))
}

// reply sends a Markdown message and returns its ID, or 0 when sending failed.
func (b *Bot) reply(chatID int64, text string) int {
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = tgbotapi.ModeMarkdown
	sent, err := b.sender.Send(m)
	if err != nil {
		b.log.Warn("failed to send telegram message", zap.Int64("chat", chatID), zap.Error(err))
		return 0
	}
	return sent.MessageID
}

// edit replaces a status message, falling back to a new message.
func (b *Bot) edit(chatID int64, messageID int, text string) {
	if messageID == 0 {
		b.reply(chatID, text)
		return
	}
	e := tgbotapi.NewEditMessageText(chatID, messageID, text)
	e.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.sender.Send(e); err != nil {
		b.log.Warn("failed to edit telegram message", zap.Int64("chat", chatID), zap.Error(err))
	}
}

func positiveArg(args []string, i int) (int, error) {
	n, err := nonNegativeArg(args, i)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("argument %d must be positive", i+1)
	}
	return n, nil
}

func nonNegativeArg(args []string, i int) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing argument %d", i+1)
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("argument %d must not be negative", i+1)
	}
	return n, nil
}
