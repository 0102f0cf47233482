package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"keyshop/internal/account"
	"keyshop/internal/broadcast"
	"keyshop/internal/catalog"
	"keyshop/internal/contextkeys"
	"keyshop/internal/logger"
	"keyshop/internal/messages"
	"keyshop/internal/purchase"
	"keyshop/store"
	"keyshop/types"
)

type Handlers struct {
	catalog     *catalog.Service
	accounts    *account.Service
	purchase    *purchase.Service
	orders      types.OrderStore
	sellers     types.SellerStore
	admins      types.AdminStore
	states      *store.RedisStateStore
	broadcaster *broadcast.Broadcaster
	cache       types.Cache

	adminUsername string
	rootAdminID   int64
}

func NewHandlers(
	catalogSvc *catalog.Service,
	accountSvc *account.Service,
	purchaseSvc *purchase.Service,
	orders types.OrderStore,
	sellers types.SellerStore,
	admins types.AdminStore,
	states *store.RedisStateStore,
	broadcaster *broadcast.Broadcaster,
	cache types.Cache,
	adminUsername string,
	rootAdminID int64,
) *Handlers {
	return &Handlers{
		catalog:       catalogSvc,
		accounts:      accountSvc,
		purchase:      purchaseSvc,
		orders:        orders,
		sellers:       sellers,
		admins:        admins,
		states:        states,
		broadcaster:   broadcaster,
		cache:         cache,
		adminUsername: adminUsername,
		rootAdminID:   rootAdminID,
	}
}

func (bh *Handlers) MainHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	acc, ok := contextkeys.GetAccount(ctx)
	if !ok {
		return
	}

	switch {
	case update.CallbackQuery != nil:
		bh.HandleCallback(ctx, b, update, acc)
	case update.Message != nil && strings.HasPrefix(update.Message.Text, "/"):
		bh.HandleCommand(ctx, b, update, acc)
	case update.Message != nil && (update.Message.Text != "" || len(update.Message.Photo) > 0):
		bh.HandleText(ctx, b, update, acc)
	}
}

func (bh *Handlers) HandleCommand(ctx context.Context, b *bot.Bot, update *models.Update, acc *types.Account) {
	chatID := update.Message.Chat.ID
	cmd := strings.Fields(update.Message.Text)[0]
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/start":
		_ = bh.states.ClearAdminSession(acc.TelegramID)
		bh.sendMainMenu(ctx, b, chatID, acc, contextkeys.IsAdmin(ctx))
	case "/admin":
		if contextkeys.IsAdmin(ctx) {
			bh.sendAdminMenu(ctx, b, chatID)
		}
	case "/balance":
		bh.send(ctx, b, chatID, messages.BalanceInfo(acc, bh.adminUsername))
	default:
		bh.sendMainMenu(ctx, b, chatID, acc, contextkeys.IsAdmin(ctx))
	}
}

func (bh *Handlers) HandleCallback(ctx context.Context, b *bot.Bot, update *models.Update, acc *types.Account) {
	data := strings.TrimSpace(update.CallbackQuery.Data)

	if strings.HasPrefix(data, "admin") {
		if !contextkeys.IsAdmin(ctx) {
			_ = bh.answerCallback(ctx, b, update.CallbackQuery.ID, "")
			return
		}
		bh.HandleAdminCallback(ctx, b, update, acc, data)
		return
	}
	bh.HandleUserCallback(ctx, b, update, acc, data)
}

// HandleText is only meaningful inside an admin wizard; plain chatter from
// regular users just gets the menu back.
func (bh *Handlers) HandleText(ctx context.Context, b *bot.Bot, update *models.Update, acc *types.Account) {
	chatID := update.Message.Chat.ID

	if contextkeys.IsAdmin(ctx) {
		sess, err := bh.states.GetAdminSession(acc.TelegramID)
		if err != nil {
			logger.Error("get admin session", zap.Error(err))
		}
		if sess != nil && sess.State != "" {
			bh.HandleAdminText(ctx, b, update, acc, sess)
			return
		}
	}
	bh.sendMainMenu(ctx, b, chatID, acc, contextkeys.IsAdmin(ctx))
}

// --- small helpers shared by the menu and admin screens ---

func (bh *Handlers) send(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	})
	if err != nil {
		logger.Error("send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (bh *Handlers) sendKb(ctx context.Context, b *bot.Bot, chatID int64, text string, kb models.InlineKeyboardMarkup) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   messages.ParseModeHTML,
		ReplyMarkup: &kb,
	})
	if err != nil {
		logger.Error("send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// editOrSend replaces the screen the button lived on; if the original
// message is gone (too old, deleted) it falls back to a fresh one.
func (bh *Handlers) editOrSend(ctx context.Context, b *bot.Bot, update *models.Update, chatID int64, text string, kb models.InlineKeyboardMarkup) {
	if update.CallbackQuery != nil && update.CallbackQuery.Message.Message != nil {
		msg := update.CallbackQuery.Message.Message
		_, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:      msg.Chat.ID,
			MessageID:   msg.ID,
			Text:        text,
			ParseMode:   messages.ParseModeHTML,
			ReplyMarkup: &kb,
		})
		if err == nil {
			return
		}
	}
	bh.sendKb(ctx, b, chatID, text, kb)
}

func (bh *Handlers) answerCallback(ctx context.Context, b *bot.Bot, callbackID, text string) error {
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	return err
}

func getChatIDFromUpdate(update *models.Update) int64 {
	if update.Message != nil {
		return update.Message.Chat.ID
	}
	if update.CallbackQuery != nil && update.CallbackQuery.Message.Message != nil {
		return update.CallbackQuery.Message.Message.Chat.ID
	}
	return 0
}

func pad(s string) string { return "   " + s + "   " }
