package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"keyshop/internal/contextkeys"
	"keyshop/internal/logger"
	"keyshop/internal/messages"
	"keyshop/types"
)

func (bh *Handlers) buildMainMenuKeyboard(isAdmin bool) models.InlineKeyboardMarkup {
	rows := [][]models.InlineKeyboardButton{
		{{Text: pad("🛒 Products"), CallbackData: "products"}},
		{{Text: pad("🧾 My Orders"), CallbackData: "my_orders"}},
		{{Text: pad("💰 Balance"), CallbackData: "balance"}},
		{{Text: pad("🤝 Trusted Sellers"), CallbackData: "sellers"}},
	}
	if isAdmin {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: pad("🛠 Admin Panel"), CallbackData: "admin"},
		})
	}
	return models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (bh *Handlers) sendMainMenu(ctx context.Context, b *bot.Bot, chatID int64, acc *types.Account, isAdmin bool) {
	bh.sendKb(ctx, b, chatID, messages.Welcome(acc.FirstName), bh.buildMainMenuKeyboard(isAdmin))
}

func (bh *Handlers) HandleUserCallback(ctx context.Context, b *bot.Bot, update *models.Update, acc *types.Account, data string) {
	_ = bh.answerCallback(ctx, b, update.CallbackQuery.ID, "")
	chatID := getChatIDFromUpdate(update)
	if chatID == 0 {
		chatID = acc.TelegramID
	}

	switch {
	case data == "menu":
		bh.editOrSend(ctx, b, update, chatID, messages.Welcome(acc.FirstName),
			bh.buildMainMenuKeyboard(contextkeys.IsAdmin(ctx)))
	case data == "products":
		bh.showProducts(ctx, b, update, chatID)
	case strings.HasPrefix(data, "product:"):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, "product:"), 10, 64)
		if err != nil {
			return
		}
		bh.showProductDetail(ctx, b, update, chatID, id)
	case strings.HasPrefix(data, "buy:"):
		productID, tierID, ok := parseBuyData(strings.TrimPrefix(data, "buy:"))
		if !ok {
			return
		}
		bh.showConfirmPurchase(ctx, b, update, acc, chatID, productID, tierID)
	case strings.HasPrefix(data, "confirm_buy:"):
		productID, tierID, ok := parseBuyData(strings.TrimPrefix(data, "confirm_buy:"))
		if !ok {
			return
		}
		bh.executePurchase(ctx, b, update, acc, chatID, productID, tierID)
	case data == "my_orders":
		bh.showOrders(ctx, b, update, acc, chatID)
	case data == "balance":
		bh.editOrSend(ctx, b, update, chatID, messages.BalanceInfo(acc, bh.adminUsername), backKeyboard("menu"))
	case data == "sellers":
		bh.showSellers(ctx, b, update, chatID)
	}
}

func (bh *Handlers) showProducts(ctx context.Context, b *bot.Bot, update *models.Update, chatID int64) {
	listings, err := bh.catalog.ListActive(ctx)
	if err != nil {
		logger.Error("list products", zap.Error(err))
		bh.send(ctx, b, chatID, messages.ErrorDefault())
		return
	}
	if len(listings) == 0 {
		bh.editOrSend(ctx, b, update, chatID, messages.NoProducts(), backKeyboard("menu"))
		return
	}

	rows := make([][]models.InlineKeyboardButton, 0, len(listings)+1)
	for _, l := range listings {
		stock := 0
		for _, t := range l.Tiers {
			stock += t.InStock
		}
		label := fmt.Sprintf("%s (%d in stock)", l.Product.Name, stock)
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: label, CallbackData: fmt.Sprintf("product:%d", l.Product.ID)},
		})
	}
	rows = append(rows, backRow("menu"))
	bh.editOrSend(ctx, b, update, chatID, messages.ProductsHeader(),
		models.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (bh *Handlers) showProductDetail(ctx context.Context, b *bot.Bot, update *models.Update, chatID, productID int64) {
	listing, err := bh.catalog.GetListing(ctx, productID)
	if err != nil {
		bh.editOrSend(ctx, b, update, chatID, messages.ErrorDefault(), backKeyboard("products"))
		return
	}

	rows := make([][]models.InlineKeyboardButton, 0, len(listing.Tiers)+1)
	for _, t := range listing.Tiers {
		if t.InStock == 0 {
			continue
		}
		label := fmt.Sprintf("%s · $%s", t.Tier.Duration, t.Tier.Price.StringFixed(2))
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: label, CallbackData: fmt.Sprintf("buy:%d:%d", productID, t.Tier.ID)},
		})
	}
	rows = append(rows, backRow("products"))
	kb := models.InlineKeyboardMarkup{InlineKeyboard: rows}
	text := messages.ProductDetail(listing)

	// A product with an image gets the detail as a photo caption; a text
	// message cannot be edited into a photo, so this is always a fresh send.
	if listing.Product.ImageFileID != "" {
		_, err := b.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:      chatID,
			Photo:       &models.InputFileString{Data: listing.Product.ImageFileID},
			Caption:     text,
			ParseMode:   messages.ParseModeHTML,
			ReplyMarkup: &kb,
		})
		if err == nil {
			return
		}
		logger.Warn("send product photo", zap.Int64("product_id", productID), zap.Error(err))
	}
	bh.editOrSend(ctx, b, update, chatID, text, kb)
}

func (bh *Handlers) showConfirmPurchase(ctx context.Context, b *bot.Bot, update *models.Update, acc *types.Account, chatID, productID, tierID int64) {
	listing, err := bh.catalog.GetListing(ctx, productID)
	if err != nil {
		bh.editOrSend(ctx, b, update, chatID, messages.ErrorDefault(), backKeyboard("products"))
		return
	}
	var tier *types.PriceTier
	for i := range listing.Tiers {
		if listing.Tiers[i].Tier.ID == tierID {
			tier = &listing.Tiers[i].Tier
			break
		}
	}
	if tier == nil {
		bh.editOrSend(ctx, b, update, chatID, messages.ErrorDefault(), backKeyboard("products"))
		return
	}

	kb := models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{{Text: pad("✅ Confirm"), CallbackData: fmt.Sprintf("confirm_buy:%d:%d", productID, tierID)}},
		{{Text: pad("❌ Cancel"), CallbackData: fmt.Sprintf("product:%d", productID)}},
	}}
	bh.editOrSend(ctx, b, update, chatID,
		messages.ConfirmPurchase(listing.Product.Name, tier.Duration, tier.Price, acc.Balance), kb)
}

func (bh *Handlers) executePurchase(ctx context.Context, b *bot.Bot, update *models.Update, acc *types.Account, chatID, productID, tierID int64) {
	res := bh.purchase.Attempt(ctx, acc.ID, productID, tierID)
	if !res.OK {
		bh.editOrSend(ctx, b, update, chatID, messages.PurchaseFailed(res.Reason), backKeyboard("products"))
		return
	}
	// The key goes in a fresh message so it survives menu edits.
	bh.send(ctx, b, chatID, messages.PurchaseSuccess(res.Order, res.NewBalance))
}

func (bh *Handlers) showOrders(ctx context.Context, b *bot.Bot, update *models.Update, acc *types.Account, chatID int64) {
	orders, err := bh.orders.OrdersByAccount(ctx, acc.ID, 10)
	if err != nil {
		logger.Error("list orders", zap.Error(err))
		bh.send(ctx, b, chatID, messages.ErrorDefault())
		return
	}
	if len(orders) == 0 {
		bh.editOrSend(ctx, b, update, chatID, messages.NoOrders(), backKeyboard("menu"))
		return
	}
	text := messages.OrdersHeader()
	for _, o := range orders {
		text += "\n\n" + messages.OrderLine(o)
	}
	bh.editOrSend(ctx, b, update, chatID, text, backKeyboard("menu"))
}

func (bh *Handlers) showSellers(ctx context.Context, b *bot.Bot, update *models.Update, chatID int64) {
	sellers, err := bh.sellers.ListSellers(ctx)
	if err != nil {
		logger.Error("list sellers", zap.Error(err))
		bh.send(ctx, b, chatID, messages.ErrorDefault())
		return
	}
	text := messages.SellersHeader()
	for _, s := range sellers {
		text += "\n\n" + messages.SellerLine(s)
	}
	bh.editOrSend(ctx, b, update, chatID, text, backKeyboard("menu"))
}

func parseBuyData(data string) (productID, tierID int64, ok bool) {
	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	productID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	tierID, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return productID, tierID, true
}

func backRow(target string) []models.InlineKeyboardButton {
	return []models.InlineKeyboardButton{{Text: pad("⬅️ Back"), CallbackData: target}}
}

func backKeyboard(target string) models.InlineKeyboardMarkup {
	return models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{backRow(target)}}
}
