package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"keyshop/internal/logger"
	"keyshop/internal/messages"
	"keyshop/store"
	"keyshop/types"
)

// Wizard states. Each one names the single input the panel is waiting for;
// everything collected so far rides along in AdminSession.Fields.
const (
	stateProductName    = "product_name"
	stateProductDesc    = "product_desc"
	stateProductImage   = "product_image"
	statePriceLines     = "price_lines"
	stateKeyLines       = "key_lines"
	stateCreditUser     = "credit_user"
	stateCreditAmount   = "credit_amount"
	statePremiumUser    = "premium_user"
	stateBanUser        = "ban_user"
	stateSellerUsername = "seller_username"
	stateSellerName     = "seller_name"
	stateSellerDesc     = "seller_desc"
	stateAdminID        = "admin_id"
	stateBroadcast      = "broadcast_text"
)

func (bh *Handlers) buildAdminKeyboard() models.InlineKeyboardMarkup {
	return models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{{Text: pad("📊 Stats"), CallbackData: "admin:stats"}},
		{{Text: pad("📦 Products"), CallbackData: "admin:products"}},
		{
			{Text: "➕ Credits", CallbackData: "admin:credits_add"},
			{Text: "➖ Credits", CallbackData: "admin:credits_remove"},
		},
		{
			{Text: "⭐ Premium", CallbackData: "admin:premium"},
			{Text: "🚫 Ban", CallbackData: "admin:ban"},
		},
		{
			{Text: "🤝 Sellers", CallbackData: "admin:sellers"},
			{Text: "🛡 Admins", CallbackData: "admin:admins"},
		},
		{{Text: pad("📣 Broadcast"), CallbackData: "admin:broadcast"}},
		backRow("menu"),
	}}
}

func (bh *Handlers) sendAdminMenu(ctx context.Context, b *bot.Bot, chatID int64) {
	bh.sendKb(ctx, b, chatID, messages.AdminMenu(), bh.buildAdminKeyboard())
}

func (bh *Handlers) HandleAdminCallback(ctx context.Context, b *bot.Bot, update *models.Update, acc *types.Account, data string) {
	_ = bh.answerCallback(ctx, b, update.CallbackQuery.ID, "")
	chatID := getChatIDFromUpdate(update)
	if chatID == 0 {
		chatID = acc.TelegramID
	}

	// Opening any panel screen abandons a half-finished wizard.
	startWizard := func(sess *store.AdminSession, prompt string) {
		if err := bh.states.SetAdminSession(acc.TelegramID, sess); err != nil {
			logger.Error("set admin session", zap.Error(err))
			bh.send(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		bh.send(ctx, b, chatID, prompt)
	}

	switch {
	case data == "admin":
		_ = bh.states.ClearAdminSession(acc.TelegramID)
		bh.editOrSend(ctx, b, update, chatID, messages.AdminMenu(), bh.buildAdminKeyboard())

	case data == "admin:stats":
		st, err := bh.orders.Stats(ctx)
		if err != nil {
			logger.Error("stats", zap.Error(err))
			bh.send(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		bh.editOrSend(ctx, b, update, chatID, messages.AdminStats(st), backKeyboard("admin"))

	case data == "admin:products":
		bh.showAdminProducts(ctx, b, update, chatID)

	case data == "admin:product_add":
		logger.LogAdminAction(acc.TelegramID, "product_add_start", "")
		startWizard(&store.AdminSession{State: stateProductName, Fields: map[string]string{}},
			messages.AdminProductNamePrompt())

	case strings.HasPrefix(data, "admin:product:"):
		id, ok := parseID(data, "admin:product:")
		if !ok {
			return
		}
		bh.showAdminProduct(ctx, b, update, chatID, id)

	case strings.HasPrefix(data, "admin:image:"):
		id, ok := parseID(data, "admin:image:")
		if !ok {
			return
		}
		startWizard(&store.AdminSession{State: stateProductImage, ProductID: id},
			messages.AdminProductImagePrompt())

	case strings.HasPrefix(data, "admin:prices:"):
		id, ok := parseID(data, "admin:prices:")
		if !ok {
			return
		}
		startWizard(&store.AdminSession{State: statePriceLines, ProductID: id},
			messages.AdminPricesPrompt())

	case strings.HasPrefix(data, "admin:keys_add:"):
		id, ok := parseID(data, "admin:keys_add:")
		if !ok {
			return
		}
		startWizard(&store.AdminSession{State: stateKeyLines, ProductID: id},
			messages.AdminKeysPrompt())

	case strings.HasPrefix(data, "admin:keys_del_all:"):
		bh.deleteKeys(ctx, b, update, acc, chatID, data, "admin:keys_del_all:", bh.catalog.DeleteAllKeys)
	case strings.HasPrefix(data, "admin:keys_del_used:"):
		bh.deleteKeys(ctx, b, update, acc, chatID, data, "admin:keys_del_used:", bh.catalog.DeleteUsedKeys)
	case strings.HasPrefix(data, "admin:keys_del_batch:"):
		bh.deleteKeys(ctx, b, update, acc, chatID, data, "admin:keys_del_batch:", bh.catalog.DeleteMostRecentBatch)

	case strings.HasPrefix(data, "admin:toggle:"):
		id, ok := parseID(data, "admin:toggle:")
		if !ok {
			return
		}
		p, err := bh.catalog.GetProduct(ctx, id)
		if err != nil {
			bh.send(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		if _, err := bh.catalog.SetActive(ctx, id, !p.Active); err != nil {
			bh.send(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		logger.LogAdminAction(acc.TelegramID, "product_toggle", fmt.Sprintf("id=%d active=%v", id, !p.Active))
		bh.showAdminProduct(ctx, b, update, chatID, id)

	case strings.HasPrefix(data, "admin:delete:"):
		id, ok := parseID(data, "admin:delete:")
		if !ok {
			return
		}
		p, err := bh.catalog.GetProduct(ctx, id)
		if err != nil {
			bh.send(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		if err := bh.catalog.DeleteProduct(ctx, id); err != nil {
			bh.send(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		logger.LogAdminAction(acc.TelegramID, "product_delete", fmt.Sprintf("id=%d name=%q", id, p.Name))
		bh.send(ctx, b, chatID, messages.AdminProductDeleted(p.Name))
		bh.showAdminProducts(ctx, b, update, chatID)

	case data == "admin:credits_add":
		startWizard(&store.AdminSession{State: stateCreditUser, Fields: map[string]string{"sign": "+"}},
			messages.AdminCreditUserPrompt())
	case data == "admin:credits_remove":
		startWizard(&store.AdminSession{State: stateCreditUser, Fields: map[string]string{"sign": "-"}},
			messages.AdminCreditUserPrompt())

	case data == "admin:premium":
		bh.showPremiumList(ctx, b, update, chatID)
	case data == "admin:premium_add":
		startWizard(&store.AdminSession{State: statePremiumUser}, messages.AdminPremiumUserPrompt())
	case strings.HasPrefix(data, "admin:premium_del:"):
		id, ok := parseID(data, "admin:premium_del:")
		if !ok {
			return
		}
		target, err := bh.accounts.Get(ctx, id)
		if err != nil {
			bh.send(ctx, b, chatID, messages.AdminUserNotFound())
			return
		}
		if err := bh.accounts.SetTier(ctx, id, types.TierFree); err != nil {
			bh.send(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		logger.LogAdminAction(acc.TelegramID, "premium_revoke", fmt.Sprintf("account=%d", id))
		bh.send(ctx, b, chatID, messages.AdminPremiumRevoked(displayName(target)))
		bh.showPremiumList(ctx, b, update, chatID)

	case data == "admin:ban":
		startWizard(&store.AdminSession{State: stateBanUser}, messages.AdminBanUserPrompt())

	case data == "admin:sellers":
		bh.showAdminSellers(ctx, b, update, chatID)
	case data == "admin:seller_add":
		startWizard(&store.AdminSession{State: stateSellerUsername, Fields: map[string]string{}},
			messages.AdminSellerUsernamePrompt())
	case strings.HasPrefix(data, "admin:seller_del:"):
		id, ok := parseID(data, "admin:seller_del:")
		if !ok {
			return
		}
		if err := bh.sellers.RemoveSeller(ctx, id); err != nil {
			bh.send(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		logger.LogAdminAction(acc.TelegramID, "seller_remove", fmt.Sprintf("id=%d", id))
		bh.showAdminSellers(ctx, b, update, chatID)

	case data == "admin:admins":
		bh.showAdminList(ctx, b, update, chatID)
	case data == "admin:admin_add":
		startWizard(&store.AdminSession{State: stateAdminID}, messages.AdminAdminIDPrompt())
	case strings.HasPrefix(data, "admin:admin_del:"):
		tgID, ok := parseID(data, "admin:admin_del:")
		if !ok {
			return
		}
		removed, err := bh.admins.RemoveAdmin(ctx, tgID)
		if err != nil {
			bh.send(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		if removed {
			_ = bh.cache.Del(fmt.Sprintf("is_admin:%d", tgID))
			logger.LogAdminAction(acc.TelegramID, "admin_remove", fmt.Sprintf("telegram_id=%d", tgID))
		}
		bh.send(ctx, b, chatID, messages.AdminAdminRemoved(removed))
		bh.showAdminList(ctx, b, update, chatID)

	case data == "admin:broadcast":
		startWizard(&store.AdminSession{State: stateBroadcast}, messages.AdminBroadcastPrompt())
	}
}

func (bh *Handlers) deleteKeys(ctx context.Context, b *bot.Bot, update *models.Update, acc *types.Account, chatID int64, data, prefix string, del func(context.Context, int64) (int64, error)) {
	id, ok := parseID(data, prefix)
	if !ok {
		return
	}
	n, err := del(ctx, id)
	if err != nil {
		logger.Error("delete keys", zap.Int64("product_id", id), zap.Error(err))
		bh.send(ctx, b, chatID, messages.ErrorDefault())
		return
	}
	logger.LogAdminAction(acc.TelegramID, strings.TrimSuffix(strings.TrimPrefix(prefix, "admin:"), ":"), fmt.Sprintf("product=%d deleted=%d", id, n))
	bh.send(ctx, b, chatID, messages.AdminKeysDeleted(n))
	bh.showAdminProduct(ctx, b, update, chatID, id)
}

func (bh *Handlers) showAdminProducts(ctx context.Context, b *bot.Bot, update *models.Update, chatID int64) {
	products, err := bh.catalog.ListAll(ctx)
	if err != nil {
		logger.Error("list products", zap.Error(err))
		bh.send(ctx, b, chatID, messages.ErrorDefault())
		return
	}
	rows := make([][]models.InlineKeyboardButton, 0, len(products)+2)
	for _, p := range products {
		marker := "🟢"
		if !p.Active {
			marker = "🔴"
		}
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: fmt.Sprintf("%s %s", marker, p.Name), CallbackData: fmt.Sprintf("admin:product:%d", p.ID)},
		})
	}
	rows = append(rows, []models.InlineKeyboardButton{
		{Text: pad("➕ Add product"), CallbackData: "admin:product_add"},
	})
	rows = append(rows, backRow("admin"))
	bh.editOrSend(ctx, b, update, chatID, messages.ProductsHeader(),
		models.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (bh *Handlers) showAdminProduct(ctx context.Context, b *bot.Bot, update *models.Update, chatID, productID int64) {
	listing, err := bh.catalog.GetListing(ctx, productID)
	if err != nil {
		bh.send(ctx, b, chatID, messages.ErrorDefault())
		return
	}
	total, available, err := bh.catalog.KeyCounts(ctx, productID)
	if err != nil {
		bh.send(ctx, b, chatID, messages.ErrorDefault())
		return
	}

	toggleLabel := "🔴 Deactivate"
	if !listing.Product.Active {
		toggleLabel = "🟢 Activate"
	}
	id := productID
	kb := models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{
			{Text: "📋 Prices", CallbackData: fmt.Sprintf("admin:prices:%d", id)},
			{Text: "🔑 Add keys", CallbackData: fmt.Sprintf("admin:keys_add:%d", id)},
		},
		{
			{Text: "🗑 All keys", CallbackData: fmt.Sprintf("admin:keys_del_all:%d", id)},
			{Text: "🗑 Used keys", CallbackData: fmt.Sprintf("admin:keys_del_used:%d", id)},
		},
		{
			{Text: "🗑 Last batch", CallbackData: fmt.Sprintf("admin:keys_del_batch:%d", id)},
			{Text: "🖼 Image", CallbackData: fmt.Sprintf("admin:image:%d", id)},
		},
		{
			{Text: toggleLabel, CallbackData: fmt.Sprintf("admin:toggle:%d", id)},
			{Text: "❌ Delete", CallbackData: fmt.Sprintf("admin:delete:%d", id)},
		},
		backRow("admin:products"),
	}}

	text := messages.ProductDetail(listing) + "\n\n" +
		messages.AdminKeyCounts(listing.Product.Name, total, available)
	bh.editOrSend(ctx, b, update, chatID, text, kb)
}

func (bh *Handlers) showPremiumList(ctx context.Context, b *bot.Bot, update *models.Update, chatID int64) {
	premium, err := bh.accounts.ListPremium(ctx)
	if err != nil {
		logger.Error("list premium", zap.Error(err))
		bh.send(ctx, b, chatID, messages.ErrorDefault())
		return
	}
	rows := make([][]models.InlineKeyboardButton, 0, len(premium)+2)
	for _, a := range premium {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: "⭐ " + displayName(&a), CallbackData: fmt.Sprintf("admin:premium_del:%d", a.ID)},
		})
	}
	rows = append(rows, []models.InlineKeyboardButton{
		{Text: pad("➕ Grant premium"), CallbackData: "admin:premium_add"},
	})
	rows = append(rows, backRow("admin"))
	bh.editOrSend(ctx, b, update, chatID, "⭐ <b>Premium users</b> (tap to revoke)",
		models.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (bh *Handlers) showAdminSellers(ctx context.Context, b *bot.Bot, update *models.Update, chatID int64) {
	sellers, err := bh.sellers.ListSellers(ctx)
	if err != nil {
		logger.Error("list sellers", zap.Error(err))
		bh.send(ctx, b, chatID, messages.ErrorDefault())
		return
	}
	rows := make([][]models.InlineKeyboardButton, 0, len(sellers)+2)
	for _, s := range sellers {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: "🗑 " + s.Name, CallbackData: fmt.Sprintf("admin:seller_del:%d", s.ID)},
		})
	}
	rows = append(rows, []models.InlineKeyboardButton{
		{Text: pad("➕ Add seller"), CallbackData: "admin:seller_add"},
	})
	rows = append(rows, backRow("admin"))
	bh.editOrSend(ctx, b, update, chatID, messages.SellersHeader()+"\n<i>(tap to remove)</i>",
		models.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (bh *Handlers) showAdminList(ctx context.Context, b *bot.Bot, update *models.Update, chatID int64) {
	admins, err := bh.admins.ListAdmins(ctx)
	if err != nil {
		logger.Error("list admins", zap.Error(err))
		bh.send(ctx, b, chatID, messages.ErrorDefault())
		return
	}
	rows := make([][]models.InlineKeyboardButton, 0, len(admins)+2)
	for _, a := range admins {
		label := fmt.Sprintf("🛡 %d", a.TelegramID)
		if a.Username != "" {
			label = "🛡 @" + a.Username
		}
		if a.IsRoot {
			label += " (root)"
		}
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: label, CallbackData: fmt.Sprintf("admin:admin_del:%d", a.TelegramID)},
		})
	}
	rows = append(rows, []models.InlineKeyboardButton{
		{Text: pad("➕ Add admin"), CallbackData: "admin:admin_add"},
	})
	rows = append(rows, backRow("admin"))
	bh.editOrSend(ctx, b, update, chatID, "🛡 <b>Admins</b> (tap to remove, root is protected)",
		models.InlineKeyboardMarkup{InlineKeyboard: rows})
}

// HandleAdminText advances whichever wizard is in flight by one step.
func (bh *Handlers) HandleAdminText(ctx context.Context, b *bot.Bot, update *models.Update, acc *types.Account, sess *store.AdminSession) {
	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)
	if sess.Fields == nil {
		sess.Fields = map[string]string{}
	}

	finish := func() {
		_ = bh.states.ClearAdminSession(acc.TelegramID)
	}
	advance := func(next, prompt string) {
		sess.State = next
		if err := bh.states.SetAdminSession(acc.TelegramID, sess); err != nil {
			logger.Error("set admin session", zap.Error(err))
			bh.send(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		bh.send(ctx, b, chatID, prompt)
	}

	switch sess.State {
	case stateProductName:
		sess.Fields["name"] = text
		advance(stateProductDesc, messages.AdminProductDescPrompt())

	case stateProductDesc:
		desc := text
		if desc == "-" {
			desc = ""
		}
		p, err := bh.catalog.CreateProduct(ctx, sess.Fields["name"], desc)
		if err != nil {
			bh.send(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		finish()
		logger.LogAdminAction(acc.TelegramID, "product_create", fmt.Sprintf("id=%d name=%q", p.ID, p.Name))
		bh.showAdminProduct(ctx, b, update, chatID, p.ID)

	case stateProductImage:
		var fileID *string
		switch {
		case len(update.Message.Photo) > 0:
			// Telegram sends several sizes of the same photo; keep the largest.
			best := update.Message.Photo[0]
			for i := 1; i < len(update.Message.Photo); i++ {
				if update.Message.Photo[i].FileSize > best.FileSize {
					best = update.Message.Photo[i]
				}
			}
			fileID = &best.FileID
		case text == "-":
			empty := ""
			fileID = &empty
		default:
			bh.send(ctx, b, chatID, messages.AdminProductImagePrompt())
			return
		}
		if _, err := bh.catalog.UpdateProduct(ctx, sess.ProductID, types.ProductUpdate{ImageFileID: fileID}); err != nil {
			bh.send(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		finish()
		logger.LogAdminAction(acc.TelegramID, "product_image", fmt.Sprintf("product=%d set=%v", sess.ProductID, *fileID != ""))
		if *fileID != "" {
			bh.send(ctx, b, chatID, messages.AdminProductImageSet())
		} else {
			bh.send(ctx, b, chatID, messages.AdminProductImageCleared())
		}
		bh.showAdminProduct(ctx, b, update, chatID, sess.ProductID)

	case statePriceLines:
		report, err := bh.catalog.UpsertPriceLines(ctx, sess.ProductID, text)
		if err != nil {
			bh.send(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		finish()
		logger.LogAdminAction(acc.TelegramID, "prices_set", fmt.Sprintf("product=%d added=%d rejected=%d", sess.ProductID, report.Added, len(report.Rejected)))
		bh.send(ctx, b, chatID, messages.AdminIngestReport("Prices", report))
		bh.showAdminProduct(ctx, b, update, chatID, sess.ProductID)

	case stateKeyLines:
		report, err := bh.catalog.IngestKeys(ctx, sess.ProductID, text)
		if err != nil {
			bh.send(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		finish()
		logger.LogAdminAction(acc.TelegramID, "keys_ingest", fmt.Sprintf("product=%d added=%d rejected=%d", sess.ProductID, report.Added, len(report.Rejected)))
		bh.send(ctx, b, chatID, messages.AdminIngestReport("Keys", report))
		bh.showAdminProduct(ctx, b, update, chatID, sess.ProductID)

	case stateCreditUser:
		target, err := bh.resolveAccountRef(ctx, text)
		if err != nil {
			bh.send(ctx, b, chatID, messages.AdminUserNotFound())
			return
		}
		sess.AccountID = target.ID
		advance(stateCreditAmount, messages.AdminCreditAmountPrompt(displayName(target)))

	case stateCreditAmount:
		amount, err := decimal.NewFromString(text)
		if err != nil || amount.IsNegative() {
			bh.send(ctx, b, chatID, messages.AdminInvalidAmount())
			return
		}
		if sess.Fields["sign"] == "-" {
			amount = amount.Neg()
		}
		updated, err := bh.accounts.AdminAdjust(ctx, sess.AccountID, amount)
		if err != nil {
			bh.send(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		finish()
		logger.LogAdminAction(acc.TelegramID, "credits_adjust", fmt.Sprintf("account=%d delta=%s", sess.AccountID, amount.String()))
		bh.send(ctx, b, chatID, messages.AdminCreditApplied(displayName(updated), updated.Balance))

	case statePremiumUser:
		target, err := bh.resolveAccountRef(ctx, text)
		if err != nil {
			bh.send(ctx, b, chatID, messages.AdminUserNotFound())
			return
		}
		if err := bh.accounts.SetTier(ctx, target.ID, types.TierPremium); err != nil {
			bh.send(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		finish()
		logger.LogAdminAction(acc.TelegramID, "premium_grant", fmt.Sprintf("account=%d", target.ID))
		bh.send(ctx, b, chatID, messages.AdminPremiumGranted(displayName(target)))

	case stateBanUser:
		target, err := bh.resolveAccountRef(ctx, text)
		if err != nil {
			bh.send(ctx, b, chatID, messages.AdminUserNotFound())
			return
		}
		banned := !target.Banned
		if err := bh.accounts.SetBanned(ctx, target.ID, banned); err != nil {
			bh.send(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		finish()
		logger.LogAdminAction(acc.TelegramID, "ban_toggle", fmt.Sprintf("account=%d banned=%v", target.ID, banned))
		bh.send(ctx, b, chatID, messages.AdminBanToggled(displayName(target), banned))

	case stateSellerUsername:
		sess.Fields["username"] = strings.TrimPrefix(text, "@")
		advance(stateSellerName, messages.AdminSellerNamePrompt())

	case stateSellerName:
		sess.Fields["name"] = text
		advance(stateSellerDesc, messages.AdminSellerDescPrompt())

	case stateSellerDesc:
		desc := text
		if desc == "-" {
			desc = ""
		}
		s, err := bh.sellers.AddSeller(ctx, sess.Fields["username"], sess.Fields["name"], desc)
		if err != nil {
			bh.send(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		finish()
		logger.LogAdminAction(acc.TelegramID, "seller_add", fmt.Sprintf("id=%d username=%q", s.ID, s.Username))
		bh.send(ctx, b, chatID, messages.AdminSellerAdded(s.Name))

	case stateAdminID:
		tgID, err := strconv.ParseInt(text, 10, 64)
		if err != nil || tgID <= 0 {
			bh.send(ctx, b, chatID, messages.AdminInvalidID())
			return
		}
		username := ""
		if target, err := bh.accounts.GetByTelegramID(ctx, tgID); err == nil {
			username = target.Username
		}
		if err := bh.admins.AddAdmin(ctx, tgID, username, false); err != nil {
			bh.send(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		_ = bh.cache.Del(fmt.Sprintf("is_admin:%d", tgID))
		finish()
		logger.LogAdminAction(acc.TelegramID, "admin_add", fmt.Sprintf("telegram_id=%d", tgID))
		bh.send(ctx, b, chatID, messages.AdminAdminAdded(tgID))

	case stateBroadcast:
		finish()
		logger.LogAdminAction(acc.TelegramID, "broadcast", fmt.Sprintf("len=%d", len(text)))
		delivered, failed, err := bh.broadcaster.SendText(ctx, b, text)
		if err != nil {
			logger.Error("broadcast", zap.Error(err))
			bh.send(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		bh.send(ctx, b, chatID, messages.BroadcastReport(delivered, failed))

	default:
		_ = bh.states.ClearAdminSession(acc.TelegramID)
		bh.sendAdminMenu(ctx, b, chatID)
	}
}

// resolveAccountRef accepts either "@username" / "username" or a raw
// Telegram ID and finds the matching account.
func (bh *Handlers) resolveAccountRef(ctx context.Context, ref string) (*types.Account, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return bh.accounts.GetByTelegramID(ctx, id)
	}
	return bh.accounts.GetByUsername(ctx, strings.TrimPrefix(ref, "@"))
}

func displayName(a *types.Account) string {
	if a.Username != "" {
		return "@" + a.Username
	}
	if a.FirstName != "" {
		return a.FirstName
	}
	return strconv.FormatInt(a.TelegramID, 10)
}

func parseID(data, prefix string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
