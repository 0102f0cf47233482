package messages

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"keyshop/types"
)

const ParseModeHTML = "HTML"

const divider = "━━━━━━━━━━━━━━━"

func Escape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(strings.TrimSpace(s))
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func Welcome(firstName string) string {
	name := Escape(firstName)
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("👋 <b>Hi %s!</b>\nBrowse products, check your balance and redeem keys right here.", name)
}

func ErrorDefault() string {
	return "🚫 <b>Something went wrong</b>\nPlease try again."
}

func AccessDeniedPremium() string {
	return "⚠️ <b>Premium access required</b>\nUpgrade to premium to make purchases."
}

func AccountBanned() string {
	return "🚫 Your account has been suspended."
}

func ProductsHeader() string {
	return divider + "\n🛒 <b>PRODUCTS</b>\n" + divider
}

func NoProducts() string {
	return "📭 No products available right now."
}

func ProductDetail(l *types.ProductListing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n📦 <b>%s</b>\n%s\n", divider, Escape(l.Product.Name), divider)
	if l.Product.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", Escape(l.Product.Description))
	}
	b.WriteString("\n<b>Options:</b>\n")
	if len(l.Tiers) == 0 {
		b.WriteString("   <i>no price options yet</i>\n")
	}
	for _, t := range l.Tiers {
		stock := fmt.Sprintf("%d in stock", t.InStock)
		if t.InStock == 0 {
			stock = "out of stock"
		}
		fmt.Fprintf(&b, "   • %s — %s (%s)\n", Escape(t.Tier.Duration), money(t.Tier.Price), stock)
	}
	return b.String()
}

func ConfirmPurchase(productName, duration string, price, balance decimal.Decimal) string {
	return fmt.Sprintf(
		"You are about to purchase:\n\n"+
			"📦 <b>%s</b>\n⏱ %s\n💰 %s\n\n"+
			"Your balance: <code>%s</code>\n"+
			"After purchase: <code>%s</code>",
		Escape(productName), Escape(duration), money(price),
		money(balance), money(balance.Sub(price)))
}

func PurchaseSuccess(o *types.Order, newBalance decimal.Decimal) string {
	var b strings.Builder
	b.WriteString("✅ <b>Purchase successful!</b>\n\n")
	fmt.Fprintf(&b, "📦 <b>Product:</b> %s\n", Escape(o.ProductName))
	fmt.Fprintf(&b, "⏱ <b>Duration:</b> %s\n", Escape(o.Duration))
	fmt.Fprintf(&b, "💰 <b>Price:</b> %s\n", money(o.Price))
	fmt.Fprintf(&b, "\n🔑 <b>Your key:</b>\n<code>%s</code>\n", Escape(o.KeyValue))
	fmt.Fprintf(&b, "\nNew balance: <code>%s</code>", money(newBalance))
	return b.String()
}

func PurchaseFailed(reason types.FailReason) string {
	switch reason {
	case types.FailAccessDenied:
		return AccessDeniedPremium()
	case types.FailTierNotFound:
		return "❌ This option is no longer available."
	case types.FailOutOfStock:
		return "❌ <b>Out of stock</b>\nNo keys left for this option. Check back later."
	case types.FailInsufficientBalance:
		return "❌ <b>Insufficient balance</b>\nTop up your balance and try again."
	case types.FailAccountNotFound:
		return "❌ Account not found. Send /start first."
	default:
		return ErrorDefault()
	}
}

func BalanceInfo(a *types.Account, adminUsername string) string {
	tier := "Free"
	if a.Tier == types.TierPremium {
		tier = "⭐ Premium"
	}
	return fmt.Sprintf(
		"%s\n👤 <b>YOUR ACCOUNT</b>\n%s\n\n"+
			"💰 <b>Balance:</b> %s\n"+
			"🎖 <b>Status:</b> %s\n\n"+
			"To top up your balance, contact %s",
		divider, divider, money(a.Balance), tier, Escape(adminUsername))
}

func OrdersHeader() string {
	return divider + "\n📜 <b>YOUR ORDERS</b>\n" + divider
}

func NoOrders() string {
	return "📭 You have no orders yet."
}

func OrderLine(o types.Order) string {
	line := fmt.Sprintf("📦 <b>%s</b> — %s, %s", Escape(o.ProductName), Escape(o.Duration), money(o.Price))
	if o.KeyValue != "" {
		line += fmt.Sprintf("\n   🔑 <code>%s</code>", Escape(o.KeyValue))
	}
	line += fmt.Sprintf("\n   🗓 %s", o.PurchasedAt.Format("2006-01-02 15:04"))
	return line
}

func SellersHeader() string {
	return divider + "\n⭐ <b>TRUSTED SELLERS</b>\n" + divider
}

func SellerLine(s types.TrustedSeller) string {
	line := fmt.Sprintf("@%s", Escape(s.Username))
	if s.Name != "" {
		line += " — " + Escape(s.Name)
	}
	if s.Description != "" {
		line += "\n   <i>" + Escape(s.Description) + "</i>"
	}
	return line
}

// --- admin panel ---

func AdminMenu() string {
	return divider + "\n🛠 <b>ADMIN PANEL</b>\n" + divider
}

func AdminStats(st *types.Stats) string {
	return fmt.Sprintf(
		"%s\n📊 <b>STATISTICS</b>\n%s\n\n"+
			"👥 Users: <b>%d</b>\n"+
			"⭐ Premium: <b>%d</b>\n"+
			"📦 Products: <b>%d</b>\n"+
			"🧾 Orders: <b>%d</b>\n"+
			"💵 Revenue: <b>%s</b>",
		divider, divider, st.Accounts, st.PremiumUsers, st.Products, st.Orders, money(st.Revenue))
}

func AdminPricesPrompt() string {
	return "📋 <b>Send pricing, one per line:</b>\n\n" +
		"<code>&lt;duration&gt; &lt;price&gt;</code>\n\n" +
		"Examples:\n<code>1d 1</code>\n<code>7d 5</code>\n<code>1m 10</code>\n<code>3m 25</code>"
}

func AdminKeysPrompt() string {
	return "🔑 <b>Send keys, one per line:</b>\n\n" +
		"<code>&lt;duration&gt; &lt;key&gt;</code>\n\n" +
		"Examples:\n<code>1d ABC123XYZ</code>\n<code>7d DEF456UVW</code>\n\n" +
		"<i>The duration must match one of the product's price options.</i>"
}

func AdminIngestReport(title string, r *types.IngestReport) string {
	text := fmt.Sprintf("✅ <b>%s:</b> %d added", Escape(title), r.Added)
	if len(r.Rejected) > 0 {
		text += fmt.Sprintf("\n\n⚠️ <b>Rejected (%d):</b>", len(r.Rejected))
		limit := len(r.Rejected)
		if limit > 10 {
			limit = 10
		}
		for _, e := range r.Rejected[:limit] {
			text += "\n• " + Escape(e)
		}
		if len(r.Rejected) > 10 {
			text += fmt.Sprintf("\n… and %d more", len(r.Rejected)-10)
		}
	}
	return text
}

func AdminKeyCounts(productName string, total, available int) string {
	return fmt.Sprintf(
		"%s\n🔑 <b>%s — KEYS</b>\n%s\n\n"+
			"📊 Total: <b>%d</b>\n✅ Available: <b>%d</b>\n❌ Used: <b>%d</b>",
		divider, Escape(productName), divider, total, available, total-available)
}

func BroadcastReport(delivered, failed int) string {
	return fmt.Sprintf("📣 Broadcast finished: delivered %d, failed %d", delivered, failed)
}

func AdminProductNamePrompt() string {
	return "📦 <b>New product</b>\n\nSend the product name:"
}

func AdminProductDescPrompt() string {
	return "📝 Now send the product description (or <code>-</code> for none):"
}

func AdminProductImagePrompt() string {
	return "🖼 Send a photo for the product, or <code>-</code> to remove the current one:"
}

func AdminProductImageSet() string {
	return "🖼 Product image updated"
}

func AdminProductImageCleared() string {
	return "🖼 Product image removed"
}

func AdminCreditUserPrompt() string {
	return "👤 Send the user's @username or Telegram ID:"
}

func AdminCreditAmountPrompt(username string) string {
	return fmt.Sprintf("💰 Send the amount for <b>%s</b> (e.g. <code>5</code> or <code>2.50</code>):", Escape(username))
}

func AdminCreditApplied(username string, balance decimal.Decimal) string {
	return fmt.Sprintf("✅ Balance of <b>%s</b> is now <b>%s</b>", Escape(username), money(balance))
}

func AdminPremiumUserPrompt() string {
	return "⭐ Send the @username or Telegram ID to grant premium:"
}

func AdminPremiumGranted(username string) string {
	return fmt.Sprintf("⭐ <b>%s</b> is now premium", Escape(username))
}

func AdminPremiumRevoked(username string) string {
	return fmt.Sprintf("✅ Premium removed from <b>%s</b>", Escape(username))
}

func AdminBanUserPrompt() string {
	return "🚫 Send the @username or Telegram ID to ban or unban:"
}

func AdminBanToggled(username string, banned bool) string {
	if banned {
		return fmt.Sprintf("🚫 <b>%s</b> is banned", Escape(username))
	}
	return fmt.Sprintf("✅ <b>%s</b> is unbanned", Escape(username))
}

func AdminUserNotFound() string {
	return "❌ User not found. They must have started the bot at least once."
}

func AdminSellerUsernamePrompt() string {
	return "🤝 Send the seller's @username:"
}

func AdminSellerNamePrompt() string {
	return "🏷 Send the seller's display name:"
}

func AdminSellerDescPrompt() string {
	return "📝 Send a short description (or <code>-</code> for none):"
}

func AdminSellerAdded(name string) string {
	return fmt.Sprintf("✅ Seller <b>%s</b> added", Escape(name))
}

func AdminAdminIDPrompt() string {
	return "🛡 Send the Telegram ID of the new admin:"
}

func AdminAdminAdded(telegramID int64) string {
	return fmt.Sprintf("🛡 Admin <code>%d</code> added", telegramID)
}

func AdminAdminRemoved(removed bool) string {
	if removed {
		return "✅ Admin removed"
	}
	return "❌ Cannot remove that admin"
}

func AdminBroadcastPrompt() string {
	return "📣 Send the broadcast text. It goes to <b>every</b> user:"
}

func AdminKeysDeleted(n int64) string {
	return fmt.Sprintf("🗑 Deleted <b>%d</b> keys", n)
}

func AdminProductDeleted(name string) string {
	return fmt.Sprintf("🗑 Product <b>%s</b> deleted", Escape(name))
}

func AdminInvalidAmount() string {
	return "❌ That doesn't look like a number. Try again:"
}

func AdminInvalidID() string {
	return "❌ That doesn't look like a Telegram ID. Try again:"
}
