package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"keyshop/internal/account"
	"keyshop/internal/contextkeys"
	"keyshop/internal/logger"
	"keyshop/internal/messages"
	"keyshop/store"
	"keyshop/types"
)

type Middlewares struct {
	accounts    *account.Service
	admins      types.AdminStore
	cache       types.Cache
	rootAdminID int64
}

func NewAccountResolver(accounts *account.Service, admins types.AdminStore, cache types.Cache, rootAdminID int64) *Middlewares {
	return &Middlewares{
		accounts:    accounts,
		admins:      admins,
		cache:       cache,
		rootAdminID: rootAdminID,
	}
}

// ResolveAccount upserts the account for every inbound update, drops updates
// from banned accounts, and marks admin updates in the context.
func (m *Middlewares) ResolveAccount(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		var from *models.User
		var chatID int64

		switch {
		case update.Message != nil && update.Message.From != nil:
			from = update.Message.From
			chatID = update.Message.Chat.ID
		case update.CallbackQuery != nil:
			from = &update.CallbackQuery.From
			if update.CallbackQuery.Message.Message != nil {
				chatID = update.CallbackQuery.Message.Message.Chat.ID
			}
		default:
			return
		}
		if from == nil || from.ID == 0 {
			return
		}

		acc, err := m.accounts.GetOrCreate(ctx, from.ID, from.Username, from.FirstName, from.LastName)
		if err != nil {
			logger.Error("account resolution failed", zap.Int64("telegram_id", from.ID), zap.Error(err))
			if chatID != 0 {
				_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID:    chatID,
					Text:      messages.ErrorDefault(),
					ParseMode: messages.ParseModeHTML,
				})
			}
			return
		}

		if acc.Banned {
			if update.Message != nil && chatID != 0 {
				_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID: chatID,
					Text:   messages.AccountBanned(),
				})
			}
			return
		}

		ctx = contextkeys.WithAccount(ctx, acc)
		ctx = contextkeys.WithAdmin(ctx, m.isAdmin(ctx, from.ID))
		next(ctx, b, update)
	}
}

func (m *Middlewares) isAdmin(ctx context.Context, telegramID int64) bool {
	if telegramID == m.rootAdminID {
		return true
	}

	cacheKey := fmt.Sprintf("is_admin:%d", telegramID)
	if m.cache != nil {
		var cached bool
		if err := m.cache.Get(cacheKey, &cached); err == nil {
			return cached
		}
	}

	_, err := m.admins.GetAdmin(ctx, telegramID)
	isAdmin := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		// Fail closed on storage trouble.
		logger.Warn("admin lookup failed", zap.Int64("telegram_id", telegramID), zap.Error(err))
		return false
	}
	if m.cache != nil {
		_ = m.cache.Set(cacheKey, isAdmin, 10*time.Minute)
	}
	return isAdmin
}
