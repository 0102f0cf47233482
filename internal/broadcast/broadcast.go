// Package broadcast fans an announcement out to every account through a
// bounded worker pool, so one broadcast cannot monopolize the bot.
package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-telegram/bot"
	"go.uber.org/zap"

	"keyshop/internal/logger"
	"keyshop/internal/messages"
	"keyshop/types"
)

type Broadcaster struct {
	accounts types.AccountStore
	workers  int
}

func New(accounts types.AccountStore, workers int) *Broadcaster {
	if workers <= 0 {
		workers = 3
	}
	return &Broadcaster{accounts: accounts, workers: workers}
}

// SendText delivers text to every known account. Per-recipient failures
// (blocked bot, deleted chat) are counted, not fatal.
func (br *Broadcaster) SendText(ctx context.Context, b *bot.Bot, text string) (delivered, failed int, err error) {
	accounts, err := br.accounts.ListAccounts(ctx)
	if err != nil {
		return 0, 0, err
	}

	jobs := make(chan int64)
	var deliveredN, failedN int64
	var wg sync.WaitGroup

	for i := 0; i < br.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for telegramID := range jobs {
				_, sendErr := b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID:    telegramID,
					Text:      text,
					ParseMode: messages.ParseModeHTML,
				})
				if sendErr != nil {
					atomic.AddInt64(&failedN, 1)
				} else {
					atomic.AddInt64(&deliveredN, 1)
				}
				// Stay under Telegram's flood limits.
				time.Sleep(50 * time.Millisecond)
			}
		}()
	}

	for _, acc := range accounts {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return int(atomic.LoadInt64(&deliveredN)), int(atomic.LoadInt64(&failedN)), ctx.Err()
		case jobs <- acc.TelegramID:
		}
	}
	close(jobs)
	wg.Wait()

	logger.Info("broadcast finished",
		zap.Int64("delivered", atomic.LoadInt64(&deliveredN)),
		zap.Int64("failed", atomic.LoadInt64(&failedN)))
	return int(atomic.LoadInt64(&deliveredN)), int(atomic.LoadInt64(&failedN)), nil
}
