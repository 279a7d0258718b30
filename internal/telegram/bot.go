// Package telegram – Bot
//
// Update loop and per-message dispatch. Every inbound message is handled as
// an independent short-lived unit of work on its own goroutine; ordering for
// a single user is guaranteed by the atomic step transitions in the services
// layer, not by the loop.
package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/leadvane/adkey-backend/internal/services"
)

// deny/transient copy. Denial and infrastructure failure must never share a
// message: a store outage shown as "no subscription" would silently lock
// users out.
const (
	msgDenied    = "You don't have active access. Contact the administrator to get a subscription."
	msgExpired   = "Your access has expired. Contact the administrator to renew it."
	msgTransient = "Service is temporarily unavailable, please try again in a minute."
	msgWelcome   = "Welcome! Use the menu below to submit your advertising-platform API key."
	msgHelp      = "Press \"" + btnSubmitKey + "\" and follow the steps: category, country, platform, price, then paste the key. \"" + btnBack + "\" returns one step."
)

// Bot wires the Telegram transport to the application services.
type Bot struct {
	api    *tgbotapi.BotAPI
	access *services.AccessService
	funnel *services.FunnelService
	admin  *services.AdminService
	log    zerolog.Logger
}

// New authenticates against the Bot API. An empty token returns (nil, nil):
// the transport is optional so the HTTP surface can run without it.
func New(token string, access *services.AccessService, funnel *services.FunnelService, admin *services.AdminService) (*Bot, error) {
	if token == "" {
		return nil, nil
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: authorize bot: %w", err)
	}
	b := &Bot{
		api:    api,
		access: access,
		funnel: funnel,
		admin:  admin,
		log:    log.With().Str("component", "telegram").Logger(),
	}
	b.log.Info().Str("username", api.Self.UserName).Msg("bot authorized")
	return b, nil
}

// Run blocks on the long-poll update loop until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	if b == nil {
		return
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.log.Info().Msg("update loop started")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.log.Info().Msg("update loop stopped")
			return
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

// Send implements services.Notifier over the Bot API.
func (b *Bot) Send(_ context.Context, userID int64, text string) error {
	if b == nil {
		return nil
	}
	_, err := b.api.Send(tgbotapi.NewMessage(userID, text))
	return err
}

// handleMessage is the onUserMessage/onAdminCommand dispatch point.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.Chat.ID
	text := msg.Text
	updatesSeen.Inc()

	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Int64("user_id", userID).Interface("panic", r).Msg("message handler panicked")
		}
	}()

	if b.access.IsAdmin != nil && b.access.IsAdmin(userID) && isAdminCommand(text) {
		b.reply(userID, b.handleAdminCommand(ctx, userID, text))
		return
	}

	switch text {
	case "/start":
		b.replyKeyboard(userID, msgWelcome, mainMenuKeyboard())
		return
	case "/help", btnHelp:
		b.replyKeyboard(userID, msgHelp, mainMenuKeyboard())
		return
	}

	acc, err := b.access.CheckAccess(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoAccess):
			deniedTotal.Inc()
			b.reply(userID, msgDenied)
		case errors.Is(err, services.ErrAccessExpired):
			deniedTotal.Inc()
			b.reply(userID, msgExpired)
		default:
			b.log.Error().Err(err).Int64("user_id", userID).Msg("access check failed")
			b.reply(userID, msgTransient)
		}
		return
	}

	switch text {
	case btnStatus, "/status":
		b.reply(userID, b.statusText(ctx, userID, acc))
	case btnSubmitKey:
		f, resumed, err := b.funnel.Begin(ctx, userID)
		if err != nil {
			b.log.Error().Err(err).Int64("user_id", userID).Msg("begin funnel failed")
			b.reply(userID, msgTransient)
			return
		}
		lead := "Let's submit a key. "
		if resumed {
			lead = "Resuming where you left off. "
		}
		b.replyKeyboard(userID, lead+stepPrompt(f.Step), stepKeyboard(f.Step))
	case btnBack:
		b.handleBack(ctx, userID)
	default:
		b.handleStepInput(ctx, userID, text)
	}
}

func (b *Bot) handleBack(ctx context.Context, userID int64) {
	f, exited, err := b.funnel.GoBack(ctx, userID)
	switch {
	case errors.Is(err, services.ErrNoFunnel):
		b.replyKeyboard(userID, "Nothing to go back from.", mainMenuKeyboard())
	case err != nil:
		b.log.Error().Err(err).Int64("user_id", userID).Msg("go back failed")
		b.reply(userID, msgTransient)
	case exited:
		b.replyKeyboard(userID, "Submission cancelled.", mainMenuKeyboard())
	default:
		b.replyKeyboard(userID, stepPrompt(f.Step), stepKeyboard(f.Step))
	}
}

func (b *Bot) handleStepInput(ctx context.Context, userID int64, text string) {
	res, err := b.funnel.Advance(ctx, userID, text)
	switch {
	case err == nil:
		if res.Completed {
			outcome := "saved"
			if res.Duplicate {
				outcome = "duplicate"
			}
			completionsTotal.WithLabelValues(outcome).Inc()
			// The engine already notified the user with the terminal result.
			b.replyKeyboard(userID, "Done. Anything else?", mainMenuKeyboard())
			return
		}
		b.replyKeyboard(userID, stepPrompt(res.State.Step), stepKeyboard(res.State.Step))
	case errors.Is(err, services.ErrNoFunnel):
		b.replyKeyboard(userID, "Press \""+btnSubmitKey+"\" to start.", mainMenuKeyboard())
	case errors.Is(err, services.ErrReservedInput):
		b.replyKeyboard(userID, "Use the menu below.", mainMenuKeyboard())
	case errors.Is(err, services.ErrBadCategory),
		errors.Is(err, services.ErrBadGeography),
		errors.Is(err, services.ErrBadSource),
		errors.Is(err, services.ErrBadPrice),
		errors.Is(err, services.ErrBadKey):
		b.reply(userID, stepError(err))
	default:
		b.log.Error().Err(err).Int64("user_id", userID).Msg("advance failed")
		b.reply(userID, msgTransient)
	}
}

func (b *Bot) statusText(ctx context.Context, userID int64, acc services.Access) string {
	keys, err := b.admin.KeyCount(ctx, userID)
	if err != nil {
		b.log.Warn().Err(err).Int64("user_id", userID).Msg("key count failed")
	}
	if acc.DaysRemaining >= services.AdminDaysRemaining {
		return fmt.Sprintf("You are an administrator. Stored keys: %d.", keys)
	}
	return fmt.Sprintf("Access active, %d day(s) remaining (until %s). Stored keys: %d.",
		acc.DaysRemaining, acc.ExpiresAt.Format("2006-01-02"), keys)
}

func (b *Bot) reply(userID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(userID, text)); err != nil {
		b.log.Warn().Err(err).Int64("user_id", userID).Msg("send failed")
	}
}

func (b *Bot) replyKeyboard(userID int64, text string, kb tgbotapi.ReplyKeyboardMarkup) {
	m := tgbotapi.NewMessage(userID, text)
	m.ReplyMarkup = kb
	if _, err := b.api.Send(m); err != nil {
		b.log.Warn().Err(err).Int64("user_id", userID).Msg("send failed")
	}
}
