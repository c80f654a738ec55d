// Package bot provides Telegram bot functionality
//
// telegram.go - exit alerts plus a small operator command set: positions,
// pending manual exits, sells, threshold adjustments, auto-exit and kill
// switch toggles, and trade-memory recommendations.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/execution"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

// client is the slice of *tgbotapi.BotAPI the bot uses.
type client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// PositionLister lists live positions. *positions.Store implements it.
type PositionLister interface {
	ListOpen() []*types.Position
}

// Seller sells part or all of a position. *execution.TradeService implements it.
type Seller interface {
	Sell(ctx context.Context, positionID string, percent decimal.Decimal) (*types.SwapResult, error)
}

// ExitControl is the operator surface of the exit executor.
type ExitControl interface {
	AutoExecute() bool
	SetAutoExecute(on bool)
	PendingManual() []types.Alert
}

// ThresholdAdjuster changes TP/SL on an open position. *positions.Store implements it.
type ThresholdAdjuster interface {
	AdjustThresholds(ctx context.Context, id string, tpPercent, slPercent decimal.Decimal) error
}

// KillSwitch is the operator surface of the entry kill switch. *risk.KillSwitch implements it.
type KillSwitch interface {
	Trip(reason string)
	Reset()
	Stats() (consecutiveLosses int, tripped bool, reason string)
}

// Advisor answers trade-memory queries. *memory.TradeMemory implements it.
type Advisor interface {
	Recommend(signalType, regime string, sentimentScore float64) types.Recommendation
}

// Deps are the services commands act on. Nil members disable their commands.
type Deps struct {
	Positions  PositionLister
	Thresholds ThresholdAdjuster
	Trader     Seller
	Exits      ExitControl
	Kill       KillSwitch
	Advisor    Advisor
}

// Bot sends exit alerts to one chat and answers commands from it
type Bot struct {
	api    client
	chatID int64
	deps   Deps
	stopCh chan struct{}

	// counts the listener and every in-flight command
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New connects to Telegram
func New(token string, chatID int64, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot connected")
	return newBot(api, chatID, deps), nil
}

func newBot(api client, chatID int64, deps Deps) *Bot {
	return &Bot{
		api:    api,
		chatID: chatID,
		deps:   deps,
		stopCh: make(chan struct{}),
	}
}

// Start begins the bot's command listener
func (b *Bot) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.listenForCommands(ctx)
	b.sendStartupMessage()
}

// Stop stops listening and blocks until in-flight commands have finished,
// so a manual sell is persisted before the caller closes the database.
func (b *Bot) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
		b.api.StopReceivingUpdates()
	})
	b.wg.Wait()
}

func (b *Bot) listenForCommands(ctx context.Context) {
	defer b.wg.Done()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.wg.Add(1)
				go func(msg *tgbotapi.Message) {
					defer b.wg.Done()
					b.handleMessage(ctx, msg)
				}(update.Message)
			}
		case <-b.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	log.Debug().
		Int64("chat_id", chatID).
		Str("text", msg.Text).
		Msg("Received message")

	if !msg.IsCommand() {
		return
	}
	// operator commands only from the configured chat
	if chatID != b.chatID {
		log.Warn().Int64("chat_id", chatID).Msg("⚠️ Ignoring command from unknown chat")
		return
	}

	reply := b.handleCommand(ctx, msg.Command(), msg.CommandArguments())
	if err := b.sendMarkdown(chatID, reply); err != nil {
		log.Error().Err(err).Msg("Failed to send reply")
	}
}

// NotifyAlert pushes an exit alert to the configured chat.
func (b *Bot) NotifyAlert(_ context.Context, alert types.Alert) error {
	auto := b.deps.Exits != nil && b.deps.Exits.AutoExecute()
	return b.sendMarkdown(b.chatID, formatAlert(alert, auto))
}

// ═══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func (b *Bot) handleCommand(ctx context.Context, command, args string) string {
	switch command {
	case "start", "help":
		return helpText
	case "status":
		return b.cmdStatus()
	case "positions":
		return b.cmdPositions()
	case "pending":
		return b.cmdPending()
	case "sell":
		return b.cmdSell(ctx, args)
	case "adjust":
		return b.cmdAdjust(ctx, args)
	case "autoexit":
		return b.cmdAutoExit(args)
	case "killswitch":
		return b.cmdKillSwitch(args)
	case "recommend":
		return b.cmdRecommend(args)
	default:
		return "❓ Unknown command. Use /help for available commands."
	}
}

const helpText = `📚 *Commands*

/status - Open positions & auto-exit mode
/positions - Open positions with PnL
/pending - Exits waiting for manual action
/sell <id> [percent] - Sell a position (default 100%)
/adjust <id> <tp%> <sl%> - Change take profit / stop loss
/autoexit on|off - Toggle automatic exits
/killswitch on|off|status - Halt or resume new entries
/recommend <signal> [regime] [sentiment] - Ask trade memory`

func (b *Bot) cmdStatus() string {
	open := 0
	if b.deps.Positions != nil {
		open = len(b.deps.Positions.ListOpen())
	}
	autoStatus := "🔴 OFF"
	pending := 0
	if b.deps.Exits != nil {
		if b.deps.Exits.AutoExecute() {
			autoStatus = "🟢 ON"
		}
		pending = len(b.deps.Exits.PendingManual())
	}
	return fmt.Sprintf(`📊 *Bot Status*

📈 *Open positions:* %d
🎯 *Auto-exit:* %s
⏳ *Pending manual exits:* %d`, open, autoStatus, pending)
}

func (b *Bot) cmdPositions() string {
	if b.deps.Positions == nil {
		return "❌ Position tracking not enabled."
	}
	open := b.deps.Positions.ListOpen()
	if len(open) == 0 {
		return "📭 No open positions."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📈 *Open positions (%d)*\n", len(open)))
	for _, p := range open {
		sb.WriteString("\n")
		sb.WriteString(formatPosition(p))
	}
	return sb.String()
}

func (b *Bot) cmdPending() string {
	if b.deps.Exits == nil {
		return "❌ Exit executor not enabled."
	}
	pending := b.deps.Exits.PendingManual()
	if len(pending) == 0 {
		return "✅ No exits waiting."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⏳ *Pending manual exits (%d)*\n", len(pending)))
	for _, a := range pending {
		sb.WriteString(fmt.Sprintf("\n%s %s `%s` at %s (%s%%)",
			alertEmoji(a.Type), alertLabel(a.Type),
			a.Position.ID, formatPrice(a.Price), a.PnLPercent.StringFixed(2)))
	}
	return sb.String()
}

func (b *Bot) cmdSell(ctx context.Context, args string) string {
	if b.deps.Trader == nil {
		return "❌ Trading not enabled."
	}
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "Usage: /sell <position id> [percent]"
	}
	percent := decimal.NewFromInt(100)
	if len(fields) > 1 {
		p, err := decimal.NewFromString(strings.TrimSuffix(fields[1], "%"))
		if err != nil {
			return "❌ Invalid percent: " + escapeMarkdown(fields[1])
		}
		percent = p
	}

	result, err := b.deps.Trader.Sell(ctx, fields[0], percent)
	if err != nil {
		return "❌ " + escapeMarkdown(userError(err))
	}
	return fmt.Sprintf(`✅ *SOLD %s%%*

*Position:* %s
*Venue:* %s (%s)
*Tx:* %s`,
		percent.String(), escapeMarkdown(fields[0]),
		escapeMarkdown(result.Venue), result.Source, escapeMarkdown(result.TxRef))
}

func (b *Bot) cmdAdjust(ctx context.Context, args string) string {
	if b.deps.Thresholds == nil {
		return "❌ Position tracking not enabled."
	}
	fields := strings.Fields(args)
	if len(fields) != 3 {
		return "Usage: /adjust <position id> <tp%> <sl%>"
	}
	tp, err := decimal.NewFromString(strings.TrimSuffix(fields[1], "%"))
	if err != nil {
		return "❌ Invalid take profit: " + escapeMarkdown(fields[1])
	}
	sl, err := decimal.NewFromString(strings.TrimSuffix(fields[2], "%"))
	if err != nil {
		return "❌ Invalid stop loss: " + escapeMarkdown(fields[2])
	}

	if err := b.deps.Thresholds.AdjustThresholds(ctx, fields[0], tp, sl); err != nil {
		return "❌ " + escapeMarkdown(err.Error())
	}
	return fmt.Sprintf("🔧 *Thresholds updated*\n\n*Position:* %s\n*TP:* +%s%%\n*SL:* -%s%%",
		escapeMarkdown(fields[0]), tp.String(), sl.String())
}

func (b *Bot) cmdKillSwitch(args string) string {
	if b.deps.Kill == nil {
		return "❌ Kill switch not enabled."
	}
	switch strings.ToLower(strings.TrimSpace(args)) {
	case "on":
		b.deps.Kill.Trip("manual halt via telegram")
		return "🚨 Kill switch ON. New entries are blocked, sells still go through."
	case "off":
		b.deps.Kill.Reset()
		return "✅ Kill switch OFF. Entries allowed."
	case "", "status":
		losses, tripped, reason := b.deps.Kill.Stats()
		if !tripped {
			return fmt.Sprintf("✅ Kill switch OFF (loss streak: %d)", losses)
		}
		return fmt.Sprintf("🚨 Kill switch ON: %s (loss streak: %d)", escapeMarkdown(reason), losses)
	default:
		return "Usage: /killswitch on|off|status"
	}
}

func (b *Bot) cmdAutoExit(args string) string {
	if b.deps.Exits == nil {
		return "❌ Exit executor not enabled."
	}
	switch strings.ToLower(strings.TrimSpace(args)) {
	case "on":
		b.deps.Exits.SetAutoExecute(true)
		return "🟢 Auto-exit enabled."
	case "off":
		b.deps.Exits.SetAutoExecute(false)
		return "🔴 Auto-exit disabled. Alerts will wait in /pending."
	default:
		return "Usage: /autoexit on|off"
	}
}

func (b *Bot) cmdRecommend(args string) string {
	if b.deps.Advisor == nil {
		return "❌ Trade memory not enabled."
	}
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "Usage: /recommend <signal> [regime] [sentiment]"
	}
	signal := fields[0]
	regime := ""
	if len(fields) > 1 {
		regime = fields[1]
	}
	sentiment := 0.0
	if len(fields) > 2 {
		s, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return "❌ Invalid sentiment: " + escapeMarkdown(fields[2])
		}
		sentiment = s
	}
	return formatRecommendation(signal, b.deps.Advisor.Recommend(signal, regime, sentiment))
}

func (b *Bot) sendStartupMessage() {
	auto := "manual"
	if b.deps.Exits != nil && b.deps.Exits.AutoExecute() {
		auto = "automatic"
	}
	text := fmt.Sprintf(`🟢 *Jarvis Online*

Position monitor active, exits are %s.
Use /status to check open positions.`, auto)

	if err := b.sendMarkdown(b.chatID, text); err != nil {
		log.Warn().Err(err).Msg("Failed to send startup message")
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// FORMATTING
// ═══════════════════════════════════════════════════════════════════════════════

func formatAlert(a types.Alert, autoExecute bool) string {
	symbol := a.Position.TokenSymbol
	if symbol == "" {
		symbol = shortMint(a.Position.TokenAddress)
	}
	action := "⏳ Waiting for manual exit: /sell " + a.Position.ID
	if autoExecute {
		action = "⚡ Auto-exit in progress"
	}
	return fmt.Sprintf(`%s *%s*

*Token:* %s
*Entry:* %s SOL
*Price:* %s SOL
*PnL:* %s%%
*Position:* %s

%s`,
		alertEmoji(a.Type), alertLabel(a.Type),
		escapeMarkdown(symbol),
		formatPrice(a.Position.EntryPrice),
		formatPrice(a.Price),
		signed(a.PnLPercent),
		escapeMarkdown(a.Position.ID),
		escapeMarkdown(action),
	)
}

func formatPosition(p *types.Position) string {
	symbol := p.TokenSymbol
	if symbol == "" {
		symbol = shortMint(p.TokenAddress)
	}
	held := time.Since(p.OpenedAt).Round(time.Minute)
	return fmt.Sprintf("• *%s* `%s`\n  entry %s → %s (%s%%) | TP %s | SL %s | %s",
		escapeMarkdown(symbol), p.ID,
		formatPrice(p.EntryPrice), formatPrice(p.CurrentPrice), signed(p.PnLPercent()),
		formatPrice(p.TPPrice), formatPrice(p.SLPrice), held)
}

func formatRecommendation(signal string, r types.Recommendation) string {
	emoji := "⚪"
	switch r.Action {
	case types.ActionBuy:
		emoji = "🟢"
	case types.ActionAvoid:
		emoji = "🔴"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s *%s* for %s\n\n", emoji, r.Action, escapeMarkdown(signal)))
	sb.WriteString(fmt.Sprintf("*Confidence:* %.0f%%\n", r.Confidence*100))
	sb.WriteString(fmt.Sprintf("*Expected return:* %+.2f%%\n", r.ExpectedReturn))
	if r.SuggestedHoldMinutes > 0 {
		sb.WriteString(fmt.Sprintf("*Suggested hold:* %.0f min\n", r.SuggestedHoldMinutes))
	}
	for _, reason := range r.Reasons {
		sb.WriteString("✅ " + escapeMarkdown(reason) + "\n")
	}
	for _, w := range r.Warnings {
		sb.WriteString("⚠️ " + escapeMarkdown(w) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func alertEmoji(t types.AlertType) string {
	switch t {
	case types.AlertTakeProfit:
		return "🎯"
	case types.AlertStopLoss:
		return "🛑"
	case types.AlertTrailingStop:
		return "📉"
	default:
		return "🔔"
	}
}

func alertLabel(t types.AlertType) string {
	switch t {
	case types.AlertTakeProfit:
		return "TAKE PROFIT HIT"
	case types.AlertStopLoss:
		return "STOP LOSS HIT"
	case types.AlertTrailingStop:
		return "TRAILING STOP HIT"
	default:
		return string(t)
	}
}

func userError(err error) string {
	var te *execution.TradingError
	if errors.As(err, &te) {
		return te.UserMessage()
	}
	return err.Error()
}

// Helpers

func (b *Bot) sendMarkdown(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	msg.DisableWebPagePreview = true
	_, err := b.api.Send(msg)
	return err
}

func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"`", "\\`",
	)
	return replacer.Replace(s)
}

func formatPrice(price decimal.Decimal) string {
	if price.Abs().LessThan(decimal.NewFromInt(1)) {
		return price.Round(10).String()
	}
	return price.StringFixed(4)
}

func signed(pct decimal.Decimal) string {
	s := pct.StringFixed(2)
	if pct.IsPositive() {
		return "+" + s
	}
	return s
}

func shortMint(mint string) string {
	if len(mint) <= 10 {
		return mint
	}
	return mint[:4] + "…" + mint[len(mint)-4:]
}
