package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"

	"polymerbot/internal/models"
	"polymerbot/internal/service"
)

const startText = `Welcome to the Polymer Price Bot!

I can help you check historical prices for various polymers.

Commands:
/list - Show list of available polymers
/daily <name> [days] - Daily high/low/mean stats
/compare <name> <name> [days] - Compare two polymers day by day
/help - Show this help message

You can also just type the polymer name (e.g. "J150", "Y130") to get its price history.`

const helpText = `How to use:
1. Use /list to see all available polymers
2. Type a polymer name directly for its price history
3. /daily J150 7 shows per-day aggregates for the last 7 days
4. /compare J150 Y130 compares both day by day

The history answer shows yesterday, 3 days ago, 1 week ago and the
latest available quote. "No data" means nothing was posted that day.`

// QueryBot answers interactive chats. It is stateless between messages; every
// reply is computed from the store at query time.
type QueryBot struct {
	Bot    *telego.Bot
	Stats  *service.StatsService
	Logger *zap.Logger
}

func (b *QueryBot) Handle(ctx context.Context, msg *telego.Message) error {
	if b == nil || b.Bot == nil || msg == nil {
		return nil
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}

	cmd, args := splitCommand(text)
	switch cmd {
	case "/start":
		return b.reply(ctx, msg, startText)
	case "/help":
		return b.reply(ctx, msg, helpText)
	case "/list":
		return b.handleList(ctx, msg)
	case "/daily":
		return b.handleDaily(ctx, msg, args)
	case "/compare":
		return b.handleCompare(ctx, msg, args)
	default:
		return b.handleHistory(ctx, msg, text)
	}
}

func (b *QueryBot) handleList(ctx context.Context, msg *telego.Message) error {
	items, err := b.Stats.Items(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return b.reply(ctx, msg, "No polymer data available yet. Please wait while the system collects data from the group.")
	}
	var sb strings.Builder
	sb.WriteString("Available polymers:\n")
	for _, it := range items {
		fmt.Fprintf(&sb, "- %s (last quoted %s)\n", it.DisplayLabel, it.LatestDate.Format("2006-01-02"))
	}
	return b.reply(ctx, msg, sb.String())
}

func (b *QueryBot) handleHistory(ctx context.Context, msg *telego.Message, term string) error {
	res, err := b.Stats.History(ctx, term, 7)
	if err != nil {
		return err
	}
	if !res.Found {
		return b.reply(ctx, msg, fmt.Sprintf("Polymer '%s' not found in the database.\n\nUse /list to see all available polymers.", term))
	}
	return b.reply(ctx, msg, renderHistory(res))
}

func (b *QueryBot) handleDaily(ctx context.Context, msg *telego.Message, args []string) error {
	if len(args) == 0 {
		return b.reply(ctx, msg, "Usage: /daily <polymer> [days]")
	}
	term, days := parseTermAndDays(args)
	res, err := b.Stats.DailyStats(ctx, term, days)
	if err != nil {
		return err
	}
	if !res.Found {
		return b.reply(ctx, msg, fmt.Sprintf("Polymer '%s' not found in the database.", term))
	}
	if len(res.Days) == 0 {
		return b.reply(ctx, msg, fmt.Sprintf("No data for %s in the requested window.", term))
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Daily stats for %s:\n", term)
	for _, day := range res.Days {
		fmt.Fprintf(&sb, "%s: %s\n", day.Date.Format("2006-01-02"), renderAggregate(&day))
	}
	return b.reply(ctx, msg, sb.String())
}

func (b *QueryBot) handleCompare(ctx context.Context, msg *telego.Message, args []string) error {
	if len(args) < 2 {
		return b.reply(ctx, msg, "Usage: /compare <polymer> <polymer> [days]")
	}
	days := 7
	if len(args) >= 3 {
		if n, err := strconv.Atoi(args[2]); err == nil && n > 0 {
			days = n
		}
	}
	res, err := b.Stats.Compare(ctx, args[0], args[1], days)
	if err != nil {
		return err
	}
	if !res.LeftFound && !res.RightFound {
		return b.reply(ctx, msg, "Neither polymer is known. Use /list to see the available ones.")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Comparing %s vs %s:\n", res.LeftTerm, res.RightTerm)
	if !res.LeftFound {
		fmt.Fprintf(&sb, "(no data recorded for %s)\n", res.LeftTerm)
	}
	if !res.RightFound {
		fmt.Fprintf(&sb, "(no data recorded for %s)\n", res.RightTerm)
	}
	for _, row := range res.Rows {
		fmt.Fprintf(&sb, "%s: %s | %s\n",
			row.Date.Format("2006-01-02"),
			renderAggregate(row.Left),
			renderAggregate(row.Right))
	}
	return b.reply(ctx, msg, sb.String())
}

func (b *QueryBot) reply(ctx context.Context, msg *telego.Message, text string) error {
	_, err := b.Bot.SendMessage(ctx, tu.Message(tu.ID(msg.Chat.ID), text))
	return err
}

func renderHistory(res service.HistoryResult) string {
	label := res.DisplayLabel
	if label == "" {
		label = res.Term
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Price History for %s\n\n", label)
	sb.WriteString("Yesterday: " + renderRecord(res.Yesterday) + "\n")
	sb.WriteString("3 days ago: " + renderRecord(res.ThreeDaysAgo) + "\n")
	sb.WriteString("1 week ago: " + renderRecord(res.OneWeekAgo) + "\n\n")
	if res.Latest != nil {
		fmt.Fprintf(&sb, "Latest (%s): %s\n", res.Latest.OccurredOn.Format("2006-01-02"), renderRecord(res.Latest))
	} else {
		sb.WriteString("Latest: No data\n")
	}
	if res.Yesterday == nil && res.ThreeDaysAgo == nil && res.OneWeekAgo == nil && res.Latest != nil {
		sb.WriteString("\nHistorical data not available. Showing latest data only.")
	}
	return sb.String()
}

func renderRecord(rec *models.PriceRecord) string {
	if rec == nil {
		return "No data"
	}
	if rec.Price != nil {
		return rec.Price.StringFixed(2)
	}
	if rec.Status != "" {
		return rec.Status
	}
	return "No data"
}

func renderAggregate(agg *service.DayAggregate) string {
	if agg == nil {
		return "no data"
	}
	if agg.Mean == nil {
		if agg.Status != "" {
			return agg.Status
		}
		return "no data"
	}
	return fmt.Sprintf("high %s low %s mean %s diff %s (%d quotes)",
		agg.High.StringFixed(2), agg.Low.StringFixed(2),
		agg.Mean.StringFixed(2), agg.Diff.StringFixed(2), agg.Records)
}

func splitCommand(text string) (string, []string) {
	if !strings.HasPrefix(text, "/") {
		return "", nil
	}
	fields := strings.Fields(text)
	cmd := fields[0]
	// commands addressed as /list@SomeBot
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), fields[1:]
}

func parseTermAndDays(args []string) (string, int) {
	days := 7
	if len(args) >= 2 {
		if n, err := strconv.Atoi(args[len(args)-1]); err == nil && n > 0 {
			days = n
			args = args[:len(args)-1]
		}
	}
	return strings.Join(args, " "), days
}
