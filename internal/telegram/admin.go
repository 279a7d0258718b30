// Package telegram – admin command routing.
//
// Administrators drive grants from the same chat: /grant, /extend, /revoke,
// /grants, /stats. Parsing is kept in pure functions so it can be tested
// without the Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/leadvane/adkey-backend/internal/services"
)

// adminCommand is a parsed administrative instruction.
type adminCommand struct {
	Name   string // grant | extend | revoke | grants | stats
	Target int64
	Days   int
	Text   string // notes or reason
	Page   int
}

var errBadAdminCommand = errors.New("malformed admin command")

// adminCommandNames lists the recognized slash commands.
var adminCommandNames = map[string]struct{}{
	"grant": {}, "extend": {}, "revoke": {}, "grants": {}, "stats": {},
}

// isAdminCommand reports whether text is one of the admin slash commands.
func isAdminCommand(text string) bool {
	if !strings.HasPrefix(text, "/") {
		return false
	}
	name := strings.Fields(text)[0][1:]
	_, ok := adminCommandNames[name]
	return ok
}

// parseAdminCommand parses one of:
//
//	/grant <user_id> [days] [notes...]
//	/extend <user_id> <days>
//	/revoke <user_id> [reason...]
//	/grants [page]
//	/stats
func parseAdminCommand(text string) (*adminCommand, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return nil, errBadAdminCommand
	}
	cmd := &adminCommand{Name: fields[0][1:], Page: 1}
	args := fields[1:]

	switch cmd.Name {
	case "stats":
		return cmd, nil
	case "grants":
		if len(args) > 0 {
			p, err := strconv.Atoi(args[0])
			if err != nil || p < 1 {
				return nil, errBadAdminCommand
			}
			cmd.Page = p
		}
		return cmd, nil
	case "grant", "extend", "revoke":
		if len(args) == 0 {
			return nil, errBadAdminCommand
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return nil, errBadAdminCommand
		}
		cmd.Target = id
		args = args[1:]
	default:
		return nil, errBadAdminCommand
	}

	switch cmd.Name {
	case "grant":
		if len(args) > 0 {
			if d, err := strconv.Atoi(args[0]); err == nil {
				cmd.Days = d
				args = args[1:]
			}
		}
		cmd.Text = strings.Join(args, " ")
	case "extend":
		if len(args) != 1 {
			return nil, errBadAdminCommand
		}
		d, err := strconv.Atoi(args[0])
		if err != nil || d < 1 {
			return nil, errBadAdminCommand
		}
		cmd.Days = d
	case "revoke":
		cmd.Text = strings.Join(args, " ")
	}
	return cmd, nil
}

// handleAdminCommand executes a parsed command and renders the reply text.
func (b *Bot) handleAdminCommand(ctx context.Context, adminID int64, text string) string {
	cmd, err := parseAdminCommand(text)
	if err != nil {
		return "Usage: /grant <id> [days] [notes], /extend <id> <days>, /revoke <id> [reason], /grants [page], /stats"
	}

	switch cmd.Name {
	case "grant":
		g, err := b.admin.Grant(ctx, adminID, cmd.Target, cmd.Days, cmd.Text)
		if err != nil {
			return adminErrText(err)
		}
		return fmt.Sprintf("Granted access to %d until %s.", g.UserID, g.ExpiresAt.Format("2006-01-02"))
	case "extend":
		g, err := b.admin.Extend(ctx, adminID, cmd.Target, cmd.Days)
		if err != nil {
			return adminErrText(err)
		}
		return fmt.Sprintf("Extended %d until %s.", g.UserID, g.ExpiresAt.Format("2006-01-02"))
	case "revoke":
		if err := b.admin.Deactivate(ctx, adminID, cmd.Target, cmd.Text); err != nil {
			return adminErrText(err)
		}
		return fmt.Sprintf("Deactivated access for %d.", cmd.Target)
	case "grants":
		return b.grantsText(ctx, cmd.Page)
	case "stats":
		return b.statsText(ctx)
	}
	return "Unknown command."
}

func (b *Bot) grantsText(ctx context.Context, page int) string {
	items, total, err := b.admin.ListGrants(ctx, page, 10)
	if err != nil {
		return msgTransient
	}
	if len(items) == 0 {
		return "No grants."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Grants (page %d, %d total):\n", page, total)
	for _, g := range items {
		state := "active"
		if !g.IsActive {
			state = "deactivated"
		}
		fmt.Fprintf(&sb, "• %d: until %s (%s)\n", g.UserID, g.ExpiresAt.Format("2006-01-02"), state)
	}
	return sb.String()
}

func (b *Bot) statsText(ctx context.Context) string {
	st, err := b.admin.Stats(ctx)
	if err != nil {
		return msgTransient
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Grants: %d total, %d active, %d expiring ≤7d, %d expired, %d deactivated\n",
		st.Grants.Total, st.Grants.Active, st.Grants.ExpiringWithin, st.Grants.Expired, st.Grants.Deactivated)
	fmt.Fprintf(&sb, "Completed funnels: %d\n", st.CompletedFunnels)
	if len(st.FunnelSteps) > 0 {
		sb.WriteString("Open funnels by step:\n")
		for _, step := range []string{"category", "geography", "source", "price", "key"} {
			if n := st.FunnelSteps[step]; n > 0 {
				fmt.Fprintf(&sb, "  %s: %d\n", step, n)
			}
		}
	}
	if len(st.KeysByPlatform) > 0 {
		sb.WriteString("Keys by platform:\n")
		for platform, n := range st.KeysByPlatform {
			fmt.Fprintf(&sb, "  %s: %d\n", platform, n)
		}
	}
	return sb.String()
}

func adminErrText(err error) string {
	switch {
	case errors.Is(err, services.ErrAdminGrant):
		return "Refused: administrators do not need grants."
	case errors.Is(err, services.ErrGrantNotFound):
		return "That user has no grant."
	case errors.Is(err, services.ErrBadDays):
		return "Days must be a positive number."
	}
	return msgTransient
}
