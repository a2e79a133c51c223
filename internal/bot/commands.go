package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmynk/settleup/internal/ledger"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/settlement"
	"github.com/mmynk/settleup/internal/storage"
)

// Request is one command sent to the bot from a chat.
type Request struct {
	ChatID    int64
	ChatTitle string
	// Username is the sender's Telegram username without the leading "@".
	Username string
	Command  string
	Args     string
}

type handler func(ctx context.Context, req Request) (string, error)

// Commands executes chat commands. One chat maps to one group; every expense
// mutation goes through the ledger so the chat's settlements stay current.
type Commands struct {
	store    ledger.Store
	ledger   *ledger.Ledger
	handlers map[string]handler
}

// NewCommands creates the command set over store and l.
func NewCommands(store ledger.Store, l *ledger.Ledger) *Commands {
	c := &Commands{store: store, ledger: l}
	c.handlers = map[string]handler{
		cmdStart:    c.handleStart,
		cmdHelp:     c.handleHelp,
		cmdJoin:     c.handleJoin,
		cmdAdd:      c.handleAdd,
		cmdAddFor:   c.handleAddFor,
		cmdList:     c.handleList,
		cmdRemove:   c.handleRemove,
		cmdBalances: c.handleBalances,
		cmdSettle:   c.handleSettle,
		cmdPaid:     c.handlePaid,
	}
	return c
}

// Handle runs the command in req and returns the reply text. Unknown
// commands get an empty reply. Mistakes in the user's input are answered
// with a reply; a non-nil error means the request could not be processed.
func (c *Commands) Handle(ctx context.Context, req Request) (string, error) {
	h, ok := c.handlers[req.Command]
	if !ok {
		return "", nil
	}
	return h(ctx, req)
}

// GroupID returns the group that backs a chat.
func GroupID(chatID int64) string {
	return fmt.Sprintf("tg-%d", chatID)
}

// format: /start
func (c *Commands) handleStart(_ context.Context, _ Request) (string, error) {
	return welcomeMessage, nil
}

// format: /help
func (c *Commands) handleHelp(_ context.Context, _ Request) (string, error) {
	texts := []string{helpHeader}
	for _, cmd := range commandHelp {
		texts = append(texts, fmt.Sprintf(helpItemTemplate, cmd.name, cmd.desc))
	}
	return strings.Join(texts, "\n"), nil
}

// format: /join
func (c *Commands) handleJoin(ctx context.Context, req Request) (string, error) {
	caller, ok := identity(req.Username)
	if !ok {
		return errNoUsername, nil
	}
	group, err := c.ensureGroup(ctx, req, caller)
	if err != nil {
		return "", err
	}
	if group.HasMember(caller) {
		return fmt.Sprintf(alreadyJoinTemplate, caller, strings.Join(group.Members, participantSeparator)), nil
	}
	if err := c.store.AddGroupMembers(ctx, group.ID, []string{caller}); err != nil {
		return "", err
	}
	group, err = c.store.GetGroup(ctx, group.ID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(joinTemplate, caller, strings.Join(group.Members, participantSeparator)), nil
}

// format: /add 12.50 @ana,@bob [description]
func (c *Commands) handleAdd(ctx context.Context, req Request) (string, error) {
	caller, ok := identity(req.Username)
	if !ok {
		return errNoUsername, nil
	}
	args := strings.Fields(req.Args)
	if len(args) < 2 {
		return errAddUsage, nil
	}
	return c.addExpense(ctx, req, expenseArgs{
		caller:       caller,
		payer:        caller,
		amount:       args[0],
		participants: args[1],
		description:  strings.Join(args[2:], " "),
	}, errAddUsage)
}

// format: /addfor @ana 12.50 @bob,@carl [description]
func (c *Commands) handleAddFor(ctx context.Context, req Request) (string, error) {
	caller, ok := identity(req.Username)
	if !ok {
		return errNoUsername, nil
	}
	args := strings.Fields(req.Args)
	if len(args) < 3 {
		return errAddForUsage, nil
	}
	payer, err := parseHandle(args[0])
	if err != nil {
		return fmt.Sprintf(errInvalidHandle, args[0]), nil
	}
	return c.addExpense(ctx, req, expenseArgs{
		caller:       caller,
		payer:        payer,
		amount:       args[1],
		participants: args[2],
		description:  strings.Join(args[3:], " "),
	}, errAddForUsage)
}

type expenseArgs struct {
	caller       string
	payer        string
	amount       string
	participants string
	description  string
}

func (c *Commands) addExpense(ctx context.Context, req Request, args expenseArgs, usage string) (string, error) {
	amount, err := settlement.ParseAmount(args.amount)
	if err != nil {
		return fmt.Sprintf(errInvalidAmount, args.amount), nil
	}

	group, err := c.ensureGroup(ctx, req, args.caller)
	if err != nil {
		return "", err
	}

	var participants []string
	if strings.EqualFold(args.participants, "all") {
		if len(group.Members) == 0 {
			return errNoMembers, nil
		}
		participants = group.Members
	} else {
		for _, p := range strings.Split(args.participants, ",") {
			if strings.TrimSpace(p) == "" {
				continue
			}
			handle, err := parseHandle(p)
			if err != nil {
				return fmt.Sprintf(errInvalidHandle, p), nil
			}
			participants = append(participants, handle)
		}
	}

	valid, err := settlement.NewExpense("", args.payer, amount, participants)
	if err != nil {
		return usage, nil
	}

	// Payer and participants become members so they show up in balances.
	var newMembers []string
	for _, member := range append([]string{valid.Payer}, valid.Participants...) {
		if !group.HasMember(member) {
			newMembers = append(newMembers, member)
		}
	}
	if len(newMembers) > 0 {
		if err := c.store.AddGroupMembers(ctx, group.ID, newMembers); err != nil {
			return "", err
		}
	}

	expense := &models.Expense{
		GroupID:      group.ID,
		Payer:        valid.Payer,
		Amount:       valid.Amount,
		Participants: valid.Participants,
		Description:  args.description,
		CreatedBy:    args.caller,
	}
	if err := c.ledger.AddExpense(ctx, expense); err != nil {
		if isValidation(err) {
			return usage, nil
		}
		return "", err
	}

	reply := fmt.Sprintf(addSuccessTemplate,
		expense.Payer,
		settlement.FormatAmount(expense.Amount),
		strings.Join(expense.Participants, participantSeparator),
	)
	if expense.Description != "" {
		reply += fmt.Sprintf(descriptionTemplate, expense.Description)
	}
	return reply, nil
}

// format: /list
func (c *Commands) handleList(ctx context.Context, req Request) (string, error) {
	expenses, err := c.store.ListExpensesByGroup(ctx, GroupID(req.ChatID))
	if err != nil {
		return "", err
	}
	if len(expenses) == 0 {
		return errNoExpenses, nil
	}

	texts := []string{listHeader}
	for i, expense := range expenses {
		text := fmt.Sprintf(expenseItemTemplate,
			i+1,
			expense.Payer,
			settlement.FormatAmount(expense.Amount),
			strings.Join(expense.Participants, participantSeparator),
		)
		if expense.Description != "" {
			text += fmt.Sprintf(descriptionTemplate, expense.Description)
		}
		texts = append(texts, text)
	}
	return strings.Join(texts, "\n"), nil
}

// format: /remove 2
func (c *Commands) handleRemove(ctx context.Context, req Request) (string, error) {
	n, ok := parseNumber(req.Args)
	if !ok {
		return errRemoveUsage, nil
	}
	expenses, err := c.store.ListExpensesByGroup(ctx, GroupID(req.ChatID))
	if err != nil {
		return "", err
	}
	if n > len(expenses) {
		return fmt.Sprintf(errNoExpense, n), nil
	}
	if err := c.ledger.DeleteExpense(ctx, expenses[n-1].ID); err != nil {
		return "", err
	}
	return fmt.Sprintf(removeTemplate, n), nil
}

// format: /balances
func (c *Commands) handleBalances(ctx context.Context, req Request) (string, error) {
	snapshot, err := c.ledger.Snapshot(ctx, GroupID(req.ChatID))
	if errors.Is(err, storage.ErrNotFound) {
		return errNoGroup, nil
	}
	if err != nil {
		return "", err
	}
	if len(snapshot.Balances) == 0 {
		return errNoMembers, nil
	}

	texts := []string{balancesHeader}
	for _, b := range snapshot.Balances {
		texts = append(texts, fmt.Sprintf(balanceItemTemplate,
			b.Member,
			settlement.FormatAmount(b.Paid),
			settlement.FormatAmount(b.Owed),
			signed(b.Net),
		))
	}
	return strings.Join(texts, "\n"), nil
}

// format: /settle
func (c *Commands) handleSettle(ctx context.Context, req Request) (string, error) {
	snapshot, err := c.ledger.Snapshot(ctx, GroupID(req.ChatID))
	if errors.Is(err, storage.ErrNotFound) {
		return errNoGroup, nil
	}
	if err != nil {
		return "", err
	}
	if len(snapshot.Settlements) == 0 {
		return allSettledMessage, nil
	}

	texts := []string{settleHeader}
	for i, s := range snapshot.Settlements {
		text := fmt.Sprintf(settleItemTemplate, i+1, s.From, settlement.FormatAmount(s.Amount), s.To)
		if s.IsSettled {
			text += settledItemSuffix
		}
		texts = append(texts, text)
	}
	return strings.Join(texts, "\n"), nil
}

// format: /paid 1
func (c *Commands) handlePaid(ctx context.Context, req Request) (string, error) {
	n, ok := parseNumber(req.Args)
	if !ok {
		return errPaidUsage, nil
	}
	settlements, err := c.store.ListSettlementsByGroup(ctx, GroupID(req.ChatID))
	if err != nil {
		return "", err
	}
	if n > len(settlements) {
		return fmt.Sprintf(errNoSettlement, n), nil
	}
	s, err := c.ledger.MarkPaid(ctx, settlements[n-1].ID, true)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(paidTemplate, s.From, settlement.FormatAmount(s.Amount), s.To), nil
}

// ensureGroup returns the chat's group, creating it on first use.
func (c *Commands) ensureGroup(ctx context.Context, req Request, caller string) (*models.Group, error) {
	id := GroupID(req.ChatID)
	group, err := c.store.GetGroup(ctx, id)
	if err == nil {
		return group, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	name := req.ChatTitle
	if name == "" {
		name = fmt.Sprintf("Telegram chat %d", req.ChatID)
	}
	group = &models.Group{ID: id, Name: name, CreatedBy: caller}
	if err := c.store.CreateGroup(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// identity turns a Telegram username into a participant identity.
func identity(username string) (string, bool) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return "", false
	}
	return "@" + strings.ToLower(username), true
}

var errNotHandle = errors.New("not a @username")

// parseHandle accepts "@name" and returns the normalised identity.
// Telegram usernames are case-insensitive.
func parseHandle(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '@' || strings.ContainsAny(s[1:], "@, \t") {
		return "", errNotHandle
	}
	return "@" + strings.ToLower(s[1:]), nil
}

// parseNumber parses a 1-based list position.
func parseNumber(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func signed(v float64) string {
	if settlement.RoundCents(v) > 0 {
		return "+" + settlement.FormatAmount(v)
	}
	return settlement.FormatAmount(v)
}

func isValidation(err error) bool {
	return errors.Is(err, settlement.ErrInvalidAmount) ||
		errors.Is(err, settlement.ErrNoPayer) ||
		errors.Is(err, settlement.ErrNoParticipants) ||
		errors.Is(err, settlement.ErrEmptyParticipant) ||
		errors.Is(err, settlement.ErrDuplicateParticipant)
}
