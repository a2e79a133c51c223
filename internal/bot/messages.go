package bot

const (
	cmdStart    = "start"
	cmdHelp     = "help"
	cmdJoin     = "join"
	cmdAdd      = "add"
	cmdAddFor   = "addfor"
	cmdList     = "list"
	cmdRemove   = "remove"
	cmdBalances = "balances"
	cmdSettle   = "settle"
	cmdPaid     = "paid"
)

// commandHelp lists the public commands in the order /help shows them.
var commandHelp = []struct {
	name string
	desc string
}{
	{cmdJoin, "Join this chat's group."},
	{cmdAdd, "Add an expense you paid. Format: /add 12.50 @ana,@bob Dinner (use all for everyone)"},
	{cmdAddFor, "Add an expense someone else paid. Format: /addfor @ana 12.50 @bob,@carl Taxi"},
	{cmdList, "List the expenses with their numbers."},
	{cmdRemove, "Remove an expense by its number. Format: /remove 2"},
	{cmdBalances, "Show what everybody paid, owes and their net balance."},
	{cmdSettle, "Show the payments that settle the group."},
	{cmdPaid, "Mark a payment from /settle as done. Format: /paid 1"},
	{cmdHelp, "Show this help."},
}

const (
	welcomeMessage = "Hello, I'm SettleUp! Use /join to take part and /help to see the available commands."

	helpHeader        = "Available commands:"
	listHeader        = "Expenses:"
	balancesHeader    = "Balances (paid / owed / net):"
	settleHeader      = "To settle up:"
	allSettledMessage = "Everybody is settled up."

	helpItemTemplate     = " /%s: %s"
	joinTemplate         = "%s joined. Members: %s"
	alreadyJoinTemplate  = "%s is already a member. Members: %s"
	addSuccessTemplate   = "Ok, %s paid %s for %s."
	expenseItemTemplate  = " %d. %s paid %s for %s"
	removeTemplate       = "Ok, expense %d removed."
	balanceItemTemplate  = " - %s: %s / %s / %s"
	settleItemTemplate   = " %d. %s must pay %s to %s"
	paidTemplate         = "Ok, %s paid %s to %s."
	settledItemSuffix    = " (paid)"
	descriptionTemplate  = " (%s)"
	participantSeparator = ", "

	errNoUsername    = "Sorry, I need a Telegram username to identify you. Set one in your profile and try again."
	errAddUsage      = "Sorry, I can't understand that. Please use the format: /add 12.50 @ana,@bob [description]"
	errAddForUsage   = "Sorry, I can't understand that. Please use the format: /addfor @ana 12.50 @bob,@carl [description]"
	errRemoveUsage   = "Sorry, I can't understand that. Please use the format: /remove 2"
	errPaidUsage     = "Sorry, I can't understand that. Please use the format: /paid 1"
	errNoGroup       = "There is no group in this chat yet. Use /join first."
	errNoMembers     = "Nobody has joined yet, so there is no one to split with. Use /join or mention people."
	errNoExpenses    = "There are no expenses yet. Use /add or /addfor to add one."
	errNoExpense     = "There is no expense %d. Use /list to see the numbers."
	errNoSettlement  = "There is no payment %d. Use /settle to see the numbers."
	errInvalidAmount = "Sorry, %s is not a valid amount. Use a positive number with at most two decimals."
	errInvalidHandle = "Sorry, %q is not a username. Mention people as @name."
	errInternal      = "Sorry, I can't process your request right now. Please try again later."
)
