// Command settle computes balances and settlements for a group offline.
//
// Usage:
//
//	settle [-f expenses.json] [-json]
//
// The input is read from the file given with -f, or from stdin:
//
//	{
//	  "members": ["alice", "bob", "carol"],
//	  "expenses": [
//	    {"id": "1", "payer": "alice", "amount": 90, "participants": ["alice", "bob", "carol"]}
//	  ]
//	}
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/mmynk/settleup/internal/settlement"
	"github.com/mmynk/settleup/pkg/logging"
)

type inputExpense struct {
	ID           string   `json:"id"`
	Payer        string   `json:"payer"`
	Amount       float64  `json:"amount"`
	Participants []string `json:"participants"`
}

type input struct {
	Members  []string       `json:"members"`
	Expenses []inputExpense `json:"expenses"`
}

type outputBalance struct {
	Member string  `json:"member"`
	Paid   float64 `json:"paid"`
	Owed   float64 `json:"owed"`
	Net    float64 `json:"net"`
}

type outputSettlement struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

type output struct {
	Balances    []outputBalance    `json:"balances"`
	Settlements []outputSettlement `json:"settlements"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is main without the process exit, returning the exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("settle", flag.ContinueOnError)
	flags.SetOutput(stderr)
	file := flags.String("f", "", "read input from `file` instead of stdin")
	asJSON := flags.Bool("json", false, "print the result as JSON")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	logger := logging.New(stderr, slog.LevelInfo, logging.FormatText)

	r := stdin
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			logger.Error("Failed to open input", "error", err)
			return 1
		}
		defer f.Close()
		r = f
	}

	in, expenses, err := readInput(r)
	if err != nil {
		logger.Error("Invalid input", "error", err)
		return 1
	}

	out := compute(expenses, in.Members)
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			logger.Error("Failed to write output", "error", err)
			return 1
		}
		return 0
	}
	if err := printText(stdout, out); err != nil {
		logger.Error("Failed to write output", "error", err)
		return 1
	}
	return 0
}

func readInput(r io.Reader) (*input, []settlement.Expense, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	in := &input{}
	if err := dec.Decode(in); err != nil {
		return nil, nil, fmt.Errorf("failed to decode input: %w", err)
	}
	for _, m := range in.Members {
		if m == "" {
			return nil, nil, errors.New("member identity cannot be empty")
		}
	}

	expenses := make([]settlement.Expense, 0, len(in.Expenses))
	for i, e := range in.Expenses {
		id := e.ID
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		expense, err := settlement.NewExpense(id, e.Payer, e.Amount, e.Participants)
		if err != nil {
			return nil, nil, fmt.Errorf("expense %s: %w", id, err)
		}
		expenses = append(expenses, expense)
	}
	return in, expenses, nil
}

func compute(expenses []settlement.Expense, members []string) output {
	_, settlements := settlement.Settle(expenses, members)

	out := output{
		Balances:    []outputBalance{},
		Settlements: []outputSettlement{},
	}
	for _, b := range settlement.Summarize(expenses, members) {
		out.Balances = append(out.Balances, outputBalance{
			Member: b.Member,
			Paid:   settlement.RoundCents(b.Paid),
			Owed:   settlement.RoundCents(b.Owed),
			Net:    settlement.RoundCents(b.Net),
		})
	}
	for _, s := range settlements {
		out.Settlements = append(out.Settlements, outputSettlement{
			From:   s.From,
			To:     s.To,
			Amount: settlement.RoundCents(s.Amount),
		})
	}
	return out
}

func printText(w io.Writer, out output) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "MEMBER\tPAID\tOWED\tNET")
	for _, b := range out.Balances {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			b.Member,
			settlement.FormatAmount(b.Paid),
			settlement.FormatAmount(b.Owed),
			settlement.FormatAmount(b.Net),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	if len(out.Settlements) == 0 {
		_, err := fmt.Fprintln(w, "Everybody is settled up.")
		return err
	}
	for _, s := range out.Settlements {
		if _, err := fmt.Fprintf(w, "%s pays %s %s\n", s.From, s.To, settlement.FormatAmount(s.Amount)); err != nil {
			return err
		}
	}
	return nil
}
