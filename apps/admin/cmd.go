package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/JoinupRosario/evaluacionesUAOback/core/evaluation"
)

var errHelp = errors.New("help provided")

const cmdTimeout = 5 * time.Minute

type commandLine struct {
	evalSvc evaluation.Servicer
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  show    -evaluation ID - print a campaign's status and participation")
	fmt.Println("  refresh -evaluation ID - re-resolve eligibility and ensure access tokens")
	fmt.Println("  recount -evaluation ID - recompute participation percentages")
	fmt.Println("  send    -evaluation ID - dispatch pending invitation emails")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	cmd := flag.NewFlagSet(args[1], flag.ExitOnError)
	evalID := cmd.String("evaluation", "", "The evaluation's id.")

	parse := func() error {
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *evalID == "" {
			cmd.Usage()
			return errHelp
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()

	switch args[1] {
	case "show":
		if err := parse(); err != nil {
			return err
		}
		return cli.show(ctx, *evalID)
	case "refresh":
		if err := parse(); err != nil {
			return err
		}
		return cli.refresh(ctx, *evalID)
	case "recount":
		if err := parse(); err != nil {
			return err
		}
		return cli.recount(ctx, *evalID)
	case "send":
		if err := parse(); err != nil {
			return err
		}
		return cli.send(ctx, *evalID)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) show(ctx context.Context, evalID string) error {
	ev, err := cli.evalSvc.Get(ctx, evalID)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s, period %d)\n", ev.Name, ev.Kind, ev.Period)
	fmt.Printf("status: %s, email: %s\n", ev.Status, ev.EmailStatus)
	fmt.Printf("window: %s .. %s\n", ev.StartDate.Format(time.DateOnly), ev.FinishDate.Format(time.DateOnly))
	if ev.Alert != nil {
		fmt.Printf("reminder due: %s\n", ev.Alert.Due(ev.StartDate, ev.FinishDate).Format(time.DateOnly))
	}
	fmt.Printf("totals: %v\n", ev.Totals)
	fmt.Printf("percentages: %v\n", ev.Percentages)
	return nil
}

func (cli *commandLine) refresh(ctx context.Context, evalID string) error {
	report, err := cli.evalSvc.RefreshEligibility(ctx, evalID)
	if err != nil {
		return err
	}
	fmt.Printf("totals: %v\n", report.Totals)
	fmt.Printf("tokens minted: %d\n", report.TokensMinted)
	if report.IssuanceSkipped {
		fmt.Println("token issuance skipped: no survey resolved")
	}
	return nil
}

func (cli *commandLine) recount(ctx context.Context, evalID string) error {
	percentages, err := cli.evalSvc.RecountParticipation(ctx, evalID)
	if err != nil {
		return err
	}
	fmt.Printf("percentages: %v\n", percentages)
	return nil
}

func (cli *commandLine) send(ctx context.Context, evalID string) error {
	report, err := cli.evalSvc.SendInvitations(ctx, evalID)
	if err != nil {
		return err
	}
	fmt.Printf("sent: %d, failed: %d\n", report.Sent, report.Failed)
	return nil
}
