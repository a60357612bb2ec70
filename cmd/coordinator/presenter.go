package main

import (
	"fmt"

	"github.com/pterm/pterm"

	"voting-coordinator/models"
	"voting-coordinator/service"
)

// presenter renders coordinator events on the terminal.
type presenter struct {
	// showCandidates renders the candidate table on every load
	showCandidates bool
}

func (p *presenter) Publish(ev service.Event) {
	switch ev.Kind {
	case service.EventOutcome:
		if ev.Outcome != nil {
			printOutcome(*ev.Outcome)
		}
	case service.EventRoleDerived:
		pterm.Info.Printfln("%s acts as %s", identityLabel(ev.Identity), ev.Role)
		if p.showCandidates {
			_ = renderCandidates(ev.Candidates)
		}
	case service.EventReset:
		pterm.Info.Println("Session reset")
	}
}

func printOutcome(outcome models.Outcome) {
	switch outcome.Kind {
	case models.OutcomeLoaded:
	case models.OutcomeVoted, models.OutcomeRegistered:
		pterm.Success.Println(outcome.Message())
	case models.OutcomeAlreadyVoted, models.OutcomeRejected:
		pterm.Warning.Println(outcome.Message())
	default:
		pterm.Error.Println(outcome.Message())
	}
}

func renderCandidates(candidates []models.CandidateView) error {
	if len(candidates) == 0 {
		pterm.Info.Println("No candidates registered")
		return nil
	}

	withVotes := candidates[0].Votes != nil
	header := []string{"ID", "Name", "Party"}
	if withVotes {
		header = append(header, "Votes")
	}

	data := pterm.TableData{header}
	for _, c := range candidates {
		row := []string{fmt.Sprint(c.ID), c.Name, c.Party}
		if withVotes {
			row = append(row, fmt.Sprint(*c.Votes))
		}
		data = append(data, row)
	}
	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
}

func identityLabel(id models.Identity) string {
	if !id.IsSet() {
		return "nobody"
	}
	return id.String()
}
