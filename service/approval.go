package service

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"BriefToPack-server/models"
)

type Decision int

const (
	Rejected Decision = iota
	Approved
)

// DecisionProvider supplies the human judgment consumed at pipeline gates.
// The interactive terminal run blocks on stdin; the job server injects
// AutoApprove. Gate nodes are the only callers.
type DecisionProvider interface {
	// Decide returns the verdict for one gate given a short artifact summary.
	Decide(gate, summary string) Decision
	// SelectScreenplay picks the winning variant, 1 or 2.
	SelectScreenplay(a, b *models.Screenplay) int
}

// AutoApprove approves every gate and always selects variant 1.
type AutoApprove struct{}

func (AutoApprove) Decide(gate, summary string) Decision { return Approved }

func (AutoApprove) SelectScreenplay(a, b *models.Screenplay) int { return 1 }

// affirmativeToken is the only input that approves a gate. Anything else,
// including a failed read, rejects.
const affirmativeToken = "yes"

// TerminalDecisionProvider prompts on Out and reads verdicts from In.
type TerminalDecisionProvider struct {
	out    io.Writer
	reader *bufio.Reader
}

func NewTerminalDecisionProvider(in io.Reader, out io.Writer) *TerminalDecisionProvider {
	return &TerminalDecisionProvider{
		out:    out,
		reader: bufio.NewReader(in),
	}
}

func (p *TerminalDecisionProvider) Decide(gate, summary string) Decision {
	fmt.Fprintf(p.out, "\n==== APPROVAL REQUIRED: %s ====\n", gate)
	if summary != "" {
		fmt.Fprintln(p.out, summary)
	}
	fmt.Fprintf(p.out, "Type %q to approve, anything else to reject: ", affirmativeToken)
	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		return Rejected
	}
	if strings.ToLower(strings.TrimSpace(line)) == affirmativeToken {
		return Approved
	}
	return Rejected
}

func (p *TerminalDecisionProvider) SelectScreenplay(a, b *models.Screenplay) int {
	fmt.Fprintln(p.out, "\n==== SCREENPLAY SELECTION ====")
	printVariant(p.out, 1, a)
	printVariant(p.out, 2, b)
	fmt.Fprint(p.out, "Select screenplay [1/2]: ")
	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		return 1
	}
	if strings.TrimSpace(line) == "2" {
		return 2
	}
	return 1
}

func printVariant(w io.Writer, n int, sp *models.Screenplay) {
	if sp == nil {
		fmt.Fprintf(w, "  %d) unavailable\n", n)
		return
	}
	fmt.Fprintf(w, "  %d) %s: %d scenes, %ds total (clarity %.1f, feasibility %.1f, cost risk %.1f)\n",
		n, sp.Label, len(sp.Scenes), sp.TotalSec,
		sp.Scores.Clarity, sp.Scores.Feasibility, sp.Scores.CostRisk)
}
