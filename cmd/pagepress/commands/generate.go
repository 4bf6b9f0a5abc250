package commands

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
	"git.home.luguber.info/inful/pagepress/internal/generator"
)

// GenerateCmd implements the 'generate' command.
type GenerateCmd struct{}

func (g *GenerateCmd) Run(_ *Global, root *CLI) error {
	ctx := context.Background()
	gen, err := newGenerator(ctx, root, 0)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := gen.Close(); cerr != nil {
			slog.Warn("Failed to close generator", "error", cerr)
		}
	}()

	report, err := gen.Update(ctx)
	if err != nil {
		return err
	}

	fmt.Println(report.Summary())
	if report.Outcome == generator.OutcomePartial {
		return errors.RenderError(fmt.Sprintf("%d of %d pages failed", report.Failed, report.Pages)).Build()
	}
	return nil
}
