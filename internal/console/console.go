package console

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yuriy-kovalchuk/yk-dns-console/internal/controller"
)

// Run starts the interactive console over c and blocks until the operator
// quits or ctx is cancelled. It takes over c.OnChange.
func Run(ctx context.Context, c *controller.RecordSyncController) error {
	prog := tea.NewProgram(newModel(ctx, c), tea.WithAltScreen(), tea.WithContext(ctx))
	c.OnChange = func(s controller.State) {
		prog.Send(stateMsg(s))
	}

	_, err := prog.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
