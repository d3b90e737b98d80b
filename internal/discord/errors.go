package discord

import (
	"context"
	stderrors "errors"

	"github.com/bwmarrin/discordgo"

	"github.com/felixgeelhaar/welcomer/internal/errors"
	"github.com/felixgeelhaar/welcomer/internal/platform"
)

// classify maps a discordgo failure onto the platform error codes. REST
// errors are classified by status; anything else that is not a context
// error is a connectivity problem and therefore transient.
func classify(action string, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var rest *discordgo.RESTError
	if stderrors.As(err, &rest) && rest.Response != nil {
		return platform.ClassifyStatus(action, rest.Response.StatusCode, err)
	}
	return errors.NewTransientError(action, err)
}
