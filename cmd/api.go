package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/adpacks/internal/shared"
	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"
)

// APIGet makes a direct GET request to the backend with the session token.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}

	c, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	r.logger.Info("GET request", "path", path)

	resp, err := c.client.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if !resp.OK() {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	if query := cmd.String("query"); query != "" {
		if !resp.IsJSON {
			return fmt.Errorf("%w: --query needs a JSON response", shared.ErrInvalidArgument)
		}
		result := gjson.GetBytes(resp.Body, query)
		if !result.Exists() {
			return fmt.Errorf("%w: no value at %q", shared.ErrInvalidArgument, query)
		}
		if result.IsObject() || result.IsArray() {
			return r.writeJSON(result.Value(), cmd.Bool("pretty"))
		}
		return r.writePlain("%s\n", result.String())
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, cmd.Bool("pretty"))
	}

	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}
