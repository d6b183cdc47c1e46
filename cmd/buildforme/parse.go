package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/Cyclone1070/buildforme/internal/artifact"
	"github.com/spf13/cobra"
)

// parsedAction is the JSON form of an action, with its classification
// error spelled out.
type parsedAction struct {
	artifact.Action
	Error string `json:"error,omitempty"`
}

func newParseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse an artifact and print its actions as JSON",
		Long:  "Parse reads an artifact from file, or from stdin when no file is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 1 {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}

			actions := artifact.Parse(string(data), true)
			out := make([]parsedAction, 0, len(actions))
			for _, act := range actions {
				pa := parsedAction{Action: act}
				if act.Err != nil {
					pa.Error = act.Err.Error()
				}
				out = append(out, pa)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
