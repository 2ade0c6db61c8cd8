package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/spf13/cobra"
)

var url string

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a payload to a running node for mining",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !utf8.ValidString(payload) {
			return errors.New("payload is not valid UTF-8")
		}

		data, err := json.Marshal(struct {
			Payload string `json:"payload"`
		}{
			Payload: payload,
		})
		if err != nil {
			return err
		}

		resp, err := http.Post(fmt.Sprintf("%s/v1/payload/submit", url), "application/json", bytes.NewBuffer(data))
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode != http.StatusAccepted {
			return fmt.Errorf("node replied %s: %s", resp.Status, body)
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(body))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
	submitCmd.Flags().StringVarP(&payload, "payload", "p", "", "Payload to mine into a block.")
}
