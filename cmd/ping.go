package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/renewpackages/renewapi/internal/utils"
	"github.com/renewpackages/renewapi/pkg/whttp"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that a renewapi server is up",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		retries, _ := cmd.Flags().GetInt("retries")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		proxy, _ := cmd.Flags().GetString("proxy")

		client, err := whttp.NewClient(retries, timeout, proxy)
		if err != nil {
			return err
		}

		start := time.Now()
		res, err := whttp.SendHTTPRequest(context.Background(), &whttp.WHTTPReq{
			URL:    whttp.JoinURL(url, "/api/health"),
			Method: http.MethodGet,
		}, client)
		if err != nil {
			return fmt.Errorf("server unreachable: %w", err)
		}
		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("health check returned HTTP %d: %s", res.StatusCode, res.BodyString())
		}

		status := gjson.GetBytes(res.Body, "status").String()
		if status != "OK" {
			return fmt.Errorf("unexpected health status %q", status)
		}
		utils.Log.Debugf("Health payload: %s", res.BodyString())
		fmt.Printf("%s is up (server time %s, %s)\n", url, gjson.GetBytes(res.Body, "timestamp").String(), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().String("url", "http://localhost:5000", "Base URL of the server")
	pingCmd.Flags().Int("retries", 3, "Retries on connection errors and 5xx responses")
	pingCmd.Flags().Duration("timeout", 5*time.Second, "Per-attempt timeout")
	pingCmd.Flags().String("proxy", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
}
