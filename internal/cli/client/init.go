package client

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"

	"github.com/spf13/cobra"
)

func InitCmd() *cobra.Command {
	var apiURL string
	var adminToken string
	var author string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Configure the klug client",
		Long:  "Writes the client configuration (API URL, author, optional admin token) and verifies the server is reachable.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runInit(apiURL, adminToken, author, outputJSON)
		},
	}

	cmd.Flags().StringVar(&apiURL, "api-url", "", "API base URL (default: http://localhost:8080)")
	cmd.Flags().StringVar(&adminToken, "admin-token", "", "Admin token for privileged commands (forget, import)")
	cmd.Flags().StringVar(&author, "author", "", "Default author for stored knowledge (default: OS username)")

	return cmd
}

func runInit(apiURL, adminToken, author string, outputJSON bool) error {
	if apiURL == "" {
		apiURL = os.Getenv(envAPIURL)
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	if adminToken == "" {
		adminToken = os.Getenv(envAdminToken)
	}
	if author == "" {
		author = os.Getenv(envAuthor)
	}
	if author == "" {
		if u, err := user.Current(); err == nil {
			author = u.Username
		}
	}
	if author == "" {
		return fmt.Errorf("author is required (use --author)")
	}

	api := NewAPIClientWithConfig(adminToken, apiURL)
	if _, err := api.Get("/health"); err != nil {
		return fmt.Errorf("server at %s is not reachable: %w", apiURL, err)
	}

	config := &GlobalConfig{
		APIURL:     apiURL,
		AdminToken: adminToken,
		Author:     author,
	}
	if err := SaveGlobalConfig(config); err != nil {
		return err
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if outputJSON {
		result := map[string]interface{}{
			"success":   true,
			"api_url":   apiURL,
			"author":    author,
			"config":    configPath,
			"has_token": adminToken != "",
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("Configured klug for %s\n", apiURL)
		fmt.Printf("Author: %s\n", author)
		if adminToken == "" {
			fmt.Println("No admin token set; forget and import will be unavailable.")
		}
		fmt.Printf("Config saved to %s\n", configPath)
	}

	return nil
}
