package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/mavkus/internal/config"
)

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mavkus server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printError("config error: %v", err)
			return nil
		}

		client := &http.Client{Timeout: 2 * time.Second}
		resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
		if err != nil {
			printStatus("Server", "stopped")
		} else {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				printStatus("Server", "running on port %d", cfg.Server.Port)
			} else {
				printStatus("Server", "error (HTTP %d)", resp.StatusCode)
			}
		}

		printStatus("Generalist", "%s (%s)", cfg.Generalist.Model, cfg.Generalist.Provider)
		printStatus("Specialist", "%s", cfg.Specialist.Model)
		printStatus("Memory", "%s", cfg.Memory.Backend)
		printStatus("Data dir", "%s", cfg.Storage.DataDir)
		return nil
	},
}

// --- chat ---

type chatResult struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
	Metadata       struct {
		RoutedToGemini   bool `json:"routed_to_gemini"`
		GeminiUsed       bool `json:"gemini_used"`
		HasCritique      bool `json:"has_critique"`
		GenerationFailed bool `json:"generation_failed"`
	} `json:"metadata"`
}

func sendChat(ctx context.Context, client *apiClient, userID, message string, critique bool) (chatResult, error) {
	var res chatResult
	err := client.post(ctx, "/api/chat", map[string]any{
		"user_id":         userID,
		"message":         message,
		"enable_critique": critique,
	}, &res)
	return res, err
}

var chatCmd = &cobra.Command{
	Use:   "chat <user_id> <message>",
	Short: "Send a message as a user",
	Long: `Send a message as a user and print the answer.

Examples:
  mavkus chat u123 "Spiegami la fotosintesi"
  mavkus chat u123 --no-critique "Ciao!"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := args[0]
		message := strings.Join(args[1:], " ")
		noCritique, _ := cmd.Flags().GetBool("no-critique")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		res, err := sendChat(cmd.Context(), client, userID, message, !noCritique)
		if err != nil {
			return err
		}

		fmt.Println(res.Response)
		switch {
		case res.Metadata.GeminiUsed:
			printNote(colorCyan, "specialist consulted")
		case res.Metadata.RoutedToGemini:
			printNote(colorYellow, "specialist unavailable")
		}
		if res.Metadata.GenerationFailed {
			printNote(colorRed, "generation failed")
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().Bool("no-critique", false, "skip scoring the answer")
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats <user_id>",
	Short: "Show a user's counters and learned profile as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var stats any
		if err := client.get(cmd.Context(), "/api/stats/"+url.PathEscape(args[0]), &stats); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

// --- clear ---

var clearCmd = &cobra.Command{
	Use:   "clear <user_id>",
	Short: "Forget everything learned about a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete the learned profile of %s. Use --confirm to proceed.", args[0])
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if err := client.delete(cmd.Context(), "/api/memory/"+url.PathEscape(args[0]), nil); err != nil {
			return err
		}

		printSuccess("Memory cleared for %s", args[0])
		return nil
	},
}

func init() {
	clearCmd.Flags().Bool("confirm", false, "confirm memory deletion")
}

// --- conversations ---

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List or delete recorded conversations",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list <user_id>",
	Short: "List recent conversations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var result struct {
			Conversations []struct {
				ID        string `json:"id"`
				Title     string `json:"title"`
				CreatedAt string `json:"created_at"`
			} `json:"conversations"`
		}
		path := fmt.Sprintf("/api/conversations/%s?limit=%d", url.PathEscape(args[0]), limit)
		if err := client.get(cmd.Context(), path, &result); err != nil {
			return err
		}

		if len(result.Conversations) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}
		for _, c := range result.Conversations {
			fmt.Printf("%s  %s  %s\n", colorize(colorCyan, shortID(c.ID)), c.CreatedAt, c.Title)
		}
		return nil
	},
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <user_id> <conversation_id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/api/conversations/" + url.PathEscape(args[0]) + "/" + url.PathEscape(args[1])
		if err := client.delete(cmd.Context(), path, nil); err != nil {
			return err
		}

		printSuccess("Deleted conversation %s", args[1])
		return nil
	},
}

func init() {
	conversationsListCmd.Flags().Int("limit", 20, "maximum number of conversations to list")
	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// --- keys ---

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage a user's model API keys",
}

var keysSetCmd = &cobra.Command{
	Use:   "set <user_id>",
	Short: "Store a user's API keys (replaces the previous ones)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		groq, _ := cmd.Flags().GetString("groq")
		gemini, _ := cmd.Flags().GetString("gemini")
		if groq == "" && gemini == "" {
			return fmt.Errorf("one of --groq or --gemini is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var result struct {
			KeysSaved []string `json:"keys_saved"`
		}
		err = client.post(cmd.Context(), "/api/auth/save-keys", map[string]any{
			"user_id":        args[0],
			"groq_api_key":   groq,
			"gemini_api_key": gemini,
		}, &result)
		if err != nil {
			return err
		}

		printSuccess("Saved %s", strings.Join(result.KeysSaved, ", "))
		return nil
	},
}

var keysShowCmd = &cobra.Command{
	Use:   "show <user_id>",
	Short: "Show a user's API keys (masked)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reveal, _ := cmd.Flags().GetBool("reveal")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/api/auth/get-keys/" + url.PathEscape(args[0])
		if reveal {
			path += "?reveal=true"
		}
		var result struct {
			APIKeys struct {
				Groq   string `json:"groq_api_key"`
				Gemini string `json:"gemini_api_key"`
			} `json:"api_keys"`
		}
		if err := client.get(cmd.Context(), path, &result); err != nil {
			return err
		}

		printStatus("Groq", "%s", orNotSet(result.APIKeys.Groq))
		printStatus("Gemini", "%s", orNotSet(result.APIKeys.Gemini))
		return nil
	},
}

func init() {
	keysSetCmd.Flags().String("groq", "", "Groq API key")
	keysSetCmd.Flags().String("gemini", "", "Gemini API key")
	keysShowCmd.Flags().Bool("reveal", false, "print the keys in clear")
	keysCmd.AddCommand(keysSetCmd)
	keysCmd.AddCommand(keysShowCmd)
}

func orNotSet(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSecretCmd = &cobra.Command{
	Use:   "secret <key> <value>",
	Short: "Store a secret in the platform secret store",
	Long: fmt.Sprintf(`Store a secret in the platform secret store.

Valid keys: %s`, strings.Join(config.SecretKeys(), ", ")),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetSecret(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Stored %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSecretCmd)
}
