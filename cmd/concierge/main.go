package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inviteflow/concierge/client"
	"github.com/inviteflow/concierge/config"
	"github.com/inviteflow/concierge/conversation"
	"github.com/inviteflow/concierge/history"
	"github.com/inviteflow/concierge/quota"
	"github.com/inviteflow/concierge/tui"
)

const usagePollInterval = 60 * time.Second

var (
	// Flags
	baseURL string
	theme   string
	verbose bool

	// Root command
	rootCmd = &cobra.Command{
		Use:   "concierge",
		Short: "Conversational event planning assistant",
		Long:  "Concierge - chat with the InviteFlow planning assistant from your terminal",
		RunE:  runTUI,
	}

	// Ask command for one-shot questions
	askCmd = &cobra.Command{
		Use:   "ask [message]",
		Short: "Send a one-shot message without entering the chat UI",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}

	// Usage command
	usageCmd = &cobra.Command{
		Use:   "usage",
		Short: "Show today's prompt usage",
		RunE:  runUsage,
	}

	// Clear command
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete the cached conversation",
		RunE:  runClear,
	}

	// Config command
	configCmd = &cobra.Command{
		Use:   "config [base-url] [theme]",
		Short: "Persist the backend URL and theme as defaults",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "", "Backend base URL (defaults to config, then CONCIERGE_URL)")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", "", "UI theme (default, dracula, nord)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(configCmd)

	// Bind flags to viper
	viper.BindPFlags(rootCmd.PersistentFlags())
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildClient resolves the backend URL from flag, config, then environment
func buildClient(configManager *config.Manager) (*client.Client, error) {
	var opts []client.Option
	url := baseURL
	if url == "" {
		url = configManager.GetBaseURL()
	}
	if url != "" {
		opts = append(opts, client.WithBaseURL(url))
	}
	return client.New(opts...)
}

func runTUI(cmd *cobra.Command, args []string) error {
	configManager, err := config.NewManager()
	if err != nil {
		return fmt.Errorf("failed to create config manager: %w", err)
	}

	backendClient, err := buildClient(configManager)
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}

	store, err := history.NewStore()
	if err != nil {
		return fmt.Errorf("failed to open conversation cache: %w", err)
	}

	state := conversation.NewState()
	if cached, err := store.Load(); err == nil && len(cached) > 0 {
		state.RestoreMessages(cached)
		if verbose {
			fmt.Printf("Restored %d cached messages\n", len(cached))
		}
	}

	gate := quota.NewGate()

	opts := []conversation.ControllerOption{
		conversation.WithArchive(store),
	}
	if delayMS := configManager.GetHandoffDelayMS(); delayMS > 0 {
		opts = append(opts, conversation.WithHandoffDelay(time.Duration(delayMS)*time.Millisecond))
	}
	controller := conversation.NewController(conversation.NewBackend(backendClient), state, gate, opts...)

	// Prime the quota meter and keep it fresh in the background. A poll
	// that raced a turn is dropped by the gate.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pollUsage(ctx, backendClient, gate)

	themeName := theme
	if themeName == "" {
		themeName = configManager.GetTheme()
	}

	p := tea.NewProgram(
		tui.New(controller, gate, themeName),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running chat UI: %w", err)
	}

	return nil
}

func pollUsage(ctx context.Context, backendClient *client.Client, gate *quota.Gate) {
	refresh := func() {
		startedAt := gate.Generation()
		usage, err := backendClient.Usage(ctx)
		if err != nil {
			return
		}
		gate.ApplyUsage(usage, startedAt)
	}

	refresh()
	ticker := time.NewTicker(usagePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	configManager, err := config.NewManager()
	if err != nil {
		return fmt.Errorf("failed to create config manager: %w", err)
	}

	backendClient, err := buildClient(configManager)
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}

	store, err := history.NewStore()
	if err != nil {
		return fmt.Errorf("failed to open conversation cache: %w", err)
	}

	state := conversation.NewState()
	if cached, err := store.Load(); err == nil {
		state.RestoreMessages(cached)
	}

	controller := conversation.NewController(
		conversation.NewBackend(backendClient),
		state,
		quota.NewGate(),
		conversation.WithArchive(store),
	)

	message := strings.Join(args, " ")
	if err := controller.Send(context.Background(), message); err != nil {
		return err
	}

	fmt.Println(state.LastAssistantContent())

	if pending := state.PendingConfirmation(); pending != nil {
		fmt.Printf("\nAwaiting confirmation: %s. Run the chat UI to confirm.\n",
			conversation.ActivityLabel(pending.Name))
	}
	return nil
}

func runUsage(cmd *cobra.Command, args []string) error {
	configManager, err := config.NewManager()
	if err != nil {
		return fmt.Errorf("failed to create config manager: %w", err)
	}

	backendClient, err := buildClient(configManager)
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}

	usage, err := backendClient.Usage(context.Background())
	if err != nil {
		return fmt.Errorf("failed to fetch usage: %w", err)
	}

	fmt.Printf("Prompts used:      %d/%d\n", usage.PromptsUsed, usage.DailyLimit)
	fmt.Printf("Prompts remaining: %d\n", usage.PromptsRemaining)
	fmt.Printf("Status:            %s\n", quota.StatusFor(usage.PercentageUsed))
	if usage.TimeUntilReset != nil {
		fmt.Printf("Resets in:         %s\n", usage.TimeUntilReset.Formatted)
	}
	if usage.IsAdmin {
		fmt.Println("Admin account: the limit is not enforced.")
	}
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	store, err := history.NewStore()
	if err != nil {
		return fmt.Errorf("failed to open conversation cache: %w", err)
	}
	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Println("Conversation cleared.")
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	configManager, err := config.NewManager()
	if err != nil {
		return fmt.Errorf("failed to create config manager: %w", err)
	}

	newTheme := configManager.GetTheme()
	if len(args) > 1 {
		newTheme = args[1]
	}
	if err := configManager.SetDefaults(args[0], newTheme); err != nil {
		return err
	}
	fmt.Println("Configuration saved.")
	return nil
}
