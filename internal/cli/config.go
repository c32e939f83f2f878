package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/tessro/sheetplayer/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Commands for viewing and creating sheetplayer configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after defaults and environment overrides. The client secret is masked.`,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE:  runConfigPath,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a new configuration file. Prompts for the Spotify application
credentials and the API service URL; use --defaults to skip the prompts.`,
	RunE: runConfigInit,
}

var configInitDefaults bool

func init() {
	configInitCmd.Flags().BoolVar(&configInitDefaults, "defaults", false, "write defaults without prompting")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	shown := *cfg
	if shown.Spotify.ClientSecret != "" {
		shown.Spotify.ClientSecret = "********"
	}

	if JSONOutput() {
		return printJSON(shown)
	}

	encoder := toml.NewEncoder(os.Stdout)
	encoder.Indent = "  "
	return encoder.Encode(shown)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := getConfigPath()
	_, err := os.Stat(path)
	exists := err == nil

	if JSONOutput() {
		return printJSON(map[string]interface{}{"path": path, "exists": exists})
	}
	if exists {
		fmt.Println(path)
	} else {
		fmt.Printf("%s (not created)\n", path)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := cfgFile
	if configPath == "" {
		configPath = config.DefaultPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists at %s", configPath)
	}

	newCfg := config.Default()
	if !configInitDefaults {
		if err := promptConfig(newCfg); err != nil {
			return fmt.Errorf("setup cancelled: %w", err)
		}
	}

	if err := newCfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := config.Save(newCfg, configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if JSONOutput() {
		return printJSON(map[string]string{
			"status": "created",
			"path":   configPath,
		})
	}

	fmt.Printf("Created config file: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Run 'sheetplayer serve' where the client secret lives")
	fmt.Println("  2. Run 'sheetplayer auth login' to authenticate with Spotify")
	return nil
}

func promptConfig(c *config.Config) error {
	port := strconv.Itoa(c.Server.Port)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Spotify client ID").
				Description("From developer.spotify.com/dashboard. Leave empty on client-only machines.").
				Value(&c.Spotify.ClientID),
			huh.NewInput().
				Title("Spotify client secret").
				EchoMode(huh.EchoModePassword).
				Value(&c.Spotify.ClientSecret),
			huh.NewInput().
				Title("Redirect URI").
				Description("Must match the app settings on the Spotify dashboard.").
				Value(&c.Spotify.RedirectURI),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("API service port").
				Value(&port).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n <= 0 || n > 65535 {
						return fmt.Errorf("enter a port between 1 and 65535")
					}
					return nil
				}),
			huh.NewInput().
				Title("API service URL").
				Description("Where the CLI reaches 'sheetplayer serve'.").
				Value(&c.Client.APIURL),
			huh.NewSelect[string]().
				Title("Environment").
				Options(
					huh.NewOption("production", "production"),
					huh.NewOption("development (allow any CORS origin)", "development"),
				).
				Value(&c.Environment),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	c.Server.Port, _ = strconv.Atoi(port)
	return nil
}

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if path := config.FindConfigFile(); path != "" {
		return path
	}
	return config.DefaultPath()
}
