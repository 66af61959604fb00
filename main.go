//go:build !lambda

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	verbose      bool
	jsonOut      bool
	settingsPath string
	requestPath  string
	cachePath    string
	showTiers    bool
	budget       = DefaultConfig().TimeBudget
)

var rootCmd = &cobra.Command{
	Use:   "archnemesis-planner",
	Short: "Suggest the next modifier to add to the crafting queue",
	Long: `archnemesis-planner picks which owned modifier to place next in the
four-slot crafting queue, aiming for the combos in your roster and falling
back to a time-boxed search for the most valuable feasible combo.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initLogger(verbose); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest a combo for a stash and queue snapshot",
	Long: `Reads a request file {"stash": {"<id>": count}, "queue": [id, ...]} and
prints the combo to build. Exits with status 2 when there is nothing to suggest.`,
	Args: cobra.NoArgs,
	RunE: runSuggest,
}

var valueCmd = &cobra.Command{
	Use:   "value <id>...",
	Short: "Print the value of a combo and of each of its prefixes",
	Args:  cobra.RangeArgs(1, QueueLength),
	RunE:  runValue,
}

var produceCmd = &cobra.Command{
	Use:   "produce <id>...",
	Short: "Print the modifiers a combo crafts",
	Args:  cobra.RangeArgs(1, QueueLength),
	RunE:  runProduce,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the modifier catalog",
	Args:  cobra.NoArgs,
	RunE:  runCatalog,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage the settings file",
}

var settingsInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write the default settings (.yaml, .toml or .json)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsInit,
}

var settingsCheckCmd = &cobra.Command{
	Use:   "check <path>",
	Short: "Validate a settings file against the catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsCheck,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Suggest again every time the request file changes",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var (
	showComponents bool
	forceInit      bool
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	for _, cmd := range []*cobra.Command{suggestCmd, watchCmd} {
		cmd.Flags().StringVarP(&requestPath, "request", "r", "request.json", "Request file with stash and queue")
		cmd.Flags().StringVarP(&settingsPath, "settings", "s", "", "Settings file (defaults built in when empty)")
		cmd.Flags().StringVar(&cachePath, "cache", "", "Suggestion cache file")
		cmd.Flags().DurationVar(&budget, "budget", budget, "Search time budget once a combo is found")
		cmd.Flags().BoolVar(&showTiers, "tiers", false, "Show modifier tiers")
	}
	suggestCmd.Flags().BoolVar(&jsonOut, "json", false, "Output the suggestion as JSON")
	catalogCmd.Flags().BoolVar(&showTiers, "tiers", false, "Show modifier tiers")
	catalogCmd.Flags().BoolVar(&showComponents, "components", false, "Show recursive ingredient counts")
	settingsInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing file")

	settingsCmd.AddCommand(settingsInitCmd, settingsCheckCmd)
	rootCmd.AddCommand(suggestCmd, valueCmd, produceCmd, catalogCmd, settingsCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, ErrNoSuggestion) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// ── Commands ────────────────────────────────────────────────────────

func loadSettingsFlag(c *Catalog) (*UserSettings, error) {
	settings := DefaultSettings()
	if settingsPath != "" {
		var err error
		if settings, err = LoadOrCreateSettings(settingsPath); err != nil {
			return nil, err
		}
	}
	if err := settings.Validate(c); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	if showTiers {
		settings.ShowTiers = true
	}
	return settings, nil
}

func newEngineFromFlags(c *Catalog) *Engine {
	cfg := DefaultConfig()
	cfg.TimeBudget = budget
	return NewEngine(c, cfg)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	c := DefaultCatalog()
	settings, err := loadSettingsFlag(c)
	if err != nil {
		return err
	}
	req, err := LoadRequest(c, requestPath)
	if err != nil {
		return err
	}
	if err := req.CheckQueue(); err != nil {
		return err
	}

	engine := newEngineFromFlags(c)
	var res SearchResult
	if cachePath != "" {
		cache, err := LoadSuggestionCache(cachePath, engine)
		if err != nil {
			return err
		}
		res = engine.Describe(settings, req.Stash, req.Queue, cache.Suggest(settings, req.Stash, req.Queue))
		if cache.Dirty() {
			if err := cache.Save(cachePath); err != nil {
				return err
			}
		}
	} else {
		res = engine.Search(settings, req.Stash, req.Queue)
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(NewSuggestResponse(c, res, req.Queue)); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, FormatSuggestion(c, res, req.Queue, settings.ShowTiers))
	}
	if res.Combo == nil {
		return ErrNoSuggestion
	}
	return nil
}

func parseComboArgs(c *Catalog, args []string) (Combo, error) {
	combo := make(Combo, 0, len(args))
	for _, arg := range args {
		n, err := strconv.ParseUint(arg, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid modifier id %q", arg)
		}
		id := ModifierID(n)
		if _, ok := c.Lookup(id); !ok {
			return nil, fmt.Errorf("unknown modifier %d", id)
		}
		if combo.Contains(id) {
			return nil, fmt.Errorf("modifier %d listed twice", id)
		}
		combo = append(combo, id)
	}
	return combo, nil
}

func runValue(cmd *cobra.Command, args []string) error {
	c := DefaultCatalog()
	combo, err := parseComboArgs(c, args)
	if err != nil {
		return err
	}
	d := CalcComboDetail(c, combo, nil)
	out := cmd.OutOrStdout()
	for i, s := range d.Slots {
		fmt.Fprintf(out, "%d. %-24s %8.2f\n", i+1, s.Name, s.Value)
	}
	fmt.Fprintf(out, "%-27s %8.2f\n", "TOTAL", d.Total)
	return nil
}

func runProduce(cmd *cobra.Command, args []string) error {
	c := DefaultCatalog()
	combo, err := parseComboArgs(c, args)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	prods := Produce(c, combo)
	if len(prods) == 0 {
		fmt.Fprintln(out, "nothing crafted")
		return nil
	}
	for _, p := range prods {
		fmt.Fprintf(out, "%s <- %v\n", c.Modifier(p.ID).Name, p.Recipe)
	}
	return nil
}

func runCatalog(cmd *cobra.Command, args []string) error {
	c := DefaultCatalog()
	out := cmd.OutOrStdout()
	for _, m := range c.Modifiers() {
		fmt.Fprintln(out, FormatModifier(c, m, showTiers))
		if showComponents && !m.IsBase() {
			fmt.Fprintf(out, "      needs %s\n", FormatComponents(c, m.ID))
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d modifiers, digest %s\n", c.Len(), c.Digest()[:12])
	return nil
}

func runSettingsInit(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := SaveSettings(path, DefaultSettings()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

func runSettingsCheck(cmd *cobra.Command, args []string) error {
	settings, err := LoadSettings(args[0])
	if err != nil {
		return err
	}
	if err := settings.Validate(DefaultCatalog()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d combos, %d in roster, %d forbidden\n",
		len(settings.ComboCatalog), len(settings.ComboRoster), len(settings.ForbiddenModifierIDs))
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	c := DefaultCatalog()
	settings, err := loadSettingsFlag(c)
	if err != nil {
		return err
	}
	engine := newEngineFromFlags(c)
	cache := NewSuggestionCache(engine)
	if cachePath != "" {
		if cache, err = LoadSuggestionCache(cachePath, engine); err != nil {
			return err
		}
	}
	session := NewSession(cache, settings, cachePath)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []WatchOption
	if settingsPath != "" {
		opts = append(opts, WithSettingsFile(settingsPath))
	}
	out := cmd.OutOrStdout()
	return RunWatch(ctx, c, session, requestPath, func(s Suggestion) {
		if s.Err != nil {
			fmt.Fprintf(out, "#%d: %v\n", s.ID, s.Err)
			return
		}
		res := engine.Describe(session.Settings(), s.Stash, s.Queue, s.Combo)
		fmt.Fprintf(out, "#%d: add %s\n", s.ID, c.Modifier(s.Next).Name)
		fmt.Fprint(out, FormatSuggestion(c, res, s.Queue, settings.ShowTiers))
	}, opts...)
}
